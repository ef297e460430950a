// Package metad implements the store.Client boundary over the metadata
// service's HTTP write API. Backends are discovered through DNS SRV
// records the way cueball-managed services register themselves.
package metad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/joyent/manta-mdshovel/internal/config"
	"github.com/joyent/manta-mdshovel/internal/store"
	"github.com/joyent/manta-mdshovel/pkg/errors"
	"github.com/joyent/manta-mdshovel/pkg/retry"
)

const component = "metad"

// Client talks to the metadata service. It satisfies store.Client.
type Client struct {
	cfg    config.MetadataServiceConfig
	logger *zap.Logger
	http   *http.Client

	ready chan struct{}
	fatal chan error

	mu       sync.Mutex
	backends []string
	next     int
	closed   bool
}

// New creates a client. Connect must be called before Put.
func New(cfg config.MetadataServiceConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.Named(component),
		http: &http.Client{
			Timeout: cfg.Cueball.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: cfg.Cueball.MaxConnections,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		ready: make(chan struct{}),
		fatal: make(chan error, 1),
	}
}

// Connect resolves backends and probes one, retrying with the configured
// recovery backoff. Ready is closed on success; exhausting the retries
// delivers the error on Fatal.
func (c *Client) Connect(ctx context.Context) {
	go func() {
		r := retry.New(retry.Config{
			MaxAttempts:  c.cfg.Cueball.RecoveryRetries,
			InitialDelay: c.cfg.Cueball.RecoveryDelay,
			MaxDelay:     c.cfg.Cueball.RecoveryMaxDelay,
			Multiplier:   2.0,
			Jitter:       true,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				c.logger.Warn("connection attempt failed, retrying",
					zap.Int("attempt", attempt),
					zap.Duration("delay", delay),
					zap.Error(err))
			},
		})

		err := r.Do(ctx, func(ctx context.Context) error {
			backends, err := c.resolve(ctx)
			if err != nil {
				return err
			}
			if err := c.probe(ctx, backends[0]); err != nil {
				return err
			}
			c.mu.Lock()
			c.backends = backends
			c.mu.Unlock()
			return nil
		})
		if err != nil {
			c.reportFatal(err)
			return
		}

		c.logger.Info("connected to metadata service",
			zap.String("srv_domain", c.cfg.SRVDomain),
			zap.Int("backends", len(c.backendList())))
		close(c.ready)
	}()
}

// Ready is closed once a backend answers and operations may start.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// Fatal delivers connection-level failures. The process must terminate
// after receiving one.
func (c *Client) Fatal() <-chan error {
	return c.fatal
}

// Put issues one metadata write. A 409 from the service is classified as
// ENTRY_EXISTS; transport failures are connection-level and also reported
// on Fatal.
func (c *Client) Put(ctx context.Context, rec *store.Record) error {
	backend := c.pickBackend()
	if backend == "" {
		err := errors.New(errors.ErrCodeNoBackends, "no metadata backends available").
			WithComponent(component)
		c.reportFatal(err)
		return err
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return errors.New(errors.ErrCodeInternalError, "failed to encode record").
			WithComponent(component).WithKey(rec.Key).WithCause(err)
	}

	url := fmt.Sprintf("http://%s/records%s", backend, rec.Key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return errors.New(errors.ErrCodeInternalError, "failed to build request").
			WithComponent(component).WithKey(rec.Key).WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", rec.RequestID)

	resp, err := c.http.Do(req)
	if err != nil {
		cerr := errors.New(errors.ErrCodeConnectionFailed, "metadata write failed").
			WithComponent(component).WithKey(rec.Key).WithCause(err)
		c.reportFatal(cerr)
		return cerr
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return errors.Newf(errors.ErrCodeEntryExists, "entry already exists").
			WithComponent(component).WithKey(rec.Key).WithRequestID(rec.RequestID)
	default:
		return errors.Newf(errors.ErrCodeStoreWrite, "metadata service returned %d", resp.StatusCode).
			WithComponent(component).WithKey(rec.Key).WithRequestID(rec.RequestID)
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.http.CloseIdleConnections()
	return nil
}

// resolve looks up SRV records for the configured domain against each
// configured resolver in turn.
func (c *Client) resolve(ctx context.Context) ([]string, error) {
	resolvers := c.cfg.Cueball.Resolvers
	if len(resolvers) == 0 {
		resolvers = systemResolvers()
	}
	if len(resolvers) == 0 {
		return nil, errors.New(errors.ErrCodeSRVLookup, "no DNS resolvers configured").
			WithComponent(component)
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(c.cfg.SRVDomain), dns.TypeSRV)

	cli := &dns.Client{Timeout: c.cfg.Cueball.ConnectTimeout}

	var lastErr error
	for _, resolver := range resolvers {
		resp, _, err := cli.ExchangeContext(ctx, m, withDefaultPort(resolver, "53"))
		if err != nil {
			lastErr = err
			continue
		}
		var backends []string
		for _, rr := range resp.Answer {
			if srv, ok := rr.(*dns.SRV); ok {
				host := srv.Target
				if len(host) > 0 && host[len(host)-1] == '.' {
					host = host[:len(host)-1]
				}
				backends = append(backends, net.JoinHostPort(host, fmt.Sprintf("%d", srv.Port)))
			}
		}
		if len(backends) > 0 {
			return backends, nil
		}
		lastErr = fmt.Errorf("no SRV records in answer from %s", resolver)
	}

	return nil, errors.Newf(errors.ErrCodeSRVLookup, "SRV lookup for %q failed", c.cfg.SRVDomain).
		WithComponent(component).WithCause(lastErr)
}

// probe checks that a backend accepts connections before the governor
// starts.
func (c *Client) probe(ctx context.Context, backend string) error {
	d := net.Dialer{Timeout: c.cfg.Cueball.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", backend)
	if err != nil {
		return errors.Newf(errors.ErrCodeConnectionFailed, "cannot reach backend %s", backend).
			WithComponent(component).WithCause(err)
	}
	return conn.Close()
}

func (c *Client) pickBackend() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.backends) == 0 {
		return ""
	}
	b := c.backends[c.next%len(c.backends)]
	c.next++
	return b
}

func (c *Client) backendList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backends
}

func (c *Client) reportFatal(err error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	select {
	case c.fatal <- err:
	default:
	}
}

func withDefaultPort(addr, port string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, port)
}

// systemResolvers reads nameservers from /etc/resolv.conf.
func systemResolvers() []string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return nil
	}
	var out []string
	for _, s := range conf.Servers {
		out = append(out, net.JoinHostPort(s, conf.Port))
	}
	return out
}
