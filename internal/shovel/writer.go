package shovel

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joyent/manta-mdshovel/internal/metrics"
	"github.com/joyent/manta-mdshovel/internal/store"
	"github.com/joyent/manta-mdshovel/pkg/errors"
)

// Store call kinds, used as the per-call histogram label and in error
// context.
const (
	CallCreateDirectory = "createDirectory"
	CallCreateObject    = "createObject"
)

// DryRunDelay substitutes for real store I/O in dry-run mode so that
// concurrency is still throttled by something.
const DryRunDelay = 10 * time.Millisecond

// Writer adapts the store client's single write primitive into the two
// operations the pipeline needs. It stamps the fixed metadata fields,
// times live calls into the per-call histogram, and suppresses expected
// directory-creation conflicts.
type Writer struct {
	client   store.Client
	recorder *metrics.Recorder
	logger   *zap.Logger

	dryRun      bool
	dryRunDelay time.Duration
}

// NewWriter creates a Writer issuing live store calls.
func NewWriter(client store.Client, recorder *metrics.Recorder, logger *zap.Logger) *Writer {
	return &Writer{
		client:   client,
		recorder: recorder,
		logger:   logger.Named("writer"),
	}
}

// NewDryRunWriter creates a Writer that never touches the store: every
// call waits the artificial delay and succeeds. Per-call latency is not
// recorded, only live calls are measured.
func NewDryRunWriter(recorder *metrics.Recorder, logger *zap.Logger) *Writer {
	return &Writer{
		recorder:    recorder,
		logger:      logger.Named("writer"),
		dryRun:      true,
		dryRunDelay: DryRunDelay,
	}
}

// CreateDirectory writes a directory entry at key. A conflict from the
// store means a concurrent operation already created an equivalent entry;
// that is the expected hot-shard contention and is reported as success.
func (w *Writer) CreateDirectory(ctx context.Context, requestID, key string) error {
	if w.dryRun {
		return w.sleep(ctx)
	}

	err := w.put(ctx, CallCreateDirectory, store.NewDirectoryRecord(requestID, key))
	if err != nil {
		if errors.IsConflict(err) {
			w.logger.Debug("directory already exists", zap.String("key", key))
			return nil
		}
		return fmt.Errorf("%s %s: %w", CallCreateDirectory, key, err)
	}
	return nil
}

// CreateObject writes an object entry at key. Leaf keys are unique per
// operation, so a conflict here is an unexpected collision and propagates
// as a genuine failure.
func (w *Writer) CreateObject(ctx context.Context, requestID, key string) error {
	if w.dryRun {
		return w.sleep(ctx)
	}

	if err := w.put(ctx, CallCreateObject, store.NewObjectRecord(requestID, key)); err != nil {
		return fmt.Errorf("%s %s: %w", CallCreateObject, key, err)
	}
	return nil
}

// put issues one live store call and records its wall latency.
func (w *Writer) put(ctx context.Context, call string, rec *store.Record) error {
	start := time.Now()
	err := w.client.Put(ctx, rec)
	w.recorder.StoreCall(call, time.Since(start))
	return err
}

func (w *Writer) sleep(ctx context.Context) error {
	timer := time.NewTimer(w.dryRunDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
