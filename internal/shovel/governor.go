package shovel

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joyent/manta-mdshovel/internal/metrics"
	"github.com/joyent/manta-mdshovel/internal/pathgen"
)

// Operation is one in-flight four-step create. Owned by the governor from
// creation until removal from the pending set; its pipeline steps run
// strictly sequentially.
type Operation struct {
	ID        string
	Keys      pathgen.KeySet
	StartedAt time.Time
	Elapsed   time.Duration
}

// Stats is a snapshot of the governor's counters and pending set size.
type Stats struct {
	Started int64
	Done    int64
	Failed  int64
	Pending int
}

// Governor keeps exactly `concurrency` operations in flight: it launches
// that many at start and each completion launches one replacement before
// returning control. There is no queue; the concurrency ceiling is the
// only throttle.
type Governor struct {
	concurrency int
	gen         *pathgen.Generator
	pipeline    *Pipeline
	recorder    *metrics.Recorder
	logger      *zap.Logger

	// All governor state behind one mutex, touched only at operation
	// start and completion.
	mu      sync.Mutex
	pending map[string]*Operation
	started int64
	done    int64
	failed  int64
}

// NewGovernor creates a Governor for the given concurrency ceiling.
func NewGovernor(concurrency int, gen *pathgen.Generator, pipeline *Pipeline, recorder *metrics.Recorder, logger *zap.Logger) *Governor {
	return &Governor{
		concurrency: concurrency,
		gen:         gen,
		pipeline:    pipeline,
		recorder:    recorder,
		logger:      logger.Named("governor"),
		pending:     make(map[string]*Operation),
	}
}

// Run launches the slot goroutines once ready is closed and blocks until
// ctx is canceled. No staggering, no ramp-up: all slots start at once.
func (g *Governor) Run(ctx context.Context, ready <-chan struct{}) {
	select {
	case <-ctx.Done():
		return
	case <-ready:
	}

	g.logger.Info("starting operations", zap.Int("concurrency", g.concurrency))

	var wg sync.WaitGroup
	for i := 0; i < g.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			g.runSlot(ctx, slot)
		}(i)
	}
	wg.Wait()
}

// runSlot is one persistent worker slot. Finishing an operation and
// starting its replacement is a single state transition, so the pending
// set never dips below the ceiling between them.
func (g *Governor) runSlot(ctx context.Context, slot int) {
	op := g.begin()
	for {
		err := g.pipeline.Run(ctx, op.Keys)
		if ctx.Err() != nil {
			// Shutdown, not an operation outcome. The operation stays in
			// the pending set so started-done always matches it.
			return
		}
		op = g.finishAndReplace(op, err, slot)
	}
}

func (g *Governor) newOperation() *Operation {
	keys := g.gen.NewKeySet()
	return &Operation{
		ID:        keys.ID,
		Keys:      keys,
		StartedAt: time.Now(),
	}
}

// begin creates a slot's first operation and inserts it into the pending
// set.
func (g *Governor) begin() *Operation {
	op := g.newOperation()

	g.mu.Lock()
	g.started++
	g.pending[op.ID] = op
	g.mu.Unlock()

	g.recorder.OperationStarted()
	return op
}

// finishAndReplace records op's outcome, removes it from the pending set,
// and launches exactly one replacement. Operation-scoped errors are
// logged and absorbed here; they never escape.
func (g *Governor) finishAndReplace(op *Operation, err error, slot int) *Operation {
	op.Elapsed = time.Since(op.StartedAt)
	next := g.newOperation()

	g.mu.Lock()
	g.done++
	if err != nil {
		g.failed++
	}
	delete(g.pending, op.ID)
	g.started++
	g.pending[next.ID] = next
	g.mu.Unlock()

	g.recorder.OperationCompleted(op.Elapsed, err == nil)
	g.recorder.OperationStarted()

	if err != nil {
		g.logger.Error("operation failed",
			zap.String("id", op.ID),
			zap.Int("slot", slot),
			zap.Duration("elapsed", op.Elapsed),
			zap.Error(err))
	}

	return next
}

// Snapshot returns the current counters and pending set size. At every
// observable point Started-Done == Pending, and after warm-up both equal
// the configured concurrency.
func (g *Governor) Snapshot() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Started: g.started,
		Done:    g.done,
		Failed:  g.failed,
		Pending: len(g.pending),
	}
}
