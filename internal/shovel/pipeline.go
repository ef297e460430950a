package shovel

import (
	"context"
	"fmt"

	"github.com/joyent/manta-mdshovel/internal/pathgen"
)

// step is one fallible stage of an operation's pipeline.
type step struct {
	name string
	run  func(ctx context.Context) error
}

// Pipeline runs the ordered store operations for one logical operation:
// the large-directory entry, the two shared intermediate directories, and
// the unique leaf object.
type Pipeline struct {
	writer *Writer
}

// NewPipeline creates a Pipeline over the given writer.
func NewPipeline(writer *Writer) *Pipeline {
	return &Pipeline{writer: writer}
}

// Run executes the four steps in order, short-circuiting on the first
// unsuppressed failure. The returned error carries the originating step's
// name and index.
func (p *Pipeline) Run(ctx context.Context, keys pathgen.KeySet) error {
	requestID := keys.ID

	steps := []step{
		{name: "largeKey", run: func(ctx context.Context) error {
			return p.writer.CreateDirectory(ctx, requestID, keys.LargeKey)
		}},
		{name: "smallKey1", run: func(ctx context.Context) error {
			return p.writer.CreateDirectory(ctx, requestID, keys.SmallKey1)
		}},
		{name: "smallKey2", run: func(ctx context.Context) error {
			return p.writer.CreateDirectory(ctx, requestID, keys.SmallKey2)
		}},
		{name: "leafKey", run: func(ctx context.Context) error {
			return p.writer.CreateObject(ctx, requestID, keys.LeafKey)
		}},
	}

	for i, s := range steps {
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s.name, err)
		}
	}
	return nil
}
