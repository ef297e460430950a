package shovel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joyent/manta-mdshovel/internal/pathgen"
	"github.com/joyent/manta-mdshovel/internal/store"
	"github.com/joyent/manta-mdshovel/pkg/errors"
)

func testKeySet() pathgen.KeySet {
	g := pathgen.New("a", "/L", "/S")
	return g.Derive("ab12cd34ef56gh78-0000-1111-2222-333344445555")
}

func TestPipelineRunsStepsInOrder(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	p := NewPipeline(NewWriter(client, newTestRecorder(t), zap.NewNop()))
	ks := testKeySet()

	require.NoError(t, p.Run(context.Background(), ks))

	recs := client.records()
	require.Len(t, recs, 4)
	assert.Equal(t, ks.LargeKey, recs[0].Key)
	assert.Equal(t, store.TypeDirectory, recs[0].Type)
	assert.Equal(t, ks.SmallKey1, recs[1].Key)
	assert.Equal(t, store.TypeDirectory, recs[1].Type)
	assert.Equal(t, ks.SmallKey2, recs[2].Key)
	assert.Equal(t, store.TypeDirectory, recs[2].Type)
	assert.Equal(t, ks.LeafKey, recs[3].Key)
	assert.Equal(t, store.TypeObject, recs[3].Type)

	for _, rec := range recs {
		assert.Equal(t, ks.ID, rec.RequestID, "all steps share the operation's request id")
	}
}

func TestPipelineShortCircuitsOnFailure(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	ks := testKeySet()
	client.putHook = func(rec *store.Record) error {
		if rec.Key == ks.SmallKey2 {
			return errors.New(errors.ErrCodeStoreWrite, "service returned 500").WithKey(rec.Key)
		}
		return nil
	}
	p := NewPipeline(NewWriter(client, newTestRecorder(t), zap.NewNop()))

	err := p.Run(context.Background(), ks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 3 (smallKey2)")

	recs := client.records()
	require.Len(t, recs, 3, "leaf step must never execute after a step-3 failure")
	for _, rec := range recs {
		assert.NotEqual(t, ks.LeafKey, rec.Key)
	}
}

func TestPipelineSucceedsThroughDirectoryConflicts(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.putHook = func(rec *store.Record) error {
		if rec.Type == store.TypeDirectory {
			return errors.New(errors.ErrCodeEntryExists, "entry already exists").WithKey(rec.Key)
		}
		return nil
	}
	p := NewPipeline(NewWriter(client, newTestRecorder(t), zap.NewNop()))

	err := p.Run(context.Background(), testKeySet())
	assert.NoError(t, err, "all-directory conflicts model expected contention")
	assert.Len(t, client.records(), 4)
}

func TestPipelineFailsOnLeafConflict(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.putHook = func(rec *store.Record) error {
		if rec.Type == store.TypeObject {
			return errors.New(errors.ErrCodeEntryExists, "entry already exists").WithKey(rec.Key)
		}
		return nil
	}
	p := NewPipeline(NewWriter(client, newTestRecorder(t), zap.NewNop()))

	err := p.Run(context.Background(), testKeySet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 4 (leafKey)")
}
