package ranking

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(h *harness) *Orchestrator {
	return NewOrchestrator(h.store, h.pipeline, NewPool(5, 0, h.clock), h.clock, testLogger())
}

func TestRefreshForOwner_EachKeywordOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	for i := 0; i < 10; i++ {
		h.store.seed(t, "ownerA", fmt.Sprintf("mid%d", i), "sofa")
	}
	h.store.seed(t, "ownerA", "c1", "chair")
	h.store.seed(t, "ownerA", "c2", "chair")
	h.store.seed(t, "ownerB", "mid0", "sofa")
	h.store.seed(t, "ownerB", "l1", "lamp")

	h.collector.set("sofa", result(1, "mid0", "T", "S"), result(2, "mid1", "T", "S"))
	h.collector.set("chair", result(1, "c1", "T", "S"))

	res, err := newTestOrchestrator(h).RefreshForOwner(context.Background(), "ownerA")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Keywords)
	assert.Empty(t, res.Failed)
	// Fan-out is cross-tenant, so ownerB's sofa item is counted too.
	assert.Equal(t, 13, res.Updated)

	assert.Equal(t, 1, h.collector.callsFor("sofa"))
	assert.Equal(t, 1, h.collector.callsFor("chair"))
	assert.Zero(t, h.collector.callsFor("lamp"))
	assert.Equal(t, 1, h.store.updateCalls["sofa"])
	assert.Equal(t, 1, h.store.updateCalls["chair"])
}

func TestRefreshForOwner_FailureIsolation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	for _, kw := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		h.store.seed(t, "owner", "mid", kw)
		h.collector.set(kw, result(1, "mid", "T", "S"))
	}
	h.store.failKeywords["c"] = errors.New("lock timeout")
	h.store.failKeywords["f"] = errors.New("lock timeout")

	res, err := newTestOrchestrator(h).RefreshForOwner(context.Background(), "owner")
	require.NoError(t, err)

	assert.Equal(t, 7, res.Keywords)
	assert.Equal(t, 5, res.Updated)
	assert.ElementsMatch(t, []string{"c", "f"}, res.Failed)
}

func TestRefreshForOwner_NoItems(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	res, err := newTestOrchestrator(h).RefreshForOwner(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, res.Keywords)
	assert.Zero(t, res.Updated)
	assert.Zero(t, h.collector.totalCalls())
}
