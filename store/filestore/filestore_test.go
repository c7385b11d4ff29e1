package filestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskreactor/plan"
	"github.com/rudi77/taskreactor/session"
)

func TestStateStoreSaveAndLoadRoundTrip(t *testing.T) {
	store, err := NewStateStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	st, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	st.Answers["q"] = "a"

	require.NoError(t, store.Save(ctx, st))

	reloaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "a", reloaded.Answers["q"])
	require.Equal(t, 1, reloaded.Version)
}

func TestStateStoreSaveRejectsStaleVersion(t *testing.T) {
	store, err := NewStateStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	st, _ := store.Load(ctx, "s1")
	require.NoError(t, store.Save(ctx, st))

	err = store.Save(ctx, st)
	require.ErrorIs(t, err, session.ErrVersionConflict)
}

func TestStateStoreDeleteIsIdempotent(t *testing.T) {
	store, err := NewStateStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "missing"))

	st, _ := store.Load(ctx, "s1")
	require.NoError(t, store.Save(ctx, st))
	require.NoError(t, store.Delete(ctx, "s1"))

	reloaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 0, reloaded.Version)
}

func TestPlanStoreCreateRejectsDuplicate(t *testing.T) {
	store, err := NewPlanStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	p := &plan.Plan{ID: "p1", Mission: "m", Steps: []*plan.Step{{Position: 1}}}

	require.NoError(t, store.Create(ctx, p))
	err = store.Create(ctx, p)
	require.Error(t, err)
}

func TestPlanStoreUpdateMissingReturnsErrNotFound(t *testing.T) {
	store, err := NewPlanStore(t.TempDir())
	require.NoError(t, err)

	err = store.Update(context.Background(), &plan.Plan{ID: "missing"})
	require.ErrorIs(t, err, plan.ErrNotFound)
}
