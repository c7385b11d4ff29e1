package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskreactor/event"
	"github.com/rudi77/taskreactor/plan"
	"github.com/rudi77/taskreactor/run"
	"github.com/rudi77/taskreactor/session"
)

func TestSessionStoreCreateIsIdempotent(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	now := time.Now()

	first, err := store.CreateSession(ctx, "s1", now)
	require.NoError(t, err)

	second, err := store.CreateSession(ctx, "s1", now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestSessionStoreCreateAfterEndReturnsErrEnded(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	now := time.Now()

	_, err := store.CreateSession(ctx, "s1", now)
	require.NoError(t, err)
	_, err = store.EndSession(ctx, "s1", now)
	require.NoError(t, err)

	_, err = store.CreateSession(ctx, "s1", now)
	require.ErrorIs(t, err, session.ErrEnded)
}

func TestSessionStoreLoadMissingReturnsErrNotFound(t *testing.T) {
	store := NewSessionStore()
	_, err := store.LoadSession(context.Background(), "missing")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestStateStoreLoadMissingReturnsFreshState(t *testing.T) {
	store := NewStateStore()
	st, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", st.SessionID)
	require.Equal(t, 0, st.Version)
}

func TestStateStoreSaveBumpsVersion(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	st, _ := store.Load(ctx, "s1")
	require.NoError(t, store.Save(ctx, st))

	reloaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Version)
}

func TestStateStoreSaveRejectsStaleVersion(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	st, _ := store.Load(ctx, "s1")
	require.NoError(t, store.Save(ctx, st))

	// st.Version is still 0 (the pre-save snapshot); saving it again should
	// be rejected against the now-version-1 stored state.
	err := store.Save(ctx, st)
	require.ErrorIs(t, err, session.ErrVersionConflict)
}

func TestStateStoreLockExcludesConcurrentCallers(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	release, err := store.Lock(ctx, "s1")
	require.NoError(t, err)

	ctx2, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = store.Lock(ctx2, "s1")
	require.Error(t, err)

	release()
}

func TestPlanStoreCreateLoadUpdateDelete(t *testing.T) {
	store := NewPlanStore()
	ctx := context.Background()
	p := &plan.Plan{ID: "p1", Mission: "do it", Steps: []*plan.Step{{Position: 1, Status: plan.StatusPending}}}

	require.NoError(t, store.Create(ctx, p))

	loaded, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "do it", loaded.Mission)

	loaded.Mission = "revised"
	require.NoError(t, store.Update(ctx, loaded))

	reloaded, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "revised", reloaded.Mission)

	require.NoError(t, store.Delete(ctx, "p1"))
	_, err = store.Load(ctx, "p1")
	require.ErrorIs(t, err, plan.ErrNotFound)
}

func TestRunStoreUpsertPreservesStartedAt(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, run.Record{RunID: "r1", SessionID: "s1", Status: run.StatusRunning}))
	first, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	require.False(t, first.StartedAt.IsZero())

	require.NoError(t, store.Upsert(ctx, run.Record{RunID: "r1", SessionID: "s1", Status: run.StatusCompleted}))
	second, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, first.StartedAt, second.StartedAt)
	require.Equal(t, run.StatusCompleted, second.Status)
}

func TestRunStoreLoadMissingReturnsErrNotFound(t *testing.T) {
	store := NewRunStore()
	_, err := store.Load(context.Background(), "missing")
	require.ErrorIs(t, err, run.ErrNotFound)
}

func TestRunStoreListBySessionFiltersBySessionID(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, run.Record{RunID: "r1", SessionID: "s1"}))
	require.NoError(t, store.Upsert(ctx, run.Record{RunID: "r2", SessionID: "s2"}))

	recs, err := store.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "r1", recs[0].RunID)
}

func TestRunLogStoreAppendAndListPaginates(t *testing.T) {
	store := NewRunLogStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, "r1", "s1", event.New(event.Thought, "s1", nil)))
	}

	page, err := store.List(ctx, "r1", "", 2)
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	require.NotEmpty(t, page.NextCursor)

	next, err := store.List(ctx, "r1", page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, next.Entries, 1)
	require.Empty(t, next.NextCursor)
}

func TestRunLogStoreAppendRequiresRunID(t *testing.T) {
	store := NewRunLogStore()
	err := store.Append(context.Background(), "", "s1", event.New(event.Thought, "s1", nil))
	require.Error(t, err)
}
