package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/tasklist/internal/id/uuid"
)

func TestTaskStoreListNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTaskStore(uuid.New())
	for _, ts := range []int64{100, 300, 200} {
		_, err := store.Create(ctx, fmt.Sprintf("t%d", ts), ts)
		require.NoError(t, err)
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []string{"t300", "t200", "t100"}, []string{list[0].Title, list[1].Title, list[2].Title})
}

func TestTaskStoreCreateThenDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTaskStore(uuid.New())
	task, err := store.Create(ctx, "buy milk", 1700000000000)
	require.NoError(t, err)
	require.NotEmpty(t, task.ID)
	require.Equal(t, "buy milk", task.Title)
	require.Equal(t, int64(1700000000000), task.CreatedAt)

	require.NoError(t, store.Delete(ctx, task.ID))
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestTaskStoreDeleteMissingIsNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTaskStore(uuid.New())
	_, err := store.Create(ctx, "keep", 1)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "does-not-exist"))
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestTaskStoreTieKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTaskStore(uuid.New())
	for _, title := range []string{"a", "b", "c"} {
		_, err := store.Create(ctx, title, 5)
		require.NoError(t, err)
	}
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, []string{list[0].Title, list[1].Title, list[2].Title})
}

func TestTaskStoreIDError(t *testing.T) {
	t.Parallel()

	store := NewTaskStore(failingIDs{})
	_, err := store.Create(context.Background(), "x", 1)
	require.ErrorContains(t, err, "generate task id")
}

func TestTaskStoreClosed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTaskStore(uuid.New())
	require.NoError(t, store.Close())

	_, err := store.List(ctx)
	require.ErrorIs(t, err, ErrClosed)
	_, err = store.Create(ctx, "x", 1)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, store.Delete(ctx, "x"), ErrClosed)
}

func TestTaskStoreConcurrentCreates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTaskStore(uuid.New())
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, fmt.Sprintf("t%d", i), int64(i))
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 50)
	require.Equal(t, int64(49), list[0].CreatedAt)
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }
