package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"quicktodo/internal/cache"
	"quicktodo/internal/config"
	"quicktodo/internal/mutation"
	"quicktodo/internal/session"
	"quicktodo/internal/testutil"
)

func TestSession_SharesCache(t *testing.T) {
	store := testutil.NewFakeStore(testutil.SampleTasks(3)...)
	sess := session.New(store, &config.Config{StaleTime: time.Minute}, zerolog.Nop())

	require.Equal(t, cache.TasksKey, sess.Cache.Key())

	ctx := context.Background()
	_, err := sess.Cache.Load(ctx)
	require.NoError(t, err)

	results, err := sess.Mutations.Create(ctx, "new")
	require.NoError(t, err)
	res, err := mutation.Wait(ctx, results)
	require.NoError(t, err)
	require.True(t, res.OK())

	tasks, _ := sess.Cache.Read()
	require.Len(t, tasks, 4)
	require.Equal(t, "new", tasks[0].Title)
	require.False(t, sess.Cache.IsStale())
}
