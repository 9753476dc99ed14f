package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shanky048/WisePal/internal/db"
	"github.com/Shanky048/WisePal/pkg/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "wisepal.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestKV_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	kv := NewKV(openTestDB(t))

	_, ok, err := kv.Get(ctx, "wisepal_token")
	require.NoError(t, err)
	assert.False(t, ok, "missing key should report not found")

	require.NoError(t, kv.Put(ctx, "wisepal_token", "first"))
	require.NoError(t, kv.Put(ctx, "wisepal_token", "second"))

	value, ok, err := kv.Get(ctx, "wisepal_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", value)

	require.NoError(t, kv.Delete(ctx, "wisepal_token"))
	require.NoError(t, kv.Delete(ctx, "wisepal_token"), "deleting twice is fine")

	_, ok, err = kv.Get(ctx, "wisepal_token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTranscript_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	tr := NewTranscript(openTestDB(t))

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	tr.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i := 1; i <= 7; i++ {
		role := models.RoleUser
		if i%2 == 0 {
			role = models.RoleAssistant
		}
		require.NoError(t, tr.Record(ctx, models.Message{Role: role, Content: fmt.Sprintf("m%d", i)}))
	}

	entries, omitted, err := tr.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, 3, omitted)

	got := []string{entries[0].Content, entries[1].Content, entries[2].Content, entries[3].Content}
	assert.Equal(t, []string{"m1", "m2", "m6", "m7"}, got)
	assert.Equal(t, models.RoleUser, entries[0].Role)
	assert.Equal(t, models.RoleAssistant, entries[1].Role)
	assert.NotEmpty(t, entries[0].ID)
	assert.True(t, entries[0].CreatedAt.Before(entries[3].CreatedAt))
}

func TestTranscript_RecentSmallerThanWindow(t *testing.T) {
	ctx := context.Background()
	tr := NewTranscript(openTestDB(t))

	require.NoError(t, tr.Record(ctx, models.Message{Role: models.RoleUser, Content: "hi"}))
	require.NoError(t, tr.Record(ctx, models.Message{Role: models.RoleAssistant, Content: "hello"}))

	entries, omitted, err := tr.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Zero(t, omitted)
}

func TestTranscript_Clear(t *testing.T) {
	ctx := context.Background()
	tr := NewTranscript(openTestDB(t))

	require.NoError(t, tr.Record(ctx, models.Message{Role: models.RoleUser, Content: "hi"}))
	require.NoError(t, tr.Clear(ctx))

	entries, omitted, err := tr.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, omitted)
}
