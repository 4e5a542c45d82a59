package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := Entry{
		ID: uuid.NewString(), Action: "sign_in", Method: "POST",
		Target: "account-management/login/", Outcome: "client_error", Status: 403,
		Message: "Your account is not activated yet.", Duration: 120 * time.Millisecond,
		CreatedAt: base,
	}
	second := Entry{
		ID: uuid.NewString(), Action: "sign_in", Method: "POST",
		Target: "account-management/login/", Outcome: "success", Status: 200,
		CreatedAt: base.Add(time.Minute),
	}
	require.NoError(t, s.Record(ctx, first))
	require.NoError(t, s.Record(ctx, second))

	entries, err := s.Recent(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
	assert.Equal(t, 403, entries[1].Status)
	assert.Equal(t, 120*time.Millisecond, entries[1].Duration)
	assert.Equal(t, first.Message, entries[1].Message)
}

func TestRecentFiltersByAction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"sign_in", "register", "sign_in"} {
		require.NoError(t, s.Record(ctx, Entry{ID: uuid.NewString(), Action: name, Method: "POST", Target: "x", Outcome: "success"}))
	}

	entries, err := s.Recent(ctx, Query{Action: "sign_in", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = s.Recent(ctx, Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecordRequiresID(t *testing.T) {
	s := openTestStore(t)
	err := s.Record(context.Background(), Entry{Action: "sign_in"})
	assert.Error(t, err)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	id := uuid.NewString()
	require.NoError(t, s.Record(ctx, Entry{ID: id, Action: "delete_treasure", Method: "DELETE", Target: "t", Outcome: "success"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	entries, err := s.Recent(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
}

func TestFileJournalUsesWAL(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer s.Close()

	var mode string
	require.NoError(t, s.db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, s.db.QueryRow(`PRAGMA busy_timeout`).Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestOpenFailureIsWrapped(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "journal.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal")
}
