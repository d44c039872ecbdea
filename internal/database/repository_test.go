package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/focusmute/focusmute/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := Connect(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Initialize())
	return NewRepository(db)
}

func TestCreateMuteEventNormalizesName(t *testing.T) {
	repo := newTestRepository(t)

	event := &models.MuteEvent{ProcessName: "Chrome", PID: 10, Muted: true, Reason: models.ReasonFocus}
	require.NoError(t, repo.CreateMuteEvent(event))

	assert.NotZero(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())

	latest, err := repo.GetLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "chrome", latest.ProcessName)
	assert.True(t, latest.Muted)
}

func TestGetLatestEmpty(t *testing.T) {
	repo := newTestRepository(t)

	latest, err := repo.GetLatest()
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestGetEventsSince(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()

	require.NoError(t, repo.CreateMuteEvent(&models.MuteEvent{Timestamp: now.Add(-48 * time.Hour), ProcessName: "old", Reason: models.ReasonFocus}))
	require.NoError(t, repo.CreateMuteEvent(&models.MuteEvent{Timestamp: now.Add(-time.Hour), ProcessName: "a", Reason: models.ReasonFocus}))
	require.NoError(t, repo.CreateMuteEvent(&models.MuteEvent{Timestamp: now, ProcessName: "b", Reason: models.ReasonFocus}))

	events, err := repo.GetEventsSince(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ProcessName)
	assert.Equal(t, "b", events[1].ProcessName)
}

func TestGetRecentEvents(t *testing.T) {
	repo := newTestRepository(t)
	base := time.Now().Add(-time.Hour)

	for i, name := range []string{"one", "two", "three", "four"} {
		require.NoError(t, repo.CreateMuteEvent(&models.MuteEvent{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			ProcessName: name,
			Reason:      models.ReasonToggle,
		}))
	}

	events, err := repo.GetRecentEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "three", events[0].ProcessName)
	assert.Equal(t, "four", events[1].ProcessName)
}

func TestGetAppSummarySince(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()

	events := []models.MuteEvent{
		{ProcessName: "chat", Muted: true, Matched: 2},
		{ProcessName: "chat", Muted: true, Matched: 2},
		{ProcessName: "chat", Muted: false, Matched: 2},
		{ProcessName: "game", Muted: false, Matched: 1},
	}
	for i := range events {
		events[i].Timestamp = now
		events[i].Reason = models.ReasonFocus
		require.NoError(t, repo.CreateMuteEvent(&events[i]))
	}

	summaries, err := repo.GetAppSummarySince(now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "chat", summaries[0].ProcessName)
	assert.Equal(t, int64(2), summaries[0].MuteCount)
	assert.Equal(t, int64(1), summaries[0].UnmuteCount)
	assert.Equal(t, int64(3), summaries[0].EventCount)
	assert.Equal(t, int64(6), summaries[0].SessionCount)

	assert.Equal(t, "game", summaries[1].ProcessName)
	assert.Equal(t, int64(0), summaries[1].MuteCount)
	assert.Equal(t, int64(1), summaries[1].UnmuteCount)
}

func TestDeleteOldEvents(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()

	require.NoError(t, repo.CreateMuteEvent(&models.MuteEvent{Timestamp: now.Add(-72 * time.Hour), ProcessName: "old", Reason: models.ReasonFocus}))
	require.NoError(t, repo.CreateMuteEvent(&models.MuteEvent{Timestamp: now, ProcessName: "new", Reason: models.ReasonFocus}))

	deleted, err := repo.DeleteOldEvents(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	events, err := repo.GetEventsSince(time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].ProcessName)
}

func TestErrorLogs(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.CreateErrorLog(&models.ErrorLog{Component: "audio", ErrorMsg: "no default audio output device"}))
	require.NoError(t, repo.CreateErrorLog(&models.ErrorLog{Component: "focus", ErrorMsg: "hook failed"}))

	logs, err := repo.GetErrorLogs(10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "focus", logs[0].Component)
}

func TestClear(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.CreateMuteEvent(&models.MuteEvent{ProcessName: "chat", Reason: models.ReasonFocus}))
	require.NoError(t, repo.CreateErrorLog(&models.ErrorLog{Component: "audio", ErrorMsg: "x"}))

	require.NoError(t, repo.Clear())

	events, err := repo.GetEventsSince(time.Time{})
	require.NoError(t, err)
	assert.Empty(t, events)

	logs, err := repo.GetErrorLogs(10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestRangeQueriesAcrossOffsets(t *testing.T) {
	repo := newTestRepository(t)

	tokyo := time.FixedZone("JST", 9*3600)
	newYork := time.FixedZone("EST", -5*3600)

	at := time.Date(2026, 3, 2, 8, 0, 0, 0, tokyo) // 2026-03-01 23:00 UTC
	require.NoError(t, repo.CreateMuteEvent(&models.MuteEvent{Timestamp: at, ProcessName: "chat", Muted: true, Reason: models.ReasonFocus}))

	// 2026-03-01 20:00 EST is 2026-03-02 01:00 UTC, after the event
	events, err := repo.GetEventsSince(time.Date(2026, 3, 1, 20, 0, 0, 0, newYork))
	require.NoError(t, err)
	assert.Empty(t, events)

	// 2026-03-01 17:00 EST is 22:00 UTC, before the event
	events, err = repo.GetEventsSince(time.Date(2026, 3, 1, 17, 0, 0, 0, newYork))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Timestamp.Equal(at))
}

func TestConnectCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")
	db, err := Connect(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())
	require.NoError(t, db.Initialize())
}
