package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livepid/tracker/internal/database"
	"github.com/livepid/tracker/internal/model"
)

func writeJournal(t *testing.T, sessions ...model.Session) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := database.GetSqliteDB(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zerolog.Nop()))
	for i := range sessions {
		require.NoError(t, db.Create(&sessions[i]).Error)
	}
	closeDB(db)
	return path
}

func TestRunReport(t *testing.T) {
	start := time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC)
	path := writeJournal(t, model.Session{
		Name:      "ladder",
		StartTime: start,
		Resolutions: []model.Resolution{
			{AttackTick: 1, HitTick: 1, Outcome: "ON_PID"},
			{AttackTick: 5, HitTick: 6, Outcome: "OFF_PID"},
		},
	})

	var out bytes.Buffer
	code := runReport([]string{"--db", path}, &out)

	require.Equal(t, 0, code)
	assert.Contains(t, out.String(), "ladder")
	assert.Contains(t, out.String(), "ON_PID")
}

func TestRunReport_EmptyJournal(t *testing.T) {
	path := writeJournal(t)

	var out bytes.Buffer
	code := runReport([]string{"--db", path}, &out)

	require.Equal(t, 0, code)
	assert.Equal(t, "No sessions recorded.\n", out.String())
}

func TestRunReport_Errors(t *testing.T) {
	var out bytes.Buffer

	assert.Equal(t, 2, runReport(nil, &out))
	assert.Equal(t, 2, runReport([]string{"--nope"}, &out))
	assert.Equal(t, 1, runReport([]string{"--db", filepath.Join(t.TempDir(), "missing.db")}, &out))
	assert.Empty(t, out.String())
}
