package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/cravings/printagent/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, dsn string, records ...printing.JobRecord) {
	t.Helper()
	db, err := persistence.NewDatabase(persistence.DatabaseConfig{DSN: dsn, LogLevel: "silent"}, nil)
	require.NoError(t, err)
	defer db.Close()
	repo := persistence.NewGormHistoryRepository(db.DB)
	for _, r := range records {
		require.NoError(t, repo.Save(context.Background(), r))
	}
}

func record(kind printing.DocumentKind, state printing.JobState, finished time.Time) printing.JobRecord {
	r := printing.JobRecord{
		ID:         uuid.New(),
		URL:        "https://app.cravings.live/" + string(kind) + "/1",
		Kind:       kind,
		Strategy:   printing.StrategyESCPOS,
		State:      state,
		CreatedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
		Duration:   time.Second,
	}
	if state == printing.JobStateFailed {
		r.FailureCode = printing.ErrCodePrintFailure
		r.FailureReason = "paper out"
	}
	return r
}

func TestRun(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")
	now := time.Now()
	bill := record(printing.DocumentKindBill, printing.JobStateFailed, now)
	kot := record(printing.DocumentKindKOT, printing.JobStateCompleted, now.Add(-time.Minute))
	old := record(printing.DocumentKindKOT, printing.JobStateCompleted, now.Add(-48*time.Hour))
	seed(t, dsn, bill, kot, old)

	tests := []struct {
		name     string
		args     []string
		exitCode int
		contains []string
		excludes []string
	}{
		{"usage", []string{"-dsn", dsn}, 1, []string{"Usage:"}, nil},
		{"unknown command", []string{"-dsn", dsn, "vacuum"}, 1, []string{"Usage:"}, nil},
		{"migrate", []string{"-dsn", dsn, "migrate"}, 0, []string{"up to date"}, nil},
		{"list all", []string{"-dsn", dsn, "list"}, 0, []string{bill.ID.String(), kot.ID.String(), "paper out"}, nil},
		{"list failed bills", []string{"-dsn", dsn, "list", "-kind", "bill", "-state", "failed"}, 0, []string{bill.ID.String()}, []string{kot.ID.String()}},
		{"list bad kind", []string{"-dsn", dsn, "list", "-kind", "invoice"}, 1, nil, nil},
		{"show", []string{"-dsn", dsn, "show", bill.ID.String()}, 0, []string{"PRINT_FAILURE: paper out", bill.URL}, nil},
		{"show unknown", []string{"-dsn", dsn, "show", uuid.NewString()}, 1, nil, nil},
		{"show bad id", []string{"-dsn", dsn, "show", "nope"}, 1, nil, nil},
		{"prune bad age", []string{"-dsn", dsn, "prune", "soon"}, 1, nil, nil},
		{"prune", []string{"-dsn", dsn, "prune", "24h"}, 0, []string{"Deleted 1 job(s)"}, nil},
		{"list after prune", []string{"-dsn", dsn, "list"}, 0, []string{bill.ID.String()}, []string{old.ID.String()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			assert.Equal(t, tt.exitCode, code, stderr.String())
			for _, s := range tt.contains {
				assert.Contains(t, stdout.String(), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, stdout.String(), s)
			}
		})
	}
}

func TestRun_EmptyHistory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"-dsn", dsn, "list"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "No jobs recorded")
}
