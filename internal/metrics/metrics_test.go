package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"weekly-menu-planner/internal/backend"
	"weekly-menu-planner/internal/database"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "metrics.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	s := NewStore(db.SQL)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMapCall(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		m := MapCall(backend.CallOverlap, "req-1", 1500*time.Millisecond, nil)
		if m.Outcome != OutcomeSuccess || m.LatencyMS != 1500 || m.RequestID != "req-1" {
			t.Errorf("Unexpected metric: %+v", m)
		}
	})

	t.Run("APIError", func(t *testing.T) {
		err := &backend.APIError{Call: backend.CallGroceryList, StatusCode: 400}
		m := MapCall(backend.CallGroceryList, "req-2", time.Millisecond, err)
		if m.Outcome != OutcomeAPIError || m.StatusCode != 400 {
			t.Errorf("Unexpected metric: %+v", m)
		}
	})

	t.Run("TransportError", func(t *testing.T) {
		m := MapCall(backend.CallSuggestions, "req-3", time.Millisecond, errors.New("dial tcp: refused"))
		if m.Outcome != OutcomeError || m.StatusCode != 0 {
			t.Errorf("Unexpected metric: %+v", m)
		}
	})
}

func TestStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	records := []CallMetric{
		{Call: backend.CallSuggestions, Outcome: OutcomeSuccess, LatencyMS: 100, Timestamp: now},
		{Call: backend.CallSuggestions, Outcome: OutcomeError, LatencyMS: 300, Timestamp: now},
		{Call: backend.CallOverlap, Outcome: OutcomeSuccess, LatencyMS: 50, Timestamp: now},
		{Call: backend.CallOverlap, Outcome: OutcomeSuccess, LatencyMS: 50, Timestamp: now.AddDate(0, 0, -40)},
	}
	for _, m := range records {
		if err := s.Record(ctx, m); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
	}

	t.Run("DailyUsage", func(t *testing.T) {
		usage, err := s.GetDailyUsage(ctx, 7)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(usage) != 1 {
			t.Fatalf("Expected 1 day, got %d: %+v", len(usage), usage)
		}
		if usage[0].Date != now.Format("2006-01-02") || usage[0].TotalCalls != 3 || usage[0].Failures != 1 {
			t.Errorf("Unexpected usage: %+v", usage[0])
		}
	})

	t.Run("CallSummary", func(t *testing.T) {
		summary, err := s.GetCallSummary(ctx, 7)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(summary) != 2 {
			t.Fatalf("Expected 2 calls, got %+v", summary)
		}
		if summary[1].Call != backend.CallSuggestions || summary[1].AvgLatencyMS != 200 {
			t.Errorf("Unexpected summary: %+v", summary[1])
		}
	})

	t.Run("Cleanup", func(t *testing.T) {
		n, err := s.Cleanup(ctx, 30)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if n != 1 {
			t.Errorf("Expected 1 row removed, got %d", n)
		}
	})
}

func TestRecorder(t *testing.T) {
	s := newTestStore(t)
	reg := prometheus.NewRegistry()
	collectors := NewCollectors(reg)
	r := NewRecorder(s, collectors, nil)

	r.ObserveCall(backend.CallUpdate, "req-1", 20*time.Millisecond, nil)
	r.ObserveCall(backend.CallUpdate, "req-2", 30*time.Millisecond, &backend.APIError{StatusCode: 502})

	if got := testutil.ToFloat64(collectors.CallsTotal.WithLabelValues(backend.CallUpdate, OutcomeSuccess)); got != 1 {
		t.Errorf("Expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(collectors.CallsTotal.WithLabelValues(backend.CallUpdate, OutcomeAPIError)); got != 1 {
		t.Errorf("Expected 1 api error, got %v", got)
	}

	summary, err := s.GetCallSummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(summary) != 1 || summary[0].TotalCalls != 2 || summary[0].Failures != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestGetSysHealth(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.bin"), make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}

	h := GetSysHealth(dir)
	if h.DataDiskSize != "2.0 kB" {
		t.Errorf("Expected 2.0 kB, got %s", h.DataDiskSize)
	}
	if h.Goroutines < 1 || h.Alloc == "" {
		t.Errorf("Unexpected health: %+v", h)
	}
}
