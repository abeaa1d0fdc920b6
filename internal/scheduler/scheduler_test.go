package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRunLoop_RunsOnceThenStopsOnCancel(t *testing.T) {
	st := newTestStore(t)
	s := New(st, Config{StartDelay: 0})

	var runs int
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.runLoop(ctx, "test.key", 50*time.Millisecond, func(context.Context) {
			runs++
			if runs == 1 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return after cancel")
	}
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
}

func TestRunLoop_SkipsWhenNotOverdue(t *testing.T) {
	st := newTestStore(t)
	s := New(st, Config{StartDelay: 0})
	s.setLastRun("test.key", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	var runs int
	s.runLoop(ctx, "test.key", time.Hour, func(context.Context) { runs++ })
	if runs != 0 {
		t.Errorf("expected no runs before interval elapses, got %d", runs)
	}
}

func TestLastRunRoundTrip(t *testing.T) {
	st := newTestStore(t)
	s := New(st, Config{})
	if !s.lastRun("missing").IsZero() {
		t.Errorf("expected zero time for missing key")
	}
	now := time.Now().Truncate(time.Second)
	s.setLastRun("k", now)
	got := s.lastRun("k")
	if !got.Equal(now) {
		t.Errorf("lastRun = %v, want %v", got, now)
	}
}

func TestRunEPGSync_SkipsProviderAndSchedulesDirect(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.CreateEpgSource(&model.EpgSource{Name: "p", SourceType: "provider", Enabled: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.CreateEpgSource(&model.EpgSource{Name: "sd", SourceType: "schedules_direct", Enabled: true}); err != nil {
		t.Fatalf("create: %v", err)
	}

	s := New(st, Config{XMLTVFetchTimeout: time.Second})
	s.runEPGSync(context.Background())

	srcs, err := st.ListEpgSources(false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, src := range srcs {
		if src.LastSyncStatus != "" {
			t.Errorf("source %q should not have been synced, got status %q", src.Name, src.LastSyncStatus)
		}
	}
}

func TestRunFCCSync_ReportsDownloadFailure(t *testing.T) {
	st := newTestStore(t)
	s := New(st, Config{FCCArchiveURL: "http://127.0.0.1:1/does-not-exist", FCCArchiveTimeout: 100 * time.Millisecond})
	s.runFCCSync(context.Background())
}
