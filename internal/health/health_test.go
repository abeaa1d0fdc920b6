package health

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

func seedAccountWithChannel(t *testing.T, st *store.Store, maxConn int) (*model.Account, *model.Channel) {
	t.Helper()
	id, err := st.CreateAccount(&model.Account{Name: "acct", Server: "host", Enabled: true})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	account, err := st.GetAccount(id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if _, err := st.CreateCredential(&model.Credential{AccountID: id, Username: "u", Password: "p", MaxConnections: maxConn, Enabled: true}); err != nil {
		t.Fatalf("create credential: %v", err)
	}
	chID, err := st.UpsertChannel(&model.Channel{AccountID: id, ExternalStreamID: "1", Name: "Ch1", IsActive: true, IsVisible: true, LastSeen: time.Now()})
	if err != nil {
		t.Fatalf("upsert channel: %v", err)
	}
	ch, err := st.GetChannel(chID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	return account, ch
}

type fakeAnalyzer struct {
	result Analysis
	err    error
}

func (f fakeAnalyzer) Analyze(ctx context.Context, streamURL string, duration time.Duration, userAgent string) (Analysis, error) {
	return f.result, f.err
}

func TestScan_SuccessMarksHealthy(t *testing.T) {
	st := newTestStore(t)
	account, ch := seedAccountWithChannel(t, st, 2)

	m := New(st, fakeAnalyzer{result: Analysis{Result: ResultSuccess}}, Config{
		ReservedConnections: 0,
		ScanInterval:        time.Hour,
		AnalysisDuration:    time.Second,
		FailureThreshold:    3,
		MinHoursApart:       6 * time.Hour,
	})

	stats, err := m.Scan(context.Background(), account.ID, 10)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if stats.Succeeded != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	status, err := st.GetChannelHealthStatus(ch.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.Status != model.HealthHealthy {
		t.Errorf("Status = %q, want healthy", status.Status)
	}
}

func TestScan_ReservedConnectionsBlocksScan(t *testing.T) {
	st := newTestStore(t)
	account, _ := seedAccountWithChannel(t, st, 1)

	m := New(st, fakeAnalyzer{result: Analysis{Result: ResultSuccess}}, Config{ReservedConnections: 1})
	stats, err := m.Scan(context.Background(), account.ID, 10)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if stats.Scanned != 0 {
		t.Errorf("expected no scans when reserved connections exhaust capacity, got %+v", stats)
	}
}

func TestScan_FailureThresholdMarksDown(t *testing.T) {
	st := newTestStore(t)
	account, ch := seedAccountWithChannel(t, st, 2)

	m := New(st, fakeAnalyzer{result: Analysis{Result: ResultConnectionFailed}}, Config{
		ScanInterval:     0,
		AnalysisDuration: time.Second,
		FailureThreshold: 2,
		MinHoursApart:    0,
	})

	for i := 0; i < 2; i++ {
		if _, err := m.Scan(context.Background(), account.ID, 10); err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
	}

	status, err := st.GetChannelHealthStatus(ch.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.Status != model.HealthDown {
		t.Errorf("Status = %q, want down (distinct periods=%d)", status.Status, status.DistinctFailurePeriods)
	}
}

func TestScan_AutoDisableOnDown(t *testing.T) {
	st := newTestStore(t)
	account, ch := seedAccountWithChannel(t, st, 2)

	m := New(st, fakeAnalyzer{result: Analysis{Result: ResultConnectionFailed}}, Config{
		FailureThreshold: 1,
		MinHoursApart:    0,
		AutoDisableDown:  true,
	})
	if _, err := m.Scan(context.Background(), account.ID, 10); err != nil {
		t.Fatalf("scan: %v", err)
	}

	updated, err := st.GetChannel(ch.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if updated.IsVisible {
		t.Errorf("expected channel hidden after auto-disable")
	}
}

func TestScan_BlackScreenThreshold(t *testing.T) {
	st := newTestStore(t)
	account, ch := seedAccountWithChannel(t, st, 2)

	m := New(st, fakeAnalyzer{result: Analysis{Result: ResultSuccess, BlackFrameRatio: 0.99}}, Config{
		FailureThreshold:     3,
		MinHoursApart:        time.Hour,
		BlackScreenThreshold: 0.95,
	})
	stats, err := m.Scan(context.Background(), account.ID, 10)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("expected black screen counted as failure, got %+v", stats)
	}

	checks, err := st.ListChannelHealthChecksAll(ch.ID)
	if err != nil {
		t.Fatalf("list checks: %v", err)
	}
	if len(checks) != 1 || checks[0].Result != ResultBlackScreen {
		t.Fatalf("expected black_screen result, got %+v", checks)
	}
}

func TestReenable(t *testing.T) {
	st := newTestStore(t)
	_, ch := seedAccountWithChannel(t, st, 2)
	if err := st.SetChannelVisibility(ch.ID, false); err != nil {
		t.Fatalf("set visibility: %v", err)
	}
	if err := st.PutChannelHealthStatus(&model.ChannelHealthStatus{ChannelID: ch.ID, Status: model.HealthDown}); err != nil {
		t.Fatalf("put status: %v", err)
	}

	m := New(st, NoopAnalyzer{}, Config{})
	if err := m.Reenable(ch.ID); err != nil {
		t.Fatalf("reenable: %v", err)
	}

	status, err := st.GetChannelHealthStatus(ch.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.Status != model.HealthUnknown {
		t.Errorf("Status = %q, want unknown", status.Status)
	}
	updated, err := st.GetChannel(ch.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if !updated.IsVisible {
		t.Errorf("expected visibility restored")
	}
}

func TestIgnore(t *testing.T) {
	st := newTestStore(t)
	_, ch := seedAccountWithChannel(t, st, 2)

	m := New(st, NoopAnalyzer{}, Config{})
	if err := m.Ignore(ch.ID, "known offline"); err != nil {
		t.Fatalf("ignore: %v", err)
	}
	status, err := st.GetChannelHealthStatus(ch.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.Status != model.HealthIgnored || status.IgnoreReason != "known offline" {
		t.Errorf("unexpected status: %+v", status)
	}
}
