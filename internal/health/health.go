// Package health scans channels with spare credential capacity, classifies
// stream liveness, and maintains each channel's aggregate health status.
package health

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/snapetech/iptvcore/internal/connmgr"
	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/store"
)

// Probe outcomes, per the analyzer contract.
const (
	ResultSuccess          = "success"
	ResultConnectionFailed = "connection_failed"
	ResultTimeout          = "timeout"
	ResultHTTPError        = "http_error"
	ResultBlackScreen      = "black_screen"
	ResultAudioOnly        = "audio_only"
	ResultInvalidStream    = "invalid_stream"
	ResultSkipped          = "skipped"
)

// Analysis is the outcome of probing one stream URL.
type Analysis struct {
	Result          string
	HTTPCode        int
	BlackFrameRatio float64
	HasVideo        bool
	HasAudio        bool
}

// Analyzer classifies a live stream. ffprobe/ffmpeg invocation is out of
// scope for this module; an operator wires a real implementation.
type Analyzer interface {
	Analyze(ctx context.Context, streamURL string, duration time.Duration, userAgent string) (Analysis, error)
}

// NoopAnalyzer always reports skipped, for deployments without a wired probe.
type NoopAnalyzer struct{}

func (NoopAnalyzer) Analyze(ctx context.Context, streamURL string, duration time.Duration, userAgent string) (Analysis, error) {
	return Analysis{Result: ResultSkipped}, nil
}

// Config holds HealthMonitor tunables; see internal/config for their env keys.
type Config struct {
	ReservedConnections  int
	ScanInterval         time.Duration
	AnalysisDuration     time.Duration
	FailureThreshold     int
	MinHoursApart        time.Duration
	AutoDisableDown      bool
	BlackScreenThreshold float64
}

// Monitor runs health scans against a Store using an Analyzer.
type Monitor struct {
	st       *store.Store
	analyzer Analyzer
	cfg      Config
}

// New builds a Monitor. A nil analyzer defaults to NoopAnalyzer.
func New(st *store.Store, analyzer Analyzer, cfg Config) *Monitor {
	if analyzer == nil {
		analyzer = NoopAnalyzer{}
	}
	return &Monitor{st: st, analyzer: analyzer, cfg: cfg}
}

// Stats summarizes one Scan run.
type Stats struct {
	Scanned   int
	Succeeded int
	Failed    int
	Skipped   int
}

// Scan probes up to maxChannels eligible channels on accountID, respecting
// the reserved-connection floor so health checks never compete with live
// client streams for the last available credential slot.
func (m *Monitor) Scan(ctx context.Context, accountID int64, maxChannels int) (Stats, error) {
	account, err := m.st.GetAccount(accountID)
	if err != nil {
		return Stats{}, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return Stats{}, fmt.Errorf("account %d not found", accountID)
	}

	creds, err := m.st.ListCredentials(accountID, true)
	if err != nil {
		return Stats{}, fmt.Errorf("list credentials: %w", err)
	}
	var totalMax int
	for _, c := range creds {
		totalMax += c.MaxConnections
	}

	active, err := m.st.CountActiveStreamsForAccount(accountID)
	if err != nil {
		return Stats{}, fmt.Errorf("count active streams: %w", err)
	}

	available := totalMax - active - m.cfg.ReservedConnections
	if available <= 0 {
		return Stats{}, nil
	}
	if available < maxChannels {
		maxChannels = available
	}
	if maxChannels <= 0 {
		return Stats{}, nil
	}

	channels, err := m.st.ListChannelsForHealthScan(accountID, m.cfg.ScanInterval, time.Now(), maxChannels)
	if err != nil {
		return Stats{}, fmt.Errorf("list channels for health scan: %w", err)
	}

	var stats Stats
	for _, ch := range channels {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		result := m.probeChannel(ctx, account, ch)
		stats.Scanned++
		switch result.Result {
		case ResultSuccess:
			stats.Succeeded++
		case ResultSkipped:
			stats.Skipped++
		default:
			stats.Failed++
		}
	}
	return stats, nil
}

func (m *Monitor) probeChannel(ctx context.Context, account *model.Account, ch *model.Channel) Analysis {
	cred, err := connmgr.GetAvailableCredential(m.st, account.ID)
	if err != nil {
		return m.recordAndClassify(ch, Analysis{Result: ResultConnectionFailed}, 0)
	}

	token, err := connmgr.AcquireConnection(m.st, cred.ID, ch.ExternalStreamID, "healthmonitor")
	if err != nil {
		return m.recordAndClassify(ch, Analysis{Result: ResultConnectionFailed}, 0)
	}
	defer connmgr.ReleaseConnection(m.st, token)

	streamURL := streamURLFor(account, cred, ch)
	start := time.Now()
	analysis, err := m.analyzer.Analyze(ctx, streamURL, m.cfg.AnalysisDuration, account.UserAgent)
	if err != nil {
		analysis = Analysis{Result: ResultInvalidStream}
	}
	if analysis.Result == ResultSuccess && analysis.BlackFrameRatio >= m.cfg.BlackScreenThreshold {
		analysis.Result = ResultBlackScreen
	}
	return m.recordAndClassify(ch, analysis, time.Since(start))
}

func streamURLFor(account *model.Account, cred *model.Credential, ch *model.Channel) string {
	id, _ := strconv.Atoi(ch.ExternalStreamID)
	return fmt.Sprintf("http://%s/live/%s/%s/%d.ts", account.Server, cred.Username, cred.Password, id)
}

// recordAndClassify writes the probe result to channel_health_checks, updates the
// aggregate channel_health_status, and returns the analysis unchanged for the caller's stats.
func (m *Monitor) recordAndClassify(ch *model.Channel, analysis Analysis, duration time.Duration) Analysis {
	now := time.Now()
	var httpCode *int
	if analysis.HTTPCode != 0 {
		c := analysis.HTTPCode
		httpCode = &c
	}
	check := &model.ChannelHealthCheck{
		ChannelID:  ch.ID,
		Result:     analysis.Result,
		HTTPCode:   httpCode,
		DurationMS: int(duration.Milliseconds()),
		CheckedAt:  now,
	}
	if _, err := m.st.AddChannelHealthCheck(check); err != nil {
		return analysis
	}

	status, err := m.st.GetChannelHealthStatus(ch.ID)
	if err != nil {
		return analysis
	}
	m.applyResult(ch, status, analysis, now)
	return analysis
}

func (m *Monitor) applyResult(ch *model.Channel, status *model.ChannelHealthStatus, analysis Analysis, now time.Time) {
	status.Total++
	if analysis.Result == ResultSuccess {
		status.Successful++
		status.ConsecutiveFailures = 0
		status.LastSuccessAt = &now
		if status.Status == model.HealthDown || status.Status == model.HealthDegraded {
			status.Status = model.HealthHealthy
			status.DistinctFailurePeriods = 0
		} else if status.Status == model.HealthUnknown {
			status.Status = model.HealthHealthy
		}
	} else if analysis.Result != ResultSkipped {
		status.Failed++
		status.ConsecutiveFailures++
		status.LastFailureAt = &now

		periods, err := m.countDistinctFailurePeriods(ch.ID, status)
		if err == nil {
			status.DistinctFailurePeriods = periods
		}

		if status.DistinctFailurePeriods >= m.cfg.FailureThreshold {
			status.Status = model.HealthDown
			if m.cfg.AutoDisableDown {
				_ = m.st.SetChannelVisibility(ch.ID, false)
				status.AutoDisabledAt = &now
			}
		} else {
			status.Status = model.HealthDegraded
		}
	}
	status.LastCheckAt = &now
	_ = m.st.PutChannelHealthStatus(status)
}

// countDistinctFailurePeriods walks every failure check since the last success (or all
// checks, if the channel has never succeeded) in time order, counting clusters separated
// by at least MinHoursApart of wall time between consecutive failures.
func (m *Monitor) countDistinctFailurePeriods(channelID int64, status *model.ChannelHealthStatus) (int, error) {
	since := time.Time{}
	if status.LastSuccessAt != nil {
		since = *status.LastSuccessAt
	}
	checks, err := m.st.ListChannelHealthChecksSince(channelID, since)
	if err != nil {
		return 0, err
	}

	periods := 0
	var lastFailure time.Time
	for _, c := range checks {
		if c.Result == ResultSuccess || c.Result == ResultSkipped {
			continue
		}
		if lastFailure.IsZero() || c.CheckedAt.Sub(lastFailure) >= m.cfg.MinHoursApart {
			periods++
		}
		lastFailure = c.CheckedAt
	}
	return periods, nil
}

// Reenable clears a channel's health status back to unknown, restoring visibility.
func (m *Monitor) Reenable(channelID int64) error {
	status, err := m.st.GetChannelHealthStatus(channelID)
	if err != nil {
		return fmt.Errorf("get channel health status: %w", err)
	}
	now := time.Now()
	status.Status = model.HealthUnknown
	status.ConsecutiveFailures = 0
	status.DistinctFailurePeriods = 0
	status.ManuallyReenabledAt = &now
	status.IgnoreReason = ""
	if err := m.st.PutChannelHealthStatus(status); err != nil {
		return err
	}
	return m.st.SetChannelVisibility(channelID, true)
}

// Ignore marks a channel ignored, excluding it from future scans until Reenable is called.
func (m *Monitor) Ignore(channelID int64, reason string) error {
	status, err := m.st.GetChannelHealthStatus(channelID)
	if err != nil {
		return fmt.Errorf("get channel health status: %w", err)
	}
	status.Status = model.HealthIgnored
	status.IgnoreReason = reason
	return m.st.PutChannelHealthStatus(status)
}
