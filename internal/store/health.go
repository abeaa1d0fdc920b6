package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/snapetech/iptvcore/internal/model"
)

// CreateActiveStream inserts a new session row. session_token must be globally unique;
// a conflict is surfaced as an error for the caller to retry with a fresh token.
func (s *Store) CreateActiveStream(a *model.ActiveStream) error {
	_, err := s.DB.Exec(`INSERT INTO active_streams(session_token, credential_id, stream_id, client_ip, started_at, last_activity)
		VALUES(?,?,?,?,?,?)`, a.SessionToken, a.CredentialID, a.StreamID, a.ClientIP, a.StartedAt, a.LastActivity)
	if err != nil {
		return fmt.Errorf("create active stream: %w", err)
	}
	return nil
}

// GetActiveStream loads a session by token.
func (s *Store) GetActiveStream(token string) (*model.ActiveStream, error) {
	var a model.ActiveStream
	err := s.DB.QueryRow(`SELECT session_token, credential_id, stream_id, client_ip, started_at, last_activity
		FROM active_streams WHERE session_token=?`, token).
		Scan(&a.SessionToken, &a.CredentialID, &a.StreamID, &a.ClientIP, &a.StartedAt, &a.LastActivity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active stream: %w", err)
	}
	return &a, nil
}

// DeleteActiveStream removes a session by token. Returns true if a row was deleted.
func (s *Store) DeleteActiveStream(token string) (bool, error) {
	res, err := s.DB.Exec(`DELETE FROM active_streams WHERE session_token=?`, token)
	if err != nil {
		return false, fmt.Errorf("delete active stream: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TouchActiveStream updates last_activity for a session. Returns false if the token is unknown.
func (s *Store) TouchActiveStream(token string, at time.Time) (bool, error) {
	res, err := s.DB.Exec(`UPDATE active_streams SET last_activity=? WHERE session_token=?`, at, token)
	if err != nil {
		return false, fmt.Errorf("touch active stream: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListStaleActiveStreams returns sessions whose last_activity predates cutoff, optionally
// scoped to one account's credentials.
func (s *Store) ListStaleActiveStreams(accountID int64, cutoff time.Time) ([]*model.ActiveStream, error) {
	q := `SELECT a.session_token, a.credential_id, a.stream_id, a.client_ip, a.started_at, a.last_activity
		FROM active_streams a`
	args := []any{}
	if accountID > 0 {
		q += ` JOIN credentials c ON c.id = a.credential_id WHERE c.account_id = ? AND a.last_activity < ?`
		args = append(args, accountID, cutoff)
	} else {
		q += ` WHERE a.last_activity < ?`
		args = append(args, cutoff)
	}
	rows, err := s.DB.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list stale active streams: %w", err)
	}
	defer rows.Close()
	var out []*model.ActiveStream
	for rows.Next() {
		var a model.ActiveStream
		if err := rows.Scan(&a.SessionToken, &a.CredentialID, &a.StreamID, &a.ClientIP, &a.StartedAt, &a.LastActivity); err != nil {
			return nil, fmt.Errorf("scan active stream: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// CountActiveStreamsForAccount returns the total live session count across an account's credentials.
func (s *Store) CountActiveStreamsForAccount(accountID int64) (int, error) {
	var n int
	err := s.DB.QueryRow(`SELECT COUNT(*) FROM active_streams a JOIN credentials c ON c.id=a.credential_id
		WHERE c.account_id=?`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active streams for account: %w", err)
	}
	return n, nil
}

// GetChannelHealthStatus loads (or synthesizes an unknown) health status for a channel.
func (s *Store) GetChannelHealthStatus(channelID int64) (*model.ChannelHealthStatus, error) {
	var h model.ChannelHealthStatus
	var lastCheck, lastSuccess, lastFailure, autoDisabled, manualReenable sql.NullTime
	err := s.DB.QueryRow(`SELECT channel_id, status, total, successful, failed, consecutive_failures,
			distinct_failure_periods, last_check_at, last_success_at, last_failure_at,
			auto_disabled_at, manually_reenabled_at, ignore_reason
		FROM channel_health_status WHERE channel_id=?`, channelID).
		Scan(&h.ChannelID, &h.Status, &h.Total, &h.Successful, &h.Failed, &h.ConsecutiveFailures,
			&h.DistinctFailurePeriods, &lastCheck, &lastSuccess, &lastFailure, &autoDisabled, &manualReenable, &h.IgnoreReason)
	if err == sql.ErrNoRows {
		return &model.ChannelHealthStatus{ChannelID: channelID, Status: model.HealthUnknown}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel health status: %w", err)
	}
	assignOptTime(&h.LastCheckAt, lastCheck)
	assignOptTime(&h.LastSuccessAt, lastSuccess)
	assignOptTime(&h.LastFailureAt, lastFailure)
	assignOptTime(&h.AutoDisabledAt, autoDisabled)
	assignOptTime(&h.ManuallyReenabledAt, manualReenable)
	return &h, nil
}

func assignOptTime(dst **time.Time, nt sql.NullTime) {
	if nt.Valid {
		t := nt.Time
		*dst = &t
	}
}

// PutChannelHealthStatus upserts the full health status row for a channel.
func (s *Store) PutChannelHealthStatus(h *model.ChannelHealthStatus) error {
	_, err := s.DB.Exec(`INSERT INTO channel_health_status(channel_id, status, total, successful, failed,
			consecutive_failures, distinct_failure_periods, last_check_at, last_success_at, last_failure_at,
			auto_disabled_at, manually_reenabled_at, ignore_reason)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(channel_id) DO UPDATE SET
			status=excluded.status, total=excluded.total, successful=excluded.successful, failed=excluded.failed,
			consecutive_failures=excluded.consecutive_failures, distinct_failure_periods=excluded.distinct_failure_periods,
			last_check_at=excluded.last_check_at, last_success_at=excluded.last_success_at,
			last_failure_at=excluded.last_failure_at, auto_disabled_at=excluded.auto_disabled_at,
			manually_reenabled_at=excluded.manually_reenabled_at, ignore_reason=excluded.ignore_reason`,
		h.ChannelID, h.Status, h.Total, h.Successful, h.Failed, h.ConsecutiveFailures, h.DistinctFailurePeriods,
		optTime(h.LastCheckAt), optTime(h.LastSuccessAt), optTime(h.LastFailureAt),
		optTime(h.AutoDisabledAt), optTime(h.ManuallyReenabledAt), h.IgnoreReason)
	if err != nil {
		return fmt.Errorf("put channel health status: %w", err)
	}
	return nil
}

func optTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// AddChannelHealthCheck records one probe outcome.
func (s *Store) AddChannelHealthCheck(c *model.ChannelHealthCheck) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO channel_health_checks(channel_id, result, http_code, duration_ms, analysis, checked_at)
		VALUES(?,?,?,?,?,?)`, c.ChannelID, c.Result, c.HTTPCode, c.DurationMS, c.Analysis, c.CheckedAt)
	if err != nil {
		return 0, fmt.Errorf("add channel health check: %w", err)
	}
	return res.LastInsertId()
}

// ListChannelHealthChecksSince returns every check for a channel at or after since, ordered by time.
func (s *Store) ListChannelHealthChecksSince(channelID int64, since time.Time) ([]*model.ChannelHealthCheck, error) {
	rows, err := s.DB.Query(`SELECT id, channel_id, result, http_code, duration_ms, analysis, checked_at
		FROM channel_health_checks WHERE channel_id=? AND checked_at >= ? ORDER BY checked_at ASC`, channelID, since)
	if err != nil {
		return nil, fmt.Errorf("list channel health checks: %w", err)
	}
	defer rows.Close()
	var out []*model.ChannelHealthCheck
	for rows.Next() {
		var c model.ChannelHealthCheck
		var httpCode sql.NullInt64
		if err := rows.Scan(&c.ID, &c.ChannelID, &c.Result, &httpCode, &c.DurationMS, &c.Analysis, &c.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan channel health check: %w", err)
		}
		if httpCode.Valid {
			v := int(httpCode.Int64)
			c.HTTPCode = &v
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ListChannelHealthChecksAll returns every check ever recorded for a channel, ordered by time.
func (s *Store) ListChannelHealthChecksAll(channelID int64) ([]*model.ChannelHealthCheck, error) {
	return s.ListChannelHealthChecksSince(channelID, time.Time{})
}

// ListChannelsForHealthScan returns channels on accountID eligible for a health probe:
// active, not down/ignored, and either never checked or last checked before the cutoff
// (now - scanInterval). Results are prioritized never-checked first, then degraded,
// then oldest last_check_at.
func (s *Store) ListChannelsForHealthScan(accountID int64, scanInterval time.Duration, now time.Time, limit int) ([]*model.Channel, error) {
	cutoff := now.Add(-scanInterval)
	rows, err := s.DB.Query(`SELECT c.id, c.account_id, c.category_id, c.external_stream_id, c.name, c.cleaned_name,
			c.epg_channel_id, c.is_active, c.is_visible, c.is_ppv, c.last_seen
		FROM channels c
		LEFT JOIN channel_health_status h ON h.channel_id = c.id
		WHERE c.account_id = ? AND c.is_active = 1
			AND (h.status IS NULL OR h.status NOT IN ('down', 'ignored'))
			AND (h.last_check_at IS NULL OR h.last_check_at < ?)
		ORDER BY
			CASE WHEN h.last_check_at IS NULL THEN 0 WHEN h.status = 'degraded' THEN 1 ELSE 2 END,
			h.last_check_at ASC
		LIMIT ?`, accountID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list channels for health scan: %w", err)
	}
	defer rows.Close()
	var out []*model.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetSyncMetadata reads a persisted key, returning "" if absent.
func (s *Store) GetSyncMetadata(key string) (string, error) {
	var v string
	err := s.DB.QueryRow(`SELECT value FROM sync_metadata WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get sync metadata: %w", err)
	}
	return v, nil
}

// SetSyncMetadata persists a key/value pair.
func (s *Store) SetSyncMetadata(key, value string) error {
	_, err := s.DB.Exec(`INSERT INTO sync_metadata(key, value) VALUES(?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set sync metadata: %w", err)
	}
	return nil
}
