// Package connmgr load-balances streaming sessions across an account's
// credentials and tracks which ones are currently in use.
package connmgr

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/store"
)

// DefaultStreamTimeout is how long a session can go without a heartbeat
// before CleanupStaleConnections reclaims it.
const DefaultStreamTimeout = 30 * time.Second

// legacyCredentialID marks the pseudo-credential synthesized from an
// Account's own username/password when no Credential rows exist.
const legacyCredentialID = 0

// GetAvailableCredential cleans up stale sessions, then returns the enabled
// Credential with the fewest active connections. If the account has no
// enabled Credential rows, it falls back to a legacy pseudo-credential built from
// the account's own username/password, with no connection limit enforced.
func GetAvailableCredential(st *store.Store, accountID int64) (*model.Credential, error) {
	if _, err := CleanupStaleConnections(st, accountID, DefaultStreamTimeout); err != nil {
		return nil, fmt.Errorf("cleanup stale connections: %w", err)
	}

	creds, err := st.ListCredentials(accountID, true)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	if len(creds) == 0 {
		acct, err := st.GetAccount(accountID)
		if err != nil {
			return nil, fmt.Errorf("get account: %w", err)
		}
		if acct == nil || acct.LegacyUsername == "" {
			return nil, nil
		}
		return &model.Credential{
			ID:             legacyCredentialID,
			AccountID:      accountID,
			Username:       acct.LegacyUsername,
			Password:       acct.LegacyPassword,
			MaxConnections: 0,
			Enabled:        true,
		}, nil
	}

	best := creds[0]
	for _, c := range creds[1:] {
		if c.ActiveConnections < best.ActiveConnections {
			best = c
		}
	}
	return best, nil
}

// AcquireConnection reserves a streaming slot on credentialID and returns a
// fresh session token. credentialID == 0 means the legacy pseudo-credential:
// no capacity check applies and no ActiveStream row is tracked. A non-legacy
// credential at capacity (active >= max, when max > 0) returns an error.
func AcquireConnection(st *store.Store, credentialID int64, streamID, clientIP string) (string, error) {
	token := newSessionToken()

	if credentialID == legacyCredentialID {
		return token, nil
	}

	cred, err := st.GetCredential(credentialID)
	if err != nil {
		return "", fmt.Errorf("get credential: %w", err)
	}
	if cred == nil {
		return "", fmt.Errorf("credential %d not found", credentialID)
	}
	if cred.MaxConnections > 0 && cred.ActiveConnections >= cred.MaxConnections {
		return "", fmt.Errorf("credential %d at capacity (%d/%d)", credentialID, cred.ActiveConnections, cred.MaxConnections)
	}

	now := time.Now().UTC()
	if err := st.CreateActiveStream(&model.ActiveStream{
		SessionToken: token,
		CredentialID: credentialID,
		StreamID:     streamID,
		ClientIP:     clientIP,
		StartedAt:    now,
		LastActivity: now,
	}); err != nil {
		return "", fmt.Errorf("create active stream: %w", err)
	}
	if _, err := st.RecomputeCredentialActiveConnections(credentialID); err != nil {
		return "", fmt.Errorf("recompute active connections: %w", err)
	}
	return token, nil
}

// ReleaseConnection frees a previously acquired session. Releasing an
// unknown or legacy-mode token is not an error; it simply reports no row
// was deleted.
func ReleaseConnection(st *store.Store, sessionToken string) (bool, error) {
	existing, err := st.GetActiveStream(sessionToken)
	if err != nil {
		return false, fmt.Errorf("get active stream: %w", err)
	}
	if existing == nil {
		return false, nil
	}
	deleted, err := st.DeleteActiveStream(sessionToken)
	if err != nil {
		return false, fmt.Errorf("delete active stream: %w", err)
	}
	if deleted {
		if _, err := st.RecomputeCredentialActiveConnections(existing.CredentialID); err != nil {
			return deleted, fmt.Errorf("recompute active connections: %w", err)
		}
	}
	return deleted, nil
}

// UpdateActivity records a heartbeat for an in-flight session so it isn't
// swept up by CleanupStaleConnections.
func UpdateActivity(st *store.Store, sessionToken string) (bool, error) {
	touched, err := st.TouchActiveStream(sessionToken, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("touch active stream: %w", err)
	}
	return touched, nil
}

// CleanupStaleConnections deletes sessions whose last heartbeat is older
// than timeout, optionally scoped to one account's credentials, and
// recomputes the affected credentials' active_connections counters.
func CleanupStaleConnections(st *store.Store, accountID int64, timeout time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-timeout)
	stale, err := st.ListStaleActiveStreams(accountID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale active streams: %w", err)
	}
	touched := make(map[int64]bool)
	removed := 0
	for _, s := range stale {
		deleted, err := st.DeleteActiveStream(s.SessionToken)
		if err != nil {
			return removed, fmt.Errorf("delete stale active stream: %w", err)
		}
		if deleted {
			removed++
			touched[s.CredentialID] = true
		}
	}
	for credID := range touched {
		if _, err := st.RecomputeCredentialActiveConnections(credID); err != nil {
			return removed, fmt.Errorf("recompute active connections: %w", err)
		}
	}
	return removed, nil
}

// CredentialStatus summarizes one Credential's usage for GetConnectionStatus.
type CredentialStatus struct {
	CredentialID      int64
	Username          string
	MaxConnections    int
	ActiveConnections int
	Available         int
	Enabled           bool
}

// Status summarizes an account's overall connection usage.
type Status struct {
	AccountID   int64
	LegacyMode  bool
	TotalMax    int
	TotalActive int
	Available   int
	Credentials []CredentialStatus
}

// GetConnectionStatus reports capacity usage for an account across all of
// its credentials, or a legacy summary when it has no Credential rows.
func GetConnectionStatus(st *store.Store, accountID int64) (Status, error) {
	creds, err := st.ListCredentials(accountID, false)
	if err != nil {
		return Status{}, fmt.Errorf("list credentials: %w", err)
	}
	if len(creds) == 0 {
		active, err := st.CountActiveStreamsForAccount(accountID)
		if err != nil {
			return Status{}, fmt.Errorf("count active streams: %w", err)
		}
		return Status{AccountID: accountID, LegacyMode: true, TotalActive: active}, nil
	}

	status := Status{AccountID: accountID}
	for _, c := range creds {
		avail := -1
		if c.MaxConnections > 0 {
			avail = c.MaxConnections - c.ActiveConnections
			if avail < 0 {
				avail = 0
			}
			status.TotalMax += c.MaxConnections
		}
		status.TotalActive += c.ActiveConnections
		status.Credentials = append(status.Credentials, CredentialStatus{
			CredentialID:      c.ID,
			Username:          c.Username,
			MaxConnections:    c.MaxConnections,
			ActiveConnections: c.ActiveConnections,
			Available:         avail,
			Enabled:           c.Enabled,
		})
	}
	status.Available = status.TotalMax - status.TotalActive
	if status.Available < 0 {
		status.Available = 0
	}
	return status, nil
}

// GetActiveStreams lists every live session across an account's credentials.
func GetActiveStreams(st *store.Store, accountID int64) ([]*model.ActiveStream, error) {
	// every session's last_activity is before a far-future cutoff, so this
	// reuses the stale-lookup query as an unfiltered listing.
	streams, err := st.ListStaleActiveStreams(accountID, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, fmt.Errorf("list active streams: %w", err)
	}
	return streams, nil
}

func newSessionToken() string {
	return uuid.NewString()
}
