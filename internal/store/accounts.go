package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/snapetech/iptvcore/internal/model"
)

// CreateAccount inserts a and returns its new ID.
func (s *Store) CreateAccount(a *model.Account) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO accounts(name, server, user_agent, enabled, legacy_username, legacy_password, live_only)
		VALUES(?,?,?,?,?,?,?)`,
		a.Name, a.Server, a.UserAgent, boolToInt(a.Enabled), a.LegacyUsername, a.LegacyPassword, boolToInt(a.LiveOnly))
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	return res.LastInsertId()
}

// GetAccount loads an Account by ID, returning (nil, nil) if it doesn't exist.
func (s *Store) GetAccount(id int64) (*model.Account, error) {
	row := s.DB.QueryRow(`SELECT id, name, server, user_agent, enabled, legacy_username, legacy_password, live_only,
		last_sync, last_sync_status, last_sync_message FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// ListAccounts returns every Account, optionally filtered to enabled-only.
func (s *Store) ListAccounts(enabledOnly bool) ([]*model.Account, error) {
	q := `SELECT id, name, server, user_agent, enabled, legacy_username, legacy_password, live_only,
		last_sync, last_sync_status, last_sync_message FROM accounts`
	if enabledOnly {
		q += " WHERE enabled = 1"
	}
	rows, err := s.DB.Query(q)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	var out []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateAccountSyncResult records the outcome of a sync attempt.
func (s *Store) UpdateAccountSyncResult(accountID int64, status, message string, at time.Time) error {
	_, err := s.DB.Exec(`UPDATE accounts SET last_sync=?, last_sync_status=?, last_sync_message=? WHERE id=?`,
		at, status, message, accountID)
	if err != nil {
		return fmt.Errorf("update account sync result: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var a model.Account
	var enabled, liveOnly int
	var lastSync sql.NullTime
	if err := row.Scan(&a.ID, &a.Name, &a.Server, &a.UserAgent, &enabled, &a.LegacyUsername, &a.LegacyPassword,
		&liveOnly, &lastSync, &a.LastSyncStatus, &a.LastSyncMessage); err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Enabled = enabled != 0
	a.LiveOnly = liveOnly != 0
	if lastSync.Valid {
		a.LastSync = lastSync.Time
	}
	return &a, nil
}

// CreateCredential inserts c and returns its new ID.
func (s *Store) CreateCredential(c *model.Credential) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO credentials(account_id, username, password, max_connections, active_connections, enabled)
		VALUES(?,?,?,?,0,?)`, c.AccountID, c.Username, c.Password, c.MaxConnections, boolToInt(c.Enabled))
	if err != nil {
		return 0, fmt.Errorf("create credential: %w", err)
	}
	return res.LastInsertId()
}

// ListCredentials returns an Account's Credential rows, optionally enabled-only.
func (s *Store) ListCredentials(accountID int64, enabledOnly bool) ([]*model.Credential, error) {
	q := `SELECT id, account_id, username, password, max_connections, active_connections, enabled
		FROM credentials WHERE account_id = ?`
	if enabledOnly {
		q += " AND enabled = 1"
	}
	rows, err := s.DB.Query(q, accountID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()
	var out []*model.Credential
	for rows.Next() {
		var c model.Credential
		var enabled int
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Username, &c.Password, &c.MaxConnections, &c.ActiveConnections, &enabled); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		c.Enabled = enabled != 0
		out = append(out, &c)
	}
	return out, rows.Err()
}

// GetCredential loads a Credential by ID, returning (nil, nil) if it doesn't exist.
func (s *Store) GetCredential(id int64) (*model.Credential, error) {
	var c model.Credential
	var enabled int
	err := s.DB.QueryRow(`SELECT id, account_id, username, password, max_connections, active_connections, enabled
		FROM credentials WHERE id = ?`, id).
		Scan(&c.ID, &c.AccountID, &c.Username, &c.Password, &c.MaxConnections, &c.ActiveConnections, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	c.Enabled = enabled != 0
	return &c, nil
}

// RecomputeCredentialActiveConnections sets active_connections from COUNT(active_streams),
// per the invariant that this counter is never blindly incremented/decremented.
func (s *Store) RecomputeCredentialActiveConnections(credentialID int64) (int, error) {
	var n int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM active_streams WHERE credential_id = ?`, credentialID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active streams: %w", err)
	}
	if _, err := s.DB.Exec(`UPDATE credentials SET active_connections = ? WHERE id = ?`, n, credentialID); err != nil {
		return 0, fmt.Errorf("recompute active_connections: %w", err)
	}
	return n, nil
}

// FindAccountByCredentials resolves a downstream (username, password) pair to the
// Account it authenticates, checking enabled Credential rows first and falling back
// to the Account's own legacy username/password. Returns (nil, nil, nil) if no match.
func (s *Store) FindAccountByCredentials(username, password string) (*model.Account, *model.Credential, error) {
	row := s.DB.QueryRow(`SELECT c.id, c.account_id, c.username, c.password, c.max_connections, c.active_connections, c.enabled
		FROM credentials c WHERE c.username = ? AND c.password = ? AND c.enabled = 1`, username, password)
	var c model.Credential
	var enabled int
	err := row.Scan(&c.ID, &c.AccountID, &c.Username, &c.Password, &c.MaxConnections, &c.ActiveConnections, &enabled)
	if err == nil {
		c.Enabled = enabled != 0
		account, err := s.GetAccount(c.AccountID)
		if err != nil {
			return nil, nil, err
		}
		return account, &c, nil
	}
	if err != sql.ErrNoRows {
		return nil, nil, fmt.Errorf("find account by credentials: %w", err)
	}

	var accountID int64
	err = s.DB.QueryRow(`SELECT id FROM accounts WHERE legacy_username = ? AND legacy_password = ? AND enabled = 1`,
		username, password).Scan(&accountID)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find account by legacy credentials: %w", err)
	}
	account, err := s.GetAccount(accountID)
	if err != nil {
		return nil, nil, err
	}
	return account, nil, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
