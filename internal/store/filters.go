package store

import (
	"fmt"

	"github.com/snapetech/iptvcore/internal/model"
)

// CreateFilter inserts f and returns its new ID.
func (s *Store) CreateFilter(f *model.Filter) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO filters(account_id, action, kind, value, enabled) VALUES(?,?,?,?,?)`,
		f.AccountID, f.Action, f.Kind, f.Value, boolToInt(f.Enabled))
	if err != nil {
		return 0, fmt.Errorf("create filter: %w", err)
	}
	return res.LastInsertId()
}

// DeleteFilter removes a filter by ID.
func (s *Store) DeleteFilter(id int64) error {
	_, err := s.DB.Exec(`DELETE FROM filters WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete filter: %w", err)
	}
	return nil
}

// UpdateFilter updates an existing filter's fields.
func (s *Store) UpdateFilter(f *model.Filter) error {
	_, err := s.DB.Exec(`UPDATE filters SET action=?, kind=?, value=?, enabled=? WHERE id=?`,
		f.Action, f.Kind, f.Value, boolToInt(f.Enabled), f.ID)
	if err != nil {
		return fmt.Errorf("update filter: %w", err)
	}
	return nil
}

// ListEnabledFilters returns every enabled Filter for an account.
func (s *Store) ListEnabledFilters(accountID int64) ([]*model.Filter, error) {
	rows, err := s.DB.Query(`SELECT id, account_id, action, kind, value, enabled FROM filters
		WHERE account_id=? AND enabled=1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list enabled filters: %w", err)
	}
	defer rows.Close()
	var out []*model.Filter
	for rows.Next() {
		var f model.Filter
		var enabled int
		if err := rows.Scan(&f.ID, &f.AccountID, &f.Action, &f.Kind, &f.Value, &enabled); err != nil {
			return nil, fmt.Errorf("scan filter: %w", err)
		}
		f.Enabled = enabled != 0
		out = append(out, &f)
	}
	return out, rows.Err()
}
