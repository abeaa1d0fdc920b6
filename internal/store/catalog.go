package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/snapetech/iptvcore/internal/model"
)

// UpsertCategory inserts or updates a Category keyed by (account_id, external_category_id,
// stream_type). StreamType defaults to live when unset, so callers that predate the
// VOD/series catalog split don't need to change.
func (s *Store) UpsertCategory(c *model.Category) (int64, error) {
	streamType := c.StreamType
	if streamType == "" {
		streamType = model.StreamTypeLive
	}
	res, err := s.DB.Exec(`INSERT INTO categories(account_id, external_category_id, name, stream_type, is_ppv, last_seen)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(account_id, external_category_id, stream_type) DO UPDATE SET
			name=excluded.name, is_ppv=excluded.is_ppv, last_seen=excluded.last_seen`,
		c.AccountID, c.ExternalCategoryID, c.Name, streamType, boolToInt(c.IsPPV), c.LastSeen)
	if err != nil {
		return 0, fmt.Errorf("upsert category: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		return id, nil
	}
	var id int64
	err = s.DB.QueryRow(`SELECT id FROM categories WHERE account_id=? AND external_category_id=? AND stream_type=?`,
		c.AccountID, c.ExternalCategoryID, streamType).Scan(&id)
	return id, err
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var c model.Category
	var ppv int
	var lastSeen sql.NullTime
	if err := row.Scan(&c.ID, &c.AccountID, &c.ExternalCategoryID, &c.Name, &c.StreamType, &ppv, &lastSeen); err != nil {
		return nil, err
	}
	c.IsPPV = ppv != 0
	if lastSeen.Valid {
		c.LastSeen = lastSeen.Time
	}
	return &c, nil
}

const categoryCols = `id, account_id, external_category_id, name, stream_type, is_ppv, last_seen`

// GetCategory loads a Category by ID, returning (nil, nil) if it doesn't exist.
func (s *Store) GetCategory(id int64) (*model.Category, error) {
	c, err := scanCategory(s.DB.QueryRow(`SELECT `+categoryCols+` FROM categories WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListCategories returns every live Category for an account.
func (s *Store) ListCategories(accountID int64) ([]*model.Category, error) {
	return s.ListCategoriesByType(accountID, model.StreamTypeLive)
}

// ListCategoriesByType returns every Category of the given stream type for an account.
func (s *Store) ListCategoriesByType(accountID int64, streamType string) ([]*model.Category, error) {
	rows, err := s.DB.Query(`SELECT `+categoryCols+` FROM categories WHERE account_id=? AND stream_type=?`, accountID, streamType)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	var out []*model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertChannel inserts or updates a Channel keyed by (account_id, external_stream_id,
// stream_type). StreamType defaults to live when unset, so callers that predate the
// VOD/series catalog split don't need to change.
func (s *Store) UpsertChannel(c *model.Channel) (int64, error) {
	streamType := c.StreamType
	if streamType == "" {
		streamType = model.StreamTypeLive
	}
	res, err := s.DB.Exec(`INSERT INTO channels(account_id, category_id, external_stream_id, name, cleaned_name,
			epg_channel_id, stream_type, is_active, is_visible, is_ppv, last_seen)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(account_id, external_stream_id, stream_type) DO UPDATE SET
			category_id=excluded.category_id, name=excluded.name, cleaned_name=excluded.cleaned_name,
			epg_channel_id=excluded.epg_channel_id, is_active=excluded.is_active, is_ppv=excluded.is_ppv,
			last_seen=excluded.last_seen`,
		c.AccountID, c.CategoryID, c.ExternalStreamID, c.Name, c.CleanedName, c.EpgChannelID, streamType,
		boolToInt(c.IsActive), boolToInt(c.IsVisible), boolToInt(c.IsPPV), c.LastSeen)
	if err != nil {
		return 0, fmt.Errorf("upsert channel: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		return id, nil
	}
	var id int64
	err = s.DB.QueryRow(`SELECT id FROM channels WHERE account_id=? AND external_stream_id=? AND stream_type=?`,
		c.AccountID, c.ExternalStreamID, streamType).Scan(&id)
	return id, err
}

// DeactivateStaleChannels marks every Channel of an account whose last_seen is older than
// cutoff as is_active=false. Returns the number of rows affected.
func (s *Store) DeactivateStaleChannels(accountID int64, cutoff time.Time) (int64, error) {
	res, err := s.DB.Exec(`UPDATE channels SET is_active=0 WHERE account_id=? AND is_active=1 AND last_seen < ?`,
		accountID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deactivate stale channels: %w", err)
	}
	return res.RowsAffected()
}

func scanChannel(row rowScanner) (*model.Channel, error) {
	var c model.Channel
	var active, visible, ppv int
	var lastSeen sql.NullTime
	if err := row.Scan(&c.ID, &c.AccountID, &c.CategoryID, &c.ExternalStreamID, &c.Name, &c.CleanedName,
		&c.EpgChannelID, &c.StreamType, &active, &visible, &ppv, &lastSeen); err != nil {
		return nil, fmt.Errorf("scan channel: %w", err)
	}
	c.IsActive = active != 0
	c.IsVisible = visible != 0
	c.IsPPV = ppv != 0
	if lastSeen.Valid {
		c.LastSeen = lastSeen.Time
	}
	return &c, nil
}

const channelCols = `id, account_id, category_id, external_stream_id, name, cleaned_name,
	epg_channel_id, stream_type, is_active, is_visible, is_ppv, last_seen`

// GetChannel loads a Channel by ID, returning (nil, nil) if it doesn't exist.
func (s *Store) GetChannel(id int64) (*model.Channel, error) {
	c, err := scanChannel(s.DB.QueryRow(`SELECT `+channelCols+` FROM channels WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// ListChannels returns every live Channel for an account.
func (s *Store) ListChannels(accountID int64) ([]*model.Channel, error) {
	return s.ListChannelsByType(accountID, model.StreamTypeLive)
}

// ListChannelsByType returns every Channel of the given stream type for an account.
func (s *Store) ListChannelsByType(accountID int64, streamType string) ([]*model.Channel, error) {
	rows, err := s.DB.Query(`SELECT `+channelCols+` FROM channels WHERE account_id=? AND stream_type=?`, accountID, streamType)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
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

// ListActiveVisibleChannels returns live channels eligible for EPG matching: active, visible, non-PPV.
func (s *Store) ListActiveVisibleChannels(accountID int64) ([]*model.Channel, error) {
	rows, err := s.DB.Query(`SELECT `+channelCols+` FROM channels
		WHERE account_id=? AND stream_type=? AND is_active=1 AND is_visible=1 AND is_ppv=0`, accountID, model.StreamTypeLive)
	if err != nil {
		return nil, fmt.Errorf("list active visible channels: %w", err)
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

// ListActiveVisibleChannelsByType returns channels of the given stream type eligible for
// catalog listing: active, visible, non-PPV.
func (s *Store) ListActiveVisibleChannelsByType(accountID int64, streamType string) ([]*model.Channel, error) {
	rows, err := s.DB.Query(`SELECT `+channelCols+` FROM channels
		WHERE account_id=? AND stream_type=? AND is_active=1 AND is_visible=1 AND is_ppv=0`, accountID, streamType)
	if err != nil {
		return nil, fmt.Errorf("list active visible channels by type: %w", err)
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

// SetChannelVisibility updates is_visible for a single channel.
func (s *Store) SetChannelVisibility(channelID int64, visible bool) error {
	_, err := s.DB.Exec(`UPDATE channels SET is_visible=? WHERE id=?`, boolToInt(visible), channelID)
	if err != nil {
		return fmt.Errorf("set channel visibility: %w", err)
	}
	return nil
}

// SetChannelCleanedName updates the cached cleaned_name for a channel.
func (s *Store) SetChannelCleanedName(channelID int64, cleaned string) error {
	_, err := s.DB.Exec(`UPDATE channels SET cleaned_name=? WHERE id=?`, cleaned, channelID)
	if err != nil {
		return fmt.Errorf("set cleaned name: %w", err)
	}
	return nil
}

// GetOrCreateTag returns the Tag ID for name, creating it lazily if absent.
func (s *Store) GetOrCreateTag(name string) (int64, error) {
	var id int64
	err := s.DB.QueryRow(`SELECT id FROM tags WHERE name=?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup tag: %w", err)
	}
	res, err := s.DB.Exec(`INSERT INTO tags(name) VALUES(?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return 0, fmt.Errorf("create tag: %w", err)
	}
	if id, err = res.LastInsertId(); err == nil && id != 0 {
		return id, nil
	}
	err = s.DB.QueryRow(`SELECT id FROM tags WHERE name=?`, name).Scan(&id)
	return id, err
}

// SetChannelTags replaces every ChannelTag of the given source for a channel with tagNames.
func (s *Store) SetChannelTags(channelID int64, source string, tagNames []string) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("begin set channel tags: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM channel_tags WHERE channel_id=? AND source=?`, channelID, source); err != nil {
		return fmt.Errorf("clear channel tags: %w", err)
	}
	for _, name := range tagNames {
		if _, err := tx.Exec(`INSERT INTO tags(name) VALUES(?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
			return fmt.Errorf("create tag: %w", err)
		}
		var tagID int64
		if err := tx.QueryRow(`SELECT id FROM tags WHERE name=?`, name).Scan(&tagID); err != nil {
			return fmt.Errorf("lookup tag: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO channel_tags(channel_id, tag_id, source) VALUES(?,?,?)
			ON CONFLICT(channel_id, tag_id) DO UPDATE SET source=excluded.source`, channelID, tagID, source); err != nil {
			return fmt.Errorf("insert channel tag: %w", err)
		}
	}
	return tx.Commit()
}

// AddChannelTag associates one tag with a channel without clearing existing tags.
func (s *Store) AddChannelTag(channelID int64, name, source string) error {
	tagID, err := s.GetOrCreateTag(name)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(`INSERT INTO channel_tags(channel_id, tag_id, source) VALUES(?,?,?)
		ON CONFLICT(channel_id, tag_id) DO UPDATE SET source=excluded.source`, channelID, tagID, source)
	if err != nil {
		return fmt.Errorf("add channel tag: %w", err)
	}
	return nil
}

// ListChannelTags returns every tag name associated with a channel.
func (s *Store) ListChannelTags(channelID int64) ([]string, error) {
	rows, err := s.DB.Query(`SELECT t.name FROM channel_tags ct JOIN tags t ON t.id=ct.tag_id WHERE ct.channel_id=?`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list channel tags: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan channel tag: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ListChannelTagsBatch returns channel->tag-names for every channel ID given, in bounded
// batches, to respect underlying-store parameter limits.
func (s *Store) ListChannelTagsBatch(channelIDs []int64, batchSize int) (map[int64][]string, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	out := make(map[int64][]string, len(channelIDs))
	for start := 0; start < len(channelIDs); start += batchSize {
		end := start + batchSize
		if end > len(channelIDs) {
			end = len(channelIDs)
		}
		batch := channelIDs[start:end]
		placeholders := make([]byte, 0, len(batch)*2)
		args := make([]any, 0, len(batch))
		for i, id := range batch {
			if i > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, '?')
			args = append(args, id)
		}
		q := fmt.Sprintf(`SELECT ct.channel_id, t.name FROM channel_tags ct JOIN tags t ON t.id=ct.tag_id
			WHERE ct.channel_id IN (%s)`, string(placeholders))
		rows, err := s.DB.Query(q, args...)
		if err != nil {
			return nil, fmt.Errorf("list channel tags batch: %w", err)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var id int64
				var name string
				if err := rows.Scan(&id, &name); err != nil {
					return fmt.Errorf("scan channel tag batch: %w", err)
				}
				out[id] = append(out[id], name)
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
