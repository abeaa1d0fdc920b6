package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/snapetech/iptvcore/internal/model"
)

// CreateEpgSource inserts src and returns its new ID.
func (s *Store) CreateEpgSource(src *model.EpgSource) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO epg_sources(name, source_type, url, priority, enabled) VALUES(?,?,?,?,?)`,
		src.Name, src.SourceType, src.URL, src.Priority, boolToInt(src.Enabled))
	if err != nil {
		return 0, fmt.Errorf("create epg source: %w", err)
	}
	return res.LastInsertId()
}

// ListEpgSources returns every EpgSource, optionally enabled-only.
func (s *Store) ListEpgSources(enabledOnly bool) ([]*model.EpgSource, error) {
	q := `SELECT id, name, source_type, url, priority, enabled, last_sync, last_sync_status, last_sync_message, channel_count
		FROM epg_sources`
	if enabledOnly {
		q += " WHERE enabled=1"
	}
	q += " ORDER BY priority ASC"
	rows, err := s.DB.Query(q)
	if err != nil {
		return nil, fmt.Errorf("list epg sources: %w", err)
	}
	defer rows.Close()
	var out []*model.EpgSource
	for rows.Next() {
		src, err := scanEpgSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func scanEpgSource(row rowScanner) (*model.EpgSource, error) {
	var src model.EpgSource
	var enabled int
	var lastSync sql.NullTime
	if err := row.Scan(&src.ID, &src.Name, &src.SourceType, &src.URL, &src.Priority, &enabled,
		&lastSync, &src.LastSyncStatus, &src.LastSyncMessage, &src.ChannelCount); err != nil {
		return nil, fmt.Errorf("scan epg source: %w", err)
	}
	src.Enabled = enabled != 0
	if lastSync.Valid {
		src.LastSync = lastSync.Time
	}
	return &src, nil
}

// UpdateEpgSourceSyncResult records the outcome of an EPG source sync.
func (s *Store) UpdateEpgSourceSyncResult(sourceID int64, status, message string, channelCount int, at time.Time) error {
	_, err := s.DB.Exec(`UPDATE epg_sources SET last_sync=?, last_sync_status=?, last_sync_message=?, channel_count=? WHERE id=?`,
		at, status, message, channelCount, sourceID)
	if err != nil {
		return fmt.Errorf("update epg source sync result: %w", err)
	}
	return nil
}

// UpsertEpgChannel inserts or updates an EpgChannel keyed by (source_id, channel_id).
func (s *Store) UpsertEpgChannel(ec *model.EpgChannel) (int64, error) {
	names, err := json.Marshal(ec.DisplayNames)
	if err != nil {
		return 0, fmt.Errorf("marshal display names: %w", err)
	}
	res, err := s.DB.Exec(`INSERT INTO epg_channels(source_id, channel_id, display_names_json, icon_url, url,
			program_count, first_program, last_program, last_seen)
		VALUES(?,?,?,?,?,?,?,?,?)
		ON CONFLICT(source_id, channel_id) DO UPDATE SET
			display_names_json=excluded.display_names_json, icon_url=excluded.icon_url, url=excluded.url,
			program_count=excluded.program_count, first_program=excluded.first_program,
			last_program=excluded.last_program, last_seen=excluded.last_seen`,
		ec.SourceID, ec.ChannelID, string(names), ec.IconURL, ec.URL, ec.ProgramCount,
		nullableTime(ec.FirstProgram), nullableTime(ec.LastProgram), ec.LastSeen)
	if err != nil {
		return 0, fmt.Errorf("upsert epg channel: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		return id, nil
	}
	var id int64
	err = s.DB.QueryRow(`SELECT id FROM epg_channels WHERE source_id=? AND channel_id=?`, ec.SourceID, ec.ChannelID).Scan(&id)
	return id, err
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// ListEpgChannels returns every EpgChannel, optionally filtered to one EpgSource (sourceID<=0 means all).
func (s *Store) ListEpgChannels(sourceID int64) ([]*model.EpgChannel, error) {
	q := `SELECT id, source_id, channel_id, display_names_json, icon_url, url, program_count,
		first_program, last_program, last_seen FROM epg_channels`
	var rows *sql.Rows
	var err error
	if sourceID > 0 {
		rows, err = s.DB.Query(q+" WHERE source_id=?", sourceID)
	} else {
		rows, err = s.DB.Query(q)
	}
	if err != nil {
		return nil, fmt.Errorf("list epg channels: %w", err)
	}
	defer rows.Close()
	var out []*model.EpgChannel
	for rows.Next() {
		ec, err := scanEpgChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}

func scanEpgChannel(row rowScanner) (*model.EpgChannel, error) {
	var ec model.EpgChannel
	var namesJSON string
	var first, last, lastSeen sql.NullTime
	if err := row.Scan(&ec.ID, &ec.SourceID, &ec.ChannelID, &namesJSON, &ec.IconURL, &ec.URL,
		&ec.ProgramCount, &first, &last, &lastSeen); err != nil {
		return nil, fmt.Errorf("scan epg channel: %w", err)
	}
	_ = json.Unmarshal([]byte(namesJSON), &ec.DisplayNames)
	if first.Valid {
		ec.FirstProgram = first.Time
	}
	if last.Valid {
		ec.LastProgram = last.Time
	}
	if lastSeen.Valid {
		ec.LastSeen = lastSeen.Time
	}
	return &ec, nil
}

// GetEpgChannel loads an EpgChannel by ID.
func (s *Store) GetEpgChannel(id int64) (*model.EpgChannel, error) {
	row := s.DB.QueryRow(`SELECT id, source_id, channel_id, display_names_json, icon_url, url, program_count,
		first_program, last_program, last_seen FROM epg_channels WHERE id=?`, id)
	ec, err := scanEpgChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ec, err
}

// GetChannelEpgMapping loads an existing mapping for a channel, if any.
func (s *Store) GetChannelEpgMapping(channelID int64) (*model.ChannelEpgMapping, error) {
	var m model.ChannelEpgMapping
	var override int
	err := s.DB.QueryRow(`SELECT channel_id, epg_channel_id, match_type, confidence, is_override
		FROM channel_epg_mappings WHERE channel_id=?`, channelID).
		Scan(&m.ChannelID, &m.EpgChannelID, &m.MatchType, &m.Confidence, &override)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel epg mapping: %w", err)
	}
	m.IsOverride = override != 0
	return &m, nil
}

// SetChannelEpgMapping replaces (or creates) a channel's EPG mapping. At most one mapping may
// exist per Channel.
func (s *Store) SetChannelEpgMapping(m *model.ChannelEpgMapping) error {
	_, err := s.DB.Exec(`INSERT INTO channel_epg_mappings(channel_id, epg_channel_id, match_type, confidence, is_override)
		VALUES(?,?,?,?,?)
		ON CONFLICT(channel_id) DO UPDATE SET
			epg_channel_id=excluded.epg_channel_id, match_type=excluded.match_type,
			confidence=excluded.confidence, is_override=excluded.is_override`,
		m.ChannelID, m.EpgChannelID, m.MatchType, m.Confidence, boolToInt(m.IsOverride))
	if err != nil {
		return fmt.Errorf("set channel epg mapping: %w", err)
	}
	return nil
}

// CreateChannelLink inserts a ChannelLink if one does not already exist between the pair.
// Returns (id, created).
func (s *Store) CreateChannelLink(l *model.ChannelLink) (int64, bool, error) {
	var existing int64
	err := s.DB.QueryRow(`SELECT id FROM channel_links WHERE from_channel_id=? AND to_channel_id=?`,
		l.FromChannelID, l.ToChannelID).Scan(&existing)
	if err == nil {
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("check existing channel link: %w", err)
	}
	res, err := s.DB.Exec(`INSERT INTO channel_links(from_channel_id, to_channel_id, time_offset_hours, auto_detected)
		VALUES(?,?,?,?)`, l.FromChannelID, l.ToChannelID, l.TimeOffsetHours, boolToInt(l.AutoDetected))
	if err != nil {
		return 0, false, fmt.Errorf("create channel link: %w", err)
	}
	id, err := res.LastInsertId()
	return id, true, err
}

// ListChannelLinksFrom returns every ChannelLink whose from_channel_id matches any in ids.
func (s *Store) ListChannelLinksFrom(ids []int64) ([]*model.ChannelLink, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}
	rows, err := s.DB.Query(fmt.Sprintf(`SELECT id, from_channel_id, to_channel_id, time_offset_hours, auto_detected
		FROM channel_links WHERE from_channel_id IN (%s)`, string(placeholders)), args...)
	if err != nil {
		return nil, fmt.Errorf("list channel links: %w", err)
	}
	defer rows.Close()
	var out []*model.ChannelLink
	for rows.Next() {
		var l model.ChannelLink
		var auto int
		if err := rows.Scan(&l.ID, &l.FromChannelID, &l.ToChannelID, &l.TimeOffsetHours, &auto); err != nil {
			return nil, fmt.Errorf("scan channel link: %w", err)
		}
		l.AutoDetected = auto != 0
		out = append(out, &l)
	}
	return out, rows.Err()
}
