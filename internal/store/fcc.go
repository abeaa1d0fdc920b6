package store

import (
	"database/sql"
	"fmt"

	"github.com/snapetech/iptvcore/internal/model"
)

// UpsertFccFacility inserts or updates an FccFacility keyed by facility_id.
func (s *Store) UpsertFccFacility(f *model.FccFacility) error {
	_, err := s.DB.Exec(`INSERT INTO fcc_facilities(facility_id, callsign, community_city, community_state,
			network_affiliation, nielsen_dma, virtual_channel, service_code, active)
		VALUES(?,?,?,?,?,?,?,?,?)
		ON CONFLICT(facility_id) DO UPDATE SET
			callsign=excluded.callsign, community_city=excluded.community_city, community_state=excluded.community_state,
			network_affiliation=excluded.network_affiliation, nielsen_dma=excluded.nielsen_dma,
			virtual_channel=excluded.virtual_channel, service_code=excluded.service_code, active=excluded.active`,
		f.FacilityID, f.Callsign, f.CommunityCity, f.CommunityState, f.NetworkAffiliation, f.NielsenDMA,
		f.VirtualChannel, f.ServiceCode, boolToInt(f.Active))
	if err != nil {
		return fmt.Errorf("upsert fcc facility: %w", err)
	}
	return nil
}

// FccFacilityQuery is the strategy-style filter passed to QueryFccFacilities.
// Any of network/state/city/channel may be zero-valued to omit that predicate; city, when
// set, matches ILIKE-style (case-insensitive substring).
type FccFacilityQuery struct {
	NetworkAffiliation string
	State              string
	City               string
	MatchDMA           bool // when true, City matches nielsen_dma instead of community_city
	VirtualChannel     int  // 0 = omit
}

// QueryFccFacilities returns active facilities matching q, ordered by id for determinism.
func (s *Store) QueryFccFacilities(q FccFacilityQuery) ([]*model.FccFacility, error) {
	query := `SELECT id, facility_id, callsign, community_city, community_state, network_affiliation,
		nielsen_dma, virtual_channel, service_code, active FROM fcc_facilities WHERE active=1`
	var args []any
	if q.NetworkAffiliation != "" {
		query += ` AND network_affiliation LIKE ?`
		args = append(args, "%"+q.NetworkAffiliation+"%")
	}
	if q.State != "" {
		query += ` AND community_state = ?`
		args = append(args, q.State)
	}
	if q.City != "" {
		if q.MatchDMA {
			query += ` AND nielsen_dma LIKE ?`
		} else {
			query += ` AND community_city LIKE ?`
		}
		args = append(args, "%"+q.City+"%")
	}
	if q.VirtualChannel > 0 {
		query += ` AND virtual_channel = ?`
		args = append(args, q.VirtualChannel)
	}
	query += ` ORDER BY id ASC`
	rows, err := s.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fcc facilities: %w", err)
	}
	defer rows.Close()
	var out []*model.FccFacility
	for rows.Next() {
		f, err := scanFccFacility(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanFccFacility(row rowScanner) (*model.FccFacility, error) {
	var f model.FccFacility
	var active int
	if err := row.Scan(&f.ID, &f.FacilityID, &f.Callsign, &f.CommunityCity, &f.CommunityState,
		&f.NetworkAffiliation, &f.NielsenDMA, &f.VirtualChannel, &f.ServiceCode, &active); err != nil {
		return nil, fmt.Errorf("scan fcc facility: %w", err)
	}
	f.Active = active != 0
	return &f, nil
}

// GetFccCorrection loads the correction row for a callsign, if any.
func (s *Store) GetFccCorrection(callsign string) (*model.FccCorrection, error) {
	var c model.FccCorrection
	var network, city, state, dma sql.NullString
	var channel sql.NullInt64
	err := s.DB.QueryRow(`SELECT callsign, network_affiliation, community_city, community_state, nielsen_dma, virtual_channel
		FROM fcc_corrections WHERE callsign=?`, callsign).
		Scan(&c.Callsign, &network, &city, &state, &dma, &channel)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fcc correction: %w", err)
	}
	if network.Valid {
		c.NetworkAffiliation = &network.String
	}
	if city.Valid {
		c.CommunityCity = &city.String
	}
	if state.Valid {
		c.CommunityState = &state.String
	}
	if dma.Valid {
		c.NielsenDMA = &dma.String
	}
	if channel.Valid {
		v := int(channel.Int64)
		c.VirtualChannel = &v
	}
	return &c, nil
}

// ListFccCorrections returns every correction row, used to build the in-memory cache.
func (s *Store) ListFccCorrections() ([]*model.FccCorrection, error) {
	rows, err := s.DB.Query(`SELECT callsign, network_affiliation, community_city, community_state, nielsen_dma, virtual_channel
		FROM fcc_corrections`)
	if err != nil {
		return nil, fmt.Errorf("list fcc corrections: %w", err)
	}
	defer rows.Close()
	var out []*model.FccCorrection
	for rows.Next() {
		var c model.FccCorrection
		var network, city, state, dma sql.NullString
		var channel sql.NullInt64
		if err := rows.Scan(&c.Callsign, &network, &city, &state, &dma, &channel); err != nil {
			return nil, fmt.Errorf("scan fcc correction: %w", err)
		}
		if network.Valid {
			c.NetworkAffiliation = &network.String
		}
		if city.Valid {
			c.CommunityCity = &city.String
		}
		if state.Valid {
			c.CommunityState = &state.String
		}
		if dma.Valid {
			c.NielsenDMA = &dma.String
		}
		if channel.Valid {
			v := int(channel.Int64)
			c.VirtualChannel = &v
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
