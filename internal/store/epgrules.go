package store

import (
	"fmt"
	"strings"

	"github.com/snapetech/iptvcore/internal/model"
)

// CreateEpgMatchRuleSet inserts rs and returns its new ID.
func (s *Store) CreateEpgMatchRuleSet(rs *model.EpgMatchRuleSet) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO epg_match_rule_sets(name, is_default) VALUES(?,?)`, rs.Name, boolToInt(rs.IsDefault))
	if err != nil {
		return 0, fmt.Errorf("create epg match rule set: %w", err)
	}
	return res.LastInsertId()
}

// AddEpgMatchRule appends a rule to an EpgMatchRuleSet.
func (s *Store) AddEpgMatchRule(r *model.EpgMatchRule) (int64, error) {
	action := r.Action
	if action == "" {
		action = model.MatchActionApply
	}
	res, err := s.DB.Exec(`INSERT INTO epg_match_rules(rule_set_id, priority, enabled, action, match_type, source, pattern,
			category_pattern, category_exclude_pattern, country_codes, required_tags, excluded_tags,
			min_confidence, stop_on_match, fallback_epg_channel_id)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.RuleSetID, r.Priority, boolToInt(r.Enabled), action, r.MatchType, r.Source, r.Pattern,
		r.CategoryPattern, r.CategoryExcludePattern, strings.Join(r.CountryCodes, ","),
		strings.Join(r.RequiredTags, ","), strings.Join(r.ExcludedTags, ","), r.MinConfidence,
		boolToInt(r.StopOnMatch), r.FallbackEpgChannelID)
	if err != nil {
		return 0, fmt.Errorf("add epg match rule: %w", err)
	}
	return res.LastInsertId()
}

// AssignEpgMatchRuleSet assigns an EpgMatchRuleSet to an Account.
func (s *Store) AssignEpgMatchRuleSet(accountID, ruleSetID int64, priority int) error {
	_, err := s.DB.Exec(`INSERT INTO account_epg_match_rule_sets(account_id, rule_set_id, priority) VALUES(?,?,?)
		ON CONFLICT(account_id, rule_set_id) DO UPDATE SET priority=excluded.priority`, accountID, ruleSetID, priority)
	if err != nil {
		return fmt.Errorf("assign epg match rule set: %w", err)
	}
	return nil
}

// EpgMatchRulesForAccount returns the aggregated, enabled, priority-ordered rule list for an
// account: assigned rulesets in assignment order, else every is_default ruleset.
func (s *Store) EpgMatchRulesForAccount(accountID int64) ([]*model.EpgMatchRule, error) {
	rows, err := s.DB.Query(`SELECT rule_set_id FROM account_epg_match_rule_sets WHERE account_id=? ORDER BY priority ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("assigned epg match rule sets: %w", err)
	}
	var ruleSetIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ruleSetIDs = append(ruleSetIDs, id)
	}
	rows.Close()
	if len(ruleSetIDs) == 0 {
		defRows, err := s.DB.Query(`SELECT id FROM epg_match_rule_sets WHERE is_default=1 ORDER BY id ASC`)
		if err != nil {
			return nil, fmt.Errorf("default epg match rule sets: %w", err)
		}
		for defRows.Next() {
			var id int64
			if err := defRows.Scan(&id); err != nil {
				defRows.Close()
				return nil, err
			}
			ruleSetIDs = append(ruleSetIDs, id)
		}
		defRows.Close()
	}
	var out []*model.EpgMatchRule
	for _, rsID := range ruleSetIDs {
		rules, err := s.epgMatchRulesForRuleSet(rsID)
		if err != nil {
			return nil, err
		}
		out = append(out, rules...)
	}
	return out, nil
}

func (s *Store) epgMatchRulesForRuleSet(ruleSetID int64) ([]*model.EpgMatchRule, error) {
	rows, err := s.DB.Query(`SELECT id, rule_set_id, priority, enabled, action, match_type, source, pattern,
			category_pattern, category_exclude_pattern, country_codes, required_tags, excluded_tags,
			min_confidence, stop_on_match, fallback_epg_channel_id
		FROM epg_match_rules WHERE rule_set_id=? AND enabled=1 ORDER BY priority ASC`, ruleSetID)
	if err != nil {
		return nil, fmt.Errorf("epg match rules for rule set: %w", err)
	}
	defer rows.Close()
	var out []*model.EpgMatchRule
	for rows.Next() {
		var r model.EpgMatchRule
		var enabled, stop int
		var countries, required, excluded string
		if err := rows.Scan(&r.ID, &r.RuleSetID, &r.Priority, &enabled, &r.Action, &r.MatchType, &r.Source, &r.Pattern,
			&r.CategoryPattern, &r.CategoryExcludePattern, &countries, &required, &excluded,
			&r.MinConfidence, &stop, &r.FallbackEpgChannelID); err != nil {
			return nil, fmt.Errorf("scan epg match rule: %w", err)
		}
		r.Enabled = enabled != 0
		r.StopOnMatch = stop != 0
		r.CountryCodes = splitNonEmpty(countries)
		r.RequiredTags = splitNonEmpty(required)
		r.ExcludedTags = splitNonEmpty(excluded)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ListFccMatchNetworks returns every configured FccMatchNetwork.
func (s *Store) ListFccMatchNetworks() ([]*model.FccMatchNetwork, error) {
	rows, err := s.DB.Query(`SELECT id, name, tag_patterns FROM fcc_match_networks`)
	if err != nil {
		return nil, fmt.Errorf("list fcc match networks: %w", err)
	}
	defer rows.Close()
	var out []*model.FccMatchNetwork
	for rows.Next() {
		var n model.FccMatchNetwork
		var patterns string
		if err := rows.Scan(&n.ID, &n.Name, &patterns); err != nil {
			return nil, fmt.Errorf("scan fcc match network: %w", err)
		}
		n.TagPatterns = splitNonEmpty(patterns)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// CreateFccMatchNetwork inserts a network record.
func (s *Store) CreateFccMatchNetwork(n *model.FccMatchNetwork) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO fcc_match_networks(name, tag_patterns) VALUES(?,?)`,
		n.Name, strings.Join(n.TagPatterns, ","))
	if err != nil {
		return 0, fmt.Errorf("create fcc match network: %w", err)
	}
	return res.LastInsertId()
}

// ListFccMatchChannelPatterns returns configured channel-number patterns in priority order.
func (s *Store) ListFccMatchChannelPatterns() ([]*model.FccMatchChannelPattern, error) {
	rows, err := s.DB.Query(`SELECT id, priority, pattern, group_index, networks
		FROM fcc_match_channel_patterns ORDER BY priority ASC`)
	if err != nil {
		return nil, fmt.Errorf("list fcc match channel patterns: %w", err)
	}
	defer rows.Close()
	var out []*model.FccMatchChannelPattern
	for rows.Next() {
		var p model.FccMatchChannelPattern
		var networks string
		if err := rows.Scan(&p.ID, &p.Priority, &p.Pattern, &p.Group, &networks); err != nil {
			return nil, fmt.Errorf("scan fcc match channel pattern: %w", err)
		}
		p.Networks = splitNonEmpty(networks)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// CreateFccMatchChannelPattern inserts a channel-number pattern.
func (s *Store) CreateFccMatchChannelPattern(p *model.FccMatchChannelPattern) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO fcc_match_channel_patterns(priority, pattern, group_index, networks)
		VALUES(?,?,?,?)`, p.Priority, p.Pattern, p.Group, strings.Join(p.Networks, ","))
	if err != nil {
		return 0, fmt.Errorf("create fcc match channel pattern: %w", err)
	}
	return res.LastInsertId()
}

// ListFccMatchLocationPatterns returns configured location patterns in priority order.
func (s *Store) ListFccMatchLocationPatterns() ([]*model.FccMatchLocationPattern, error) {
	rows, err := s.DB.Query(`SELECT id, priority, pattern, city_group, state_group
		FROM fcc_match_location_patterns ORDER BY priority ASC`)
	if err != nil {
		return nil, fmt.Errorf("list fcc match location patterns: %w", err)
	}
	defer rows.Close()
	var out []*model.FccMatchLocationPattern
	for rows.Next() {
		var p model.FccMatchLocationPattern
		if err := rows.Scan(&p.ID, &p.Priority, &p.Pattern, &p.CityGroup, &p.StateGroup); err != nil {
			return nil, fmt.Errorf("scan fcc match location pattern: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// CreateFccMatchLocationPattern inserts a location pattern.
func (s *Store) CreateFccMatchLocationPattern(p *model.FccMatchLocationPattern) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO fcc_match_location_patterns(priority, pattern, city_group, state_group)
		VALUES(?,?,?,?)`, p.Priority, p.Pattern, p.CityGroup, p.StateGroup)
	if err != nil {
		return 0, fmt.Errorf("create fcc match location pattern: %w", err)
	}
	return res.LastInsertId()
}

// ListFccMatchStrategies returns configured strategies in priority order.
func (s *Store) ListFccMatchStrategies() ([]*model.FccMatchStrategy, error) {
	rows, err := s.DB.Query(`SELECT id, priority, strategy_type, requires_network, requires_channel,
		requires_state, requires_city, city_matches_dma FROM fcc_match_strategies ORDER BY priority ASC`)
	if err != nil {
		return nil, fmt.Errorf("list fcc match strategies: %w", err)
	}
	defer rows.Close()
	var out []*model.FccMatchStrategy
	for rows.Next() {
		var st model.FccMatchStrategy
		var network, channel, state, city, dma int
		if err := rows.Scan(&st.ID, &st.Priority, &st.StrategyType, &network, &channel, &state, &city, &dma); err != nil {
			return nil, fmt.Errorf("scan fcc match strategy: %w", err)
		}
		st.RequiresNetwork, st.RequiresChannel, st.RequiresState, st.RequiresCity, st.CityMatchesDMA =
			network != 0, channel != 0, state != 0, city != 0, dma != 0
		out = append(out, &st)
	}
	return out, rows.Err()
}

// CreateFccMatchStrategy inserts a strategy record.
func (s *Store) CreateFccMatchStrategy(st *model.FccMatchStrategy) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO fcc_match_strategies(priority, strategy_type, requires_network,
			requires_channel, requires_state, requires_city, city_matches_dma)
		VALUES(?,?,?,?,?,?,?)`, st.Priority, st.StrategyType, boolToInt(st.RequiresNetwork),
		boolToInt(st.RequiresChannel), boolToInt(st.RequiresState), boolToInt(st.RequiresCity), boolToInt(st.CityMatchesDMA))
	if err != nil {
		return 0, fmt.Errorf("create fcc match strategy: %w", err)
	}
	return res.LastInsertId()
}

// ListEpgExclusionPatterns returns every configured exclusion pattern.
func (s *Store) ListEpgExclusionPatterns() ([]*model.EpgExclusionPattern, error) {
	rows, err := s.DB.Query(`SELECT id, pattern_type, pattern, is_regex, case_sensitive, hide_channel
		FROM epg_exclusion_patterns`)
	if err != nil {
		return nil, fmt.Errorf("list epg exclusion patterns: %w", err)
	}
	defer rows.Close()
	var out []*model.EpgExclusionPattern
	for rows.Next() {
		var p model.EpgExclusionPattern
		var isRegex, caseSensitive, hide int
		if err := rows.Scan(&p.ID, &p.PatternType, &p.Pattern, &isRegex, &caseSensitive, &hide); err != nil {
			return nil, fmt.Errorf("scan epg exclusion pattern: %w", err)
		}
		p.IsRegex, p.CaseSensitive, p.HideChannel = isRegex != 0, caseSensitive != 0, hide != 0
		out = append(out, &p)
	}
	return out, rows.Err()
}

// CreateEpgExclusionPattern inserts an exclusion pattern.
func (s *Store) CreateEpgExclusionPattern(p *model.EpgExclusionPattern) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO epg_exclusion_patterns(pattern_type, pattern, is_regex, case_sensitive, hide_channel)
		VALUES(?,?,?,?,?)`, p.PatternType, p.Pattern, boolToInt(p.IsRegex), boolToInt(p.CaseSensitive), boolToInt(p.HideChannel))
	if err != nil {
		return 0, fmt.Errorf("create epg exclusion pattern: %w", err)
	}
	return res.LastInsertId()
}

// ListEpgChannelNameMappings returns configured name mappings in priority order.
func (s *Store) ListEpgChannelNameMappings() ([]*model.EpgChannelNameMapping, error) {
	rows, err := s.DB.Query(`SELECT id, priority, old_name, new_name, match_type, case_sensitive
		FROM epg_channel_name_mappings ORDER BY priority ASC`)
	if err != nil {
		return nil, fmt.Errorf("list epg channel name mappings: %w", err)
	}
	defer rows.Close()
	var out []*model.EpgChannelNameMapping
	for rows.Next() {
		var m model.EpgChannelNameMapping
		var caseSensitive int
		if err := rows.Scan(&m.ID, &m.Priority, &m.OldName, &m.NewName, &m.MatchType, &caseSensitive); err != nil {
			return nil, fmt.Errorf("scan epg channel name mapping: %w", err)
		}
		m.CaseSensitive = caseSensitive != 0
		out = append(out, &m)
	}
	return out, rows.Err()
}

// CreateEpgChannelNameMapping inserts a name mapping.
func (s *Store) CreateEpgChannelNameMapping(m *model.EpgChannelNameMapping) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO epg_channel_name_mappings(priority, old_name, new_name, match_type, case_sensitive)
		VALUES(?,?,?,?,?)`, m.Priority, m.OldName, m.NewName, m.MatchType, boolToInt(m.CaseSensitive))
	if err != nil {
		return 0, fmt.Errorf("create epg channel name mapping: %w", err)
	}
	return res.LastInsertId()
}
