package store

import (
	"encoding/json"
	"fmt"

	"go.yaml.in/yaml/v2"

	"github.com/snapetech/iptvcore/internal/model"
)

// RuleSetDocument is the export/import document shape for a RuleSet:
// version, type, the rule set's name and its rules, all at the top level.
type RuleSetDocument struct {
	Version int               `json:"version" yaml:"version"`
	Type    string            `json:"type" yaml:"type"`
	Name    string            `json:"name" yaml:"name"`
	Rules   []RuleSetRuleJSON `json:"rules" yaml:"rules"`
}

// RuleSetRuleJSON is one rule within a RuleSetDocument.
type RuleSetRuleJSON struct {
	Pattern        string `json:"pattern" yaml:"pattern"`
	PatternKind    string `json:"pattern_kind" yaml:"pattern_kind"`
	TagName        string `json:"tag_name" yaml:"tag_name"`
	Source         string `json:"source" yaml:"source"`
	RemoveFromName bool   `json:"remove_from_name" yaml:"remove_from_name"`
	Priority       int    `json:"priority" yaml:"priority"`
}

const ruleSetDocumentType = "tag_rule_set"

// ExportRuleSet renders a RuleSet as a RuleSetDocument JSON document.
func (s *Store) ExportRuleSet(ruleSetID int64) ([]byte, error) {
	rs, err := s.GetRuleSet(ruleSetID)
	if err != nil {
		return nil, err
	}
	rules, err := s.tagRulesForRuleSet(ruleSetID)
	if err != nil {
		return nil, err
	}
	doc := RuleSetDocument{Version: 1, Type: ruleSetDocumentType, Name: rs.Name}
	for _, r := range rules {
		doc.Rules = append(doc.Rules, RuleSetRuleJSON{
			Pattern: r.Pattern, PatternKind: r.PatternKind, TagName: r.TagName,
			Source: r.Source, RemoveFromName: r.RemoveFromName, Priority: r.Priority,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ImportRuleSet creates a new RuleSet (not is_default) from a RuleSetDocument JSON document
// and returns its ID. Every rule's (pattern, pattern_kind, tag_name, source, remove_from_name,
// priority) is preserved verbatim.
func (s *Store) ImportRuleSet(data []byte) (int64, error) {
	var doc RuleSetDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("import rule set: %w", err)
	}
	rsID, err := s.CreateRuleSet(&model.RuleSet{Name: doc.Name})
	if err != nil {
		return 0, err
	}
	for _, r := range doc.Rules {
		if _, err := s.AddTagRule(&model.TagRule{
			RuleSetID: rsID, Priority: r.Priority, PatternKind: r.PatternKind, Pattern: r.Pattern,
			TagName: r.TagName, Source: r.Source, RemoveFromName: r.RemoveFromName,
		}); err != nil {
			return 0, err
		}
	}
	return rsID, nil
}

// ExportRuleSetYAML renders a RuleSet as a RuleSetDocument YAML document, for
// operators who prefer to hand-edit rule sets rather than go through the
// JSON export/import round trip.
func (s *Store) ExportRuleSetYAML(ruleSetID int64) ([]byte, error) {
	rs, err := s.GetRuleSet(ruleSetID)
	if err != nil {
		return nil, err
	}
	rules, err := s.tagRulesForRuleSet(ruleSetID)
	if err != nil {
		return nil, err
	}
	doc := RuleSetDocument{Version: 1, Type: ruleSetDocumentType, Name: rs.Name}
	for _, r := range rules {
		doc.Rules = append(doc.Rules, RuleSetRuleJSON{
			Pattern: r.Pattern, PatternKind: r.PatternKind, TagName: r.TagName,
			Source: r.Source, RemoveFromName: r.RemoveFromName, Priority: r.Priority,
		})
	}
	return yaml.Marshal(doc)
}

// ImportRuleSetYAML is ImportRuleSet's YAML counterpart.
func (s *Store) ImportRuleSetYAML(data []byte) (int64, error) {
	var doc RuleSetDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("import rule set yaml: %w", err)
	}
	rsID, err := s.CreateRuleSet(&model.RuleSet{Name: doc.Name})
	if err != nil {
		return 0, err
	}
	for _, r := range doc.Rules {
		if _, err := s.AddTagRule(&model.TagRule{
			RuleSetID: rsID, Priority: r.Priority, PatternKind: r.PatternKind, Pattern: r.Pattern,
			TagName: r.TagName, Source: r.Source, RemoveFromName: r.RemoveFromName,
		}); err != nil {
			return 0, err
		}
	}
	return rsID, nil
}

// CreateRuleSet inserts rs and returns its new ID.
func (s *Store) CreateRuleSet(rs *model.RuleSet) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO rule_sets(name, is_default) VALUES(?,?)`, rs.Name, boolToInt(rs.IsDefault))
	if err != nil {
		return 0, fmt.Errorf("create rule set: %w", err)
	}
	return res.LastInsertId()
}

// AddTagRule appends a TagRule to a RuleSet.
func (s *Store) AddTagRule(r *model.TagRule) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO tag_rules(rule_set_id, priority, pattern_kind, pattern, tag_name, source, remove_from_name)
		VALUES(?,?,?,?,?,?,?)`,
		r.RuleSetID, r.Priority, r.PatternKind, r.Pattern, r.TagName, r.Source, boolToInt(r.RemoveFromName))
	if err != nil {
		return 0, fmt.Errorf("add tag rule: %w", err)
	}
	return res.LastInsertId()
}

// AssignRuleSet assigns a RuleSet to an Account at the given priority.
func (s *Store) AssignRuleSet(accountID, ruleSetID int64, priority int) error {
	_, err := s.DB.Exec(`INSERT INTO account_rule_sets(account_id, rule_set_id, priority) VALUES(?,?,?)
		ON CONFLICT(account_id, rule_set_id) DO UPDATE SET priority=excluded.priority`, accountID, ruleSetID, priority)
	if err != nil {
		return fmt.Errorf("assign rule set: %w", err)
	}
	return nil
}

// RulesForAccount returns the aggregated, ordered rule list for an account: rules
// from every RuleSet explicitly assigned to the account in assignment-priority order, then by
// rule priority within each ruleset; if none are assigned, every RuleSet flagged is_default.
func (s *Store) RulesForAccount(accountID int64) ([]*model.TagRule, error) {
	ruleSetIDs, err := s.assignedRuleSetIDs(accountID)
	if err != nil {
		return nil, err
	}
	if len(ruleSetIDs) == 0 {
		ruleSetIDs, err = s.defaultRuleSetIDs()
		if err != nil {
			return nil, err
		}
	}
	var out []*model.TagRule
	for _, rsID := range ruleSetIDs {
		rules, err := s.tagRulesForRuleSet(rsID)
		if err != nil {
			return nil, err
		}
		out = append(out, rules...)
	}
	return out, nil
}

func (s *Store) assignedRuleSetIDs(accountID int64) ([]int64, error) {
	rows, err := s.DB.Query(`SELECT rule_set_id FROM account_rule_sets WHERE account_id=? ORDER BY priority ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("assigned rule sets: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) defaultRuleSetIDs() ([]int64, error) {
	rows, err := s.DB.Query(`SELECT id FROM rule_sets WHERE is_default=1 ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("default rule sets: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) tagRulesForRuleSet(ruleSetID int64) ([]*model.TagRule, error) {
	rows, err := s.DB.Query(`SELECT id, rule_set_id, priority, pattern_kind, pattern, tag_name, source, remove_from_name
		FROM tag_rules WHERE rule_set_id=? ORDER BY priority ASC`, ruleSetID)
	if err != nil {
		return nil, fmt.Errorf("tag rules for rule set: %w", err)
	}
	defer rows.Close()
	var out []*model.TagRule
	for rows.Next() {
		var r model.TagRule
		var remove int
		if err := rows.Scan(&r.ID, &r.RuleSetID, &r.Priority, &r.PatternKind, &r.Pattern, &r.TagName, &r.Source, &remove); err != nil {
			return nil, fmt.Errorf("scan tag rule: %w", err)
		}
		r.RemoveFromName = remove != 0
		out = append(out, &r)
	}
	return out, rows.Err()
}

// GetRuleSet loads a RuleSet by ID.
func (s *Store) GetRuleSet(id int64) (*model.RuleSet, error) {
	var rs model.RuleSet
	var def int
	err := s.DB.QueryRow(`SELECT id, name, is_default FROM rule_sets WHERE id=?`, id).Scan(&rs.ID, &rs.Name, &def)
	if err != nil {
		return nil, fmt.Errorf("get rule set: %w", err)
	}
	rs.IsDefault = def != 0
	return &rs, nil
}
