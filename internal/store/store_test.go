package store

import (
	"testing"
	"time"

	"github.com/snapetech/iptvcore/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAccountCredentialRoundTrip(t *testing.T) {
	s := newTestStore(t)

	accID, err := s.CreateAccount(&model.Account{Name: "Test Provider", Server: "example.com", Enabled: true})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	credID, err := s.CreateCredential(&model.Credential{AccountID: accID, Username: "u", Password: "p", MaxConnections: 2, Enabled: true})
	if err != nil {
		t.Fatalf("create credential: %v", err)
	}

	got, err := s.GetAccount(accID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Name != "Test Provider" || !got.Enabled {
		t.Fatalf("unexpected account: %+v", got)
	}

	creds, err := s.ListCredentials(accID, true)
	if err != nil {
		t.Fatalf("list credentials: %v", err)
	}
	if len(creds) != 1 || creds[0].ID != credID {
		t.Fatalf("expected one credential with id %d, got %+v", credID, creds)
	}
}

func TestActiveStreamConnectionAccounting(t *testing.T) {
	s := newTestStore(t)
	accID, _ := s.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	credID, _ := s.CreateCredential(&model.Credential{AccountID: accID, Username: "u", Password: "p", MaxConnections: 2, Enabled: true})

	now := time.Now().UTC()
	if err := s.CreateActiveStream(&model.ActiveStream{
		SessionToken: "tok1", CredentialID: credID, StreamID: "10", StartedAt: now, LastActivity: now,
	}); err != nil {
		t.Fatalf("create active stream: %v", err)
	}
	if err := s.CreateActiveStream(&model.ActiveStream{
		SessionToken: "tok2", CredentialID: credID, StreamID: "11", StartedAt: now, LastActivity: now,
	}); err != nil {
		t.Fatalf("create active stream: %v", err)
	}

	n, err := s.RecomputeCredentialActiveConnections(credID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 active connections, got %d", n)
	}

	deleted, err := s.DeleteActiveStream("tok1")
	if err != nil || !deleted {
		t.Fatalf("delete active stream: deleted=%v err=%v", deleted, err)
	}
	n, err = s.RecomputeCredentialActiveConnections(credID)
	if err != nil {
		t.Fatalf("recompute after delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 active connection after delete, got %d", n)
	}
}

func TestChannelTagRoundTripAndBatch(t *testing.T) {
	s := newTestStore(t)
	accID, _ := s.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	chID, err := s.UpsertChannel(&model.Channel{AccountID: accID, ExternalStreamID: "1", Name: "ESPN HD", IsActive: true, IsVisible: true})
	if err != nil {
		t.Fatalf("upsert channel: %v", err)
	}

	if err := s.SetChannelTags(chID, model.TagSourceExtraction, []string{"US", "HD"}); err != nil {
		t.Fatalf("set channel tags: %v", err)
	}

	tags, err := s.ListChannelTags(chID)
	if err != nil {
		t.Fatalf("list channel tags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %v", tags)
	}

	batch, err := s.ListChannelTagsBatch([]int64{chID}, 500)
	if err != nil {
		t.Fatalf("batch list tags: %v", err)
	}
	if len(batch[chID]) != 2 {
		t.Fatalf("expected 2 tags in batch result, got %v", batch[chID])
	}
}

func TestChannelUpsertIsIdempotentByNaturalKey(t *testing.T) {
	s := newTestStore(t)
	accID, _ := s.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})

	id1, err := s.UpsertChannel(&model.Channel{AccountID: accID, ExternalStreamID: "42", Name: "First", IsActive: true, IsVisible: true})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	id2, err := s.UpsertChannel(&model.Channel{AccountID: accID, ExternalStreamID: "42", Name: "Renamed", IsActive: true, IsVisible: true})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same channel id for same natural key, got %d and %d", id1, id2)
	}
	got, err := s.GetChannel(id1)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if got.Name != "Renamed" {
		t.Fatalf("expected upsert to overwrite name, got %q", got.Name)
	}
}

func TestChannelEpgMappingAtMostOnePerChannel(t *testing.T) {
	s := newTestStore(t)
	accID, _ := s.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	chID, _ := s.UpsertChannel(&model.Channel{AccountID: accID, ExternalStreamID: "1", Name: "ESPN", IsActive: true, IsVisible: true})
	srcID, err := s.CreateEpgSource(&model.EpgSource{Name: "src", SourceType: model.EpgSourceXMLTVURL, Enabled: true})
	if err != nil {
		t.Fatalf("create epg source: %v", err)
	}
	epg1, err := s.UpsertEpgChannel(&model.EpgChannel{SourceID: srcID, ChannelID: "espn.us"})
	if err != nil {
		t.Fatalf("upsert epg channel: %v", err)
	}
	epg2, err := s.UpsertEpgChannel(&model.EpgChannel{SourceID: srcID, ChannelID: "espn2.us"})
	if err != nil {
		t.Fatalf("upsert second epg channel: %v", err)
	}

	if err := s.SetChannelEpgMapping(&model.ChannelEpgMapping{ChannelID: chID, EpgChannelID: epg1, MatchType: model.MatchExactName, Confidence: 0.95}); err != nil {
		t.Fatalf("set mapping: %v", err)
	}
	if err := s.SetChannelEpgMapping(&model.ChannelEpgMapping{ChannelID: chID, EpgChannelID: epg2, MatchType: model.MatchFuzzyName, Confidence: 0.8}); err != nil {
		t.Fatalf("overwrite mapping: %v", err)
	}

	got, err := s.GetChannelEpgMapping(chID)
	if err != nil {
		t.Fatalf("get mapping: %v", err)
	}
	if got.EpgChannelID != epg2 {
		t.Fatalf("expected mapping to be overwritten to epg2, got %d", got.EpgChannelID)
	}
}

func TestCreateChannelLinkDedups(t *testing.T) {
	s := newTestStore(t)
	accID, _ := s.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	ch1, _ := s.UpsertChannel(&model.Channel{AccountID: accID, ExternalStreamID: "1", Name: "East", IsActive: true, IsVisible: true})
	ch2, _ := s.UpsertChannel(&model.Channel{AccountID: accID, ExternalStreamID: "2", Name: "West", IsActive: true, IsVisible: true})

	id1, created1, err := s.CreateChannelLink(&model.ChannelLink{FromChannelID: ch2, ToChannelID: ch1, TimeOffsetHours: -3, AutoDetected: true})
	if err != nil || !created1 {
		t.Fatalf("expected link created, got created=%v err=%v", created1, err)
	}
	id2, created2, err := s.CreateChannelLink(&model.ChannelLink{FromChannelID: ch2, ToChannelID: ch1, TimeOffsetHours: -3, AutoDetected: true})
	if err != nil {
		t.Fatalf("second create channel link: %v", err)
	}
	if created2 {
		t.Fatalf("expected second create to be a no-op dedup, not a new link")
	}
	if id1 != id2 {
		t.Fatalf("expected same link id on dedup, got %d and %d", id1, id2)
	}
}

func TestRuleSetExportImportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	rsID, err := s.CreateRuleSet(&model.RuleSet{Name: "Custom"})
	if err != nil {
		t.Fatalf("create rule set: %v", err)
	}
	if _, err := s.AddTagRule(&model.TagRule{
		RuleSetID: rsID, Priority: 5, PatternKind: model.PatternContains, Pattern: "HD",
		TagName: "HD", Source: model.SourceChannelName, RemoveFromName: true,
	}); err != nil {
		t.Fatalf("add tag rule: %v", err)
	}

	doc, err := s.ExportRuleSet(rsID)
	if err != nil {
		t.Fatalf("export rule set: %v", err)
	}

	importedID, err := s.ImportRuleSet(doc)
	if err != nil {
		t.Fatalf("import rule set: %v", err)
	}

	rules, err := s.tagRulesForRuleSet(importedID)
	if err != nil {
		t.Fatalf("list imported rules: %v", err)
	}
	if len(rules) != 1 || rules[0].Pattern != "HD" || rules[0].Priority != 5 {
		t.Fatalf("expected imported rule to match original verbatim, got %+v", rules)
	}
}

func TestRuleSetExportImportYAMLRoundTrip(t *testing.T) {
	s := newTestStore(t)
	rsID, err := s.CreateRuleSet(&model.RuleSet{Name: "Custom"})
	if err != nil {
		t.Fatalf("create rule set: %v", err)
	}
	if _, err := s.AddTagRule(&model.TagRule{
		RuleSetID: rsID, Priority: 5, PatternKind: model.PatternContains, Pattern: "HD",
		TagName: "HD", Source: model.SourceChannelName, RemoveFromName: true,
	}); err != nil {
		t.Fatalf("add tag rule: %v", err)
	}

	doc, err := s.ExportRuleSetYAML(rsID)
	if err != nil {
		t.Fatalf("export rule set yaml: %v", err)
	}

	importedID, err := s.ImportRuleSetYAML(doc)
	if err != nil {
		t.Fatalf("import rule set yaml: %v", err)
	}

	rules, err := s.tagRulesForRuleSet(importedID)
	if err != nil {
		t.Fatalf("list imported rules: %v", err)
	}
	if len(rules) != 1 || rules[0].Pattern != "HD" || rules[0].Priority != 5 {
		t.Fatalf("expected imported rule to match original verbatim, got %+v", rules)
	}
}

func TestGetAccountGetCredentialGetCategoryReturnNilForMissingRow(t *testing.T) {
	s := newTestStore(t)

	acct, err := s.GetAccount(999)
	if err != nil || acct != nil {
		t.Fatalf("expected (nil, nil) for a missing account, got acct=%+v err=%v", acct, err)
	}
	cred, err := s.GetCredential(999)
	if err != nil || cred != nil {
		t.Fatalf("expected (nil, nil) for a missing credential, got cred=%+v err=%v", cred, err)
	}
	cat, err := s.GetCategory(999)
	if err != nil || cat != nil {
		t.Fatalf("expected (nil, nil) for a missing category, got cat=%+v err=%v", cat, err)
	}
}

func TestGetChannelHealthStatusSynthesizesUnknown(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetChannelHealthStatus(999)
	if err != nil {
		t.Fatalf("get channel health status: %v", err)
	}
	if got.Status != model.HealthUnknown {
		t.Fatalf("expected unknown status for unseen channel, got %q", got.Status)
	}
}
