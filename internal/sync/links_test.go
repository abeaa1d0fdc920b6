package sync

import (
	"testing"

	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/store"
)

func newLinksTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUpsertChannel(t *testing.T, st *store.Store, c *model.Channel) int64 {
	t.Helper()
	id, err := st.UpsertChannel(c)
	if err != nil {
		t.Fatalf("upsert channel: %v", err)
	}
	return id
}

func TestDetectChannelLinksLinksWestToEastTaggedChannel(t *testing.T) {
	st := newLinksTestStore(t)
	accID, err := st.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	eastID := mustUpsertChannel(t, st, &model.Channel{AccountID: accID, ExternalStreamID: "1", Name: "ESPN East", CleanedName: "ESPN", IsActive: true, IsVisible: true})
	westID := mustUpsertChannel(t, st, &model.Channel{AccountID: accID, ExternalStreamID: "2", Name: "ESPN West", CleanedName: "ESPN", IsActive: true, IsVisible: true})

	if err := st.SetChannelTags(eastID, model.TagSourceExtraction, []string{"EAST"}); err != nil {
		t.Fatalf("tag east channel: %v", err)
	}
	if err := st.SetChannelTags(westID, model.TagSourceExtraction, []string{"WEST"}); err != nil {
		t.Fatalf("tag west channel: %v", err)
	}

	stats, err := DetectChannelLinks(st, accID)
	if err != nil {
		t.Fatalf("detect channel links: %v", err)
	}
	if stats.LinksCreated != 1 {
		t.Fatalf("expected 1 link created, got %+v", stats)
	}

	links, err := st.ListChannelLinksFrom([]int64{westID})
	if err != nil {
		t.Fatalf("list channel links: %v", err)
	}
	if len(links) != 1 || links[0].ToChannelID != eastID || links[0].TimeOffsetHours != -3 {
		t.Fatalf("expected west->east link with -3h offset, got %+v", links)
	}

	stats2, err := DetectChannelLinks(st, accID)
	if err != nil {
		t.Fatalf("detect channel links (second run): %v", err)
	}
	if stats2.LinksCreated != 0 || stats2.LinksSkipped != 1 {
		t.Fatalf("expected the second run to skip the already-created link, got %+v", stats2)
	}
}

func TestDetectChannelLinksLinksWestToLoneUntaggedChannel(t *testing.T) {
	st := newLinksTestStore(t)
	accID, err := st.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	anchorID := mustUpsertChannel(t, st, &model.Channel{AccountID: accID, ExternalStreamID: "1", Name: "ABC", CleanedName: "ABC", IsActive: true, IsVisible: true})
	westID := mustUpsertChannel(t, st, &model.Channel{AccountID: accID, ExternalStreamID: "2", Name: "ABC West", CleanedName: "ABC", IsActive: true, IsVisible: true})
	if err := st.SetChannelTags(westID, model.TagSourceExtraction, []string{"WEST"}); err != nil {
		t.Fatalf("tag west channel: %v", err)
	}

	stats, err := DetectChannelLinks(st, accID)
	if err != nil {
		t.Fatalf("detect channel links: %v", err)
	}
	if stats.LinksCreated != 1 {
		t.Fatalf("expected the lone untagged channel to stand in as the anchor, got %+v", stats)
	}

	links, err := st.ListChannelLinksFrom([]int64{westID})
	if err != nil {
		t.Fatalf("list channel links: %v", err)
	}
	if len(links) != 1 || links[0].ToChannelID != anchorID {
		t.Fatalf("expected link to the lone untagged channel, got %+v", links)
	}
}

func TestDetectChannelLinksSkipsGroupWithMultipleUntaggedChannels(t *testing.T) {
	st := newLinksTestStore(t)
	accID, err := st.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	mustUpsertChannel(t, st, &model.Channel{AccountID: accID, ExternalStreamID: "1", Name: "ABC", CleanedName: "ABC", IsActive: true, IsVisible: true})
	mustUpsertChannel(t, st, &model.Channel{AccountID: accID, ExternalStreamID: "2", Name: "ABC Backup", CleanedName: "ABC", IsActive: true, IsVisible: true})
	westID := mustUpsertChannel(t, st, &model.Channel{AccountID: accID, ExternalStreamID: "3", Name: "ABC West", CleanedName: "ABC", IsActive: true, IsVisible: true})
	if err := st.SetChannelTags(westID, model.TagSourceExtraction, []string{"WEST"}); err != nil {
		t.Fatalf("tag west channel: %v", err)
	}

	stats, err := DetectChannelLinks(st, accID)
	if err != nil {
		t.Fatalf("detect channel links: %v", err)
	}
	if stats.LinksCreated != 0 {
		t.Fatalf("expected no link when the group has more than one untagged channel, got %+v", stats)
	}

	links, err := st.ListChannelLinksFrom([]int64{westID})
	if err != nil {
		t.Fatalf("list channel links: %v", err)
	}
	if len(links) != 0 {
		t.Fatalf("expected no link created, got %+v", links)
	}
}
