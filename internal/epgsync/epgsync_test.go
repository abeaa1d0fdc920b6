package epgsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/store"
)

const sampleXMLTV = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="abc.us">
    <display-name>ABC</display-name>
  </channel>
  <programme start="20260101120000 +0000" stop="20260101123000 +0000" channel="abc.us">
    <title>News</title>
  </programme>
</tv>`

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSyncSource_XMLTVURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleXMLTV))
	}))
	defer srv.Close()

	st := newTestStore(t)
	id, err := st.CreateEpgSource(&model.EpgSource{Name: "test", SourceType: SourceTypeXMLTVURL, URL: srv.URL, Enabled: true})
	if err != nil {
		t.Fatalf("create epg source: %v", err)
	}
	srcs, err := st.ListEpgSources(false)
	if err != nil {
		t.Fatalf("list epg sources: %v", err)
	}
	var src *model.EpgSource
	for _, s := range srcs {
		if s.ID == id {
			src = s
		}
	}
	if src == nil {
		t.Fatalf("epg source %d not found", id)
	}

	stats, err := SyncSource(context.Background(), st, srv.Client(), src, nil)
	if err != nil {
		t.Fatalf("sync source: %v", err)
	}
	if stats.Channels != 1 {
		t.Errorf("Channels = %d, want 1", stats.Channels)
	}
	if stats.Programmes != 1 {
		t.Errorf("Programmes = %d, want 1", stats.Programmes)
	}

	channels, err := st.ListEpgChannels(id)
	if err != nil {
		t.Fatalf("list epg channels: %v", err)
	}
	if len(channels) != 1 || channels[0].ChannelID != "abc.us" {
		t.Fatalf("unexpected channels: %+v", channels)
	}
}

func TestSyncSource_ProviderWithoutAccount(t *testing.T) {
	st := newTestStore(t)
	id, err := st.CreateEpgSource(&model.EpgSource{Name: "test", SourceType: SourceTypeProvider, Enabled: true})
	if err != nil {
		t.Fatalf("create epg source: %v", err)
	}
	src := &model.EpgSource{ID: id, Name: "test", SourceType: SourceTypeProvider}

	if _, err := SyncSource(context.Background(), st, http.DefaultClient, src, nil); err == nil {
		t.Fatalf("expected error for provider source with no account")
	}
}

func TestSyncSource_SchedulesDirectRejected(t *testing.T) {
	st := newTestStore(t)
	src := &model.EpgSource{ID: 1, Name: "sd", SourceType: SourceTypeSchedulesDirect}
	if _, err := SyncSource(context.Background(), st, http.DefaultClient, src, nil); err == nil {
		t.Fatalf("expected error for schedules_direct source")
	}
}

func TestSyncSource_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := newTestStore(t)
	id, _ := st.CreateEpgSource(&model.EpgSource{Name: "test", SourceType: SourceTypeXMLTVURL, URL: srv.URL, Enabled: true})
	src := &model.EpgSource{ID: id, Name: "test", SourceType: SourceTypeXMLTVURL, URL: srv.URL}

	if _, err := SyncSource(context.Background(), st, srv.Client(), src, nil); err == nil {
		t.Fatalf("expected error on 500 response")
	}
	srcs, _ := st.ListEpgSources(false)
	if len(srcs) != 1 || srcs[0].LastSyncStatus != "error" {
		t.Fatalf("expected LastSyncStatus=error, got %+v", srcs)
	}
}
