package gateway

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/snapetech/iptvcore/internal/model"
)

func TestHandleXMLTVEmitsChannelsOnly(t *testing.T) {
	g, st := newTestGateway(t)
	accID, _ := st.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	st.CreateCredential(&model.Credential{AccountID: accID, Username: "bob", Password: "secret", MaxConnections: 1, Enabled: true})

	chID, _ := st.UpsertChannel(&model.Channel{AccountID: accID, ExternalStreamID: "100", Name: "ESPN", IsActive: true, IsVisible: true})
	srcID, _ := st.CreateEpgSource(&model.EpgSource{Name: "src", SourceType: model.EpgSourceXMLTVURL, Enabled: true})
	epgID, _ := st.UpsertEpgChannel(&model.EpgChannel{SourceID: srcID, ChannelID: "espn.us", DisplayNames: []string{"ESPN US"}, IconURL: "http://icons/espn.png"})
	st.SetChannelEpgMapping(&model.ChannelEpgMapping{ChannelID: chID, EpgChannelID: epgID, MatchType: model.MatchExactName, Confidence: 1})

	req := httptest.NewRequest("GET", "/xmltv.php?username=bob&password=secret", nil)
	rec := httptest.NewRecorder()
	g.handleXMLTV(rec, req, "req1")

	body := rec.Body.String()
	if !strings.Contains(body, `<channel id="espn.us">`) {
		t.Fatalf("expected a channel element, got:\n%s", body)
	}
	if !strings.Contains(body, "ESPN US") {
		t.Fatalf("expected display-name from the epg channel, got:\n%s", body)
	}
	if strings.Contains(body, "<programme") {
		t.Fatalf("xmltv output must never contain programme elements, got:\n%s", body)
	}
}

func TestHandleXMLTVSkipsUnmappedChannels(t *testing.T) {
	g, st := newTestGateway(t)
	accID, _ := st.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	st.CreateCredential(&model.Credential{AccountID: accID, Username: "bob", Password: "secret", MaxConnections: 1, Enabled: true})
	st.UpsertChannel(&model.Channel{AccountID: accID, ExternalStreamID: "100", Name: "Unmapped", IsActive: true, IsVisible: true})

	req := httptest.NewRequest("GET", "/xmltv.php?username=bob&password=secret", nil)
	rec := httptest.NewRecorder()
	g.handleXMLTV(rec, req, "req1")

	if strings.Contains(rec.Body.String(), "<channel") {
		t.Fatalf("expected no channel elements for an unmapped channel, got:\n%s", rec.Body.String())
	}
}

func TestEpgDisplayNameFallsBackToChannelID(t *testing.T) {
	ec := &model.EpgChannel{ChannelID: "espn.us"}
	if got := epgDisplayName(ec); got != "espn.us" {
		t.Fatalf("expected fallback to ChannelID, got %q", got)
	}
	ec.DisplayNames = []string{"ESPN US"}
	if got := epgDisplayName(ec); got != "ESPN US" {
		t.Fatalf("expected first display name, got %q", got)
	}
}
