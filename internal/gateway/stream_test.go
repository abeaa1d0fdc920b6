package gateway

import (
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/snapetech/iptvcore/internal/model"
)

func TestHandleLiveRejectsUnknownCredentials(t *testing.T) {
	g, _ := newTestGateway(t)

	req := httptest.NewRequest("GET", "/live/nope/nope/1.ts", nil)
	rec := httptest.NewRecorder()
	g.handleLive(rec, req, "req1")

	if rec.Code != 401 {
		t.Fatalf("expected 401 for unknown credentials, got %d", rec.Code)
	}
}

func TestHandleLiveRejectsMalformedPath(t *testing.T) {
	g, _ := newTestGateway(t)

	req := httptest.NewRequest("GET", "/live/onlyonesegment", nil)
	rec := httptest.NewRecorder()
	g.handleLive(rec, req, "req1")

	if rec.Code != 404 {
		t.Fatalf("expected 404 for a malformed live path, got %d", rec.Code)
	}
}

func TestHandleLiveRejectsChannelFromAnotherAccount(t *testing.T) {
	g, st := newTestGateway(t)
	acc1, _ := st.CreateAccount(&model.Account{Name: "A", Server: "s1", Enabled: true})
	acc2, _ := st.CreateAccount(&model.Account{Name: "B", Server: "s2", Enabled: true})
	st.CreateCredential(&model.Credential{AccountID: acc1, Username: "bob", Password: "secret", MaxConnections: 1, Enabled: true})
	chID, _ := st.UpsertChannel(&model.Channel{AccountID: acc2, ExternalStreamID: "100", Name: "Foreign", IsActive: true, IsVisible: true})

	req := httptest.NewRequest("GET", "/live/bob/secret/"+strconv.FormatInt(chID, 10)+".ts", nil)
	rec := httptest.NewRecorder()
	g.handleLive(rec, req, "req1")

	if rec.Code != 404 {
		t.Fatalf("expected 404 when the channel belongs to a different account, got %d", rec.Code)
	}
}

func TestHandleLiveRejectsUnknownChannel(t *testing.T) {
	g, st := newTestGateway(t)
	accID, _ := st.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	st.CreateCredential(&model.Credential{AccountID: accID, Username: "bob", Password: "secret", MaxConnections: 1, Enabled: true})

	req := httptest.NewRequest("GET", "/live/bob/secret/99999.ts", nil)
	rec := httptest.NewRecorder()
	g.handleLive(rec, req, "req1")

	if rec.Code != 404 {
		t.Fatalf("expected 404 for an unknown channel id, got %d", rec.Code)
	}
}

func TestHandleLiveRejectsVODChannel(t *testing.T) {
	g, st := newTestGateway(t)
	accID, _ := st.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	st.CreateCredential(&model.Credential{AccountID: accID, Username: "bob", Password: "secret", MaxConnections: 1, Enabled: true})
	chID, _ := st.UpsertChannel(&model.Channel{AccountID: accID, ExternalStreamID: "100", Name: "A Movie", StreamType: model.StreamTypeVOD, IsActive: true, IsVisible: true})

	req := httptest.NewRequest("GET", "/live/bob/secret/"+strconv.FormatInt(chID, 10)+".ts", nil)
	rec := httptest.NewRecorder()
	g.handleLive(rec, req, "req1")

	if rec.Code != 404 {
		t.Fatalf("expected 404 when a vod channel id is requested from the live endpoint, got %d", rec.Code)
	}
}

