package gateway

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/snapetech/iptvcore/internal/model"
)

func TestHandleGetPHPSingleAccountGroupTitle(t *testing.T) {
	g, st := newTestGateway(t)
	accID, _ := st.CreateAccount(&model.Account{Name: "Provider A", Server: "s", Enabled: true})
	st.CreateCredential(&model.Credential{AccountID: accID, Username: "bob", Password: "secret", MaxConnections: 1, Enabled: true})
	catID, _ := st.UpsertCategory(&model.Category{AccountID: accID, ExternalCategoryID: "10", Name: "Sports"})
	st.UpsertChannel(&model.Channel{AccountID: accID, CategoryID: catID, ExternalStreamID: "100", Name: "ESPN", IsActive: true, IsVisible: true})

	req := httptest.NewRequest("GET", "/get.php?username=bob&password=secret", nil)
	rec := httptest.NewRecorder()
	g.handleGetPHP(rec, req, "req1")

	body := rec.Body.String()
	if !strings.Contains(body, `group-title="Sports"`) {
		t.Fatalf("expected plain category group-title for a single-account deployment, got:\n%s", body)
	}
	if strings.Contains(body, "Provider A") {
		t.Fatalf("did not expect account name suffix in a single-account deployment, got:\n%s", body)
	}
	if !strings.Contains(body, "/live/bob/secret/") {
		t.Fatalf("expected stream URLs to embed username/password, got:\n%s", body)
	}
}

func TestHandleGetPHPMultiAccountGroupTitleSuffix(t *testing.T) {
	g, st := newTestGateway(t)
	acc1, _ := st.CreateAccount(&model.Account{Name: "Provider A", Server: "s1", Enabled: true})
	acc2, _ := st.CreateAccount(&model.Account{Name: "Provider B", Server: "s2", Enabled: true})
	st.CreateCredential(&model.Credential{AccountID: acc1, Username: "bob", Password: "secret", MaxConnections: 1, Enabled: true})
	cat1, _ := st.UpsertCategory(&model.Category{AccountID: acc1, ExternalCategoryID: "10", Name: "Sports"})
	st.UpsertChannel(&model.Channel{AccountID: acc1, CategoryID: cat1, ExternalStreamID: "100", Name: "ESPN", IsActive: true, IsVisible: true})
	st.UpsertChannel(&model.Channel{AccountID: acc2, ExternalStreamID: "200", Name: "No Category", IsActive: true, IsVisible: true})

	req := httptest.NewRequest("GET", "/get.php?username=bob&password=secret", nil)
	rec := httptest.NewRecorder()
	g.handleGetPHP(rec, req, "req1")

	body := rec.Body.String()
	if !strings.Contains(body, `group-title="Sports (Provider A)"`) {
		t.Fatalf("expected category + account name group-title in multi-account deployment, got:\n%s", body)
	}
	if !strings.Contains(body, `group-title="Provider B"`) {
		t.Fatalf("expected bare account name group-title when channel has no category, got:\n%s", body)
	}
}

func TestHandleGetPHPRejectsBadCredentials(t *testing.T) {
	g, _ := newTestGateway(t)

	req := httptest.NewRequest("GET", "/get.php?username=nope&password=nope", nil)
	rec := httptest.NewRecorder()
	g.handleGetPHP(rec, req, "req1")

	if rec.Code != 401 {
		t.Fatalf("expected 401 for unknown credentials, got %d", rec.Code)
	}
}
