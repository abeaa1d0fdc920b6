package gateway

import (
	"net/http/httptest"
	"testing"

	"github.com/snapetech/iptvcore/internal/model"
)

func TestAuthenticateMatchesCredentialRow(t *testing.T) {
	g, st := newTestGateway(t)
	accID, _ := st.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	credID, _ := st.CreateCredential(&model.Credential{AccountID: accID, Username: "bob", Password: "secret", MaxConnections: 2, Enabled: true})

	req := httptest.NewRequest("GET", "/player_api.php?username=bob&password=secret", nil)
	session, err := g.authenticate(req)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session == nil {
		t.Fatalf("expected a session")
	}
	if session.Account.ID != accID {
		t.Fatalf("expected account %d, got %d", accID, session.Account.ID)
	}
	if session.Credential == nil || session.Credential.ID != credID {
		t.Fatalf("expected credential %d, got %+v", credID, session.Credential)
	}
}

func TestAuthenticateMatchesLegacyAccountCredentials(t *testing.T) {
	g, st := newTestGateway(t)
	accID, _ := st.CreateAccount(&model.Account{
		Name: "A", Server: "s", Enabled: true,
		LegacyUsername: "legacyuser", LegacyPassword: "legacypass",
	})

	req := httptest.NewRequest("GET", "/player_api.php?username=legacyuser&password=legacypass", nil)
	session, err := g.authenticate(req)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session == nil || session.Account.ID != accID {
		t.Fatalf("expected account %d, got %+v", accID, session)
	}
	if session.Credential != nil {
		t.Fatalf("expected no Credential row for a legacy match, got %+v", session.Credential)
	}
}

func TestAuthenticateRejectsUnknownCredentials(t *testing.T) {
	g, st := newTestGateway(t)
	st.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})

	req := httptest.NewRequest("GET", "/player_api.php?username=nope&password=nope", nil)
	session, err := g.authenticate(req)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session != nil {
		t.Fatalf("expected no session for unknown credentials, got %+v", session)
	}
}

func TestAuthenticateRequiresBothParameters(t *testing.T) {
	g, _ := newTestGateway(t)

	req := httptest.NewRequest("GET", "/player_api.php?username=bob", nil)
	session, err := g.authenticate(req)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session != nil {
		t.Fatalf("expected no session when password is missing, got %+v", session)
	}
}
