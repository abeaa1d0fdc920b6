package gateway

import (
	"net/http"

	"github.com/snapetech/iptvcore/internal/model"
)

// authSession is the resolved identity of a downstream request: the Account
// it authenticates against and, when it matched a Credential row rather than
// the Account's legacy username/password, that Credential.
type authSession struct {
	Account    *model.Account
	Credential *model.Credential
}

// authenticate resolves username/password query parameters to an Account.
// Returns (nil, nil) without error when the credentials don't match
// anything; callers render the Xtream "auth failed" shape rather than a
// bare 401, since most Xtream clients only understand JSON auth failures.
func (g *Gateway) authenticate(r *http.Request) (*authSession, error) {
	username := r.URL.Query().Get("username")
	password := r.URL.Query().Get("password")
	if username == "" || password == "" {
		return nil, nil
	}
	account, cred, err := g.Store.FindAccountByCredentials(username, password)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, nil
	}
	return &authSession{Account: account, Credential: cred}, nil
}
