package gateway

import (
	"fmt"
	"net/http"

	"github.com/snapetech/iptvcore/internal/m3u"
	"github.com/snapetech/iptvcore/internal/model"
)

// handleGetPHP serves the M3U playlist for the visible catalog across every
// enabled account.
func (g *Gateway) handleGetPHP(w http.ResponseWriter, r *http.Request, reqID string) {
	session, err := g.authenticate(r)
	if err != nil {
		writeError(w, reqID, "get.php auth", err)
		return
	}
	if session == nil {
		recordAuthFailure()
		http.Error(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	accounts, err := g.Store.ListAccounts(true)
	if err != nil {
		writeError(w, reqID, "get.php list accounts", err)
		return
	}
	multiAccount := len(accounts) > 1

	var entries []m3u.Entry
	for _, acct := range accounts {
		channels, err := g.Store.ListActiveVisibleChannels(acct.ID)
		if err != nil {
			writeError(w, reqID, "get.php list channels", err)
			return
		}
		categoriesByID := g.categoryIndex(acct.ID, model.StreamTypeLive)
		for _, c := range channels {
			entries = append(entries, g.m3uEntry(acct, c, categoriesByID, multiAccount))
		}
	}

	username, password := r.URL.Query().Get("username"), r.URL.Query().Get("password")

	w.Header().Set("Content-Type", "application/x-mpegurl")
	guideURL := fmt.Sprintf("%s/xmltv.php?username=%s&password=%s", g.Config.BaseURL, username, password)
	enc, done := negotiateCompression(w, r, g.Config.BrotliEnabled)
	defer done()
	if err := m3u.Write(enc, guideURL, entries, func(e m3u.Entry) string {
		return g.streamURL(username, password, e.ChannelID)
	}); err != nil {
		writeError(w, reqID, "get.php write", err)
	}
}

func (g *Gateway) m3uEntry(acct *model.Account, c *model.Channel, categoriesByID map[int64]*model.Category, multiAccount bool) m3u.Entry {
	group := ""
	if cat := categoriesByID[c.CategoryID]; cat != nil {
		group = cat.Name
	}
	if multiAccount {
		if group == "" {
			group = acct.Name
		} else {
			group = fmt.Sprintf("%s (%s)", group, acct.Name)
		}
	}
	return m3u.Entry{
		ChannelID:  fmt.Sprintf("%d", c.ID),
		Name:       c.Name,
		TvgID:      c.EpgChannelID,
		GroupTitle: group,
	}
}

func (g *Gateway) streamURL(username, password, channelID string) string {
	return fmt.Sprintf("%s/live/%s/%s/%s.ts", g.Config.BaseURL, username, password, channelID)
}
