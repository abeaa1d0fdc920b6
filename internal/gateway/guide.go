package gateway

import (
	"net/http"

	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/xmltv"
)

func epgDisplayName(ec *model.EpgChannel) string {
	if len(ec.DisplayNames) > 0 {
		return ec.DisplayNames[0]
	}
	return ec.ChannelID
}

// handleXMLTV serves the aggregated XMLTV guide for the visible catalog.
// Only <channel> elements are emitted: the Store keeps
// aggregate EpgChannel stats (program_count, first/last program) but never
// persists individual <programme> rows, so there is nothing to emit them
// from. Players relying on a channel-only guide for tvg-id/icon lookup
// (the common case when paired with the playlist's own EXTINF metadata)
// are unaffected; players expecting an EPG grid will see an empty one.
func (g *Gateway) handleXMLTV(w http.ResponseWriter, r *http.Request, reqID string) {
	session, err := g.authenticate(r)
	if err != nil {
		writeError(w, reqID, "xmltv auth", err)
		return
	}
	if session == nil {
		recordAuthFailure()
		http.Error(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	accounts, err := g.Store.ListAccounts(true)
	if err != nil {
		writeError(w, reqID, "xmltv list accounts", err)
		return
	}

	var channels []xmltv.EmitChannel
	seen := make(map[int64]bool)
	for _, acct := range accounts {
		chs, err := g.Store.ListActiveVisibleChannels(acct.ID)
		if err != nil {
			writeError(w, reqID, "xmltv list channels", err)
			return
		}
		for _, c := range chs {
			mapping, err := g.Store.GetChannelEpgMapping(c.ID)
			if err != nil {
				writeError(w, reqID, "xmltv get mapping", err)
				return
			}
			if mapping == nil || seen[mapping.EpgChannelID] {
				continue
			}
			ec, err := g.Store.GetEpgChannel(mapping.EpgChannelID)
			if err != nil {
				writeError(w, reqID, "xmltv get epg channel", err)
				return
			}
			if ec == nil {
				continue
			}
			seen[mapping.EpgChannelID] = true
			channels = append(channels, xmltv.EmitChannel{
				ID:          ec.ChannelID,
				DisplayName: epgDisplayName(ec),
				IconURL:     ec.IconURL,
			})
		}
	}

	w.Header().Set("Content-Type", "application/xml")
	enc, done := negotiateCompression(w, r, g.Config.BrotliEnabled)
	defer done()
	if err := xmltv.Emit(enc, "iptvcore", channels, nil); err != nil {
		writeError(w, reqID, "xmltv write", err)
	}
}
