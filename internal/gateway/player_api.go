package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/snapetech/iptvcore/internal/model"
)

// userInfo mirrors the subset of Xtream's player_api.php auth response that
// downstream clients actually read.
type userInfo struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Auth           int    `json:"auth"`
	Status         string `json:"status"`
	MaxConnections string `json:"max_connections"`
	ActiveCons     string `json:"active_cons"`
	IsTrial        string `json:"is_trial"`
}

type serverInfo struct {
	URL            string `json:"url"`
	Port           string `json:"port"`
	HTTPSPort      string `json:"https_port"`
	ServerProtocol string `json:"server_protocol"`
	Timezone       string `json:"timezone"`
}

type authResponse struct {
	UserInfo   userInfo   `json:"user_info"`
	ServerInfo serverInfo `json:"server_info"`
}

// apiCategory is one get_live_categories entry.
type apiCategory struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	ParentID     int    `json:"parent_id"`
}

// apiStream is one get_live_streams entry.
type apiStream struct {
	Num          int    `json:"num"`
	Name         string `json:"name"`
	StreamType   string `json:"stream_type"`
	StreamID     int64  `json:"stream_id"`
	StreamIcon   string `json:"stream_icon"`
	EpgChannelID string `json:"epg_channel_id"`
	CategoryID   string `json:"category_id"`
	CustomSid    string `json:"custom_sid"`
	TVArchive    int    `json:"tv_archive"`
	DirectSource string `json:"direct_source"`
}

// handlePlayerAPI serves the subset of the Xtream action surface the Store
// can back: auth (no action), get_live_categories, get_live_streams, and the
// VOD/series equivalents backed by the stream_type-partitioned catalog.
func (g *Gateway) handlePlayerAPI(w http.ResponseWriter, r *http.Request, reqID string) {
	session, err := g.authenticate(r)
	if err != nil {
		writeError(w, reqID, "player_api auth", err)
		return
	}
	if session == nil {
		recordAuthFailure()
		writeJSON(w, authResponse{UserInfo: userInfo{Auth: 0, Status: "Disabled"}})
		return
	}

	switch r.URL.Query().Get("action") {
	case "":
		g.writeAuthResponse(w, r, session)
	case "get_live_categories":
		g.writeCategories(w, session.Account.ID, model.StreamTypeLive)
	case "get_live_streams":
		g.writeStreams(w, r, session.Account.ID, model.StreamTypeLive, "live")
	case "get_vod_categories":
		g.writeCategories(w, session.Account.ID, model.StreamTypeVOD)
	case "get_vod_streams":
		g.writeStreams(w, r, session.Account.ID, model.StreamTypeVOD, "movie")
	case "get_series_categories":
		g.writeCategories(w, session.Account.ID, model.StreamTypeSeries)
	case "get_series":
		g.writeStreams(w, r, session.Account.ID, model.StreamTypeSeries, "series")
	default:
		writeJSON(w, []any{})
	}
}

func (g *Gateway) writeAuthResponse(w http.ResponseWriter, r *http.Request, session *authSession) {
	username, password := r.URL.Query().Get("username"), r.URL.Query().Get("password")
	maxConn := "0"
	if session.Credential != nil && session.Credential.MaxConnections > 0 {
		maxConn = strconv.Itoa(session.Credential.MaxConnections)
	}
	writeJSON(w, authResponse{
		UserInfo: userInfo{
			Username:       username,
			Password:       password,
			Auth:           1,
			Status:         "Active",
			MaxConnections: maxConn,
			IsTrial:        "0",
		},
		ServerInfo: serverInfo{
			URL:            g.Config.BaseURL,
			Port:           "80",
			HTTPSPort:      "443",
			ServerProtocol: "http",
			Timezone:       "UTC",
		},
	})
}

func (g *Gateway) writeCategories(w http.ResponseWriter, accountID int64, streamType string) {
	cats, err := g.Store.ListCategoriesByType(accountID, streamType)
	if err != nil {
		writeError(w, "", "list categories", err)
		return
	}
	out := make([]apiCategory, 0, len(cats))
	for _, c := range cats {
		out = append(out, apiCategory{CategoryID: c.ExternalCategoryID, CategoryName: c.Name})
	}
	writeJSON(w, out)
}

// writeStreams serves get_live_streams/get_vod_streams/get_series by stream
// type, tagging each entry with apiStreamType the way the upstream action
// would ("live", "movie", "series").
func (g *Gateway) writeStreams(w http.ResponseWriter, r *http.Request, accountID int64, streamType, apiStreamType string) {
	channels, err := g.Store.ListActiveVisibleChannelsByType(accountID, streamType)
	if err != nil {
		writeError(w, "", "list channels", err)
		return
	}
	categoryFilter := r.URL.Query().Get("category_id")

	var categoriesByID map[int64]*model.Category
	out := make([]apiStream, 0, len(channels))
	for i, c := range channels {
		catExternalID := ""
		if c.CategoryID != 0 {
			if categoriesByID == nil {
				categoriesByID = g.categoryIndex(accountID, streamType)
			}
			if cat := categoriesByID[c.CategoryID]; cat != nil {
				catExternalID = cat.ExternalCategoryID
			}
		}
		if categoryFilter != "" && catExternalID != categoryFilter {
			continue
		}
		out = append(out, apiStream{
			Num:          i + 1,
			Name:         c.Name,
			StreamType:   apiStreamType,
			StreamID:     c.ID,
			EpgChannelID: c.EpgChannelID,
			CategoryID:   catExternalID,
		})
	}
	writeJSON(w, out)
}

func (g *Gateway) categoryIndex(accountID int64, streamType string) map[int64]*model.Category {
	cats, err := g.Store.ListCategoriesByType(accountID, streamType)
	if err != nil {
		return nil
	}
	idx := make(map[int64]*model.Category, len(cats))
	for _, c := range cats {
		idx[c.ID] = c
	}
	return idx
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
