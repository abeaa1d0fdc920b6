package gateway

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/snapetech/iptvcore/internal/model"
)

func TestHandlePlayerAPIAuthResponseShapes(t *testing.T) {
	g, st := newTestGateway(t)
	accID, _ := st.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	st.CreateCredential(&model.Credential{AccountID: accID, Username: "bob", Password: "secret", MaxConnections: 3, Enabled: true})

	req := httptest.NewRequest("GET", "/player_api.php?username=bob&password=secret", nil)
	rec := httptest.NewRecorder()
	g.handlePlayerAPI(rec, req, "req1")

	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode auth response: %v (body %s)", err, rec.Body.String())
	}
	if resp.UserInfo.Auth != 1 || resp.UserInfo.Status != "Active" {
		t.Fatalf("expected active auth response, got %+v", resp.UserInfo)
	}
	if resp.UserInfo.MaxConnections != "3" {
		t.Fatalf("expected max_connections 3, got %q", resp.UserInfo.MaxConnections)
	}
}

func TestHandlePlayerAPIAuthFailureShape(t *testing.T) {
	g, _ := newTestGateway(t)

	req := httptest.NewRequest("GET", "/player_api.php?username=nope&password=nope", nil)
	rec := httptest.NewRecorder()
	g.handlePlayerAPI(rec, req, "req1")

	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	if resp.UserInfo.Auth != 0 || resp.UserInfo.Status != "Disabled" {
		t.Fatalf("expected disabled auth response, got %+v", resp.UserInfo)
	}
}

func TestHandlePlayerAPILiveCategoriesAndStreams(t *testing.T) {
	g, st := newTestGateway(t)
	accID, _ := st.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	st.CreateCredential(&model.Credential{AccountID: accID, Username: "bob", Password: "secret", MaxConnections: 1, Enabled: true})
	catID, _ := st.UpsertCategory(&model.Category{AccountID: accID, ExternalCategoryID: "10", Name: "Sports"})
	st.UpsertChannel(&model.Channel{AccountID: accID, CategoryID: catID, ExternalStreamID: "100", Name: "ESPN", IsActive: true, IsVisible: true})
	st.UpsertChannel(&model.Channel{AccountID: accID, ExternalStreamID: "101", Name: "Other", IsActive: true, IsVisible: true})

	catReq := httptest.NewRequest("GET", "/player_api.php?username=bob&password=secret&action=get_live_categories", nil)
	catRec := httptest.NewRecorder()
	g.handlePlayerAPI(catRec, catReq, "req1")

	var cats []apiCategory
	if err := json.Unmarshal(catRec.Body.Bytes(), &cats); err != nil {
		t.Fatalf("decode categories: %v (body %s)", err, catRec.Body.String())
	}
	if len(cats) != 1 || cats[0].CategoryID != "10" || cats[0].CategoryName != "Sports" {
		t.Fatalf("unexpected categories: %+v", cats)
	}

	streamReq := httptest.NewRequest("GET", "/player_api.php?username=bob&password=secret&action=get_live_streams", nil)
	streamRec := httptest.NewRecorder()
	g.handlePlayerAPI(streamRec, streamReq, "req2")

	var streams []apiStream
	if err := json.Unmarshal(streamRec.Body.Bytes(), &streams); err != nil {
		t.Fatalf("decode streams: %v (body %s)", err, streamRec.Body.String())
	}
	if len(streams) != 2 {
		t.Fatalf("expected 2 streams, got %+v", streams)
	}

	filteredReq := httptest.NewRequest("GET", "/player_api.php?username=bob&password=secret&action=get_live_streams&category_id=10", nil)
	filteredRec := httptest.NewRecorder()
	g.handlePlayerAPI(filteredRec, filteredReq, "req3")

	var filtered []apiStream
	if err := json.Unmarshal(filteredRec.Body.Bytes(), &filtered); err != nil {
		t.Fatalf("decode filtered streams: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Name != "ESPN" {
		t.Fatalf("expected category filter to keep only ESPN, got %+v", filtered)
	}
}

func TestHandlePlayerAPIUnknownActionReturnsEmptyArray(t *testing.T) {
	g, st := newTestGateway(t)
	accID, _ := st.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	st.CreateCredential(&model.Credential{AccountID: accID, Username: "bob", Password: "secret", MaxConnections: 1, Enabled: true})

	req := httptest.NewRequest("GET", "/player_api.php?username=bob&password=secret&action=get_short_epg", nil)
	rec := httptest.NewRecorder()
	g.handlePlayerAPI(rec, req, "req1")

	var out []any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v (body %s)", err, rec.Body.String())
	}
	if len(out) != 0 {
		t.Fatalf("expected empty array for unimplemented action, got %+v", out)
	}
}

func TestHandlePlayerAPIVODAndSeriesCategoriesAndStreams(t *testing.T) {
	g, st := newTestGateway(t)
	accID, _ := st.CreateAccount(&model.Account{Name: "A", Server: "s", Enabled: true})
	st.CreateCredential(&model.Credential{AccountID: accID, Username: "bob", Password: "secret", MaxConnections: 1, Enabled: true})

	liveCatID, _ := st.UpsertCategory(&model.Category{AccountID: accID, ExternalCategoryID: "1", Name: "Live Cat", StreamType: model.StreamTypeLive})
	st.UpsertChannel(&model.Channel{AccountID: accID, CategoryID: liveCatID, ExternalStreamID: "1", Name: "News", StreamType: model.StreamTypeLive, IsActive: true, IsVisible: true})

	vodCatID, _ := st.UpsertCategory(&model.Category{AccountID: accID, ExternalCategoryID: "1", Name: "Movies", StreamType: model.StreamTypeVOD})
	st.UpsertChannel(&model.Channel{AccountID: accID, CategoryID: vodCatID, ExternalStreamID: "1", Name: "A Movie", StreamType: model.StreamTypeVOD, IsActive: true, IsVisible: true})

	seriesCatID, _ := st.UpsertCategory(&model.Category{AccountID: accID, ExternalCategoryID: "1", Name: "Shows", StreamType: model.StreamTypeSeries})
	st.UpsertChannel(&model.Channel{AccountID: accID, CategoryID: seriesCatID, ExternalStreamID: "1", Name: "A Show", StreamType: model.StreamTypeSeries, IsActive: true, IsVisible: true})

	vodCatReq := httptest.NewRequest("GET", "/player_api.php?username=bob&password=secret&action=get_vod_categories", nil)
	vodCatRec := httptest.NewRecorder()
	g.handlePlayerAPI(vodCatRec, vodCatReq, "req1")
	var vodCats []apiCategory
	if err := json.Unmarshal(vodCatRec.Body.Bytes(), &vodCats); err != nil {
		t.Fatalf("decode vod categories: %v", err)
	}
	if len(vodCats) != 1 || vodCats[0].CategoryName != "Movies" {
		t.Fatalf("expected only the vod category, got %+v", vodCats)
	}

	vodStreamReq := httptest.NewRequest("GET", "/player_api.php?username=bob&password=secret&action=get_vod_streams", nil)
	vodStreamRec := httptest.NewRecorder()
	g.handlePlayerAPI(vodStreamRec, vodStreamReq, "req2")
	var vodStreams []apiStream
	if err := json.Unmarshal(vodStreamRec.Body.Bytes(), &vodStreams); err != nil {
		t.Fatalf("decode vod streams: %v", err)
	}
	if len(vodStreams) != 1 || vodStreams[0].Name != "A Movie" || vodStreams[0].StreamType != "movie" {
		t.Fatalf("expected one movie stream, got %+v", vodStreams)
	}

	seriesCatReq := httptest.NewRequest("GET", "/player_api.php?username=bob&password=secret&action=get_series_categories", nil)
	seriesCatRec := httptest.NewRecorder()
	g.handlePlayerAPI(seriesCatRec, seriesCatReq, "req3")
	var seriesCats []apiCategory
	if err := json.Unmarshal(seriesCatRec.Body.Bytes(), &seriesCats); err != nil {
		t.Fatalf("decode series categories: %v", err)
	}
	if len(seriesCats) != 1 || seriesCats[0].CategoryName != "Shows" {
		t.Fatalf("expected only the series category, got %+v", seriesCats)
	}

	seriesReq := httptest.NewRequest("GET", "/player_api.php?username=bob&password=secret&action=get_series", nil)
	seriesRec := httptest.NewRecorder()
	g.handlePlayerAPI(seriesRec, seriesReq, "req4")
	var series []apiStream
	if err := json.Unmarshal(seriesRec.Body.Bytes(), &series); err != nil {
		t.Fatalf("decode series: %v", err)
	}
	if len(series) != 1 || series[0].Name != "A Show" || series[0].StreamType != "series" {
		t.Fatalf("expected one series entry, got %+v", series)
	}
}
