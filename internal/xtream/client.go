// Package xtream is a client for the Xtream Codes player_api.php / xmltv.php
// HTTP surface that most IPTV providers expose.
package xtream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/snapetech/iptvcore/internal/httpclient"
)

// Client talks to one account's Xtream Codes server.
type Client struct {
	Server    string // host[:port], no scheme
	Username  string
	Password  string
	UserAgent string

	HTTP *http.Client
}

// New builds a Client with the default provider-facing HTTP client
// and retry policy.
func New(server, username, password, userAgent string) *Client {
	if userAgent == "" {
		userAgent = "okhttp/3.14.9"
	}
	return &Client{
		Server:    server,
		Username:  username,
		Password:  password,
		UserAgent: userAgent,
		HTTP:      httpclient.Default(),
	}
}

func (c *Client) baseURL() string {
	return "http://" + c.Server
}

func (c *Client) request(ctx context.Context, action string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("username", c.Username)
	params.Set("password", c.Password)
	if action != "" {
		params.Set("action", action)
	}

	reqURL := c.baseURL() + "/player_api.php?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := httpclient.DoWithRetry(ctx, c.HTTP, req, httpclient.ProviderRetryPolicy)
	if err != nil {
		return fmt.Errorf("xtream %s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("xtream %s: unexpected status %d", action, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	return nil
}

// Category is one get_live_categories / get_vod_categories / get_series_categories entry.
type Category struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
}

// Stream is one get_live_streams entry.
type Stream struct {
	StreamID          int    `json:"stream_id"`
	Name              string `json:"name"`
	StreamType        string `json:"stream_type"`
	StreamIcon        string `json:"stream_icon"`
	EpgChannelID      string `json:"epg_channel_id"`
	Added             string `json:"added"`
	CategoryID        string `json:"category_id"`
	CustomSid         string `json:"custom_sid"`
	TVArchive         int    `json:"tv_archive"`
	DirectSource      string `json:"direct_source"`
	TVArchiveDuration int    `json:"tv_archive_duration"`
}

// LiveCategories fetches get_live_categories.
func (c *Client) LiveCategories(ctx context.Context) ([]Category, error) {
	var cats []Category
	if err := c.request(ctx, "get_live_categories", nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// LiveStreams fetches get_live_streams, optionally scoped to one category.
func (c *Client) LiveStreams(ctx context.Context, categoryID string) ([]Stream, error) {
	params := url.Values{}
	if categoryID != "" {
		params.Set("category_id", categoryID)
	}
	var streams []Stream
	if err := c.request(ctx, "get_live_streams", params, &streams); err != nil {
		return nil, err
	}
	return streams, nil
}

// VODCategories fetches get_vod_categories.
func (c *Client) VODCategories(ctx context.Context) ([]Category, error) {
	var cats []Category
	if err := c.request(ctx, "get_vod_categories", nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// VODStreams fetches get_vod_streams, optionally scoped to one category.
func (c *Client) VODStreams(ctx context.Context, categoryID string) ([]Stream, error) {
	params := url.Values{}
	if categoryID != "" {
		params.Set("category_id", categoryID)
	}
	var streams []Stream
	if err := c.request(ctx, "get_vod_streams", params, &streams); err != nil {
		return nil, err
	}
	return streams, nil
}

// SeriesCategories fetches get_series_categories.
func (c *Client) SeriesCategories(ctx context.Context) ([]Category, error) {
	var cats []Category
	if err := c.request(ctx, "get_series_categories", nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// Series fetches get_series, optionally scoped to one category.
func (c *Client) Series(ctx context.Context, categoryID string) ([]Stream, error) {
	params := url.Values{}
	if categoryID != "" {
		params.Set("category_id", categoryID)
	}
	var series []Stream
	if err := c.request(ctx, "get_series", params, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// XMLTV fetches the provider's raw xmltv.php feed body.
func (c *Client) XMLTV(ctx context.Context) (io.ReadCloser, error) {
	reqURL := fmt.Sprintf("%s/xmltv.php?username=%s&password=%s",
		c.baseURL(), url.QueryEscape(c.Username), url.QueryEscape(c.Password))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build xmltv request: %w", err)
	}
	req.Header.Set("User-Agent", "9XtreamPlayer")

	resp, err := httpclient.DoWithRetry(ctx, c.HTTP, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return nil, fmt.Errorf("fetch xmltv: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch xmltv: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// StreamURL builds the live stream URL for a channel, in Xtream's
// /live/{user}/{pass}/{id}.{ext} convention.
func (c *Client) StreamURL(streamID int, ext string) string {
	if ext == "" {
		ext = "ts"
	}
	return fmt.Sprintf("%s/live/%s/%s/%d.%s", c.baseURL(), c.Username, c.Password, streamID, ext)
}
