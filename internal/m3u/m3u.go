// Package m3u emits M3U playlists for the visible channel catalog.
package m3u

import (
	"fmt"
	"io"
	"strings"
)

// Entry is one channel to render as an #EXTINF/URL pair.
type Entry struct {
	ChannelID  string // stable ID used in the stream URL path
	Name       string
	TvgID      string // EPG channel ID, if mapped
	TvgLogo    string
	GroupTitle string
}

// Write emits an M3U playlist to w. streamURL builds the proxy URL for one
// channel; guideURL, if non-empty, is advertised via url-tvg for players
// that auto-discover the XMLTV guide from the playlist itself.
func Write(w io.Writer, guideURL string, entries []Entry, streamURL func(Entry) string) error {
	header := "#EXTM3U"
	if guideURL != "" {
		header += fmt.Sprintf(" url-tvg=%q", guideURL)
	}
	if _, err := io.WriteString(w, header+"\n"); err != nil {
		return err
	}

	for _, e := range entries {
		name := strings.ReplaceAll(e.Name, ",", " ")
		attrs := fmt.Sprintf("tvg-id=%q tvg-name=%q", e.TvgID, name)
		if e.TvgLogo != "" {
			attrs += fmt.Sprintf(" tvg-logo=%q", e.TvgLogo)
		}
		if e.GroupTitle != "" {
			attrs += fmt.Sprintf(" group-title=%q", e.GroupTitle)
		}
		line := fmt.Sprintf("#EXTINF:-1 %s,%s\n%s\n", attrs, name, streamURL(e))
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}
