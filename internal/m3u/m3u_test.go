package m3u

import (
	"bytes"
	"strings"
	"testing"
)

func TestWrite_urlTvg(t *testing.T) {
	var buf bytes.Buffer
	entries := []Entry{{ChannelID: "1", Name: "Ch1", TvgID: "ch1.us"}}
	err := Write(&buf, "http://localhost:8080/xmltv.php", entries, func(e Entry) string {
		return "http://localhost:8080/live/u/p/" + e.ChannelID + ".ts"
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	body := buf.String()
	if !strings.Contains(body, `#EXTM3U url-tvg="http://localhost:8080/xmltv.php"`) {
		t.Errorf("expected url-tvg header, got:\n%s", body)
	}
	if !strings.Contains(body, "http://localhost:8080/live/u/p/1.ts") {
		t.Errorf("expected stream url, got:\n%s", body)
	}
	if !strings.Contains(body, `tvg-id="ch1.us"`) {
		t.Errorf("expected tvg-id attribute, got:\n%s", body)
	}
}

func TestWrite_NoGuideURL(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, "", nil, func(e Entry) string { return "" })
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "#EXTM3U\n" {
		t.Errorf("expected bare header with no entries, got %q", buf.String())
	}
}

func TestWrite_EscapesCommaInName(t *testing.T) {
	var buf bytes.Buffer
	entries := []Entry{{ChannelID: "1", Name: "News, Live"}}
	err := Write(&buf, "", entries, func(e Entry) string { return "http://x/1" })
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.Contains(buf.String(), "News, Live") {
		t.Errorf("expected comma in name to be replaced, got:\n%s", buf.String())
	}
}

func TestWrite_GroupTitle(t *testing.T) {
	var buf bytes.Buffer
	entries := []Entry{{ChannelID: "1", Name: "ESPN", GroupTitle: "Sports"}}
	err := Write(&buf, "", entries, func(e Entry) string { return "http://x/1" })
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), `group-title="Sports"`) {
		t.Errorf("expected group-title attribute, got:\n%s", buf.String())
	}
}
