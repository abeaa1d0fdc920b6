// Package xmltv parses and emits XMLTV 1.0 guide documents.
package xmltv

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// ParsedChannel is one <channel> element extracted from an XMLTV document.
type ParsedChannel struct {
	ChannelID    string
	DisplayNames []string
	IconURL      string
	URL          string
}

// DisplayName returns the channel's primary display name, falling back to
// its ID when no display-name element was present.
func (c ParsedChannel) DisplayName() string {
	if len(c.DisplayNames) > 0 {
		return c.DisplayNames[0]
	}
	return c.ChannelID
}

// ParsedProgramme is one <programme> element, reduced to the fields the
// sync pipeline needs: its channel, and its time range.
type ParsedProgramme struct {
	ChannelID string
	Start     string
	Stop      string
}

// Document is the result of parsing an XMLTV document.
type Document struct {
	Channels            []ParsedChannel
	ProgrammesByChannel map[string][]ParsedProgramme
}

type xmlDoc struct {
	XMLName    xml.Name       `xml:"tv"`
	Channels   []xmlChannel   `xml:"channel"`
	Programmes []xmlProgramme `xml:"programme"`
}

type xmlChannel struct {
	ID           string   `xml:"id,attr"`
	DisplayNames []string `xml:"display-name"`
	Icon         *xmlIcon `xml:"icon"`
	URL          string   `xml:"url"`
}

type xmlIcon struct {
	Src string `xml:"src,attr"`
}

type xmlProgramme struct {
	Channel string `xml:"channel,attr"`
	Start   string `xml:"start,attr"`
	Stop    string `xml:"stop,attr"`
}

// Parse decodes raw XMLTV bytes into a Document. Channels with no id
// attribute are skipped; programmes referencing an unseen channel are
// skipped.
func Parse(xmlContent []byte) (*Document, error) {
	var doc xmlDoc
	if err := xml.Unmarshal(xmlContent, &doc); err != nil {
		return nil, fmt.Errorf("parse xmltv: %w", err)
	}

	out := &Document{ProgrammesByChannel: make(map[string][]ParsedProgramme)}
	for _, c := range doc.Channels {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			continue
		}
		var names []string
		for _, n := range c.DisplayNames {
			if n := strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		pc := ParsedChannel{ChannelID: id, DisplayNames: names, URL: strings.TrimSpace(c.URL)}
		if c.Icon != nil {
			pc.IconURL = strings.TrimSpace(c.Icon.Src)
		}
		out.Channels = append(out.Channels, pc)
		out.ProgrammesByChannel[id] = nil
	}

	for _, p := range doc.Programmes {
		id := strings.TrimSpace(p.Channel)
		if id == "" {
			continue
		}
		if _, ok := out.ProgrammesByChannel[id]; !ok {
			continue
		}
		out.ProgrammesByChannel[id] = append(out.ProgrammesByChannel[id], ParsedProgramme{
			ChannelID: id,
			Start:     p.Start,
			Stop:      p.Stop,
		})
	}
	return out, nil
}

// ParseTime parses an XMLTV timestamp ("20060102150405 -0700" or without
// the timezone offset). It returns ok=false if the value cannot be parsed
// by either accepted layout.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	// Drop the timezone offset; callers only need a wall-clock time range.
	first := strings.Fields(s)[0]
	if t, err := time.Parse("20060102150405", first); err == nil {
		return t, true
	}
	if t, err := time.Parse("200601021504", first); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// EmitChannel is one channel to render in an emitted XMLTV document.
type EmitChannel struct {
	ID          string
	DisplayName string
	IconURL     string
}

// EmitProgramme is one programme slot to render in an emitted XMLTV document.
type EmitProgramme struct {
	ChannelID string
	Start     time.Time
	Stop      time.Time
	Title     string
}

type emitDoc struct {
	XMLName    xml.Name        `xml:"tv"`
	Source     string          `xml:"source-info-name,attr,omitempty"`
	Channels   []emitChannel   `xml:"channel"`
	Programmes []emitProgramme `xml:"programme"`
}

type emitChannel struct {
	ID      string    `xml:"id,attr"`
	Display string    `xml:"display-name"`
	Icon    *emitIcon `xml:"icon,omitempty"`
}

type emitIcon struct {
	Src string `xml:"src,attr"`
}

type emitProgramme struct {
	Start   string    `xml:"start,attr"`
	Stop    string    `xml:"stop,attr"`
	Channel string    `xml:"channel,attr"`
	Title   emitTitle `xml:"title"`
}

type emitTitle struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

const xmltvTimeLayout = "20060102150405 -0700"

// Emit writes an XMLTV 1.0 document for channels and programmes to w.
func Emit(w io.Writer, source string, channels []EmitChannel, programmes []EmitProgramme) error {
	doc := emitDoc{Source: source}
	for _, c := range channels {
		ec := emitChannel{ID: c.ID, Display: c.DisplayName}
		if c.IconURL != "" {
			ec.Icon = &emitIcon{Src: c.IconURL}
		}
		doc.Channels = append(doc.Channels, ec)
	}
	for _, p := range programmes {
		doc.Programmes = append(doc.Programmes, emitProgramme{
			Start:   p.Start.UTC().Format(xmltvTimeLayout),
			Stop:    p.Stop.UTC().Format(xmltvTimeLayout),
			Channel: p.ChannelID,
			Title:   emitTitle{Lang: "en", Value: p.Title},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("emit xmltv: %w", err)
	}
	return nil
}
