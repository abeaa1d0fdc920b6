// Package epgsync fetches and syncs XMLTV guide data for EpgSources.
package epgsync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/store"
	"github.com/snapetech/iptvcore/internal/xmltv"
	"github.com/snapetech/iptvcore/internal/xtream"
)

// Source type values recognized on model.EpgSource.SourceType.
const (
	SourceTypeProvider       = "provider"
	SourceTypeXMLTVURL       = "xmltv_url"
	SourceTypeSchedulesDirect = "schedules_direct"
)

// Stats summarizes one SyncSource run.
type Stats struct {
	Channels   int
	Programmes int
}

// SyncSource fetches XMLTV data for one EpgSource and upserts its channels.
// provider dispatches to an Xtream account's XMLTV endpoint (account and
// client resolved by the caller, since a provider source belongs to one
// specific account); xmltv_url fetches the URL directly over HTTP.
// schedules_direct is not handled here and returns an error; no code in this
// module syncs it.
func SyncSource(ctx context.Context, st *store.Store, client *http.Client, src *model.EpgSource, account *model.Account) (Stats, error) {
	if src.SourceType == SourceTypeSchedulesDirect {
		return Stats{}, fmt.Errorf("schedules_direct sources are not synced by SyncSource")
	}

	data, err := fetch(ctx, client, src, account)
	if err != nil {
		_ = st.UpdateEpgSourceSyncResult(src.ID, "error", err.Error(), 0, time.Now())
		return Stats{}, err
	}

	doc, err := xmltv.Parse(data)
	if err != nil {
		_ = st.UpdateEpgSourceSyncResult(src.ID, "error", err.Error(), 0, time.Now())
		return Stats{}, fmt.Errorf("parse xmltv: %w", err)
	}

	now := time.Now()
	var programmeCount int
	for _, ch := range doc.Channels {
		progs := doc.ProgrammesByChannel[ch.ChannelID]
		ec := &model.EpgChannel{
			SourceID:     src.ID,
			ChannelID:    ch.ChannelID,
			DisplayNames: ch.DisplayNames,
			IconURL:      ch.IconURL,
			URL:          ch.URL,
			ProgramCount: len(progs),
			LastSeen:     now,
		}
		if len(progs) > 0 {
			if start, ok := xmltv.ParseTime(progs[0].Start); ok {
				ec.FirstProgram = start
			}
			if stop, ok := xmltv.ParseTime(progs[len(progs)-1].Stop); ok {
				ec.LastProgram = stop
			}
		}
		programmeCount += len(progs)
		if _, err := st.UpsertEpgChannel(ec); err != nil {
			return Stats{}, fmt.Errorf("upsert epg channel %s: %w", ch.ChannelID, err)
		}
	}

	stats := Stats{Channels: len(doc.Channels), Programmes: programmeCount}
	if err := st.UpdateEpgSourceSyncResult(src.ID, "success", "", stats.Channels, now); err != nil {
		return stats, fmt.Errorf("update epg source sync result: %w", err)
	}
	return stats, nil
}

func fetch(ctx context.Context, client *http.Client, src *model.EpgSource, account *model.Account) ([]byte, error) {
	switch src.SourceType {
	case SourceTypeProvider:
		if account == nil {
			return nil, fmt.Errorf("provider epg source %q has no associated account", src.Name)
		}
		xc := xtream.New(account.Server, account.LegacyUsername, account.LegacyPassword, account.UserAgent)
		rc, err := xc.XMLTV(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch provider xmltv: %w", err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	case SourceTypeXMLTVURL:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("xmltv url request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch xmltv url: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch xmltv url: status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	default:
		return nil, fmt.Errorf("unknown epg source type %q", src.SourceType)
	}
}
