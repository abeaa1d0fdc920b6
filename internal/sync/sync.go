// Package sync pulls categories and channels from an account's upstream
// Xtream server and reconciles them into the store.
package sync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/snapetech/iptvcore/internal/filters"
	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/rules"
	"github.com/snapetech/iptvcore/internal/store"
	"github.com/snapetech/iptvcore/internal/xtream"
)

// Stats summarizes one SyncAccount run.
type Stats struct {
	CategoriesAdded     int
	CategoriesUpdated   int
	ChannelsAdded       int
	ChannelsUpdated     int
	ChannelsDeactivated int
	ChannelsVisible     int
	ChannelsHidden      int
	LinksCreated        int
	LinksSkipped        int
	Errors              []string
}

// staleCutoff is how far back a channel's last_seen can fall before this run
// marks it inactive: any channel the upstream no longer lists for at least
// this long didn't just get skipped by a transient partial response.
const staleCutoff = 5 * time.Minute

// NewUpstreamClient builds an xtream.Client for account using its primary
// (first enabled) credential, falling back to the account's own legacy
// username/password for accounts predating multi-credential support.
func NewUpstreamClient(st *store.Store, account *model.Account) (*xtream.Client, error) {
	creds, err := st.ListCredentials(account.ID, true)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	if len(creds) > 0 {
		c := creds[0]
		return xtream.New(account.Server, c.Username, c.Password, account.UserAgent), nil
	}
	if account.LegacyUsername != "" {
		return xtream.New(account.Server, account.LegacyUsername, account.LegacyPassword, account.UserAgent), nil
	}
	return nil, fmt.Errorf("account %d has no usable credential", account.ID)
}

// SyncAccount fetches categories and live streams from account's upstream and
// reconciles them into the store, deactivates channels the upstream no
// longer lists, and recomputes filter visibility.
func SyncAccount(ctx context.Context, st *store.Store, accountID int64) (Stats, error) {
	var stats Stats

	account, err := st.GetAccount(accountID)
	if err != nil {
		return stats, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return stats, fmt.Errorf("account %d not found", accountID)
	}
	if !account.Enabled {
		return stats, fmt.Errorf("account %d is disabled", accountID)
	}

	client, err := NewUpstreamClient(st, account)
	if err != nil {
		return stats, err
	}

	now := time.Now().UTC()

	cats, err := client.LiveCategories(ctx)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("categories sync error: %v", err))
	} else if err := syncCategories(st, accountID, model.StreamTypeLive, cats, now, &stats); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("categories sync error: %v", err))
	}

	streams, err := client.LiveStreams(ctx, "")
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("channels sync error: %v", err))
		return stats, fmt.Errorf("sync account %d: %s", accountID, strings.Join(stats.Errors, "; "))
	}
	if err := syncChannels(st, accountID, model.StreamTypeLive, streams, now, &stats); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("channels sync error: %v", err))
		return stats, fmt.Errorf("sync account %d: %s", accountID, strings.Join(stats.Errors, "; "))
	}

	if !account.LiveOnly {
		syncVODAndSeries(ctx, st, client, accountID, now, &stats)
	}

	deactivated, err := st.DeactivateStaleChannels(accountID, now.Add(-staleCutoff))
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("deactivate stale channels: %v", err))
	} else {
		stats.ChannelsDeactivated = int(deactivated)
	}

	linkStats, err := DetectChannelLinks(st, accountID)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("channel link detection error: %v", err))
	} else {
		stats.LinksCreated = linkStats.LinksCreated
		stats.LinksSkipped = linkStats.LinksSkipped
	}

	if visStats, err := filters.ComputeVisibilityForAccount(st, accountID); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("filter visibility error: %v", err))
	} else {
		stats.ChannelsVisible = visStats.ChannelsVisible
		stats.ChannelsHidden = visStats.ChannelsHidden
	}

	status := "success"
	if len(stats.Errors) > 0 {
		status = "partial"
	}
	_ = st.UpdateAccountSyncResult(accountID, status, strings.Join(stats.Errors, "; "), now)

	return stats, nil
}

// syncVODAndSeries fetches and upserts VOD categories/streams and series
// categories/series into the parallel VOD/series catalog split, the same way
// live categories/channels are synced above. Either fetch failing is recorded
// in stats.Errors without aborting the other or the live sync that already
// committed.
func syncVODAndSeries(ctx context.Context, st *store.Store, client *xtream.Client, accountID int64, now time.Time, stats *Stats) {
	vodCats, err := client.VODCategories(ctx)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("vod categories sync error: %v", err))
	} else if err := syncCategories(st, accountID, model.StreamTypeVOD, vodCats, now, stats); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("vod categories sync error: %v", err))
	}
	vodStreams, err := client.VODStreams(ctx, "")
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("vod streams sync error: %v", err))
	} else if err := syncChannels(st, accountID, model.StreamTypeVOD, vodStreams, now, stats); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("vod streams sync error: %v", err))
	}

	seriesCats, err := client.SeriesCategories(ctx)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("series categories sync error: %v", err))
	} else if err := syncCategories(st, accountID, model.StreamTypeSeries, seriesCats, now, stats); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("series categories sync error: %v", err))
	}
	series, err := client.Series(ctx, "")
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("series sync error: %v", err))
	} else if err := syncChannels(st, accountID, model.StreamTypeSeries, series, now, stats); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("series sync error: %v", err))
	}
}

func syncCategories(st *store.Store, accountID int64, streamType string, cats []xtream.Category, now time.Time, stats *Stats) error {
	existing, err := st.ListCategoriesByType(accountID, streamType)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	byExternalID := make(map[string]*model.Category, len(existing))
	for _, c := range existing {
		byExternalID[c.ExternalCategoryID] = c
	}

	for _, cd := range cats {
		if cd.CategoryID == "" {
			continue
		}
		name := cd.CategoryName
		if name == "" {
			name = "Unknown"
		}
		if c, ok := byExternalID[cd.CategoryID]; ok {
			if c.Name != name {
				stats.CategoriesUpdated++
			}
			c.Name = name
			c.LastSeen = now
			if _, err := st.UpsertCategory(c); err != nil {
				return fmt.Errorf("update category %s: %w", cd.CategoryID, err)
			}
			continue
		}
		nc := &model.Category{
			AccountID:          accountID,
			ExternalCategoryID: cd.CategoryID,
			Name:               name,
			StreamType:         streamType,
			IsPPV:              isPPVCategory(name),
			LastSeen:           now,
		}
		if _, err := st.UpsertCategory(nc); err != nil {
			return fmt.Errorf("create category %s: %w", cd.CategoryID, err)
		}
		stats.CategoriesAdded++
	}
	return nil
}

// ppvCategoryMarkers are category-name substrings that mark a category as
// pay-per-view.
var ppvCategoryMarkers = []string{"PPV", "PAY-PER-VIEW", "UFC PPV", "WWE PPV"}

func isPPVCategory(name string) bool {
	upper := strings.ToUpper(name)
	for _, marker := range ppvCategoryMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

func syncChannels(st *store.Store, accountID int64, streamType string, streams []xtream.Stream, now time.Time, stats *Stats) error {
	tagRules, err := st.RulesForAccount(accountID)
	if err != nil {
		return fmt.Errorf("rules for account: %w", err)
	}
	if len(tagRules) == 0 {
		tagRules = rules.DefaultRules()
	}

	existingCats, err := st.ListCategoriesByType(accountID, streamType)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	catIDByExternal := make(map[string]int64, len(existingCats))
	catNameByExternal := make(map[string]string, len(existingCats))
	for _, c := range existingCats {
		catIDByExternal[c.ExternalCategoryID] = c.ID
		catNameByExternal[c.ExternalCategoryID] = c.Name
	}

	existingChannels, err := st.ListChannelsByType(accountID, streamType)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	byExternalID := make(map[string]*model.Channel, len(existingChannels))
	for _, c := range existingChannels {
		byExternalID[c.ExternalStreamID] = c
	}

	for _, sd := range streams {
		externalID := strconv.Itoa(sd.StreamID)
		if sd.StreamID == 0 {
			continue
		}
		name := sd.Name
		if name == "" {
			name = "Unknown"
		}

		categoryID := catIDByExternal[sd.CategoryID]
		categoryName := catNameByExternal[sd.CategoryID]
		extractedTags, cleanedName := rules.Extract(name, categoryName, tagRules)
		isPPV := isPPVCategory(categoryName)

		if c, ok := byExternalID[externalID]; ok {
			changed := c.Name != name || c.CleanedName != cleanedName || c.CategoryID != categoryID || c.IsPPV != isPPV
			c.Name = name
			c.CleanedName = cleanedName
			c.CategoryID = categoryID
			c.IsPPV = isPPV
			c.EpgChannelID = sd.EpgChannelID
			c.IsActive = true
			c.LastSeen = now
			if _, err := st.UpsertChannel(c); err != nil {
				return fmt.Errorf("update channel %s: %w", externalID, err)
			}
			if len(extractedTags) > 0 {
				_ = st.SetChannelTags(c.ID, model.TagSourceExtraction, tagNames(extractedTags))
			}
			if changed {
				stats.ChannelsUpdated++
			}
			continue
		}

		nc := &model.Channel{
			AccountID:        accountID,
			CategoryID:       categoryID,
			ExternalStreamID: externalID,
			Name:             name,
			CleanedName:      cleanedName,
			EpgChannelID:     sd.EpgChannelID,
			StreamType:       streamType,
			IsActive:         true,
			IsVisible:        true,
			IsPPV:            isPPV,
			LastSeen:         now,
		}
		id, err := st.UpsertChannel(nc)
		if err != nil {
			return fmt.Errorf("create channel %s: %w", externalID, err)
		}
		nc.ID = id
		stats.ChannelsAdded++

		if len(extractedTags) > 0 {
			_ = st.SetChannelTags(id, model.TagSourceExtraction, tagNames(extractedTags))
		}
	}
	return nil
}

func tagNames(tags map[string]bool) []string {
	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	return out
}
