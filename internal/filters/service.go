package filters

import (
	"fmt"

	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/store"
)

// Stats summarizes one ComputeVisibilityForAccount run.
type Stats struct {
	ChannelsProcessed int
	ChannelsVisible   int
	ChannelsHidden    int
}

// ComputeVisibilityForAccount recomputes and persists is_visible for every
// active channel belonging to account, against its enabled filters. Called
// whenever filters or tags change (via invalidation) and at the end of every
// sync cycle.
func ComputeVisibilityForAccount(st *store.Store, accountID int64) (Stats, error) {
	var stats Stats

	channels, err := st.ListChannels(accountID)
	if err != nil {
		return stats, fmt.Errorf("list channels: %w", err)
	}
	active := channels[:0:0]
	for _, c := range channels {
		if c.IsActive {
			active = append(active, c)
		}
	}

	enabled, err := st.ListEnabledFilters(accountID)
	if err != nil {
		return stats, fmt.Errorf("list enabled filters: %w", err)
	}

	hasTagFilter := false
	for _, f := range enabled {
		if f.Kind == model.FilterKindTag {
			hasTagFilter = true
			break
		}
	}

	var tagsByChannel map[int64][]string
	if hasTagFilter {
		ids := make([]int64, len(active))
		for i, c := range active {
			ids[i] = c.ID
		}
		tagsByChannel, err = st.ListChannelTagsBatch(ids, 1000)
		if err != nil {
			return stats, fmt.Errorf("batch load channel tags: %w", err)
		}
	}

	categoryNames := make(map[int64]string)

	for _, c := range active {
		categoryName, ok := categoryNames[c.CategoryID]
		if !ok {
			if cat, err := st.GetCategory(c.CategoryID); err == nil && cat != nil {
				categoryName = cat.Name
			}
			categoryNames[c.CategoryID] = categoryName
		}

		candidate := Channel{
			Name:         c.Name,
			CategoryName: categoryName,
			IsPPV:        c.IsPPV,
			Tags:         tagsByChannel[c.ID],
		}

		visible := ComputeVisibility(candidate, enabled)
		if visible != c.IsVisible {
			if err := st.SetChannelVisibility(c.ID, visible); err != nil {
				return stats, fmt.Errorf("set channel visibility: %w", err)
			}
		}

		stats.ChannelsProcessed++
		if visible {
			stats.ChannelsVisible++
		} else {
			stats.ChannelsHidden++
		}
	}

	return stats, nil
}
