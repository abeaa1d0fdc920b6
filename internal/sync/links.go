package sync

import (
	"fmt"
	"strings"

	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/store"
)

// eastTags and westTags are the tag spellings that identify a feed's time
// zone variant for auto-linking.
var (
	eastTags = map[string]bool{"EAST": true, "E": true, "ET": true, "EST": true, "EASTERN": true}
	westTags = map[string]bool{"WEST": true, "W": true, "PT": true, "PST": true, "PACIFIC": true, "WESTERN": true}
)

// LinkStats summarizes one DetectChannelLinks run.
type LinkStats struct {
	LinksCreated      int
	LinksSkipped      int
	ChannelsProcessed int
}

// DetectChannelLinks groups active channels by account and cleaned name, and
// links any west-tagged channel to the east-tagged channel in its group with
// a -3 hour offset. When a group has no east-tagged channel but exactly one
// untagged member, that lone untagged channel stands in as the anchor; two or
// more untagged channels leave no unambiguous anchor, so the group is skipped.
func DetectChannelLinks(st *store.Store, accountID int64) (LinkStats, error) {
	var stats LinkStats

	var channels []*model.Channel
	if accountID > 0 {
		all, err := st.ListChannels(accountID)
		if err != nil {
			return stats, fmt.Errorf("list channels: %w", err)
		}
		for _, c := range all {
			if c.IsActive {
				channels = append(channels, c)
			}
		}
	} else {
		accounts, err := st.ListAccounts(false)
		if err != nil {
			return stats, fmt.Errorf("list accounts: %w", err)
		}
		for _, a := range accounts {
			all, err := st.ListChannels(a.ID)
			if err != nil {
				return stats, fmt.Errorf("list channels for account %d: %w", a.ID, err)
			}
			for _, c := range all {
				if c.IsActive {
					channels = append(channels, c)
				}
			}
		}
	}
	if len(channels) == 0 {
		return stats, nil
	}
	stats.ChannelsProcessed = len(channels)

	ids := make([]int64, len(channels))
	for i, c := range channels {
		ids[i] = c.ID
	}
	tagsByChannel, err := st.ListChannelTagsBatch(ids, 500)
	if err != nil {
		return stats, fmt.Errorf("batch load channel tags: %w", err)
	}

	type variant struct {
		channel *model.Channel
		kind    string // "east", "west", or ""
	}
	groups := make(map[int64]map[string][]variant)

	for _, c := range channels {
		baseName := strings.ToLower(strings.TrimSpace(firstNonEmpty(c.CleanedName, c.Name)))
		if baseName == "" {
			continue
		}
		kind := ""
		for _, tag := range tagsByChannel[c.ID] {
			upper := strings.ToUpper(tag)
			if eastTags[upper] {
				kind = "east"
				break
			}
			if westTags[upper] {
				kind = "west"
				break
			}
		}
		if groups[c.AccountID] == nil {
			groups[c.AccountID] = make(map[string][]variant)
		}
		groups[c.AccountID][baseName] = append(groups[c.AccountID][baseName], variant{c, kind})
	}

	for _, byName := range groups {
		for _, variants := range byName {
			var east, west, none []*model.Channel
			for _, v := range variants {
				switch v.kind {
				case "east":
					east = append(east, v.channel)
				case "west":
					west = append(west, v.channel)
				default:
					none = append(none, v.channel)
				}
			}
			if len(west) > 0 && len(east) == 0 && len(none) == 1 {
				east = none
			}
			if len(west) == 0 || len(east) == 0 {
				continue
			}
			eastCh := east[0]
			for _, westCh := range west {
				_, created, err := st.CreateChannelLink(&model.ChannelLink{
					FromChannelID:   westCh.ID,
					ToChannelID:     eastCh.ID,
					TimeOffsetHours: -3,
					AutoDetected:    true,
				})
				if err != nil {
					return stats, fmt.Errorf("create channel link %d->%d: %w", westCh.ID, eastCh.ID, err)
				}
				if created {
					stats.LinksCreated++
				} else {
					stats.LinksSkipped++
				}
			}
		}
	}

	return stats, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
