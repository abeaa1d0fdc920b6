package epgmatch

import (
	"fmt"

	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/store"
)

// Options narrows one MatchAccount run.
type Options struct {
	SourceID        int64 // 0 = every EpgSource
	CategoryID      int64 // 0 = every category
	IncludeFiltered bool  // include channels whose visibility filter hid them
}

// Stats summarizes one MatchAccount run.
type Stats struct {
	TotalChannels    int
	Excluded         int
	Matched          int
	Unmatched        int
	SkippedExisting  int
	MatchesByType    map[string]int
}

// skipExistingConfidence is the confidence threshold above which an existing
// mapping is left alone rather than re-evaluated.
const skipExistingConfidence = 0.85

// MatchAccount matches every eligible channel on accountID to an EpgChannel,
// writing or refreshing ChannelEpgMapping rows. Channels with an operator
// override, or an existing mapping at or above skipExistingConfidence, are
// left untouched.
func MatchAccount(st *store.Store, accountID int64, opts Options) (Stats, error) {
	stats := Stats{MatchesByType: make(map[string]int)}

	rules, err := st.EpgMatchRulesForAccount(accountID)
	if err != nil {
		return stats, fmt.Errorf("epg match rules for account: %w", err)
	}

	exclusionPatterns, err := st.ListEpgExclusionPatterns()
	if err != nil {
		return stats, fmt.Errorf("list exclusion patterns: %w", err)
	}

	nameMappings, err := st.ListEpgChannelNameMappings()
	if err != nil {
		return stats, fmt.Errorf("list channel name mappings: %w", err)
	}

	fcc, err := LoadFCCConfig(st)
	if err != nil {
		return stats, fmt.Errorf("load fcc config: %w", err)
	}

	var channels []*model.Channel
	if opts.IncludeFiltered {
		channels, err = st.ListChannels(accountID)
	} else {
		channels, err = st.ListActiveVisibleChannels(accountID)
	}
	if err != nil {
		return stats, fmt.Errorf("list channels: %w", err)
	}
	if opts.CategoryID > 0 {
		filtered := channels[:0]
		for _, c := range channels {
			if c.CategoryID == opts.CategoryID {
				filtered = append(filtered, c)
			}
		}
		channels = filtered
	}
	stats.TotalChannels = len(channels)
	if len(channels) == 0 {
		return stats, nil
	}

	epgChannels, err := st.ListEpgChannels(opts.SourceID)
	if err != nil {
		return stats, fmt.Errorf("list epg channels: %w", err)
	}
	idx := BuildIndex(epgChannels)

	categoryNames := make(map[int64]string)
	ids := make([]int64, len(channels))
	for i, c := range channels {
		ids[i] = c.ID
	}
	tagsByChannel, err := st.ListChannelTagsBatch(ids, 500)
	if err != nil {
		return stats, fmt.Errorf("batch load channel tags: %w", err)
	}

	for _, ch := range channels {
		categoryName, ok := categoryNames[ch.CategoryID]
		if !ok && ch.CategoryID > 0 {
			if cat, err := st.GetCategory(ch.CategoryID); err == nil && cat != nil {
				categoryName = cat.Name
			}
			categoryNames[ch.CategoryID] = categoryName
		}

		tagSet := make(map[string]bool)
		countryTags := make(map[string]bool)
		for _, t := range tagsByChannel[ch.ID] {
			upper := upperASCII(t)
			tagSet[upper] = true
			if fcc.CountryTags[upper] {
				countryTags[upper] = true
			}
		}

		verdict := ShouldExcludeChannel(ch, categoryName, tagSet, exclusionPatterns)
		if verdict.Excluded {
			stats.Excluded++
			continue
		}

		existing, err := st.GetChannelEpgMapping(ch.ID)
		if err != nil {
			return stats, fmt.Errorf("get channel epg mapping %d: %w", ch.ID, err)
		}
		if existing != nil && (existing.IsOverride || existing.Confidence >= skipExistingConfidence) {
			stats.SkippedExisting++
			continue
		}

		result, err := MatchChannel(Input{
			Channel:      ch,
			CategoryName: categoryName,
			Tags:         tagSet,
			CountryTags:  countryTags,
		}, rules, idx, nameMappings, fcc)
		if err != nil {
			return stats, fmt.Errorf("match channel %d: %w", ch.ID, err)
		}

		if result == nil {
			stats.Unmatched++
			continue
		}

		stats.Matched++
		stats.MatchesByType[result.MatchType]++
		if err := st.SetChannelEpgMapping(&model.ChannelEpgMapping{
			ChannelID:    ch.ID,
			EpgChannelID: result.EpgChannel.ID,
			MatchType:    result.MatchType,
			Confidence:   result.Confidence,
		}); err != nil {
			return stats, fmt.Errorf("set channel epg mapping %d: %w", ch.ID, err)
		}
	}

	return stats, nil
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}
