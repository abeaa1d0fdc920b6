// Package filters evaluates an account's whitelist/blacklist rules against a
// channel and decides its visibility.
package filters

import (
	"regexp"
	"strings"

	"github.com/snapetech/iptvcore/internal/model"
)

// Channel carries the fields the evaluator needs for one candidate.
type Channel struct {
	Name         string
	CategoryName string
	IsPPV        bool
	Tags         []string
}

// ppvPlaceholder matches provider placeholder slates shown between PPV events.
var ppvPlaceholder = regexp.MustCompile(`(?i)(no event streaming|event\s*\d+|\btba\b|\btbd\b|\boffline\b|coming soon)|[:\-]\s*$`)

// ComputeVisibility decides whether ch should be visible given the account's
// enabled filters. Multiple whitelist filters of the same kind combine with
// OR; blacklists combine with AND (any match hides the channel). A PPV
// channel is forced invisible if its name looks like an inter-event
// placeholder, and forced visible otherwise, regardless of filter outcome —
// this is decided before any filter is consulted, so operator filters can't
// hide a live PPV event or leak a placeholder slate.
func ComputeVisibility(ch Channel, enabled []*model.Filter) bool {
	if ch.IsPPV {
		return !ppvPlaceholder.MatchString(ch.Name)
	}

	if len(enabled) == 0 {
		return true
	}

	whitelists := make(map[string][]*model.Filter)
	var blacklists []*model.Filter
	for _, f := range enabled {
		if f.Action == model.FilterWhitelist {
			whitelists[f.Kind] = append(whitelists[f.Kind], f)
		} else {
			blacklists = append(blacklists, f)
		}
	}

	for _, f := range blacklists {
		if filterMatches(f, ch) {
			return false
		}
	}

	for _, kindFilters := range whitelists {
		matchedAny := false
		for _, f := range kindFilters {
			if filterMatches(f, ch) {
				matchedAny = true
				break
			}
		}
		if !matchedAny {
			return false
		}
	}

	return true
}

func filterMatches(f *model.Filter, ch Channel) bool {
	switch f.Kind {
	case model.FilterKindCategory:
		return strings.Contains(strings.ToLower(ch.CategoryName), strings.ToLower(f.Value))
	case model.FilterKindChannelName:
		return strings.Contains(strings.ToLower(ch.Name), strings.ToLower(f.Value))
	case model.FilterKindRegex:
		re, err := regexp.Compile("(?i)" + f.Value)
		if err != nil {
			return false
		}
		return re.MatchString(ch.Name)
	case model.FilterKindTag:
		for _, tag := range ch.Tags {
			if strings.EqualFold(tag, f.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
