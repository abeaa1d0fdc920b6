// Package epgmatch binds Channels to EpgChannels using a priority-ordered
// rule pipeline: provider ID, callsign, FCC facility lookup, exact and fuzzy
// name matching, regex, tag and category patterns, and network fallback.
package epgmatch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/snapetech/iptvcore/internal/model"
)

// majorBroadcastNetworks is the network list tried by the network_fallback
// match type. LookupFCCCallsign also consults it when no FccMatchNetwork rows
// are configured, but without such rows it resolves no network and returns no
// callsign.
var majorBroadcastNetworks = map[string]bool{
	"ABC": true, "NBC": true, "CBS": true, "FOX": true, "PBS": true, "CW": true, "ION": true,
}

// qualityTagsFallback and countryTagsFallback are excluded from location
// detection when no QualityTag/CountryTag configuration exists.
var qualityTagsFallback = map[string]bool{
	"HD": true, "SD": true, "4K": true, "UHD": true, "FHD": true, "RAW": true, "60FPS": true,
}

var countryTagsFallback = map[string]bool{
	"US": true, "USA": true, "UK": true, "CA": true,
}

// Index is a set of lookup tables over a source's EpgChannels, built once per
// matching run.
type Index struct {
	ByID       map[string]*model.EpgChannel // lower channel_id
	ByName     map[string]*model.EpgChannel // normalized display name
	ByCallsign map[string]*model.EpgChannel // uppercase callsign, including normalized base callsign
}

// BuildIndex indexes epgChannels by channel_id, normalized display name, and
// extracted callsign (both the raw and normalized-suffix-stripped form).
func BuildIndex(epgChannels []*model.EpgChannel) *Index {
	idx := &Index{
		ByID:       make(map[string]*model.EpgChannel, len(epgChannels)),
		ByName:     make(map[string]*model.EpgChannel, len(epgChannels)),
		ByCallsign: make(map[string]*model.EpgChannel, len(epgChannels)),
	}
	for _, ec := range epgChannels {
		if ec.ChannelID != "" {
			idx.ByID[strings.ToLower(ec.ChannelID)] = ec
		}
		for _, dn := range ec.DisplayNames {
			if norm := NormalizeName(dn); norm != "" {
				idx.ByName[norm] = ec
				break
			}
		}
		callsign := ExtractCallsign(ec.ChannelID)
		if callsign == "" {
			continue
		}
		callsignUpper := strings.ToUpper(callsign)
		idx.ByCallsign[callsignUpper] = ec
		if base := NormalizeCallsign(callsignUpper); base != "" && base != callsignUpper {
			if _, exists := idx.ByCallsign[base]; !exists {
				idx.ByCallsign[base] = ec
			}
		}
	}
	return idx
}

var (
	nonAlphaNum  = regexp.MustCompile(`[^a-z0-9\s]`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeName lowercases name, strips punctuation without leaving a space
// in its place, and collapses whitespace, so "ESPN  HD" and "espn hd!" compare
// equal while "ESPN-HD" becomes "espnhd".
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	n := strings.ToLower(name)
	n = nonAlphaNum.ReplaceAllString(n, "")
	n = multiSpaceRe.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

var (
	sdCallsignRe  = regexp.MustCompile(`(?i)^I(\d+)\.json\.schedulesdirect\.org`)
	dotCallsignRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9\-]{2,9}\.`)
)

// ExtractCallsign pulls a broadcast callsign out of an EPG channel_id,
// recognizing the Schedules Direct numeric-ID format, the
// "CALLSIGN.suffix" convention, and bare callsigns.
func ExtractCallsign(channelID string) string {
	if channelID == "" {
		return ""
	}
	if m := sdCallsignRe.FindStringSubmatch(channelID); m != nil {
		return m[1]
	}
	if dotCallsignRe.MatchString(channelID) {
		return strings.SplitN(channelID, ".", 2)[0]
	}
	if !strings.Contains(channelID, ".") && len(channelID) <= 10 {
		return channelID
	}
	return ""
}

var callsignSuffixRe = regexp.MustCompile(`-(TV|DT|HD|FM|AM|LP|CA|CD|LD|D\d?)$`)

// NormalizeCallsign strips common broadcast suffixes (-TV, -DT, -HD, ...) so
// an FCC callsign like KECI-TV matches an EPG callsign of KECI-DT.
func NormalizeCallsign(callsign string) string {
	if callsign == "" {
		return ""
	}
	return callsignSuffixRe.ReplaceAllString(strings.ToUpper(callsign), "")
}

// Result is a successful match: the matched EpgChannel, the confidence the
// rule assigned, and the match type that produced it.
type Result struct {
	EpgChannel *model.EpgChannel
	Confidence float64
	MatchType  string
}

// Input bundles everything MatchChannel needs about a single channel beyond
// the channel row itself.
type Input struct {
	Channel      *model.Channel
	CategoryName string
	Tags         map[string]bool
	CountryTags  map[string]bool
}

// MatchChannel tries rules in priority order (ascending) and returns the
// first one that produces a match. Every match type applied by a rule
// terminates the search, regardless of the rule's StopOnMatch flag: the
// pipeline always returns on first match, matching the reference behavior.
func MatchChannel(in Input, rules []*model.EpgMatchRule, idx *Index, nameMappings []*model.EpgChannelNameMapping, fcc *FCCConfig) (*Result, error) {
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if rule.CategoryPattern != "" && in.CategoryName != "" {
			re, err := regexp.Compile("(?i)" + rule.CategoryPattern)
			if err != nil {
				continue
			}
			if !re.MatchString(in.CategoryName) {
				continue
			}
		}
		if rule.CategoryExcludePattern != "" && in.CategoryName != "" {
			if re, err := regexp.Compile("(?i)" + rule.CategoryExcludePattern); err == nil && re.MatchString(in.CategoryName) {
				continue
			}
		}
		if len(rule.CountryCodes) > 0 {
			allowed := make(map[string]bool, len(rule.CountryCodes))
			for _, c := range rule.CountryCodes {
				allowed[c] = true
			}
			if !anyIn(allowed, in.CountryTags) {
				continue
			}
		}
		if len(rule.RequiredTags) > 0 && !allIn(rule.RequiredTags, in.Tags) {
			continue
		}
		if len(rule.ExcludedTags) > 0 && anyTagIn(rule.ExcludedTags, in.Tags) {
			continue
		}

		ec, confidence, err := applyMatchRule(in, rule, idx, nameMappings, fcc)
		if err != nil {
			return nil, err
		}
		if ec != nil {
			return &Result{EpgChannel: ec, Confidence: confidence, MatchType: rule.MatchType}, nil
		}
	}
	return nil, nil
}

func anyIn(allowed, present map[string]bool) bool {
	for t := range present {
		if allowed[t] {
			return true
		}
	}
	return false
}

func allIn(required []string, present map[string]bool) bool {
	for _, t := range required {
		if !present[t] {
			return false
		}
	}
	return true
}

func anyTagIn(excluded []string, present map[string]bool) bool {
	for _, t := range excluded {
		if present[t] {
			return true
		}
	}
	return false
}

var callsignTagRe = regexp.MustCompile(`\b([KW][A-Z]{2,3}(?:-[A-Z]{2,3})?)\b`)

func applyMatchRule(in Input, rule *model.EpgMatchRule, idx *Index, nameMappings []*model.EpgChannelNameMapping, fcc *FCCConfig) (*model.EpgChannel, float64, error) {
	ch := in.Channel

	if rule.Action == model.MatchActionSkip {
		return nil, 0, nil
	}
	if rule.Action == model.MatchActionUseFallback {
		if rule.FallbackEpgChannelID != "" {
			if ec, ok := idx.ByID[strings.ToLower(rule.FallbackEpgChannelID)]; ok {
				return ec, 1.0, nil
			}
		}
		return nil, 0, nil
	}

	switch rule.MatchType {
	case model.MatchProviderID:
		if ch.EpgChannelID != "" {
			if ec, ok := idx.ByID[strings.ToLower(ch.EpgChannelID)]; ok {
				return ec, 1.0, nil
			}
		}

	case model.MatchCallsignTag:
		for tag := range in.Tags {
			if len(tag) < 3 {
				continue
			}
			if tag[0] != 'K' && tag[0] != 'W' {
				continue
			}
			if ec, ok := idx.ByCallsign[tag]; ok {
				return ec, 0.95, nil
			}
		}

	case model.MatchCallsignName:
		source := getSourceValue(ch, in.CategoryName, rule.Source, nameMappings)
		if source != "" {
			if m := callsignTagRe.FindStringSubmatch(strings.ToUpper(source)); m != nil {
				callsign := strings.ReplaceAll(m[1], "-", "")
				if ec, ok := idx.ByCallsign[callsign]; ok {
					return ec, 0.9, nil
				}
			}
		}

	case model.MatchFCCLookup:
		if fcc == nil {
			break
		}
		callsign, err := LookupFCCCallsign(ch, in.Tags, fcc)
		if err != nil {
			return nil, 0, err
		}
		if callsign != "" {
			up := strings.ToUpper(callsign)
			if ec, ok := idx.ByCallsign[up]; ok {
				return ec, 0.85, nil
			}
			if base := NormalizeCallsign(up); base != "" && base != up {
				if ec, ok := idx.ByCallsign[base]; ok {
					return ec, 0.84, nil
				}
			}
		}

	case model.MatchExactName:
		source := getSourceValue(ch, in.CategoryName, rule.Source, nameMappings)
		if source != "" {
			if ec, ok := idx.ByName[NormalizeName(source)]; ok {
				return ec, 0.95, nil
			}
		}

	case model.MatchFuzzyName:
		source := getSourceValue(ch, in.CategoryName, rule.Source, nameMappings)
		if source != "" {
			normalized := NormalizeName(source)
			minConfidence := rule.MinConfidence
			if minConfidence == 0 {
				minConfidence = 0.75
			}
			var best *model.EpgChannel
			bestScore := 0.0
			for name, ec := range idx.ByName {
				score := similarityRatio(normalized, name)
				if score > bestScore && score >= minConfidence {
					bestScore = score
					best = ec
				}
			}
			if best != nil {
				return best, bestScore, nil
			}
		}

	case model.MatchRegex:
		if rule.Pattern != "" {
			source := getSourceValue(ch, in.CategoryName, rule.Source, nameMappings)
			if source != "" {
				if re, err := regexp.Compile("(?i)" + rule.Pattern); err == nil {
					if m := re.FindStringSubmatch(source); m != nil {
						matchedID := m[0]
						if len(m) > 1 && m[1] != "" {
							matchedID = m[1]
						}
						if ec, ok := idx.ByID[strings.ToLower(matchedID)]; ok {
							return ec, 0.9, nil
						}
					}
				}
			}
		}

	case model.MatchTagBased:
		if rule.Pattern != "" {
			if re, err := regexp.Compile("(?i)" + rule.Pattern); err == nil {
				for tag := range in.Tags {
					if re.MatchString(tag) {
						if ec, ok := idx.ByID[strings.ToLower(tag)]; ok {
							return ec, 0.85, nil
						}
					}
				}
			}
		}

	case model.MatchCategoryPattern:
		if in.CategoryName != "" && rule.Pattern != "" {
			if re, err := regexp.Compile("(?i)" + rule.Pattern); err == nil && re.MatchString(in.CategoryName) {
				source := getSourceValue(ch, in.CategoryName, rule.Source, nameMappings)
				if source != "" {
					if ec, ok := idx.ByName[NormalizeName(source)]; ok {
						return ec, 0.8, nil
					}
				}
			}
		}

	case model.MatchNetworkFallback:
		for tag := range in.Tags {
			if !majorBroadcastNetworks[tag] {
				continue
			}
			for _, candidate := range []string{tag + ".us", tag + ".us2", strings.ToLower(tag)} {
				if ec, ok := idx.ByID[strings.ToLower(candidate)]; ok {
					return ec, 0.6, nil
				}
			}
		}
	}

	return nil, 0, nil
}

func getSourceValue(ch *model.Channel, categoryName, source string, nameMappings []*model.EpgChannelNameMapping) string {
	var value string
	switch source {
	case model.MatchSourceChannelName:
		value = ch.Name
	case model.MatchSourceCleanedName:
		value = ch.CleanedName
		if value == "" {
			value = ch.Name
		}
	case model.MatchSourceCategoryName:
		return categoryName
	case model.MatchSourceEpgChannelID:
		return ch.EpgChannelID
	default:
		value = ch.Name
	}

	if value != "" && len(nameMappings) > 0 &&
		(source == model.MatchSourceChannelName || source == model.MatchSourceCleanedName) {
		transformed, _ := ApplyChannelNameMappings(value, nameMappings)
		return transformed
	}
	return value
}

// ApplyChannelNameMappings rewrites a legacy/rebranded channel name using the
// first matching enabled mapping, returning (name, nil) unchanged if none
// applies, or (newName, mapping) when one does.
func ApplyChannelNameMappings(name string, mappings []*model.EpgChannelNameMapping) (string, *model.EpgChannelNameMapping) {
	if name == "" {
		return name, nil
	}
	for _, m := range mappings {
		compareName, compareOld := name, m.OldName
		if !m.CaseSensitive {
			compareName, compareOld = strings.ToLower(name), strings.ToLower(m.OldName)
		}

		switch m.MatchType {
		case model.NameMapExact:
			if compareName == compareOld {
				return m.NewName, m
			}
		case model.NameMapContains:
			if strings.Contains(compareName, compareOld) {
				idx := strings.Index(compareName, compareOld)
				return name[:idx] + m.NewName + name[idx+len(m.OldName):], m
			}
		case model.NameMapPrefix:
			if strings.HasPrefix(compareName, compareOld) {
				return m.NewName + name[len(m.OldName):], m
			}
		case model.NameMapSuffix:
			if strings.HasSuffix(compareName, compareOld) {
				return name[:len(name)-len(m.OldName)] + m.NewName, m
			}
		case model.NameMapRegex:
			flags := ""
			if !m.CaseSensitive {
				flags = "(?i)"
			}
			re, err := regexp.Compile(flags + m.OldName)
			if err != nil {
				continue
			}
			if re.MatchString(name) {
				return re.ReplaceAllString(name, m.NewName), m
			}
		}
	}
	return name, nil
}

// ExclusionVerdict reports whether a channel is excluded from matching and,
// if the matched pattern says so, should also be hidden from the lineup.
type ExclusionVerdict struct {
	Excluded    bool
	PatternName string
	Hide        bool
}

// ShouldExcludeChannel applies exclusion patterns in priority order, matching
// on category name, channel name, or tag presence depending on pattern type.
func ShouldExcludeChannel(ch *model.Channel, categoryName string, tags map[string]bool, patterns []*model.EpgExclusionPattern) ExclusionVerdict {
	for _, p := range patterns {
		matched := false
		switch p.PatternType {
		case model.ExclusionCategoryName:
			if categoryName != "" {
				matched = patternMatches(p, categoryName)
			}
		case model.ExclusionChannelName:
			if ch.Name != "" {
				matched = patternMatches(p, ch.Name)
			}
		case model.ExclusionTag:
			matched = tags[strings.ToUpper(p.Pattern)]
		}
		if matched {
			return ExclusionVerdict{Excluded: true, PatternName: fmt.Sprintf("#%d", p.ID), Hide: p.HideChannel}
		}
	}
	return ExclusionVerdict{}
}

func patternMatches(p *model.EpgExclusionPattern, value string) bool {
	if p.IsRegex {
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(value)
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(p.Pattern))
}
