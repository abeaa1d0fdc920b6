// Package rules extracts descriptive tags from provider-supplied channel and
// category names, and produces a cleaned display name with the matched
// substrings stripped.
package rules

import (
	"regexp"
	"strings"

	"github.com/snapetech/iptvcore/internal/model"
)

var (
	bracketLocation = regexp.MustCompile(`\[([^\]]+)\]`)
	parenCallsign   = regexp.MustCompile(`\(([^)]+)\)`)

	leadingSeparators  = regexp.MustCompile(`^[:\-|•]+\s*`)
	trailingSeparators = regexp.MustCompile(`\s*[:\-|•]+$`)
	multiSpace         = regexp.MustCompile(`\s+`)
	emptyParens        = regexp.MustCompile(`\(\s*\)`)
	emptyBrackets      = regexp.MustCompile(`\[\s*\]`)
	emptyBraces        = regexp.MustCompile(`\{\s*\}`)

	tagNonWord  = regexp.MustCompile(`[^\w\s-]`)
	tagSpaces   = regexp.MustCompile(`\s+`)
	tagUnderbar = regexp.MustCompile(`_+`)
)

// superscriptFold maps the Unicode superscript/small-caps glyphs providers use
// for quality badges (e.g. "ᴴᴰ") back to plain ASCII before tag normalization.
var superscriptFold = strings.NewReplacer(
	"ᴿ", "R", "ᴬ", "A", "ᵂ", "W", "ᴹ", "M", "ᴰ", "D",
	"⁶", "6", "⁰", "0", "ᶠ", "F", "ᵖ", "P", "ˢ", "S",
	"ᴴ", "H", "ᵁ", "U",
)

// Extract applies rules, already sorted by priority, to channelName and
// categoryName and returns the set of matched tag names plus the cleaned
// channel name. Rules are evaluated in order; the first matching search text
// for a rule wins and extraction moves to the next rule.
func Extract(channelName, categoryName string, rules []*model.TagRule) (map[string]bool, string) {
	tags := make(map[string]bool)
	cleaned := channelName

	for _, rule := range rules {
		type candidate struct {
			text       string
			canRemove  bool
		}
		var candidates []candidate
		switch rule.Source {
		case model.SourceChannelName:
			candidates = []candidate{{channelName, true}}
		case model.SourceCategoryName:
			candidates = []candidate{{categoryName, false}}
		case model.SourceBoth:
			candidates = []candidate{{channelName, true}, {categoryName, false}}
		default:
			continue
		}

		for _, c := range candidates {
			matched, matchText := matchPattern(c.text, rule.Pattern, rule.PatternKind)
			if !matched {
				continue
			}

			switch rule.TagName {
			case model.TagSentinelLocation:
				if m := bracketLocation.FindStringSubmatch(matchText); m != nil {
					loc := strings.TrimSpace(m[1])
					tags[NormalizeTagName(loc)] = true
					cleaned = strings.Replace(cleaned, matchText, loc, 1)
				}
			case model.TagSentinelCallsign:
				if m := parenCallsign.FindStringSubmatch(matchText); m != nil {
					call := strings.TrimSpace(m[1])
					tags[NormalizeTagName(call)] = true
					cleaned = strings.Replace(cleaned, matchText, call, 1)
				}
			case model.TagSentinelCleanup:
				if rule.RemoveFromName && c.canRemove && matchText != "" {
					cleaned = removeText(cleaned, matchText)
				}
			default:
				tags[rule.TagName] = true
				if rule.RemoveFromName && c.canRemove && matchText != "" {
					cleaned = removeText(cleaned, matchText)
				}
			}
			break
		}
	}

	return tags, cleanupName(cleaned)
}

func matchPattern(text, pattern, kind string) (bool, string) {
	if text == "" || pattern == "" {
		return false, ""
	}
	switch kind {
	case model.PatternPrefix:
		if len(text) >= len(pattern) && strings.EqualFold(text[:len(pattern)], pattern) {
			return true, text[:len(pattern)]
		}
	case model.PatternSuffix:
		if len(text) >= len(pattern) && strings.EqualFold(text[len(text)-len(pattern):], pattern) {
			return true, text[len(text)-len(pattern):]
		}
	case model.PatternContains:
		pos := indexFold(text, pattern)
		if pos >= 0 {
			return true, text[pos : pos+len(pattern)]
		}
	case model.PatternRegex:
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return false, ""
		}
		if m := re.FindString(text); m != "" {
			return true, m
		}
	}
	return false, ""
}

// indexFold finds the byte offset of the first case-insensitive occurrence of
// sub within s, or -1. It assumes sub and s are ASCII-compatible for length
// purposes, matching the provider naming conventions this package targets.
func indexFold(s, sub string) int {
	upperS, upperSub := strings.ToUpper(s), strings.ToUpper(sub)
	return strings.Index(upperS, upperSub)
}

func removeText(original, toRemove string) string {
	if toRemove == "" {
		return original
	}
	pos := indexFold(original, toRemove)
	if pos == -1 {
		return original
	}
	return original[:pos] + original[pos+len(toRemove):]
}

func cleanupName(name string) string {
	if name == "" {
		return name
	}
	name = strings.TrimSpace(name)
	name = leadingSeparators.ReplaceAllString(name, "")
	name = trailingSeparators.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	name = emptyParens.ReplaceAllString(name, "")
	name = emptyBrackets.ReplaceAllString(name, "")
	name = emptyBraces.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// NormalizeTagName upper-cases, folds known superscript glyphs, and collapses
// the result to [A-Z0-9_-] with single underscores in place of whitespace.
func NormalizeTagName(tagName string) string {
	normalized := strings.ToUpper(tagName)
	normalized = superscriptFold.Replace(normalized)
	normalized = tagNonWord.ReplaceAllString(normalized, "")
	normalized = tagSpaces.ReplaceAllString(normalized, "_")
	normalized = tagUnderbar.ReplaceAllString(normalized, "_")
	return strings.Trim(normalized, "_")
}

// DefaultRules returns the bootstrap rule set applied when an account has no
// assigned RuleSet and no default RuleSet exists yet: country-code prefixes,
// quality badges (including their superscript renderings), content-type tags
// sourced from the category name, and the bracket/parenthesis sentinel rules.
func DefaultRules() []*model.TagRule {
	return []*model.TagRule{
		{Priority: 10, PatternKind: model.PatternPrefix, Pattern: "US|", TagName: "US", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 10, PatternKind: model.PatternRegex, Pattern: `^US:\s*`, TagName: "US", Source: model.SourceChannelName, RemoveFromName: true},
		{Priority: 10, PatternKind: model.PatternPrefix, Pattern: "UK|", TagName: "UK", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 10, PatternKind: model.PatternPrefix, Pattern: "CA|", TagName: "CA", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 15, PatternKind: model.PatternPrefix, Pattern: "PRIME:", TagName: "PRIME", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 17, PatternKind: model.PatternContains, Pattern: "ᵁᴴᴰ", TagName: "UHD", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 18, PatternKind: model.PatternContains, Pattern: "ᴴᴰ", TagName: "HD", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 20, PatternKind: model.PatternContains, Pattern: "ᴿᴬᵂ", TagName: "RAW", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 20, PatternKind: model.PatternContains, Pattern: "⁶⁰ᶠᵖˢ", TagName: "60FPS", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 20, PatternKind: model.PatternRegex, Pattern: `\b4K\b`, TagName: "4K", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 20, PatternKind: model.PatternRegex, Pattern: `\b3840P?\b`, TagName: "4K", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 20, PatternKind: model.PatternRegex, Pattern: `\b2160P?\b`, TagName: "4K", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 20, PatternKind: model.PatternRegex, Pattern: `\b1080P?\b`, TagName: "FHD", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 20, PatternKind: model.PatternRegex, Pattern: `\bFHD\b`, TagName: "FHD", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 22, PatternKind: model.PatternRegex, Pattern: `\bHD\b`, TagName: "HD", Source: model.SourceBoth, RemoveFromName: true},
		{Priority: 30, PatternKind: model.PatternContains, Pattern: "SPORT", TagName: "SPORTS", Source: model.SourceCategoryName, RemoveFromName: false},
		{Priority: 30, PatternKind: model.PatternContains, Pattern: "NEWS", TagName: "NEWS", Source: model.SourceCategoryName, RemoveFromName: false},
		{Priority: 30, PatternKind: model.PatternContains, Pattern: "MOVIE", TagName: "MOVIES", Source: model.SourceCategoryName, RemoveFromName: false},
		{Priority: 85, PatternKind: model.PatternRegex, Pattern: `\[([^\]]+)\]`, TagName: model.TagSentinelLocation, Source: model.SourceChannelName, RemoveFromName: true},
		{Priority: 86, PatternKind: model.PatternRegex, Pattern: `\(([^)]+)\)`, TagName: model.TagSentinelCallsign, Source: model.SourceChannelName, RemoveFromName: true},
	}
}
