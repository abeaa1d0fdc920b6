package epgmatch

import (
	"regexp"
	"strings"

	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/store"
)

// usStateNames maps a full state name (as it appears in an uppercased,
// underscore-for-space location tag) to its two-letter abbreviation.
var usStateNames = map[string]string{
	"ALABAMA": "AL", "ALASKA": "AK", "ARIZONA": "AZ", "ARKANSAS": "AR", "CALIFORNIA": "CA",
	"COLORADO": "CO", "CONNECTICUT": "CT", "DELAWARE": "DE", "FLORIDA": "FL", "GEORGIA": "GA",
	"HAWAII": "HI", "IDAHO": "ID", "ILLINOIS": "IL", "INDIANA": "IN", "IOWA": "IA",
	"KANSAS": "KS", "KENTUCKY": "KY", "LOUISIANA": "LA", "MAINE": "ME", "MARYLAND": "MD",
	"MASSACHUSETTS": "MA", "MICHIGAN": "MI", "MINNESOTA": "MN", "MISSISSIPPI": "MS", "MISSOURI": "MO",
	"MONTANA": "MT", "NEBRASKA": "NE", "NEVADA": "NV", "NEW HAMPSHIRE": "NH", "NEW JERSEY": "NJ",
	"NEW MEXICO": "NM", "NEW YORK": "NY", "NORTH CAROLINA": "NC", "NORTH DAKOTA": "ND", "OHIO": "OH",
	"OKLAHOMA": "OK", "OREGON": "OR", "PENNSYLVANIA": "PA", "RHODE ISLAND": "RI", "SOUTH CAROLINA": "SC",
	"SOUTH DAKOTA": "SD", "TENNESSEE": "TN", "TEXAS": "TX", "UTAH": "UT", "VERMONT": "VT",
	"VIRGINIA": "VA", "WASHINGTON": "WA", "WEST VIRGINIA": "WV", "WISCONSIN": "WI", "WYOMING": "WY",
}

var usStateAbbrevs = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true, "CT": true, "DE": true,
	"FL": true, "GA": true, "HI": true, "ID": true, "IL": true, "IN": true, "IA": true, "KS": true,
	"KY": true, "LA": true, "ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true, "NM": true, "NY": true,
	"NC": true, "ND": true, "OH": true, "OK": true, "OR": true, "PA": true, "RI": true, "SC": true,
	"SD": true, "TN": true, "TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "DC": true, "PR": true, "VI": true, "GU": true,
}

// FCCConfig bundles the configurable FCC-lookup inputs for one matching run.
// QualityTags and CountryTags are always the hardcoded fallback sets.
type FCCConfig struct {
	Store            *store.Store
	Networks         []*model.FccMatchNetwork
	ChannelPatterns  []*model.FccMatchChannelPattern
	LocationPatterns []*model.FccMatchLocationPattern
	Strategies       []*model.FccMatchStrategy
	QualityTags      map[string]bool
	CountryTags      map[string]bool
}

// LoadFCCConfig reads every FCC-lookup configuration table from st. Empty
// tables stay empty: with no FccMatchNetwork or no FccMatchStrategy rows,
// LookupFCCCallsign returns no callsign.
func LoadFCCConfig(st *store.Store) (*FCCConfig, error) {
	cfg := &FCCConfig{Store: st}

	networks, err := st.ListFccMatchNetworks()
	if err != nil {
		return nil, err
	}
	cfg.Networks = networks

	patterns, err := st.ListFccMatchChannelPatterns()
	if err != nil {
		return nil, err
	}
	cfg.ChannelPatterns = patterns

	locPatterns, err := st.ListFccMatchLocationPatterns()
	if err != nil {
		return nil, err
	}
	cfg.LocationPatterns = locPatterns

	strategies, err := st.ListFccMatchStrategies()
	if err != nil {
		return nil, err
	}
	cfg.Strategies = strategies

	cfg.QualityTags = qualityTagsFallback
	cfg.CountryTags = countryTagsFallback
	return cfg, nil
}

// DetectNetwork finds the FccMatchNetwork whose name or tag_patterns match
// one of tags, checking direct name matches before pattern matches.
func DetectNetwork(tags map[string]bool, networks []*model.FccMatchNetwork) *model.FccMatchNetwork {
	byName := make(map[string]*model.FccMatchNetwork, len(networks))
	for _, n := range networks {
		byName[strings.ToUpper(n.Name)] = n
	}
	for tag := range tags {
		if n, ok := byName[tag]; ok {
			return n
		}
	}
	for _, n := range networks {
		for _, pattern := range n.TagPatterns {
			if tags[strings.ToUpper(pattern)] {
				return n
			}
		}
	}
	return nil
}

var (
	channelNumAfterNetworkRe  = regexp.MustCompile(`(?i)\b(?:NBC|ABC|CBS|FOX|PBS|CW)\s*(\d{1,2})\b`)
	channelNumBeforeNetworkRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:NBC|ABC|CBS|FOX|HD|SD)\b`)
	channelNumNearQualityRe   = regexp.MustCompile(`(?i)[\s:|]\s*(\d{1,2})\s*(?:HD|SD|\s|$|\[)`)
)

// ExtractChannelNumber pulls a virtual channel number out of a channel name,
// preferring configured FccMatchChannelPatterns (optionally restricted to a
// detected network) before falling back to three hardcoded heuristics.
func ExtractChannelNumber(name string, network *model.FccMatchNetwork, patterns []*model.FccMatchChannelPattern) string {
	if name == "" {
		return ""
	}

	if len(patterns) > 0 {
		var networkName string
		if network != nil {
			networkName = strings.ToUpper(network.Name)
		}
		for _, p := range patterns {
			if len(p.Networks) > 0 {
				if networkName == "" || !containsUpper(p.Networks, networkName) {
					continue
				}
			}
			re, err := regexp.Compile("(?i)" + p.Pattern)
			if err != nil {
				continue
			}
			m := re.FindStringSubmatch(name)
			if m == nil || p.Group >= len(m) {
				continue
			}
			if m[p.Group] != "" {
				return m[p.Group]
			}
		}
	}

	if m := channelNumAfterNetworkRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	if m := channelNumBeforeNetworkRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	if m := channelNumNearQualityRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return ""
}

func containsUpper(values []string, target string) bool {
	for _, v := range values {
		if strings.ToUpper(v) == target {
			return true
		}
	}
	return false
}

// ParseLocationTag splits a compound location tag like "WICHITA_KS" into a
// city and a two-letter state abbreviation, preferring configured
// FccMatchLocationPatterns before falling back to hardcoded heuristics.
// Either return value may be empty.
func ParseLocationTag(location string, patterns []*model.FccMatchLocationPattern) (city, state string) {
	if location == "" {
		return "", ""
	}
	upper := strings.ToUpper(location)

	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			continue
		}
		m := re.FindStringSubmatch(upper)
		if m == nil {
			continue
		}
		var c, s string
		if p.CityGroup > 0 && p.CityGroup < len(m) {
			c = strings.ReplaceAll(m[p.CityGroup], "_", " ")
		}
		if p.StateGroup > 0 && p.StateGroup < len(m) {
			raw := m[p.StateGroup]
			if raw != "" {
				normalized := strings.ReplaceAll(strings.ToUpper(raw), "_", " ")
				if abbrev, ok := usStateNames[normalized]; ok {
					s = abbrev
				} else if len(raw) == 2 && usStateAbbrevs[strings.ToUpper(raw)] {
					s = strings.ToUpper(raw)
				}
			}
		}
		if c != "" || s != "" {
			return c, s
		}
	}

	stateNameCheck := strings.ReplaceAll(upper, "_", " ")
	if abbrev, ok := usStateNames[stateNameCheck]; ok {
		return "", abbrev
	}
	if len(upper) == 2 && usStateAbbrevs[upper] {
		return "", upper
	}
	parts := strings.Split(strings.ReplaceAll(upper, "-", "_"), "_")
	if len(parts) >= 2 {
		last := parts[len(parts)-1]
		if len(last) == 2 && usStateAbbrevs[last] {
			cityPart := strings.ReplaceAll(strings.Join(parts[:len(parts)-1], "_"), "_", " ")
			return cityPart, last
		}
	}
	return strings.ReplaceAll(upper, "_", " "), ""
}

// LookupFCCCallsign detects the channel's network from tags, extracts a
// virtual channel number from its name, parses location tags into
// city/state candidates, and applies the configured FCC strategies in
// priority order until one returns a facility callsign.
func LookupFCCCallsign(ch *model.Channel, tags map[string]bool, cfg *FCCConfig) (string, error) {
	network := DetectNetwork(tags, cfg.Networks)
	if network == nil {
		networkNames := majorBroadcastNetworks
		if len(cfg.Networks) > 0 {
			networkNames = make(map[string]bool, len(cfg.Networks))
			for _, n := range cfg.Networks {
				networkNames[strings.ToUpper(n.Name)] = true
			}
		}
		var matched string
		for tag := range tags {
			if networkNames[tag] {
				matched = tag
				break
			}
		}
		if matched == "" {
			return "", nil
		}
		for _, n := range cfg.Networks {
			if strings.ToUpper(n.Name) == matched {
				network = n
				break
			}
		}
		if network == nil {
			return "", nil
		}
	}

	channelNumber := ExtractChannelNumber(ch.Name, network, cfg.ChannelPatterns)

	networkNames := majorBroadcastNetworks
	if len(cfg.Networks) > 0 {
		networkNames = make(map[string]bool, len(cfg.Networks))
		for _, n := range cfg.Networks {
			networkNames[strings.ToUpper(n.Name)] = true
		}
	}

	potentialLocations := make(map[string]bool)
	for tag := range tags {
		if cfg.QualityTags[tag] || cfg.CountryTags[tag] || networkNames[tag] {
			continue
		}
		if len(tag) < 2 || isAllDigits(tag) {
			continue
		}
		potentialLocations[tag] = true
	}

	stateAbbrevs := make(map[string]bool)
	cityLocations := make(map[string]bool)
	var cityStatePairs [][2]string

	for location := range potentialLocations {
		city, state := ParseLocationTag(location, cfg.LocationPatterns)
		if state != "" {
			stateAbbrevs[state] = true
		}
		if city != "" {
			cityLocations[city] = true
			if state != "" {
				cityStatePairs = append(cityStatePairs, [2]string{city, state})
			}
		}
		if strings.Contains(location, "-") {
			for _, part := range strings.Split(location, "-") {
				part = strings.TrimSpace(strings.ReplaceAll(part, "_", " "))
				if len(part) >= 2 {
					cityLocations[part] = true
				}
			}
		}
	}

	if len(cfg.Strategies) == 0 {
		return "", nil
	}
	return ApplyFCCStrategies(cfg.Store, network, channelNumber, stateAbbrevs, cityLocations, cityStatePairs, cfg.Strategies)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ApplyFCCStrategies tries each FccMatchStrategy in priority order, skipping
// any whose required inputs (channel number, state, city) are missing, and
// returns the callsign of the first matching active facility.
func ApplyFCCStrategies(st *store.Store, network *model.FccMatchNetwork, channelNumber string, stateAbbrevs, cityLocations map[string]bool, cityStatePairs [][2]string, strategies []*model.FccMatchStrategy) (string, error) {
	for _, strat := range strategies {
		if strat.RequiresChannel && channelNumber == "" {
			continue
		}
		if strat.RequiresState && len(stateAbbrevs) == 0 {
			continue
		}
		if strat.RequiresCity && len(cityLocations) == 0 && len(cityStatePairs) == 0 {
			continue
		}

		var networkPattern string
		if network != nil {
			networkPattern = network.Name
		}

		switch strat.StrategyType {
		case model.StrategyCityStateChannel:
			if len(cityStatePairs) == 0 || channelNumber == "" {
				continue
			}
			for _, pair := range cityStatePairs {
				facilities, err := st.QueryFccFacilities(store.FccFacilityQuery{
					NetworkAffiliation: networkPattern, State: pair[1], City: pair[0], VirtualChannel: atoiSafe(channelNumber),
				})
				if err != nil {
					return "", err
				}
				if len(facilities) > 0 {
					return facilities[0].Callsign, nil
				}
			}

		case model.StrategyStateChannel:
			if len(stateAbbrevs) == 0 || channelNumber == "" {
				continue
			}
			for state := range stateAbbrevs {
				facilities, err := st.QueryFccFacilities(store.FccFacilityQuery{
					NetworkAffiliation: networkPattern, State: state, VirtualChannel: atoiSafe(channelNumber),
				})
				if err != nil {
					return "", err
				}
				if len(facilities) > 0 {
					return facilities[0].Callsign, nil
				}
			}

		case model.StrategyCityDMAChannel:
			if len(cityLocations) == 0 || channelNumber == "" {
				continue
			}
			for city := range cityLocations {
				facilities, err := st.QueryFccFacilities(store.FccFacilityQuery{
					NetworkAffiliation: networkPattern, City: city, MatchDMA: strat.CityMatchesDMA, VirtualChannel: atoiSafe(channelNumber),
				})
				if err != nil {
					return "", err
				}
				if len(facilities) > 0 {
					return facilities[0].Callsign, nil
				}
			}

		case model.StrategyStateOnly:
			for state := range stateAbbrevs {
				if channelNumber != "" {
					facilities, err := st.QueryFccFacilities(store.FccFacilityQuery{
						NetworkAffiliation: networkPattern, State: state, VirtualChannel: atoiSafe(channelNumber),
					})
					if err != nil {
						return "", err
					}
					if len(facilities) > 0 {
						return facilities[0].Callsign, nil
					}
				}
				facilities, err := st.QueryFccFacilities(store.FccFacilityQuery{NetworkAffiliation: networkPattern, State: state})
				if err != nil {
					return "", err
				}
				if len(facilities) > 0 {
					return facilities[0].Callsign, nil
				}
			}

		case model.StrategyCityDMAOnly:
			for city := range cityLocations {
				if channelNumber != "" {
					facilities, err := st.QueryFccFacilities(store.FccFacilityQuery{
						NetworkAffiliation: networkPattern, City: city, MatchDMA: strat.CityMatchesDMA, VirtualChannel: atoiSafe(channelNumber),
					})
					if err != nil {
						return "", err
					}
					if len(facilities) > 0 {
						return facilities[0].Callsign, nil
					}
				}
				facilities, err := st.QueryFccFacilities(store.FccFacilityQuery{
					NetworkAffiliation: networkPattern, City: city, MatchDMA: strat.CityMatchesDMA,
				})
				if err != nil {
					return "", err
				}
				if len(facilities) > 0 {
					return facilities[0].Callsign, nil
				}
			}
		}
	}
	return "", nil
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
