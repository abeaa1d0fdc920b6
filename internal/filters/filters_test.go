package filters

import (
	"testing"

	"github.com/snapetech/iptvcore/internal/model"
)

func TestComputeVisibility_NoFilters(t *testing.T) {
	if !ComputeVisibility(Channel{Name: "ESPN"}, nil) {
		t.Fatal("expected visible with no filters")
	}
}

func TestComputeVisibility_WhitelistOR(t *testing.T) {
	enabled := []*model.Filter{
		{Action: model.FilterWhitelist, Kind: model.FilterKindCategory, Value: "US"},
		{Action: model.FilterWhitelist, Kind: model.FilterKindCategory, Value: "RELAX"},
	}
	if !ComputeVisibility(Channel{CategoryName: "US| Sports"}, enabled) {
		t.Fatal("expected visible: matches one of two OR'd whitelists")
	}
	if ComputeVisibility(Channel{CategoryName: "UK| Sports"}, enabled) {
		t.Fatal("expected hidden: matches neither whitelist")
	}
}

func TestComputeVisibility_BlacklistAND(t *testing.T) {
	enabled := []*model.Filter{
		{Action: model.FilterBlacklist, Kind: model.FilterKindChannelName, Value: "XXX"},
	}
	if ComputeVisibility(Channel{Name: "XXX Adult"}, enabled) {
		t.Fatal("expected hidden: matches blacklist")
	}
	if !ComputeVisibility(Channel{Name: "ESPN"}, enabled) {
		t.Fatal("expected visible: no blacklist match")
	}
}

func TestComputeVisibility_CrossKindAND(t *testing.T) {
	enabled := []*model.Filter{
		{Action: model.FilterWhitelist, Kind: model.FilterKindCategory, Value: "US"},
		{Action: model.FilterWhitelist, Kind: model.FilterKindTag, Value: "SPORTS"},
	}
	// Category passes, but required tag is missing -> must fail overall (AND across kinds).
	ch := Channel{CategoryName: "US| Movies", Tags: nil}
	if ComputeVisibility(ch, enabled) {
		t.Fatal("expected hidden: missing required tag whitelist")
	}
	ch.Tags = []string{"SPORTS"}
	if !ComputeVisibility(ch, enabled) {
		t.Fatal("expected visible: both kind-whitelists satisfied")
	}
}

func TestComputeVisibility_RegexFilter(t *testing.T) {
	enabled := []*model.Filter{
		{Action: model.FilterBlacklist, Kind: model.FilterKindRegex, Value: `^PPV\d+$`},
	}
	if ComputeVisibility(Channel{Name: "PPV123"}, enabled) == true {
		t.Fatal("expected hidden: regex blacklist match")
	}
}

func TestComputeVisibility_PPVPlaceholderForced(t *testing.T) {
	enabled := []*model.Filter{
		{Action: model.FilterBlacklist, Kind: model.FilterKindChannelName, Value: "EVENT"},
	}
	ch := Channel{Name: "EVENT 42", IsPPV: true}
	if ComputeVisibility(ch, enabled) {
		t.Fatal("expected PPV placeholder forced invisible regardless of filters")
	}
	ch2 := Channel{Name: "UFC 300 Live", IsPPV: true}
	if !ComputeVisibility(ch2, enabled) {
		t.Fatal("expected non-placeholder PPV forced visible regardless of filters")
	}
}
