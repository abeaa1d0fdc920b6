// Package model defines the persisted entities of the catalog/EPG/connection/health core.
package model

import "time"

// Account is a provider identity. It owns Credentials, Filters, and RuleSet assignments.
type Account struct {
	ID              int64
	Name            string
	Server          string
	UserAgent       string
	Enabled         bool
	LegacyUsername  string
	LegacyPassword  string
	LiveOnly        bool
	LastSync        time.Time
	LastSyncStatus  string
	LastSyncMessage string
}

// Credential is a (username, password) pair under an Account with a connection cap.
// ActiveConnections is advisory; the authoritative count is COUNT(ActiveStream).
type Credential struct {
	ID                int64
	AccountID         int64
	Username          string
	Password          string
	MaxConnections    int
	ActiveConnections int
	Enabled           bool
}

// Stream types a Category/Channel can belong to. A (account, external_id)
// pair is only unique within one stream type, since VOD and series catalogs
// use their own provider-side ID namespaces.
const (
	StreamTypeLive   = "live"
	StreamTypeVOD    = "vod"
	StreamTypeSeries = "series"
)

// Category is a provider-defined grouping, unique per (account, external_category_id, stream_type).
type Category struct {
	ID                 int64
	AccountID          int64
	ExternalCategoryID string
	Name               string
	StreamType         string
	IsPPV              bool
	LastSeen           time.Time
}

// Channel is a streamable item, unique per (account, external_stream_id, stream_type).
// A Channel with StreamType vod or series is a catalog entry only; live playback
// and EPG matching apply to StreamTypeLive channels exclusively.
type Channel struct {
	ID               int64
	AccountID        int64
	CategoryID       int64
	ExternalStreamID string
	Name             string
	CleanedName      string
	EpgChannelID     string // provider-supplied tvg-id / epg_channel_id, if any
	StreamType       string
	IsActive         bool
	IsVisible        bool
	IsPPV            bool
	LastSeen         time.Time
}

// Tag is a globally-unique normalized string.
type Tag struct {
	ID   int64
	Name string
}

// Tag sources.
const (
	TagSourceExtraction = "extraction"
	TagSourceFCC        = "fcc"
	TagSourceManual     = "manual"
	TagSourceSync       = "sync"
)

// ChannelTag associates a Tag to a Channel with a source discriminator.
type ChannelTag struct {
	ChannelID int64
	TagID     int64
	Source    string
}

// Rule pattern kinds.
const (
	PatternPrefix   = "prefix"
	PatternSuffix   = "suffix"
	PatternContains = "contains"
	PatternRegex    = "regex"
)

// Rule sources.
const (
	SourceChannelName  = "channel_name"
	SourceCategoryName = "category_name"
	SourceBoth         = "both"
)

// Sentinel tag names recognized by RuleEngine.
const (
	TagSentinelLocation = "__LOCATION__"
	TagSentinelCallsign = "__CALLSIGN__"
	TagSentinelCleanup  = "__CLEANUP__"
)

// RuleSet is a named, ordered collection of TagRules.
type RuleSet struct {
	ID        int64
	Name      string
	IsDefault bool
}

// TagRule is one rule within a RuleSet.
type TagRule struct {
	ID             int64
	RuleSetID      int64
	Priority       int
	PatternKind    string
	Pattern        string
	TagName        string
	Source         string
	RemoveFromName bool
}

// AccountRuleSet assigns a RuleSet to an Account with a priority.
type AccountRuleSet struct {
	AccountID int64
	RuleSetID int64
	Priority  int
}

// Filter actions and kinds.
const (
	FilterWhitelist = "whitelist"
	FilterBlacklist = "blacklist"

	FilterKindCategory    = "category"
	FilterKindChannelName = "channel_name"
	FilterKindRegex       = "regex"
	FilterKindTag         = "tag"
)

// Filter is one whitelist or blacklist entry on an Account.
type Filter struct {
	ID        int64
	AccountID int64
	Action    string
	Kind      string
	Value     string
	Enabled   bool
}

// EpgSource source types.
const (
	EpgSourceProvider       = "provider"
	EpgSourceXMLTVURL       = "xmltv_url"
	EpgSourceSchedulesDirect = "schedules_direct"
)

// EpgSource is a feed of programme data.
type EpgSource struct {
	ID              int64
	Name            string
	SourceType      string
	URL             string
	Priority        int
	Enabled         bool
	LastSync        time.Time
	LastSyncStatus  string
	LastSyncMessage string
	ChannelCount    int
}

// EpgChannel is one channel entry from an EpgSource.
type EpgChannel struct {
	ID           int64
	SourceID     int64
	ChannelID    string
	DisplayNames []string
	IconURL      string
	URL          string
	ProgramCount int
	FirstProgram time.Time
	LastProgram  time.Time
	LastSeen     time.Time
}

// ChannelEpgMapping binds a Channel to an EpgChannel.
type ChannelEpgMapping struct {
	ChannelID    int64
	EpgChannelID int64
	MatchType    string
	Confidence   float64
	IsOverride   bool
}

// ChannelLink is an asymmetric Channel->Channel EPG borrow.
type ChannelLink struct {
	ID              int64
	FromChannelID   int64
	ToChannelID     int64
	TimeOffsetHours int
	AutoDetected    bool
}

// FccFacility is one US broadcast facility record.
type FccFacility struct {
	ID                 int64
	FacilityID         string
	Callsign           string
	CommunityCity      string
	CommunityState     string
	NetworkAffiliation string
	NielsenDMA         string
	VirtualChannel     int
	ServiceCode        string
	Active             bool
}

// FccCorrection overrides FccFacility fields at read time, keyed by callsign.
type FccCorrection struct {
	Callsign           string
	NetworkAffiliation *string
	CommunityCity      *string
	CommunityState     *string
	NielsenDMA         *string
	VirtualChannel     *int
}

// ActiveStream is a live streaming session.
type ActiveStream struct {
	SessionToken string
	CredentialID int64
	StreamID     string
	ClientIP     string
	StartedAt    time.Time
	LastActivity time.Time
}

// Health statuses.
const (
	HealthUnknown  = "unknown"
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthDown     = "down"
	HealthIgnored  = "ignored"
)

// Health check results.
const (
	CheckSuccess          = "success"
	CheckConnectionFailed = "connection_failed"
	CheckTimeout          = "timeout"
	CheckHTTPError        = "http_error"
	CheckBlackScreen      = "black_screen"
	CheckAudioOnly        = "audio_only"
	CheckInvalidStream    = "invalid_stream"
	CheckSkipped          = "skipped"
)

// ChannelHealthStatus is the aggregate health record for a Channel.
type ChannelHealthStatus struct {
	ChannelID              int64
	Status                 string
	Total                  int
	Successful             int
	Failed                 int
	ConsecutiveFailures    int
	DistinctFailurePeriods int
	LastCheckAt            *time.Time
	LastSuccessAt          *time.Time
	LastFailureAt          *time.Time
	AutoDisabledAt         *time.Time
	ManuallyReenabledAt    *time.Time
	IgnoreReason           string
}

// ChannelHealthCheck is a single probe outcome.
type ChannelHealthCheck struct {
	ID         int64
	ChannelID  int64
	Result     string
	HTTPCode   *int
	DurationMS int
	Analysis   string
	CheckedAt  time.Time
}

// SyncMetadata is the process-wide persisted key/value store for schedule bookkeeping.
type SyncMetadata struct {
	Key   string
	Value string
}

// EpgMatchRuleSet is the EPGMatcher analogue of RuleSet.
type EpgMatchRuleSet struct {
	ID        int64
	Name      string
	IsDefault bool
}

// EPGMatcher match types.
const (
	MatchProviderID     = "provider_id"
	MatchCallsignTag    = "callsign_tag"
	MatchCallsignName   = "callsign_name"
	MatchFCCLookup      = "fcc_lookup"
	MatchExactName      = "exact_name"
	MatchFuzzyName      = "fuzzy_name"
	MatchRegex          = "regex"
	MatchTagBased       = "tag_based"
	MatchCategoryPattern = "category_pattern"
	MatchNetworkFallback = "network_fallback"
)

// EpgMatchRule source fields.
const (
	MatchSourceChannelName  = "channel_name"
	MatchSourceCleanedName  = "cleaned_name"
	MatchSourceCategoryName = "category_name"
	MatchSourceEpgChannelID = "epg_channel_id"
)

// EpgMatchRule actions.
const (
	MatchActionApply       = "apply"
	MatchActionSkip        = "skip"
	MatchActionUseFallback = "use_fallback"
)

// EpgMatchRule is one rule within an EpgMatchRuleSet.
type EpgMatchRule struct {
	ID                     int64
	RuleSetID              int64
	Priority               int
	Enabled                bool
	Action                 string
	MatchType              string
	Source                 string
	Pattern                string
	CategoryPattern        string
	CategoryExcludePattern string
	CountryCodes           []string
	RequiredTags           []string
	ExcludedTags           []string
	MinConfidence          float64
	StopOnMatch            bool
	FallbackEpgChannelID   string
}

// AccountEpgMatchRuleSet assigns an EpgMatchRuleSet to an Account.
type AccountEpgMatchRuleSet struct {
	AccountID int64
	RuleSetID int64
	Priority  int
}

// FccMatchNetwork names a network plus alternate tag spellings.
type FccMatchNetwork struct {
	ID          int64
	Name        string
	TagPatterns []string
}

// FccMatchChannelPattern extracts a virtual channel number from a channel name.
type FccMatchChannelPattern struct {
	ID       int64
	Priority int
	Pattern  string
	Group    int
	Networks []string
}

// FccMatchLocationPattern extracts city/state from a tag.
type FccMatchLocationPattern struct {
	ID          int64
	Priority    int
	Pattern     string
	CityGroup   int
	StateGroup  int
}

// FccMatchStrategy strategy types.
const (
	StrategyCityStateChannel = "city_state_channel"
	StrategyStateChannel     = "state_channel"
	StrategyCityDMAChannel   = "city_dma_channel"
	StrategyStateOnly        = "state_only"
	StrategyCityDMAOnly      = "city_dma_only"
)

// FccMatchStrategy is a priority-ordered facility lookup strategy.
type FccMatchStrategy struct {
	ID              int64
	Priority        int
	StrategyType    string
	RequiresNetwork bool
	RequiresChannel bool
	RequiresState   bool
	RequiresCity    bool
	CityMatchesDMA  bool // for city_dma_channel/city_dma_only: match nielsen_dma instead of community_city
}

// EpgExclusionPattern pattern types.
const (
	ExclusionCategoryName = "category_name"
	ExclusionChannelName  = "channel_name"
	ExclusionTag          = "tag"
)

// EpgExclusionPattern excludes channels from EPG matching.
type EpgExclusionPattern struct {
	ID            int64
	PatternType   string
	Pattern       string
	IsRegex       bool
	CaseSensitive bool
	HideChannel   bool
}

// EpgChannelNameMapping match types for name rewriting.
const (
	NameMapExact    = "exact"
	NameMapContains = "contains"
	NameMapPrefix   = "prefix"
	NameMapSuffix   = "suffix"
	NameMapRegex    = "regex"
)

// EpgChannelNameMapping rewrites a rebranded channel's name before EPG matching.
type EpgChannelNameMapping struct {
	ID            int64
	Priority      int
	OldName       string
	NewName       string
	MatchType     string
	CaseSensitive bool
}
