// Package fccsync downloads and parses the FCC's LMS facility archive and
// syncs TV broadcast facility records into the store.
package fccsync

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/store"
)

// ArchiveURL is the FCC's facility.zip download, refreshed daily by the FCC.
const ArchiveURL = "https://enterpriseefiling.fcc.gov/dataentry/api/download/dbfile/facility.zip"

const facilityEntryName = "facility.dat"

// tvServiceCodes are the FCC service_code values that describe TV broadcast
// facilities; every other service_code (radio, auxiliary, etc.) is skipped.
var tvServiceCodes = map[string]bool{
	"DTV": true, "TV": true, "LPT": true, "LPD": true, "LPA": true, "LPX": true,
}

// Column offsets into the pipe-delimited facility.dat record, 0-indexed.
const (
	colActive         = 0
	colCallsign       = 3
	colCity           = 7
	colState          = 8
	colFacilityID     = 12
	colNetwork        = 21
	colNielsenDMA     = 22
	colServiceCode    = 25
	colVirtualChannel = 30
	minFields         = 31
)

var majorNetworks = []string{
	"ABC", "NBC", "CBS", "FOX", "PBS", "CW", "ION", "UNIV", "TELE", "MNT", "MYNT",
	"INDEPENDENT", "UNIVISION", "TELEMUNDO", "IND",
}

var (
	parenRe   = regexp.MustCompile(`\s*\([^)]*\)`)
	delimRe   = regexp.MustCompile(`[/;,&]+`)
	leadNumRe = regexp.MustCompile(`^\d+(?:\.\d+)?\s+`)

	majorNetworkPatterns = buildMajorNetworkPatterns()
)

func buildMajorNetworkPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(majorNetworks))
	for i, major := range majorNetworks {
		patterns[i] = regexp.MustCompile(`(?i)(?:^|\b)(?:\d+(?:\.\d+)?\s+)?(` + regexp.QuoteMeta(major) + `)\b`)
	}
	return patterns
}

// Download fetches the facility archive and returns the extracted facility.dat bytes.
func Download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		url = ArchiveURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fcc archive request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fcc archive download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fcc archive download: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fcc archive read: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("fcc archive unzip: %w", err)
	}
	f, err := zr.Open(facilityEntryName)
	if err != nil {
		return nil, fmt.Errorf("fcc archive missing %s: %w", facilityEntryName, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("fcc archive extract: %w", err)
	}
	return data, nil
}

// Parse decodes pipe-delimited facility.dat content into TV facility records.
// Records end with "^|" followed by a line ending; the first record is the header.
func Parse(data []byte) []*model.FccFacility {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "^|\n")

	var out []*model.FccFacility
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < minFields {
			continue
		}
		serviceCode := strings.ToUpper(strings.TrimSpace(fields[colServiceCode]))
		if !tvServiceCodes[serviceCode] {
			continue
		}
		callsign := strings.ToUpper(strings.TrimSpace(fields[colCallsign]))
		if callsign == "" {
			continue
		}

		virtualChannel, _ := strconv.Atoi(strings.TrimSpace(fields[colVirtualChannel]))

		out = append(out, &model.FccFacility{
			FacilityID:         strings.TrimSpace(fields[colFacilityID]),
			Callsign:           callsign,
			CommunityCity:      strings.ToUpper(strings.TrimSpace(fields[colCity])),
			CommunityState:     strings.ToUpper(strings.TrimSpace(fields[colState])),
			NetworkAffiliation: parseNetworkAffiliation(fields[colNetwork]),
			NielsenDMA:         strings.TrimSpace(fields[colNielsenDMA]),
			VirtualChannel:     virtualChannel,
			ServiceCode:        serviceCode,
			Active:             strings.ToUpper(strings.TrimSpace(fields[colActive])) == "Y",
		})
	}
	return out
}

// parseNetworkAffiliation normalizes the FCC's free-text network_affiliation
// field down to a single primary network, e.g. "5.1 FOX, 5.2 SSSEN" -> "FOX".
func parseNetworkAffiliation(raw string) string {
	network := strings.TrimSpace(raw)
	if network == "" {
		return ""
	}

	for _, pattern := range majorNetworkPatterns {
		if m := pattern.FindStringSubmatch(network); m != nil {
			return strings.ToUpper(m[1])
		}
	}

	cleaned := parenRe.ReplaceAllString(network, "")
	parts := delimRe.Split(cleaned, -1)
	if len(parts) > 0 {
		first := strings.TrimSpace(parts[0])
		first = leadNumRe.ReplaceAllString(first, "")
		if first != "" {
			return strings.ToUpper(first)
		}
	}

	if len(network) <= 20 {
		return strings.ToUpper(network)
	}
	return ""
}

// Stats summarizes one Sync run.
type Stats struct {
	Parsed  int
	Synced  int
	Errored int
}

// Sync upserts every parsed TV facility record into the store.
func Sync(st *store.Store, records []*model.FccFacility) Stats {
	stats := Stats{Parsed: len(records)}
	for _, f := range records {
		if err := st.UpsertFccFacility(f); err != nil {
			stats.Errored++
			continue
		}
		stats.Synced++
	}
	return stats
}

// FullSync downloads, parses, and syncs the FCC facility archive in one call.
func FullSync(ctx context.Context, client *http.Client, st *store.Store, archiveURL string) (Stats, error) {
	data, err := Download(ctx, client, archiveURL)
	if err != nil {
		return Stats{}, err
	}
	records := Parse(data)
	if len(records) == 0 {
		return Stats{}, fmt.Errorf("no TV facility records found in FCC archive")
	}
	return Sync(st, records), nil
}
