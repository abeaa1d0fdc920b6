// Package scheduler runs the periodic background jobs that keep the catalog,
// EPG mappings, and FCC facility dataset up to date.
package scheduler

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/snapetech/iptvcore/internal/epgmatch"
	"github.com/snapetech/iptvcore/internal/epgsync"
	"github.com/snapetech/iptvcore/internal/fccsync"
	"github.com/snapetech/iptvcore/internal/store"
	catalogsync "github.com/snapetech/iptvcore/internal/sync"
)

// epgSourceFetchRate bounds how often runEPGSync starts a new source fetch,
// so a large EpgSource list doesn't burst-request dozens of distinct guide
// providers all at once.
const epgSourceFetchRate = 2 // per second

// Metadata keys under which each job persists its last successful run time.
const (
	metaKeyCatalog = "scheduler.last_catalog_sync"
	metaKeyEPG     = "scheduler.last_epg_sync"
	metaKeyFCC     = "scheduler.last_fcc_sync"
)

// Config controls job cadence. Zero-value durations disable that job.
type Config struct {
	CatalogInterval time.Duration
	EPGInterval     time.Duration
	FCCInterval     time.Duration
	StartDelay      time.Duration

	FCCArchiveURL string

	CategoryFetchTimeout time.Duration
	XMLTVFetchTimeout    time.Duration
	FCCArchiveTimeout    time.Duration
}

// Scheduler runs the catalog, EPG, and FCC sync jobs as independent
// goroutines, each on its own interval, with last-run times persisted in
// sync_metadata so a restart does not immediately re-run a job that is not
// yet due.
type Scheduler struct {
	st  *store.Store
	cfg Config
}

// New builds a Scheduler against st using cfg.
func New(st *store.Store, cfg Config) *Scheduler {
	return &Scheduler{st: st, cfg: cfg}
}

// Run starts all configured jobs and blocks until ctx is canceled. Each job
// finishes its current unit of work (the account or source it is on) before
// observing cancellation; Run returns once every job goroutine has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	start := func(key string, interval time.Duration, job func(context.Context)) {
		if interval <= 0 {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runLoop(ctx, key, interval, job)
		}()
	}

	start(metaKeyCatalog, s.cfg.CatalogInterval, s.runCatalogSync)
	start(metaKeyEPG, s.cfg.EPGInterval, s.runEPGSync)
	start(metaKeyFCC, s.cfg.FCCInterval, s.runFCCSync)

	wg.Wait()
	return nil
}

// runLoop waits the configured start delay, then repeatedly checks whether
// the job at key is overdue (now - last_run >= interval) and runs it, else
// sleeps the remaining time. It returns as soon as ctx is canceled.
func (s *Scheduler) runLoop(ctx context.Context, key string, interval time.Duration, job func(context.Context)) {
	if !s.sleep(ctx, s.cfg.StartDelay) {
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		wait := time.Duration(0)
		if last := s.lastRun(key); !last.IsZero() {
			if elapsed := time.Since(last); elapsed < interval {
				wait = interval - elapsed
			}
		}
		if wait > 0 {
			if !s.sleep(ctx, wait) {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		job(ctx)
		s.setLastRun(key, time.Now())

		if !s.sleep(ctx, interval) {
			return
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (s *Scheduler) lastRun(key string) time.Time {
	v, err := s.st.GetSyncMetadata(key)
	if err != nil || v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *Scheduler) setLastRun(key string, t time.Time) {
	if err := s.st.SetSyncMetadata(key, t.Format(time.RFC3339)); err != nil {
		log.Printf("scheduler: persist last run for %s: %v", key, err)
	}
}

// runCatalogSync syncs every enabled account's catalog, then re-runs EPG
// matching against the freshly synced catalog for that account.
func (s *Scheduler) runCatalogSync(ctx context.Context) {
	accounts, err := s.st.ListAccounts(true)
	if err != nil {
		log.Printf("scheduler: list accounts: %v", err)
		return
	}
	log.Printf("scheduler: starting catalog sync for %d account(s)", len(accounts))

	for _, acct := range accounts {
		if ctx.Err() != nil {
			return
		}
		stats, err := catalogsync.SyncAccount(ctx, s.st, acct.ID)
		if err != nil {
			log.Printf("scheduler: sync account %q: %v", acct.Name, err)
			continue
		}
		log.Printf("scheduler: account %q synced: %+v", acct.Name, stats)

		if _, err := epgmatch.MatchAccount(s.st, acct.ID, epgmatch.Options{}); err != nil {
			log.Printf("scheduler: epg match account %q: %v", acct.Name, err)
		}
	}
}

// runEPGSync fetches and syncs every enabled EpgSource that carries its own
// URL. Provider-type sources need an account to authenticate against, which
// this deployment's EpgSource records do not carry, so they are logged and
// skipped; schedules_direct sources are logged and skipped too, since no code
// in this module syncs them.
func (s *Scheduler) runEPGSync(ctx context.Context) {
	sources, err := s.st.ListEpgSources(true)
	if err != nil {
		log.Printf("scheduler: list epg sources: %v", err)
		return
	}
	log.Printf("scheduler: starting epg sync for %d source(s)", len(sources))

	client := &http.Client{Timeout: s.cfg.XMLTVFetchTimeout}
	limiter := rate.NewLimiter(rate.Limit(epgSourceFetchRate), 1)
	for _, src := range sources {
		if ctx.Err() != nil {
			return
		}
		switch src.SourceType {
		case epgsync.SourceTypeXMLTVURL:
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			stats, err := epgsync.SyncSource(ctx, s.st, client, src, nil)
			if err != nil {
				log.Printf("scheduler: sync epg source %q: %v", src.Name, err)
				continue
			}
			log.Printf("scheduler: epg source %q synced: %+v", src.Name, stats)
		case epgsync.SourceTypeProvider:
			log.Printf("scheduler: skipping provider epg source %q (no account binding)", src.Name)
		case epgsync.SourceTypeSchedulesDirect:
			log.Printf("scheduler: skipping schedules_direct source %q (not supported)", src.Name)
		default:
			log.Printf("scheduler: unknown epg source type %q for %q", src.SourceType, src.Name)
		}
	}
}

// runFCCSync downloads and syncs the FCC facility archive.
func (s *Scheduler) runFCCSync(ctx context.Context) {
	log.Printf("scheduler: starting fcc facility sync")
	client := &http.Client{Timeout: s.cfg.FCCArchiveTimeout}
	stats, err := fccsync.FullSync(ctx, client, s.st, s.cfg.FCCArchiveURL)
	if err != nil {
		log.Printf("scheduler: fcc sync: %v", err)
		return
	}
	log.Printf("scheduler: fcc sync complete: %+v", stats)
}
