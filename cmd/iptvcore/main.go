// Command iptvcore runs the catalog/EPG/connection/health core as a single
// long-lived process: background sync jobs, periodic health scanning, and
// the Xtream-compatible downstream gateway.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snapetech/iptvcore/internal/config"
	"github.com/snapetech/iptvcore/internal/fccsync"
	"github.com/snapetech/iptvcore/internal/gateway"
	"github.com/snapetech/iptvcore/internal/health"
	"github.com/snapetech/iptvcore/internal/scheduler"
	"github.com/snapetech/iptvcore/internal/store"
)

func main() {
	cfg := config.Load()

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(st, scheduler.Config{
		CatalogInterval:      cfg.CatalogSyncInterval,
		EPGInterval:          cfg.EpgSyncInterval,
		FCCInterval:          cfg.FccSyncInterval,
		StartDelay:           cfg.SchedulerStartDelay,
		FCCArchiveURL:        fccsync.ArchiveURL,
		CategoryFetchTimeout: cfg.CategoryFetchTimeout,
		XMLTVFetchTimeout:    cfg.XMLTVFetchTimeout,
		FCCArchiveTimeout:    cfg.FccArchiveTimeout,
	})
	go func() {
		if err := sched.Run(ctx); err != nil {
			log.Printf("scheduler: %v", err)
		}
	}()

	if cfg.HealthScanningEnabled {
		go runHealthLoop(ctx, st, cfg)
	}

	gw := gateway.New(st, cfg)
	gwServer := &http.Server{Addr: cfg.ListenAddr, Handler: gw.Mux()}
	go func() {
		log.Printf("iptvcore: gateway listening on %s", cfg.ListenAddr)
		if err := gwServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("gateway: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", gateway.MetricsHandler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Printf("iptvcore: metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("iptvcore: shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = gwServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
}

// runHealthLoop scans every enabled account's channels on
// HealthScanIntervalMinutes. Monitor.Scan holds back
// cfg.HealthReservedConnections of each account's connection capacity and
// caps maxChannels at what remains.
func runHealthLoop(ctx context.Context, st *store.Store, cfg *config.Config) {
	monitor := health.New(st, health.NoopAnalyzer{}, health.Config{
		ReservedConnections:  cfg.HealthReservedConnections,
		ScanInterval:         time.Duration(cfg.HealthScanIntervalMinutes) * time.Minute,
		AnalysisDuration:     cfg.HealthAnalysisDuration,
		FailureThreshold:     cfg.HealthFailureThreshold,
		MinHoursApart:        time.Duration(cfg.HealthMinHoursApart) * time.Hour,
		AutoDisableDown:      cfg.HealthAutoDisableDown,
		BlackScreenThreshold: cfg.HealthBlackScreenThreshold,
	})

	ticker := time.NewTicker(time.Duration(cfg.HealthScanIntervalMinutes) * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			accounts, err := st.ListAccounts(true)
			if err != nil {
				log.Printf("health: list accounts: %v", err)
				continue
			}
			for _, acct := range accounts {
				stats, err := monitor.Scan(ctx, acct.ID, 50)
				if err != nil {
					log.Printf("health: scan account %q: %v", acct.Name, err)
					continue
				}
				log.Printf("health: account %q scanned: %+v", acct.Name, stats)
			}
		}
	}
}
