// Command mywi-domain-crawl runs the Domain Crawler (C9) over a Land's
// not-yet-enriched domains, driven entirely from the command line. It
// mirrors cmd/mywi-crawl/main.go's bootstrap shape (load config, run
// migrations, open a pool, wire the store) but targets domain
// enrichment rather than Expression crawling.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"mywi/internal/config"
	"mywi/internal/domaincrawler"
	"mywi/internal/jobcoordinator"
	"mywi/internal/migrate"
	"mywi/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	landID := flag.Int64("land", 0, "land ID whose domains should be enriched")
	limit := flag.Int("limit", 100, "maximum number of domains to fetch this pass")
	flag.Parse()

	if *landID == 0 {
		log.Fatal("-land is required")
	}

	cfg := config.Load(*configPath)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open pool failed: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		if opt, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			rdb = redis.NewClient(opt)
			defer rdb.Close()
		} else {
			logger.Warn("invalid redis url, progress broadcast disabled", "error", err)
		}
	}

	coordinator := jobcoordinator.New(st, rdb)

	job, err := coordinator.CreateJob(ctx, "domain_crawl", map[string]interface{}{
		"land_id": *landID,
		"limit":   *limit,
	})
	if err != nil {
		log.Fatalf("create job failed: %v", err)
	}
	if err := coordinator.MarkRunning(ctx, job.ID); err != nil {
		log.Fatalf("mark running failed: %v", err)
	}

	crawlerCfg := domaincrawler.DefaultConfig
	if cfg.DomainCrawl.TimeoutSeconds > 0 {
		crawlerCfg.Timeout = time.Duration(cfg.DomainCrawl.TimeoutSeconds) * time.Second
	}
	if cfg.DomainCrawl.UserAgent != "" {
		crawlerCfg.UserAgent = cfg.DomainCrawl.UserAgent
	}
	crawler := domaincrawler.New(crawlerCfg)

	domains, err := st.SelectDomainsPendingFetch(ctx, *landID, *limit)
	if err != nil {
		_ = coordinator.MarkFailed(ctx, job.ID, err.Error())
		log.Fatalf("select domains failed: %v", err)
	}

	var succeeded, failed int
	for _, d := range domains {
		result := crawler.FetchDomain(ctx, d.Name)

		var title, description, language *string
		if result.Title != "" {
			title = &result.Title
		}
		if result.Description != "" {
			description = &result.Description
		}
		if result.Language != "" {
			language = &result.Language
		}

		if err := st.UpdateDomainAfterFetch(ctx, d.ID, title, description, language,
			result.FetchedAt, result.HTTPStatus, string(result.SourceMethod)); err != nil {
			logger.Warn("update domain after fetch failed", "domain", d.Name, "error", err)
			failed++
			continue
		}

		if result.HTTPStatus == 200 {
			succeeded++
		} else {
			failed++
		}
	}

	if err := coordinator.Complete(ctx, job.ID, map[string]interface{}{
		"processed": len(domains),
		"succeeded": succeeded,
		"failed":    failed,
	}); err != nil {
		log.Fatalf("complete job failed: %v", err)
	}

	logger.Info("domain crawl finished",
		"land_id", *landID, "job_id", job.ID,
		"processed", len(domains), "succeeded", succeeded, "failed", failed,
	)
}
