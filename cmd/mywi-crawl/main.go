// Command mywi-crawl runs a single Crawl Engine pass over a Land's
// not-yet-approved Expressions, driven entirely from the command line.
// It mirrors the teacher's cmd/raito-api/main.go bootstrap shape
// (load config, run migrations, open a pool, wire the store) but
// targets the crawl engine rather than the HTTP API surface.
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
	"mywi/internal/crawlengine"
	"mywi/internal/jobcoordinator"
	"mywi/internal/media"
	"mywi/internal/migrate"
	"mywi/internal/quality"
	"mywi/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	landID := flag.Int64("land", 0, "land ID to crawl")
	limit := flag.Int("limit", 100, "maximum number of expressions to crawl this pass")
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

	job, err := coordinator.CreateJob(ctx, "crawl_land", map[string]interface{}{
		"land_id": *landID,
		"limit":   *limit,
	})
	if err != nil {
		log.Fatalf("create job failed: %v", err)
	}
	if err := coordinator.MarkRunning(ctx, job.ID); err != nil {
		log.Fatalf("mark running failed: %v", err)
	}

	weights := quality.DefaultWeights
	if cfg.Quality.EnableQualityScoring {
		weights = quality.Weights{
			Access:    cfg.Quality.Weights.Access,
			Structure: cfg.Quality.Weights.Structure,
			Richness:  cfg.Quality.Weights.Richness,
			Coherence: cfg.Quality.Weights.Coherence,
			Integrity: cfg.Quality.Weights.Integrity,
		}
	}

	engineCfg := crawlengine.Config{
		HTTPTimeout:    time.Duration(cfg.CrawlEngine.HTTPTimeoutMs) * time.Millisecond,
		Concurrency:    cfg.CrawlEngine.Concurrency,
		ProgressEveryN: cfg.CrawlEngine.ProgressEveryN,
		QualityWeights: weights,
		DynamicMedia: media.DynamicDiscoveryConfig{
			Enabled: cfg.Media.AnalyzeMedia,
			Timeout: time.Duration(cfg.Media.PlaywrightTimeoutMs) * time.Millisecond,
		},
		Media: media.Config{
			MaxFileSizeMB:   cfg.Media.MaxFileSizeMB,
			NDominantColors: cfg.Media.NDominantColors,
		},
		AnalyzeMedia: cfg.Media.AnalyzeMedia,
	}
	if engineCfg.Media.MaxFileSizeMB <= 0 {
		engineCfg.Media = media.DefaultConfig
	}
	if engineCfg.DynamicMedia.Timeout <= 0 {
		engineCfg.DynamicMedia.Timeout = media.DefaultDynamicDiscoveryConfig.Timeout
	}
	if engineCfg.HTTPTimeout <= 0 {
		engineCfg.HTTPTimeout = crawlengine.DefaultConfig.HTTPTimeout
	}

	fetcher := crawlengine.NewHTTPPageFetcher(engineCfg.HTTPTimeout)
	engine := crawlengine.New(st, fetcher, coordinator, engineCfg)

	result, err := engine.CrawlLand(ctx, job.ID, *landID, *limit)
	if err != nil {
		_ = coordinator.MarkFailed(ctx, job.ID, err.Error())
		log.Fatalf("crawl land failed: %v", err)
	}

	if err := coordinator.Complete(ctx, job.ID, map[string]interface{}{
		"processed": result.Processed,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}); err != nil {
		log.Fatalf("complete job failed: %v", err)
	}

	logger.Info("crawl land finished",
		"land_id", *landID, "job_id", job.ID,
		"processed", result.Processed, "succeeded", result.Succeeded, "failed", result.Failed,
	)
}
