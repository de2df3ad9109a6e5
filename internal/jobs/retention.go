package jobs

import (
	"context"
	"time"

	"mywi/internal/config"
	"mywi/internal/metrics"
)

// RetentionStore is the persistence seam the retention sweep deletes
// expired CrawlJobs through.
type RetentionStore interface {
	DeleteExpiredCrawlJobs(ctx context.Context, jobType string, cutoff time.Time) (int64, error)
}

// RetentionStats captures the number of CrawlJobs deleted per job type
// by a TTL cleanup pass.
type RetentionStats struct {
	JobsDeleted map[string]int64 `json:"jobsDeleted"`
}

// jobTypes enumerates the CrawlJob.JobType values retention applies to.
var jobTypes = []string{"crawl_land", "domain_crawl"}

// CleanupExpiredData deletes CrawlJobs older than jobs.crawlDays (or
// jobs.defaultDays when crawlDays is unset) so crawl_jobs does not grow
// without bound; every job type in jobTypes shares that one TTL, and the
// other per-type fields of JobTTLConfig are not read. Retargeted at CrawlJob
// (the schema this core actually writes) from the job-queue/document
// schema the teacher's original retention swept.
func CleanupExpiredData(ctx context.Context, cfg *config.Config, st RetentionStore) RetentionStats {
	stats := RetentionStats{JobsDeleted: make(map[string]int64)}
	if !cfg.Retention.Enabled {
		return stats
	}

	now := time.Now().UTC()
	jobTTL := cfg.Retention.Jobs

	effectiveDays := func(specific int) int {
		if specific > 0 {
			return specific
		}
		return jobTTL.DefaultDays
	}
	crawlDays := effectiveDays(jobTTL.CrawlDays)

	for _, jobType := range jobTypes {
		if crawlDays <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -crawlDays)
		n, err := st.DeleteExpiredCrawlJobs(ctx, jobType, cutoff)
		if err != nil || n == 0 {
			continue
		}
		stats.JobsDeleted[jobType] += n
		metrics.RecordRetentionJobs(jobType, n)
	}

	return stats
}
