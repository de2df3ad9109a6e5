package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for the crawl & enrichment pipeline.
// This is intentionally minimal and in-memory only.

var (
	mu sync.RWMutex

	retentionJobsDeleted = make(map[string]int64)

	crawlExpressionsProcessed = make(map[int64]int64) // land_id -> count
	crawlExpressionsError     = make(map[int64]int64) // land_id -> count
	crawlHTTPStatusTotal      = make(map[int]int64)
	extractionSourceTotal     = make(map[string]int64)

	qualityScoreBucketCounts = make(map[int]int64) // bucket index (score*10 floored) -> count
)

// RecordRetentionJobs increments the counter of CrawlJobs deleted by
// TTL for a given job type.
func RecordRetentionJobs(jobType string, deleted int64) {
	if deleted <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionJobsDeleted[jobType] += deleted
}

// RecordCrawlExpressionProcessed increments the processed counter for
// landID, and the error counter too when the crawl attempt failed.
func RecordCrawlExpressionProcessed(landID int64, failed bool) {
	mu.Lock()
	defer mu.Unlock()
	crawlExpressionsProcessed[landID]++
	if failed {
		crawlExpressionsError[landID]++
	}
}

// RecordCrawlHTTPStatus increments the counter for an observed HTTP
// status code (0 for transport-level failures).
func RecordCrawlHTTPStatus(status int) {
	mu.Lock()
	defer mu.Unlock()
	crawlHTTPStatusTotal[status]++
}

// RecordExtractionSource increments the counter for which cascade rung
// produced a result ("primary", "archive", "heuristic_smart",
// "heuristic_basic", "failed").
func RecordExtractionSource(source string) {
	if source == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	extractionSourceTotal[source]++
}

// RecordQualityScore buckets a quality score (0.0-1.0) by tenths into
// buckets 0-10 of quality_score_histogram; a score of 1.0 gets bucket 10.
func RecordQualityScore(score float64) {
	bucket := int(score * 10)
	if bucket < 0 {
		bucket = 0
	}
	if bucket > 10 {
		bucket = 10
	}
	mu.Lock()
	defer mu.Unlock()
	qualityScoreBucketCounts[bucket]++
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP mywi_crawl_expressions_processed_total Total expressions processed per land\n")
	b.WriteString("# TYPE mywi_crawl_expressions_processed_total counter\n")
	for _, landID := range sortedInt64Keys(crawlExpressionsProcessed) {
		fmt.Fprintf(&b, "mywi_crawl_expressions_processed_total{land_id=\"%d\"} %d\n", landID, crawlExpressionsProcessed[landID])
	}

	b.WriteString("# HELP mywi_crawl_expressions_error_total Total expression crawl failures per land\n")
	b.WriteString("# TYPE mywi_crawl_expressions_error_total counter\n")
	for _, landID := range sortedInt64Keys(crawlExpressionsError) {
		fmt.Fprintf(&b, "mywi_crawl_expressions_error_total{land_id=\"%d\"} %d\n", landID, crawlExpressionsError[landID])
	}

	b.WriteString("# HELP mywi_crawl_http_status_total Total fetches observed per HTTP status (0 = transport failure)\n")
	b.WriteString("# TYPE mywi_crawl_http_status_total counter\n")
	var statuses []int
	for status := range crawlHTTPStatusTotal {
		statuses = append(statuses, status)
	}
	sort.Ints(statuses)
	for _, status := range statuses {
		fmt.Fprintf(&b, "mywi_crawl_http_status_total{status=\"%d\"} %d\n", status, crawlHTTPStatusTotal[status])
	}

	b.WriteString("# HELP mywi_extraction_source_total Total extraction results per cascade rung\n")
	b.WriteString("# TYPE mywi_extraction_source_total counter\n")
	var sources []string
	for source := range extractionSourceTotal {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		fmt.Fprintf(&b, "mywi_extraction_source_total{source=\"%s\"} %d\n", source, extractionSourceTotal[source])
	}

	b.WriteString("# HELP mywi_quality_score_histogram Quality score distribution bucketed in tenths\n")
	b.WriteString("# TYPE mywi_quality_score_histogram counter\n")
	for bucket := 0; bucket <= 10; bucket++ {
		if count, ok := qualityScoreBucketCounts[bucket]; ok {
			fmt.Fprintf(&b, "mywi_quality_score_histogram{bucket=\"%d\"} %d\n", bucket, count)
		}
	}

	b.WriteString("# HELP mywi_retention_jobs_deleted_total Total CrawlJobs deleted by TTL\n")
	b.WriteString("# TYPE mywi_retention_jobs_deleted_total counter\n")
	var jobTypes []string
	for t := range retentionJobsDeleted {
		jobTypes = append(jobTypes, t)
	}
	sort.Strings(jobTypes)
	for _, t := range jobTypes {
		fmt.Fprintf(&b, "mywi_retention_jobs_deleted_total{job_type=\"%s\"} %d\n", t, retentionJobsDeleted[t])
	}

	return b.String()
}

func sortedInt64Keys(m map[int64]int64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
