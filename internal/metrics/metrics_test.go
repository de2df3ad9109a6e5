package metrics

import (
	"strings"
	"testing"
)

func TestRecordCrawlExpressionProcessed_TracksPerLandCounts(t *testing.T) {
	RecordCrawlExpressionProcessed(42, false)
	RecordCrawlExpressionProcessed(42, true)

	out := Export()
	if !strings.Contains(out, `mywi_crawl_expressions_processed_total{land_id="42"} 2`) {
		t.Fatalf("expected processed count of 2 for land 42, got:\n%s", out)
	}
	if !strings.Contains(out, `mywi_crawl_expressions_error_total{land_id="42"} 1`) {
		t.Fatalf("expected error count of 1 for land 42, got:\n%s", out)
	}
}

func TestRecordCrawlHTTPStatus_IncludesTransportFailureBucket(t *testing.T) {
	RecordCrawlHTTPStatus(0)
	RecordCrawlHTTPStatus(200)
	RecordCrawlHTTPStatus(200)

	out := Export()
	if !strings.Contains(out, `mywi_crawl_http_status_total{status="0"}`) {
		t.Fatalf("expected a status=0 bucket for transport failures, got:\n%s", out)
	}
	if !strings.Contains(out, `mywi_crawl_http_status_total{status="200"} 2`) {
		t.Fatalf("expected status=200 count of 2, got:\n%s", out)
	}
}

func TestRecordExtractionSource_CountsPerCascadeRung(t *testing.T) {
	RecordExtractionSource("primary")
	RecordExtractionSource("archive")
	RecordExtractionSource("primary")

	out := Export()
	if !strings.Contains(out, `mywi_extraction_source_total{source="primary"} 2`) {
		t.Fatalf("expected primary count of 2, got:\n%s", out)
	}
	if !strings.Contains(out, `mywi_extraction_source_total{source="archive"} 1`) {
		t.Fatalf("expected archive count of 1, got:\n%s", out)
	}
}

func TestRecordQualityScore_BucketsIntoTenths(t *testing.T) {
	RecordQualityScore(0.85)
	RecordQualityScore(0.0)
	RecordQualityScore(1.0)

	out := Export()
	if !strings.Contains(out, `mywi_quality_score_histogram{bucket="8"}`) {
		t.Fatalf("expected bucket 8 for score 0.85, got:\n%s", out)
	}
	if !strings.Contains(out, `mywi_quality_score_histogram{bucket="0"}`) {
		t.Fatalf("expected bucket 0 for score 0.0, got:\n%s", out)
	}
	if !strings.Contains(out, `mywi_quality_score_histogram{bucket="10"}`) {
		t.Fatalf("expected bucket 10 for score 1.0, got:\n%s", out)
	}
}

func TestRecordRetentionJobs_SkipsNonPositiveCounts(t *testing.T) {
	RecordRetentionJobs("crawl_land", 0)
	RecordRetentionJobs("crawl_land", 3)

	out := Export()
	if !strings.Contains(out, `mywi_retention_jobs_deleted_total{job_type="crawl_land"} 3`) {
		t.Fatalf("expected retention count of 3 for crawl_land, got:\n%s", out)
	}
}
