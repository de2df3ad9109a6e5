// Package store is the persistence layer: hand-written parameterized
// SQL over pgx/v5. The teacher's store.go wrapped a sqlc-generated
// internal/db Queries package that is absent from the retrieved example
// (no codegen output was recoverable); every query here is written
// directly against pgx/v5 instead, keeping the teacher's "Store wraps a
// pool, one exported method per operation, hand-built filter SQL for
// list endpoints" shape (see ListJobs/DeleteExpiredDocuments in the
// original store.go).
package store

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sqlc-dev/pqtype"

	"mywi/internal/model"
)

// Store wraps a pooled Postgres connection.
type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func urlHash(rawURL string) []byte {
	sum := sha256.Sum256([]byte(rawURL))
	return sum[:]
}

// --- Land / Word / LandDictionary (Dictionary Service) ---

func (s *Store) CountLandDictionary(ctx context.Context, landID int64) (int, error) {
	var count int
	err := s.Pool.QueryRow(ctx,
		`SELECT count(*) FROM land_dictionaries WHERE land_id = $1`, landID,
	).Scan(&count)
	return count, err
}

func (s *Store) ClearLandDictionary(ctx context.Context, landID int64) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM land_dictionaries WHERE land_id = $1`, landID)
	return err
}

func (s *Store) LandWords(ctx context.Context, landID int64) ([]model.Word, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT w.id, w.language, w.word, w.lemma, w.frequency
		FROM words w
		JOIN land_dictionaries ld ON ld.word_id = w.id
		WHERE ld.land_id = $1`, landID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Word
	for rows.Next() {
		var w model.Word
		if err := rows.Scan(&w.ID, &w.Language, &w.Word, &w.Lemma, &w.Frequency); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) FindWordByWord(ctx context.Context, word, language string) (*model.Word, bool, error) {
	var w model.Word
	err := s.Pool.QueryRow(ctx,
		`SELECT id, language, word, lemma, frequency FROM words WHERE word = $1 AND language = $2`,
		word, language,
	).Scan(&w.ID, &w.Language, &w.Word, &w.Lemma, &w.Frequency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &w, true, nil
}

func (s *Store) FindWordByLemma(ctx context.Context, lemma, language string) (*model.Word, bool, error) {
	var w model.Word
	err := s.Pool.QueryRow(ctx,
		`SELECT id, language, word, lemma, frequency FROM words WHERE lemma = $1 AND language = $2 LIMIT 1`,
		lemma, language,
	).Scan(&w.ID, &w.Language, &w.Word, &w.Lemma, &w.Frequency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &w, true, nil
}

func (s *Store) CreateWord(ctx context.Context, w model.Word) (model.Word, error) {
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO words (language, word, lemma, frequency)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		w.Language, w.Word, w.Lemma, w.Frequency,
	).Scan(&w.ID)
	return w, err
}

func (s *Store) HasLandDictionaryEntry(ctx context.Context, landID, wordID int64) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM land_dictionaries WHERE land_id = $1 AND word_id = $2)`,
		landID, wordID,
	).Scan(&exists)
	return exists, err
}

func (s *Store) InsertLandDictionaryEntry(ctx context.Context, entry model.LandDictionary) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO land_dictionaries (land_id, word_id, weight)
		VALUES ($1, $2, $3)
		ON CONFLICT (land_id, word_id) DO NOTHING`,
		entry.LandID, entry.WordID, entry.Weight,
	)
	return err
}

// LandDictionaryWeights returns the land's dictionary collapsed to
// lemma -> summed weight, the shape the Relevance Engine scores against
// (multiple surface words can share a lemma via variant expansion).
func (s *Store) LandDictionaryWeights(ctx context.Context, landID int64) (map[string]float64, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT w.lemma, sum(ld.weight)
		FROM words w
		JOIN land_dictionaries ld ON ld.word_id = w.id
		WHERE ld.land_id = $1
		GROUP BY w.lemma`, landID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var lemma string
		var weight float64
		if err := rows.Scan(&lemma, &weight); err != nil {
			return nil, err
		}
		out[lemma] = weight
	}
	return out, rows.Err()
}

// GetLand fetches a Land by ID, used by the Crawl Engine to read
// accepted languages for coherence scoring.
func (s *Store) GetLand(ctx context.Context, landID int64) (model.Land, error) {
	var l model.Land
	err := s.Pool.QueryRow(ctx,
		`SELECT id, name, lang, start_urls, created_at FROM lands WHERE id = $1`, landID,
	).Scan(&l.ID, &l.Name, &l.Lang, &l.StartURLs, &l.CreatedAt)
	return l, err
}

// --- Domain / Expression / ExpressionLink / Media (Graph Builder, Crawl Engine) ---

// GetOrCreateDomain upserts a Domain by (land_id, name), the per-Land
// netloc-scoped aggregate key, per _get_or_create_domain.
func (s *Store) GetOrCreateDomain(ctx context.Context, landID int64, name string) (model.Domain, error) {
	var d model.Domain
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO domains (land_id, name)
		VALUES ($1, $2)
		ON CONFLICT (land_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, land_id, name, title, description, language,
		          last_fetched_at, last_http_status, last_source_tag`,
		landID, name,
	).Scan(&d.ID, &d.LandID, &d.Name, &d.Title, &d.Description, &d.Language,
		&d.LastFetchedAt, &d.LastHTTPStatus, &d.LastSourceTag)
	return d, err
}

func (s *Store) UpdateDomainAfterFetch(ctx context.Context, domainID int64, title, description, language *string, fetchedAt time.Time, httpStatus int, sourceTag string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE domains
		SET title = COALESCE($2, title),
		    description = COALESCE($3, description),
		    language = COALESCE($4, language),
		    last_fetched_at = $5,
		    last_http_status = $6,
		    last_source_tag = $7
		WHERE id = $1`,
		domainID, title, description, language, fetchedAt, httpStatus, sourceTag,
	)
	return err
}

// SelectDomainsPendingFetch returns up to limit Domains of landID that
// have never been enriched by the Domain Crawler (C9), oldest-created
// first, per domain_crawler's batch selection of not-yet-fetched domains.
func (s *Store) SelectDomainsPendingFetch(ctx context.Context, landID int64, limit int) ([]model.Domain, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, land_id, name, title, description, language,
		       last_fetched_at, last_http_status, last_source_tag
		FROM domains
		WHERE land_id = $1 AND last_fetched_at IS NULL
		ORDER BY id
		LIMIT $2`,
		landID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []model.Domain
	for rows.Next() {
		var d model.Domain
		if err := rows.Scan(&d.ID, &d.LandID, &d.Name, &d.Title, &d.Description, &d.Language,
			&d.LastFetchedAt, &d.LastHTTPStatus, &d.LastSourceTag); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// GetOrCreateExpression upserts an Expression by (land_id, url_hash),
// the crawl-once key, per _get_or_create_expression. depth is the
// distance from a Land's start URLs; on conflict the stored depth is
// never decreased (GREATEST), matching _extract_and_save_links' "do not
// decrease depth if already present" contract.
func (s *Store) GetOrCreateExpression(ctx context.Context, landID, domainID int64, rawURL string, depth int) (model.Expression, error) {
	hash := urlHash(rawURL)
	var e model.Expression
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO expressions (land_id, domain_id, url, url_hash, depth, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (land_id, url_hash) DO UPDATE SET
			url = EXCLUDED.url,
			depth = GREATEST(expressions.depth, EXCLUDED.depth)
		RETURNING id, land_id, domain_id, url, url_hash, depth, created_at`,
		landID, domainID, rawURL, hash, depth,
	).Scan(&e.ID, &e.LandID, &e.DomainID, &e.URL, &e.URLHash, &e.Depth, &e.CreatedAt)
	return e, err
}

func (s *Store) HasLink(ctx context.Context, sourceID, targetID int64) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM expression_links WHERE source_id = $1 AND target_id = $2)`,
		sourceID, targetID,
	).Scan(&exists)
	return exists, err
}

func (s *Store) InsertLink(ctx context.Context, link model.ExpressionLink) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO expression_links (source_id, target_id, anchor_text, rel_attr, link_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_id, target_id) DO NOTHING`,
		link.SourceID, link.TargetID, link.AnchorText, link.RelAttr, link.LinkType,
	)
	return err
}

func (s *Store) HasMedia(ctx context.Context, expressionID int64, urlHash []byte) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM media WHERE expression_id = $1 AND url_hash = $2)`,
		expressionID, urlHash,
	).Scan(&exists)
	return exists, err
}

func (s *Store) InsertMedia(ctx context.Context, media model.Media) error {
	var dominantColors, webSafeHistogram, exif pqtype.NullRawMessage
	if len(media.Analysis.DominantColors) > 0 {
		if raw, err := json.Marshal(media.Analysis.DominantColors); err == nil {
			dominantColors = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
		}
	}
	if len(media.Analysis.WebSafeHistogram) > 0 {
		if raw, err := json.Marshal(media.Analysis.WebSafeHistogram); err == nil {
			webSafeHistogram = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
		}
	}
	if media.Analysis.EXIF != nil {
		if raw, err := json.Marshal(media.Analysis.EXIF); err == nil {
			exif = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
		}
	}

	isProcessed := media.Analysis.AnalysisError == nil
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO media (
			expression_id, url, url_hash, type, alt_text, is_processed, processing_error,
			width, height, format, color_mode, has_transparency, file_size, image_hash, mime_type,
			dominant_colors, web_safe_histogram, exif
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (expression_id, url_hash) DO NOTHING`,
		media.ExpressionID, media.URL, media.URLHash, media.Type, media.AltText,
		isProcessed, media.Analysis.AnalysisError,
		media.Analysis.Width, media.Analysis.Height, media.Analysis.Format, media.Analysis.ColorMode,
		media.Analysis.HasTransparency, media.Analysis.FileSize, media.Analysis.ImageHash, media.Analysis.MimeType,
		dominantColors, webSafeHistogram, exif,
	)
	return err
}

// --- Expression selection & update (Crawl Engine) ---

// SelectCrawlableExpressions returns up to limit Expressions whose
// approved_at is still null, ordered (depth ASC, created_at ASC) — the
// crawl-selection criterion decided in DESIGN.md's Open Question log.
func (s *Store) SelectCrawlableExpressions(ctx context.Context, landID int64, limit int) ([]model.Expression, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, land_id, domain_id, url, url_hash, depth, created_at
		FROM expressions
		WHERE land_id = $1 AND approved_at IS NULL
		ORDER BY depth ASC, created_at ASC
		LIMIT $2`, landID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Expression
	for rows.Next() {
		var e model.Expression
		if err := rows.Scan(&e.ID, &e.LandID, &e.DomainID, &e.URL, &e.URLHash, &e.Depth, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveExpressionCrawlResult persists the full post-crawl snapshot for an
// Expression: HTTP response facts, extracted content/metadata, derived
// metrics, relevance, and quality score. approved_at is stamped whenever
// readable content was saved, per crawl_expression's "mark reviewed once
// content exists" contract.
func (s *Store) SaveExpressionCrawlResult(ctx context.Context, e model.Expression) error {
	var approvedAt *time.Time
	if e.Readable != nil && *e.Readable != "" {
		now := time.Now().UTC()
		approvedAt = &now
	}

	_, err := s.Pool.Exec(ctx, `
		UPDATE expressions SET
			crawled_at = $2,
			http_status = $3,
			content_type = $4,
			content_length = $5,
			etag = $6,
			last_modified = $7,
			title = $8,
			description = $9,
			keywords = $10,
			canonical_url = $11,
			language = $12,
			content = $13,
			readable = $14,
			readable_at = $15,
			published_at = $16,
			word_count = $17,
			reading_time = $18,
			relevance = $19,
			quality_score = $20,
			approved_at = COALESCE(approved_at, $21)
		WHERE id = $1`,
		e.ID, e.CrawledAt, e.HTTPStatus, e.ContentType, e.ContentLength, e.ETag, e.LastModified,
		e.Title, e.Description, e.Keywords, e.CanonicalURL, e.Language, e.Content, e.Readable,
		e.ReadableAt, e.PublishedAt, e.WordCount, e.ReadingTime, e.Relevance, e.QualityScore,
		approvedAt,
	)
	return err
}

// --- CrawlJob (Job/Progress Coordinator) ---

func (s *Store) CreateCrawlJob(ctx context.Context, job model.CrawlJob) error {
	params, err := nullRawMessage(job.Parameters)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO crawl_jobs (id, job_type, status, parameters, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.JobType, job.Status, params, job.CreatedAt,
	)
	return err
}

// nullRawMessage marshals an arbitrary parameters/result map into a
// pqtype.NullRawMessage, following this repository's established
// pattern for nullable JSON columns (CrawlJob.parameters/result_data).
func nullRawMessage(v map[string]interface{}) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

func (s *Store) UpdateCrawlJobStatus(ctx context.Context, id string, status model.CrawlJobStatus, errMsg *string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE crawl_jobs SET status = $2, error_message = $3,
			completed_at = CASE WHEN $2::text IN ('failed', 'cancelled') THEN now() ELSE completed_at END
		WHERE id = $1`,
		id, status, errMsg,
	)
	return err
}

func (s *Store) CompleteCrawlJob(ctx context.Context, id string, result map[string]interface{}) error {
	payload, err := nullRawMessage(result)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		UPDATE crawl_jobs SET status = $2, result_data = $3, completed_at = now() WHERE id = $1`,
		id, model.JobCompleted, payload,
	)
	return err
}

// DeleteExpiredCrawlJobs removes completed/failed/cancelled CrawlJobs
// of jobType whose completed_at predates cutoff, returning the count
// deleted. Used by the retention sweep to bound crawl_jobs growth.
func (s *Store) DeleteExpiredCrawlJobs(ctx context.Context, jobType string, cutoff time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `
		DELETE FROM crawl_jobs
		WHERE job_type = $1
		  AND status IN ('completed', 'failed', 'cancelled')
		  AND completed_at IS NOT NULL
		  AND completed_at < $2`,
		jobType, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
