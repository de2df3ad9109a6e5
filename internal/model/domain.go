package model

import "time"

// MediaType enumerates the kinds of media discovered alongside an
// Expression's readable content.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

// LinkType classifies an ExpressionLink edge relative to its source
// Expression's netloc.
type LinkType string

const (
	LinkInternal LinkType = "internal"
	LinkExternal LinkType = "external"
)

// SourceTag identifies which rung of the extraction cascade produced an
// Expression's readable content.
type SourceTag string

const (
	SourcePrimary        SourceTag = "primary"
	SourceArchive        SourceTag = "archive"
	SourceHeuristicSmart SourceTag = "heuristic_smart"
	SourceHeuristicBasic SourceTag = "heuristic_basic"
	SourceFailed         SourceTag = "failed"
)

// French markers preserved verbatim from the original data model; these
// are part of the external contract and must not be translated.
const (
	ValidLLMOui = "oui"
	ValidLLMNon = "non"
)

// CrawlJobStatus enumerates the CrawlJob lifecycle states.
type CrawlJobStatus string

const (
	JobPending   CrawlJobStatus = "pending"
	JobRunning   CrawlJobStatus = "running"
	JobCompleted CrawlJobStatus = "completed"
	JobFailed    CrawlJobStatus = "failed"
	JobCancelled CrawlJobStatus = "cancelled"
)

// Land is a user-scoped research topic: seed URLs, accepted language
// tags, and a weighted keyword dictionary materialized in LandDictionary.
type Land struct {
	ID         int64
	Name       string
	Lang       []string
	StartURLs  []string
	CreatedAt  time.Time
}

// Word is a shared, language-scoped lexical entry: (language, word) is
// unique; Lemma is its normalized base form.
type Word struct {
	ID        int64
	Language  string
	Word      string
	Lemma     string
	Frequency float64
}

// LandDictionary is the weighted membership of a Word in a Land's
// dictionary; (land_id, word_id) is unique.
type LandDictionary struct {
	LandID int64
	WordID int64
	Weight float64
}

// Domain is a netloc-scoped aggregate under a Land.
type Domain struct {
	ID             int64
	LandID         int64
	Name           string
	Title          *string
	Description    *string
	Language       *string
	LastFetchedAt  *time.Time
	LastHTTPStatus *int
	LastSourceTag  *string
}

// Expression is a crawled URL within a Land.
type Expression struct {
	ID       int64
	LandID   int64
	DomainID int64
	URL      string
	URLHash  []byte
	Depth    int

	CreatedAt   time.Time
	CrawledAt   *time.Time
	ApprovedAt  *time.Time
	ReadableAt  *time.Time
	PublishedAt *time.Time
	LastModified *time.Time

	HTTPStatus    *int
	ContentType   *string
	ContentLength *int
	ETag          *string

	Title         *string
	Description   *string
	Keywords      *string
	CanonicalURL  *string
	Language      *string
	Content       *string
	Readable      *string

	WordCount   *int
	ReadingTime *int
	Relevance   *float64
	QualityScore *float64

	SentimentScore      *float64
	SentimentLabel      *string
	SentimentConfidence *float64
	SentimentStatus     *string
	SentimentModel      *string
	SentimentComputedAt *time.Time

	ValidLLM  *string
	ValidModel *string
}

// ScorableView returns the minimal structural capability set consumed
// by the Quality Scorer, per Design Notes §9's
// "duck-typed mock expression → explicit structural view".
func (e *Expression) ScorableView() ScorableExpression {
	return ScorableExpression{
		HTTPStatus:    e.HTTPStatus,
		ContentType:   e.ContentType,
		Title:         e.Title,
		Description:   e.Description,
		Keywords:      e.Keywords,
		CanonicalURL:  e.CanonicalURL,
		WordCount:     e.WordCount,
		ContentLength: e.ContentLength,
		ReadingTime:   e.ReadingTime,
		Language:      e.Language,
		Relevance:     e.Relevance,
		PublishedAt:   e.PublishedAt,
		ValidLLM:      e.ValidLLM,
		Readable:      e.Readable,
		ReadableAt:    e.ReadableAt,
		ApprovedAt:    e.ApprovedAt,
		CrawledAt:     e.CrawledAt,
	}
}

// ScorableExpression is the explicit structural view that the Quality
// Scorer reads from (the Relevance Engine reads its own
// relevance.Expression); any caller (real Expression, test fixture)
// satisfies it by value.
type ScorableExpression struct {
	HTTPStatus    *int
	ContentType   *string
	Title         *string
	Description   *string
	Keywords      *string
	CanonicalURL  *string
	WordCount     *int
	ContentLength *int
	ReadingTime   *int
	Language      *string
	Relevance     *float64
	PublishedAt   *time.Time
	ValidLLM      *string
	Readable      *string
	ReadableAt    *time.Time
	ApprovedAt    *time.Time
	CrawledAt     *time.Time
}

// ScorableLand is the structural view of a Land consumed by the Quality
// Scorer's coherence block.
type ScorableLand struct {
	Lang []string
}

// ExpressionLink is a directed edge between two Expressions.
type ExpressionLink struct {
	ID          int64
	SourceID    int64
	TargetID    int64
	AnchorText  *string
	RelAttr     *string
	LinkType    LinkType
}

// MediaAnalysis carries the optional best-effort fields C4 computes for
// an image Media row.
type MediaAnalysis struct {
	Width            *int
	Height           *int
	Format           *string
	ColorMode        *string
	HasTransparency  *bool
	AspectRatio      *float64
	FileSize         *int
	ImageHash        *string
	MimeType         *string
	DominantColors   []DominantColor
	WebSafeHistogram []WebSafeColor
	EXIF             *EXIFData
	AnalysisError    *string
}

// DominantColor is one cluster from the k-means dominant-color pass.
type DominantColor struct {
	R, G, B    uint8
	Percentage float64
}

// WebSafeColor aggregates dominant-color percentages snapped to the
// nearest of the 216 web-safe triples.
type WebSafeColor struct {
	Hex        string
	Percentage float64
}

// EXIFData is the minimal EXIF tag subset extracted by C4.
type EXIFData struct {
	Width    *int
	Length   *int
	Make     *string
	Model    *string
	DateTime *string
}

// Media is a discovered media asset attached to an Expression.
type Media struct {
	ID              int64
	ExpressionID    int64
	URL             string
	URLHash         []byte
	Type            MediaType
	AltText         *string
	Caption         *string
	IsProcessed     bool
	ProcessingError *string
	Analysis        MediaAnalysis
}

// Paragraph is a consumer-facing unit of an Expression's readable text;
// not produced by this core, referenced for the unique (expression_id,
// text_hash) contract it must honor.
type Paragraph struct {
	ID           int64
	ExpressionID int64
	TextHash     []byte
	Text         string
}

// CrawlJob is an opaque unit of background work with a progress
// broadcast channel.
type CrawlJob struct {
	ID              string
	JobType         string
	Status          CrawlJobStatus
	Parameters      map[string]interface{}
	ResultData      map[string]interface{}
	ErrorMessage    *string
	BroadcastChannel string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// ProgressChannel returns the broadcast channel name by convention.
func (j *CrawlJob) ProgressChannel() string {
	return "crawl_progress_" + j.ID
}

// ProgressEnvelope is the outbound message shape published to a
// CrawlJob's broadcast channel.
type ProgressEnvelope struct {
	TaskID     string  `json:"task_id"`
	LandID     int64   `json:"land_id"`
	JobID      string  `json:"job_id"`
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message"`
	Completed  bool    `json:"completed"`
	Timestamp  int64   `json:"timestamp"`
}
