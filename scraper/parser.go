// backend/scraper/parser.go
package scraper

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tajaa/matcha-recruit-sub002/models"
)

// DefaultUserAgent identifies refresh traffic to feed operators.
const DefaultUserAgent = "Tier1ComplianceBot/1.0 (structured compliance source refresh; HR compliance platform)"

// Feed is everything a parser needs to know about one source.
type Feed struct {
	SourceKey     string
	URL           string
	Category      string
	CoverageScope models.CoverageScope
	Config        models.ParserConfig
}

// FeedFromSource builds a Feed from a persisted source and its decoded parser config.
func FeedFromSource(src *models.Source, cfg models.ParserConfig) Feed {
	return Feed{
		SourceKey:     src.SourceKey,
		URL:           src.SourceURL,
		Category:      src.PrimaryCategory(),
		CoverageScope: src.CoverageScope,
		Config:        cfg,
	}
}

// Parser fetches a feed and normalizes it. Implementations never fail: recoverable fetch and
// parse problems are logged and yield an empty slice, which callers read as "nothing available".
type Parser interface {
	FetchAndParse(ctx context.Context, feed Feed) []models.ParsedRequirement
}

// parserBase holds settings shared by both parsers.
type parserBase struct {
	logger  *log.Logger
	client  *http.Client
	timeout time.Duration
	now     func() time.Time
}

// ParserOption configures a parser.
type ParserOption func(*parserBase)

// WithParserLogger sets the parser logger.
func WithParserLogger(logger *log.Logger) ParserOption {
	return func(p *parserBase) { p.logger = logger }
}

// WithParserHTTPClient sets the client used for plain (non-retrying) downloads.
func WithParserHTTPClient(client *http.Client) ParserOption {
	return func(p *parserBase) { p.client = client }
}

// WithParserTimeout bounds each request made by the parser.
func WithParserTimeout(timeout time.Duration) ParserOption {
	return func(p *parserBase) { p.timeout = timeout }
}

// WithClock sets the time source used by the sanity checks.
func WithClock(now func() time.Time) ParserOption {
	return func(p *parserBase) { p.now = now }
}

func newParserBase(opts []ParserOption) parserBase {
	base := parserBase{
		logger:  log.Default(),
		client:  &http.Client{},
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

// accept runs the sanity check and logs rejections. Returns false when the row must be skipped.
func (p *parserBase) accept(feed Feed, req *models.ParsedRequirement) bool {
	if err := ValidateRequirement(req, p.now()); err != nil {
		p.logger.Warn("Rejecting row that failed sanity check",
			"source", feed.SourceKey, "jurisdiction", req.JurisdictionName, "reason", err)
		return false
	}
	return true
}

// NewParsers assembles the parser set used by the orchestration service, keyed by format.
func NewParsers(fetcher DocumentFetcher, extractor TableExtractor, opts ...ParserOption) map[models.Format]Parser {
	return map[models.Format]Parser{
		models.FormatDelimited: NewDelimitedParser(opts...),
		models.FormatHTMLTable: NewHTMLTableParser(fetcher, extractor, opts...),
	}
}
