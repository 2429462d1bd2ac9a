package collect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/ppiankov/veritas/internal/logger"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/similarity"
)

const (
	maxSnippetChars   = 300
	maxDetailChars    = 1000
	relevanceFloor    = 0.3
	defaultPerSource  = 5
	defaultDetailTopN = 3
)

// PageFetcher retrieves pages for the scraper
type PageFetcher interface {
	FetchWithRetry(ctx context.Context, rawURL string) (*Page, error)
}

// ScraperConfig tunes the scraper
type ScraperConfig struct {
	Concurrency         int
	MaxResultsPerSource int
	DetailFetchCount    int
}

// Scraper searches fact-checking sites for a claim
type Scraper struct {
	sources []Source
	fetcher PageFetcher
	cfg     ScraperConfig
	log     logger.Logger
	now     func() time.Time
}

// ScrapeReport summarizes one scrape
type ScrapeReport struct {
	SourcesSearched int
	ResultsFound    int
	DetailsFetched  int
	Failures        map[string]error
}

// NewScraper creates a scraper over the given sources
func NewScraper(sources []Source, fetcher PageFetcher, cfg ScraperConfig, log logger.Logger) *Scraper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = len(sources)
	}
	if cfg.MaxResultsPerSource <= 0 {
		cfg.MaxResultsPerSource = defaultPerSource
	}
	if cfg.DetailFetchCount < 0 {
		cfg.DetailFetchCount = 0
	}
	return &Scraper{
		sources: sources,
		fetcher: fetcher,
		cfg:     cfg,
		log:     logger.OrNop(log).With(logger.Component("scraper")),
		now:     time.Now,
	}
}

// Name identifies the channel in logs and breakdowns
func (s *Scraper) Name() string { return string(model.MethodScrape) }

// Sources returns the configured sources
func (s *Scraper) Sources() []Source { return s.sources }

// Collect implements Channel. It fails only when every source failed.
func (s *Scraper) Collect(ctx context.Context, claim string) ([]model.Evidence, error) {
	evidence, report := s.Search(ctx, claim)
	if len(report.Failures) > 0 && len(report.Failures) == report.SourcesSearched {
		errs := make([]error, 0, len(report.Failures))
		for name, err := range report.Failures {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return nil, errors.Join(errs...)
	}
	return evidence, nil
}

// Search queries every source concurrently. A failing source contributes no results
// and is reported in the ScrapeReport; it never fails the search.
func (s *Scraper) Search(ctx context.Context, claim string) ([]model.Evidence, ScrapeReport) {
	report := ScrapeReport{SourcesSearched: len(s.sources), Failures: map[string]error{}}
	terms := similarity.KeyTerms(claim)
	if len(terms) == 0 || len(s.sources) == 0 {
		return nil, report
	}

	perSource := make([][]model.Evidence, len(s.sources))
	errs := make([]error, len(s.sources))
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, s.cfg.Concurrency)

	for i, src := range s.sources {
		wg.Add(1)
		go func(idx int, src Source) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			defer func() {
				if r := recover(); r != nil {
					errs[idx] = fmt.Errorf("panic: %v", r)
				}
			}()

			perSource[idx], errs[idx] = s.searchSource(ctx, src, claim, terms)
		}(i, src)
	}

	wg.Wait()

	var results []model.Evidence
	for i, src := range s.sources {
		if errs[i] != nil {
			report.Failures[src.Name] = errs[i]
			s.log.Warn("Fact-check source failed", logger.String("source", src.Name), logger.Error(errs[i]))
			continue
		}
		results = append(results, perSource[i]...)
	}
	report.ResultsFound = len(results)

	sort.SliceStable(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })
	report.DetailsFetched = s.enrich(ctx, results)

	s.log.Debug("Scrape finished",
		logger.Int("sources", report.SourcesSearched),
		logger.Int("results", report.ResultsFound),
		logger.Int("details", report.DetailsFetched))
	return results, report
}

func (s *Scraper) searchSource(ctx context.Context, src Source, claim string, terms []string) ([]model.Evidence, error) {
	page, err := s.fetcher.FetchWithRetry(ctx, src.SearchFor(terms))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	base, _ := url.Parse(src.BaseURL)
	now := s.now()

	var out []model.Evidence
	doc.Find(src.Selectors.Articles).EachWithBreak(func(i int, el *goquery.Selection) bool {
		if i >= s.cfg.MaxResultsPerSource {
			return false
		}

		title := collapse(el.Find(src.Selectors.Title).First().Text())
		href, _ := el.Find(src.Selectors.Link).First().Attr("href")
		href = strings.TrimSpace(href)
		if title == "" || href == "" {
			return true
		}

		snippet := truncate(collapse(el.Find(src.Selectors.Snippet).First().Text()), maxSnippetChars)
		rating := ratingText(el, src.Selectors.Rating)

		relevance := similarity.TermSimilarity(claim, title+" "+snippet)
		if relevance <= relevanceFloor {
			return true
		}

		out = append(out, model.Evidence{
			ID:          uuid.NewString(),
			Source:      src.Name,
			URL:         resolveURL(base, href),
			Title:       title,
			Snippet:     snippet,
			Rating:      rating,
			Stance:      stanceFor(ratingVerdict(rating)),
			Relevance:   relevance,
			Method:      model.MethodScrape,
			RetrievedAt: now,
		})
		return true
	})
	return out, nil
}

// enrich fetches the article page of the top results and refines their stance.
// results must be sorted by relevance. Returns the number of pages read.
func (s *Scraper) enrich(ctx context.Context, results []model.Evidence) int {
	n := s.cfg.DetailFetchCount
	if n > len(results) {
		n = len(results)
	}
	if n == 0 {
		return 0
	}

	fetched := make([]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ev := &results[idx]

			page, err := s.fetcher.FetchWithRetry(ctx, ev.URL)
			if err != nil {
				s.log.Debug("Detail fetch failed", logger.String("url", ev.URL), logger.Error(err))
				return
			}
			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
			if err != nil {
				return
			}

			ev.PageVerdict = extractPageVerdict(doc)
			if stance := stanceFor(ev.PageVerdict); stance != model.StanceNeutral {
				ev.Stance = stance
			}
			if ev.Snippet == "" {
				ev.Snippet = truncate(collapse(doc.Find(contentSelectors).First().Text()), maxDetailChars)
			}
			fetched[idx] = true
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range fetched {
		if ok {
			count++
		}
	}
	return count
}

// ratingText reads the rating element's text, falling back to image alt text
func ratingText(el *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	r := el.Find(selector).First()
	if text := collapse(r.Text()); text != "" {
		return text
	}
	alt, _ := r.Attr("alt")
	return collapse(alt)
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil || ref.IsAbs() {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
