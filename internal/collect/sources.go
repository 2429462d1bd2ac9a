package collect

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source is a fact-checking site searched by the scraper
type Source struct {
	Name      string    `yaml:"name"`
	BaseURL   string    `yaml:"base_url"`
	SearchURL string    `yaml:"search_url"` // {query} is replaced by the escaped search terms
	Selectors Selectors `yaml:"selectors"`
}

// Selectors are the CSS selectors used to read one search results page
type Selectors struct {
	Articles string `yaml:"articles"`
	Title    string `yaml:"title"`
	Link     string `yaml:"link"`
	Snippet  string `yaml:"snippet"`
	Rating   string `yaml:"rating"`
}

// SearchFor returns the search URL for the given terms
func (s Source) SearchFor(terms []string) string {
	return strings.ReplaceAll(s.SearchURL, "{query}", url.QueryEscape(strings.Join(terms, " ")))
}

// DefaultSources returns the built-in fact-checking sites
func DefaultSources() []Source {
	return []Source{
		{
			Name:      "Snopes",
			BaseURL:   "https://www.snopes.com",
			SearchURL: "https://www.snopes.com/search/?q={query}",
			Selectors: Selectors{
				Articles: ".search-result-wrapper",
				Title:    ".search-result-title a",
				Link:     ".search-result-title a",
				Snippet:  ".search-result-content",
				Rating:   ".rating_title_wrap",
			},
		},
		{
			Name:      "PolitiFact",
			BaseURL:   "https://www.politifact.com",
			SearchURL: "https://www.politifact.com/search/?q={query}",
			Selectors: Selectors{
				Articles: ".m-statement",
				Title:    ".m-statement__quote a",
				Link:     ".m-statement__quote a",
				Snippet:  ".m-statement__body",
				Rating:   ".m-statement__meter img",
			},
		},
		{
			Name:      "FactCheck.org",
			BaseURL:   "https://www.factcheck.org",
			SearchURL: "https://www.factcheck.org/search/?q={query}",
			Selectors: Selectors{
				Articles: ".post-item",
				Title:    ".entry-title a",
				Link:     ".entry-title a",
				Snippet:  ".entry-summary",
				Rating:   ".verdict",
			},
		},
		{
			Name:      "AFP Fact Check",
			BaseURL:   "https://factcheck.afp.com",
			SearchURL: "https://factcheck.afp.com/search?q={query}",
			Selectors: Selectors{
				Articles: ".search-result, .article-item, .post-item",
				Title:    "h2 a, .article-title a, .entry-title a",
				Link:     "h2 a, .article-title a, .entry-title a",
				Snippet:  ".excerpt, .article-excerpt, .entry-summary, p",
				Rating:   ".verdict, .verdict-label, .rating",
			},
		},
		{
			Name:      "Alt News",
			BaseURL:   "https://www.altnews.in",
			SearchURL: "https://www.altnews.in/search/?q={query}",
			Selectors: Selectors{
				Articles: ".post-item",
				Title:    ".entry-title a",
				Link:     ".entry-title a",
				Snippet:  ".entry-excerpt",
				Rating:   ".post-category",
			},
		},
		{
			Name:      "Boom Live",
			BaseURL:   "https://www.boomlive.in",
			SearchURL: "https://www.boomlive.in/search/?q={query}",
			Selectors: Selectors{
				Articles: ".story-card",
				Title:    ".story-headline a",
				Link:     ".story-headline a",
				Snippet:  ".story-summary",
				Rating:   ".story-tag",
			},
		},
	}
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources reads a YAML source list. Sources missing a name, search URL or
// article/title selectors are rejected.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	for i, s := range f.Sources {
		if s.Name == "" || s.SearchURL == "" || s.Selectors.Articles == "" || s.Selectors.Title == "" {
			return nil, fmt.Errorf("source %d (%q): name, search_url, selectors.articles and selectors.title are required", i, s.Name)
		}
		if s.Selectors.Link == "" {
			f.Sources[i].Selectors.Link = s.Selectors.Title
		}
		if s.BaseURL == "" {
			if u, err := url.Parse(s.SearchURL); err == nil {
				f.Sources[i].BaseURL = u.Scheme + "://" + u.Host
			}
		}
	}
	return f.Sources, nil
}
