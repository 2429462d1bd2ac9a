package collect

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/veritas/internal/logger"
	"github.com/ppiankov/veritas/internal/model"
)

// Collection is the merged output of all channels
type Collection struct {
	Evidence  []model.Evidence
	Breakdown map[model.CollectionMethod]int
	Failures  map[string]error
	Elapsed   time.Duration
}

// Sources returns the distinct evidence sources in order of first appearance
func (c *Collection) Sources() []string {
	seen := map[string]bool{}
	var out []string
	for _, ev := range c.Evidence {
		if ev.Source != "" && !seen[ev.Source] {
			seen[ev.Source] = true
			out = append(out, ev.Source)
		}
	}
	return out
}

// Collector fans a claim out to every channel and merges the results
type Collector struct {
	channels   []Channel
	maxResults int
	log        logger.Logger
}

// NewCollector creates a collector. Nil channels are ignored.
func NewCollector(maxResults int, log logger.Logger, channels ...Channel) *Collector {
	if maxResults <= 0 {
		maxResults = 5
	}
	var live []Channel
	for _, ch := range channels {
		if ch != nil {
			live = append(live, ch)
		}
	}
	return &Collector{
		channels:   live,
		maxResults: maxResults,
		log:        logger.OrNop(log).With(logger.Component("collector")),
	}
}

// Collect runs every channel concurrently. A failing channel is logged and
// contributes nothing; Collect itself only fails on a cancelled context.
func (c *Collector) Collect(ctx context.Context, claim string) (*Collection, error) {
	start := time.Now()

	results := make([][]model.Evidence, len(c.channels))
	errs := make([]error, len(c.channels))
	var wg sync.WaitGroup

	for i, ch := range c.channels {
		wg.Add(1)
		go func(idx int, ch Channel) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[idx] = fmt.Errorf("panic: %v", r)
				}
			}()
			results[idx], errs[idx] = ch.Collect(ctx, claim)
		}(i, ch)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Collection{
		Breakdown: map[model.CollectionMethod]int{},
		Failures:  map[string]error{},
	}

	var merged []model.Evidence
	for i, ch := range c.channels {
		if errs[i] != nil {
			out.Failures[ch.Name()] = errs[i]
			c.log.Warn("Evidence channel failed", logger.String("channel", ch.Name()), logger.Error(errs[i]))
			continue
		}
		merged = append(merged, results[i]...)
	}

	merged = dedupe(merged)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Relevance > merged[j].Relevance })
	if len(merged) > c.maxResults {
		merged = merged[:c.maxResults]
	}

	for _, ev := range merged {
		out.Breakdown[ev.Method]++
	}
	out.Evidence = merged
	out.Elapsed = time.Since(start)

	c.log.Debug("Evidence collected",
		logger.Int("evidence", len(merged)),
		logger.Int("failed_channels", len(out.Failures)),
		logger.Duration("elapsed", out.Elapsed))
	return out, nil
}

// dedupe keeps the most relevant item per URL (or per snippet when there is no URL)
func dedupe(items []model.Evidence) []model.Evidence {
	index := map[string]int{}
	var out []model.Evidence
	for _, ev := range items {
		key := ev.URL
		if key == "" {
			key = "snippet:" + ev.Snippet
		}
		if i, ok := index[key]; ok {
			if ev.Relevance > out[i].Relevance {
				out[i] = ev
			}
			continue
		}
		index[key] = len(out)
		out = append(out, ev)
	}
	return out
}
