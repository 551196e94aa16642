// Package search provides a small, deterministic, concurrency-safe in-memory
// index over locally imported games. It backs catalog search when the
// external catalog is unreachable.
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options (Option pattern)
//   - Accent- and case-insensitive tokenization with optional stop words
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring blends Jaccard similarity between the query token set and the
// title tokens with the similarity against title plus description:
// score = w·J(Q, title) + (1-w)·J(Q, title ∪ text).
package search

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tbourn/go-game-watchlist/internal/utils"
)

// Doc is one indexed game.
type Doc struct {
	ID    uint
	Title string
	Text  string
}

// Result is a ranked document with its similarity score.
type Result struct {
	ID    uint
	Title string
	Score float64
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords   map[string]struct{}
	titleWeight float64
	maxDocs     int
}

func defaultConfig() config {
	return config{
		stopwords:   nil,
		titleWeight: 0.7,
		maxDocs:     0,
	}
}

// WithStopwords drops the given words from documents and queries.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = utils.Fold(w)
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithTitleWeight sets the share of the score taken by the title match.
// Values outside [0,1] are ignored.
func WithTitleWeight(w float64) Option {
	return func(c *config) {
		if w >= 0 && w <= 1 {
			c.titleWeight = w
		}
	}
}

// WithMaxDocs caps how many documents the index keeps.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	Doc
	title map[string]struct{}
	all   map[string]struct{}
}

// Memory is an Index that can grow after construction. Reads and writes may
// run concurrently.
type Memory struct {
	cfg config

	mu   sync.RWMutex
	docs []doc
	pos  map[uint]int
}

// NewIndex builds a Memory index from docs.
func NewIndex(docs []Doc, opts ...Option) *Memory {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	m := &Memory{cfg: cfg, pos: make(map[uint]int, len(docs))}
	for _, d := range docs {
		m.Add(d)
	}
	return m
}

// Add indexes d, replacing any document with the same ID. Documents without
// any token are ignored, as are new documents once the cap is reached.
func (m *Memory) Add(d Doc) {
	d.Title = strings.TrimSpace(normalizeWhitespace(d.Title))
	d.Text = strings.TrimSpace(normalizeWhitespace(d.Text))
	title := tokenize(d.Title, m.cfg.stopwords)
	all := tokenize(d.Title+" "+d.Text, m.cfg.stopwords)
	if len(all) == 0 {
		return
	}
	entry := doc{Doc: d, title: title, all: all}

	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.pos[d.ID]; ok {
		m.docs[i] = entry
		return
	}
	if m.cfg.maxDocs > 0 && len(m.docs) >= m.cfg.maxDocs {
		return
	}
	m.pos[d.ID] = len(m.docs)
	m.docs = append(m.docs, entry)
}

// Len returns the number of indexed documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// TopK returns up to k best-matching documents. A non-positive k means 10.
func (m *Memory) TopK(q string, k int) []Result {
	if strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 10
	}
	qTokens := tokenize(q, m.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	type scored struct {
		res      Result
		lenRunes int
	}

	m.mu.RLock()
	buf := make([]scored, 0, min(k*4, len(m.docs)))
	for _, d := range m.docs {
		score := m.cfg.titleWeight*jaccard(qTokens, d.title) + (1-m.cfg.titleWeight)*jaccard(qTokens, d.all)
		if score <= 0 {
			continue
		}
		buf = append(buf, scored{
			res:      Result{ID: d.ID, Title: d.Title, Score: score},
			lenRunes: utf8.RuneCountInString(d.Title),
		})
	}
	m.mu.RUnlock()
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].res.Score != buf[b].res.Score {
			return buf[a].res.Score > buf[b].res.Score
		}
		if buf[a].lenRunes != buf[b].lenRunes {
			return buf[a].lenRunes < buf[b].lenRunes
		}
		return buf[a].res.ID < buf[b].res.ID
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for i := 0; i < k; i++ {
		out[i] = buf[i].res
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(utils.Fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func jaccard(q, d map[string]struct{}) float64 {
	over := overlap(q, d)
	if over == 0 {
		return 0
	}
	union := float64(len(q) + len(d) - over)
	if union <= 0 {
		return 0
	}
	return float64(over) / union
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
