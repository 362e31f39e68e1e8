// Package retrieval turns a question into a ranked, source-grouped evidence
// block drawn from both vector collections.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github/itish2003/ragqa/embedding"
	"github/itish2003/ragqa/intents"
	"github/itish2003/ragqa/models"
	"github/itish2003/ragqa/vectorstore"

	"go.uber.org/zap"
)

var (
	// ErrNoEvidence means neither collection returned a usable hit.
	ErrNoEvidence = errors.New("no relevant information found")
	// ErrAmbiguousName means the question is a lone common surname.
	ErrAmbiguousName = errors.New("name is ambiguous without a first name")
)

const (
	boostExact   = 0.25
	boostAll     = 0.15
	boostOrdered = 0.20
	orderWindow  = 5
)

var (
	webPhraseRe = regexp.MustCompile(`\b(website|web\s?site|web\s?page|webpage|link|url|online|article|blog)s?\b`)
	docPhraseRe = regexp.MustCompile(`\b(document|pdf|file|upload(ed)?|report|paper|csv)s?\b`)
	wordRe      = regexp.MustCompile(`[\p{L}\p{N}']+`)
)

// Result is the evidence for one question.
type Result struct {
	Hits []models.RetrievalHit
	// Sources are the selected source identifiers, best first.
	Sources []string
	// Pages holds the page labels recorded on each selected source's hits.
	Pages   map[string][]string
	Context string
	Name    intents.NamePhrase
}

// NameQuery reports whether the result was narrowed to a person name.
func (r *Result) NameQuery() bool { return r != nil && !r.Name.Empty() }

// Options tunes retrieval.
type Options struct {
	// TopK is the per-collection neighbour count.
	TopK int
	// MaxSources caps the sources of a non-name query.
	MaxSources int
}

// Retriever queries both collections and assembles the context window.
type Retriever struct {
	embedder embedding.Embedder
	store    vectorstore.Store
	opts     Options
	logger   *zap.Logger
}

func NewRetriever(embedder embedding.Embedder, store vectorstore.Store, opts Options, logger *zap.Logger) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = 20
	}
	if opts.MaxSources <= 0 {
		opts.MaxSources = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, opts: opts, logger: logger.Named("retriever")}
}

// Retrieve embeds the question, searches, re-ranks and selects sources.
// A lone common surname returns ErrAmbiguousName before anything is
// embedded; an empty hit list returns ErrNoEvidence.
func (r *Retriever) Retrieve(ctx context.Context, question string, cls intents.Classification) (*Result, error) {
	res := &Result{}
	if cls.Intent == intents.QA && !cls.Compound {
		res.Name = intents.ExtractNamePhrase(question)
		if res.Name.Ambiguous() {
			return res, ErrAmbiguousName
		}
	}

	// 1. Embed; failures degrade to a zero vector
	vec := embedding.EmbedOrZero(ctx, r.embedder, question, r.logger)

	// 2. Search both collections and merge
	hits := r.search(ctx, vec)
	if len(hits) == 0 {
		return res, ErrNoEvidence
	}

	// 3. Restrict to web hits when the question asks about web pages
	if !cls.Compound {
		hits = routeByPhrase(question, hits)
	}

	// 4. Boost and filter on the name phrase
	if res.NameQuery() {
		hits = boostName(hits, res.Name)
		hits = filterName(hits, res.Name)
	}

	// 5. Pick sources and build the context
	target := r.opts.MaxSources
	if res.NameQuery() {
		target = 1
	}
	res.Hits = hits
	res.Sources = selectSources(hits, target)
	res.Pages = pagesBySource(hits, res.Sources)
	res.Context = assembleContext(hits, res.Sources)

	r.logger.Debug("retrieved",
		zap.Int("hits", len(hits)),
		zap.Strings("sources", res.Sources),
		zap.String("name", res.Name.Phrase),
	)
	return res, nil
}

func (r *Retriever) search(ctx context.Context, vec []float32) []models.RetrievalHit {
	if embedding.IsZero(vec) {
		return nil
	}
	var merged []models.RetrievalHit
	for _, coll := range []vectorstore.Collection{vectorstore.Docs, vectorstore.Web} {
		hits, err := r.store.Search(ctx, coll, vec, r.opts.TopK)
		if err != nil {
			r.logger.Warn("search failed", zap.String("collection", string(coll)), zap.Error(err))
			continue
		}
		for i := range hits {
			if hits[i].SourceType == "" && coll == vectorstore.Web {
				hits[i].SourceType = models.SourceWeb
			}
		}
		merged = append(merged, hits...)
	}
	sortByScore(merged)
	return merged
}

func sortByScore(hits []models.RetrievalHit) {
	slices.SortStableFunc(hits, func(a, b models.RetrievalHit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
}

// routeByPhrase keeps only web hits for questions that mention web pages
// and not documents. An empty restriction falls back to every hit.
func routeByPhrase(question string, hits []models.RetrievalHit) []models.RetrievalHit {
	q := strings.ToLower(question)
	if !webPhraseRe.MatchString(q) || docPhraseRe.MatchString(q) {
		return hits
	}
	web := make([]models.RetrievalHit, 0, len(hits))
	for _, h := range hits {
		if isWeb(h) {
			web = append(web, h)
		}
	}
	if len(web) == 0 {
		return hits
	}
	return web
}

func isWeb(h models.RetrievalHit) bool {
	return h.SourceType == models.SourceWeb || looksLikeURL(h.Source)
}

func looksLikeURL(s string) bool {
	s = strings.ToLower(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func words(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// boostName raises hits that mention the name and re-sorts them.
func boostName(hits []models.RetrievalHit, name intents.NamePhrase) []models.RetrievalHit {
	out := slices.Clone(hits)
	for i := range out {
		ws := words(out[i].Text)
		if strings.Contains(" "+strings.Join(ws, " ")+" ", " "+name.Phrase+" ") {
			out[i].Score += boostExact
		}
		if overlap(ws, name.Tokens) == len(name.Tokens) {
			out[i].Score += boostAll
		}
		if inOrderWithin(ws, name.Tokens, orderWindow) {
			out[i].Score += boostOrdered
		}
	}
	sortByScore(out)
	return out
}

// filterName keeps hits containing every name token, or failing that the
// hits with the highest non-zero token overlap.
func filterName(hits []models.RetrievalHit, name intents.NamePhrase) []models.RetrievalHit {
	counts := make([]int, len(hits))
	best := 0
	for i, h := range hits {
		counts[i] = overlap(words(h.Text), name.Tokens)
		best = max(best, counts[i])
	}
	if best == 0 {
		return hits
	}
	out := make([]models.RetrievalHit, 0, len(hits))
	for i, h := range hits {
		if counts[i] == best {
			out = append(out, h)
		}
	}
	return out
}

// overlap counts how many distinct tokens occur in ws.
func overlap(ws, tokens []string) int {
	set := make(map[string]bool, len(ws))
	for _, w := range ws {
		set[w] = true
	}
	n := 0
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if set[t] && !seen[t] {
			n++
		}
		seen[t] = true
	}
	return n
}

// inOrderWithin reports whether tokens appear in order inside a span of at
// most window words.
func inOrderWithin(ws, tokens []string, window int) bool {
	if len(tokens) == 0 || len(tokens) > window {
		return false
	}
	for start, w := range ws {
		if w != tokens[0] {
			continue
		}
		next := 1
		for j := start + 1; j < len(ws) && j < start+window && next < len(tokens); j++ {
			if ws[j] == tokens[next] {
				next++
			}
		}
		if next == len(tokens) {
			return true
		}
	}
	return false
}

// SourceKey identifies the source a hit belongs to.
func SourceKey(h models.RetrievalHit) string {
	switch {
	case h.Source != "":
		return h.Source
	case h.Filename != "":
		return h.Filename
	}
	return "Document"
}

type sourceGroup struct {
	key   string
	score float64
	web   bool
}

// groupSources sums hit scores per source, in first-seen order.
func groupSources(hits []models.RetrievalHit) []*sourceGroup {
	index := make(map[string]*sourceGroup)
	var groups []*sourceGroup
	for _, h := range hits {
		key := SourceKey(h)
		g, ok := index[key]
		if !ok {
			g = &sourceGroup{key: key}
			index[key] = g
			groups = append(groups, g)
		}
		g.score += h.Score
		g.web = g.web || isWeb(h)
	}
	slices.SortStableFunc(groups, func(a, b *sourceGroup) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})
	return groups
}

// selectSources returns up to target sources by aggregate score. With room
// for two or more it first reserves the best web and best document source.
func selectSources(hits []models.RetrievalHit, target int) []string {
	groups := groupSources(hits)
	if len(groups) == 0 || target <= 0 {
		return nil
	}

	picked := make(map[string]bool, target)
	if target >= 2 {
		var topWeb, topDoc *sourceGroup
		for _, g := range groups {
			if g.web && topWeb == nil {
				topWeb = g
			}
			if !g.web && topDoc == nil {
				topDoc = g
			}
		}
		if topWeb != nil && topDoc != nil {
			picked[topWeb.key] = true
			picked[topDoc.key] = true
		}
	}
	for _, g := range groups {
		if len(picked) >= target {
			break
		}
		picked[g.key] = true
	}

	out := make([]string, 0, len(picked))
	for _, g := range groups {
		if picked[g.key] {
			out = append(out, g.key)
		}
	}
	return out
}

func pagesBySource(hits []models.RetrievalHit, sources []string) map[string][]string {
	want := make(map[string]bool, len(sources))
	for _, s := range sources {
		want[s] = true
	}
	pages := make(map[string][]string)
	for _, h := range hits {
		key := SourceKey(h)
		if p := h.PageLabel(); p != "" && want[key] {
			pages[key] = append(pages[key], p)
		}
	}
	return pages
}

// assembleContext writes each selected source's hit texts, in hit order,
// under a "--- name ---" heading.
func assembleContext(hits []models.RetrievalHit, sources []string) string {
	texts := make(map[string][]string, len(sources))
	for _, h := range hits {
		key := SourceKey(h)
		texts[key] = append(texts[key], h.Text)
	}
	blocks := make([]string, 0, len(sources))
	for _, s := range sources {
		blocks = append(blocks, fmt.Sprintf("--- %s ---\n%s", models.DisplayName(s), strings.Join(texts[s], "\n\n")))
	}
	return strings.Join(blocks, "\n\n")
}
