// Package answer turns a model fragment stream into a bounded, cleanly
// trimmed answer and formats its citation block.
package answer

import (
	"context"
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github/itish2003/ragqa/config"
	"github/itish2003/ragqa/intents"
	"github/itish2003/ragqa/llm"
	"github/itish2003/ragqa/models"

	"go.uber.org/zap"
)

// Limits are the per-intent answer caps, in runes.
type Limits struct {
	Definition    int
	About         int
	Default       int
	Entertainment int
	// Overflow is how far one fragment may run past the cap so the trim
	// step can find a clean boundary.
	Overflow int
}

// DefaultLimits are used when no configuration is given.
var DefaultLimits = Limits{Definition: 380, About: 700, Default: 1800, Entertainment: 2000, Overflow: 200}

// LimitsFromConfig copies the answer section of the configuration.
func LimitsFromConfig(cfg config.AnswerConfig) Limits {
	return Limits{
		Definition:    cfg.DefinitionChars,
		About:         cfg.AboutChars,
		Default:       cfg.DefaultChars,
		Entertainment: cfg.EntertainmentChars,
		Overflow:      cfg.OverflowChars,
	}
}

// For returns the cap for a classified question. Compound questions get
// the default cap even when they start like a definition.
func (l Limits) For(cls intents.Classification) int {
	switch {
	case cls.Intent == intents.Definition && !cls.Compound:
		return l.Definition
	case cls.Intent == intents.About:
		return l.About
	}
	return l.Default
}

// Streamer accumulates model fragments into a finished answer.
type Streamer struct {
	overflow int
	// Join concatenates a cleaned fragment onto the accumulated text.
	Join   func(acc, fragment string) string
	logger *zap.Logger
}

func NewStreamer(overflow int, logger *zap.Logger) *Streamer {
	if overflow < 0 {
		overflow = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Streamer{overflow: overflow, Join: Stitch, logger: logger.Named("answer")}
}

// Stream consumes s until it ends or limit is reached, then trims and
// tidies the text. It always closes s. A stream that fails before yielding
// any text produces the apology; a later failure keeps the partial answer.
// The returned error only reports what went wrong for logging.
func (st *Streamer) Stream(ctx context.Context, s llm.Stream, limit int, apology string) (string, error) {
	defer s.Close()

	var (
		acc      string
		total    int
		fragment int
		failure  error
	)
	for total < limit {
		if err := ctx.Err(); err != nil {
			failure = err
			break
		}
		raw, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			failure = err
			break
		}
		fragment++

		text := Clean(raw)
		if strings.TrimSpace(text) == "" && acc == "" {
			continue
		}
		room := limit - total + st.overflow
		if r := []rune(text); len(r) > room {
			text = string(r[:room])
		}
		acc = st.Join(acc, text)
		total = utf8.RuneCountInString(acc)
	}

	if failure != nil {
		st.logger.Warn("generation stream failed",
			zap.Int("fragments", fragment),
			zap.Int("chars", total),
			zap.Error(failure),
		)
	}
	if strings.TrimSpace(acc) == "" {
		if failure != nil {
			return apology, failure
		}
		return "", nil
	}
	return Finalize(acc, limit), failure
}

// Finalize trims to limit on a clean boundary, tidies, and makes sure the
// answer ends in sentence punctuation.
func Finalize(text string, limit int) string {
	t := Trim(strings.TrimSpace(text), limit)
	t = Tidy(t)
	return EnsureTerminal(t, limit)
}

// FormatSources renders "name (p. 1, 3), other" for the selected sources.
// Pages are de-duplicated and sorted numerically.
func FormatSources(sources []string, pages map[string][]string) string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		name := models.DisplayName(s)
		ps := pages[s]
		if len(ps) == 0 {
			ps = pages[name]
		}
		if labels := sortPages(ps); len(labels) > 0 {
			name += " (p. " + strings.Join(labels, ", ") + ")"
		}
		out = append(out, name)
	}
	return strings.Join(out, ", ")
}

func sortPages(pages []string) []string {
	seen := make(map[string]bool, len(pages))
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b string) int {
		na, errA := strconv.Atoi(a)
		nb, errB := strconv.Atoi(b)
		switch {
		case errA == nil && errB == nil:
			return na - nb
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		}
		return strings.Compare(a, b)
	})
	return out
}

// SourcesBlock is the citation suffix appended to an answer, or "" when
// there are no sources.
func SourcesBlock(sources []string, pages map[string][]string) string {
	if len(sources) == 0 {
		return ""
	}
	return "\n\nSources: " + FormatSources(sources, pages)
}
