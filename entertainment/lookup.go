// Package entertainment answers movie and series questions from OMDb, with
// cast and roles from TMDb, before the document pipeline is consulted.
package entertainment

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github/itish2003/ragqa/config"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Lookup answers entertainment questions within a soft time budget.
// It is safe for concurrent use.
type Lookup struct {
	omdb   *omdbClient
	tmdb   *tmdbClient
	budget time.Duration
	logger *zap.Logger

	movies    *lru.Cache[string, *movie]
	castByID  *lru.Cache[string, []castMember]
	castTitle *lru.Cache[string, []castMember]
	// lastTitle remembers each session's most recent title for follow-ups.
	lastTitle *lru.Cache[string, string]
}

// Options overrides the API endpoints, used by tests.
type Options struct {
	OMDbURL string
	TMDbURL string
}

func New(cfg config.EntertainmentConfig, httpClient *http.Client, opts Options, logger *zap.Logger) (*Lookup, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.OMDbURL == "" {
		opts.OMDbURL = defaultOMDbURL
	}
	if opts.TMDbURL == "" {
		opts.TMDbURL = defaultTMDbURL
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 64
	}
	budget := cfg.Budget
	if budget <= 0 {
		budget = 8 * time.Second
	}

	movies, err := lru.New[string, *movie](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create title cache: %w", err)
	}
	castByID, err := lru.New[string, []castMember](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cast cache: %w", err)
	}
	castTitle, err := lru.New[string, []castMember](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cast cache: %w", err)
	}
	lastTitle, err := lru.New[string, string](1024)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	return &Lookup{
		omdb:      &omdbClient{http: httpClient, baseURL: opts.OMDbURL, apiKey: cfg.OMDbAPIKey.Value()},
		tmdb:      &tmdbClient{http: httpClient, baseURL: opts.TMDbURL, apiKey: cfg.TMDbAPIKey.Value()},
		budget:    budget,
		logger:    logger.Named("entertainment"),
		movies:    movies,
		castByID:  castByID,
		castTitle: castTitle,
		lastTitle: lastTitle,
	}, nil
}

// asks records which details a question wants.
type asks struct {
	cast, genre, ratings, director, plot, runtime, box bool
	topBilled                                           bool
}

var (
	castRe      = regexp.MustCompile(`\bcast\b|\bactors?\b|\bstarring\b|\bhero(?:ine)?\b`)
	genreRe     = regexp.MustCompile(`\bgenre\b`)
	ratingsRe   = regexp.MustCompile(`\brating|\bimdb\b|\brotten\b`)
	directorRe  = regexp.MustCompile(`\bdirect(?:ed|or)\b`)
	plotRe      = regexp.MustCompile(`\b(?:plot|story|synopsis)\b`)
	runtimeRe   = regexp.MustCompile(`\b(?:runtime|duration|how long)\b`)
	boxRe       = regexp.MustCompile(`\b(?:box office|gross)\b`)
	topBilledRe = regexp.MustCompile(`\b(?:top\s+billed|top\s+cast\s+only)\b`)
	mediaRe     = regexp.MustCompile(`\b(?:movie|film|series|tv show|sitcom)s?\b`)
)

func parseAsks(q string) asks {
	ql := strings.ToLower(q)
	return asks{
		cast:      castRe.MatchString(ql),
		genre:     genreRe.MatchString(ql),
		ratings:   ratingsRe.MatchString(ql),
		director:  directorRe.MatchString(ql),
		plot:      plotRe.MatchString(ql),
		runtime:   runtimeRe.MatchString(ql),
		box:       boxRe.MatchString(ql),
		topBilled: topBilledRe.MatchString(ql),
	}
}

func (a asks) count() int {
	n := 0
	for _, b := range []bool{a.cast, a.genre, a.ratings, a.director, a.plot, a.runtime, a.box} {
		if b {
			n++
		}
	}
	return n
}

func (a asks) specific() bool { return a.count() > 0 }

// IsEntertainmentQuestion reports whether q names a film or asks for a
// detail only films have. Document questions never reach OMDb without one.
func IsEntertainmentQuestion(q string) bool {
	ql := strings.ToLower(q)
	return mediaRe.MatchString(ql) || parseAsks(ql).specific()
}

var (
	followUpRe   = regexp.MustCompile(`(?i)\b(?:it|this\s+(?:movie|film)|the\s+(?:movie|film))\b`)
	quotedRe     = regexp.MustCompile(`"([^"]+)"`)
	titleAfterRe = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:cast|genre|rating|ratings|director|hero|heroine|actors?|actress|plot|story|synopsis|summary|runtime|duration|box\s+office|gross)\s+(?:of|for|in)\s+(.+)$`),
		regexp.MustCompile(`(?i)who\s+(?:directed|stars?\s+in)\s+(.+)$`),
	}
	capitalizedRe = regexp.MustCompile(`[A-Z][A-Za-z0-9'&:\-]+(?:\s+[A-Z][A-Za-z0-9'&:\-]+)*`)
	aboutRe       = regexp.MustCompile(`(?i)about\s+(.+)$`)
)

// ExtractTitle finds the title a question is about. Pronoun follow-ups
// resolve to last when one is known.
func ExtractTitle(q, last string) string {
	q = strings.TrimSpace(q)
	if last != "" && followUpRe.MatchString(q) {
		return last
	}
	if m := quotedRe.FindStringSubmatch(q); m != nil {
		return strings.TrimSpace(m[1])
	}
	for _, re := range titleAfterRe {
		if m := re.FindStringSubmatch(q); m != nil {
			return strings.TrimRight(strings.TrimSpace(m[1]), "?.! ")
		}
	}
	if all := capitalizedRe.FindAllString(q, -1); len(all) > 0 {
		t := strings.TrimSpace(all[len(all)-1])
		// A lone leading question word is not a title.
		if !strings.Contains(t, " ") && strings.HasPrefix(q, t) {
			t = ""
		}
		if t != "" {
			return t
		}
	}
	if m := aboutRe.FindStringSubmatch(q); m != nil {
		return strings.TrimRight(strings.TrimSpace(m[1]), "?.! ")
	}
	return ""
}

// Answer returns a reply for an entertainment question, or false when the
// question should fall through to document QA: no title, no match, no API
// key, or the budget ran out.
func (l *Lookup) Answer(ctx context.Context, sessionID, question string) (string, bool) {
	if l == nil || l.omdb.apiKey == "" {
		return "", false
	}
	last, _ := l.lastTitle.Get(sessionID)
	if !IsEntertainmentQuestion(question) && !(last != "" && followUpRe.MatchString(question)) {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, l.budget)
	defer cancel()

	a := parseAsks(question)
	title := ExtractTitle(question, last)
	if title == "" && last != "" && a.specific() {
		title = last
	}
	if title == "" {
		return "", false
	}

	m, err := l.fetchMovie(ctx, title, false)
	if err != nil || m == nil {
		if err != nil {
			l.logger.Warn("title lookup failed", zap.String("title", title), zap.Error(err))
		}
		return "", false
	}
	if a.plot && (na(m.Plot) == "" || len(m.Plot) < 150) {
		if full, err := l.fetchMovie(ctx, title, true); err == nil && full != nil {
			m = full
		}
	}
	name := na(m.Title)
	if name == "" {
		name = title
	}
	l.lastTitle.Add(sessionID, name)

	cast := l.cast(ctx, m, name)
	text := compose(m, name, cast, a)
	if text == "" {
		return "", false
	}
	return text, true
}

func (l *Lookup) fetchMovie(ctx context.Context, title string, fullPlot bool) (*movie, error) {
	key := fmt.Sprintf("%s|full=%t", strings.ToLower(strings.TrimSpace(title)), fullPlot)
	if m, ok := l.movies.Get(key); ok {
		return m, nil
	}
	m, err := l.omdb.fetch(ctx, title, fullPlot)
	if err != nil || m == nil {
		return nil, err
	}
	l.movies.Add(key, m)
	return m, nil
}

// cast prefers TMDb roles found by IMDb id, then by title. Either step is
// skipped once the budget has expired.
func (l *Lookup) cast(ctx context.Context, m *movie, title string) []castMember {
	if strings.HasPrefix(m.IMDbID, "tt") {
		if c, ok := l.castByID.Get(m.IMDbID); ok {
			return c
		}
		if ctx.Err() == nil {
			c, err := l.tmdb.creditsByIMDb(ctx, m.IMDbID)
			if err != nil {
				l.logger.Debug("tmdb lookup by imdb id failed", zap.Error(err))
			} else {
				l.castByID.Add(m.IMDbID, c)
			}
			if len(c) > 0 {
				return c
			}
		}
	}
	key := strings.ToLower(title) + "|" + na(m.Year)
	if c, ok := l.castTitle.Get(key); ok {
		return c
	}
	if ctx.Err() != nil {
		return nil
	}
	c, err := l.tmdb.creditsByTitle(ctx, title, na(m.Year))
	if err != nil {
		l.logger.Debug("tmdb lookup by title failed", zap.Error(err))
		return nil
	}
	l.castTitle.Add(key, c)
	return c
}

// na maps OMDb's "N/A" placeholder to "".
func na(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "n/a") {
		return ""
	}
	return strings.TrimSpace(s)
}

func withRoles(cast []castMember, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range cast {
		k := strings.ToLower(c.Name)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c.Name+" as "+c.Character)
		if len(out) == limit {
			break
		}
	}
	return out
}

func actorNames(actors string, limit int) []string {
	var out []string
	for _, a := range strings.Split(actors, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

// compose renders the reply. A cast-only question gets a bulleted list;
// anything else gets a short paragraph with the details asked for.
func compose(m *movie, title string, cast []castMember, a asks) string {
	year := na(m.Year)
	genre, director := na(m.Genre), na(m.Director)
	plot := na(m.Plot)
	noSpecific := !a.specific()

	if a.cast && a.count() == 1 {
		limit := 10
		if a.topBilled {
			limit = 5
		}
		items := withRoles(cast, limit)
		if len(items) == 0 {
			items = actorNames(na(m.Actors), limit)
		}
		if len(items) == 0 {
			return ""
		}
		header := "Cast of " + title
		if year != "" {
			header += " (" + year + ")"
		}
		return header + ":\n- " + strings.Join(items, "\n- ")
	}

	intro := title
	if year != "" {
		intro += " (" + year + ")"
	}
	var lines []string
	switch {
	case genre != "" && director != "":
		lines = append(lines, fmt.Sprintf("%s is a %s film directed by %s.", intro, genre, director))
	case genre != "":
		lines = append(lines, fmt.Sprintf("%s is a %s film.", intro, genre))
	case director != "":
		lines = append(lines, fmt.Sprintf("%s was directed by %s.", intro, director))
	default:
		lines = append(lines, intro+".")
	}

	if a.cast || noSpecific {
		limit := 8
		if a.topBilled {
			limit = 5
		}
		if roles := withRoles(cast, limit); len(roles) > 0 {
			lines = append(lines, "Notable cast and roles: "+strings.Join(roles, "; ")+".")
		} else if names := actorNames(na(m.Actors), 5); len(names) > 0 {
			lines = append(lines, "Top cast includes "+strings.Join(names, ", ")+".")
		}
	}
	if a.genre && genre != "" {
		lines = append(lines, "Genre: "+genre+".")
	}
	if rt := na(m.Runtime); a.runtime && rt != "" {
		lines = append(lines, "Runtime: "+rt+".")
	}
	if a.ratings || (noSpecific && !a.topBilled) {
		var bits []string
		if r := na(m.IMDbRating); r != "" {
			bits = append(bits, "IMDb "+r+"/10")
		}
		if r := na(m.rating("Rotten Tomatoes")); r != "" {
			bits = append(bits, "Rotten Tomatoes "+r)
		}
		if len(bits) > 0 {
			lines = append(lines, "Ratings: "+strings.Join(bits, ", ")+".")
		}
	}
	if plot != "" && (a.plot || noSpecific) {
		lines = append(lines, plot)
	}
	if b := na(m.BoxOffice); b != "" && (a.box || noSpecific) {
		lines = append(lines, "Box office: "+b+".")
	}
	return strings.Join(lines, " ")
}
