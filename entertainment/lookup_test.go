package entertainment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github/itish2003/ragqa/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		q    string
		last string
		want string
	}{
		{"quoted", `tell me about "The Matrix" please`, "", "The Matrix"},
		{"cast of", "cast of inception?", "", "inception"},
		{"who directed", "Who directed Heat?", "", "Heat"},
		{"capitalized", "is the movie Inception any good", "", "Inception"},
		{"follow-up pronoun", "who directed it", "Inception", "Inception"},
		{"pronoun without history", "who directed it", "", "it"},
		{"nothing", "what is diabetes", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTitle(tt.q, tt.last))
		})
	}
}

func TestIsEntertainmentQuestion(t *testing.T) {
	assert.True(t, IsEntertainmentQuestion("what is the plot of Heat"))
	assert.True(t, IsEntertainmentQuestion("tell me about the film Heat"))
	assert.False(t, IsEntertainmentQuestion("what is hypertension"))
}

func TestCompose(t *testing.T) {
	m := &movie{
		Title: "Heat", Year: "1995", Genre: "Crime", Director: "Michael Mann",
		Actors: "Al Pacino, Robert De Niro", Plot: "A heist.", IMDbRating: "8.3",
		Ratings: []rating{{Source: "Rotten Tomatoes", Value: "88%"}}, BoxOffice: "N/A",
	}
	cast := []castMember{{Name: "Al Pacino", Character: "Vincent Hanna"}, {Name: "Al Pacino", Character: "dup"}}

	t.Run("cast only is a list", func(t *testing.T) {
		got := compose(m, "Heat", cast, parseAsks("cast of Heat"))
		assert.Equal(t, "Cast of Heat (1995):\n- Al Pacino as Vincent Hanna", got)
	})
	t.Run("overview", func(t *testing.T) {
		got := compose(m, "Heat", nil, parseAsks("tell me about Heat"))
		assert.Equal(t, "Heat (1995) is a Crime film directed by Michael Mann. Top cast includes Al Pacino, Robert De Niro. Ratings: IMDb 8.3/10, Rotten Tomatoes 88%. A heist.", got)
	})
	t.Run("ratings only", func(t *testing.T) {
		got := compose(m, "Heat", cast, parseAsks("imdb rating of Heat"))
		assert.Equal(t, "Heat (1995) is a Crime film directed by Michael Mann. Ratings: IMDb 8.3/10, Rotten Tomatoes 88%.", got)
	})
}

func newTestLookup(t *testing.T, omdb, tmdb http.HandlerFunc, budget time.Duration) *Lookup {
	t.Helper()
	o := httptest.NewServer(omdb)
	t.Cleanup(o.Close)
	opts := Options{OMDbURL: o.URL}
	cfg := config.EntertainmentConfig{Enabled: true, OMDbAPIKey: "k", Budget: budget, CacheSize: 8}
	if tmdb != nil {
		tm := httptest.NewServer(tmdb)
		t.Cleanup(tm.Close)
		opts.TMDbURL = tm.URL
		cfg.TMDbAPIKey = "t"
	}
	l, err := New(cfg, nil, opts, nil)
	require.NoError(t, err)
	return l
}

func TestLookup_AnswerAndFollowUp(t *testing.T) {
	var omdbCalls atomic.Int32
	omdb := func(w http.ResponseWriter, r *http.Request) {
		omdbCalls.Add(1)
		assert.Equal(t, "k", r.URL.Query().Get("apikey"))
		if !strings.EqualFold(r.URL.Query().Get("t"), "heat") {
			json.NewEncoder(w).Encode(map[string]string{"Response": "False"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"Response": "True", "Title": "Heat", "Year": "1995", "Genre": "Crime",
			"Director": "Michael Mann", "imdbID": "tt0113277",
		})
	}
	tmdb := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/find/"):
			json.NewEncoder(w).Encode(map[string]any{"movie_results": []map[string]int{{"id": 949}}})
		case r.URL.Path == "/movie/949/credits":
			json.NewEncoder(w).Encode(map[string]any{"cast": []map[string]string{
				{"name": "Al Pacino", "character": "Vincent Hanna"},
				{"name": "Robert De Niro", "character": "Neil McCauley"},
			}})
		default:
			http.NotFound(w, r)
		}
	}
	l := newTestLookup(t, omdb, tmdb, time.Second)

	got, ok := l.Answer(context.Background(), "s1", "Who directed Heat?")
	require.True(t, ok)
	assert.Equal(t, "Heat (1995) is a Crime film directed by Michael Mann.", got)

	got, ok = l.Answer(context.Background(), "s1", "what is the cast of it")
	require.True(t, ok)
	assert.Contains(t, got, "Al Pacino as Vincent Hanna")
	assert.Equal(t, int32(1), omdbCalls.Load(), "second lookup should hit the cache")

	_, ok = l.Answer(context.Background(), "s2", "what is the cast of it")
	assert.False(t, ok, "another session has no last title")
}

func TestLookup_FallsThrough(t *testing.T) {
	omdb := func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"Response": "False"})
	}
	l := newTestLookup(t, omdb, nil, time.Second)

	_, ok := l.Answer(context.Background(), "s", "what is hypertension")
	assert.False(t, ok)
	_, ok = l.Answer(context.Background(), "s", "who directed Nonexistent Film")
	assert.False(t, ok)
}

func TestLookup_BudgetExpires(t *testing.T) {
	omdb := func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}
	l := newTestLookup(t, omdb, nil, 20*time.Millisecond)

	_, ok := l.Answer(context.Background(), "s", "who directed Heat")
	assert.False(t, ok)
}

func TestLookup_DisabledWithoutKey(t *testing.T) {
	l, err := New(config.EntertainmentConfig{}, nil, Options{}, nil)
	require.NoError(t, err)
	_, ok := l.Answer(context.Background(), "s", "who directed Heat")
	assert.False(t, ok)

	var nilLookup *Lookup
	_, ok = nilLookup.Answer(context.Background(), "s", "who directed Heat")
	assert.False(t, ok)
}
