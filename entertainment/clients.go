package entertainment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultOMDbURL = "http://www.omdbapi.com/"
	defaultTMDbURL = "https://api.themoviedb.org/3"
)

type rating struct {
	Source string `json:"Source"`
	Value  string `json:"Value"`
}

// movie is the subset of an OMDb title record used in answers.
type movie struct {
	Title      string   `json:"Title"`
	Year       string   `json:"Year"`
	Genre      string   `json:"Genre"`
	Director   string   `json:"Director"`
	Actors     string   `json:"Actors"`
	Plot       string   `json:"Plot"`
	Runtime    string   `json:"Runtime"`
	BoxOffice  string   `json:"BoxOffice"`
	IMDbRating string   `json:"imdbRating"`
	IMDbID     string   `json:"imdbID"`
	Ratings    []rating `json:"Ratings"`
	Response   string   `json:"Response"`
	Search     []struct {
		Title string `json:"Title"`
	} `json:"Search"`
}

// rating returns the value reported by source, or "".
func (m *movie) rating(source string) string {
	for _, r := range m.Ratings {
		if strings.EqualFold(r.Source, source) {
			return r.Value
		}
	}
	return ""
}

// castMember is one credited actor with their role.
type castMember struct {
	Name      string `json:"name"`
	Character string `json:"character"`
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, params url.Values, header http.Header, out any) error {
	u := endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type omdbClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// get returns nil without error when OMDb reports no match.
func (c *omdbClient) get(ctx context.Context, params url.Values) (*movie, error) {
	if c.apiKey == "" {
		return nil, nil
	}
	params.Set("apikey", c.apiKey)
	var m movie
	if err := getJSON(ctx, c.http, c.baseURL, params, nil, &m); err != nil {
		return nil, err
	}
	if !strings.EqualFold(m.Response, "true") {
		return nil, nil
	}
	return &m, nil
}

// fetch looks a title up directly and then through search.
func (c *omdbClient) fetch(ctx context.Context, title string, fullPlot bool) (*movie, error) {
	params := url.Values{"t": {title}}
	if fullPlot {
		params.Set("plot", "full")
	}
	m, err := c.get(ctx, params)
	if err != nil || m != nil {
		return m, err
	}

	found, err := c.get(ctx, url.Values{"s": {title}})
	if err != nil || found == nil || len(found.Search) == 0 || found.Search[0].Title == "" {
		return nil, err
	}
	params.Set("t", found.Search[0].Title)
	return c.get(ctx, params)
}

type tmdbClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// auth uses a bearer header for v4 tokens and the api_key parameter otherwise.
func (c *tmdbClient) auth(params url.Values) http.Header {
	if strings.HasPrefix(c.apiKey, "eyJ") {
		return http.Header{"Authorization": {"Bearer " + c.apiKey}}
	}
	params.Set("api_key", c.apiKey)
	return nil
}

func (c *tmdbClient) credits(ctx context.Context, movieID int) ([]castMember, error) {
	params := url.Values{}
	h := c.auth(params)
	var body struct {
		Cast []struct {
			Name         string `json:"name"`
			OriginalName string `json:"original_name"`
			Character    string `json:"character"`
		} `json:"cast"`
	}
	if err := getJSON(ctx, c.http, fmt.Sprintf("%s/movie/%d/credits", c.baseURL, movieID), params, h, &body); err != nil {
		return nil, err
	}
	out := make([]castMember, 0, len(body.Cast))
	for _, m := range body.Cast {
		name := m.Name
		if name == "" {
			name = m.OriginalName
		}
		if name != "" && m.Character != "" {
			out = append(out, castMember{Name: name, Character: m.Character})
		}
	}
	return out, nil
}

// creditsByIMDb resolves an IMDb id to a TMDb movie and returns its cast.
func (c *tmdbClient) creditsByIMDb(ctx context.Context, imdbID string) ([]castMember, error) {
	if c.apiKey == "" {
		return nil, nil
	}
	params := url.Values{"external_source": {"imdb_id"}}
	h := c.auth(params)
	var body struct {
		MovieResults []struct {
			ID int `json:"id"`
		} `json:"movie_results"`
	}
	if err := getJSON(ctx, c.http, c.baseURL+"/find/"+url.PathEscape(imdbID), params, h, &body); err != nil {
		return nil, err
	}
	if len(body.MovieResults) == 0 || body.MovieResults[0].ID == 0 {
		return nil, nil
	}
	return c.credits(ctx, body.MovieResults[0].ID)
}

// creditsByTitle searches TMDb by title and optional year.
func (c *tmdbClient) creditsByTitle(ctx context.Context, title, year string) ([]castMember, error) {
	if c.apiKey == "" {
		return nil, nil
	}
	params := url.Values{"query": {title}}
	if len(year) >= 4 {
		if y, err := strconv.Atoi(year[:4]); err == nil {
			params.Set("year", strconv.Itoa(y))
		}
	}
	h := c.auth(params)
	var body struct {
		Results []struct {
			ID int `json:"id"`
		} `json:"results"`
	}
	if err := getJSON(ctx, c.http, c.baseURL+"/search/movie", params, h, &body); err != nil {
		return nil, err
	}
	if len(body.Results) == 0 || body.Results[0].ID == 0 {
		return nil, nil
	}
	return c.credits(ctx, body.Results[0].ID)
}
