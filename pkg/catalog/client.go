package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Kind values as the catalog API spells them.
const (
	KindTV    = "tv"
	KindMovie = "movie"
)

// Sort orders accepted by the discover endpoint.
const (
	SortPopularity = "popularity.desc"
	SortVoteAvg    = "vote_average.desc"
	SortFirstAired = "first_air_date.desc"
)

// Client talks to the external catalog REST API. It does nothing beyond
// query-string construction and response decoding; callers decide what a
// failed endpoint means.
type Client struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func New(apiKey string) *Client {
	return &Client{APIKey: apiKey, BaseURL: "https://api.themoviedb.org/3", Client: &http.Client{Timeout: 15 * time.Second}}
}

// Item is one catalog entry. TV responses carry "name", movie responses
// "title"; Title holds whichever was present.
type Item struct {
	ID         int64   `json:"id"`
	Kind       string  `json:"kind"`
	Title      string  `json:"title"`
	GenreIDs   []int64 `json:"genre_ids,omitempty"`
	PosterPath string  `json:"poster_path,omitempty"`
	Popularity float64 `json:"popularity,omitempty"`
	VoteAvg    float64 `json:"vote_average,omitempty"`
	Overview   string  `json:"overview,omitempty"`
}

type pageResp struct {
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
	Results    []pageItem `json:"results"`
}

type pageItem struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Name       string  `json:"name"`
	GenreIDs   []int64 `json:"genre_ids"`
	PosterPath string  `json:"poster_path"`
	Popularity float64 `json:"popularity"`
	VoteAvg    float64 `json:"vote_average"`
	Overview   string  `json:"overview"`
	Adult      bool    `json:"adult"`
}

// StatusError reports a non-2xx catalog response. Aggregation layers
// treat these as empty results (a 404 on a missing page is routine).
type StatusError struct {
	Status int
	Path   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog status %d on %s", e.Status, e.Path)
}

// Trending fetches the weekly trending list for a kind.
func (c *Client) Trending(ctx context.Context, kind, locale string, page int) ([]Item, error) {
	return c.fetch(ctx, kind, "/trending/"+kind+"/week", locale, page, nil)
}

// TopRated fetches the all-time top-rated list for a kind.
func (c *Client) TopRated(ctx context.Context, kind, locale string, page int) ([]Item, error) {
	return c.fetch(ctx, kind, "/"+kind+"/top_rated", locale, page, nil)
}

// Popular fetches the currently popular list for a kind.
func (c *Client) Popular(ctx context.Context, kind, locale string, page int) ([]Item, error) {
	return c.fetch(ctx, kind, "/"+kind+"/popular", locale, page, nil)
}

// Recommendations fetches catalog-side recommendations for one item.
func (c *Client) Recommendations(ctx context.Context, kind string, id int64, locale string, page int) ([]Item, error) {
	return c.fetch(ctx, kind, fmt.Sprintf("/%s/%d/recommendations", kind, id), locale, page, nil)
}

// Similar fetches items the catalog considers similar to one item.
func (c *Client) Similar(ctx context.Context, kind string, id int64, locale string, page int) ([]Item, error) {
	return c.fetch(ctx, kind, fmt.Sprintf("/%s/%d/similar", kind, id), locale, page, nil)
}

// Discover runs a genre-filtered discovery query.
func (c *Client) Discover(ctx context.Context, kind string, genreIDs []int64, sortBy, locale string, page int) ([]Item, error) {
	extra := url.Values{}
	if len(genreIDs) > 0 {
		parts := make([]string, len(genreIDs))
		for i, id := range genreIDs {
			parts[i] = strconv.FormatInt(id, 10)
		}
		extra.Set("with_genres", strings.Join(parts, ","))
	}
	if sortBy != "" {
		extra.Set("sort_by", sortBy)
	}
	return c.fetch(ctx, kind, "/discover/"+kind, locale, page, extra)
}

type genreListResp struct {
	Genres []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

// GenreIDs returns the catalog's genre-name-to-id mapping for a kind.
// Names are keyed lowercase.
func (c *Client) GenreIDs(ctx context.Context, kind, locale string) (map[string]int64, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("missing catalog API key")
	}
	u, err := c.buildURL("/genre/"+kind+"/list", locale, 0, nil)
	if err != nil {
		return nil, err
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode, Path: "/genre/" + kind + "/list"}
	}
	var gl genreListResp
	if err := json.NewDecoder(resp.Body).Decode(&gl); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(gl.Genres))
	for _, g := range gl.Genres {
		out[strings.ToLower(g.Name)] = g.ID
	}
	return out, nil
}

func (c *Client) buildURL(path, locale string, page int, extra url.Values) (string, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("api_key", c.APIKey)
	if locale != "" {
		q.Set("language", locale)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) fetch(ctx context.Context, kind, path, locale string, page int, extra url.Values) ([]Item, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("missing catalog API key")
	}
	u, err := c.buildURL(path, locale, page, extra)
	if err != nil {
		return nil, err
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode, Path: path}
	}
	var pr pageResp
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(pr.Results))
	for _, it := range pr.Results {
		if it.ID == 0 || it.Adult {
			continue
		}
		title := it.Title
		if title == "" {
			title = it.Name
		}
		out = append(out, Item{
			ID:         it.ID,
			Kind:       kind,
			Title:      title,
			GenreIDs:   it.GenreIDs,
			PosterPath: it.PosterPath,
			Popularity: it.Popularity,
			VoteAvg:    it.VoteAvg,
			Overview:   it.Overview,
		})
	}
	return out, nil
}
