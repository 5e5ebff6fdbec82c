package model

import "time"

// Library item kinds.
const (
	KindSeries = "series"
	KindMovie  = "movie"
)

var AllowedKinds = map[string]struct{}{
	KindSeries: {},
	KindMovie:  {},
}

// LibraryItem is one tracked series or movie in a user's library.
// The hosted realtime backend is the source of truth; this is the
// denormalized copy the scorer and aggregator work on.
type LibraryItem struct {
	ID         int64              `json:"id"` // catalog id
	Kind       string             `json:"kind"`
	Title      string             `json:"title"`
	Genres     []string           `json:"genres,omitempty"`
	Ratings    map[string]float64 `json:"ratings,omitempty"` // user id -> score, 0..10
	Providers  []string           `json:"providers,omitempty"`
	PosterPath *string            `json:"poster_path,omitempty"`
	AddedAt    time.Time          `json:"added_at"`
}

// AverageRating returns the mean of all non-zero entries in the rating map.
// The second return is false when no positive rating exists; a zero rating
// is not the same as never rated.
func (it LibraryItem) AverageRating() (float64, bool) {
	var sum float64
	var n int
	for _, v := range it.Ratings {
		if v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Library holds one user's fully loaded collections.
type Library struct {
	UserID string        `json:"user_id"`
	Series []LibraryItem `json:"series"`
	Movies []LibraryItem `json:"movies"`
}

// Items returns series and movies as a single slice.
func (l Library) Items() []LibraryItem {
	out := make([]LibraryItem, 0, len(l.Series)+len(l.Movies))
	out = append(out, l.Series...)
	out = append(out, l.Movies...)
	return out
}

// Empty reports whether the library has no items at all.
func (l Library) Empty() bool { return len(l.Series) == 0 && len(l.Movies) == 0 }

// SharedItem is a library item present in both compared libraries,
// annotated with each user's average rating.
type SharedItem struct {
	ID         int64   `json:"id"`
	Kind       string  `json:"kind"`
	Title      string  `json:"title"`
	UserScore  float64 `json:"user_score"`
	OtherScore float64 `json:"other_score"`
	Diff       float64 `json:"diff"`
}

// MatchResult is the ephemeral pairwise taste report: five sub-scores
// (each 0..100) plus the weighted overall score. Never persisted,
// recomputed per request.
type MatchResult struct {
	UserID        string       `json:"user_id"`
	FriendID      string       `json:"friend_id"`
	SeriesOverlap float64      `json:"series_overlap"`
	MovieOverlap  float64      `json:"movie_overlap"`
	GenreScore    float64      `json:"genre_score"`
	RatingScore   float64      `json:"rating_score"`
	ProviderScore float64      `json:"provider_score"`
	Overall       int          `json:"overall"`
	SharedSeries  []SharedItem `json:"shared_series,omitempty"`
	SharedMovies  []SharedItem `json:"shared_movies,omitempty"`
}

// CatalogItem is one entry from the external catalog API, as surfaced
// in recommendation output.
type CatalogItem struct {
	ID         int64   `json:"id"`
	Kind       string  `json:"kind"`
	Title      string  `json:"title"`
	GenreIDs   []int64 `json:"genre_ids,omitempty"`
	PosterPath *string `json:"poster_path,omitempty"`
	Popularity float64 `json:"popularity,omitempty"`
	VoteAvg    float64 `json:"vote_average,omitempty"`
	Overview   *string `json:"overview,omitempty"`
}
