package match

import (
	"math"
	"testing"
	"time"

	"tastematch-server/internal/model"
)

func seriesItem(id int64, title string, genres []string, ratings map[string]float64) model.LibraryItem {
	return model.LibraryItem{
		ID:      id,
		Kind:    model.KindSeries,
		Title:   title,
		Genres:  genres,
		Ratings: ratings,
		AddedAt: time.Unix(1700000000, 0),
	}
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDisjointLibrariesScoreZeroOverlap(t *testing.T) {
	a := model.Library{UserID: "a", Series: []model.LibraryItem{
		seriesItem(1, "Dark", []string{"Drama"}, nil),
		seriesItem(2, "Severance", []string{"Drama"}, nil),
	}}
	b := model.Library{UserID: "b", Series: []model.LibraryItem{
		seriesItem(3, "Andor", []string{"Sci-Fi"}, nil),
	}}

	res := Compute(a, b)
	if res.SeriesOverlap != 0 {
		t.Fatalf("series overlap = %v, want 0", res.SeriesOverlap)
	}
	if res.MovieOverlap != 0 {
		t.Fatalf("movie overlap = %v, want 0 (empty union)", res.MovieOverlap)
	}
	if len(res.SharedSeries) != 0 {
		t.Fatalf("shared series = %d, want none", len(res.SharedSeries))
	}
}

func TestIdenticalLibrariesScoreFull(t *testing.T) {
	items := []model.LibraryItem{
		seriesItem(1, "Dark", []string{"Drama", "Mystery"}, map[string]float64{"a": 9}),
		seriesItem(2, "Severance", []string{"Drama"}, map[string]float64{"a": 7}),
	}
	a := model.Library{UserID: "a", Series: items}
	b := model.Library{UserID: "b", Series: items}

	res := Compute(a, b)
	if res.SeriesOverlap != 100 {
		t.Fatalf("series overlap = %v, want 100", res.SeriesOverlap)
	}
	if res.RatingScore != 100 {
		t.Fatalf("rating score = %v, want 100 for identical ratings", res.RatingScore)
	}
	if res.GenreScore != 100 {
		t.Fatalf("genre score = %v, want 100 for identical distributions", res.GenreScore)
	}
}

func TestGenreClosenessEqualShares(t *testing.T) {
	// A genre present at equal percentage on both sides must close at 100.
	got := genreScore(GenreDistribution{"Drama": 50, "Comedy": 50}, GenreDistribution{"Drama": 50, "Comedy": 50})
	if got != 100 {
		t.Fatalf("genre score = %v, want 100", got)
	}
}

func TestGenreScoreSharedGenreAt40And60(t *testing.T) {
	got := genreScore(GenreDistribution{"Drama": 40}, GenreDistribution{"Drama": 60})
	if !almostEqual(got, 80) {
		t.Fatalf("genre score = %v, want 80", got)
	}
}

func TestGenreScoreEmptyDistributions(t *testing.T) {
	if got := genreScore(GenreDistribution{}, GenreDistribution{}); got != 0 {
		t.Fatalf("genre score = %v, want 0 when total weight is 0", got)
	}
}

func TestRatingScoreNeutralWithoutComparablePairs(t *testing.T) {
	// Shared item exists but only one side ever rated it.
	shared := []model.SharedItem{{ID: 1, UserScore: 8, OtherScore: 0}}
	if got := ratingScore(shared); got != neutralRatingScore {
		t.Fatalf("rating score = %v, want neutral %d", got, neutralRatingScore)
	}
}

func TestPlaceholderGenresExcluded(t *testing.T) {
	lib := model.Library{UserID: "a", Series: []model.LibraryItem{
		seriesItem(1, "Dark", []string{"All", "alle", "Unknown", "Sonstige", "Drama"}, nil),
	}}
	dist := DistributionOf(lib)
	if len(dist) != 1 {
		t.Fatalf("distribution = %v, want only Drama", dist)
	}
	if !almostEqual(dist["Drama"], 100) {
		t.Fatalf("Drama share = %v, want 100", dist["Drama"])
	}
}

func TestTopGenresWeightsSeriesDouble(t *testing.T) {
	lib := model.Library{
		UserID: "a",
		Series: []model.LibraryItem{seriesItem(1, "Dark", []string{"Drama"}, nil)},
		Movies: []model.LibraryItem{
			{ID: 2, Kind: model.KindMovie, Title: "Heat", Genres: []string{"Crime"}},
		},
	}
	top := TopGenres(lib, 3)
	if len(top) != 2 || top[0] != "Drama" || top[1] != "Crime" {
		t.Fatalf("top genres = %v, want [Drama Crime]", top)
	}
}

// End-to-end fixture: one shared series rated 8 and 6, one unshared
// series on each side, no movies, no providers. Every expected value
// below follows from the documented sub-score formulas.
func TestComputeEndToEnd(t *testing.T) {
	a := model.Library{UserID: "a", Series: []model.LibraryItem{
		seriesItem(1, "Dark", []string{"Drama", "Mystery"}, map[string]float64{"a": 8}),
		seriesItem(2, "Severance", []string{"Mystery"}, nil),
	}}
	b := model.Library{UserID: "b", Series: []model.LibraryItem{
		seriesItem(1, "Dark", []string{"Drama", "Mystery"}, map[string]float64{"b": 6}),
		seriesItem(3, "Andor", []string{"Drama"}, nil),
	}}

	res := Compute(a, b)

	// 1 shared of 3 unique ids.
	if !almostEqual(res.SeriesOverlap, 100.0/3) {
		t.Fatalf("series overlap = %v, want %v", res.SeriesOverlap, 100.0/3)
	}
	if res.MovieOverlap != 0 {
		t.Fatalf("movie overlap = %v, want 0", res.MovieOverlap)
	}
	// |8-6| = 2 on a 0..10 scale.
	if !almostEqual(res.RatingScore, 80) {
		t.Fatalf("rating score = %v, want 80", res.RatingScore)
	}
	// a: Drama 33.3/Mystery 66.7, b: Drama 66.7/Mystery 33.3; both
	// genres close at 66.7 with equal weight.
	if !almostEqual(res.GenreScore, 200.0/3) {
		t.Fatalf("genre score = %v, want %v", res.GenreScore, 200.0/3)
	}
	if res.ProviderScore != 0 {
		t.Fatalf("provider score = %v, want 0", res.ProviderScore)
	}

	// 25*33.33 + 15*0 + 35*66.67 + 15*80 + 10*0 = 4366.67 -> 43.67 -> 44.
	if res.Overall != 44 {
		t.Fatalf("overall = %d, want 44", res.Overall)
	}

	if len(res.SharedSeries) != 1 || res.SharedSeries[0].ID != 1 {
		t.Fatalf("shared series = %+v, want the one shared id", res.SharedSeries)
	}
	if res.SharedSeries[0].Diff != 2 {
		t.Fatalf("shared diff = %v, want 2", res.SharedSeries[0].Diff)
	}
}
