package match

import (
	"sort"
	"strings"

	"tastematch-server/internal/model"
)

// Weighting of item kinds when deriving genre shares: a tracked series
// counts double a tracked movie.
const (
	seriesGenreWeight = 2.0
	movieGenreWeight  = 1.0
)

// placeholderGenres are catalog filler tokens that say nothing about
// taste and are excluded from every distribution.
var placeholderGenres = map[string]struct{}{
	"all":      {},
	"alle":     {},
	"unknown":  {},
	"other":    {},
	"sonstige": {},
}

func isPlaceholderGenre(g string) bool {
	_, ok := placeholderGenres[strings.ToLower(strings.TrimSpace(g))]
	return ok
}

// GenreDistribution maps genre name to its percentage share of a user's
// weighted library. Shares sum to 100 unless the library has no usable
// genres. Derived, never persisted.
type GenreDistribution map[string]float64

// DistributionOf computes the weighted genre distribution of a library.
func DistributionOf(lib model.Library) GenreDistribution {
	weights := make(map[string]float64)
	var total float64
	add := func(items []model.LibraryItem, w float64) {
		for _, it := range items {
			for _, g := range it.Genres {
				if g == "" || isPlaceholderGenre(g) {
					continue
				}
				weights[g] += w
				total += w
			}
		}
	}
	add(lib.Series, seriesGenreWeight)
	add(lib.Movies, movieGenreWeight)

	if total == 0 {
		return GenreDistribution{}
	}
	dist := make(GenreDistribution, len(weights))
	for g, w := range weights {
		dist[g] = w / total * 100
	}
	return dist
}

// TopGenres returns the n genres with the highest weighted frequency,
// heaviest first. Ties break alphabetically so the result is stable.
func TopGenres(lib model.Library, n int) []string {
	dist := DistributionOf(lib)
	genres := make([]string, 0, len(dist))
	for g := range dist {
		genres = append(genres, g)
	}
	sort.Slice(genres, func(i, j int) bool {
		if dist[genres[i]] != dist[genres[j]] {
			return dist[genres[i]] > dist[genres[j]]
		}
		return genres[i] < genres[j]
	})
	if len(genres) > n {
		genres = genres[:n]
	}
	return genres
}
