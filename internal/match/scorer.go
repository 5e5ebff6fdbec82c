package match

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"tastematch-server/internal/model"
)

// Fixed weights of the overall score. They sum to 100.
const (
	weightSeries    = 25
	weightMovies    = 15
	weightGenres    = 35
	weightRatings   = 15
	weightProviders = 10
)

// neutralRatingScore is returned when the two users share no item that
// both have rated. Neutral rather than zero so sparse-overlap pairs are
// not penalized on a signal that simply is not there.
const neutralRatingScore = 50

// LibraryLoader supplies fully materialized user libraries.
type LibraryLoader interface {
	Load(ctx context.Context, userID string) (model.Library, error)
}

// Scorer computes the pairwise taste match between two users.
type Scorer struct {
	libs LibraryLoader
}

func NewScorer(libs LibraryLoader) *Scorer {
	return &Scorer{libs: libs}
}

// Match loads both users' collections and computes the report. Load
// failures degrade to empty libraries and the zero/default sub-scores;
// the method never fails on missing data.
func (s *Scorer) Match(ctx context.Context, userID, friendID string) model.MatchResult {
	a := s.load(ctx, userID)
	b := s.load(ctx, friendID)
	return Compute(a, b)
}

func (s *Scorer) load(ctx context.Context, userID string) model.Library {
	lib, err := s.libs.Load(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("library load failed, scoring against empty library")
		return model.Library{UserID: userID}
	}
	return lib
}

// Compute derives the match report from two already-loaded libraries.
func Compute(a, b model.Library) model.MatchResult {
	seriesOverlap, sharedSeries := overlapScore(a.UserID, b.UserID, a.Series, b.Series)
	movieOverlap, sharedMovies := overlapScore(a.UserID, b.UserID, a.Movies, b.Movies)

	res := model.MatchResult{
		UserID:        a.UserID,
		FriendID:      b.UserID,
		SeriesOverlap: seriesOverlap,
		MovieOverlap:  movieOverlap,
		GenreScore:    genreScore(DistributionOf(a), DistributionOf(b)),
		RatingScore:   ratingScore(append(sharedSeries, sharedMovies...)),
		ProviderScore: providerScore(a, b),
		SharedSeries:  sharedSeries,
		SharedMovies:  sharedMovies,
	}
	weighted := float64(weightSeries)*res.SeriesOverlap +
		float64(weightMovies)*res.MovieOverlap +
		float64(weightGenres)*res.GenreScore +
		float64(weightRatings)*res.RatingScore +
		float64(weightProviders)*res.ProviderScore
	res.Overall = int(math.Round(weighted / 100))
	return res
}

// overlapScore is Jaccard over item ids, expressed 0..100, with the
// shared items annotated by both users' average ratings. Zero when the
// union is empty.
func overlapScore(userID, friendID string, a, b []model.LibraryItem) (float64, []model.SharedItem) {
	byID := make(map[int64]model.LibraryItem, len(a))
	for _, it := range a {
		byID[it.ID] = it
	}
	union := make(map[int64]struct{}, len(a)+len(b))
	for _, it := range a {
		union[it.ID] = struct{}{}
	}

	var shared []model.SharedItem
	for _, other := range b {
		union[other.ID] = struct{}{}
		mine, ok := byID[other.ID]
		if !ok {
			continue
		}
		myAvg, _ := mine.AverageRating()
		theirAvg, _ := other.AverageRating()
		shared = append(shared, model.SharedItem{
			ID:         mine.ID,
			Kind:       mine.Kind,
			Title:      mine.Title,
			UserScore:  myAvg,
			OtherScore: theirAvg,
			Diff:       math.Abs(myAvg - theirAvg),
		})
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i].ID < shared[j].ID })

	if len(union) == 0 {
		return 0, nil
	}
	return float64(len(shared)) / float64(len(union)) * 100, shared
}

// genreScore is the weighted mean of per-genre closeness across every
// genre either user engages with, weighted by combined share so fringe
// genres barely move the result. Zero when neither side has genres.
func genreScore(a, b GenreDistribution) float64 {
	seen := make(map[string]struct{}, len(a)+len(b))
	for g := range a {
		seen[g] = struct{}{}
	}
	for g := range b {
		seen[g] = struct{}{}
	}

	var weightedSum, totalWeight float64
	for g := range seen {
		aPct, bPct := a[g], b[g]
		closeness := 100 - math.Abs(aPct-bPct)
		weight := aPct + bPct
		weightedSum += closeness * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// ratingScore maps the average absolute rating difference over
// comparable shared items (both sides rated, 0..10 scale) onto 0..100.
// Items either side never rated are excluded; a pair with nothing
// comparable gets the neutral default.
func ratingScore(shared []model.SharedItem) float64 {
	var diffSum float64
	var n int
	for _, s := range shared {
		if s.UserScore > 0 && s.OtherScore > 0 {
			diffSum += s.Diff
			n++
		}
	}
	if n == 0 {
		return neutralRatingScore
	}
	avgDiff := diffSum / float64(n)
	return 100 - avgDiff/10*100
}

// providerScore is Jaccard over each user's union of streaming
// providers, 0..100, zero on an empty union.
func providerScore(a, b model.Library) float64 {
	mine := providerSet(a)
	theirs := providerSet(b)

	union := make(map[string]struct{}, len(mine)+len(theirs))
	shared := 0
	for p := range mine {
		union[p] = struct{}{}
	}
	for p := range theirs {
		if _, ok := mine[p]; ok {
			shared++
		}
		union[p] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(shared) / float64(len(union)) * 100
}

func providerSet(lib model.Library) map[string]struct{} {
	set := make(map[string]struct{})
	for _, it := range lib.Items() {
		for _, p := range it.Providers {
			if p != "" {
				set[p] = struct{}{}
			}
		}
	}
	return set
}
