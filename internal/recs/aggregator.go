package recs

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"tastematch-server/internal/match"
	"tastematch-server/internal/model"
	"tastematch-server/pkg/catalog"
)

// Result caps per mode.
const (
	coldStartCap = 32
	itemBasedCap = 48
	genreCap     = 32

	maxBasisItems = 5
	topGenreCount = 3
)

// CatalogClient lists the catalog endpoints the aggregator fans out to.
// *catalog.Client satisfies this interface.
type CatalogClient interface {
	Trending(ctx context.Context, kind, locale string, page int) ([]catalog.Item, error)
	TopRated(ctx context.Context, kind, locale string, page int) ([]catalog.Item, error)
	Popular(ctx context.Context, kind, locale string, page int) ([]catalog.Item, error)
	Recommendations(ctx context.Context, kind string, id int64, locale string, page int) ([]catalog.Item, error)
	Similar(ctx context.Context, kind string, id int64, locale string, page int) ([]catalog.Item, error)
	Discover(ctx context.Context, kind string, genreIDs []int64, sortBy, locale string, page int) ([]catalog.Item, error)
	GenreIDs(ctx context.Context, kind, locale string) (map[string]int64, error)
}

// Aggregator fans requests out to the catalog API and merges the
// responses into one deduplicated, owned-filtered, capped list.
// Safe for concurrent use.
type Aggregator struct {
	catalog CatalogClient
	locales []string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New builds an aggregator over the given catalog client and locale
// list (first locale is primary). The seed drives the output shuffle;
// tests inject a fixed one for determinism.
func New(c CatalogClient, locales []string, seed int64) *Aggregator {
	if len(locales) == 0 {
		locales = []string{"en-US"}
	}
	if len(locales) > 2 {
		locales = locales[:2]
	}
	return &Aggregator{
		catalog: c,
		locales: locales,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Recommend produces recommendations of one kind ("tv" or "movie") for
// a user. Mode selection: explicit basis items win; otherwise an empty
// library gets the cold-start mix and a non-empty one the genre-
// inferred mix. Failures degrade to shorter or empty output, never to
// an error.
func (a *Aggregator) Recommend(ctx context.Context, kind string, lib model.Library, basis []model.LibraryItem) []catalog.Item {
	if a.catalog == nil {
		return nil
	}
	owned := ownedSet(lib)
	switch {
	case len(basis) > 0:
		return a.itemBased(ctx, kind, owned, basis)
	case lib.Empty():
		return a.coldStart(ctx, kind, owned)
	default:
		return a.genreInferred(ctx, kind, owned, lib)
	}
}

// coldStart mixes trending and top-rated across both locales.
func (a *Aggregator) coldStart(ctx context.Context, kind string, owned map[string]struct{}) []catalog.Item {
	var fetches []fetchFn
	for _, locale := range a.locales {
		locale := locale
		fetches = append(fetches,
			func(ctx context.Context) ([]catalog.Item, error) { return a.catalog.Trending(ctx, kind, locale, 1) },
			func(ctx context.Context) ([]catalog.Item, error) { return a.catalog.TopRated(ctx, kind, locale, 1) },
		)
	}
	merged := merge(a.runAll(ctx, fetches), owned)
	if len(merged) == 0 {
		merged = a.trendingFallback(ctx, kind, owned)
	}
	return truncate(merged, coldStartCap)
}

// itemBased fans out recommendations+similar for up to five basis
// items, two locales and two pages each. Individual endpoint failures
// (missing pages included) count as empty responses.
func (a *Aggregator) itemBased(ctx context.Context, kind string, owned map[string]struct{}, basis []model.LibraryItem) []catalog.Item {
	if len(basis) > maxBasisItems {
		basis = basis[:maxBasisItems]
	}
	var fetches []fetchFn
	for _, it := range basis {
		id := it.ID
		for _, locale := range a.locales {
			locale := locale
			for page := 1; page <= 2; page++ {
				page := page
				fetches = append(fetches,
					func(ctx context.Context) ([]catalog.Item, error) {
						return a.catalog.Recommendations(ctx, kind, id, locale, page)
					},
					func(ctx context.Context) ([]catalog.Item, error) {
						return a.catalog.Similar(ctx, kind, id, locale, page)
					},
				)
			}
		}
	}
	merged := merge(a.runAll(ctx, fetches), owned)
	a.shuffle(merged)
	return truncate(merged, itemBasedCap)
}

// genreInferred derives the user's top genres from the full weighted
// library, resolves them against the catalog's genre table and mixes
// genre discovery with generic trending/popular queries.
func (a *Aggregator) genreInferred(ctx context.Context, kind string, owned map[string]struct{}, lib model.Library) []catalog.Item {
	genreIDs := a.resolveTopGenres(ctx, kind, lib)

	var fetches []fetchFn
	if len(genreIDs) > 0 {
		for _, sortBy := range []string{catalog.SortPopularity, catalog.SortVoteAvg} {
			for _, locale := range a.locales {
				sortBy, locale := sortBy, locale
				for page := 1; page <= 2; page++ {
					page := page
					fetches = append(fetches, func(ctx context.Context) ([]catalog.Item, error) {
						return a.catalog.Discover(ctx, kind, genreIDs, sortBy, locale, page)
					})
				}
			}
		}
	}
	for _, locale := range a.locales {
		locale := locale
		fetches = append(fetches,
			func(ctx context.Context) ([]catalog.Item, error) { return a.catalog.Trending(ctx, kind, locale, 1) },
			func(ctx context.Context) ([]catalog.Item, error) { return a.catalog.Popular(ctx, kind, locale, 1) },
		)
	}

	merged := merge(a.runAll(ctx, fetches), owned)
	if len(merged) == 0 {
		merged = a.trendingFallback(ctx, kind, owned)
	}
	a.shuffle(merged)
	return truncate(merged, genreCap)
}

func (a *Aggregator) resolveTopGenres(ctx context.Context, kind string, lib model.Library) []int64 {
	names := match.TopGenres(lib, topGenreCount)
	if len(names) == 0 {
		return nil
	}
	table, err := a.catalog.GenreIDs(ctx, kind, a.locales[0])
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("genre table fetch failed, skipping genre discovery")
		return nil
	}
	var ids []int64
	for _, name := range names {
		if id, ok := table[strings.ToLower(name)]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// trendingFallback is the one retry the top level allows itself when a
// whole batch came back empty.
func (a *Aggregator) trendingFallback(ctx context.Context, kind string, owned map[string]struct{}) []catalog.Item {
	items, err := a.catalog.Trending(ctx, kind, a.locales[0], 1)
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("trending fallback failed, returning empty recommendations")
		return nil
	}
	return merge([][]catalog.Item{items}, owned)
}

type fetchFn func(ctx context.Context) ([]catalog.Item, error)

// runAll dispatches every fetch concurrently and collects results in
// request order, so the downstream first-wins dedup sees responses in
// the concatenation order of the request list. Errors become empty
// slices.
func (a *Aggregator) runAll(ctx context.Context, fetches []fetchFn) [][]catalog.Item {
	results := make([][]catalog.Item, len(fetches))
	var wg sync.WaitGroup
	for i, fn := range fetches {
		wg.Add(1)
		go func(i int, fn fetchFn) {
			defer wg.Done()
			items, err := fn(ctx)
			if err != nil {
				log.Debug().Err(err).Msg("catalog endpoint failed, treated as empty")
				return
			}
			results[i] = items
		}(i, fn)
	}
	wg.Wait()
	return results
}

// merge flattens response batches, keeping the first occurrence of each
// catalog id and dropping items already in the user's library.
func merge(batches [][]catalog.Item, owned map[string]struct{}) []catalog.Item {
	seen := make(map[string]struct{})
	var out []catalog.Item
	for _, batch := range batches {
		for _, it := range batch {
			key := dedupKey(it.Kind, it.ID)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if _, own := owned[key]; own {
				continue
			}
			out = append(out, it)
		}
	}
	return out
}

func (a *Aggregator) shuffle(items []catalog.Item) {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	a.rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
}

func truncate(items []catalog.Item, n int) []catalog.Item {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// ownedSet keys the user's library by catalog kind and id. Catalog ids
// are only unique within a kind, so the kind is part of the key.
func ownedSet(lib model.Library) map[string]struct{} {
	set := make(map[string]struct{}, len(lib.Series)+len(lib.Movies))
	for _, it := range lib.Series {
		set[dedupKey(catalog.KindTV, it.ID)] = struct{}{}
	}
	for _, it := range lib.Movies {
		set[dedupKey(catalog.KindMovie, it.ID)] = struct{}{}
	}
	return set
}

func dedupKey(kind string, id int64) string {
	return kind + ":" + strconv.FormatInt(id, 10)
}

// KindDefault is the kind recommended when the caller does not say.
const KindDefault = catalog.KindTV

