package recs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tastematch-server/internal/model"
	"tastematch-server/pkg/catalog"
)

// stubCatalog serves canned responses and records call counts. Safe for
// the aggregator's concurrent fan-out.
type stubCatalog struct {
	mu              sync.Mutex
	trending        []catalog.Item
	topRated        []catalog.Item
	popular         []catalog.Item
	recommendations []catalog.Item
	similar         []catalog.Item
	discover        []catalog.Item
	genres          map[string]int64

	failAll       bool
	trendingFailN int // fail the first N trending calls, then succeed
	endpointHits  int
	trendingHits  int
}

func (s *stubCatalog) result(items []catalog.Item) ([]catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpointHits++
	if s.failAll {
		return nil, errors.New("boom")
	}
	return items, nil
}

func (s *stubCatalog) Trending(_ context.Context, _, _ string, _ int) ([]catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpointHits++
	s.trendingHits++
	if s.failAll || s.trendingHits <= s.trendingFailN {
		return nil, errors.New("boom")
	}
	return s.trending, nil
}
func (s *stubCatalog) TopRated(_ context.Context, _, _ string, _ int) ([]catalog.Item, error) {
	return s.result(s.topRated)
}
func (s *stubCatalog) Popular(_ context.Context, _, _ string, _ int) ([]catalog.Item, error) {
	return s.result(s.popular)
}
func (s *stubCatalog) Recommendations(_ context.Context, _ string, _ int64, _ string, _ int) ([]catalog.Item, error) {
	return s.result(s.recommendations)
}
func (s *stubCatalog) Similar(_ context.Context, _ string, _ int64, _ string, _ int) ([]catalog.Item, error) {
	return s.result(s.similar)
}
func (s *stubCatalog) Discover(_ context.Context, _ string, _ []int64, _, _ string, _ int) ([]catalog.Item, error) {
	return s.result(s.discover)
}
func (s *stubCatalog) GenreIDs(_ context.Context, _, _ string) (map[string]int64, error) {
	if s.genres == nil {
		return nil, errors.New("no genre table")
	}
	return s.genres, nil
}

func (s *stubCatalog) hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpointHits
}

func tvItem(id int64, title string) catalog.Item {
	return catalog.Item{ID: id, Kind: catalog.KindTV, Title: title}
}

func seriesLibItem(id int64, title string, genres ...string) model.LibraryItem {
	return model.LibraryItem{ID: id, Kind: model.KindSeries, Title: title, Genres: genres}
}

func locales() []string { return []string{"de-DE", "en-US"} }

func TestItemBasedDedupesAcrossEndpoints(t *testing.T) {
	// The same ids appear in recommendations and similar responses; the
	// output must carry each id at most once.
	stub := &stubCatalog{
		recommendations: []catalog.Item{tvItem(10, "A"), tvItem(11, "B")},
		similar:         []catalog.Item{tvItem(11, "B"), tvItem(12, "C")},
	}
	a := New(stub, locales(), 1)

	basis := []model.LibraryItem{seriesLibItem(1, "Dark"), seriesLibItem(2, "Severance")}
	out := a.Recommend(context.Background(), catalog.KindTV, model.Library{UserID: "u", Series: basis}, basis)

	seen := map[int64]int{}
	for _, it := range out {
		seen[it.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Fatalf("id %d appears %d times, want at most once", id, n)
		}
	}
	if len(out) != 3 {
		t.Fatalf("got %d items, want 3 unique", len(out))
	}
	// 2 basis items x 2 endpoints x 2 locales x 2 pages.
	if stub.hits() != 16 {
		t.Fatalf("endpoint hits = %d, want 16", stub.hits())
	}
}

func TestOwnedItemsNeverRecommended(t *testing.T) {
	owned := seriesLibItem(42, "Owned", "Drama")
	lib := model.Library{UserID: "u", Series: []model.LibraryItem{owned}}

	// Item-based mode: the catalog recommends the owned item back.
	stub := &stubCatalog{
		recommendations: []catalog.Item{tvItem(42, "Owned"), tvItem(43, "Fresh")},
		similar:         []catalog.Item{tvItem(42, "Owned")},
	}
	a := New(stub, locales(), 1)
	out := a.Recommend(context.Background(), catalog.KindTV, lib, []model.LibraryItem{owned})
	for _, it := range out {
		if it.ID == 42 {
			t.Fatalf("owned id 42 leaked into item-based recommendations")
		}
	}
	if len(out) != 1 || out[0].ID != 43 {
		t.Fatalf("got %+v, want only id 43", out)
	}

	// Genre-inferred mode with the same owned item.
	stub2 := &stubCatalog{
		trending: []catalog.Item{tvItem(42, "Owned"), tvItem(44, "Other")},
		popular:  []catalog.Item{tvItem(42, "Owned")},
		discover: []catalog.Item{tvItem(42, "Owned"), tvItem(45, "Found")},
		genres:   map[string]int64{"drama": 18},
	}
	a2 := New(stub2, locales(), 1)
	out2 := a2.Recommend(context.Background(), catalog.KindTV, lib, nil)
	if len(out2) == 0 {
		t.Fatalf("genre-inferred mode returned nothing")
	}
	for _, it := range out2 {
		if it.ID == 42 {
			t.Fatalf("owned id 42 leaked into genre-inferred recommendations")
		}
	}
}

func TestColdStartCapAndNoShuffle(t *testing.T) {
	var many []catalog.Item
	for i := int64(1); i <= 50; i++ {
		many = append(many, tvItem(i, "T"))
	}
	stub := &stubCatalog{trending: many}
	a := New(stub, locales(), 7)

	out := a.Recommend(context.Background(), catalog.KindTV, model.Library{UserID: "u"}, nil)
	if len(out) != coldStartCap {
		t.Fatalf("got %d items, want cap %d", len(out), coldStartCap)
	}
	// Cold start keeps source order.
	for i, it := range out {
		if it.ID != int64(i+1) {
			t.Fatalf("cold start reordered output at %d: got id %d", i, it.ID)
		}
	}
}

func TestItemBasedShuffleIsSeeded(t *testing.T) {
	var many []catalog.Item
	for i := int64(1); i <= 20; i++ {
		many = append(many, tvItem(i, "T"))
	}
	basis := []model.LibraryItem{seriesLibItem(100, "Dark")}

	run := func(seed int64) []int64 {
		stub := &stubCatalog{recommendations: many}
		a := New(stub, locales(), seed)
		out := a.Recommend(context.Background(), catalog.KindTV, model.Library{UserID: "u"}, basis)
		ids := make([]int64, len(out))
		for i, it := range out {
			ids[i] = it.ID
		}
		return ids
	}

	first := run(99)
	second := run(99)
	if len(first) != len(second) {
		t.Fatalf("runs disagree on length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same seed produced different orders at %d", i)
		}
	}
}

func TestGenreModeTrendingFallback(t *testing.T) {
	lib := model.Library{UserID: "u", Series: []model.LibraryItem{seriesLibItem(1, "Dark", "Drama")}}
	// Discover and popular are down and the two batched trending calls
	// fail too; only the single top-level fallback fetch succeeds.
	stub := &stubCatalog{
		trending:      []catalog.Item{tvItem(5, "Fallback")},
		trendingFailN: 2,
		genres:        map[string]int64{"drama": 18},
	}
	stub.discover = nil
	stub.popular = nil
	a := New(stub, locales(), 1)

	out := a.Recommend(context.Background(), catalog.KindTV, lib, nil)
	if len(out) != 1 || out[0].ID != 5 {
		t.Fatalf("got %+v, want the single fallback item", out)
	}
}

func TestTotalFailureYieldsEmptyNotError(t *testing.T) {
	stub := &stubCatalog{failAll: true}
	a := New(stub, locales(), 1)
	out := a.Recommend(context.Background(), catalog.KindTV, model.Library{UserID: "u"}, nil)
	if len(out) != 0 {
		t.Fatalf("got %d items from a fully failing catalog", len(out))
	}
}

func TestBasisListCappedAtFive(t *testing.T) {
	stub := &stubCatalog{recommendations: []catalog.Item{tvItem(1, "A")}}
	a := New(stub, locales(), 1)

	var basis []model.LibraryItem
	for i := int64(1); i <= 9; i++ {
		basis = append(basis, seriesLibItem(100+i, "S"))
	}
	a.Recommend(context.Background(), catalog.KindTV, model.Library{UserID: "u"}, basis)
	// 5 basis items x 8 requests each.
	if stub.hits() != 40 {
		t.Fatalf("endpoint hits = %d, want 40", stub.hits())
	}
}
