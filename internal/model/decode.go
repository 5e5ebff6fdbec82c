package model

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// DecodeLibraryItems parses a raw backend payload into validated library
// items. The realtime backend enforces no schema, so shapes are checked
// here instead of assumed downstream: entries without a positive id, a
// title, and a known kind are dropped, and only numeric rating values
// survive. The payload may be a JSON array or a path-keyed object.
func DecodeLibraryItems(raw json.RawMessage, kind string) []LibraryItem {
	if len(raw) == 0 {
		return nil
	}
	var entries []json.RawMessage
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		entries = arr
	} else {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			entries = append(entries, obj[k])
		}
	}

	out := make([]LibraryItem, 0, len(entries))
	for _, e := range entries {
		if it, ok := decodeItem(e, kind); ok {
			out = append(out, it)
		}
	}
	return out
}

type rawLibraryItem struct {
	ID        json.Number                `json:"id"`
	Kind      string                     `json:"kind"`
	Title     string                     `json:"title"`
	Genres    []string                   `json:"genres"`
	Genre     string                     `json:"genre"`
	Ratings   map[string]json.RawMessage `json:"ratings"`
	Providers []string                   `json:"providers"`
	Poster    *string                    `json:"poster_path"`
	AddedAt   json.RawMessage            `json:"added_at"`
}

func decodeItem(raw json.RawMessage, kind string) (LibraryItem, bool) {
	var r rawLibraryItem
	if err := json.Unmarshal(raw, &r); err != nil {
		return LibraryItem{}, false
	}
	id, err := r.ID.Int64()
	if err != nil || id <= 0 || r.Title == "" {
		return LibraryItem{}, false
	}
	k := kind
	if r.Kind != "" {
		k = r.Kind
	}
	if _, ok := AllowedKinds[k]; !ok {
		return LibraryItem{}, false
	}

	it := LibraryItem{
		ID:         id,
		Kind:       k,
		Title:      r.Title,
		Genres:     r.Genres,
		Providers:  r.Providers,
		PosterPath: r.Poster,
		AddedAt:    decodeTime(r.AddedAt),
	}
	if r.Genre != "" && len(it.Genres) == 0 {
		it.Genres = []string{r.Genre}
	}
	if len(r.Ratings) > 0 {
		it.Ratings = make(map[string]float64, len(r.Ratings))
		for uid, v := range r.Ratings {
			var f float64
			if err := json.Unmarshal(v, &f); err == nil {
				it.Ratings[uid] = f
			}
		}
		if len(it.Ratings) == 0 {
			it.Ratings = nil
		}
	}
	return it, true
}

// decodeTime accepts unix seconds, unix milliseconds, or RFC 3339.
func decodeTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil && i > 0 {
			if i > 1e12 {
				return time.UnixMilli(i).UTC()
			}
			return time.Unix(i, 0).UTC()
		}
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil && i > 0 {
			return time.Unix(i, 0).UTC()
		}
	}
	return time.Time{}
}
