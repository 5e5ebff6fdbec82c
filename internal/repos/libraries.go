package repos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"tastematch-server/internal/model"
)

type LibrariesRepo struct {
	db *pgxpool.Pool
}

// ReplaceLibrary swaps a user's mirrored items for the given library in
// one transaction, so readers never see a half-synced state.
func (r *LibrariesRepo) ReplaceLibrary(ctx context.Context, userID string, lib model.Library) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM library_items WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, it := range lib.Items() {
		if err := insertItem(ctx, tx, userID, it); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// UpsertItem writes or refreshes one mirrored item.
func (r *LibrariesRepo) UpsertItem(ctx context.Context, userID string, it model.LibraryItem) error {
	ratings, err := marshalRatings(it.Ratings)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO library_items (user_id, item_id, kind, title, genres, providers, ratings, poster_path, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, kind, item_id) DO UPDATE SET
			title = EXCLUDED.title,
			genres = EXCLUDED.genres,
			providers = EXCLUDED.providers,
			ratings = EXCLUDED.ratings,
			poster_path = EXCLUDED.poster_path,
			added_at = EXCLUDED.added_at`,
		userID, it.ID, it.Kind, it.Title, it.Genres, it.Providers, ratings,
		textVal(it.PosterPath), timestamptz(it.AddedAt))
	return err
}

// GetLibrary loads a user's full mirrored library.
func (r *LibrariesRepo) GetLibrary(ctx context.Context, userID string) (model.Library, error) {
	rows, err := r.db.Query(ctx, `
		SELECT item_id, kind, title, genres, providers, ratings, poster_path, added_at
		FROM library_items
		WHERE user_id = $1
		ORDER BY added_at, item_id`, userID)
	if err != nil {
		return model.Library{}, err
	}
	defer rows.Close()

	lib := model.Library{UserID: userID}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return model.Library{}, err
		}
		switch it.Kind {
		case model.KindSeries:
			lib.Series = append(lib.Series, it)
		case model.KindMovie:
			lib.Movies = append(lib.Movies, it)
		}
	}
	return lib, rows.Err()
}

// ListLibraryPage pages through a user's mirrored items, newest first,
// keyed by (added_at, item_id) for a stable cursor.
func (r *LibrariesRepo) ListLibraryPage(ctx context.Context, userID string, cursorAdded *time.Time, cursorID *int64, limit int32) ([]model.LibraryItem, error) {
	added := time.Unix(1<<40, 0).UTC() // far future sentinel for the first page
	id := int64(0)
	if cursorAdded != nil {
		added = *cursorAdded
	}
	if cursorID != nil {
		id = *cursorID
	}
	rows, err := r.db.Query(ctx, `
		SELECT item_id, kind, title, genres, providers, ratings, poster_path, added_at
		FROM library_items
		WHERE user_id = $1 AND (added_at, item_id) < ($2, $3)
		ORDER BY added_at DESC, item_id DESC
		LIMIT $4`, userID, timestamptz(added), id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LibraryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListUserIDs returns every user with mirrored items. Drives the
// periodic mirror sync.
func (r *LibrariesRepo) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT user_id FROM library_items ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CountLibrary reports the number of mirrored items for a user.
func (r *LibrariesRepo) CountLibrary(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM library_items WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func insertItem(ctx context.Context, tx pgx.Tx, userID string, it model.LibraryItem) error {
	ratings, err := marshalRatings(it.Ratings)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO library_items (user_id, item_id, kind, title, genres, providers, ratings, poster_path, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, kind, item_id) DO UPDATE SET
			title = EXCLUDED.title,
			genres = EXCLUDED.genres,
			providers = EXCLUDED.providers,
			ratings = EXCLUDED.ratings,
			poster_path = EXCLUDED.poster_path,
			added_at = EXCLUDED.added_at`,
		userID, it.ID, it.Kind, it.Title, it.Genres, it.Providers, ratings,
		textVal(it.PosterPath), timestamptz(it.AddedAt))
	return err
}

func scanItem(rows pgx.Rows) (model.LibraryItem, error) {
	var (
		it      model.LibraryItem
		ratings []byte
		poster  pgtype.Text
		added   pgtype.Timestamptz
	)
	if err := rows.Scan(&it.ID, &it.Kind, &it.Title, &it.Genres, &it.Providers, &ratings, &poster, &added); err != nil {
		return model.LibraryItem{}, err
	}
	if len(ratings) > 0 {
		_ = json.Unmarshal(ratings, &it.Ratings)
	}
	it.PosterPath = textPtr(poster)
	if added.Valid {
		it.AddedAt = added.Time
	}
	return it, nil
}

func marshalRatings(ratings map[string]float64) ([]byte, error) {
	if len(ratings) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(ratings)
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func textVal(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
