package repos

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository bundles access to the denormalized library mirror. The
// hosted realtime backend stays the source of truth; the mirror exists
// so scoring and paging queries run against local data.
type Repository struct {
	db *pgxpool.Pool

	Libraries *LibrariesRepo
}

func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, Libraries: &LibrariesRepo{db: db}}
}
