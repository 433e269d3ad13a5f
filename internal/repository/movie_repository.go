package repository

import (
	"context"
	"database/sql"
	"errors"

	"cinema-reservation/internal/model"
)

// MovieRepo provides access to the 'movies' table.  Movies are
// static reference data; there is no invariant logic here.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo constructs a MovieRepo with the given DB handle.
func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

// Create inserts a movie and populates its generated ID.
func (r *MovieRepo) Create(ctx context.Context, m *model.Movie) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO movies (title, year, director, poster) VALUES (?, ?, ?, ?)`,
		m.Title, m.Year, m.Director, m.Poster)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// GetByID retrieves a movie by its ID.  Returns ErrNotFound when no
// row matches.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
	var m model.Movie
	var poster sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, year, director, poster FROM movies WHERE id = ?`,
		id).Scan(&m.ID, &m.Title, &m.Year, &m.Director, &poster)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if poster.Valid {
		p := poster.String
		m.Poster = &p
	}
	return &m, nil
}

// List returns all movies ordered by title.
func (r *MovieRepo) List(ctx context.Context) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, year, director, poster FROM movies ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Movie, 0)
	for rows.Next() {
		var m model.Movie
		var poster sql.NullString
		if err := rows.Scan(&m.ID, &m.Title, &m.Year, &m.Director, &poster); err != nil {
			return nil, err
		}
		if poster.Valid {
			p := poster.String
			m.Poster = &p
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
