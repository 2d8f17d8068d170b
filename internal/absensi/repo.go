package absensi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists attendance events.
type Store interface {
	// Insert writes e unless an event for the same santri, tanggal and waktu
	// exists, in which case the stored event is returned with created=false.
	Insert(ctx context.Context, e Event) (stored Event, created bool, err error)
	Get(ctx context.Context, id string) (Event, error)
	List(ctx context.Context, f EventFilter) ([]Event, error)
}

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

const eventColumns = `id, to_char(tanggal, 'YYYY-MM-DD'), waktu_sholat, status, santri_id, COALESCE(pengabsen_id, ''), created_at`

func scanEvent(sc interface{ Scan(...any) error }) (Event, error) {
	var e Event
	err := sc.Scan(&e.ID, &e.Tanggal, &e.Waktu, &e.Status, &e.SantriID, &e.PengabsenID, &e.CreatedAt)
	return e, err
}

// Insert writes a new event, keyed on (santri_id, tanggal, waktu_sholat).
func (r *Repository) Insert(ctx context.Context, e Event) (Event, bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO absensi (id, tanggal, waktu_sholat, status, santri_id, pengabsen_id, created_at)
		VALUES ($1, $2::date, $3, $4, $5, NULLIF($6, ''), $7)
		ON CONFLICT (santri_id, tanggal, waktu_sholat) DO NOTHING
		RETURNING `+eventColumns,
		e.ID, e.Tanggal, string(e.Waktu), string(e.Status), e.SantriID, e.PengabsenID, e.CreatedAt)
	stored, err := scanEvent(row)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Event{}, false, err
	}

	row = r.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM absensi
		WHERE santri_id = $1 AND tanggal = $2::date AND waktu_sholat = $3
	`, e.SantriID, e.Tanggal, string(e.Waktu))
	stored, err = scanEvent(row)
	if err != nil {
		return Event{}, false, err
	}
	return stored, false, nil
}

// Get returns a single event by id.
func (r *Repository) Get(ctx context.Context, id string) (Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM absensi WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrEventNotFound
	}
	return e, err
}

// List returns events in the inclusive day range, oldest first.
func (r *Repository) List(ctx context.Context, f EventFilter) ([]Event, error) {
	args := []any{f.Start, f.End}
	clauses := []string{"tanggal >= $1::date", "tanggal <= $2::date"}
	if len(f.SantriIDs) > 0 {
		args = append(args, f.SantriIDs)
		clauses = append(clauses, fmt.Sprintf("santri_id = ANY($%d)", len(args)))
	}
	query := `SELECT ` + eventColumns + ` FROM absensi WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY tanggal, created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
