package master

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store is the reference data contract shared by the Postgres and in-memory
// implementations.
type Store interface {
	CreateAsrama(ctx context.Context, a Asrama) (Asrama, error)
	ListAsrama(ctx context.Context) ([]Asrama, error)

	CreateSantri(ctx context.Context, s Santri) (Santri, error)
	GetSantri(ctx context.Context, id string) (Santri, error)
	GetSantriByNIS(ctx context.Context, nis string) (Santri, error)
	ListSantri(ctx context.Context, f SantriFilter) ([]Santri, error)
	SetSantriFoto(ctx context.Context, id, url string) error

	UpsertAkun(ctx context.Context, a Akun) (Akun, error)
	GetAkun(ctx context.Context, id string) (Akun, error)
	GetAkunByUsername(ctx context.Context, role Role, username string) (Akun, error)
	ListRecorders(ctx context.Context) ([]Recorder, error)

	UpsertDevice(ctx context.Context, waliID, token string) error
	ListDevices(ctx context.Context, waliID string) ([]Device, error)
}

// Repository persists reference data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

const uniqueViolation = "23505"

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// CreateAsrama inserts a dormitory.
func (r *Repository) CreateAsrama(ctx context.Context, a Asrama) (Asrama, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO asrama (id, nama, gender)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, a.ID, a.Nama, a.Gender)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return Asrama{}, mapErr(err)
	}
	return a, nil
}

// ListAsrama returns all dormitories ordered by name.
func (r *Repository) ListAsrama(ctx context.Context) ([]Asrama, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, nama, gender, created_at FROM asrama ORDER BY nama`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Asrama
	for rows.Next() {
		var a Asrama
		if err := rows.Scan(&a.ID, &a.Nama, &a.Gender, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

const santriColumns = `id, nama, nis, asrama_id, gender, COALESCE(wali_id, ''), COALESCE(foto_url, ''), created_at`

func scanSantri(sc interface{ Scan(...any) error }) (Santri, error) {
	var s Santri
	err := sc.Scan(&s.ID, &s.Nama, &s.NIS, &s.AsramaID, &s.Gender, &s.WaliID, &s.FotoURL, &s.CreatedAt)
	return s, err
}

// CreateSantri inserts a student.
func (r *Repository) CreateSantri(ctx context.Context, s Santri) (Santri, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO santri (id, nama, nis, asrama_id, gender, wali_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING created_at
	`, s.ID, s.Nama, s.NIS, s.AsramaID, s.Gender, s.WaliID)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Santri{}, mapErr(err)
	}
	return s, nil
}

// GetSantri returns a single student by id.
func (r *Repository) GetSantri(ctx context.Context, id string) (Santri, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+santriColumns+` FROM santri WHERE id = $1`, id)
	s, err := scanSantri(row)
	return s, mapErr(err)
}

// GetSantriByNIS returns a single student by registration number.
func (r *Repository) GetSantriByNIS(ctx context.Context, nis string) (Santri, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+santriColumns+` FROM santri WHERE nis = $1`, nis)
	s, err := scanSantri(row)
	return s, mapErr(err)
}

// ListSantri returns students matching the filter, ordered by name.
func (r *Repository) ListSantri(ctx context.Context, f SantriFilter) ([]Santri, error) {
	query := `SELECT ` + santriColumns + ` FROM santri`
	args := []any{}
	clauses := []string{}
	if f.AsramaID != "" {
		args = append(args, f.AsramaID)
		clauses = append(clauses, fmt.Sprintf("asrama_id = $%d", len(args)))
	}
	if f.Gender != "" {
		args = append(args, strings.ToUpper(f.Gender))
		clauses = append(clauses, fmt.Sprintf("gender = $%d", len(args)))
	}
	if f.WaliID != "" {
		args = append(args, f.WaliID)
		clauses = append(clauses, fmt.Sprintf("wali_id = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY nama, nis"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Santri
	for rows.Next() {
		s, err := scanSantri(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// SetSantriFoto stores the photo URL of a student.
func (r *Repository) SetSantriFoto(ctx context.Context, id, url string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE santri SET foto_url = $2 WHERE id = $1`, id, url)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const akunColumns = `id, role, nama, username, secret_hash, COALESCE(asrama_id, ''), created_at`

func scanAkun(sc interface{ Scan(...any) error }) (Akun, error) {
	var a Akun
	err := sc.Scan(&a.ID, &a.Role, &a.Nama, &a.Username, &a.SecretHash, &a.AsramaID, &a.CreatedAt)
	return a, err
}

// UpsertAkun creates an account or updates the one with the same role and
// username.
func (r *Repository) UpsertAkun(ctx context.Context, a Akun) (Akun, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO akun (id, role, nama, username, secret_hash, asrama_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		ON CONFLICT (role, username) DO UPDATE SET
			nama = EXCLUDED.nama,
			secret_hash = EXCLUDED.secret_hash,
			asrama_id = EXCLUDED.asrama_id
		RETURNING `+akunColumns,
		a.ID, string(a.Role), a.Nama, a.Username, a.SecretHash, a.AsramaID)
	out, err := scanAkun(row)
	if err != nil {
		return Akun{}, mapErr(err)
	}
	return out, nil
}

// GetAkun returns an account by id.
func (r *Repository) GetAkun(ctx context.Context, id string) (Akun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+akunColumns+` FROM akun WHERE id = $1`, id)
	a, err := scanAkun(row)
	return a, mapErr(err)
}

// GetAkunByUsername returns the account of a role with the given username.
func (r *Repository) GetAkunByUsername(ctx context.Context, role Role, username string) (Akun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+akunColumns+` FROM akun WHERE role = $1 AND username = $2`, string(role), username)
	a, err := scanAkun(row)
	return a, mapErr(err)
}

// ListRecorders returns every account that can take attendance.
func (r *Repository) ListRecorders(ctx context.Context) ([]Recorder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, nama FROM akun
		WHERE role IN ($1, $2)
		ORDER BY nama
	`, string(RolePengabsen), string(RolePembimbing))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Recorder
	for rows.Next() {
		var rec Recorder
		if err := rows.Scan(&rec.ID, &rec.Nama); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// UpsertDevice ensures a push token is registered to a guardian.
func (r *Repository) UpsertDevice(ctx context.Context, waliID, token string) error {
	if waliID == "" || token == "" {
		return errors.New("wali id and token required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wali_devices (wali_id, token, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET wali_id = EXCLUDED.wali_id
	`, waliID, token, time.Now().UTC())
	return err
}

// ListDevices returns the push tokens of a guardian.
func (r *Repository) ListDevices(ctx context.Context, waliID string) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT wali_id, token, created_at FROM wali_devices
		WHERE wali_id = $1
		ORDER BY created_at
	`, waliID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.WaliID, &d.Token, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
