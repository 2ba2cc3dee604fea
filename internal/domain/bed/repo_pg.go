package bed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bedtrack/bedtrack/internal/domain/user"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Bed Repository ===========

type repoPG struct{ db queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{db: pool} }

const bedCols = `b.id, b.code, b.ward, b.status, b.version, b.created_at, b.updated_at,
	u.id, u.name, u.email, u.role`

const bedFrom = ` FROM bed b LEFT JOIN app_user u ON u.id = b.patient_id `

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	var occID *uuid.UUID
	var occName, occEmail, occRole *string
	err := row.Scan(&b.ID, &b.Code, &b.Ward, &b.Status, &b.Version, &b.CreatedAt, &b.UpdatedAt,
		&occID, &occName, &occEmail, &occRole)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if occID != nil {
		b.Patient = &user.Ref{ID: *occID, Name: *occName, Email: *occEmail, Role: *occRole}
	}
	return &b, nil
}

func (r *repoPG) Create(ctx context.Context, b *Bed) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.Code = strings.ToUpper(b.Code)
	err := r.db.QueryRow(ctx, `
		INSERT INTO bed (id, code, ward, status)
		VALUES ($1, $2, $3, $4)
		RETURNING version, created_at, updated_at`,
		b.ID, b.Code, b.Ward, b.Status).Scan(&b.Version, &b.CreatedAt, &b.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateCode
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.db.QueryRow(ctx, `SELECT `+bedCols+bedFrom+`WHERE b.id = $1`, id))
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*Bed, error) {
	return scanBed(r.db.QueryRow(ctx,
		`SELECT `+bedCols+bedFrom+`WHERE b.code = $1`, strings.ToUpper(code)))
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Bed, error) {
	query := `SELECT ` + bedCols + bedFrom + `WHERE 1=1`
	args := []interface{}{}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND b.status = $%d", len(args))
	}
	if f.Ward != "" {
		args = append(args, f.Ward)
		query += fmt.Sprintf(" AND b.ward = $%d", len(args))
	}
	query += ` ORDER BY b.ward, b.code`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beds []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		beds = append(beds, b)
	}
	return beds, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, b *Bed, expectedVersion *int64) error {
	var patientID *uuid.UUID
	if b.Patient != nil {
		patientID = &b.Patient.ID
	}

	query := `
		UPDATE bed SET status = $2, patient_id = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1`
	args := []interface{}{b.ID, b.Status, patientID}
	if expectedVersion != nil {
		args = append(args, *expectedVersion)
		query += fmt.Sprintf(" AND version = $%d", len(args))
	}
	query += ` RETURNING version, updated_at`

	err := r.db.QueryRow(ctx, query, args...).Scan(&b.Version, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		if expectedVersion != nil {
			return ErrVersionConflict
		}
		return ErrNotFound
	}
	return err
}

func (r *repoPG) WardOccupancy(ctx context.Context, ward string) (WardOccupancy, error) {
	occ := WardOccupancy{Ward: ward}
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'occupied')
		FROM bed WHERE ward = $1`, ward).Scan(&occ.Total, &occ.Occupied)
	return occ, err
}

// =========== Occupancy Log Repository ===========

type logRepoPG struct{ db queryable }

func NewLogRepoPG(pool *pgxpool.Pool) LogRepository { return &logRepoPG{db: pool} }

func (r *logRepoPG) Append(ctx context.Context, e *OccupancyLogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO occupancy_log (id, bed_id, user_id, status_change)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		e.ID, e.BedID, e.UserID, e.StatusChange).Scan(&e.CreatedAt)
}

const logCols = `l.id, l.bed_id, b.code, l.user_id, l.status_change, l.created_at`

func (r *logRepoPG) list(ctx context.Context, where string, args ...interface{}) ([]*OccupancyLogEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+logCols+`
		FROM occupancy_log l JOIN bed b ON b.id = l.bed_id
		`+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*OccupancyLogEntry
	for rows.Next() {
		var e OccupancyLogEntry
		if err := rows.Scan(&e.ID, &e.BedID, &e.BedCode, &e.UserID, &e.StatusChange, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *logRepoPG) List(ctx context.Context, limit, offset int) ([]*OccupancyLogEntry, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM occupancy_log`).Scan(&total); err != nil {
		return nil, 0, err
	}
	entries, err := r.list(ctx, `ORDER BY l.created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	return entries, total, err
}

func (r *logRepoPG) ListByBed(ctx context.Context, bedID uuid.UUID, limit, offset int) ([]*OccupancyLogEntry, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM occupancy_log WHERE bed_id = $1`, bedID).Scan(&total); err != nil {
		return nil, 0, err
	}
	entries, err := r.list(ctx,
		`WHERE l.bed_id = $1 ORDER BY l.created_at DESC LIMIT $2 OFFSET $3`, bedID, limit, offset)
	return entries, total, err
}
