package alert

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ db queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{db: pool} }

const alertCols = `id, type, severity, message, bed_id, request_id, target_roles, read, created_at`

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.Type, &a.Severity, &a.Message, &a.BedID, &a.RequestID,
		&a.TargetRoles, &a.Read, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.TargetRoles == nil {
		a.TargetRoles = []string{}
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO alert (id, type, severity, message, bed_id, request_id, target_roles)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		a.ID, a.Type, a.Severity, a.Message, a.BedID, a.RequestID, a.TargetRoles).
		Scan(&a.CreatedAt)
}

func (r *repoPG) ListForRole(ctx context.Context, role string, limit, offset int) ([]*Alert, int, error) {
	const where = ` WHERE target_roles = '{}' OR $1 = ANY(target_roles)`

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM alert`+where, role).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+alertCols+` FROM alert`+where+`
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		alerts = append(alerts, a)
	}
	return alerts, total, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return scanAlert(r.db.QueryRow(ctx, `SELECT `+alertCols+` FROM alert WHERE id = $1`, id))
}

func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE alert SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
