package request

import (
	"context"
	"errors"
	"fmt"

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

type repoPG struct{ db queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{db: pool} }

const requestCols = `r.id, r.location, r.ward, r.priority, r.status, r.description,
	r.created_at, r.updated_at, u.id, u.name, u.email, u.role`

const requestFrom = ` FROM emergency_request r JOIN app_user u ON u.id = r.patient_id `

func scanRequest(row pgx.Row) (*Request, error) {
	var req Request
	var ward, description *string
	var p user.Ref
	err := row.Scan(&req.ID, &req.Location, &ward, &req.Priority, &req.Status, &description,
		&req.CreatedAt, &req.UpdatedAt, &p.ID, &p.Name, &p.Email, &p.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ward != nil {
		req.Ward = *ward
	}
	if description != nil {
		req.Description = *description
	}
	req.Patient = &p
	return &req, nil
}

func (r *repoPG) Create(ctx context.Context, req *Request) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO emergency_request (id, patient_id, location, ward, priority, status, description)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''))
		RETURNING created_at, updated_at`,
		req.ID, req.Patient.ID, req.Location, req.Ward, req.Priority, req.Status, req.Description).
		Scan(&req.CreatedAt, &req.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.db.QueryRow(ctx, `SELECT `+requestCols+requestFrom+`WHERE r.id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Request, int, error) {
	where := ""
	countArgs := []interface{}{}
	args := []interface{}{}
	if status != "" {
		where = ` WHERE r.status = $1`
		countArgs = append(countArgs, status)
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM emergency_request r`+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d`,
		requestCols, requestFrom, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}
	return requests, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, req *Request) error {
	err := r.db.QueryRow(ctx, `
		UPDATE emergency_request
		SET status = $2, location = $3, ward = NULLIF($4, ''),
			priority = $5, description = NULLIF($6, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		req.ID, req.Status, req.Location, req.Ward, req.Priority, req.Description).
		Scan(&req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM emergency_request WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
