package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/r3hc/ovr/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const logColumns = `a.id, a.user_id, u.email, a.action, a.resource_type, a.resource_id,
	a.details, a.ip_address, a.user_agent, a.request_id, a.created_at`

func (r *repoPG) Insert(ctx context.Context, l *Log) error {
	var details []byte
	if len(l.Details) > 0 {
		b, err := json.Marshal(l.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = b
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO audit_logs (user_id, action, resource_type, resource_id, details,
			ip_address, user_agent, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		l.UserID, l.Action, l.ResourceType, l.ResourceID, details,
		l.IPAddress, l.UserAgent, l.RequestID,
	).Scan(&l.ID, &l.CreatedAt)
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Log, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs a`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM audit_logs a LEFT JOIN users u ON u.id = a.user_id%s
		ORDER BY a.created_at DESC, a.id DESC LIMIT $%d OFFSET $%d`,
		logColumns, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var items []*Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}

func buildWhere(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ResourceType != "" {
		add("a.resource_type = $%d", f.ResourceType)
	}
	if f.ResourceID != "" {
		add("a.resource_id = $%d", f.ResourceID)
	}
	if f.UserID != nil {
		add("a.user_id = $%d", *f.UserID)
	}
	if f.Action != "" {
		add("a.action = $%d", f.Action)
	}
	if f.From != nil {
		add("a.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("a.created_at < $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanLog(row pgx.Row) (*Log, error) {
	var (
		l       Log
		details []byte
	)
	err := row.Scan(&l.ID, &l.UserID, &l.UserEmail, &l.Action, &l.ResourceType, &l.ResourceID,
		&details, &l.IPAddress, &l.UserAgent, &l.RequestID, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &l.Details); err != nil {
			return nil, fmt.Errorf("decode audit details: %w", err)
		}
	}
	return &l, nil
}

func (r *repoPG) DeleteForResource(ctx context.Context, resourceType, resourceID string) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM audit_logs WHERE resource_type = $1 AND resource_id = $2`, resourceType, resourceID)
	if err != nil {
		return 0, fmt.Errorf("delete audit logs for %s %s: %w", resourceType, resourceID, err)
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) DeleteForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM audit_logs WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete audit logs for user %s: %w", userID, err)
	}
	return tag.RowsAffected(), nil
}
