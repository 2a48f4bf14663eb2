package comment

import (
	"context"
	"fmt"

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

func (r *repoPG) Create(ctx context.Context, c *Comment) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO comments (incident_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		c.IncidentID, c.UserID, c.Content,
	).Scan(&c.ID, &c.CreatedAt)
}

func (r *repoPG) ListByIncident(ctx context.Context, incidentID int64) ([]*Comment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT c.id, c.incident_id, c.user_id, c.content, c.created_at,
			u.first_name, u.last_name, u.email
		FROM comments c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.incident_id = $1
		ORDER BY c.created_at ASC, c.id ASC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var items []*Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func scanComment(row pgx.Row) (*Comment, error) {
	var (
		c         Comment
		firstName *string
		lastName  *string
		email     *string
	)
	if err := row.Scan(&c.ID, &c.IncidentID, &c.UserID, &c.Content, &c.CreatedAt,
		&firstName, &lastName, &email); err != nil {
		return nil, fmt.Errorf("scan comment: %w", err)
	}
	if email != nil {
		c.User = &Author{FirstName: firstName, LastName: lastName, Email: *email}
	}
	return &c, nil
}

func (r *repoPG) DeleteByIncident(ctx context.Context, incidentID int64) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM comments WHERE incident_id = $1`, incidentID)
	if err != nil {
		return 0, fmt.Errorf("delete comments: %w", err)
	}
	return tag.RowsAffected(), nil
}
