package comment

import "context"

type Repository interface {
	Create(ctx context.Context, c *Comment) error
	ListByIncident(ctx context.Context, incidentID int64) ([]*Comment, error)
	DeleteByIncident(ctx context.Context, incidentID int64) (int64, error)
}
