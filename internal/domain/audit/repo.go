package audit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, l *Log) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Log, int, error)
	DeleteForResource(ctx context.Context, resourceType, resourceID string) (int64, error)
	DeleteForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}
