package incident

import "context"

type Repository interface {
	Create(ctx context.Context, inc *Incident) error
	GetByID(ctx context.Context, id int64) (*Incident, error)
	GetByOVRID(ctx context.Context, ovrID string) (*Incident, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Incident, int, error)
	// Update persists the workflow and editable fields and bumps updated_at.
	// The row is written only while its stored status is still fromStatus;
	// otherwise Update returns a conflict and changes nothing.
	Update(ctx context.Context, inc *Incident, fromStatus string) error
	Delete(ctx context.Context, id int64) error
	Metrics(ctx context.Context, facilityID *int) (*Metrics, error)
}

// SequenceRepository hands out per-bucket OVR sequence numbers.
type SequenceRepository interface {
	Next(ctx context.Context, bucket string) (int, error)
}
