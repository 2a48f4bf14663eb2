package comment

import (
	"time"

	"github.com/google/uuid"
)

// Comment is one entry in an incident's discussion log. System entries
// written by the workflow carry the acting user like any other comment.
type Comment struct {
	ID         int64      `json:"id"`
	IncidentID int64      `json:"incidentId"`
	UserID     *uuid.UUID `json:"userId"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"createdAt"`
	User       *Author    `json:"user,omitempty"`
}

// Author is the joined user of a comment. It is nil once the user has been
// deleted.
type Author struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     string  `json:"email"`
}
