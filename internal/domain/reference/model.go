package reference

import "time"

type Facility struct {
	ID        int       `json:"id"`
	NameEn    string    `json:"nameEn"`
	NameAr    *string   `json:"nameAr"`
	Code      string    `json:"code"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Category is the legacy incident classification. Free-text ovrCategory on
// the incident supersedes it, but every incident still references one.
type Category struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}
