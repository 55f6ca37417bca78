package admin

import "time"

// Stats is the platform-wide dashboard summary.
type Stats struct {
	TotalUsers        int64 `json:"totalUsers"`
	TotalProjects     int64 `json:"totalProjects"`
	TotalVisits       int64 `json:"totalVisits"`
	TotalStorageBytes int64 `json:"totalStorageBytes"`
	ActiveToday       int64 `json:"activeToday"`
	ActiveNow         int64 `json:"activeNow"`
}

// UserRow is a user as listed in the admin console, with per-user aggregates
// computed in SQL.
type UserRow struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	ProjectCount int64      `json:"projectCount"`
	TotalSize    int64      `json:"totalSize"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// ProjectRow is a project as listed in the admin console, joined with its
// owner's username.
type ProjectRow struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	OwnerUsername string    `json:"ownerUsername"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	EntryFile     string    `json:"entryFile"`
	Size          int64     `json:"size"`
	VisitCount    int64     `json:"visitCount"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}
