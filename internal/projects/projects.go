package projects

import (
	"errors"
	"regexp"
	"time"
)

const (
	StatusActive   = "ACTIVE"
	StatusDisabled = "DISABLED"
)

var (
	ErrNotFound  = errors.New("project not found")
	ErrNameTaken = errors.New("project name already exists")
)

// Project names become URL path segments and must stay clean: lowercase
// alphanumerics and interior hyphens only.
var namePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,48}[a-z0-9])?$`)

func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

type Project struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StoragePath string    `json:"-"`
	EntryFile   string    `json:"entryFile"`
	Size        int64     `json:"size"`
	VisitCount  int64     `json:"visitCount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SiteRecord is the slice of a project the serving path needs, joined with
// its owner by username.
type SiteRecord struct {
	ProjectID   string `json:"projectId"`
	OwnerID     string `json:"ownerId"`
	StoragePath string `json:"storagePath"`
	EntryFile   string `json:"entryFile"`
	Status      string `json:"status"`
}

func (s *SiteRecord) Disabled() bool { return s.Status == StatusDisabled }
