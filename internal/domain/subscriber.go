package domain

import (
	"net/url"
	"strings"
	"time"
)

// Subscriber represents a single email recipient within a workspace.
//
// FirstName and LastName are nullable at the storage layer: an update that
// omits them persists NULL, while an insert persists the empty string. The
// pointer fields preserve that distinction when rows are read back.
type Subscriber struct {
	ID             int64      `json:"id" db:"id"`
	WorkspaceID    int64      `json:"workspace_id" db:"workspace_id"`
	Email          string     `json:"email" db:"email"`
	FirstName      *string    `json:"first_name" db:"first_name"`
	LastName       *string    `json:"last_name" db:"last_name"`
	Meta           string     `json:"-" db:"meta"`
	Hash           string     `json:"hash,omitempty" db:"hash"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at" db:"unsubscribed_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Tag groups subscribers within a workspace.
type Tag struct {
	ID          int64     `json:"id" db:"id"`
	WorkspaceID int64     `json:"workspace_id" db:"workspace_id"`
	Name        string    `json:"name" db:"name"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ValidEmail reports whether addr is an acceptable subscriber address.
// Deliberately lenient beyond structural checks: the mail pipeline is the
// final arbiter of deliverability.
func ValidEmail(addr string) bool {
	addr = strings.TrimSpace(addr)
	if len(addr) < 3 || len(addr) > 254 {
		return false
	}
	if strings.ContainsAny(addr, " \t") {
		return false
	}

	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return false
	}

	local, dom := parts[0], parts[1]
	if len(local) == 0 || len(local) > 64 {
		return false
	}
	if len(dom) == 0 || len(dom) > 253 {
		return false
	}
	if !strings.Contains(dom, ".") {
		return false
	}

	_, err := url.Parse("mailto:" + addr)
	return err == nil
}
