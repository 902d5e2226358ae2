// Package model defines domain entities shared by the server, the client core and the CLI.
package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
)

// TokenPair is the session credential pair issued on login or refresh.
// Access and refresh tokens travel and persist together.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"` // access token lifetime, seconds
}

// Complete reports whether both tokens are present.
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account stored on the server. Passwords are kept only as Argon2id hashes.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Bio       string    `json:"bio,omitempty"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	PwdHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Role   string
	Search string // username, email or full name
	Page   int
	Size   int
}

// RefreshToken is the server-side record of an issued refresh token.
// Only the sha256 hash of the secret is stored.
type RefreshToken struct {
	Hash      string
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Entry is a single content record of some kind (blog post, event, product, ...).
// Kind-specific fields live in Data as opaque JSON.
type Entry struct {
	ID        uuid.UUID       `json:"id"`
	Kind      string          `json:"kind"`
	Slug      string          `json:"slug"`
	Title     string          `json:"title"`
	Status    string          `json:"status"`
	Featured  bool            `json:"featured"`
	Data      json.RawMessage `json:"data,omitempty"`
	Ver       int64           `json:"ver"`
	CreatedBy *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// EntryInput is a create/update intent. BaseVer is required for updates (optimistic concurrency).
type EntryInput struct {
	Slug     string          `json:"slug,omitempty"`
	Title    string          `json:"title"`
	Status   string          `json:"status,omitempty"`
	Featured bool            `json:"featured"`
	Data     json.RawMessage `json:"data,omitempty"`
	BaseVer  int64           `json:"base_ver,omitempty"`
}

// EntryFilter narrows a listing.
type EntryFilter struct {
	Kind     string
	Status   string
	Featured *bool
	Search   string
	Page     int
	Size     int
}

// Registration is a sign-up for an event entry. Registering needs no account.
type Registration struct {
	ID                  uuid.UUID          `json:"id"`
	EventID             uuid.UUID          `json:"event_id"`
	Name                string             `json:"name"`
	Email               string             `json:"email"`
	Phone               string             `json:"phone,omitempty"`
	Organization        string             `json:"organization,omitempty"`
	ExperienceLevel     string             `json:"experience_level,omitempty"`
	Interests           string             `json:"interests,omitempty"`
	DietaryRestrictions string             `json:"dietary_restrictions,omitempty"`
	SpecialRequirements string             `json:"special_requirements,omitempty"`
	Status              string             `json:"registration_status"`
	CreatedAt           time.Time          `json:"created_at"`
	Event               *RegistrationEvent `json:"event,omitempty"`
}

// RegistrationEvent summarizes the event in admin listings.
type RegistrationEvent struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	StartDate string    `json:"start_date,omitempty"`
	Location  string    `json:"location,omitempty"`
}

// RegistrationInput is the public registration form.
type RegistrationInput struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Phone               string `json:"phone,omitempty"`
	Organization        string `json:"organization,omitempty"`
	ExperienceLevel     string `json:"experience_level,omitempty"`
	Interests           string `json:"interests,omitempty"`
	DietaryRestrictions string `json:"dietary_restrictions,omitempty"`
	SpecialRequirements string `json:"special_requirements,omitempty"`
}

// RegistrationFilter narrows the admin registration listing.
type RegistrationFilter struct {
	EventID *uuid.UUID
	Status  string
	Search  string // name, email or organization
	Page    int
	Size    int
}

// Page is a paginated listing.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Pages int `json:"pages"`
}

// NewPage computes the page count for total items at the given size.
func NewPage[T any](items []T, total, page, size int) Page[T] {
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: page, Size: size, Pages: pages}
}

// APIResponse is the generic acknowledgement body used by mutating endpoints.
type APIResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Upload describes a stored file.
type Upload struct {
	Filename     string `json:"filename"`
	URL          string `json:"url"`
	Category     string `json:"category,omitempty"`
	OriginalName string `json:"original_name,omitempty"`
	Size         int64  `json:"size"`
}
