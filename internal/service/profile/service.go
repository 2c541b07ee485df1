package profile

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Store errors
var (
	ErrNotFound          = errors.New("profile not found")
	ErrConflict          = errors.New("profile uniqueness conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Profile is the canonical identity record.
//
// Optional fields are nil when absent. FullName is derived from FirstName and
// LastName and must only be changed through SetName.
type Profile struct {
	ID               string
	UserID           string
	FirstName        string
	LastName         string
	FullName         string
	Email            string
	Phone            *string
	AvatarURL        *string
	Bio              *string
	BirthDate        *string
	BirthTime        *string
	BirthPlace       *string
	EmailVerified    bool
	ProfileCompleted bool
	Status           Status
	Metadata         map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastSeenAt       *time.Time
}

// SetName replaces the name parts and recomputes FullName.
func (p *Profile) SetName(first, last string) {
	p.FirstName = strings.TrimSpace(first)
	p.LastName = strings.TrimSpace(last)
	p.FullName = JoinName(p.FirstName, p.LastName)
}

// NameKey returns the folded full name used for collision lookups.
func (p *Profile) NameKey() string {
	return FoldName(p.FullName)
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Phone = cloneString(p.Phone)
	c.AvatarURL = cloneString(p.AvatarURL)
	c.Bio = cloneString(p.Bio)
	c.BirthDate = cloneString(p.BirthDate)
	c.BirthTime = cloneString(p.BirthTime)
	c.BirthPlace = cloneString(p.BirthPlace)
	if p.LastSeenAt != nil {
		t := *p.LastSeenAt
		c.LastSeenAt = &t
	}
	if p.Metadata != nil {
		c.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// JoinName builds a full name from its parts with a single separating space.
func JoinName(first, last string) string {
	return first + " " + last
}

// NormalizeEmail lowercases and trims an email address. The result is the
// uniqueness key; profiles keep the address as submitted.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NameUpdate carries optional replacements for the name parts.
type NameUpdate struct {
	FirstName *string
	LastName  *string
}

// Store defines profile persistence.
//
// Implementations must:
//   - store Email trimmed but otherwise as given, and key email uniqueness
//     and FindByEmail on NormalizeEmail
//   - make InsertIfAbsent atomic: a profile whose ID, Email or UserID already
//     exists is rejected with ErrConflict and nothing is written
//   - match ListByFullName case- and diacritic-insensitively (see FoldName)
//   - recompute FullName on UpdateName
type Store interface {
	Get(ctx context.Context, id string) (*Profile, error)
	FindByEmail(ctx context.Context, email string) (*Profile, error)
	FindByUserID(ctx context.Context, userID string) (*Profile, error)
	InsertIfAbsent(ctx context.Context, p *Profile) error
	ListByFullName(ctx context.Context, fullName string) ([]Profile, error)
	UpdateName(ctx context.Context, id string, update NameUpdate) (*Profile, error)
	SetStatus(ctx context.Context, id string, status Status) (*Profile, error)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// applyNameUpdate applies update to p and refreshes UpdatedAt.
func applyNameUpdate(p *Profile, update NameUpdate, now time.Time) {
	first, last := p.FirstName, p.LastName
	if update.FirstName != nil {
		first = *update.FirstName
	}
	if update.LastName != nil {
		last = *update.LastName
	}
	p.SetName(first, last)
	p.UpdatedAt = now
}

// applyStatus validates and applies a status transition.
func applyStatus(p *Profile, status Status, now time.Time) error {
	if !p.Status.CanTransition(status) {
		return ErrInvalidTransition
	}
	if p.Status == status {
		return nil
	}
	p.Status = status
	p.UpdatedAt = now
	return nil
}
