package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/janisto/astro-identity/internal/service/profile"
)

// ErrInvalidName is returned by Rename when a provided name fails validation.
// The returned error also wraps the ValidationErrors.
var ErrInvalidName = errors.New("invalid name")

// Profile returns the stored profile.
func (s *Service) Profile(ctx context.Context, id string) (*profile.Profile, error) {
	p, err := call(ctx, s.timeout, func(ctx context.Context) (*profile.Profile, error) {
		return s.store.Get(ctx, id)
	})
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		s.observer.RecordError(ctx, OpGetProfile, err)
	}
	return p, err
}

// DisplayInfo returns the disambiguated display projection of one profile.
func (s *Service) DisplayInfo(ctx context.Context, id string) (UserDisplayInfo, error) {
	p, err := s.Profile(ctx, id)
	if err != nil {
		return UserDisplayInfo{}, err
	}
	group, err := s.listByName(ctx, p.FullName)
	if err != nil {
		return UserDisplayInfo{}, err
	}
	return Display(*p, group), nil
}

// DisplayByName returns the display projection of every profile whose name
// matches fullName, oldest registration first.
func (s *Service) DisplayByName(ctx context.Context, fullName string) ([]UserDisplayInfo, error) {
	group, err := s.listByName(ctx, fullName)
	if err != nil {
		return nil, err
	}
	out := make([]UserDisplayInfo, len(group))
	for i, p := range group {
		out[i] = Display(p, group)
	}
	return out, nil
}

// Rename replaces the provided name parts. Nil parts are kept. The store
// recomputes the full name.
func (s *Service) Rename(ctx context.Context, id string, first, last *string) (*profile.Profile, error) {
	errs := ValidationErrors{}
	if first != nil {
		if msg := checkName(*first); msg != "" {
			errs[FieldFirstName] = msg
		}
	}
	if last != nil {
		if msg := checkName(*last); msg != "" {
			errs[FieldLastName] = msg
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidName, errs)
	}
	if first == nil && last == nil {
		return s.Profile(ctx, id)
	}

	p, err := call(ctx, s.timeout, func(ctx context.Context) (*profile.Profile, error) {
		return s.store.UpdateName(ctx, id, profile.NameUpdate{FirstName: first, LastName: last})
	})
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			s.observer.RecordError(ctx, OpRename, err)
		}
		return nil, err
	}
	s.observer.RecordEvent(ctx, EventRenamed, map[string]string{
		"profile_id": p.ID,
		"user_id":    p.UserID,
	})
	return p, nil
}

// ChangeStatus moves a profile to status along active, inactive, suspended.
func (s *Service) ChangeStatus(ctx context.Context, id string, status profile.Status) (*profile.Profile, error) {
	if !status.Valid() {
		return nil, profile.ErrInvalidTransition
	}
	p, err := call(ctx, s.timeout, func(ctx context.Context) (*profile.Profile, error) {
		return s.store.SetStatus(ctx, id, status)
	})
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) && !errors.Is(err, profile.ErrInvalidTransition) {
			s.observer.RecordError(ctx, OpChangeStatus, err)
		}
		return nil, err
	}
	s.observer.RecordEvent(ctx, EventStatusChanged, map[string]string{
		"profile_id": p.ID,
		"user_id":    p.UserID,
		"status":     p.Status.String(),
	})
	return p, nil
}

func (s *Service) listByName(ctx context.Context, fullName string) ([]profile.Profile, error) {
	group, err := call(ctx, s.timeout, func(ctx context.Context) ([]profile.Profile, error) {
		return s.store.ListByFullName(ctx, fullName)
	})
	if err != nil {
		s.observer.RecordError(ctx, OpDisplay, err)
	}
	return group, err
}
