package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/janisto/astro-identity/internal/service/profile"
)

func seed(t *testing.T, store profile.Store, profiles ...profile.Profile) {
	t.Helper()
	for i := range profiles {
		if err := store.InsertIfAbsent(context.Background(), &profiles[i]); err != nil {
			t.Fatalf("seed %s: %v", profiles[i].ID, err)
		}
	}
}

func TestDisplayInfo(t *testing.T) {
	store := profile.NewMemoryStore()
	seed(t, store,
		mkProfile("p-1", "u-1", "Ayşe", "Yılmaz", "ayse@a.com", day(1)),
		mkProfile("p-2", "u-2", "Ayse", "Yilmaz", "ay@b.com", day(2)),
		mkProfile("p-3", "u-3", "Ali", "Demir", "ali@demir.com", day(3)),
	)
	svc, _ := newTestService(store, Options{})
	ctx := context.Background()

	info, err := svc.DisplayInfo(ctx, "p-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.DisplayName != "Ayse Yilmaz (02-01-2024)" || info.Method != MethodRegistrationDate {
		t.Fatalf("unexpected display info %+v", info)
	}

	solo, err := svc.DisplayInfo(ctx, "p-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if solo.DisplayName != "Ali Demir" || solo.Method.Valid() {
		t.Fatalf("expected plain name without method, got %+v", solo)
	}

	if _, err := svc.DisplayInfo(ctx, "missing"); !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDisplayByName(t *testing.T) {
	store := profile.NewMemoryStore()
	seed(t, store,
		mkProfile("p-3", "u-3", "Ayşe", "Yılmaz", "c@x.com", day(3)),
		mkProfile("p-1", "u-1", "Ayşe", "Yılmaz", "a@x.com", day(1)),
		mkProfile("p-2", "u-2", "Ayşe", "Yılmaz", "b@x.com", day(2)),
	)
	svc, _ := newTestService(store, Options{})

	infos, err := svc.DisplayByName(context.Background(), "ayse yilmaz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(infos))
	}
	seen := map[string]bool{}
	for i, want := range []string{"p-1", "p-2", "p-3"} {
		if infos[i].ProfileID != want {
			t.Fatalf("expected creation order, got %s at %d", infos[i].ProfileID, i)
		}
		if seen[infos[i].DisplayName] {
			t.Fatalf("duplicate display name %q", infos[i].DisplayName)
		}
		seen[infos[i].DisplayName] = true
	}
}

func TestRenameKeepsFullNameConsistent(t *testing.T) {
	store := profile.NewMemoryStore()
	seed(t, store, mkProfile("p-1", "u-1", "Ali", "Demir", "ali@demir.com", day(1)))
	svc, obs := newTestService(store, Options{})
	ctx := context.Background()

	p, err := svc.Rename(ctx, "p-1", nil, strPtr("Yıldız"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FullName != "Ali Yıldız" || p.FullName != p.FirstName+" "+p.LastName {
		t.Fatalf("full name out of sync: %+v", p)
	}

	stored, _ := store.Get(ctx, "p-1")
	if stored.FullName != "Ali Yıldız" {
		t.Fatalf("expected stored full name updated, got %q", stored.FullName)
	}
	if len(obs.events) != 1 || obs.events[0] != EventRenamed {
		t.Fatalf("expected rename event, got %v", obs.events)
	}
}

func TestRenameRejectsInvalidName(t *testing.T) {
	store := profile.NewMemoryStore()
	seed(t, store, mkProfile("p-1", "u-1", "Ali", "Demir", "ali@demir.com", day(1)))
	svc, _ := newTestService(store, Options{})

	_, err := svc.Rename(context.Background(), "p-1", strPtr("Ali2"), nil)
	if !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || !verrs.Has(FieldFirstName) {
		t.Fatalf("expected wrapped validation errors, got %v", err)
	}

	stored, _ := store.Get(context.Background(), "p-1")
	if stored.FirstName != "Ali" {
		t.Fatalf("expected no change, got %q", stored.FirstName)
	}
}

func TestRenameNotFound(t *testing.T) {
	svc, obs := newTestService(profile.NewMemoryStore(), Options{})
	_, err := svc.Rename(context.Background(), "missing", strPtr("Veli"), nil)
	if !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(obs.errs) != 0 {
		t.Fatalf("did not expect not-found to be recorded as an error, got %v", obs.errs)
	}
}

func TestChangeStatus(t *testing.T) {
	store := profile.NewMemoryStore()
	seed(t, store, mkProfile("p-1", "u-1", "Ali", "Demir", "ali@demir.com", day(1)))
	svc, obs := newTestService(store, Options{})
	ctx := context.Background()

	if _, err := svc.ChangeStatus(ctx, "p-1", profile.StatusSuspended); !errors.Is(err, profile.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.ChangeStatus(ctx, "p-1", profile.Status(0)); !errors.Is(err, profile.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for zero status, got %v", err)
	}

	p, err := svc.ChangeStatus(ctx, "p-1", profile.StatusInactive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != profile.StatusInactive {
		t.Fatalf("expected inactive, got %s", p.Status)
	}
	if len(obs.events) != 1 || obs.attrs[0]["status"] != "inactive" {
		t.Fatalf("expected status event, got %v %v", obs.events, obs.attrs)
	}
	if len(obs.errs) != 0 {
		t.Fatalf("expected rejected transitions not to be recorded as errors, got %v", obs.errs)
	}
}

func TestProfileStoreTimeout(t *testing.T) {
	store := &slowStore{Store: profile.NewMemoryStore()}
	svc, obs := newTestService(store, Options{StoreTimeout: 10 * time.Millisecond})

	if _, err := svc.Profile(context.Background(), "p-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if len(obs.errs) != 1 || obs.errs[0] != OpGetProfile {
		t.Fatalf("expected get_profile error recorded, got %v", obs.errs)
	}
}

type slowStore struct {
	profile.Store
}

func (s *slowStore) Get(ctx context.Context, _ string) (*profile.Profile, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
