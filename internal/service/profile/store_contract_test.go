package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func newTestProfile(id, userID, first, last, email string, createdAt time.Time) *Profile {
	p := &Profile{
		ID:        id,
		UserID:    userID,
		Email:     email,
		Status:    StatusActive,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	p.SetName(first, last)
	return p
}

// runStoreContract exercises behavior every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()
	base := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	t.Run("InsertAndGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		p := newTestProfile("p-1", "u-1", "Ali", "Demir", "  ALI@Demir.com ", base)
		p.Phone = strPtr("+905551112233")
		p.BirthDate = strPtr("01-02-1990")
		p.Metadata = map[string]any{"source": "ios"}
		if err := store.InsertIfAbsent(ctx, p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := store.Get(ctx, "p-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.FullName != "Ali Demir" {
			t.Errorf("expected full name Ali Demir, got %q", got.FullName)
		}
		if got.Email != "ALI@Demir.com" {
			t.Errorf("expected trimmed email as submitted, got %q", got.Email)
		}
		byEmail, err := store.FindByEmail(ctx, "ali@demir.com")
		if err != nil || byEmail.ID != "p-1" {
			t.Errorf("expected lookup by normalized email to find p-1, got %v, %v", byEmail, err)
		}
		if got.Phone == nil || *got.Phone != "+905551112233" {
			t.Errorf("expected phone to round-trip, got %v", got.Phone)
		}
		if got.BirthTime != nil {
			t.Errorf("expected absent birth time, got %v", *got.BirthTime)
		}
		if got.Status != StatusActive {
			t.Errorf("expected active status, got %s", got.Status)
		}
		if got.Metadata["source"] != "ios" {
			t.Errorf("expected metadata to round-trip, got %v", got.Metadata)
		}
		if !got.CreatedAt.Equal(base) {
			t.Errorf("expected CreatedAt %v, got %v", base, got.CreatedAt)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(context.Background(), "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("FindByEmailCaseInsensitive", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		_ = store.InsertIfAbsent(ctx, newTestProfile("p-1", "u-1", "Ali", "Demir", "ali@demir.com", base))

		got, err := store.FindByEmail(ctx, "ALI@DEMIR.COM")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != "p-1" {
			t.Errorf("expected p-1, got %s", got.ID)
		}

		_, err = store.FindByEmail(ctx, "nobody@demir.com")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("FindByUserID", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		_ = store.InsertIfAbsent(ctx, newTestProfile("p-1", "u-1", "Ali", "Demir", "ali@demir.com", base))

		got, err := store.FindByUserID(ctx, "u-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != "p-1" {
			t.Errorf("expected p-1, got %s", got.ID)
		}

		_, err = store.FindByUserID(ctx, "u-2")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InsertConflicts", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		if err := store.InsertIfAbsent(ctx, newTestProfile("p-1", "u-1", "Ali", "Demir", "ali@demir.com", base)); err != nil {
			t.Fatalf("first insert failed: %v", err)
		}

		cases := map[string]*Profile{
			"same id":      newTestProfile("p-1", "u-2", "Ali", "Demir", "other@demir.com", base),
			"same email":   newTestProfile("p-2", "u-2", "Ali", "Demir", "Ali@Demir.com", base),
			"same user id": newTestProfile("p-3", "u-1", "Ali", "Demir", "third@demir.com", base),
		}
		for name, p := range cases {
			if err := store.InsertIfAbsent(ctx, p); !errors.Is(err, ErrConflict) {
				t.Errorf("%s: expected ErrConflict, got %v", name, err)
			}
		}

		// A rejected insert must leave no partial index behind.
		if _, err := store.FindByUserID(ctx, "u-2"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected no profile for u-2, got %v", err)
		}
		if _, err := store.FindByEmail(ctx, "third@demir.com"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected no profile for third@demir.com, got %v", err)
		}
	})

	t.Run("ListByFullNameFoldsCaseAndDiacritics", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		_ = store.InsertIfAbsent(ctx, newTestProfile("p-2", "u-2", "ayse", "yilmaz", "a2@example.com", base.Add(24*time.Hour)))
		_ = store.InsertIfAbsent(ctx, newTestProfile("p-1", "u-1", "Ayşe", "Yılmaz", "a1@example.com", base))
		_ = store.InsertIfAbsent(ctx, newTestProfile("p-3", "u-3", "Ayşe", "Kaya", "a3@example.com", base))

		got, err := store.ListByFullName(ctx, "AYŞE YILMAZ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 profiles, got %d", len(got))
		}
		if got[0].ID != "p-1" || got[1].ID != "p-2" {
			t.Errorf("expected creation order [p-1 p-2], got [%s %s]", got[0].ID, got[1].ID)
		}

		none, err := store.ListByFullName(ctx, "Nobody Here")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected no profiles, got %d", len(none))
		}
	})

	t.Run("UpdateNameRecomputesFullName", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		_ = store.InsertIfAbsent(ctx, newTestProfile("p-1", "u-1", "Ali", "Demir", "ali@demir.com", base))

		updated, err := store.UpdateName(ctx, "p-1", NameUpdate{LastName: strPtr("Kaya")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.FullName != "Ali Kaya" {
			t.Errorf("expected Ali Kaya, got %q", updated.FullName)
		}
		if !updated.UpdatedAt.After(base) {
			t.Error("expected UpdatedAt to advance")
		}

		got, _ := store.Get(ctx, "p-1")
		if got.FullName != got.FirstName+" "+got.LastName {
			t.Errorf("full name %q out of sync with parts %q %q", got.FullName, got.FirstName, got.LastName)
		}

		moved, _ := store.ListByFullName(ctx, "Ali Kaya")
		if len(moved) != 1 {
			t.Errorf("expected renamed profile under new name, got %d", len(moved))
		}
		old, _ := store.ListByFullName(ctx, "Ali Demir")
		if len(old) != 0 {
			t.Errorf("expected no profile under old name, got %d", len(old))
		}
	})

	t.Run("UpdateNameNotFound", func(t *testing.T) {
		store := newStore(t)
		_, err := store.UpdateName(context.Background(), "missing", NameUpdate{FirstName: strPtr("X")})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SetStatusFollowsChain", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		_ = store.InsertIfAbsent(ctx, newTestProfile("p-1", "u-1", "Ali", "Demir", "ali@demir.com", base))

		if _, err := store.SetStatus(ctx, "p-1", StatusSuspended); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition for active->suspended, got %v", err)
		}
		for _, next := range []Status{StatusInactive, StatusSuspended, StatusInactive, StatusActive} {
			got, err := store.SetStatus(ctx, "p-1", next)
			if err != nil {
				t.Fatalf("transition to %s failed: %v", next, err)
			}
			if got.Status != next {
				t.Fatalf("expected %s, got %s", next, got.Status)
			}
		}
	})

	t.Run("ConcurrentInsertSameEmail", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		const numGoroutines = 10
		results := make(chan error, numGoroutines)

		var wg sync.WaitGroup
		for i := range numGoroutines {
			wg.Go(func() {
				p := newTestProfile(fmt.Sprintf("p-%d", i), fmt.Sprintf("u-%d", i), "Ali", "Demir", "ali@demir.com", base)
				results <- store.InsertIfAbsent(ctx, p)
			})
		}
		wg.Wait()
		close(results)

		var success, conflict int
		for err := range results {
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrConflict):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		if success != 1 {
			t.Errorf("expected exactly 1 success, got %d", success)
		}
		if conflict != numGoroutines-1 {
			t.Errorf("expected %d conflicts, got %d", numGoroutines-1, conflict)
		}
	})
}
