package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	profilesCollection = "profiles"
	emailsCollection   = "profile_emails"
	userIDsCollection  = "profile_user_ids"
)

// firestoreProfile maps to Firestore document structure.
type firestoreProfile struct {
	UserID           string         `firestore:"user_id"`
	FirstName        string         `firestore:"first_name"`
	LastName         string         `firestore:"last_name"`
	FullName         string         `firestore:"full_name"`
	NameKey          string         `firestore:"name_key"`
	Email            string         `firestore:"email"`
	Phone            *string        `firestore:"phone"`
	AvatarURL        *string        `firestore:"avatar_url"`
	Bio              *string        `firestore:"bio"`
	BirthDate        *string        `firestore:"birth_date"`
	BirthTime        *string        `firestore:"birth_time"`
	BirthPlace       *string        `firestore:"birth_place"`
	EmailVerified    bool           `firestore:"email_verified"`
	ProfileCompleted bool           `firestore:"profile_completed"`
	Status           string         `firestore:"status"`
	Metadata         map[string]any `firestore:"metadata"`
	CreatedAt        time.Time      `firestore:"created_at"`
	UpdatedAt        time.Time      `firestore:"updated_at"`
	LastSeenAt       *time.Time     `firestore:"last_seen_at"`
}

// indexEntry points a unique value back at its profile document.
type indexEntry struct {
	ProfileID string `firestore:"profile_id"`
}

func toFirestoreProfile(p *Profile) firestoreProfile {
	return firestoreProfile{
		UserID:           p.UserID,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		FullName:         p.FullName,
		NameKey:          p.NameKey(),
		Email:            p.Email,
		Phone:            p.Phone,
		AvatarURL:        p.AvatarURL,
		Bio:              p.Bio,
		BirthDate:        p.BirthDate,
		BirthTime:        p.BirthTime,
		BirthPlace:       p.BirthPlace,
		EmailVerified:    p.EmailVerified,
		ProfileCompleted: p.ProfileCompleted,
		Status:           p.Status.String(),
		Metadata:         p.Metadata,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		LastSeenAt:       p.LastSeenAt,
	}
}

func (fp firestoreProfile) toProfile(id string) (*Profile, error) {
	st, err := ParseStatus(fp.Status)
	if err != nil {
		return nil, err
	}
	return &Profile{
		ID:               id,
		UserID:           fp.UserID,
		FirstName:        fp.FirstName,
		LastName:         fp.LastName,
		FullName:         fp.FullName,
		Email:            fp.Email,
		Phone:            fp.Phone,
		AvatarURL:        fp.AvatarURL,
		Bio:              fp.Bio,
		BirthDate:        fp.BirthDate,
		BirthTime:        fp.BirthTime,
		BirthPlace:       fp.BirthPlace,
		EmailVerified:    fp.EmailVerified,
		ProfileCompleted: fp.ProfileCompleted,
		Status:           st,
		Metadata:         fp.Metadata,
		CreatedAt:        fp.CreatedAt,
		UpdatedAt:        fp.UpdatedAt,
		LastSeenAt:       fp.LastSeenAt,
	}, nil
}

// FirestoreStore implements Store using Firestore with transactions.
//
// Uniqueness of email and user id is kept by index documents in the
// profile_emails and profile_user_ids collections, written in the same
// transaction as the profile itself.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// InsertIfAbsent creates the profile and its index documents in one transaction.
func (s *FirestoreStore) InsertIfAbsent(ctx context.Context, p *Profile) error {
	stored := p.Clone()
	stored.Email = strings.TrimSpace(stored.Email)
	stored.SetName(stored.FirstName, stored.LastName)

	profileRef := s.client.Collection(profilesCollection).Doc(stored.ID)
	emailRef := s.client.Collection(emailsCollection).Doc(NormalizeEmail(stored.Email))
	userIDRef := s.client.Collection(userIDsCollection).Doc(stored.UserID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, ref := range []*firestore.DocumentRef{profileRef, emailRef, userIDRef} {
			exists, err := txExists(tx, ref)
			if err != nil {
				return err
			}
			if exists {
				return ErrConflict
			}
		}

		if err := tx.Create(profileRef, toFirestoreProfile(stored)); err != nil {
			return err
		}
		if err := tx.Create(emailRef, indexEntry{ProfileID: stored.ID}); err != nil {
			return err
		}
		return tx.Create(userIDRef, indexEntry{ProfileID: stored.ID})
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ErrConflict
		}
		return err
	}
	return nil
}

// Get retrieves a profile by ID.
func (s *FirestoreStore) Get(ctx context.Context, id string) (*Profile, error) {
	doc, err := s.client.Collection(profilesCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeProfile(doc)
}

// FindByEmail resolves the email index document, then loads the profile.
func (s *FirestoreStore) FindByEmail(ctx context.Context, email string) (*Profile, error) {
	return s.findByIndex(ctx, emailsCollection, NormalizeEmail(email))
}

// FindByUserID resolves the user id index document, then loads the profile.
func (s *FirestoreStore) FindByUserID(ctx context.Context, userID string) (*Profile, error) {
	return s.findByIndex(ctx, userIDsCollection, userID)
}

// ListByFullName queries profiles sharing the folded full name.
func (s *FirestoreStore) ListByFullName(ctx context.Context, fullName string) ([]Profile, error) {
	docs, err := s.client.Collection(profilesCollection).
		Where("name_key", "==", FoldName(fullName)).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, err
	}

	out := make([]Profile, 0, len(docs))
	for _, doc := range docs {
		p, err := decodeProfile(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	sortByCreation(out)
	return out, nil
}

// UpdateName updates the name parts using a transaction for atomicity.
func (s *FirestoreStore) UpdateName(ctx context.Context, id string, update NameUpdate) (*Profile, error) {
	return s.mutate(ctx, id, func(p *Profile) error {
		applyNameUpdate(p, update, time.Now().UTC())
		return nil
	})
}

// SetStatus applies a status transition using a transaction for atomicity.
func (s *FirestoreStore) SetStatus(ctx context.Context, id string, st Status) (*Profile, error) {
	return s.mutate(ctx, id, func(p *Profile) error {
		return applyStatus(p, st, time.Now().UTC())
	})
}

func (s *FirestoreStore) mutate(ctx context.Context, id string, fn func(*Profile) error) (*Profile, error) {
	docRef := s.client.Collection(profilesCollection).Doc(id)

	var result *Profile

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}

		p, err := decodeProfile(doc)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := tx.Set(docRef, toFirestoreProfile(p)); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *FirestoreStore) findByIndex(ctx context.Context, collection, key string) (*Profile, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	doc, err := s.client.Collection(collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var entry indexEntry
	if err := doc.DataTo(&entry); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, entry.ProfileID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("dangling %s index %q: %w", collection, key, err)
	}
	return p, err
}

func decodeProfile(doc *firestore.DocumentSnapshot) (*Profile, error) {
	var fp firestoreProfile
	if err := doc.DataTo(&fp); err != nil {
		return nil, err
	}
	return fp.toProfile(doc.Ref.ID)
}

func txExists(tx *firestore.Transaction, ref *firestore.DocumentRef) (bool, error) {
	doc, err := tx.Get(ref)
	if err == nil {
		return doc.Exists(), nil
	}
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	return false, err
}

// Compile-time interface check
var _ Store = (*FirestoreStore)(nil)
