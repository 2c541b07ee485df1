package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisProfileKey = "profile:%s"
	redisEmailKey   = "profile:email:%s"
	redisUserIDKey  = "profile:user_id:%s"
	redisNameKey    = "profile:name:%s"

	// redisMaxRetries bounds optimistic transaction retries on mutation.
	redisMaxRetries = 5
)

// insertScript writes the profile, both unique indexes and the name set only
// if none of the unique keys exist. Returns 1 on insert, 0 on conflict.
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 or redis.call('EXISTS', KEYS[2]) == 1 or redis.call('EXISTS', KEYS[3]) == 1 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
redis.call('SET', KEYS[3], ARGV[2])
redis.call('SADD', KEYS[4], ARGV[2])
return 1
`)

// redisProfile is the JSON document stored under profile:<id>.
type redisProfile struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	FirstName        string         `json:"first_name"`
	LastName         string         `json:"last_name"`
	FullName         string         `json:"full_name"`
	Email            string         `json:"email"`
	Phone            *string        `json:"phone,omitempty"`
	AvatarURL        *string        `json:"avatar_url,omitempty"`
	Bio              *string        `json:"bio,omitempty"`
	BirthDate        *string        `json:"birth_date,omitempty"`
	BirthTime        *string        `json:"birth_time,omitempty"`
	BirthPlace       *string        `json:"birth_place,omitempty"`
	EmailVerified    bool           `json:"email_verified"`
	ProfileCompleted bool           `json:"profile_completed"`
	Status           Status         `json:"status"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	LastSeenAt       *time.Time     `json:"last_seen_at,omitempty"`
}

// RedisStore implements Store on Redis. Profiles are JSON strings; email and
// user id indexes are plain keys; name collisions are tracked in sets keyed by
// the folded full name. The insert script touches several keys, so the store
// needs a single Redis node rather than a cluster.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) InsertIfAbsent(ctx context.Context, p *Profile) error {
	stored := p.Clone()
	stored.Email = strings.TrimSpace(stored.Email)
	stored.SetName(stored.FirstName, stored.LastName)

	payload, err := json.Marshal(toRedisProfile(stored))
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	keys := []string{
		fmt.Sprintf(redisProfileKey, stored.ID),
		fmt.Sprintf(redisEmailKey, NormalizeEmail(stored.Email)),
		fmt.Sprintf(redisUserIDKey, stored.UserID),
		fmt.Sprintf(redisNameKey, stored.NameKey()),
	}
	inserted, err := insertScript.Run(ctx, s.client, keys, payload, stored.ID).Int()
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	if inserted == 0 {
		return ErrConflict
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Profile, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf(redisProfileKey, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return decodeRedisProfile(raw)
}

func (s *RedisStore) FindByEmail(ctx context.Context, email string) (*Profile, error) {
	return s.findByIndex(ctx, fmt.Sprintf(redisEmailKey, NormalizeEmail(email)))
}

func (s *RedisStore) FindByUserID(ctx context.Context, userID string) (*Profile, error) {
	return s.findByIndex(ctx, fmt.Sprintf(redisUserIDKey, userID))
}

func (s *RedisStore) ListByFullName(ctx context.Context, fullName string) ([]Profile, error) {
	ids, err := s.client.SMembers(ctx, fmt.Sprintf(redisNameKey, FoldName(fullName))).Result()
	if err != nil {
		return nil, fmt.Errorf("list profiles by name: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fmt.Sprintf(redisProfileKey, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list profiles by name: %w", err)
	}

	out := make([]Profile, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		p, err := decodeRedisProfile([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	sortByCreation(out)
	return out, nil
}

func (s *RedisStore) UpdateName(ctx context.Context, id string, update NameUpdate) (*Profile, error) {
	return s.mutate(ctx, id, func(p *Profile) error {
		applyNameUpdate(p, update, time.Now().UTC())
		return nil
	})
}

func (s *RedisStore) SetStatus(ctx context.Context, id string, st Status) (*Profile, error) {
	return s.mutate(ctx, id, func(p *Profile) error {
		return applyStatus(p, st, time.Now().UTC())
	})
}

// mutate runs fn under WATCH on the profile key and moves the profile between
// name sets when its folded name changes.
func (s *RedisStore) mutate(ctx context.Context, id string, fn func(*Profile) error) (*Profile, error) {
	key := fmt.Sprintf(redisProfileKey, id)
	var result *Profile

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		p, err := decodeRedisProfile(raw)
		if err != nil {
			return err
		}
		oldNameKey := p.NameKey()
		if err := fn(p); err != nil {
			return err
		}
		payload, err := json.Marshal(toRedisProfile(p))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			if newNameKey := p.NameKey(); newNameKey != oldNameKey {
				pipe.SRem(ctx, fmt.Sprintf(redisNameKey, oldNameKey), p.ID)
				pipe.SAdd(ctx, fmt.Sprintf(redisNameKey, newNameKey), p.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = p
		return nil
	}

	for range redisMaxRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("update profile %s: too much contention", id)
}

func (s *RedisStore) findByIndex(ctx context.Context, indexKey string) (*Profile, error) {
	id, err := s.client.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve profile index: %w", err)
	}
	return s.Get(ctx, id)
}

func toRedisProfile(p *Profile) redisProfile {
	return redisProfile{
		ID:               p.ID,
		UserID:           p.UserID,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		FullName:         p.FullName,
		Email:            p.Email,
		Phone:            p.Phone,
		AvatarURL:        p.AvatarURL,
		Bio:              p.Bio,
		BirthDate:        p.BirthDate,
		BirthTime:        p.BirthTime,
		BirthPlace:       p.BirthPlace,
		EmailVerified:    p.EmailVerified,
		ProfileCompleted: p.ProfileCompleted,
		Status:           p.Status,
		Metadata:         p.Metadata,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		LastSeenAt:       p.LastSeenAt,
	}
}

func decodeRedisProfile(raw []byte) (*Profile, error) {
	var rp redisProfile
	if err := json.Unmarshal(raw, &rp); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &Profile{
		ID:               rp.ID,
		UserID:           rp.UserID,
		FirstName:        rp.FirstName,
		LastName:         rp.LastName,
		FullName:         rp.FullName,
		Email:            rp.Email,
		Phone:            rp.Phone,
		AvatarURL:        rp.AvatarURL,
		Bio:              rp.Bio,
		BirthDate:        rp.BirthDate,
		BirthTime:        rp.BirthTime,
		BirthPlace:       rp.BirthPlace,
		EmailVerified:    rp.EmailVerified,
		ProfileCompleted: rp.ProfileCompleted,
		Status:           rp.Status,
		Metadata:         rp.Metadata,
		CreatedAt:        rp.CreatedAt,
		UpdatedAt:        rp.UpdatedAt,
		LastSeenAt:       rp.LastSeenAt,
	}, nil
}

// Compile-time interface check
var _ Store = (*RedisStore)(nil)
