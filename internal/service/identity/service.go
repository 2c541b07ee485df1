package identity

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/janisto/astro-identity/internal/platform/logging"
	"github.com/janisto/astro-identity/internal/service/profile"
)

// DefaultStoreTimeout bounds each store call when Options.StoreTimeout is unset.
const DefaultStoreTimeout = 5 * time.Second

// MetadataDuplicateName is the metadata key holding the registration-time
// duplicate name context when Options.ContextInMetadata is set.
const MetadataDuplicateName = "duplicate_name"

// Human-readable messages. Clients branch on the error code, never on these.
const (
	msgValidationFailed    = "registration data failed validation"
	msgInvalidName         = "first and last name may only contain letters, spaces and hyphens"
	msgInvalidEmail        = "email address is not valid"
	msgEmailExists         = "an account with this email already exists"
	msgUserIDExists        = "could not allocate a unique user id"
	msgConstraintViolation = "profile conflicts with an existing account"
	msgUnknown             = "registration could not be completed"
)

var errUserIDTaken = errors.New("user id already taken")

// Options tune a Service.
type Options struct {
	// StoreTimeout bounds every store call. Zero means DefaultStoreTimeout.
	StoreTimeout time.Duration
	// ContextInMetadata stores the duplicate name context in the new
	// profile's metadata under MetadataDuplicateName.
	ContextInMetadata bool
	// Observer receives events and failures. Nil means NopObserver.
	Observer Observer
	// Clock returns the current time. Nil means time.Now.
	Clock func() time.Time
}

// Service registers profiles and answers display and mutation requests for them.
type Service struct {
	store    profile.Store
	ids      IDGenerator
	observer Observer
	clock    func() time.Time
	timeout  time.Duration
	inMeta   bool
}

// NewService creates a Service over store.
func NewService(store profile.Store, ids IDGenerator, opts Options) *Service {
	s := &Service{
		store:    store,
		ids:      ids,
		observer: opts.Observer,
		clock:    opts.Clock,
		timeout:  opts.StoreTimeout,
		inMeta:   opts.ContextInMetadata,
	}
	if s.ids == nil {
		s.ids = UUIDGenerator{}
	}
	if s.observer == nil {
		s.observer = NopObserver{}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.timeout <= 0 {
		s.timeout = DefaultStoreTimeout
	}
	return s
}

// Register validates data, enforces email and user id uniqueness, creates the
// profile and resolves its duplicate name context. It never returns raw store
// errors; failures are reported through the response's error code.
func (s *Service) Register(ctx context.Context, data UserRegistrationData) RegistrationResponse {
	now := s.clock().UTC()

	if errs := Validate(data, now); len(errs) > 0 {
		code, msg := classifyValidation(errs)
		resp := failure(code, msg)
		resp.ValidationErrors = errs
		s.recordRegistration(ctx, resp)
		return resp
	}

	email := profile.NormalizeEmail(data.Email)
	_, err := call(ctx, s.timeout, func(ctx context.Context) (*profile.Profile, error) {
		return s.store.FindByEmail(ctx, email)
	})
	switch {
	case err == nil:
		return s.reject(ctx, CodeEmailExists, msgEmailExists)
	case !errors.Is(err, profile.ErrNotFound):
		return s.fail(ctx, "email lookup failed", err)
	}

	userID, err := s.allocateUserID(ctx)
	if errors.Is(err, errUserIDTaken) {
		return s.reject(ctx, CodeUserIDExists, msgUserIDExists)
	}
	if err != nil {
		return s.fail(ctx, "user id lookup failed", err)
	}

	p := newProfile(data, strings.TrimSpace(data.Email), userID, now)

	var dup DuplicateNameContext
	if s.inMeta {
		dup = s.resolve(ctx, *p, Resolve(*p, nil))
		p.Metadata = map[string]any{MetadataDuplicateName: dup.metadata()}
	}

	_, err = call(ctx, s.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.InsertIfAbsent(ctx, p)
	})
	if errors.Is(err, profile.ErrConflict) {
		return s.reject(ctx, CodeConstraintViolation, msgConstraintViolation)
	}
	if err != nil {
		return s.fail(ctx, "profile insert failed", err)
	}

	if !s.inMeta {
		dup = Resolve(*p, nil)
	}
	dup = s.resolve(ctx, *p, dup)

	resp := RegistrationResponse{
		Success:          true,
		ProfileID:        p.ID,
		UserID:           p.UserID,
		FullName:         p.FullName,
		Email:            p.Email,
		IsDuplicateName:  dup.HasDuplicates,
		DuplicateContext: &dup,
	}
	s.recordRegistration(ctx, resp)
	if dup.HasDuplicates {
		s.observer.RecordEvent(ctx, EventDuplicateName, map[string]string{
			"profile_id":  p.ID,
			"user_id":     p.UserID,
			"method":      dup.DisambiguationMethod.String(),
			"total_count": strconv.Itoa(dup.TotalCount),
		})
	}
	logging.LogInfo(ctx, "profile registered",
		zap.String("profile_id", p.ID),
		zap.Bool("duplicate_name", dup.HasDuplicates),
	)
	return resp
}

// allocateUserID draws a user id and checks it is unused, regenerating once.
func (s *Service) allocateUserID(ctx context.Context) (string, error) {
	for range 2 {
		id := s.ids.NewUserID()
		_, err := call(ctx, s.timeout, func(ctx context.Context) (*profile.Profile, error) {
			return s.store.FindByUserID(ctx, id)
		})
		if errors.Is(err, profile.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errUserIDTaken
}

// resolve lists profiles sharing p's name and resolves the collision. A failed
// read is logged and fallback is returned; the count may then be stale.
func (s *Service) resolve(ctx context.Context, p profile.Profile, fallback DuplicateNameContext) DuplicateNameContext {
	existing, err := call(ctx, s.timeout, func(ctx context.Context) ([]profile.Profile, error) {
		return s.store.ListByFullName(ctx, p.FullName)
	})
	if err != nil {
		logging.LogWarn(ctx, "duplicate name lookup failed", zap.Error(err), zap.String("profile_id", p.ID))
		s.observer.RecordError(ctx, OpResolve, err)
		return fallback
	}
	return Resolve(p, existing)
}

func (s *Service) reject(ctx context.Context, code ErrorCode, msg string) RegistrationResponse {
	resp := failure(code, msg)
	s.recordRegistration(ctx, resp)
	return resp
}

// fail logs err and reports UNKNOWN_ERROR without exposing it.
func (s *Service) fail(ctx context.Context, msg string, err error) RegistrationResponse {
	logging.LogError(ctx, msg, err)
	s.observer.RecordError(ctx, OpRegister, err)
	return s.reject(ctx, CodeUnknown, msgUnknown)
}

func (s *Service) recordRegistration(ctx context.Context, resp RegistrationResponse) {
	attrs := map[string]string{"result": "success"}
	if !resp.Success {
		attrs["result"] = resp.Error.String()
	} else {
		attrs["profile_id"] = resp.ProfileID
		attrs["user_id"] = resp.UserID
	}
	s.observer.RecordEvent(ctx, EventRegistration, attrs)
}

func failure(code ErrorCode, msg string) RegistrationResponse {
	return RegistrationResponse{Error: code, Message: msg}
}

// classifyValidation picks the reported code: names first, then email.
// Other field failures have no dedicated code.
func classifyValidation(errs ValidationErrors) (ErrorCode, string) {
	switch {
	case errs.Has(FieldFirstName) || errs.Has(FieldLastName):
		return CodeInvalidName, msgInvalidName
	case errs.Has(FieldEmail):
		return CodeInvalidEmail, msgInvalidEmail
	default:
		return CodeUnknown, msgValidationFailed
	}
}

func newProfile(data UserRegistrationData, email, userID string, now time.Time) *profile.Profile {
	p := &profile.Profile{
		ID:         newProfileID(),
		UserID:     userID,
		Email:      email,
		Phone:      trimmed(data.Phone),
		BirthDate:  trimmed(data.BirthDate),
		BirthTime:  trimmed(data.BirthTime),
		BirthPlace: trimmed(data.BirthPlace),
		Status:     profile.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	p.SetName(data.FirstName, data.LastName)
	p.ProfileCompleted = p.BirthDate != nil && p.BirthTime != nil && p.BirthPlace != nil
	return p
}

// trimmed copies an optional value, dropping absent ones.
func trimmed(s *string) *string {
	v, ok := optional(s)
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	return &v
}

// call runs fn under a deadline derived from ctx.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
