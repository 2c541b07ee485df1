package identity

import "context"

// Event names passed to Observer.RecordEvent.
const (
	EventRegistration  = "registration"
	EventDuplicateName = "duplicate_name"
	EventRenamed       = "profile_renamed"
	EventStatusChanged = "profile_status_changed"
)

// Operation names passed to Observer.RecordError.
const (
	OpRegister     = "register"
	OpResolve      = "resolve_duplicates"
	OpDisplay      = "display"
	OpRename       = "rename"
	OpChangeStatus = "change_status"
	OpGetProfile   = "get_profile"
)

// Observer receives identity events and failures. Implementations must be
// safe for concurrent use.
type Observer interface {
	RecordEvent(ctx context.Context, name string, attrs map[string]string)
	RecordError(ctx context.Context, name string, err error)
}

// Observers fans out to every observer in order.
type Observers []Observer

func (o Observers) RecordEvent(ctx context.Context, name string, attrs map[string]string) {
	for _, obs := range o {
		obs.RecordEvent(ctx, name, attrs)
	}
}

func (o Observers) RecordError(ctx context.Context, name string, err error) {
	for _, obs := range o {
		obs.RecordError(ctx, name, err)
	}
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) RecordEvent(context.Context, string, map[string]string) {}
func (NopObserver) RecordError(context.Context, string, error)             {}
