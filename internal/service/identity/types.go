package identity

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorCode is the closed registration error taxonomy.
type ErrorCode uint8

const (
	CodeEmailExists ErrorCode = iota + 1
	CodeUserIDExists
	CodeInvalidEmail
	CodeInvalidName
	CodeConstraintViolation
	CodeUnknown
)

var errorCodeNames = [...]string{
	CodeEmailExists:         "EMAIL_EXISTS",
	CodeUserIDExists:        "USER_ID_EXISTS",
	CodeInvalidEmail:        "INVALID_EMAIL",
	CodeInvalidName:         "INVALID_NAME",
	CodeConstraintViolation: "CONSTRAINT_VIOLATION",
	CodeUnknown:             "UNKNOWN_ERROR",
}

// ErrorCodes lists every code in declaration order.
func ErrorCodes() []ErrorCode {
	return []ErrorCode{
		CodeEmailExists, CodeUserIDExists, CodeInvalidEmail,
		CodeInvalidName, CodeConstraintViolation, CodeUnknown,
	}
}

func (c ErrorCode) Valid() bool {
	return c >= CodeEmailExists && c <= CodeUnknown
}

func (c ErrorCode) String() string {
	if !c.Valid() {
		return fmt.Sprintf("ErrorCode(%d)", uint8(c))
	}
	return errorCodeNames[c]
}

func (c ErrorCode) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid error code %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *ErrorCode) UnmarshalText(text []byte) error {
	for _, code := range ErrorCodes() {
		if code.String() == string(text) {
			*c = code
			return nil
		}
	}
	return fmt.Errorf("unknown error code %q", text)
}

// DisambiguationMethod names the marker used to tell same-named profiles apart.
type DisambiguationMethod uint8

const (
	MethodEmailPrefix DisambiguationMethod = iota + 1
	MethodRegistrationDate
	MethodUserID
)

var methodNames = [...]string{
	MethodEmailPrefix:      "email_prefix",
	MethodRegistrationDate: "registration_date",
	MethodUserID:           "user_id",
}

// DisambiguationMethods lists every method in priority order.
func DisambiguationMethods() []DisambiguationMethod {
	return []DisambiguationMethod{MethodEmailPrefix, MethodRegistrationDate, MethodUserID}
}

func (m DisambiguationMethod) Valid() bool {
	return m >= MethodEmailPrefix && m <= MethodUserID
}

func (m DisambiguationMethod) String() string {
	if !m.Valid() {
		return fmt.Sprintf("DisambiguationMethod(%d)", uint8(m))
	}
	return methodNames[m]
}

func (m DisambiguationMethod) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid disambiguation method %d", uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *DisambiguationMethod) UnmarshalText(text []byte) error {
	for _, method := range DisambiguationMethods() {
		if method.String() == string(text) {
			*m = method
			return nil
		}
	}
	return fmt.Errorf("unknown disambiguation method %q", text)
}

// Field identifies one of the seven registration fields.
type Field uint8

const (
	FieldFirstName Field = iota + 1
	FieldLastName
	FieldEmail
	FieldPhone
	FieldBirthDate
	FieldBirthTime
	FieldBirthPlace
)

var fieldNames = [...]string{
	FieldFirstName:  "first_name",
	FieldLastName:   "last_name",
	FieldEmail:      "email",
	FieldPhone:      "phone",
	FieldBirthDate:  "birth_date",
	FieldBirthTime:  "birth_time",
	FieldBirthPlace: "birth_place",
}

func (f Field) String() string {
	if f < FieldFirstName || f > FieldBirthPlace {
		return fmt.Sprintf("Field(%d)", uint8(f))
	}
	return fieldNames[f]
}

func (f Field) MarshalText() ([]byte, error) {
	if f < FieldFirstName || f > FieldBirthPlace {
		return nil, fmt.Errorf("invalid field %d", uint8(f))
	}
	return []byte(f.String()), nil
}

// ValidationErrors maps offending fields to a human-readable message.
// An empty map means the input is valid.
type ValidationErrors map[Field]string

func (v ValidationErrors) Error() string {
	fields := make([]Field, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.String() + " " + v[f]
	}
	return strings.Join(parts, "; ")
}

// Has reports whether f failed validation.
func (v ValidationErrors) Has(f Field) bool {
	_, ok := v[f]
	return ok
}

// Strings returns the errors keyed by wire field name.
func (v ValidationErrors) Strings() map[string]string {
	if len(v) == 0 {
		return nil
	}
	out := make(map[string]string, len(v))
	for f, msg := range v {
		out[f.String()] = msg
	}
	return out
}

// UserRegistrationData is the registration input. Optional fields are nil when
// absent; an empty string is treated the same as nil.
type UserRegistrationData struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      *string
	BirthDate  *string
	BirthTime  *string
	BirthPlace *string
}

// DuplicateNameContext describes how a name collision was resolved.
// TotalCount includes the profile the context was computed for.
type DuplicateNameContext struct {
	HasDuplicates        bool
	TotalCount           int
	DisambiguationMethod DisambiguationMethod
}

// metadata renders the context for storage in a profile's metadata map.
func (c DuplicateNameContext) metadata() map[string]any {
	return map[string]any{
		"has_duplicates":        c.HasDuplicates,
		"total_count":           c.TotalCount,
		"disambiguation_method": c.DisambiguationMethod.String(),
	}
}

// RegistrationResponse is the outcome of Register. On success the profile
// fields are set and Error is zero; on failure only Error, Message and
// possibly ValidationErrors are set.
type RegistrationResponse struct {
	Success          bool
	ProfileID        string
	UserID           string
	FullName         string
	Email            string
	IsDuplicateName  bool
	DuplicateContext *DuplicateNameContext

	Error            ErrorCode
	Message          string
	ValidationErrors ValidationErrors
}

// UserDisplayInfo is the human-facing projection of a profile. Method is
// zero when the name is not shared.
type UserDisplayInfo struct {
	ProfileID   string
	UserID      string
	FullName    string
	DisplayName string
	Method      DisambiguationMethod
}
