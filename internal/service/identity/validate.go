package identity

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	MaxNameLength       = 50
	MaxEmailLength      = 254
	MaxBirthPlaceLength = 100

	// DateLayout is DD-MM-YYYY, used for birth dates and registration date markers.
	DateLayout = "02-01-2006"
)

var (
	emailRe     = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)*\.[A-Za-z]{2,}$`)
	phoneRe     = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	birthDateRe = regexp.MustCompile(`^[0-9]{2}-[0-9]{2}-[0-9]{4}$`)
	birthTimeRe = regexp.MustCompile(`^(?:[01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// Validate checks every registration field and returns the failures.
// now is used to reject birth dates in the future. data is not modified.
func Validate(data UserRegistrationData, now time.Time) ValidationErrors {
	errs := ValidateNames(data.FirstName, data.LastName)

	if msg := checkEmail(data.Email); msg != "" {
		errs[FieldEmail] = msg
	}
	if v, ok := optional(data.Phone); ok && !phoneRe.MatchString(v) {
		errs[FieldPhone] = "must be 7 to 15 digits with an optional leading +"
	}
	if v, ok := optional(data.BirthDate); ok {
		if msg := checkBirthDate(v, now); msg != "" {
			errs[FieldBirthDate] = msg
		}
	}
	if v, ok := optional(data.BirthTime); ok && !birthTimeRe.MatchString(v) {
		errs[FieldBirthTime] = "must be HH:MM between 00:00 and 23:59"
	}
	if v, ok := optional(data.BirthPlace); ok {
		if msg := checkBirthPlace(v); msg != "" {
			errs[FieldBirthPlace] = msg
		}
	}
	return errs
}

// ValidateNames checks the first and last name rules. The result is never nil.
func ValidateNames(first, last string) ValidationErrors {
	errs := ValidationErrors{}
	if msg := checkName(first); msg != "" {
		errs[FieldFirstName] = msg
	}
	if msg := checkName(last); msg != "" {
		errs[FieldLastName] = msg
	}
	return errs
}

func checkName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "is required"
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Sprintf("must be at most %d characters", MaxNameLength)
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.Is(unicode.M, r) || r == ' ' || r == '-' {
			continue
		}
		return "may only contain letters, spaces and hyphens"
	}
	return ""
}

func checkEmail(email string) string {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return "is required"
	case len(email) > MaxEmailLength:
		return fmt.Sprintf("must be at most %d characters", MaxEmailLength)
	case !emailRe.MatchString(email):
		return "must be a valid email address"
	}
	return ""
}

func checkBirthDate(value string, now time.Time) string {
	if !birthDateRe.MatchString(value) {
		return "must be in DD-MM-YYYY format"
	}
	date, err := time.Parse(DateLayout, value)
	if err != nil {
		return "must be a valid calendar date"
	}
	y, m, d := now.Date()
	if date.After(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
		return "must not be in the future"
	}
	return ""
}

func checkBirthPlace(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "must not be blank"
	}
	if utf8.RuneCountInString(value) > MaxBirthPlaceLength {
		return fmt.Sprintf("must be at most %d characters", MaxBirthPlaceLength)
	}
	return ""
}

// optional unwraps an optional field. Nil and "" are both absent.
func optional(s *string) (string, bool) {
	if s == nil || *s == "" {
		return "", false
	}
	return *s, true
}
