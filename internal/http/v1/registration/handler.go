package registration

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/astro-identity/internal/service/identity"
)

// Registerer runs a registration attempt.
type Registerer interface {
	Register(ctx context.Context, data identity.UserRegistrationData) identity.RegistrationResponse
}

// Register wires POST /registrations. prefix is the API mount path used in
// the Location header.
func Register(api huma.API, svc Registerer, prefix string) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-user",
		Method:        http.MethodPost,
		Path:          "/registrations",
		Summary:       "Register a user",
		Description:   "Creates a profile. Shared names are allowed and come back with a duplicate context describing how they are told apart.",
		Tags:          []string{"Registration"},
		DefaultStatus: http.StatusCreated,
		Responses: map[string]*huma.Response{
			"409": {Description: "Email or user id already taken"},
			"422": {Description: "Field validation failed"},
			"500": {Description: "Registration could not be completed"},
		},
	}, func(ctx context.Context, input *RegisterInput) (*RegisterOutput, error) {
		resp := svc.Register(ctx, identity.UserRegistrationData{
			FirstName:  input.Body.FirstName,
			LastName:   input.Body.LastName,
			Email:      input.Body.Email,
			Phone:      input.Body.Phone,
			BirthDate:  input.Body.BirthDate,
			BirthTime:  input.Body.BirthTime,
			BirthPlace: input.Body.BirthPlace,
		})

		out := &RegisterOutput{Status: statusFor(resp), Body: toHTTPRegistration(resp)}
		if resp.Success {
			out.Location = prefix + "/profiles/" + resp.ProfileID
		}
		return out, nil
	})
}

func statusFor(resp identity.RegistrationResponse) int {
	if resp.Success {
		return http.StatusCreated
	}
	switch resp.Error {
	case identity.CodeEmailExists, identity.CodeUserIDExists, identity.CodeConstraintViolation:
		return http.StatusConflict
	case identity.CodeInvalidEmail, identity.CodeInvalidName:
		return http.StatusUnprocessableEntity
	default:
		if len(resp.ValidationErrors) > 0 {
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	}
}

func toHTTPRegistration(resp identity.RegistrationResponse) Registration {
	out := Registration{
		Success:          resp.Success,
		ProfileID:        resp.ProfileID,
		UserID:           resp.UserID,
		FullName:         resp.FullName,
		Email:            resp.Email,
		Message:          resp.Message,
		ValidationErrors: resp.ValidationErrors.Strings(),
	}
	if resp.Success {
		out.IsDuplicateName = &resp.IsDuplicateName
	} else {
		out.Error = resp.Error.String()
	}
	if dc := resp.DuplicateContext; dc != nil {
		out.DuplicateContext = &DuplicateContext{
			HasDuplicates:        dc.HasDuplicates,
			TotalCount:           dc.TotalCount,
			DisambiguationMethod: dc.DisambiguationMethod.String(),
		}
	}
	return out
}
