package profile

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"net/url"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/astro-identity/internal/platform/auth"
	"github.com/janisto/astro-identity/internal/platform/pagination"
	"github.com/janisto/astro-identity/internal/platform/timeutil"
	"github.com/janisto/astro-identity/internal/service/identity"
	profilesvc "github.com/janisto/astro-identity/internal/service/profile"
)

const cursorType = "profile"

// Service is the part of identity.Service the profile endpoints use.
type Service interface {
	Profile(ctx context.Context, id string) (*profilesvc.Profile, error)
	DisplayInfo(ctx context.Context, id string) (identity.UserDisplayInfo, error)
	DisplayByName(ctx context.Context, fullName string) ([]identity.UserDisplayInfo, error)
	Rename(ctx context.Context, id string, first, last *string) (*profilesvc.Profile, error)
	ChangeStatus(ctx context.Context, id string, status profilesvc.Status) (*profilesvc.Profile, error)
}

// Register wires the profile endpoints. prefix is the API mount path used in
// pagination links.
func Register(api huma.API, svc Service, prefix string) {
	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/profiles/{id}",
		Summary:     "Get a profile",
		Description: "Returns the full profile. The caller must own the profile's verified email or be an admin.",
		Tags:        []string{"Profiles"},
		Security:    auth.BearerSecurity,
	}, func(ctx context.Context, input *ProfileGetInput) (*ProfileOutput, error) {
		p, err := authorize(ctx, svc, input.ID, false)
		if err != nil {
			return nil, err
		}
		return &ProfileOutput{Body: toHTTPProfile(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-profile-display",
		Method:      http.MethodGet,
		Path:        "/profiles/{id}/display",
		Summary:     "Get a profile's display name",
		Description: "Returns the display name, disambiguated when other profiles share the full name.",
		Tags:        []string{"Profiles"},
	}, func(ctx context.Context, input *ProfileGetInput) (*DisplayOutput, error) {
		info, err := svc.DisplayInfo(ctx, input.ID)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return &DisplayOutput{Body: toHTTPDisplay(info)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-profiles-by-name",
		Method:      http.MethodGet,
		Path:        "/profiles",
		Summary:     "List profiles sharing a name",
		Description: "Returns display entries for every profile with the given full name, oldest first. Use the cursor from the Link header to page.",
		Tags:        []string{"Profiles"},
	}, func(ctx context.Context, input *ProfileListInput) (*ProfileListOutput, error) {
		cursor, err := pagination.DecodeCursor(input.Cursor, cursorType)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid cursor format")
		}

		infos, err := svc.DisplayByName(ctx, input.Name)
		if err != nil {
			return nil, mapServiceError(err)
		}
		if cursor.Value != "" && !slices.ContainsFunc(infos, func(i identity.UserDisplayInfo) bool {
			return i.ProfileID == cursor.Value
		}) {
			return nil, huma.Error400BadRequest("cursor references unknown profile")
		}

		result := pagination.Paginate(
			infos,
			cursor,
			input.PageSize(),
			func(i identity.UserDisplayInfo) string { return i.ProfileID },
			prefix+"/profiles",
			url.Values{"name": {input.Name}},
		)

		items := make([]DisplayInfo, len(result.Items))
		for i, info := range result.Items {
			items[i] = toHTTPDisplay(info)
		}
		return &ProfileListOutput{
			Link: result.LinkHeader,
			Body: ListData{Items: items, Total: result.Total},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-profile",
		Method:      http.MethodPatch,
		Path:        "/profiles/{id}",
		Summary:     "Rename a profile",
		Description: "Replaces the provided name parts. The full name is recomputed.",
		Tags:        []string{"Profiles"},
		Security:    auth.BearerSecurity,
	}, func(ctx context.Context, input *ProfileRenameInput) (*ProfileOutput, error) {
		if input.Body.FirstName == nil && input.Body.LastName == nil {
			return nil, huma.Error422UnprocessableEntity("at least one of first_name or last_name must be provided")
		}
		if _, err := authorize(ctx, svc, input.ID, false); err != nil {
			return nil, err
		}
		p, err := svc.Rename(ctx, input.ID, input.Body.FirstName, input.Body.LastName)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return &ProfileOutput{Body: toHTTPProfile(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-profile-status",
		Method:      http.MethodPut,
		Path:        "/profiles/{id}/status",
		Summary:     "Change a profile's status",
		Description: "Moves the profile along active, inactive, suspended. Admins only.",
		Tags:        []string{"Profiles"},
		Security:    auth.BearerSecurity,
	}, func(ctx context.Context, input *ProfileStatusInput) (*ProfileOutput, error) {
		status, err := profilesvc.ParseStatus(input.Body.Status)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("unknown status")
		}
		if _, err := authorize(ctx, svc, input.ID, true); err != nil {
			return nil, err
		}
		p, err := svc.ChangeStatus(ctx, input.ID, status)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return &ProfileOutput{Body: toHTTPProfile(p)}, nil
	})
}

// authorize loads the profile and checks that the caller may act on it.
// Admins may act on any profile; owners only on their own, and never when
// adminOnly is set.
func authorize(ctx context.Context, svc Service, id string, adminOnly bool) (*profilesvc.Profile, error) {
	principal := auth.PrincipalFromContext(ctx)
	if principal == nil {
		return nil, huma.Error401Unauthorized("authentication required")
	}
	if adminOnly && !principal.Admin {
		return nil, huma.Error403Forbidden("admin role required")
	}
	p, err := svc.Profile(ctx, id)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if !principal.Admin && !principal.Owns(p.Email) {
		return nil, huma.Error403Forbidden("not allowed to access this profile")
	}
	return p, nil
}

func mapServiceError(err error) error {
	var verrs identity.ValidationErrors
	switch {
	case errors.Is(err, profilesvc.ErrNotFound):
		return huma.Error404NotFound("profile not found")
	case errors.Is(err, profilesvc.ErrInvalidTransition):
		return huma.Error409Conflict("status transition not allowed")
	case errors.As(err, &verrs):
		return huma.Error422UnprocessableEntity("invalid name", validationDetails(verrs)...)
	case errors.Is(err, identity.ErrInvalidName):
		return huma.Error422UnprocessableEntity("invalid name")
	default:
		return huma.Error500InternalServerError("internal error")
	}
}

func validationDetails(verrs identity.ValidationErrors) []error {
	msgs := verrs.Strings()
	details := make([]error, 0, len(msgs))
	for _, field := range slices.Sorted(maps.Keys(msgs)) {
		details = append(details, &huma.ErrorDetail{
			Location: "body." + field,
			Message:  msgs[field],
		})
	}
	return details
}

func toHTTPProfile(p *profilesvc.Profile) Profile {
	out := Profile{
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
		Status:           p.Status.String(),
		Metadata:         p.Metadata,
		CreatedAt:        timeutil.NewTime(p.CreatedAt),
		UpdatedAt:        timeutil.NewTime(p.UpdatedAt),
		LastSeenAt:       timeutil.FromPtr(p.LastSeenAt),
	}
	return out
}

func toHTTPDisplay(info identity.UserDisplayInfo) DisplayInfo {
	out := DisplayInfo{
		ProfileID:   info.ProfileID,
		UserID:      info.UserID,
		FullName:    info.FullName,
		DisplayName: info.DisplayName,
	}
	if info.Method.Valid() {
		out.DisambiguationMethod = info.Method.String()
	}
	return out
}
