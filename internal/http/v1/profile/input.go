package profile

import "github.com/janisto/astro-identity/internal/platform/pagination"

// ProfileGetInput for GET /profiles/{id} and GET /profiles/{id}/display.
type ProfileGetInput struct {
	ID string `path:"id" minLength:"1" maxLength:"64" doc:"Profile id" example:"01JNQ7W3ZK9V4T2M8B6XH5R0DA"`
}

// ProfileListInput for GET /profiles.
type ProfileListInput struct {
	pagination.Params
	Name string `query:"name" required:"true" minLength:"1" maxLength:"101" doc:"Full name, matched ignoring case and diacritics" example:"Ayşe Yılmaz"`
}

// ProfileRenameInput for PATCH /profiles/{id}.
type ProfileRenameInput struct {
	ID   string `path:"id" minLength:"1" maxLength:"64" doc:"Profile id"`
	Body struct {
		FirstName *string `json:"first_name,omitempty" required:"false" doc:"New first name" example:"Ayşe"`
		LastName  *string `json:"last_name,omitempty"  required:"false" doc:"New last name"  example:"Kaya"`
	}
}

// ProfileStatusInput for PUT /profiles/{id}/status.
type ProfileStatusInput struct {
	ID   string `path:"id" minLength:"1" maxLength:"64" doc:"Profile id"`
	Body struct {
		Status string `json:"status" enum:"active,inactive,suspended" doc:"Target status" example:"inactive"`
	}
}
