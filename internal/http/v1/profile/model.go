package profile

import (
	"github.com/janisto/astro-identity/internal/platform/timeutil"
)

// Profile is the full profile record as seen by its owner.
type Profile struct {
	ID               string         `json:"id"                     example:"01JNQ7W3ZK9V4T2M8B6XH5R0DA"`
	UserID           string         `json:"user_id"                example:"3f0c9a52-8d7e-4b1f-a6c2-00a1b2c3d4e5"`
	FirstName        string         `json:"first_name"             example:"Ayşe"`
	LastName         string         `json:"last_name"              example:"Yılmaz"`
	FullName         string         `json:"full_name"              example:"Ayşe Yılmaz"`
	Email            string         `json:"email"                  example:"ayse@example.com"`
	Phone            *string        `json:"phone,omitempty"`
	AvatarURL        *string        `json:"avatar_url,omitempty"`
	Bio              *string        `json:"bio,omitempty"`
	BirthDate        *string        `json:"birth_date,omitempty"   example:"14-07-1990"`
	BirthTime        *string        `json:"birth_time,omitempty"   example:"08:45"`
	BirthPlace       *string        `json:"birth_place,omitempty"  example:"Izmir"`
	EmailVerified    bool           `json:"email_verified"`
	ProfileCompleted bool           `json:"profile_completed"      doc:"Birth date, time and place are all set"`
	Status           string         `json:"status"                 enum:"active,inactive,suspended"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        timeutil.Time  `json:"created_at"             example:"2025-03-10T09:15:00.000Z"`
	UpdatedAt        timeutil.Time  `json:"updated_at"             example:"2025-03-10T09:15:00.000Z"`
	LastSeenAt       *timeutil.Time `json:"last_seen_at,omitempty"`
}

// DisplayInfo is the public, disambiguated view of a profile.
type DisplayInfo struct {
	ProfileID            string `json:"profile_id"                      example:"01JNQ7W3ZK9V4T2M8B6XH5R0DA"`
	UserID               string `json:"user_id"                         example:"3f0c9a52-8d7e-4b1f-a6c2-00a1b2c3d4e5"`
	FullName             string `json:"full_name"                       example:"Ayşe Yılmaz"`
	DisplayName          string `json:"display_name"                    example:"Ayşe Yılmaz (10-03-2025)"`
	DisambiguationMethod string `json:"disambiguation_method,omitempty" enum:"email_prefix,registration_date,user_id" doc:"Absent when the name is not shared"`
}

// ListData is a page of display entries.
type ListData struct {
	Items []DisplayInfo `json:"items"`
	Total int           `json:"total" doc:"Profiles sharing the name" example:"3"`
}
