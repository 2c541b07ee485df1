package registration

// DuplicateContext describes how a shared name is told apart.
type DuplicateContext struct {
	HasDuplicates        bool   `json:"has_duplicates"        doc:"Another profile shares the full name"`
	TotalCount           int    `json:"total_count"           doc:"Profiles sharing the name, this one included" example:"2"`
	DisambiguationMethod string `json:"disambiguation_method" doc:"How display names are told apart"            enum:"email_prefix,registration_date,user_id"`
}

// Registration is the outcome of a registration attempt. Clients branch on
// success and error only; message is for humans.
type Registration struct {
	Success          bool              `json:"success"`
	ProfileID        string            `json:"profile_id,omitempty"        example:"01JNQ7W3ZK9V4T2M8B6XH5R0DA"`
	UserID           string            `json:"user_id,omitempty"           example:"3f0c9a52-8d7e-4b1f-a6c2-00a1b2c3d4e5"`
	FullName         string            `json:"full_name,omitempty"         example:"Ali Demir"`
	Email            string            `json:"email,omitempty"             example:"ali@example.com"`
	IsDuplicateName  *bool             `json:"is_duplicate_name,omitempty" doc:"Another profile shares the full name; sent on success only"`
	DuplicateContext *DuplicateContext `json:"duplicate_context,omitempty"`
	Error            string            `json:"error,omitempty"             enum:"EMAIL_EXISTS,USER_ID_EXISTS,INVALID_EMAIL,INVALID_NAME,CONSTRAINT_VIOLATION,UNKNOWN_ERROR"`
	Message          string            `json:"message,omitempty"           example:"Registration successful"`
	ValidationErrors map[string]string `json:"validation_errors,omitempty" doc:"Field name to reason"`
}
