package registration

// RegisterInput for POST /registrations. Field rules are enforced by the
// identity validator so failures come back as a Registration body, not as
// schema errors.
type RegisterInput struct {
	Body struct {
		FirstName  string  `json:"first_name"            required:"false" doc:"Given name, letters, spaces and hyphens" example:"Ali"`
		LastName   string  `json:"last_name"             required:"false" doc:"Family name"                                           example:"Demir"`
		Email      string  `json:"email"                 required:"false" doc:"Email address, unique case-insensitively"              example:"ali@example.com"`
		Phone      *string `json:"phone,omitempty"       required:"false" doc:"Phone number, 7 to 15 digits with optional leading +"  example:"+905551234567"`
		BirthDate  *string `json:"birth_date,omitempty"  required:"false" doc:"Birth date DD-MM-YYYY, not in the future"              example:"14-07-1990"`
		BirthTime  *string `json:"birth_time,omitempty"  required:"false" doc:"Birth time HH:MM, 24-hour"                             example:"08:45"`
		BirthPlace *string `json:"birth_place,omitempty" required:"false" doc:"Birth place"                                           example:"Izmir"`
	}
}
