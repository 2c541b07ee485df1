package registration

// RegisterOutput for POST /registrations. Status is 201 on success and the
// mapped error status otherwise.
type RegisterOutput struct {
	Status   int
	Location string `header:"Location" doc:"URL of the created profile"`
	Body     Registration
}
