package profile

// ProfileOutput for endpoints returning the full profile.
type ProfileOutput struct {
	Body Profile
}

// DisplayOutput for GET /profiles/{id}/display.
type DisplayOutput struct {
	Body DisplayInfo
}

// ProfileListOutput carries the pagination Link header.
type ProfileListOutput struct {
	Link string `header:"Link" doc:"RFC 8288 pagination links"`
	Body ListData
}
