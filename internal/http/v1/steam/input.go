package steam

// UserGetInput defines path parameters for the Steam user endpoints.
//
// No pattern is enforced: punctuation is stripped server side and an
// unusable id is reported in the response body.
type UserGetInput struct {
	UserID string `path:"userid" doc:"Steam64 id or vanity name" example:"76561197960287930"`
}
