package steam

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// ProfileData is the response body for GET /steam/user/{userid}/profile.
//
// When Error is set the body is rendered as {"error": ...} alone. Otherwise
// player, friends and games are always present, with empty lists as [].
type ProfileData struct {
	Error   string   `json:"error,omitempty"   doc:"Why the profile could not be aggregated" example:"profile not found"`
	Player  *Player  `json:"player,omitempty"  doc:"Profile summary"`
	Friends []Friend `json:"friends" required:"false" doc:"Up to 5 friends in friend-list order"`
	Games   []Game   `json:"games"   required:"false" doc:"Up to 10 most recently played games"`
}

type profileError struct {
	Error string `json:"error" cbor:"error"`
}

type profileBody struct {
	Player  *Player  `json:"player"  cbor:"player"`
	Friends []Friend `json:"friends" cbor:"friends"`
	Games   []Game   `json:"games"   cbor:"games"`
}

func (p ProfileData) wire() any {
	if p.Error != "" {
		return profileError{Error: p.Error}
	}
	body := profileBody{Player: p.Player, Friends: p.Friends, Games: p.Games}
	if body.Friends == nil {
		body.Friends = []Friend{}
	}
	if body.Games == nil {
		body.Games = []Game{}
	}
	return body
}

// MarshalJSON implements json.Marshaler.
func (p ProfileData) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.wire())
}

// MarshalCBOR implements cbor.Marshaler.
func (p ProfileData) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(p.wire())
}

// ProfileGetOutput is the response wrapper for GET /steam/user/{userid}/profile.
type ProfileGetOutput struct {
	Body ProfileData
}

// VanityData is the response body for GET /steam/user/{userid}/vanityurl.
// Both fields are omitted when the input was already a Steam64 id.
type VanityData struct {
	SteamID string `json:"steamId,omitempty" doc:"Resolved Steam64 id" example:"76561197960287930"`
	Error   string `json:"error,omitempty"   doc:"Why the name could not be resolved" example:"vanity url not found"`
}

// VanityGetOutput is the response wrapper for GET /steam/user/{userid}/vanityurl.
type VanityGetOutput struct {
	Body VanityData
}
