package steam

import (
	"github.com/janisto/steam-gateway/internal/platform/timeutil"
)

// Player is a Steam user profile summary.
type Player struct {
	SteamID                  string         `json:"steamId"                    doc:"Steam64 id"                          example:"76561197960287930"`
	PersonaName              string         `json:"personaName"                doc:"Display name"                        example:"Rabscuttle"`
	ProfileURL               string         `json:"profileUrl"                 doc:"Community profile URL"               example:"https://steamcommunity.com/id/gabelogannewell/"`
	Avatar                   string         `json:"avatar"                     doc:"32x32 avatar URL"`
	AvatarMedium             string         `json:"avatarMedium"               doc:"64x64 avatar URL"`
	AvatarFull               string         `json:"avatarFull"                 doc:"184x184 avatar URL"`
	AvatarHash               string         `json:"avatarHash,omitempty"       doc:"Avatar content hash"`
	PersonaState             int            `json:"personaState"               doc:"0 offline, 1 online, 2 busy, 3 away, 4 snooze, 5 trade, 6 play" example:"0"`
	PersonaStateFlags        int            `json:"personaStateFlags,omitempty" doc:"Persona state flags"`
	CommunityVisibilityState int            `json:"communityVisibilityState"   doc:"1 private, 3 public"                 example:"3"`
	ProfileState             int            `json:"profileState"               doc:"1 when the community profile is set up" example:"1"`
	CommentPermission        int            `json:"commentPermission,omitempty" doc:"Whether public comments are allowed"`
	RealName                 string         `json:"realName,omitempty"         doc:"Real name, if public"`
	PrimaryClanID            string         `json:"primaryClanId,omitempty"    doc:"Primary group id"`
	CountryCode              string         `json:"countryCode,omitempty"      doc:"ISO country code"                    example:"US"`
	StateCode                string         `json:"stateCode,omitempty"        doc:"State code"                          example:"WA"`
	GameID                   string         `json:"gameId,omitempty"           doc:"App id of the game being played"`
	GameExtraInfo            string         `json:"gameExtraInfo,omitempty"    doc:"Name of the game being played"`
	TimeCreated              *timeutil.Time `json:"timeCreated,omitempty"      doc:"Account creation time"               example:"2003-09-12T00:00:00.000Z"`
	LastLogoff               *timeutil.Time `json:"lastLogoff,omitempty"       doc:"Last logoff time"                    example:"2024-06-01T00:00:00.000Z"`
}

// Friend is one enriched friend, rendered as a flat player object. When the
// friend's profile could not be fetched only steamId and error are present.
type Friend struct {
	*Player
	SteamID string `json:"steamId"         doc:"Steam64 id"                example:"76561197960265731"`
	Error   string `json:"error,omitempty" doc:"Why the profile is missing" example:"profile not found"`
}

// Game is a recently played game with its latest unlocked achievements.
type Game struct {
	AppID        int64          `json:"appId"                doc:"Steam app id"               example:"620"`
	Name         string         `json:"name"                 doc:"Game name"                  example:"Portal 2"`
	Logo         string         `json:"logo,omitempty"       doc:"Logo image URL"`
	LastPlayed   *timeutil.Time `json:"lastPlayed,omitempty" doc:"Last time the game was played" example:"2024-05-01T00:00:00.000Z"`
	Achievements []Achievement  `json:"achievements"         doc:"Most recent achievements, newest first"`
}

// Achievement is an achievement definition joined with the player's progress.
type Achievement struct {
	APIName     string         `json:"apiName"              doc:"Achievement API name"       example:"ACH_WAKE_UP"`
	Name        string         `json:"name"                 doc:"Display name"               example:"Wake Up Call"`
	Description string         `json:"description,omitempty" doc:"Achievement description"`
	Icon        string         `json:"icon,omitempty"       doc:"Unlocked icon URL"`
	IconGray    string         `json:"iconGray,omitempty"   doc:"Locked icon URL"`
	Hidden      bool           `json:"hidden"               doc:"Whether the achievement is hidden" example:"false"`
	Achieved    bool           `json:"achieved"             doc:"Whether the player unlocked it"    example:"true"`
	UnlockTime  *timeutil.Time `json:"unlockTime,omitempty" doc:"Unlock time"                example:"2024-04-01T00:00:00.000Z"`
}
