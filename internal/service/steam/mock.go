package steam

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"
)

// Demo identities served by NewMockService.
const (
	MockSteamID    = "76561197960287930"
	MockVanityName = "gaben"
	MockProfileURL = "https://steamcommunity.com/id/gaben/"
)

// MockService implements Service and GamesProvider for unit tests with
// pre-populated demo data. It is safe for concurrent use.
type MockService struct {
	mu           sync.Mutex
	vanity       map[string]string
	profiles     map[string]*Profile
	friends      map[string][]FriendRef
	games        map[string][]GameRef
	achievements map[int64][]Achievement
	errs         map[string]error
	calls        []string
}

// NewMockService creates a mock pre-populated with a public demo profile, two
// friends, and three played games.
func NewMockService() *MockService {
	created := time.Date(2003, 9, 12, 0, 0, 0, 0, time.UTC)
	friendA := "76561197960265731"
	friendB := "76561197960265732"

	m := &MockService{
		vanity: map[string]string{MockVanityName: MockSteamID},
		profiles: map[string]*Profile{
			MockSteamID: {
				SteamID:                  MockSteamID,
				PersonaName:              "Rabscuttle",
				ProfileURL:               MockProfileURL,
				Avatar:                   "https://avatars.steamstatic.com/c5d56249ee5d28a07db4ac9f7f60af961fab5426.jpg",
				CommunityVisibilityState: 3,
				ProfileState:             1,
				RealName:                 "Gabe Newell",
				CountryCode:              "US",
				TimeCreated:              created,
			},
			friendA: {
				SteamID:                  friendA,
				PersonaName:              "friend-a",
				ProfileURL:               "https://steamcommunity.com/profiles/" + friendA + "/",
				CommunityVisibilityState: 3,
			},
			friendB: {
				SteamID:                  friendB,
				PersonaName:              "friend-b",
				ProfileURL:               "https://steamcommunity.com/profiles/" + friendB + "/",
				CommunityVisibilityState: 3,
			},
		},
		friends: map[string][]FriendRef{
			MockSteamID: {
				{SteamID: friendA, Relationship: "friend", FriendSince: created.AddDate(5, 0, 0)},
				{SteamID: friendB, Relationship: "friend", FriendSince: created.AddDate(6, 0, 0)},
			},
		},
		games: map[string][]GameRef{
			MockSteamID: {
				{AppID: 620, Name: "Portal 2", LastPlayed: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
				{AppID: 440, Name: "Team Fortress 2", LastPlayed: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
				{AppID: 220, Name: "Half-Life 2", LastPlayed: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
			},
		},
		achievements: map[int64][]Achievement{
			620: {
				{APIName: "ACH.SURVIVE_CONTAINER_RIDE", Name: "Wake Up Call", Achieved: true,
					UnlockTime: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
				{APIName: "ACH.WAKE_UP", Name: "You Monster", Achieved: true,
					UnlockTime: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)},
			},
		},
		errs: map[string]error{},
	}
	return m
}

func callKey(op, key string) string { return op + ":" + key }

func (m *MockService) record(op, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := callKey(op, key)
	m.calls = append(m.calls, k)
	return m.errs[k]
}

// SetVanity maps a vanity name to a Steam64 id.
func (m *MockService) SetVanity(name, steamID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vanity[name] = steamID
}

// SetProfile stores p under its SteamID.
func (m *MockService) SetProfile(p *Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.SteamID] = p
}

// SetFriends replaces the friend list of steamID.
func (m *MockService) SetFriends(steamID string, friends []FriendRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.friends[steamID] = friends
}

// SetGames replaces the game list of steamID.
func (m *MockService) SetGames(steamID string, games []GameRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[steamID] = games
}

// SetAchievements replaces the achievements returned for appID.
func (m *MockService) SetAchievements(appID int64, achievements []Achievement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.achievements[appID] = achievements
}

// FailResolveVanityURL makes ResolveVanityURL(name) return err.
func (m *MockService) FailResolveVanityURL(name string, err error) {
	m.fail(opResolveVanityURL, name, err)
}

// FailGetProfile makes GetProfile(steamID) return err.
func (m *MockService) FailGetProfile(steamID string, err error) { m.fail(opGetProfile, steamID, err) }

// FailGetFriendList makes GetFriendList(steamID) return err.
func (m *MockService) FailGetFriendList(steamID string, err error) {
	m.fail(opGetFriendList, steamID, err)
}

// FailRecentGames makes RecentGames for steamID return err.
func (m *MockService) FailRecentGames(steamID string, err error) {
	m.fail(opGetOwnedGames, steamID, err)
}

// FailGetAchievements makes GetAchievements(appID, ...) return err.
func (m *MockService) FailGetAchievements(appID int64, err error) {
	m.fail(opGetAchievements, strconv.FormatInt(appID, 10), err)
}

func (m *MockService) fail(op, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[callKey(op, key)] = err
}

// Calls returns every recorded call as "Operation:key" in call order.
func (m *MockService) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

func (m *MockService) ResolveVanityURL(_ context.Context, name string) (string, error) {
	if err := m.record(opResolveVanityURL, name); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.vanity[name]
	if !ok {
		return "", newUpstreamError(opResolveVanityURL, UpstreamErrorKindNotFound, 200, nil)
	}
	return id, nil
}

func (m *MockService) GetProfile(_ context.Context, steamID string) (*Profile, error) {
	if err := m.record(opGetProfile, steamID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[steamID]
	if !ok {
		return nil, newUpstreamError(opGetProfile, UpstreamErrorKindNotFound, 200, nil)
	}
	cp := *p
	return &cp, nil
}

func (m *MockService) GetFriendList(_ context.Context, steamID string) ([]FriendRef, error) {
	if err := m.record(opGetFriendList, steamID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.friends[steamID]), nil
}

func (m *MockService) GetAchievements(_ context.Context, appID int64, _ string) ([]Achievement, error) {
	if err := m.record(opGetAchievements, strconv.FormatInt(appID, 10)); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return latestAchievements(slices.Clone(m.achievements[appID]), MaxAchievements), nil
}

func (m *MockService) RecentGames(_ context.Context, _ string, steamID string) ([]GameRef, error) {
	if err := m.record(opGetOwnedGames, steamID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return recentGames(slices.Clone(m.games[steamID]), MaxRecentGames), nil
}

// Compile-time interface checks
var (
	_ Service       = (*MockService)(nil)
	_ GamesProvider = (*MockService)(nil)
)
