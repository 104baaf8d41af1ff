package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	applog "github.com/janisto/steam-gateway/internal/platform/logging"
	"github.com/janisto/steam-gateway/internal/platform/metrics"
)

const (
	testAPIKey  = "test-key"
	testSteamID = "76561197960287930"
)

func newTestServer(handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

func newTestClient(serverURL string, opts ...Option) *Client {
	opts = append([]Option{WithBaseURL(serverURL), WithAPIKey(testAPIKey)}, opts...)
	return NewClient(http.DefaultClient, opts...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func steamIDAt(i int) string {
	return fmt.Sprintf("%d", uint64(76561197960265728)+uint64(i+1))
}

func TestResolveVanityURL(t *testing.T) {
	srv := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ISteamUser/ResolveVanityURL/v1/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("vanityurl") != "gaben" {
			t.Errorf("expected vanityurl=gaben, got %s", q.Get("vanityurl"))
		}
		if q.Get("key") != testAPIKey {
			t.Errorf("expected api key, got %q", q.Get("key"))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"response": map[string]any{"steamid": testSteamID, "success": 1},
		})
	})
	defer srv.Close()

	id, err := newTestClient(srv.URL).ResolveVanityURL(context.Background(), "gaben")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != testSteamID {
		t.Fatalf("expected %s, got %s", testSteamID, id)
	}
}

func TestResolveVanityURLNoMatch(t *testing.T) {
	srv := newTestServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"response": map[string]any{"success": 42, "message": "No match"},
		})
	})
	defer srv.Close()

	_, err := newTestClient(srv.URL).ResolveVanityURL(context.Background(), "nobody-here")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "No match") {
		t.Fatalf("expected upstream message in error, got %v", err)
	}
}

func TestInvalidInputNeverContactsUpstream(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()
	client := newTestClient(srv.URL)
	ctx := context.Background()

	checks := map[string]error{}
	_, checks["empty vanity"] = client.ResolveVanityURL(ctx, "")
	_, checks["vanity as profile id"] = client.GetProfile(ctx, "gaben")
	_, checks["friends of non-numeric"] = client.GetFriendList(ctx, "12ab")
	_, checks["missing app id"] = client.GetAchievements(ctx, 0, testSteamID)
	_, checks["achievements of non-numeric"] = client.GetAchievements(ctx, 440, "gaben")
	_, checks["owned games of non-numeric"] = client.RecentGames(ctx, "", "gaben")

	for name, err := range checks {
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
	if n := hits.Load(); n != 0 {
		t.Fatalf("expected no upstream calls, got %d", n)
	}
}

func TestValidSteamID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{testSteamID, true},
		{"76561197960265731", true},
		{"", false},
		{"gaben", false},
		{"-76561197960287930", false},
		{"765611979602879301234", false},
	}
	for _, tt := range tests {
		if got := validSteamID(tt.id); got != tt.want {
			t.Errorf("validSteamID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestGetProfile(t *testing.T) {
	srv := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ISteamUser/GetPlayerSummaries/v2/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("steamids") != testSteamID {
			t.Errorf("expected steamids=%s, got %s", testSteamID, r.URL.Query().Get("steamids"))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"response": map[string]any{
				"players": []map[string]any{{
					"steamid":                  testSteamID,
					"personaname":              "Rabscuttle",
					"profileurl":               "https://steamcommunity.com/id/gaben/",
					"avatarfull":               "https://avatars.steamstatic.com/full.jpg",
					"communityvisibilitystate": 3,
					"profilestate":             1,
					"personastate":             1,
					"loccountrycode":           "US",
					"timecreated":              1063407589,
				}},
			},
		})
	})
	defer srv.Close()

	p, err := newTestClient(srv.URL).GetProfile(context.Background(), testSteamID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.SteamID != testSteamID || p.PersonaName != "Rabscuttle" {
		t.Errorf("unexpected profile: %+v", p)
	}
	if p.ProfileURL != "https://steamcommunity.com/id/gaben/" {
		t.Errorf("unexpected profile url: %s", p.ProfileURL)
	}
	if p.CommunityVisibilityState != 3 || p.CountryCode != "US" {
		t.Errorf("unexpected visibility/country: %+v", p)
	}
	if !p.TimeCreated.Equal(time.Unix(1063407589, 0)) {
		t.Errorf("unexpected time created: %s", p.TimeCreated)
	}
	if !p.LastLogoff.IsZero() {
		t.Errorf("expected zero last logoff, got %s", p.LastLogoff)
	}
}

func TestGetProfileFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
		kind    UpstreamErrorKind
		status  int
	}{
		{
			name: "no players",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"response": map[string]any{"players": []any{}}})
			},
			want:   ErrNotFound,
			kind:   UpstreamErrorKindNotFound,
			status: http.StatusOK,
		},
		{
			name: "missing profile url",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{
					"response": map[string]any{"players": []map[string]any{{"steamid": testSteamID}}},
				})
			},
			want:   ErrMalformed,
			kind:   UpstreamErrorKindMalformed,
			status: http.StatusOK,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("<html>"))
			},
			want:   ErrMalformed,
			kind:   UpstreamErrorKindMalformed,
			status: http.StatusOK,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want:   ErrUnavailable,
			kind:   UpstreamErrorKindUnavailable,
			status: http.StatusInternalServerError,
		},
		{
			name: "forbidden key",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			want:   ErrPermissionDenied,
			kind:   UpstreamErrorKindPermissionDenied,
			status: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(tt.handler)
			defer srv.Close()

			_, err := newTestClient(srv.URL).GetProfile(context.Background(), testSteamID)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var upErr *UpstreamError
			if !errors.As(err, &upErr) {
				t.Fatalf("expected *UpstreamError, got %T", err)
			}
			if upErr.Kind != tt.kind || upErr.Status != tt.status || upErr.Operation != opGetProfile {
				t.Fatalf("unexpected upstream error: %+v", upErr)
			}
			if KindOf(err) != tt.kind {
				t.Fatalf("KindOf = %s, want %s", KindOf(err), tt.kind)
			}
		})
	}
}

func TestTransportErrorDoesNotLeakAPIKey(t *testing.T) {
	srv := newTestServer(func(http.ResponseWriter, *http.Request) {})
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).GetProfile(context.Background(), testSteamID)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if strings.Contains(err.Error(), testAPIKey) {
		t.Fatalf("error leaks api key: %v", err)
	}
}

func TestGetFriendListPreservesUpstreamOrder(t *testing.T) {
	srv := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ISteamUser/GetFriendList/v1/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("relationship") != "friend" {
			t.Errorf("expected relationship=friend, got %s", r.URL.Query().Get("relationship"))
		}
		friends := make([]map[string]any, 8)
		for i := range friends {
			friends[i] = map[string]any{
				"steamid":      steamIDAt(7 - i),
				"relationship": "friend",
				"friend_since": 1500000000 + i,
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"friendslist": map[string]any{"friends": friends}})
	})
	defer srv.Close()

	friends, err := newTestClient(srv.URL).GetFriendList(context.Background(), testSteamID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(friends) != 8 {
		t.Fatalf("expected 8 friends, got %d", len(friends))
	}
	for i, f := range friends {
		if f.SteamID != steamIDAt(7-i) {
			t.Fatalf("friend %d: expected %s, got %s", i, steamIDAt(7-i), f.SteamID)
		}
	}
	if !friends[0].FriendSince.Equal(time.Unix(1500000000, 0)) {
		t.Fatalf("unexpected friend_since: %s", friends[0].FriendSince)
	}
}

func TestGetFriendListPrivate(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := applog.WithLogger(context.Background(), zap.New(core))

	srv := newTestServer(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("<html><body>Unauthorized</body></html>"))
	})
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetFriendList(ctx, testSteamID)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	entries := recorded.FilterMessage("steam resource is private").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 private log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %s", entries[0].Level)
	}
	if got := entries[0].ContextMap()["operation"]; got != opGetFriendList {
		t.Fatalf("expected operation %s, got %v", opGetFriendList, got)
	}
	if n := recorded.FilterMessage("steam request failed").Len(); n != 0 {
		t.Fatalf("expected no generic failure log, got %d", n)
	}
}

func TestGenericFailureLogsError(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := applog.WithLogger(context.Background(), zap.New(core))

	srv := newTestServer(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	_, _ = newTestClient(srv.URL).GetFriendList(ctx, testSteamID)

	entries := recorded.FilterMessage("steam request failed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected 1 error entry, got %v", entries)
	}
}

func TestGetFriendListWithoutFriendsKey(t *testing.T) {
	srv := newTestServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	defer srv.Close()

	friends, err := newTestClient(srv.URL).GetFriendList(context.Background(), testSteamID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if friends != nil {
		t.Fatalf("expected nil friends, got %v", friends)
	}
}

func achievementsServer(t *testing.T, progress, schema []map[string]any) *httptest.Server {
	t.Helper()
	return newTestServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("appid") != "620" {
			t.Errorf("expected appid=620, got %s", r.URL.Query().Get("appid"))
		}
		switch r.URL.Path {
		case "/ISteamUserStats/GetPlayerAchievements/v1/":
			if r.URL.Query().Get("steamid") != testSteamID {
				t.Errorf("expected steamid=%s, got %s", testSteamID, r.URL.Query().Get("steamid"))
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"playerstats": map[string]any{
					"steamID":      testSteamID,
					"gameName":     "Portal 2",
					"achievements": progress,
					"success":      true,
				},
			})
		case "/ISteamUserStats/GetSchemaForGame/v2/":
			writeJSON(w, http.StatusOK, map[string]any{
				"game": map[string]any{
					"gameName":           "Portal 2",
					"availableGameStats": map[string]any{"achievements": schema},
				},
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestGetAchievementsKeepsSixMostRecent(t *testing.T) {
	progress := make([]map[string]any, 20)
	schema := make([]map[string]any, 20)
	for i := range progress {
		name := fmt.Sprintf("ACH_%02d", i)
		progress[i] = map[string]any{"apiname": name, "achieved": 1, "unlocktime": 1600000000 + i*60}
		// Schema arrives in reverse order; the join must not depend on position.
		schema[19-i] = map[string]any{
			"name":        name,
			"displayName": "Display " + name,
			"description": "Description " + name,
			"icon":        "https://cdn.test/" + name + ".jpg",
			"icongray":    "https://cdn.test/" + name + "_gray.jpg",
			"hidden":      i % 2,
		}
	}
	srv := achievementsServer(t, progress, schema)
	defer srv.Close()

	got, err := newTestClient(srv.URL).GetAchievements(context.Background(), 620, testSteamID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != MaxAchievements {
		t.Fatalf("expected %d achievements, got %d", MaxAchievements, len(got))
	}
	for i, a := range got {
		want := fmt.Sprintf("ACH_%02d", 19-i)
		if a.APIName != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, a.APIName)
		}
		if a.Name != "Display "+want || a.Description != "Description "+want {
			t.Fatalf("position %d: schema not joined by name: %+v", i, a)
		}
		if a.Hidden != ((19-i)%2 == 1) {
			t.Fatalf("position %d: unexpected hidden flag", i)
		}
		if !a.Achieved {
			t.Fatalf("position %d: expected achieved", i)
		}
		if i > 0 && a.UnlockTime.After(got[i-1].UnlockTime) {
			t.Fatalf("achievements not sorted by unlock time desc")
		}
	}
}

func TestGetAchievementsWithoutSchemaEntry(t *testing.T) {
	progress := []map[string]any{
		{"apiname": "KNOWN", "achieved": 1, "unlocktime": 1600000000},
		{"apiname": "UNKNOWN", "achieved": 0, "unlocktime": 0},
	}
	schema := []map[string]any{{"name": "KNOWN", "displayName": "Known One"}}
	srv := achievementsServer(t, progress, schema)
	defer srv.Close()

	got, err := newTestClient(srv.URL).GetAchievements(context.Background(), 620, testSteamID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 achievements, got %d", len(got))
	}
	if got[0].Name != "Known One" {
		t.Fatalf("expected Known One first, got %s", got[0].Name)
	}
	if got[1].Name != "UNKNOWN" || got[1].Achieved || !got[1].UnlockTime.IsZero() {
		t.Fatalf("unexpected fallback achievement: %+v", got[1])
	}
}

func TestGetAchievementsFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		want    error
	}{
		{"private profile", http.StatusForbidden, "Profile is not public", ErrPermissionDenied},
		{"game without stats", http.StatusBadRequest, "Requested app has no stats", ErrNotFound},
		{"server error", http.StatusServiceUnavailable, "", ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(func(w http.ResponseWriter, r *http.Request) {
				if strings.Contains(r.URL.Path, "GetSchemaForGame") {
					writeJSON(w, http.StatusOK, map[string]any{"game": map[string]any{}})
					return
				}
				writeJSON(w, tt.status, map[string]any{
					"playerstats": map[string]any{"error": tt.message, "success": false},
				})
			})
			defer srv.Close()

			got, err := newTestClient(srv.URL).GetAchievements(context.Background(), 620, testSteamID)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if got != nil {
				t.Fatalf("expected nil achievements, got %v", got)
			}
		})
	}
}

func TestGetAchievementsPrivateWithOKStatus(t *testing.T) {
	srv := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "GetSchemaForGame") {
			writeJSON(w, http.StatusOK, map[string]any{"game": map[string]any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"playerstats": map[string]any{"error": "Profile is not public", "success": false},
		})
	})
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetAchievements(context.Background(), 620, testSteamID)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestOwnedGamesRecentGames(t *testing.T) {
	srv := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/IPlayerService/GetOwnedGames/v1/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("include_appinfo") != "1" {
			t.Errorf("expected include_appinfo=1")
		}
		games := make([]map[string]any, 15)
		for i := range games {
			games[i] = map[string]any{
				"appid":             100 + i,
				"name":              fmt.Sprintf("Game %d", i),
				"img_icon_url":      fmt.Sprintf("hash%d", i),
				"rtime_last_played": 1700000000 + ((i * 7) % 15 * 100),
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"response": map[string]any{"game_count": len(games), "games": games},
		})
	})
	defer srv.Close()

	games, err := newTestClient(srv.URL).RecentGames(context.Background(), "", testSteamID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(games) != MaxRecentGames {
		t.Fatalf("expected %d games, got %d", MaxRecentGames, len(games))
	}
	for i := 1; i < len(games); i++ {
		if games[i].LastPlayed.After(games[i-1].LastPlayed) {
			t.Fatalf("games not sorted by last played desc at %d", i)
		}
	}
	// The ten most recent of fifteen have (i*7)%15 >= 5.
	if games[len(games)-1].LastPlayed.Before(time.Unix(1700000000+5*100, 0)) {
		t.Fatalf("older game kept: %+v", games[len(games)-1])
	}
	want := fmt.Sprintf("%s/%d/hash%d.jpg", mediaBaseURL, games[0].AppID, games[0].AppID-100)
	if games[0].Logo != want {
		t.Fatalf("expected logo %s, got %s", want, games[0].Logo)
	}
}

func TestOwnedGamesHiddenLibrary(t *testing.T) {
	srv := newTestServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"response": map[string]any{}})
	})
	defer srv.Close()

	games, err := newTestClient(srv.URL).RecentGames(context.Background(), "", testSteamID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(games) != 0 {
		t.Fatalf("expected no games, got %v", games)
	}
}

func TestClientRecordsMetrics(t *testing.T) {
	m := metrics.NewUpstreamMetrics(prometheus.NewRegistry())
	srv := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ISteamUser/GetFriendList/v1/" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"response": map[string]any{"steamid": testSteamID, "success": 1},
		})
	})
	defer srv.Close()
	client := newTestClient(srv.URL, WithMetrics(m))

	_, _ = client.ResolveVanityURL(context.Background(), "gaben")
	_, _ = client.GetFriendList(context.Background(), testSteamID)

	if got := testutil.ToFloat64(m.CallsTotal.WithLabelValues(opResolveVanityURL, metrics.OutcomeSuccess)); got != 1 {
		t.Fatalf("expected 1 successful vanity call, got %v", got)
	}
	if got := testutil.ToFloat64(m.CallsTotal.WithLabelValues(opGetFriendList, metrics.OutcomePermissionDenied)); got != 1 {
		t.Fatalf("expected 1 permission denied friend call, got %v", got)
	}
}

func TestUpstreamErrorNil(t *testing.T) {
	var e *UpstreamError
	if e.Error() != "steam upstream error" {
		t.Fatalf("unexpected nil error text: %s", e.Error())
	}
	if e.Unwrap() != nil {
		t.Fatal("expected nil unwrap")
	}
	if KindOf(errors.New("other")) != "" {
		t.Fatal("expected empty kind for unrelated error")
	}
	if KindOf(fmt.Errorf("wrapped: %w", ErrPermissionDenied)) != UpstreamErrorKindPermissionDenied {
		t.Fatal("expected permission kind for wrapped sentinel")
	}
}
