package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/janisto/steam-gateway/internal/platform/metrics"
)

// rgGamesPattern finds the assignment of the rgGames array in an inline script.
// The array literal is then decoded as JSON; the script is never evaluated.
var rgGamesPattern = regexp.MustCompile(`var\s+rgGames\s*=\s*\[`)

// scrapedGame is one rgGames entry of the legacy games page.
type scrapedGame struct {
	AppID      int64  `json:"appid"`
	Name       string `json:"name"`
	Logo       string `json:"logo"`
	LastPlayed int64  `json:"last_played"`
}

// gamesListConfig is the data-profile-gameslist payload of the current games page.
type gamesListConfig struct {
	Games []steamOwnedGame `json:"rgGames"`
}

// Scraper implements GamesProvider by reading a profile's community games page.
// It depends on undocumented markup and is best-effort only.
type Scraper struct {
	httpClient *http.Client
	metrics    *metrics.UpstreamMetrics
}

// ScraperOption configures a Scraper.
type ScraperOption func(*Scraper)

// WithScraperMetrics records every page fetch on m.
func WithScraperMetrics(m *metrics.UpstreamMetrics) ScraperOption {
	return func(s *Scraper) {
		s.metrics = m
	}
}

// NewScraper creates a games page scraper.
func NewScraper(httpClient *http.Client, opts ...ScraperOption) *Scraper {
	s := &Scraper{httpClient: httpClient}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecentGames fetches <profileURL>games/?tab=all and returns at most
// MaxRecentGames entries, most recently played first.
func (s *Scraper) RecentGames(ctx context.Context, profileURL, steamID string) ([]GameRef, error) {
	pageURL, err := gamesPageURL(profileURL)
	if err != nil {
		return nil, fmt.Errorf("scraping games: %w", errors.Join(ErrInvalidInput, err))
	}
	start := time.Now()
	games, err := s.scrape(ctx, pageURL)
	return games, finish(ctx, s.metrics, opScrapeGames, start, err, zap.String("steamId", steamID))
}

func gamesPageURL(profileURL string) (string, error) {
	u, err := url.Parse(profileURL)
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("profile url %q is not absolute", profileURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.Path += "games/"
	u.RawQuery = url.Values{"tab": {"all"}}.Encode()
	return u.String(), nil
}

func (s *Scraper) scrape(ctx context.Context, pageURL string) ([]GameRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, newUpstreamError(opScrapeGames, UpstreamErrorKindUnavailable, 0, err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, newUpstreamError(opScrapeGames, UpstreamErrorKindUnavailable, 0, transportError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(opScrapeGames, resp, "")
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, newUpstreamError(opScrapeGames, UpstreamErrorKindMalformed, resp.StatusCode,
			fmt.Errorf("parsing games page: %w", err))
	}

	games, err := extractGames(doc)
	if err != nil {
		kind := UpstreamErrorKindMalformed
		if doc.Find(".profile_private_info").Length() > 0 {
			kind = UpstreamErrorKindPermissionDenied
		}
		return nil, newUpstreamError(opScrapeGames, kind, resp.StatusCode, err)
	}
	return recentGames(games, MaxRecentGames), nil
}

// extractGames reads the games list from the first inline script assigning
// rgGames, falling back to the data-profile-gameslist attribute.
func extractGames(doc *goquery.Document) ([]GameRef, error) {
	var raw string
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if !strings.Contains(text, "rgGames") {
			return true
		}
		if loc := rgGamesPattern.FindStringIndex(text); loc != nil {
			raw = text[loc[1]-1:]
			return false
		}
		return true
	})

	if raw != "" {
		scraped, err := decodeRGGames(raw)
		if err != nil {
			return nil, err
		}
		games := make([]GameRef, 0, len(scraped))
		for _, g := range scraped {
			games = append(games, GameRef{
				AppID:      g.AppID,
				Name:       g.Name,
				Logo:       g.Logo,
				LastPlayed: unixTime(g.LastPlayed),
			})
		}
		return games, nil
	}

	if attr, ok := doc.Find("[data-profile-gameslist]").First().Attr("data-profile-gameslist"); ok {
		var cfg gamesListConfig
		if err := json.Unmarshal([]byte(attr), &cfg); err != nil {
			return nil, fmt.Errorf("decoding data-profile-gameslist: %w", err)
		}
		games := make([]GameRef, 0, len(cfg.Games))
		for _, g := range cfg.Games {
			games = append(games, GameRef{
				AppID:      g.AppID,
				Name:       g.Name,
				Logo:       logoURL(g.AppID, g.ImgIconURL),
				LastPlayed: unixTime(g.RTimeLastPlayed),
			})
		}
		return games, nil
	}

	return nil, errors.New("games data not found in page")
}

// decodeRGGames decodes the array literal at the start of src. The decoder
// stops at the matching bracket, so brackets inside names are harmless.
func decodeRGGames(src string) ([]scrapedGame, error) {
	var scraped []scrapedGame
	if err := json.NewDecoder(strings.NewReader(src)).Decode(&scraped); err != nil {
		return nil, fmt.Errorf("decoding rgGames: %w", err)
	}
	return scraped, nil
}

// Compile-time interface check
var _ GamesProvider = (*Scraper)(nil)
