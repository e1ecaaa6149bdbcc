package reservation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PaiKingDuck555/imessage-kit-concierge/models"
	"github.com/PaiKingDuck555/imessage-kit-concierge/utils"

	"go.uber.org/zap"
)

const (
	searchOverfetch = 20
	maxVenues       = 5
	maxSlots        = 10
)

// DefaultReservationService talks to the Resy-style reservation API.
type DefaultReservationService struct {
	BaseURL   string
	APIKey    string
	AuthToken string
	// StrictMatch makes Availability fail when the response carries no
	// entry for the requested venue instead of guessing the first one.
	StrictMatch bool
	HTTPClient  *http.Client
}

func NewDefaultReservationService(baseURL, apiKey, authToken string, strictMatch bool) *DefaultReservationService {
	return &DefaultReservationService{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		AuthToken:   authToken,
		StrictMatch: strictMatch,
		HTTPClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *DefaultReservationService) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf(`ResyAPI api_key="%s"`, c.APIKey))
	req.Header.Set("X-Resy-Auth-Token", c.AuthToken)
	req.Header.Set("X-Resy-Universal-Auth", c.AuthToken)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do executes the request and returns the body for 2xx responses. A 402 maps
// to ErrPaymentRequired; any other non-2xx becomes a RequestError.
func (c *DefaultReservationService) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reservation: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reservation: reading response: %w", err)
	}
	if resp.StatusCode == http.StatusPaymentRequired {
		return nil, ErrPaymentRequired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// Ping probes upstream reachability for the health monitor. Any HTTP
// response counts as reachable; only transport errors matter.
func (c *DefaultReservationService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

type venueHit struct {
	ID struct {
		Resy int `json:"resy"`
	} `json:"id"`
	Name     string `json:"name"`
	Location struct {
		Name string `json:"name"`
	} `json:"location"`
	Neighborhood string   `json:"neighborhood"`
	Cuisine      []string `json:"cuisine"`
	Rating       struct {
		Average float64 `json:"average"`
		Count   int     `json:"count"`
	} `json:"rating"`
	PriceRangeID int `json:"price_range_id"`
}

type searchResponse struct {
	Search struct {
		Hits []venueHit `json:"hits"`
	} `json:"search"`
}

func (c *DefaultReservationService) Search(ctx context.Context, query, location string, lat, lng float64) ([]models.Venue, error) {
	logger := utils.GetLogger()

	payload := map[string]any{
		"query":    query,
		"per_page": searchOverfetch,
		"geo": map[string]float64{
			"latitude":  lat,
			"longitude": lng,
		},
	}
	body, _ := json.Marshal(payload)

	req, err := c.newRequest(ctx, http.MethodPost, "/3/venuesearch/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("reservation: decoding search response: %w", err)
	}

	hits := filterByLocation(parsed.Search.Hits, location)
	if len(hits) > maxVenues {
		hits = hits[:maxVenues]
	}

	venues := make([]models.Venue, 0, len(hits))
	for _, h := range hits {
		loc := h.Neighborhood
		if loc == "" {
			loc = h.Location.Name
		}
		venues = append(venues, models.Venue{
			ID:          h.ID.Resy,
			Name:        h.Name,
			Location:    loc,
			Cuisine:     h.Cuisine,
			Rating:      h.Rating.Average,
			ReviewCount: h.Rating.Count,
			PriceTier:   h.PriceRangeID,
		})
	}
	logger.Debug("Venue search complete",
		zap.String("query", query),
		zap.Int("rawHits", len(parsed.Search.Hits)),
		zap.Int("returned", len(venues)))
	return venues, nil
}

// filterByLocation keeps hits whose city or neighborhood mentions a
// significant word of the requested location. The upstream proximity filter
// is advisory only, so this is a post-filter; when it would remove every hit
// the unfiltered set is returned instead.
func filterByLocation(hits []venueHit, location string) []venueHit {
	words := significantWords(location)
	if len(words) == 0 {
		return hits
	}
	var kept []venueHit
	for _, h := range hits {
		hay := strings.ToLower(h.Location.Name + " " + h.Neighborhood)
		for _, w := range words {
			if strings.Contains(hay, w) {
				kept = append(kept, h)
				break
			}
		}
	}
	if len(kept) == 0 {
		return hits
	}
	return kept
}

func significantWords(location string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(location)) {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}

type availabilityResponse struct {
	Results struct {
		Venues []availabilityVenue `json:"venues"`
	} `json:"results"`
}

type availabilityVenue struct {
	Venue struct {
		ID struct {
			Resy int `json:"resy"`
		} `json:"id"`
	} `json:"venue"`
	Slots []struct {
		Config struct {
			Token string `json:"token"`
			Type  string `json:"type"`
		} `json:"config"`
		Date struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"date"`
	} `json:"slots"`
}

func (c *DefaultReservationService) Availability(ctx context.Context, venueID int, day string, partySize int, lat, lng float64) ([]models.Slot, error) {
	logger := utils.GetLogger()

	q := url.Values{}
	q.Set("venue_id", strconv.Itoa(venueID))
	q.Set("day", day)
	q.Set("party_size", strconv.Itoa(partySize))
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("long", strconv.FormatFloat(lng, 'f', -1, 64))

	req, err := c.newRequest(ctx, http.MethodGet, "/4/find?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed availabilityResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("reservation: decoding availability response: %w", err)
	}

	entry, ok := matchVenueEntry(parsed.Results.Venues, venueID)
	if !ok {
		if c.StrictMatch || len(parsed.Results.Venues) == 0 {
			return nil, ErrVenueNotInResponse
		}
		// The response is not contractually keyed by venue id; legacy
		// behavior falls back to the first entry.
		logger.Warn("Availability response missing venue id, using first entry",
			zap.Int("venueID", venueID))
		entry = parsed.Results.Venues[0]
	}

	slots := make([]models.Slot, 0, len(entry.Slots))
	for _, s := range entry.Slots {
		slots = append(slots, models.Slot{
			Start:       clipToHourMinute(s.Date.Start),
			End:         clipToHourMinute(s.Date.End),
			ServiceType: s.Config.Type,
			ConfigToken: s.Config.Token,
		})
		if len(slots) == maxSlots {
			break
		}
	}
	return slots, nil
}

func matchVenueEntry(entries []availabilityVenue, venueID int) (availabilityVenue, bool) {
	for _, e := range entries {
		if e.Venue.ID.Resy == venueID {
			return e, true
		}
	}
	return availabilityVenue{}, false
}

// clipToHourMinute reduces an upstream timestamp like
// "2024-06-02 17:00:00" to "17:00".
func clipToHourMinute(s string) string {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.Format("15:04")
	}
	if len(s) >= 16 {
		return s[11:16]
	}
	return s
}

type detailsResponse struct {
	BookToken struct {
		Value       string `json:"value"`
		DateExpires string `json:"date_expires"`
	} `json:"book_token"`
	Cancellation struct {
		Display struct {
			Policy []string `json:"policy"`
		} `json:"display"`
	} `json:"cancellation"`
	Payment struct {
		Amounts struct {
			Deposit float64 `json:"deposit"`
		} `json:"amounts"`
	} `json:"payment"`
}

// Hold requests a commitment hold on one slot. An empty book token in the
// response means the slot was taken between listing and this call; that is a
// normal race and is surfaced as an empty HoldResult, not an error.
func (c *DefaultReservationService) Hold(ctx context.Context, configToken, day string, partySize int) (models.HoldResult, error) {
	payload := map[string]any{
		"config_id":  configToken,
		"day":        day,
		"party_size": partySize,
	}
	body, _ := json.Marshal(payload)

	req, err := c.newRequest(ctx, http.MethodPost, "/3/details", bytes.NewReader(body))
	if err != nil {
		return models.HoldResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req)
	if err != nil {
		return models.HoldResult{}, err
	}

	var parsed detailsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.HoldResult{}, fmt.Errorf("reservation: decoding details response: %w", err)
	}

	result := models.HoldResult{
		BookToken:          parsed.BookToken.Value,
		CancellationPolicy: strings.Join(parsed.Cancellation.Display.Policy, " "),
		PaymentAmount:      parsed.Payment.Amounts.Deposit,
	}
	if parsed.BookToken.DateExpires != "" {
		result.Expires = parseExpiry(parsed.BookToken.DateExpires)
	}
	return result, nil
}

func parseExpiry(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type bookResponse struct {
	ReservationID int    `json:"reservation_id"`
	ResyToken     string `json:"resy_token"`
}

// Book commits the hold. Non-idempotent: a retry could double-book, so
// callers must never retry this automatically.
func (c *DefaultReservationService) Book(ctx context.Context, bookToken string) (models.Confirmation, error) {
	form := url.Values{}
	form.Set("book_token", bookToken)

	req, err := c.newRequest(ctx, http.MethodPost, "/3/book", strings.NewReader(form.Encode()))
	if err != nil {
		return models.Confirmation{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	raw, err := c.do(req)
	if err != nil {
		return models.Confirmation{}, err
	}

	var parsed bookResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.Confirmation{}, fmt.Errorf("reservation: decoding book response: %w", err)
	}
	return models.Confirmation{
		ReservationID: strconv.Itoa(parsed.ReservationID),
		Token:         parsed.ResyToken,
	}, nil
}
