package prayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Shtya/fitness-reminders/internal/domain"
)

// DefaultAladhanURL is the public Aladhan API.
const DefaultAladhanURL = "https://api.aladhan.com"

// ErrNoData is returned when the provider answered without usable timings.
var ErrNoData = errors.New("no prayer times in response")

// Fetcher retrieves the prayer times of one date for a place.
type Fetcher interface {
	Fetch(ctx context.Context, d domain.Date, city, country string) (domain.PrayerTimes, error)
}

// AladhanClient fetches timings from the Aladhan timingsByCity endpoint.
type AladhanClient struct {
	client  *http.Client
	baseURL string
	// Method is the Aladhan calculation method; zero leaves the API default.
	Method int
}

func NewAladhanClient(baseURL string) *AladhanClient {
	if baseURL == "" {
		baseURL = DefaultAladhanURL
	}
	return &AladhanClient{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type timingsResponse struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   struct {
		Timings map[string]string `json:"timings"`
	} `json:"data"`
}

// Fetch calls GET /v1/timingsByCity/DD-MM-YYYY?city=..&country=..
func (c *AladhanClient) Fetch(ctx context.Context, d domain.Date, city, country string) (domain.PrayerTimes, error) {
	q := url.Values{}
	q.Set("city", city)
	q.Set("country", country)
	if c.Method > 0 {
		q.Set("method", fmt.Sprint(c.Method))
	}
	u := fmt.Sprintf("%s/v1/timingsByCity/%02d-%02d-%04d?%s", c.baseURL, d.Day, int(d.Month), d.Year, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("aladhan %s: unexpected status %s", d, resp.Status)
	}

	var body timingsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("aladhan %s: decode: %w", d, err)
	}
	return parseTimings(body.Data.Timings)
}

// parseTimings keeps the five prayers. Values may carry a zone suffix such as
// "04:31 (EET)".
func parseTimings(raw map[string]string) (domain.PrayerTimes, error) {
	times := make(domain.PrayerTimes, len(domain.PrayerNames))
	for _, name := range domain.PrayerNames {
		v, ok := raw[string(name)]
		if !ok {
			continue
		}
		if i := strings.IndexByte(v, ' '); i > 0 {
			v = v[:i]
		}
		c, err := domain.ParseClock(v)
		if err != nil {
			continue
		}
		times[name] = c
	}
	if len(times) == 0 {
		return nil, ErrNoData
	}
	return times, nil
}
