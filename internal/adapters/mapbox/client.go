package mapbox

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/time/rate"

	"caffio/internal/adapters/observability"
	"caffio/internal/domain"
)

const DefaultBaseURL = "https://api.mapbox.com"

type Options struct {
	BaseURL string
	Token   string
	RPS     int
	// MaxAttempts is the number of tries per call. 1 means no retry.
	MaxAttempts int
	// Profile is the directions profile used for the distance matrix.
	Profile string
	// Timeout bounds each HTTP request. Zero means no client timeout; the
	// caller's context still applies.
	Timeout time.Duration
}

type Client struct {
	base     string
	hc       *http.Client
	token    string
	rl       *rate.Limiter
	attempts int
	profile  string
}

var _ domain.Geocoder = (*Client)(nil)

func New(o Options) (*Client, error) {
	if o.Token == "" {
		return nil, fmt.Errorf("mapbox access token is required")
	}
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.RPS <= 0 {
		o.RPS = 10
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}
	if o.Profile == "" {
		o.Profile = "walking"
	}
	if o.Timeout < 0 {
		o.Timeout = 0
	}
	return &Client{
		base:     strings.TrimRight(o.BaseURL, "/"),
		hc:       &http.Client{Timeout: o.Timeout},
		token:    o.Token,
		rl:       rate.NewLimiter(rate.Limit(o.RPS), o.RPS),
		attempts: o.MaxAttempts,
		profile:  o.Profile,
	}, nil
}

// ---- Public API ----

// Retrieve fetches one POI by id. Unknown ids yield domain.ErrNotFound.
func (c *Client) Retrieve(ctx context.Context, mapboxID, sessionToken string) (*geojson.Feature, error) {
	q := url.Values{}
	q.Set("session_token", sessionToken)
	u := c.base + "/search/searchbox/v1/retrieve/" + url.PathEscape(mapboxID)

	var raw json.RawMessage
	if err := c.get(ctx, "retrieve", u, q, &raw); err != nil {
		return nil, err
	}
	return firstFeature(raw)
}

type suggestResponse struct {
	Suggestions []struct {
		MapboxID       string   `json:"mapbox_id"`
		Name           string   `json:"name"`
		FeatureType    string   `json:"feature_type"`
		PlaceFormatted string   `json:"place_formatted"`
		FullAddress    string   `json:"full_address"`
		Distance       *float64 `json:"distance"`
	} `json:"suggestions"`
}

func (c *Client) Suggest(ctx context.Context, query string, opts domain.SuggestOptions) ([]domain.Suggestion, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("session_token", opts.SessionToken)
	if opts.Proximity != nil {
		q.Set("proximity", coordPair(*opts.Proximity))
	}
	if len(opts.Types) > 0 {
		q.Set("types", strings.Join(opts.Types, ","))
	}

	var resp suggestResponse
	if err := c.get(ctx, "suggest", c.base+"/search/searchbox/v1/suggest", q, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Suggestion, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		out = append(out, domain.Suggestion{
			MapboxID:       s.MapboxID,
			Name:           s.Name,
			FeatureType:    s.FeatureType,
			PlaceFormatted: s.PlaceFormatted,
			FullAddress:    s.FullAddress,
			Distance:       s.Distance,
		})
	}
	return out, nil
}

// ReverseGeocode returns the best match for a coordinate, or domain.ErrNotFound.
func (c *Client) ReverseGeocode(ctx context.Context, lng, lat float64) (*geojson.Feature, error) {
	q := url.Values{}
	q.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))

	var raw json.RawMessage
	if err := c.get(ctx, "reverse", c.base+"/search/geocode/v6/reverse", q, &raw); err != nil {
		return nil, err
	}
	return firstFeature(raw)
}

type matrixResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// DistanceMatrix asks for the origin row only: sources=0 and every other
// coordinate as a destination.
func (c *Client) DistanceMatrix(ctx context.Context, origin domain.Coords, dests []domain.Coords) (domain.Matrix, error) {
	if len(dests) == 0 {
		return domain.Matrix{}, nil
	}
	coords := make([]string, 0, len(dests)+1)
	idx := make([]string, 0, len(dests))
	coords = append(coords, coordPair(origin))
	for i, d := range dests {
		coords = append(coords, coordPair(d))
		idx = append(idx, strconv.Itoa(i+1))
	}

	q := url.Values{}
	q.Set("annotations", "duration,distance")
	q.Set("sources", "0")
	q.Set("destinations", strings.Join(idx, ";"))
	u := fmt.Sprintf("%s/directions-matrix/v1/mapbox/%s/%s", c.base, c.profile, strings.Join(coords, ";"))

	var resp matrixResponse
	if err := c.get(ctx, "matrix", u, q, &resp); err != nil {
		return domain.Matrix{}, err
	}
	if resp.Code != "" && resp.Code != "Ok" {
		return domain.Matrix{}, fmt.Errorf("%w: matrix code %s: %s", domain.ErrUpstream, resp.Code, resp.Message)
	}
	return domain.Matrix{Distances: resp.Distances, Durations: resp.Durations}, nil
}

// ---- Internals ----

func coordPair(c domain.Coords) string {
	return strconv.FormatFloat(c.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}

// firstFeature decodes the first feature of a collection. A feature without
// a well-formed point is domain.ErrNoGeometry.
func firstFeature(raw json.RawMessage) (*geojson.Feature, error) {
	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("%w: decode feature collection: %v", domain.ErrUpstream, err)
	}
	if len(fc.Features) == 0 || string(fc.Features[0]) == "null" {
		return nil, domain.ErrNotFound
	}
	if err := domain.CheckPointGeometry(fc.Features[0]); err != nil {
		return nil, err
	}
	f, err := geojson.UnmarshalFeature(fc.Features[0])
	if err != nil {
		return nil, fmt.Errorf("%w: decode feature: %v", domain.ErrUpstream, err)
	}
	return f, nil
}

// get performs a GET with client-side rate limiting and JSON decode into out.
// With more than one attempt configured it retries 429 and transient 5xx,
// honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, endpoint, base string, q url.Values, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	q.Set("access_token", c.token)
	full := base + "?" + q.Encode()

	var lastErr error
	for i := 0; i < c.attempts; i++ {
		more := i < c.attempts-1
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "caffio/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("mapbox", endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// url.Error carries the token; keep only the cause
			var ue *url.Error
			if errors.As(err, &ue) {
				err = ue.Err
			}
			lastErr = fmt.Errorf("%w: mapbox %s: %v", domain.ErrUpstream, endpoint, err)
			if more && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("mapbox", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("%w: mapbox %s: decode: %v", domain.ErrUpstream, endpoint, err)
			}
			return nil

		case http.StatusNotFound:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return domain.ErrNotFound

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("%w: mapbox %s status %d", domain.ErrUpstream, endpoint, resp.StatusCode)
			if more && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("%w: mapbox %s status %d: %s", domain.ErrUpstream, endpoint, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
