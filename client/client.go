// Package client is a small HTTP client for the spacegrid API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"spacegrid/internal/models"

	"github.com/redis/go-redis/v9"
)

// Client calls the JSON API with the configured API key headers.
type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// APIError is a non-2xx answer.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// New constructs a client with baseURL, API key and extra header.
func New(baseURL, apiKey, apiExtra string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache caches the space catalog, which rarely changes.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) ListSpaces(ctx context.Context) ([]models.Space, error) {
	const cacheKey = "spacegrid:client:spaces"
	var wrap struct {
		Spaces []models.Space `json:"spaces"`
	}

	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Spaces, nil
	}
	if err := c.doGet(ctx, "/api/v1/spaces", nil, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Spaces, nil
}

// DaySlots fetches the classified slots of one space. A zero now lets the server decide.
func (c *Client) DaySlots(ctx context.Context, spaceID, date string, minutes int, now time.Time) ([]models.Slot, error) {
	var wrap struct {
		Slots []models.Slot `json:"slots"`
	}
	path := "/api/v1/spaces/" + url.PathEscape(spaceID) + "/slots"
	if err := c.doGet(ctx, path, scheduleQuery(date, minutes, now), &wrap); err != nil {
		return nil, err
	}
	return wrap.Slots, nil
}

func (c *Client) DayGrid(ctx context.Context, date string, minutes int, now time.Time) (*models.DayGrid, error) {
	var grid models.DayGrid
	if err := c.doGet(ctx, "/api/v1/schedule", scheduleQuery(date, minutes, now), &grid); err != nil {
		return nil, err
	}
	return &grid, nil
}

func scheduleQuery(date string, minutes int, now time.Time) url.Values {
	q := url.Values{"date": {date}}
	if minutes > 0 {
		q.Set("slot", strconv.Itoa(minutes))
	}
	if !now.IsZero() {
		q.Set("now", now.Format(time.RFC3339))
	}
	return q
}

// BookingRequest mirrors the create payload.
type BookingRequest struct {
	SpaceID   string    `json:"space_id"`
	Title     string    `json:"title"`
	CreatedBy string    `json:"created_by"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Status    string    `json:"status,omitempty"`
}

func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	var out models.Booking
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/bookings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelBooking(ctx context.Context, id, changedBy string) (*models.Booking, error) {
	var out models.Booking
	body := map[string]string{"changed_by": changedBy}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/bookings/"+url.PathEscape(id)+"/cancel", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil {
			apiErr.Message = body.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
}
