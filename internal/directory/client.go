package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roomlink/roomlink/internal/dns"
)

const (
	roomsPath       = "/rooms"
	maxResponseSize = 1 << 20
)

// Client talks to the room directory REST API.
// It is safe for concurrent use; calls share no mutable state.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a directory client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: newTransport()},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = dns.DialContext
	return t
}

type createResponse struct {
	Result *Room `json:"result"`
}

type searchResponse struct {
	Result []*Room `json:"result"`
}

// Create registers a new room. Only a 201 response counts as success.
// The returned room carries the request's application name, version and
// password regardless of what the server sent for them.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Room, error) {
	const op = "create room"
	endpoint := c.baseURL + roomsPath

	body, err := json.Marshal(req)
	if err != nil {
		return nil, newError(op, endpoint, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newError(op, endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp createResponse
	if err := c.do(op, httpReq, http.StatusCreated, &resp); err != nil {
		return nil, err
	}

	room := resp.Result
	if room == nil {
		room = &Room{}
	}
	room.stampCreated(req)

	c.logger.Debug("room created", "id", room.ID(), "application", req.ApplicationName)
	return room, nil
}

// Search lists rooms for an application name and version. Only a 200
// response counts as success.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]*Room, error) {
	const op = "search rooms"
	endpoint := c.searchURL(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, newError(op, endpoint, err)
	}

	var resp searchResponse
	if err := c.do(op, httpReq, http.StatusOK, &resp); err != nil {
		return nil, err
	}

	rooms := make([]*Room, 0, len(resp.Result))
	for _, room := range resp.Result {
		if room == nil {
			room = &Room{}
		}
		room.stampSearched(req)
		rooms = append(rooms, room)
	}

	c.logger.Debug("rooms found", "count", len(rooms), "application", req.ApplicationName)
	return rooms, nil
}

// CreateAsync runs Create on its own goroutine. onRoom is called exactly
// once if the call succeeds and never otherwise. The returned channel
// receives the call's error, nil on success, and is then closed.
func (c *Client) CreateAsync(ctx context.Context, req CreateRequest, onRoom func(*Room)) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		room, err := c.Create(ctx, req)
		if err != nil {
			c.logger.Warn("create room failed", "error", err)
			errc <- err
			return
		}
		onRoom(room)
		errc <- nil
	}()
	return errc
}

// SearchAsync is the asynchronous form of Search, with the same callback
// contract as CreateAsync.
func (c *Client) SearchAsync(ctx context.Context, req SearchRequest, onRooms func([]*Room)) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		rooms, err := c.Search(ctx, req)
		if err != nil {
			c.logger.Warn("search rooms failed", "error", err)
			errc <- err
			return
		}
		onRooms(rooms)
		errc <- nil
	}()
	return errc
}

// searchURL keeps the wire key "name" for the application name.
func (c *Client) searchURL(req SearchRequest) string {
	q := url.Values{}
	q.Set("name", req.ApplicationName)
	q.Set("version", req.Version)
	return c.baseURL + roomsPath + "?" + q.Encode()
}

func (c *Client) do(op string, req *http.Request, wantStatus int, out any) error {
	endpoint := req.URL.String()

	if c.timeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), c.timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	c.logger.Debug("directory request", "method", req.Method, "url", endpoint)
	resp, err := c.http.Do(req)
	if err != nil {
		return newError(op, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return newError(op, endpoint, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode != wantStatus {
		return statusError(op, endpoint, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: op, URL: endpoint, StatusCode: resp.StatusCode, Err: ErrMalformedResponse, Details: err.Error()}
	}
	return nil
}
