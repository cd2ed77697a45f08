package client

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

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// HTTPClient implements Client using the plantlog HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	// streamClient has no overall timeout so SSE connections stay open.
	streamClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		streamClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- Event types ---

func (c *HTTPClient) EventTypes(ctx context.Context, since time.Time) ([]*model.EventType, error) {
	path := "/v1/event-types"
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}
	var resp struct {
		EventTypes []*model.EventType `json:"event_types"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.EventTypes, nil
}

func (c *HTTPClient) EventType(ctx context.Context, id uuid.UUID) (*model.EventType, error) {
	var et model.EventType
	if err := c.doJSON(ctx, http.MethodGet, "/v1/event-types/"+id.String(), nil, &et); err != nil {
		return nil, err
	}
	return &et, nil
}

func (c *HTTPClient) CreateEventType(ctx context.Context, n model.NewEventType) (*model.EventType, error) {
	var et model.EventType
	if err := c.doJSON(ctx, http.MethodPost, "/v1/event-types", n, &et); err != nil {
		return nil, err
	}
	return &et, nil
}

// --- Events ---

func (c *HTTPClient) PutEvent(ctx context.Context, n model.NewEvent) (*model.EventInstance, error) {
	var ev model.EventInstance
	if err := c.doJSON(ctx, http.MethodPost, "/v1/events", n, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *HTTPClient) GetEvents(ctx context.Context, q model.EventQuery) ([]*model.EventInstance, error) {
	var resp struct {
		Events []*model.EventInstance `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/events/query", q, &resp); err != nil {
		return nil, err
	}
	if resp.Events == nil {
		resp.Events = []*model.EventInstance{}
	}
	return resp.Events, nil
}

func (c *HTTPClient) AddPhoto(ctx context.Context, entity uuid.UUID, contentType string, takenAt time.Time, data []byte) (*model.Photo, *model.EventInstance, error) {
	path := "/v1/plants/" + entity.String() + "/photos"
	if !takenAt.IsZero() {
		path += "?taken_at=" + url.QueryEscape(takenAt.UTC().Format(time.RFC3339))
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", contentType)
	var resp struct {
		Photo *model.Photo         `json:"photo"`
		Event *model.EventInstance `json:"event"`
	}
	if err := c.do(req, "add photo", &resp); err != nil {
		return nil, nil, err
	}
	return resp.Photo, resp.Event, nil
}

// --- internal helpers ---

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, method+" "+path, result)
}

func (c *HTTPClient) do(req *http.Request, op string, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	// 204 No Content has no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func statusText(code int) string {
	return strconv.Itoa(code) + " " + http.StatusText(code)
}
