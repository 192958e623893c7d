// Package baas is the persistence collaborator backed by the hosted
// backend-as-a-service REST API (documents, file storage, functions).
package baas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/lopperater/internal/apperr"
	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/metrics"
)

const (
	CollectionMarkets = "markets"
	CollectionStalls  = "stalls"
	CollectionRatings = "ratings"
	CollectionPhotos  = "photos"

	backendLabel = "baas"
	pageSize     = 100
	maxBodyBytes = 4 << 20
)

// Options configures a Client.
type Options struct {
	Endpoint        string
	ProjectID       string
	APIKey          string
	DatabaseID      string
	PhotoBucketID   string
	PhotoFunctionID string
	Timeout         time.Duration
	Logger          zerolog.Logger
	// HTTPClient overrides the default tuned client.
	HTTPClient *http.Client
}

// Client talks to the BaaS over HTTP. It implements domain.Backend and
// domain.PhotoStorage.
type Client struct {
	baseURL *url.URL
	opts    Options
	client  *http.Client
	logger  zerolog.Logger

	mu    sync.RWMutex
	token string
}

// NewClient validates opts and builds a client.
func NewClient(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("baas endpoint is required")
	}
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("baas project id is required")
	}
	parsed, err := url.Parse(strings.TrimRight(opts.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse baas endpoint: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("baas endpoint %q must be an absolute URL", opts.Endpoint)
	}
	if opts.DatabaseID == "" {
		opts.DatabaseID = "lopperater"
	}
	if opts.PhotoBucketID == "" {
		opts.PhotoBucketID = "photos"
	}
	if opts.PhotoFunctionID == "" {
		opts.PhotoFunctionID = "faceBlur"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		}
	}

	return &Client{
		baseURL: parsed,
		opts:    opts,
		client:  httpClient,
		logger:  opts.Logger,
	}, nil
}

// SetSessionToken sets the JWT sent with every request. An empty token
// makes the client anonymous.
func (c *Client) SetSessionToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) sessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func (c *Client) jsonRequest(op, method, path string, payload any) (request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("%s: encode request: %w", op, err)
	}
	return request{op: op, method: method, path: path, body: bytes.NewReader(body), contentType: "application/json"}, nil
}

// do sends req and decodes a 2xx body into out, which must be a pointer to
// a response shape with validate tags.
func (c *Client) do(ctx context.Context, req request, out any) error {
	endpoint := *c.baseURL
	endpoint.Path = c.baseURL.Path + req.path
	endpoint.RawQuery = req.query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint.String(), req.body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", req.op, err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Appwrite-Project", c.opts.ProjectID)
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.opts.APIKey != "" {
		httpReq.Header.Set("X-Appwrite-Key", c.opts.APIKey)
	}
	if token := c.sessionToken(); token != "" {
		httpReq.Header.Set("X-Appwrite-JWT", token)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	metrics.CollaboratorDuration.WithLabelValues(backendLabel, req.op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorRequests.WithLabelValues(backendLabel, req.op, "transport_error").Inc()
		return apperr.FromCollaborator(ctx, req.op, err)
	}
	defer resp.Body.Close()
	metrics.CollaboratorRequests.WithLabelValues(backendLabel, req.op, fmt.Sprint(resp.StatusCode)).Inc()

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(req, requestID, resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return apperr.NewTimeout(req.op+" timed out", err)
		}
		return apperr.NewMalformedResponse(req.op+": decode response", err)
	}
	if err := checkShape(out); err != nil {
		return apperr.NewMalformedResponse(req.op+": "+err.Error(), nil)
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

func (c *Client) statusError(req request, requestID string, status int, body io.Reader) error {
	var payload errorBody
	_ = json.NewDecoder(body).Decode(&payload)
	msg := payload.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.NewAuthentication(fmt.Sprintf("%s: %s", req.op, msg))
	case http.StatusNotFound:
		return apperr.NewNotFound(fmt.Sprintf("%s: %s", req.op, msg))
	case http.StatusBadRequest:
		return apperr.NewRemote(fmt.Sprintf("%s rejected: %s", req.op, msg), nil)
	default:
		c.logger.Warn().
			Str("op", req.op).
			Str("request_id", requestID).
			Int("status", status).
			Str("type", payload.Type).
			Msg("baas returned unexpected status")
		return apperr.NewRemote(fmt.Sprintf("%s: baas returned %d: %s", req.op, status, msg), nil)
	}
}

// HealthCheck pings the public version endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	var out versionResponse
	return c.do(ctx, request{op: "health", method: http.MethodGet, path: "/health/version"}, &out)
}

func (c *Client) documentsPath(collection string) string {
	return fmt.Sprintf("/databases/%s/collections/%s/documents", url.PathEscape(c.opts.DatabaseID), url.PathEscape(collection))
}

func (c *Client) documentPath(collection, id string) string {
	return c.documentsPath(collection) + "/" + url.PathEscape(id)
}

// createDocument posts data as a new document with a server-assigned id.
func (c *Client) createDocument(ctx context.Context, op, collection string, data any, out any) error {
	req, err := c.jsonRequest(op, http.MethodPost, c.documentsPath(collection), map[string]any{
		"documentId": "unique()",
		"data":       data,
	})
	if err != nil {
		return err
	}
	return c.do(ctx, req, out)
}

func (c *Client) getDocument(ctx context.Context, op, collection, id string, out any) error {
	if id == "" {
		return apperr.NewValidation(op + ": id is required")
	}
	return c.do(ctx, request{op: op, method: http.MethodGet, path: c.documentPath(collection, id)}, out)
}

// listDocuments pages through a collection with cursor pagination.
func listDocuments[T any](ctx context.Context, c *Client, op, collection string, filters ...query) ([]T, error) {
	var all []T
	cursor := ""
	for {
		q := url.Values{}
		for _, f := range filters {
			q.Add("queries[]", f.encode())
		}
		q.Add("queries[]", limitQuery(pageSize).encode())
		if cursor != "" {
			q.Add("queries[]", cursorAfterQuery(cursor).encode())
		}

		var page documentList[T]
		req := request{op: op, method: http.MethodGet, path: c.documentsPath(collection), query: q}
		if err := c.do(ctx, req, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Documents...)
		if len(page.Documents) < pageSize {
			break
		}
		last, ok := any(&page.Documents[len(page.Documents)-1]).(identified)
		if !ok {
			break
		}
		cursor = last.documentID()
	}
	if all == nil {
		all = []T{}
	}
	return all, nil
}

// query is one element of the queries[] list.
type query struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

func (q query) encode() string {
	b, _ := json.Marshal(q)
	return string(b)
}

func equalQuery(attribute string, value any) query {
	return query{Method: "equal", Attribute: attribute, Values: []any{value}}
}

func limitQuery(n int) query {
	return query{Method: "limit", Values: []any{n}}
}

func cursorAfterQuery(id string) query {
	return query{Method: "cursorAfter", Values: []any{id}}
}

var (
	_ domain.Backend      = (*Client)(nil)
	_ domain.PhotoStorage = (*Client)(nil)
)
