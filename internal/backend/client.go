// Package backend is the REST persistence collaborator: it sends wizard
// payloads to a remote listings API as multipart requests and loads stored
// listings back for editing.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/matthewbaird/listingform/internal/types"
	"github.com/matthewbaird/listingform/internal/wizard"
)

// Error is a non-2xx answer from the listings API.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// UserMessage is the server-supplied message, shown to the user as is.
func (e *Error) UserMessage() string {
	return e.Message
}

// Client talks to the listings API at BaseURL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// New returns a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type submitResponse struct {
	ID         string `json:"id"`
	PropertyID string `json:"propertyId"`
	Message    string `json:"message"`
}

// Submit creates (POST /properties) or updates (PUT /properties/{id}) a
// listing. The JSON payload travels in the "data" part; pending files in
// the repeated "images" and "documents" parts.
func (c *Client) Submit(ctx context.Context, p *wizard.Payload) (wizard.Receipt, error) {
	body, contentType, err := encodeMultipart(p)
	if err != nil {
		return wizard.Receipt{}, err
	}

	method, endpoint := http.MethodPost, c.baseURL+"/properties"
	if p.Update() {
		method, endpoint = http.MethodPut, endpoint+"/"+url.PathEscape(p.PropertyID)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return wizard.Receipt{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wizard.Receipt{}, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	c.logger.Info("backend submit", "method", method, "status", resp.StatusCode, "duration", time.Since(start))

	if err := checkStatus(resp); err != nil {
		return wizard.Receipt{}, err
	}
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return wizard.Receipt{}, fmt.Errorf("decoding response: %w", err)
	}
	id := out.PropertyID
	if id == "" {
		id = out.ID
	}
	if id == "" {
		id = p.PropertyID
	}
	return wizard.Receipt{PropertyID: id, Created: !p.Update()}, nil
}

// Get loads a stored listing (GET /properties/{id}).
func (c *Client) Get(ctx context.Context, id string) (types.PropertyRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/properties/"+url.PathEscape(id), nil)
	if err != nil {
		return types.PropertyRecord{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.PropertyRecord{}, fmt.Errorf("GET property %s: %w", id, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return types.PropertyRecord{}, err
	}
	var rec types.PropertyRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return types.PropertyRecord{}, fmt.Errorf("decoding property: %w", err)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			msg = body.Message
		case body.Error != "":
			msg = body.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{Status: resp.StatusCode, Message: msg}
}

func encodeMultipart(p *wizard.Payload) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	data, err := json.Marshal(p)
	if err != nil {
		return nil, "", fmt.Errorf("encoding payload: %w", err)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="data"`)
	h.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	if err := writeFiles(mw, "images", p.ImageFiles); err != nil {
		return nil, "", err
	}
	if err := writeFiles(mw, "documents", p.DocumentFiles); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func writeFiles(mw *multipart.Writer, field string, files []*types.File) error {
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.Name))
		ct := f.Type
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := part.Write(f.Content); err != nil {
			return fmt.Errorf("writing %s part %s: %w", field, f.Name, err)
		}
	}
	return nil
}
