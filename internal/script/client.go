package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"
)

// ErrHTMLResponse means the Apps Script deployment returned an HTML page
// instead of JSON. This almost always indicates a misconfigured or
// re-deployed script URL, so it gets its own error kind.
var ErrHTMLResponse = errors.New("script returned HTML instead of JSON")

// ErrBadJSON means the upstream body could not be parsed as JSON at all.
var ErrBadJSON = errors.New("invalid response format from Google Apps Script")

// Result holds a decoded upstream response plus the raw body so callers can
// relay it verbatim.
type Result struct {
	StatusCode int
	Body       []byte
	Success    bool
	Message    string
	Bookings   []map[string]any
}

type envelope struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Bookings []map[string]any `json:"bookings"`
}

// Client calls the Google Apps Script endpoint that is the system of record.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client. The timeout applies to every outbound call; the
// original proxy had none and could hang for as long as the platform allowed.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// GetBookings fetches the full visit-record list.
func (c *Client) GetBookings(ctx context.Context) (*Result, error) {
	return c.get(ctx, url.Values{"action": {"getBookings"}})
}

// LookupStudent resolves a student ID to name/grade data. The script's
// routing is unreliable: a logical failure whose message contains "Invalid"
// is retried once as a POST with the same payload. The substring match is a
// stopgap until the script exposes a real error code.
func (c *Client) LookupStudent(ctx context.Context, studentID string) (*Result, error) {
	res, err := c.get(ctx, url.Values{"action": {"lookupStudent"}, "studentId": {studentID}})
	if err != nil {
		return nil, err
	}
	if !res.Success && strings.Contains(res.Message, "Invalid") {
		logger.Debug.Printf("lookup via GET rejected for %s, retrying as POST", studentID)
		return c.SubmitJSON(ctx, map[string]string{"action": "lookupStudent", "studentId": studentID})
	}
	return res, nil
}

// SubmitJSON forwards a JSON payload to the script via POST.
func (c *Client) SubmitJSON(ctx context.Context, payload any) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("script: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// Login forwards a plaintext credential pair as a form post. The script owns
// all credential checks; nothing is verified here.
func (c *Client) Login(ctx context.Context, email, password string) (*Result, error) {
	form := url.Values{"email": {email}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, query url.Values) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Result, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("script request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("script: read response: %w", err)
	}
	return decode(resp.StatusCode, body)
}

// decode sniffs HTML error pages before attempting JSON. The status code is
// not trusted for this: a misdeployed script can return 200 with an HTML
// login page.
func decode(status int, body []byte) (*Result, error) {
	if looksLikeHTML(body) {
		return nil, fmt.Errorf("%w (status %d)", ErrHTMLResponse, status)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	return &Result{
		StatusCode: status,
		Body:       body,
		Success:    env.Success,
		Message:    env.Message,
		Bookings:   env.Bookings,
	}, nil
}

func looksLikeHTML(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "<!DOCTYPE") {
		return true
	}
	return strings.Contains(strings.ToLower(trimmed), "<html")
}
