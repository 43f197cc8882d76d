package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenURL  = "https://oauth2.googleapis.com/token"
	uploadURL = "https://www.googleapis.com/upload/drive/v3/files?uploadType=multipart"
	filesURL  = "https://www.googleapis.com/drive/v3/files"
	scope     = "https://www.googleapis.com/auth/drive"
)

// Client uploads booking images to Google Drive using a service account.
type Client struct {
	ClientEmail string
	FolderID    string
	HTTP        *http.Client

	// Endpoints are fields so tests can point them at a local server.
	TokenURL  string
	UploadURL string
	FilesURL  string

	privateKey any

	mu          sync.Mutex
	accessToken string
	tokenExp    time.Time
}

// New creates a Drive client. privateKeyPEM is the service-account key; env
// files commonly carry it with literal \n sequences, which are unescaped here.
func New(clientEmail, privateKeyPEM, folderID string, timeout time.Duration) (*Client, error) {
	pem := strings.ReplaceAll(privateKeyPEM, `\n`, "\n")
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("drive: parse private key: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		ClientEmail: clientEmail,
		FolderID:    folderID,
		HTTP:        &http.Client{Timeout: timeout},
		TokenURL:    tokenURL,
		UploadURL:   uploadURL,
		FilesURL:    filesURL,
		privateKey:  key,
	}, nil
}

// UploadResult holds the uploaded file identity and its shareable link.
type UploadResult struct {
	FileID string
	Link   string
}

// UploadImage uploads the image under a sanitized timestamp-prefixed name,
// makes it world-readable, and returns a shareable link. The two calls must
// run in that order; failure of either aborts the submission.
func (c *Client) UploadImage(ctx context.Context, data []byte, filename, contentType string) (*UploadResult, error) {
	name := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), sanitizeName(filename))

	fileID, err := c.upload(ctx, data, name, contentType)
	if err != nil {
		return nil, err
	}
	if err := c.setPublic(ctx, fileID); err != nil {
		return nil, err
	}
	return &UploadResult{
		FileID: fileID,
		Link:   "https://drive.google.com/uc?id=" + fileID,
	}, nil
}

func (c *Client) upload(ctx context.Context, data []byte, name, contentType string) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	meta := map[string]any{"name": name}
	if c.FolderID != "" {
		meta["parents"] = []string{c.FolderID}
	}
	metaJSON, _ := json.Marshal(meta)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/json; charset=UTF-8"},
	})
	if err != nil {
		return "", fmt.Errorf("drive: create metadata part: %w", err)
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return "", fmt.Errorf("drive: write metadata: %w", err)
	}

	mediaPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {contentType},
	})
	if err != nil {
		return "", fmt.Errorf("drive: create media part: %w", err)
	}
	if _, err := io.Copy(mediaPart, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("drive: write media: %w", err)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadURL, &buf)
	if err != nil {
		return "", fmt.Errorf("drive: create request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+w.Boundary())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("drive: upload request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("drive: upload failed (%d): %s", resp.StatusCode, string(body))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("drive: decode upload response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("drive: upload response missing file id")
	}
	return out.ID, nil
}

// setPublic grants anyone reader access so the link works without a Google
// account.
func (c *Client) setPublic(ctx context.Context, fileID string) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(map[string]string{"role": "reader", "type": "anyone"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.FilesURL+"/"+fileID+"/permissions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("drive: create permission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("drive: permission request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("drive: set permission failed (%d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// token returns a cached access token, exchanging a signed JWT assertion for
// a fresh one when expired.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExp.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.ClientEmail,
		"scope": scope,
		"aud":   c.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("drive: sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("drive: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("drive: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("drive: token exchange failed (%d): %s", resp.StatusCode, string(body))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("drive: decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("drive: token response missing access_token")
	}

	c.accessToken = out.AccessToken
	c.tokenExp = now.Add(time.Duration(out.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// sanitizeName keeps filenames safe for Drive and for log lines.
func sanitizeName(name string) string {
	if name == "" {
		return "image"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
