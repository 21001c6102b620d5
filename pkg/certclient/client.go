// Package certclient reads approved participant certificates from the
// certificate management public API.
package certclient

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
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

// WithToken sends a bearer token on every request, for deployments that
// protect the public API.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type PublicKey struct {
	ParticipantID string `json:"participantId"`
	PublicKey     string `json:"publicKey"`
}

type CertificateInfo struct {
	Subject            string `json:"subject"`
	Issuer             string `json:"issuer"`
	SerialNumber       string `json:"serialNumber"`
	ValidFrom          string `json:"validFrom"`
	ValidTo            string `json:"validTo"`
	SignatureAlgorithm string `json:"signatureAlgorithm"`
}

type Certificate struct {
	ID            string          `json:"id"`
	ParticipantID string          `json:"participantId"`
	Cert          string          `json:"cert"`
	CertInfo      CertificateInfo `json:"certInfo"`
	PublicKey     string          `json:"publicKey"`
	ApprovedBy    *string         `json:"approvedBy,omitempty"`
	ApprovedDate  *time.Time      `json:"approvedDate,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is returned for any non-success response other than 404.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("certificate API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("certificate API error: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

var errNotFound = errors.New("not found")

func (c *Client) ListPublicKeys(ctx context.Context) ([]PublicKey, error) {
	var keys []PublicKey
	if err := c.get(ctx, "/public/certs/public-keys", &keys); err != nil {
		if errors.Is(err, errNotFound) {
			return []PublicKey{}, nil
		}
		return nil, err
	}
	return keys, nil
}

// GetCertificate returns nil when the participant has no approved certificate.
func (c *Client) GetCertificate(ctx context.Context, participantID string) (*Certificate, error) {
	var cert Certificate
	if err := c.get(ctx, "/public/certs/"+url.PathEscape(participantID), &cert); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cert, nil
}

// GetPublicKey returns the PEM encoded public key of a participant's approved
// certificate, or an empty string when there is none.
func (c *Client) GetPublicKey(ctx context.Context, participantID string) (string, error) {
	cert, err := c.GetCertificate(ctx, participantID)
	if err != nil || cert == nil {
		return "", err
	}
	return cert.PublicKey, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}
