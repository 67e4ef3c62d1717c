package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Account describes one account in a session resource.
type Account struct {
	Name                string                     `json:"name"`
	IsPersonal          bool                       `json:"isPersonal"`
	IsReadOnly          bool                       `json:"isReadOnly"`
	AccountCapabilities map[string]json.RawMessage `json:"accountCapabilities,omitempty"`
}

// Session is the server's session resource.
type Session struct {
	Capabilities    map[string]json.RawMessage `json:"capabilities"`
	Accounts        map[string]Account         `json:"accounts"`
	PrimaryAccounts map[string]string          `json:"primaryAccounts"`
	Username        string                     `json:"username"`
	APIURL          string                     `json:"apiUrl"`
	DownloadURL     string                     `json:"downloadUrl,omitempty"`
	UploadURL       string                     `json:"uploadUrl,omitempty"`
	EventSourceURL  string                     `json:"eventSourceUrl,omitempty"`
	State           string                     `json:"state"`
}

// PrimaryAccount returns the primary account id for capability.
func (s *Session) PrimaryAccount(capability string) (string, bool) {
	id, ok := s.PrimaryAccounts[capability]
	return id, ok
}

// Supports reports whether the server advertises capability.
func (s *Session) Supports(capability string) bool {
	_, ok := s.Capabilities[capability]
	return ok
}

// FetchSession GETs the session resource at url. A nil client uses
// http.DefaultClient.
func FetchSession(ctx context.Context, client *http.Client, url string, auth Authenticator) (*Session, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if auth == nil {
		auth = NoAuth{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	requestID := UUIDGenerator{}.Generate()
	req.Header.Set(HeaderRequestID, requestID)
	auth.Authenticate(req.Header)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: get session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("transport: read session: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, data, requestID)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("transport: decode session: %w", err)
	}
	if s.APIURL == "" {
		return nil, errors.New("transport: session has no apiUrl")
	}
	return &s, nil
}
