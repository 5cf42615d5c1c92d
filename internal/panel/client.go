// Package panel is the authenticated REST client against the control
// plane. Grounded on crates/alerion_core/src/servers/remote.rs
// for pagination and error-mapping semantics, and on the original codebase's
// internal/orchestrator/poller_github.go for Go style: raw net/http, a
// setHeaders helper, manual json.NewDecoder — no third-party HTTP client
// library appears anywhere in the example corpus.
package panel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/pyrohost/alerion/internal/apperrors"
)

const acceptHeader = "application/vnd.pterodactyl.v1+json"

// Client is a paginated, authenticated REST client scoped to the daemon's
// configured panel.
type Client struct {
	baseURL    string
	tokenID    string
	token      string
	httpClient *http.Client
}

// New constructs a Client bound to baseURL, authenticating every request
// with Bearer {tokenID}.{token}.
func New(baseURL, tokenID, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		tokenID:    tokenID,
		token:      token,
		httpClient: &http.Client{},
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s.%s", c.tokenID, c.token))
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Content-Type", "application/json")
}

// classifyStatus maps an HTTP status to this package's error taxonomy:
// 401 -> unauthorized, 404 -> not found, 2xx -> nil (caller decodes body),
// anything else -> RemoteError(status).
func classifyStatus(status int, uuid string) error {
	switch {
	case status == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case status == http.StatusNotFound:
		return &apperrors.NotFoundError{UUID: uuid}
	case status >= 200 && status < 300:
		return nil
	default:
		return &apperrors.RemoteError{Status: status}
	}
}

func (c *Client) do(req *http.Request, uuidHint string) (*http.Response, error) {
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("panel request failed: %w", err)
	}
	if err := classifyStatus(resp.StatusCode, uuidHint); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// GetServers pages through /api/remote/servers until current_page ==
// last_page, concatenating data.
func (c *Client) GetServers() ([]ServerListItem, error) {
	var all []ServerListItem
	page := 1

	for {
		url := fmt.Sprintf("%s/api/remote/servers?page=%d&per_page=50", c.baseURL, page)
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := c.do(req, "")
		if err != nil {
			return nil, err
		}

		var parsed listServersResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode servers page: %w", decodeErr)
		}

		all = append(all, parsed.Data...)

		if parsed.Meta.Pagination.CurrentPage >= parsed.Meta.Pagination.LastPage {
			break
		}
		page++
	}

	return all, nil
}

// GetServer fetches full server settings for one UUID.
func (c *Client) GetServer(id uuid.UUID) (*ServerSettings, error) {
	url := fmt.Sprintf("%s/api/remote/servers/%s", c.baseURL, id)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.do(req, id.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed getServerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode server settings: %w", err)
	}
	return &parsed.Settings, nil
}

// GetInstallInstructions fetches the {container_image, entrypoint,
// script} triple for one server.
func (c *Client) GetInstallInstructions(id uuid.UUID) (*InstallInstructions, error) {
	url := fmt.Sprintf("%s/api/remote/servers/%s/install", c.baseURL, id)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.do(req, id.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var instructions InstallInstructions
	if err := json.NewDecoder(resp.Body).Decode(&instructions); err != nil {
		return nil, fmt.Errorf("failed to decode install instructions: %w", err)
	}
	return &instructions, nil
}

// PostInstallationStatus reports the outcome of an installation attempt.
func (c *Client) PostInstallationStatus(id uuid.UUID, successful, reinstall bool) error {
	body, err := json.Marshal(InstallStatus{Successful: successful, Reinstall: reinstall})
	if err != nil {
		return fmt.Errorf("failed to encode install status: %w", err)
	}

	url := fmt.Sprintf("%s/api/remote/servers/%s/install", c.baseURL, id)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.do(req, id.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// ServerAPI scopes a subset of Client's methods to a single UUID, the
// way crates/alerion_core/src/servers/remote.rs's ServerApi wraps Api.
type ServerAPI struct {
	client *Client
	id     uuid.UUID
}

// ServerAPI returns a client scoped to one server UUID.
func (c *Client) ServerAPI(id uuid.UUID) ServerAPI {
	return ServerAPI{client: c, id: id}
}

func (s ServerAPI) GetSettings() (*ServerSettings, error) { return s.client.GetServer(s.id) }
func (s ServerAPI) GetInstallInstructions() (*InstallInstructions, error) {
	return s.client.GetInstallInstructions(s.id)
}
func (s ServerAPI) PostInstallationStatus(successful, reinstall bool) error {
	return s.client.PostInstallationStatus(s.id, successful, reinstall)
}
