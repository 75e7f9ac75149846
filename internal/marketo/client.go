// Package marketo is a narrow client for the subset of the Marketo asset API
// this tool consumes: template listing, template content, and folder lookups.
// Response-shape variance (two pagination styles, two content endpoints) is
// normalized here at the boundary; the rest of the tool only sees the types
// in types.go.
package marketo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

const assetBasePath = "/rest/asset/v1"

// notFoundCode is the provider's "no assets found" business error.
const notFoundCode = "702"

// Client issues authenticated calls against a Marketo instance's REST API.
type Client struct {
	baseURL string
	hc      *http.Client

	mu         sync.Mutex
	folderMemo map[int][]Folder
}

// NewClient creates a Client for the given REST base URL
// (e.g. https://123-ABC-456.mktorest.com). Requests carry bearer tokens from
// src; token refresh happens transparently inside the transport.
func NewClient(ctx context.Context, restURL string, src oauth2.TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimRight(restURL, "/"),
		hc:         oauth2.NewClient(ctx, src),
		folderMemo: make(map[int][]Folder),
	}
}

// get performs a GET against an asset-API path and unwraps the response
// envelope. Provider business errors come back as *APIError (or ErrNotFound
// for the "no assets found" code); transport and status failures come back
// as plain wrapped errors.
func (c *Client) get(ctx context.Context, path string, query url.Values) (*envelope, error) {
	u := c.baseURL + assetBasePath + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", path, err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response for %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned %s", path, resp.Status)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response for %s: %w", path, err)
	}

	if len(env.Errors) > 0 {
		first := env.Errors[0]
		if first.Code == notFoundCode {
			return nil, ErrNotFound
		}
		return nil, &APIError{Code: first.Code, Message: first.Message}
	}
	if !env.Success {
		return nil, &APIError{Code: "unknown", Message: "provider reported failure without detail"}
	}
	return &env, nil
}

// GetTemplate fetches a single template summary by id.
func (c *Client) GetTemplate(ctx context.Context, id int) (*TemplateSummary, error) {
	env, err := c.get(ctx, fmt.Sprintf("/emailTemplate/%d.json", id), nil)
	if err != nil {
		return nil, err
	}

	var result []TemplateSummary
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return nil, fmt.Errorf("decode template %d: %w", id, err)
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return &result[0], nil
}

// GetFolder fetches a single folder's details by id.
func (c *Client) GetFolder(ctx context.Context, id int) (*Folder, error) {
	env, err := c.get(ctx, fmt.Sprintf("/folder/%d.json", id), nil)
	if err != nil {
		return nil, err
	}

	var result []Folder
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return nil, fmt.Errorf("decode folder %d: %w", id, err)
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return &result[0], nil
}
