package marketo

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound indicates the asset does not exist (empty result array or a
// provider "no assets found" error).
var ErrNotFound = errors.New("asset not found")

// ErrNoContent indicates a template yielded no HTML after exhausting both
// content endpoints.
var ErrNoContent = errors.New("template has no HTML content")

// ErrPageLimit indicates pagination stopped at the safety cap. The items
// returned alongside it are valid but possibly partial.
var ErrPageLimit = errors.New("pagination stopped at page cap; result may be partial")

// APIError is a logical error reported by the provider inside an otherwise
// successful (HTTP 200) response. It is fatal to the single operation but
// never to the whole run.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketo api error %s: %s", e.Code, e.Message)
}

// apiMessage is one entry of the errors/warnings arrays in a response envelope.
type apiMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// envelope is the wrapper common to all asset-API responses.
type envelope struct {
	Success       bool            `json:"success"`
	Result        json.RawMessage `json:"result"`
	Errors        []apiMessage    `json:"errors,omitempty"`
	Warnings      []apiMessage    `json:"warnings,omitempty"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
	MoreResult    bool            `json:"moreResult,omitempty"`
}

// FolderRef is the folder reference embedded in a template summary.
type FolderRef struct {
	ID   int    `json:"value"`
	Type string `json:"type"`
	Name string `json:"folderName,omitempty"`
}

// TemplateSummary is one email template as returned by the listing endpoint.
// Read-only after the boundary; timestamps are kept as the provider's strings.
type TemplateSummary struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
	Folder    FolderRef `json:"folder"`
	Subject   string    `json:"subject,omitempty"`
	FromName  string    `json:"fromName,omitempty"`
	FromEmail string    `json:"fromEmail,omitempty"`
}

// idRef is the parent reference inside a folder detail.
type idRef struct {
	ID int `json:"id"`
}

// Folder is one node of the folder tree.
type Folder struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Parent *idRef `json:"parent,omitempty"`
}

// TypedValue is one typed sub-value of a content section. The value is kept
// raw because the provider mixes strings and structured objects in the same
// field; only string HTML values are consumed.
type TypedValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// ContentSection is one unit of structured template content. Content is raw
// for the same reason as TypedValue.Value.
type ContentSection struct {
	ContentType string          `json:"contentType,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Value       []TypedValue    `json:"value,omitempty"`
}

// asString decodes a raw JSON value as a string, returning "" for anything
// that is not a JSON string.
func asString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
