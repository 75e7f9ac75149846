package marketo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// fragmentSeparator joins HTML fragments flattened from separate sections.
const fragmentSeparator = "\n\n"

// TemplateHTML returns a template's rendered HTML as a single string.
//
// The richer fullContent endpoint is tried first; when it errors or comes
// back empty, the structured content-sections endpoint is flattened instead.
// Exhausting both yields ErrNoContent. Provider business errors on the
// fallback endpoint are surfaced as-is so the caller sees the provider's own
// code and message.
func (c *Client) TemplateHTML(ctx context.Context, id int) (string, error) {
	html, fullErr := c.fullContent(ctx, id)
	if fullErr == nil && html != "" {
		return html, nil
	}

	html, err := c.sectionContent(ctx, id)
	if err != nil {
		return "", fmt.Errorf("template %d content: %w", id, err)
	}
	if html == "" {
		return "", fmt.Errorf("template %d: %w", id, ErrNoContent)
	}
	return html, nil
}

// fullContent fetches the pre-rendered HTML from the fullContent endpoint.
type fullContentItem struct {
	Content json.RawMessage `json:"content,omitempty"`
}

func (c *Client) fullContent(ctx context.Context, id int) (string, error) {
	env, err := c.get(ctx, fmt.Sprintf("/emailTemplate/%d/fullContent.json", id), nil)
	if err != nil {
		return "", err
	}

	var items []fullContentItem
	if err := json.Unmarshal(env.Result, &items); err != nil {
		return "", fmt.Errorf("decode full content: %w", err)
	}

	var fragments []string
	for _, item := range items {
		if s := asString(item.Content); s != "" {
			fragments = append(fragments, s)
		}
	}
	return strings.Join(fragments, fragmentSeparator), nil
}

// sectionContent fetches the structured sections endpoint and flattens it.
func (c *Client) sectionContent(ctx context.Context, id int) (string, error) {
	env, err := c.get(ctx, fmt.Sprintf("/emailTemplate/%d/content.json", id), nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	var sections []ContentSection
	if err := json.Unmarshal(env.Result, &sections); err != nil {
		return "", fmt.Errorf("decode content sections: %w", err)
	}
	return flattenSections(sections), nil
}

// flattenSections concatenates every HTML fragment carried by the sections,
// in input order: first each typed sub-value marked as HTML, then the
// section's own inline content string when present.
func flattenSections(sections []ContentSection) string {
	var fragments []string
	for _, sec := range sections {
		for _, tv := range sec.Value {
			if !strings.EqualFold(tv.Type, "HTML") {
				continue
			}
			if s := asString(tv.Value); s != "" {
				fragments = append(fragments, s)
			}
		}
		if s := asString(sec.Content); s != "" {
			fragments = append(fragments, s)
		}
	}
	return strings.Join(fragments, fragmentSeparator)
}
