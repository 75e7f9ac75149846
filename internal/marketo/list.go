package marketo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// MaxPages caps a listing walk so a misbehaving upstream (a cursor that
// never ends, a collection that grows mid-walk) cannot loop forever.
// Hitting the cap yields the items collected so far plus ErrPageLimit.
const MaxPages = 100

// DefaultPageSize is the provider's maximum maxReturn for asset listings.
const DefaultPageSize = 200

// PageFunc is invoked after each fetched page with the running total.
type PageFunc func(fetched int)

// ListTemplates walks the template listing until the provider signals the
// end of the collection and returns every template in listing order.
//
// The provider exposes two cursor styles. When a response carries
// nextPageToken, the token is authoritative and the walk continues while
// moreResult is set. Otherwise the walk falls back to offset paging and a
// page shorter than pageSize ends it. A fresh bearer token is obtained for
// every page request, so mid-run token expiry is safe.
//
// On hitting MaxPages the collected items are returned together with
// ErrPageLimit; callers treat this as a partial-result warning, not a
// failure.
func (c *Client) ListTemplates(ctx context.Context, pageSize int, onPage PageFunc) ([]TemplateSummary, error) {
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}

	var all []TemplateSummary
	nextToken := ""

	for page := 0; ; page++ {
		if page == MaxPages {
			return all, ErrPageLimit
		}

		q := url.Values{}
		q.Set("maxReturn", strconv.Itoa(pageSize))
		if nextToken != "" {
			q.Set("nextPageToken", nextToken)
		} else {
			q.Set("offset", strconv.Itoa(len(all)))
		}

		env, err := c.get(ctx, "/emailTemplates.json", q)
		if err != nil {
			return nil, fmt.Errorf("list templates (page %d): %w", page+1, err)
		}

		var batch []TemplateSummary
		if len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, &batch); err != nil {
				return nil, fmt.Errorf("decode template page %d: %w", page+1, err)
			}
		}
		all = append(all, batch...)
		if onPage != nil {
			onPage(len(all))
		}

		if len(batch) == 0 {
			return all, nil
		}
		if env.NextPageToken != "" {
			// Token cursor is authoritative when present.
			if !env.MoreResult {
				return all, nil
			}
			nextToken = env.NextPageToken
			continue
		}
		if len(batch) < pageSize {
			return all, nil
		}
	}
}
