package marketo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
)

// templatePage renders n summaries starting at the given id.
func templatePage(start, n int) string {
	items := make([]TemplateSummary, n)
	for i := range items {
		id := start + i
		items[i] = TemplateSummary{ID: id, Name: fmt.Sprintf("tpl-%d", id)}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func TestListTemplates_OffsetPagination(t *testing.T) {
	// 437 templates: two full pages of 200 and a short page of 37.
	const total = 437

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/asset/v1/emailTemplates.json", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		size, _ := strconv.Atoi(r.URL.Query().Get("maxReturn"))
		n := total - offset
		if n > size {
			n = size
		}
		if n < 0 {
			n = 0
		}
		fmt.Fprintf(w, `{"success":true,"result":%s}`, templatePage(offset+1, n))
	})

	c := newTestClient(t, mux)

	var pages int
	all, err := c.ListTemplates(context.Background(), 200, func(fetched int) { pages++ })
	if err != nil {
		t.Fatalf("ListTemplates failed: %v", err)
	}
	if len(all) != total {
		t.Fatalf("expected %d templates, got %d", total, len(all))
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
	// Stable listing order.
	for i, tpl := range all {
		if tpl.ID != i+1 {
			t.Fatalf("template %d out of order: id %d", i, tpl.ID)
		}
	}
}

func TestListTemplates_TokenPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/asset/v1/emailTemplates.json", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("nextPageToken") {
		case "":
			fmt.Fprintf(w, `{"success":true,"result":%s,"nextPageToken":"page2","moreResult":true}`, templatePage(1, 2))
		case "page2":
			fmt.Fprintf(w, `{"success":true,"result":%s,"nextPageToken":"page3","moreResult":false}`, templatePage(3, 2))
		default:
			t.Errorf("unexpected token %q", r.URL.Query().Get("nextPageToken"))
		}
	})

	c := newTestClient(t, mux)
	all, err := c.ListTemplates(context.Background(), 2, nil)
	if err != nil {
		t.Fatalf("ListTemplates failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 templates, got %d", len(all))
	}
	if all[3].ID != 4 {
		t.Fatalf("expected last id 4, got %d", all[3].ID)
	}
}

func TestListTemplates_PageCap(t *testing.T) {
	// An upstream that always claims another page.
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/asset/v1/emailTemplates.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"success":true,"result":%s,"nextPageToken":"again","moreResult":true}`, templatePage(1, 2))
	})

	c := newTestClient(t, mux)
	all, err := c.ListTemplates(context.Background(), 2, nil)
	if !errors.Is(err, ErrPageLimit) {
		t.Fatalf("expected ErrPageLimit, got %v", err)
	}
	if len(all) != MaxPages*2 {
		t.Fatalf("expected %d partial items, got %d", MaxPages*2, len(all))
	}
}

func TestListTemplates_EmptyCollection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/asset/v1/emailTemplates.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"result":[]}`)
	})

	c := newTestClient(t, mux)
	all, err := c.ListTemplates(context.Background(), 200, nil)
	if err != nil {
		t.Fatalf("ListTemplates failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty result, got %d items", len(all))
	}
}
