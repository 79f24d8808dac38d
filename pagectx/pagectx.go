// Package pagectx derives the page signals sent with every chat message
// and watches for in-page navigation in hosts that rewrite their location
// without a full reload.
package pagectx

import (
	"net/url"
	"strings"
)

// PageContext carries the current-page signals included in each send. It
// is recomputed on every send and on every detected navigation, never
// cached.
type PageContext struct {
	PageURL       string `json:"page_url"`
	PageTitle     string `json:"page_title"`
	ProductID     string `json:"product_id,omitempty"`
	ProductHandle string `json:"product_handle,omitempty"`
}

// Extract builds the page context for the given location and title. The
// product handle is the path segment immediately following a literal
// "products" segment, regardless of any preceding prefix (collection
// paths and the like); query and fragment are ignored. When the URL has
// no such segment the product fields stay empty.
func Extract(rawURL, title string) PageContext {
	pc := PageContext{PageURL: rawURL, PageTitle: title}

	u, err := url.Parse(rawURL)
	if err != nil {
		return pc
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == "products" && segments[i+1] != "" {
			pc.ProductHandle = segments[i+1]
			break
		}
	}
	return pc
}
