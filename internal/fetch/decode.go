package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"racefeed/internal/checkpoint"
	"racefeed/internal/services"
)

var strictPolicy = bluemonday.StrictPolicy()

// GetJSON fetches path and decodes the body into v. A body that is not
// valid JSON is a fatal shape error.
func (c *Client) GetJSON(ctx context.Context, key checkpoint.Key, path string, params url.Values, v any) error {
	body, err := c.Get(ctx, key, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return services.Wrap(services.KindFatal, c.platform, "decode json", "unexpected response shape", err).WithURL(c.Resolve(path))
	}
	return nil
}

// GetDocument fetches path and parses it as HTML.
func (c *Client) GetDocument(ctx context.Context, key checkpoint.Key, path string, params url.Values) (*goquery.Document, error) {
	body, err := c.Get(ctx, key, path, params)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.KindFatal, c.platform, "parse html", "unparseable page", err).WithURL(c.Resolve(path))
	}
	return doc, nil
}

// CleanText strips markup from a platform text field, unescapes entities
// and collapses whitespace.
func CleanText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	stripped := html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.Join(strings.Fields(stripped), " ")
}
