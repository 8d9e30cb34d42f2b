// Package mediawiki is a minimal client for the MediaWiki Action API: category
// member listings and raw page markup.
package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/fetcher"
	"github.com/IshaanNene/wikicat/internal/types"
)

// MemberKind selects which category members a listing returns.
type MemberKind string

const (
	KindSubcategory MemberKind = "subcat"
	KindPage        MemberKind = "page"
)

// Logical endpoint names used for logging and metrics.
const (
	EndpointCategoryMembers = "categorymembers"
	EndpointContent         = "content"
)

// Client talks to a single MediaWiki api.php endpoint.
type Client struct {
	fetcher  fetcher.Fetcher
	endpoint string
	limit    string
	logger   *slog.Logger
}

// NewClient creates a client for cfg.Endpoint.
func NewClient(f fetcher.Fetcher, cfg *config.APIConfig, logger *slog.Logger) *Client {
	limit := cfg.MemberLimit
	if limit == "" {
		limit = "max"
	}
	return &Client{
		fetcher:  f,
		endpoint: cfg.Endpoint,
		limit:    limit,
		logger:   logger.With("component", "mediawiki"),
	}
}

// MembersPage is one page of a category listing.
type MembersPage struct {
	Members []types.Member

	// Continue holds the continuation parameters for the next request; nil
	// when the listing is exhausted.
	Continue map[string]string
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type membersResponse struct {
	Error    *apiError      `json:"error"`
	Continue map[string]any `json:"continue"`
	Query    *struct {
		CategoryMembers []types.Member `json:"categorymembers"`
	} `json:"query"`
}

// CategoryMembers fetches a single page of members of kind in category title,
// newest first. cont carries the previous page's continuation parameters.
func (c *Client) CategoryMembers(ctx context.Context, title string, kind MemberKind, cont map[string]string) (*MembersPage, error) {
	params := url.Values{
		"action":  {"query"},
		"list":    {"categorymembers"},
		"cmtitle": {title},
		"cmtype":  {string(kind)},
		"cmdir":   {"desc"},
		"cmlimit": {c.limit},
		"format":  {"json"},
	}
	for k, v := range cont {
		params.Set(k, v)
	}

	var body membersResponse
	if err := c.get(ctx, EndpointCategoryMembers, params, &body); err != nil {
		return nil, err
	}
	if body.Error != nil {
		return nil, &types.APIError{Endpoint: EndpointCategoryMembers, Code: body.Error.Code, Info: body.Error.Info}
	}
	if body.Query == nil {
		return nil, &types.APIError{Endpoint: EndpointCategoryMembers, Err: types.ErrMissingEnvelope}
	}

	page := &MembersPage{Members: body.Query.CategoryMembers}
	if len(body.Continue) > 0 {
		page.Continue = make(map[string]string, len(body.Continue))
		for k, v := range body.Continue {
			page.Continue[k] = fmt.Sprint(v)
		}
	}
	return page, nil
}

// AllCategoryMembers follows continuation tokens until the listing is
// exhausted. On failure it returns the members collected so far along with
// the error. A continuation token seen twice ends the listing.
func (c *Client) AllCategoryMembers(ctx context.Context, title string, kind MemberKind) ([]types.Member, error) {
	var (
		members []types.Member
		cont    map[string]string
		seen    = make(map[string]bool)
	)

	for {
		page, err := c.CategoryMembers(ctx, title, kind, cont)
		if err != nil {
			return members, err
		}
		members = append(members, page.Members...)

		if page.Continue == nil {
			return members, nil
		}
		key := continueKey(page.Continue)
		if seen[key] {
			c.logger.Warn("repeated continuation token, stopping listing",
				"category", title,
				"kind", kind,
				"token", key,
			)
			return members, nil
		}
		seen[key] = true
		cont = page.Continue
	}
}

func continueKey(cont map[string]string) string {
	keys := make([]string, 0, len(cont))
	for k := range cont {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(cont[k])
		b.WriteByte('&')
	}
	return b.String()
}

type contentResponse struct {
	Error *apiError `json:"error"`
	Query *struct {
		Pages map[string]struct {
			Title     string            `json:"title"`
			Missing   *string           `json:"missing"`
			Revisions []json.RawMessage `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

type revision struct {
	Star    *string `json:"*"`
	Content *string `json:"content"`
	Slots   map[string]struct {
		Star    *string `json:"*"`
		Content *string `json:"content"`
	} `json:"slots"`
}

// PageContent returns the raw markup of one section of the page. Section 0 is
// the lead section, which is where infoboxes live.
func (c *Client) PageContent(ctx context.Context, title string, section int) (string, error) {
	params := url.Values{
		"action":    {"query"},
		"prop":      {"revisions"},
		"rvprop":    {"content"},
		"rvsection": {fmt.Sprint(section)},
		"titles":    {title},
		"format":    {"json"},
	}

	var body contentResponse
	if err := c.get(ctx, EndpointContent, params, &body); err != nil {
		return "", err
	}
	if body.Error != nil {
		return "", &types.APIError{Endpoint: EndpointContent, Code: body.Error.Code, Info: body.Error.Info}
	}
	if body.Query == nil || len(body.Query.Pages) == 0 {
		return "", &types.APIError{Endpoint: EndpointContent, Err: types.ErrMissingEnvelope}
	}

	for id, page := range body.Query.Pages {
		if id == "-1" || page.Missing != nil || len(page.Revisions) == 0 {
			return "", fmt.Errorf("%q: %w", title, types.ErrPageMissing)
		}
		var rev revision
		if err := json.Unmarshal(page.Revisions[0], &rev); err != nil {
			return "", fmt.Errorf("decode revision of %q: %w", title, err)
		}
		if text, ok := rev.text(); ok {
			return text, nil
		}
		return "", &types.APIError{Endpoint: EndpointContent, Err: fmt.Errorf("revision of %q has no content: %w", title, types.ErrMissingEnvelope)}
	}
	return "", nil
}

func (r *revision) text() (string, bool) {
	switch {
	case r.Star != nil:
		return *r.Star, true
	case r.Content != nil:
		return *r.Content, true
	}
	if main, ok := r.Slots["main"]; ok {
		if main.Star != nil {
			return *main.Star, true
		}
		if main.Content != nil {
			return *main.Content, true
		}
	}
	return "", false
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := types.NewRequest(c.endpoint, params)
	if err != nil {
		return err
	}
	req.Endpoint = endpoint

	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return &types.FetchError{URL: req.URLString(), StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	return resp.DecodeJSON(out)
}
