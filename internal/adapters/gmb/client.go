package gmb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reviewradar/internal/adapters/observability"
	"reviewradar/internal/domain"
)

const pageSize = 50

// Client talks to the Google Business Profile API. Discovery picks the
// first accessible account and its first location; review listing then
// exhausts pagination against that location.
type Client struct {
	base   string
	hc     *http.Client
	tokens domain.TokenProvider
	rl     *rate.Limiter
}

func New(base string, tokens domain.TokenProvider, rps int) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token provider is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		hc:     &http.Client{Timeout: 20 * time.Second},
		tokens: tokens,
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// FetchError is a non-2xx listing response. Fatal to a sync run: a
// partial review set could trigger false reply deletions downstream.
type FetchError struct {
	Status int
	Body   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("gmb: status %d: %s", e.Status, e.Body)
}

func (c *Client) FetchAllReviews(ctx context.Context) ([]domain.RemoteReview, error) {
	account, err := c.firstAccount(ctx)
	if err != nil {
		return nil, err
	}
	location, err := c.firstLocation(ctx, account)
	if err != nil {
		return nil, err
	}

	var out []domain.RemoteReview
	pageToken := ""
	for {
		page, next, err := c.listReviewsPage(ctx, location, pageToken)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if next == "" {
			return out, nil
		}
		pageToken = next
	}
}

func (c *Client) SendReply(ctx context.Context, resourceName, comment string) error {
	u := fmt.Sprintf("%s/%s/reply", c.base, strings.Trim(resourceName, "/"))
	body, err := json.Marshal(map[string]string{"comment": comment})
	if err != nil {
		return err
	}
	var out map[string]any
	return c.do(ctx, http.MethodPut, u, body, &out)
}

// ---- Internals ----

func (c *Client) firstAccount(ctx context.Context) (string, error) {
	var resp struct {
		Accounts []struct {
			Name string `json:"name"`
		} `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, c.base+"/accounts", nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Accounts) == 0 {
		return "", domain.ErrNoAccount
	}
	return resp.Accounts[0].Name, nil
}

func (c *Client) firstLocation(ctx context.Context, account string) (string, error) {
	var resp struct {
		Locations []struct {
			Name string `json:"name"`
		} `json:"locations"`
	}
	u := fmt.Sprintf("%s/%s/locations", c.base, strings.Trim(account, "/"))
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Locations) == 0 {
		return "", domain.ErrNoLocation
	}
	return resp.Locations[0].Name, nil
}

type remoteReviewPayload struct {
	ReviewID string `json:"reviewId"`
	Name     string `json:"name"`
	Reviewer struct {
		DisplayName     string `json:"displayName"`
		ProfilePhotoURL string `json:"profilePhotoUrl"`
	} `json:"reviewer"`
	StarRating  string `json:"starRating"`
	Comment     string `json:"comment"`
	CreateTime  string `json:"createTime"`
	UpdateTime  string `json:"updateTime"`
	ReviewReply *struct {
		Comment    string `json:"comment"`
		UpdateTime string `json:"updateTime"`
	} `json:"reviewReply"`
}

var starRatings = map[string]int{
	"ONE": 1, "TWO": 2, "THREE": 3, "FOUR": 4, "FIVE": 5,
}

func (c *Client) listReviewsPage(ctx context.Context, location, pageToken string) ([]domain.RemoteReview, string, error) {
	u := fmt.Sprintf("%s/%s/reviews?pageSize=%d", c.base, strings.Trim(location, "/"), pageSize)
	if pageToken != "" {
		u += "&pageToken=" + pageToken
	}

	var resp struct {
		Reviews       []remoteReviewPayload `json:"reviews"`
		NextPageToken string                `json:"nextPageToken"`
	}
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, "", err
	}

	out := make([]domain.RemoteReview, 0, len(resp.Reviews))
	for _, r := range resp.Reviews {
		rv := domain.RemoteReview{
			ReviewID:         r.ReviewID,
			ResourceName:     r.Name,
			LocationID:       location,
			StarRating:       starRatings[r.StarRating],
			Comment:          r.Comment,
			CreateTime:       r.CreateTime,
			UpdateTime:       r.UpdateTime,
			ReviewerName:     r.Reviewer.DisplayName,
			ReviewerPhotoURL: r.Reviewer.ProfilePhotoURL,
		}
		if r.ReviewReply != nil {
			rv.Reply = &domain.RemoteReply{
				Comment:    r.ReviewReply.Comment,
				UpdateTime: r.ReviewReply.UpdateTime,
			}
		}
		out = append(out, rv)
	}
	return out, resp.NextPageToken, nil
}

// do performs one authenticated request with client-side rate limiting.
// A 401 triggers a single silent token refresh and a retry of the SAME
// request, so no page is skipped or duplicated. Any other non-2xx is a
// FetchError.
func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	refreshed := false
	start := time.Now()
	for {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			observability.ObserveExternal("gmb", method, resp.StatusCode, time.Since(start))
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err == io.EOF {
				return nil // empty body is fine
			}
			return err

		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			t, err := c.tokens.ForceRefresh(ctx)
			if err != nil {
				return err
			}
			tok = t
			refreshed = true
			continue // same request, same page

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			observability.ObserveExternal("gmb", method, resp.StatusCode, time.Since(start))
			return &FetchError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		}
	}
}
