package pitix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type client struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func newClient(apiKey string) (*client, error) {
	baseURL := strings.TrimSpace(os.Getenv("PITIX_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.pitix.com"
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("PITIX_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("pitix api key is empty")
	}
	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("PITIX_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

type listResponse struct {
	Data       []json.RawMessage `json:"data"`
	Items      []json.RawMessage `json:"items"`
	NextCursor string            `json:"next_cursor"`
	HasMore    *bool             `json:"has_more"`
	TotalCount *int              `json:"total_count"`
}

// records returns whichever collection field the endpoint populated; PitiX
// uses "data" on newer endpoints and "items" on older ones.
func (r listResponse) records() []json.RawMessage {
	if len(r.Data) > 0 {
		return r.Data
	}
	return r.Items
}

// hasMore translates the provider's pagination fields without masking a
// missing cursor: the engine treats has_more with no cursor as a contract
// violation, so it must not be papered over here.
func (r listResponse) hasMore() bool {
	if r.HasMore != nil {
		return *r.HasMore
	}
	return r.NextCursor != ""
}

func (c *client) getList(ctx context.Context, path string, params url.Values) (listResponse, error) {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return listResponse{}, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return listResponse{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return listResponse{}, fmt.Errorf("pitix api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return listResponse{}, err
	}
	return parsed, nil
}

func listParams(opts fetchParams) url.Values {
	params := url.Values{}
	if opts.updatedSince != "" {
		params.Set("updated_since", opts.updatedSince)
	}
	if opts.cursor != "" {
		params.Set("cursor", opts.cursor)
	}
	params.Set("limit", strconv.Itoa(opts.limit))
	return params
}

type fetchParams struct {
	updatedSince string
	cursor       string
	limit        int
}
