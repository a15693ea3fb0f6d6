package tfnsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// maxLookbackDays is the furthest back the partner accepts a fromDate on
// the orders and transactions endpoints.
const maxLookbackDays = 14

// partnerAPI is the fetch surface the reconcilers consume; tfnClient is the
// production implementation, tests swap in a fake.
type partnerAPI interface {
	FetchDepots(ctx context.Context) ([]tfnDepot, error)
	FetchVehicles(ctx context.Context) ([]tfnVehicle, error)
	FetchDrivers(ctx context.Context) ([]tfnDriver, error)
	FetchOrders(ctx context.Context, since time.Time) ([]tfnOrder, error)
	FetchTransactions(ctx context.Context, since time.Time) ([]tfnTransaction, error)
	FetchBalances(ctx context.Context) ([]tfnBalance, error)
}

type tfnClient struct {
	baseURL    string
	apiVersion string
	tokens     *tokenManager
	http       *http.Client
	logger     *logrus.Logger
}

func newTfnClient(tokens *tokenManager, logger *logrus.Logger) *tfnClient {
	baseURL := strings.TrimSpace(os.Getenv("TFN_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	apiVersion := strings.TrimSpace(os.Getenv("TFN_API_VERSION"))
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	return &tfnClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
		tokens:     tokens,
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type tfnListResponse struct {
	Data       []json.RawMessage `json:"data"`
	Items      []json.RawMessage `json:"items"`
	NextCursor string            `json:"next_cursor"`
	HasMore    *bool             `json:"has_more"`
}

// getList walks the partner's cursor pagination and returns all raw records
// for one endpoint.
func (c *tfnClient) getList(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error) {
	token, err := c.tokens.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}

	var all []json.RawMessage
	cursor := ""
	for {
		query := url.Values{}
		for key, vals := range params {
			for _, v := range vals {
				query.Add(key, v)
			}
		}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		endpoint := fmt.Sprintf("%s/api/%s%s", c.baseURL, c.apiVersion, path)
		if len(query) > 0 {
			endpoint = endpoint + "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("tfn api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var parsed tfnListResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, err
		}

		items := parsed.Data
		if len(items) == 0 {
			items = parsed.Items
		}
		all = append(all, items...)

		if parsed.NextCursor == "" || (parsed.HasMore != nil && !*parsed.HasMore) {
			return all, nil
		}
		cursor = parsed.NextCursor
	}
}

func decodeList[T any](logger *logrus.Logger, entity string, raws []json.RawMessage) []T {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			logger.WithFields(logrus.Fields{
				"module": "tfnsync",
				"entity": entity,
			}).Warnf("skipping malformed record: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (c *tfnClient) FetchDepots(ctx context.Context) ([]tfnDepot, error) {
	raws, err := c.getList(ctx, "/depots", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[tfnDepot](c.logger, "depot", raws), nil
}

func (c *tfnClient) FetchVehicles(ctx context.Context) ([]tfnVehicle, error) {
	raws, err := c.getList(ctx, "/vehicles", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[tfnVehicle](c.logger, "vehicle", raws), nil
}

func (c *tfnClient) FetchDrivers(ctx context.Context) ([]tfnDriver, error) {
	raws, err := c.getList(ctx, "/drivers", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[tfnDriver](c.logger, "driver", raws), nil
}

func (c *tfnClient) FetchOrders(ctx context.Context, since time.Time) ([]tfnOrder, error) {
	params := url.Values{}
	params.Set("fromDate", c.clampLookback(since).Format("2006-01-02"))
	raws, err := c.getList(ctx, "/orders", params)
	if err != nil {
		return nil, err
	}
	return decodeList[tfnOrder](c.logger, "order", raws), nil
}

func (c *tfnClient) FetchTransactions(ctx context.Context, since time.Time) ([]tfnTransaction, error) {
	params := url.Values{}
	params.Set("fromDate", c.clampLookback(since).Format("2006-01-02"))
	raws, err := c.getList(ctx, "/transactions", params)
	if err != nil {
		return nil, err
	}
	return decodeList[tfnTransaction](c.logger, "transaction", raws), nil
}

func (c *tfnClient) FetchBalances(ctx context.Context) ([]tfnBalance, error) {
	raws, err := c.getList(ctx, "/creditlimits", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[tfnBalance](c.logger, "accountBalance", raws), nil
}

func (c *tfnClient) clampLookback(since time.Time) time.Time {
	oldest := time.Now().AddDate(0, 0, -maxLookbackDays)
	if since.Before(oldest) {
		c.logger.WithFields(logrus.Fields{
			"module": "tfnsync",
		}).Warnf("fromDate %s beyond partner lookback window, clamping to %s",
			since.Format("2006-01-02"), oldest.Format("2006-01-02"))
		return oldest
	}
	return since
}
