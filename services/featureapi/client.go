package featureapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/feature"
)

const endpoint = "/api/v1/features"

// Client fetches resolved feature snapshots from the backend's features
// endpoint, authenticating with the gateway's service token.
type Client struct {
	baseURL      string
	serviceToken string
	http         *http.Client
}

var _ feature.Client = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(conf.Backend.BaseURL, "/"),
		serviceToken: conf.Backend.ServiceToken,
		http:         &http.Client{Timeout: conf.Backend.Timeout},
	}
}

func (c *Client) FetchResolved(ctx context.Context, fctx feature.Context) (feature.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return feature.Snapshot{}, errors.Wrap(err, "building features request")
	}

	q := req.URL.Query()
	q.Set("tenant", fctx.Tenant)
	q.Set("role", fctx.Role)
	q.Set("audience", fctx.Audience)
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.http.Do(req)
	if err != nil {
		return feature.Snapshot{}, errors.Wrap(err, "fetching features")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return feature.Snapshot{}, errors.Wrapf(feature.ErrUnauthorized, "HTTP %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return feature.Snapshot{}, fmt.Errorf("fetching features: HTTP %d", resp.StatusCode)
	}

	var snap feature.Snapshot
	if err = json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return feature.Snapshot{}, errors.Wrap(err, "decoding features response")
	}
	return snap, nil
}
