package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"signalchat/internal/domain"
)

// Signal queries the provide API of a Signal threat-intelligence sharing
// platform.
type Signal struct {
	baseURL  string
	apiKey   string
	orgID    string
	endpoint domain.Endpoint
	client   *http.Client
}

func NewSignal(baseURL, apiKey, orgID string, endpoint domain.Endpoint) *Signal {
	return &Signal{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		orgID:    orgID,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Signal) Fetch(ctx context.Context, since string) (*Result, error) {
	res, err := s.fetch(ctx, since)
	if err != nil {
		return nil, &Error{Source: string(s.endpoint), Err: err}
	}
	return res, nil
}

func (s *Signal) query(since string) url.Values {
	q := url.Values{}
	q.Set("OID", s.orgID)
	q.Set("q[attribute]", "updated_at")
	q.Set("q[predicate]", "range")
	q.Set("q[start]", since)
	q.Set("order", "ASC")

	switch s.endpoint {
	case domain.EndpointThreads:
		q.Set("q[category]", "*")
		q.Set("q[status]", "*")
	default:
		q.Set("TID", "")
	}

	return q
}

func (s *Signal) fetch(ctx context.Context, since string) (*Result, error) {
	u := fmt.Sprintf("%s/api/v2/provide/%s.json?%s", s.baseURL, s.endpoint, s.query(since).Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	key := "provide_" + string(s.endpoint)
	list, ok := body[key]
	if !ok {
		return nil, fmt.Errorf("response has no %q", key)
	}

	var records []domain.Record
	if err := json.Unmarshal(list, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}

	total := len(records)
	if raw, ok := body["total"]; ok {
		if err := json.Unmarshal(raw, &total); err != nil {
			return nil, fmt.Errorf("decode total: %w", err)
		}
	}

	domain.SortByID(records)

	return &Result{Records: records, Total: total}, nil
}
