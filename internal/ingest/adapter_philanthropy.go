package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

// PhilanthropyAdapter queries a historical grants database over REST + JSON.
// The provider authenticates with a Subscription-Key header and wraps hits
// in a {code, message, data: {hits: [...]}} envelope.
type PhilanthropyAdapter struct {
	client *Client
	cfg    SourceConfig
}

func NewPhilanthropyAdapter(client *Client, cfg SourceConfig) *PhilanthropyAdapter {
	return &PhilanthropyAdapter{client: client, cfg: cfg}
}

func (a *PhilanthropyAdapter) Name() string { return a.cfg.ID }

func (a *PhilanthropyAdapter) Capabilities() Capabilities {
	return Capabilities{TextQuery: true, LocationFilter: true}
}

// philanthropyHit captures the fields we use; unknown provider fields are
// ignored by the decoder.
type philanthropyHit struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Funder      string `json:"funder"`
	Description string `json:"description"`
	AmountText  string `json:"amount"`
	Deadline    string `json:"deadline"`
	Location    string `json:"location"`
	PostedDate  string `json:"posted_date"`
}

type philanthropyEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Hits []philanthropyHit `json:"hits"`
	} `json:"data"`
}

func (a *PhilanthropyAdapter) Fetch(ctx context.Context, q Query) ([]RawRecord, error) {
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	params := url.Values{}
	if len(q.Terms) > 0 {
		params.Set("query", strings.Join(q.Terms, " "))
	}
	if q.Location != "" {
		params.Set("location", q.Location)
	}
	params.Set("limit", strconv.Itoa(limit))
	endpoint := a.cfg.BaseURL + "?" + params.Encode()

	resp, err := a.client.Do(ctx, a.Name(), func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Subscription-Key", a.cfg.APIKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, adapterErr(a.Name(), classifyTransport(ctx, err), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, adapterErr(a.Name(), ErrAuth, fmt.Errorf("status %d", resp.StatusCode))
	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, adapterErr(a.Name(), ErrUnreachable, fmt.Errorf("status %d: %s", resp.StatusCode, payload))
	}

	var envelope philanthropyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, adapterErr(a.Name(), ErrMalformed, fmt.Errorf("decoding envelope: %w", err))
	}
	if envelope.Code != 0 {
		return nil, adapterErr(a.Name(), ErrMalformed, fmt.Errorf("provider code %d: %s", envelope.Code, envelope.Message))
	}

	records := make([]RawRecord, 0, len(envelope.Data.Hits))
	for _, hit := range envelope.Data.Hits {
		if hit.Title == "" {
			continue
		}
		payload, _ := json.Marshal(hit)
		records = append(records, RawRecord{
			ExternalID:    hit.ID,
			Title:         hit.Title,
			FunderName:    hit.Funder,
			Description:   hit.Description,
			RawAmount:     hit.AmountText,
			RawDeadline:   hit.Deadline,
			RawPublished:  hit.PostedDate,
			LocationScope: hit.Location,
			SourceType:    models.SourceHistorical,
			Payload:       payload,
		})
	}
	return records, nil
}
