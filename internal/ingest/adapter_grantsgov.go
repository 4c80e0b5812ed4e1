package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

// GrantsGovAdapter fetches federal opportunities from the Grants.gov
// search2 API (REST + JSON, POST with a search envelope).
type GrantsGovAdapter struct {
	client *Client
	cfg    SourceConfig
}

func NewGrantsGovAdapter(client *Client, cfg SourceConfig) *GrantsGovAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.grants.gov/v1/api/search2"
	}
	return &GrantsGovAdapter{client: client, cfg: cfg}
}

func (a *GrantsGovAdapter) Name() string { return a.cfg.ID }

func (a *GrantsGovAdapter) Capabilities() Capabilities {
	return Capabilities{TextQuery: true}
}

type grantsGovSearchRequest struct {
	Keyword        string `json:"keyword"`
	OppStatuses    string `json:"oppStatuses"`
	SortBy         string `json:"sortBy"`
	Rows           int    `json:"rows"`
	StartRecordNum int    `json:"startRecordNum"`
}

type grantsGovRecord struct {
	ID           string `json:"id"`
	Number       string `json:"number"`
	Title        string `json:"title"`
	Agency       string `json:"agency"`
	AgencyCode   string `json:"agencyCode"`
	OpenDate     string `json:"openDate"`
	CloseDate    string `json:"closeDate"`
	OppStatus    string `json:"oppStatus"`
	AwardFloor   string `json:"awardFloor"`
	AwardCeiling string `json:"awardCeiling"`
}

type grantsGovResponse struct {
	Data struct {
		HitCount int               `json:"hitCount"`
		OppHits  []grantsGovRecord `json:"oppHits"`
	} `json:"data"`
	ErrorCode int    `json:"errorcode"`
	Msg       string `json:"msg"`
}

// Fetch runs one keyword search against search2. Zero hits is success.
func (a *GrantsGovAdapter) Fetch(ctx context.Context, q Query) ([]RawRecord, error) {
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	searchReq := grantsGovSearchRequest{
		Keyword:        strings.Join(q.Terms, " "),
		OppStatuses:    "posted",
		SortBy:         "openDate|desc",
		Rows:           limit,
		StartRecordNum: 0,
	}
	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, adapterErr(a.Name(), ErrMalformed, fmt.Errorf("marshaling request: %w", err))
	}

	resp, err := a.client.Do(ctx, a.Name(), func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, adapterErr(a.Name(), classifyTransport(ctx, err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		kind := ErrUnreachable
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = ErrAuth
		}
		return nil, adapterErr(a.Name(), kind, fmt.Errorf("status %d: %s", resp.StatusCode, payload))
	}

	var apiResp grantsGovResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, adapterErr(a.Name(), ErrMalformed, fmt.Errorf("decoding response: %w", err))
	}
	if apiResp.ErrorCode != 0 {
		return nil, adapterErr(a.Name(), ErrMalformed, fmt.Errorf("API error: %s", apiResp.Msg))
	}

	log.Printf("[GrantsGov] got %d opportunities (total: %d)", len(apiResp.Data.OppHits), apiResp.Data.HitCount)

	records := make([]RawRecord, 0, len(apiResp.Data.OppHits))
	for _, rec := range apiResp.Data.OppHits {
		if rec.Title == "" {
			continue
		}
		payload, _ := json.Marshal(rec)
		records = append(records, RawRecord{
			ExternalID: rec.ID,
			Title:      rec.Title,
			FunderName: rec.Agency,
			Description: fmt.Sprintf("Federal grant opportunity %s from %s (%s).",
				rec.Number, rec.Agency, rec.AgencyCode),
			RawAmount:     joinAmountBounds(rec.AwardFloor, rec.AwardCeiling),
			RawDeadline:   rec.CloseDate, // MM/DD/YYYY
			RawPublished:  rec.OpenDate,
			LocationScope: "National",
			SourceType:    models.SourceFederal,
			Payload:       payload,
		})
	}
	return records, nil
}

// joinAmountBounds combines floor and ceiling strings into one parseable
// range expression; either side may be empty.
func joinAmountBounds(floor, ceiling string) string {
	floor = strings.TrimSpace(floor)
	ceiling = strings.TrimSpace(ceiling)
	switch {
	case floor != "" && ceiling != "":
		return floor + " - " + ceiling
	case ceiling != "":
		return "up to " + ceiling
	case floor != "":
		return "minimum " + floor
	}
	return ""
}

// classifyTransport distinguishes a deadline hit from a plain network error.
func classifyTransport(ctx context.Context, err error) ErrorKind {
	if ctx.Err() != nil {
		return ErrTimeout
	}
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrUnreachable
}
