package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

func TestGrantsGovAdapterFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var req grantsGovSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding search request: %v", err)
		}
		if req.Keyword != "youth education" {
			t.Errorf("keyword = %q", req.Keyword)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"errorcode": 0,
			"data": {
				"hitCount": 1,
				"oppHits": [{
					"id": "356644",
					"number": "ED-GRANTS-2026",
					"title": "Youth Education Grant",
					"agency": "Department of Education",
					"agencyCode": "ED",
					"openDate": "01/15/2026",
					"closeDate": "03/15/2026",
					"awardFloor": "5000",
					"awardCeiling": "25000"
				}]
			}
		}`))
	}))
	defer srv.Close()

	adapter := NewGrantsGovAdapter(testClient(FetchConfig{}), SourceConfig{ID: "grants_gov", BaseURL: srv.URL})
	records, err := adapter.Fetch(context.Background(), Query{Terms: []string{"youth", "education"}, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len = %d, want 1", len(records))
	}

	rec := records[0]
	if rec.ExternalID != "356644" {
		t.Errorf("external id = %q", rec.ExternalID)
	}
	if rec.FunderName != "Department of Education" {
		t.Errorf("funder = %q", rec.FunderName)
	}
	if rec.RawAmount != "5000 - 25000" {
		t.Errorf("raw amount = %q", rec.RawAmount)
	}
	if rec.RawDeadline != "03/15/2026" {
		t.Errorf("raw deadline = %q", rec.RawDeadline)
	}
	if rec.SourceType != models.SourceFederal {
		t.Errorf("source type = %q", rec.SourceType)
	}
}

func TestGrantsGovAdapterZeroHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errorcode": 0, "data": {"hitCount": 0, "oppHits": []}}`))
	}))
	defer srv.Close()

	adapter := NewGrantsGovAdapter(testClient(FetchConfig{}), SourceConfig{ID: "grants_gov", BaseURL: srv.URL})
	records, err := adapter.Fetch(context.Background(), Query{Terms: []string{"nothing"}})
	if err != nil {
		t.Fatalf("zero hits is success, got error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len = %d, want 0", len(records))
	}
}

func TestGrantsGovAdapterMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance page</html>`))
	}))
	defer srv.Close()

	adapter := NewGrantsGovAdapter(testClient(FetchConfig{}), SourceConfig{ID: "grants_gov", BaseURL: srv.URL})
	_, err := adapter.Fetch(context.Background(), Query{})
	if err == nil {
		t.Fatal("expected error for non-JSON body")
	}
	var aerr *AdapterError
	if !errors.As(err, &aerr) {
		t.Fatalf("error type = %T, want *AdapterError", err)
	}
	if aerr.Kind != ErrMalformed {
		t.Errorf("kind = %q, want %q", aerr.Kind, ErrMalformed)
	}
}

func TestJoinAmountBounds(t *testing.T) {
	tests := []struct {
		floor, ceiling, want string
	}{
		{"5000", "25000", "5000 - 25000"},
		{"", "25000", "up to 25000"},
		{"5000", "", "minimum 5000"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := joinAmountBounds(tt.floor, tt.ceiling); got != tt.want {
			t.Errorf("joinAmountBounds(%q, %q) = %q, want %q", tt.floor, tt.ceiling, got, tt.want)
		}
	}
}
