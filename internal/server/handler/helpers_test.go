package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oraclebet/oraclebet/internal/domain"
)

func TestWriteDomainError_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrAlreadyExists, http.StatusConflict},
		{domain.ErrStateConflict, http.StatusConflict},
		{domain.ErrNoWinnings, http.StatusConflict},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrInsufficientFunds, http.StatusPaymentRequired},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrOracleFailure, http.StatusBadGateway},
		{domain.ErrInsufficientResponses, http.StatusBadGateway},
		{fmt.Errorf("something else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			// Sentinels arrive wrapped from the service layers.
			writeDomainError(rec, fmt.Errorf("engine: op: %w", tc.err))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("content type = %q", ct)
			}
		})
	}
}

func TestWriteDomainError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, fmt.Errorf("pgx: connection refused to 10.0.0.5"))
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Errorf("internal error leaked detail: %s", rec.Body.String())
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	var p payload
	if err := decodeJSON(req, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Name != "x" {
		t.Errorf("name = %q", p.Name)
	}

	// Unknown fields are rejected rather than silently dropped.
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","bogus":1}`))
	if err := decodeJSON(req, &p); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestParseListOpts(t *testing.T) {
	cases := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"?limit=10&offset=5", 10, 5},
		{"?limit=9999", 500, 0},
		{"?limit=-1&offset=-2", 50, 0},
		{"?limit=abc", 50, 0},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tc.query, nil)
			opts := parseListOpts(req)
			if opts.Limit != tc.wantLimit || opts.Offset != tc.wantOffset {
				t.Fatalf("opts = %d/%d, want %d/%d", opts.Limit, opts.Offset, tc.wantLimit, tc.wantOffset)
			}
		})
	}
}
