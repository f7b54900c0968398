package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/log"
)

type fakeAPI struct {
	record        core.ExpenseRecord
	recordErr     error
	summary       core.MonthlySummary
	summaryErr    error
	summaryCalls  int
	lastText      string
	lastAudio     []byte
	lastImageMime string
}

func (f *fakeAPI) RecordText(_ context.Context, text string, _ time.Time) (core.ExpenseRecord, error) {
	f.lastText = text
	if f.recordErr != nil {
		return core.ExpenseRecord{}, f.recordErr
	}
	return f.record, nil
}

func (f *fakeAPI) RecordAudio(_ context.Context, audio []byte, _ string, _ time.Time) (core.ExpenseRecord, error) {
	f.lastAudio = audio
	if f.recordErr != nil {
		return core.ExpenseRecord{}, f.recordErr
	}
	return f.record, nil
}

func (f *fakeAPI) RecordImage(_ context.Context, _ []byte, mimeType string, _ time.Time) (core.ExpenseRecord, error) {
	f.lastImageMime = mimeType
	if f.recordErr != nil {
		return core.ExpenseRecord{}, f.recordErr
	}
	return f.record, nil
}

func (f *fakeAPI) ListExpenses(context.Context) ([]core.ExpenseRecord, error) {
	return []core.ExpenseRecord{f.record}, nil
}

func (f *fakeAPI) ListExpensesRange(context.Context, core.Date, core.Date) ([]core.ExpenseRecord, error) {
	return []core.ExpenseRecord{f.record}, nil
}

func (f *fakeAPI) MonthlySummary(_ context.Context, year, month int) (core.MonthlySummary, error) {
	f.summaryCalls++
	if f.summaryErr != nil {
		return core.MonthlySummary{}, f.summaryErr
	}
	s := f.summary
	s.Year, s.Month = year, month
	return s, nil
}

func sampleRecord() core.ExpenseRecord {
	return core.ExpenseRecord{
		ID:        1,
		Date:      core.NewDate(2026, 3, 14),
		Category:  core.CategoryGroceries,
		Amount:    core.Money{Cents: 4250},
		Currency:  "EUR",
		RawText:   "spent 42.50 on groceries",
		CreatedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T, api ExpenseAPI) *Server {
	t.Helper()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	s := NewServer(":0", api, logger)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func postJSON(s *Server, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rr, req)
	return rr
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rr, req)
	return rr
}

func TestRecordTextEndpoint(t *testing.T) {
	api := &fakeAPI{record: sampleRecord()}
	s := newTestServer(t, api)

	rr := postJSON(s, "/expenses/text", `{"text": "spent 42.50 on groceries"}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rr.Code, rr.Body)
	}
	if api.lastText != "spent 42.50 on groceries" {
		t.Errorf("service received %q", api.lastText)
	}

	var got expenseJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if got.ID != 1 || got.Date != "2026-03-14" || got.Amount != "42.50" || got.AmountCents != 4250 {
		t.Errorf("unexpected response: %+v", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestRecordTextErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"empty text", core.ErrEmptyText, http.StatusBadRequest},
		{"no amount", core.ErrNoAmountFound, http.StatusUnprocessableEntity},
		{"malformed output", core.ErrMalformedModelOutput, http.StatusUnprocessableEntity},
		{"model down", core.ErrModelUnavailable, http.StatusServiceUnavailable},
		{"validation", core.ErrInvalidAmount, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeAPI{recordErr: tt.err})

			rr := postJSON(s, "/expenses/text", `{"text": "whatever"}`)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.err == core.ErrModelUnavailable && rr.Header().Get("Retry-After") == "" {
				t.Error("missing Retry-After header on 503")
			}
		})
	}
}

func TestRecordTextRejectsBadJSON(t *testing.T) {
	s := newTestServer(t, &fakeAPI{record: sampleRecord()})

	rr := postJSON(s, "/expenses/text", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestRecordTextMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &fakeAPI{})

	rr := get(s, "/expenses/text")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}

func TestRecordAudioEndpoint(t *testing.T) {
	api := &fakeAPI{record: sampleRecord()}
	s := newTestServer(t, api)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "note.ogg")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("fake ogg bytes")); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/expenses/audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rr.Code, rr.Body)
	}
	if string(api.lastAudio) != "fake ogg bytes" {
		t.Errorf("service received %q", api.lastAudio)
	}
}

func TestRecordAudioMissingFile(t *testing.T) {
	s := newTestServer(t, &fakeAPI{record: sampleRecord()})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/expenses/audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestRecordImageUnavailable(t *testing.T) {
	s := newTestServer(t, &fakeAPI{recordErr: core.ErrOCRUnavailable})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "receipt.jpg")
	_, _ = part.Write([]byte("jpeg"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/expenses/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rr.Code)
	}
}

func TestListExpensesEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeAPI{record: sampleRecord()})

	rr := get(s, "/expenses")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var body struct {
		Expenses []expenseJSON `json:"expenses"`
		Count    int           `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Count != 1 || len(body.Expenses) != 1 {
		t.Errorf("count = %d, expenses = %d, want 1 each", body.Count, len(body.Expenses))
	}
}

func TestListExpensesRangeValidation(t *testing.T) {
	s := newTestServer(t, &fakeAPI{record: sampleRecord()})

	if rr := get(s, "/expenses?from=2026-03-01"); rr.Code != http.StatusBadRequest {
		t.Errorf("lone from: status = %d, want 400", rr.Code)
	}
	if rr := get(s, "/expenses?from=bogus&to=2026-03-31"); rr.Code != http.StatusBadRequest {
		t.Errorf("bad from: status = %d, want 400", rr.Code)
	}
	if rr := get(s, "/expenses?from=2026-03-01&to=2026-03-31"); rr.Code != http.StatusOK {
		t.Errorf("valid range: status = %d, want 200", rr.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	api := &fakeAPI{summary: core.MonthlySummary{Count: 2, Narrative: "a fine month"}}
	s := newTestServer(t, api)

	rr := get(s, "/summary?year=2026&month=3")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var got summaryJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if got.Year != 2026 || got.Month != 3 || got.Narrative != "a fine month" {
		t.Errorf("unexpected summary: %+v", got)
	}
}

func TestSummaryValidation(t *testing.T) {
	s := newTestServer(t, &fakeAPI{})

	for _, path := range []string{"/summary?year=2026&month=0", "/summary?year=2026&month=13", "/summary?year=abc&month=3"} {
		if rr := get(s, path); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rr.Code)
		}
	}
}

func TestSummaryIsCachedAndInvalidatedOnAppend(t *testing.T) {
	api := &fakeAPI{record: sampleRecord(), summary: core.MonthlySummary{Count: 1}}
	s := newTestServer(t, api)

	get(s, "/summary?year=2026&month=3")
	get(s, "/summary?year=2026&month=3")
	if api.summaryCalls != 1 {
		t.Fatalf("summary computed %d times, want 1 (cached)", api.summaryCalls)
	}

	// Appending an expense in the cached month drops the cache entry.
	postJSON(s, "/expenses/text", `{"text": "groceries 42.50"}`)

	get(s, "/summary?year=2026&month=3")
	if api.summaryCalls != 2 {
		t.Errorf("summary computed %d times after append, want 2", api.summaryCalls)
	}
}
