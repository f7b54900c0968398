package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/log"
	"spendlog/internal/storage"
)

const maxUploadBytes = 10 << 20

type expenseJSON struct {
	ID          int64     `json:"id"`
	Date        string    `json:"date"`
	Category    string    `json:"category"`
	Amount      string    `json:"amount"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	RawText     string    `json:"raw_text"`
	CreatedAt   time.Time `json:"created_at"`
}

func toExpenseJSON(rec core.ExpenseRecord) expenseJSON {
	return expenseJSON{
		ID:          rec.ID,
		Date:        rec.Date.String(),
		Category:    rec.Category,
		Amount:      rec.Amount.String(),
		AmountCents: rec.Amount.Cents,
		Currency:    rec.Currency,
		RawText:     rec.RawText,
		CreatedAt:   rec.CreatedAt,
	}
}

type categoryAmountJSON struct {
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
}

type currencySummaryJSON struct {
	Currency   string               `json:"currency"`
	Count      int                  `json:"count"`
	Total      string               `json:"total"`
	TotalCents int64                `json:"total_cents"`
	ByCategory []categoryAmountJSON `json:"by_category"`
}

type summaryJSON struct {
	Year       int                   `json:"year"`
	Month      int                   `json:"month"`
	Count      int                   `json:"count"`
	ByCurrency []currencySummaryJSON `json:"by_currency"`
	Narrative  string                `json:"narrative"`
}

func toSummaryJSON(s core.MonthlySummary) summaryJSON {
	out := summaryJSON{
		Year:       s.Year,
		Month:      s.Month,
		Count:      s.Count,
		ByCurrency: []currencySummaryJSON{},
		Narrative:  s.Narrative,
	}
	for _, cs := range s.ByCurrency {
		cj := currencySummaryJSON{
			Currency:   cs.Currency,
			Count:      cs.Count,
			Total:      cs.Total.String(),
			TotalCents: cs.Total.Cents,
			ByCategory: []categoryAmountJSON{},
		}
		for _, ca := range cs.ByCategory {
			cj.ByCategory = append(cj.ByCategory, categoryAmountJSON{
				Category:    ca.Name,
				Amount:      ca.Amount.String(),
				AmountCents: ca.Amount.Cents,
			})
		}
		out.ByCurrency = append(out.ByCurrency, cj)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]string{"error": reason})
}

// writeServiceError maps domain errors to HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrEmptyText):
		writeJSONError(w, http.StatusBadRequest, "input text is empty")
	case errors.Is(err, core.ErrNoAmountFound):
		writeJSONError(w, http.StatusUnprocessableEntity, "could not find a positive amount in the input")
	case errors.Is(err, core.ErrMalformedModelOutput):
		writeJSONError(w, http.StatusUnprocessableEntity, "could not understand the input as an expense")
	case errors.Is(err, core.ErrModelUnavailable), errors.Is(err, core.ErrTranscriptionFailed):
		w.Header().Set("Retry-After", "30")
		writeJSONError(w, http.StatusServiceUnavailable, "expense understanding is temporarily unavailable")
	case errors.Is(err, core.ErrOCRUnavailable):
		writeJSONError(w, http.StatusNotImplemented, "image input is not configured on this server")
	case errors.Is(err, core.ErrInvalidDate):
		writeJSONError(w, http.StatusBadRequest, "invalid date")
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrEmptyCurrency),
		errors.Is(err, core.ErrEmptyRawText):
		writeJSONError(w, http.StatusUnprocessableEntity, "extracted expense failed validation")
	case errors.Is(err, storage.ErrExpenseNotFound):
		writeJSONError(w, http.StatusNotFound, "expense not found")
	default:
		s.log.ErrorContext(r.Context(), "request failed",
			log.FieldPath, r.URL.Path, log.FieldError, err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "spendlog",
		"status":  "running",
	})
}

func (s *Server) handleRecordText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := s.api.RecordText(r.Context(), body.Text, time.Now())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.invalidateSummary(rec.Date)
	writeJSON(w, http.StatusCreated, toExpenseJSON(rec))
}

func (s *Server) handleRecordAudio(w http.ResponseWriter, r *http.Request) {
	s.handleRecordUpload(w, r, s.api.RecordAudio)
}

func (s *Server) handleRecordImage(w http.ResponseWriter, r *http.Request) {
	s.handleRecordUpload(w, r, s.api.RecordImage)
}

func (s *Server) handleRecordUpload(w http.ResponseWriter, r *http.Request,
	record func(ctx context.Context, data []byte, mimeType string, refDate time.Time) (core.ExpenseRecord, error),
) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	rec, err := record(r.Context(), data, header.Header.Get("Content-Type"), time.Now())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.invalidateSummary(rec.Date)
	writeJSON(w, http.StatusCreated, toExpenseJSON(rec))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	fromStr := strings.TrimSpace(r.URL.Query().Get("from"))
	toStr := strings.TrimSpace(r.URL.Query().Get("to"))

	var (
		records []core.ExpenseRecord
		err     error
	)
	switch {
	case fromStr == "" && toStr == "":
		records, err = s.api.ListExpenses(r.Context())
	case fromStr != "" && toStr != "":
		var from, to core.Date
		if from, err = core.ParseDate(fromStr); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
			return
		}
		if to, err = core.ParseDate(toStr); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
			return
		}
		records, err = s.api.ListExpensesRange(r.Context(), from, to)
	default:
		writeJSONError(w, http.StatusBadRequest, "from and to must be provided together")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]expenseJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, toExpenseJSON(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": out, "count": len(out)})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := time.Now()
	year, month := now.Year(), int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = y
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid month")
			return
		}
		month = m
	}
	if month < 1 || month > 12 || year < 1 {
		writeJSONError(w, http.StatusBadRequest, "year and month out of range")
		return
	}

	key := summaryCacheKey(year, month)
	if cached, found := s.summaryCache.Get(key); found {
		writeJSON(w, http.StatusOK, toSummaryJSON(cached))
		return
	}

	summary, err := s.api.MonthlySummary(r.Context(), year, month)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.summaryCache.Set(key, summary)
	writeJSON(w, http.StatusOK, toSummaryJSON(summary))
}
