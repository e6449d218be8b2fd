package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/auth"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
)

// Error kinds reported in the "error" field of error bodies.
const (
	KindForbidden       = "forbidden"
	KindInvalidInput    = "invalid_input"
	KindUnauthenticated = "unauthenticated"
	KindNotFound        = "not_found"
	KindPersistence     = "persistence"
	KindRateLimited     = "rate_limited"
	KindNotAllowed      = "method_not_allowed"
	KindInternal        = "internal"
)

// ResponseBuilder provides a fluent API for JSON and plain text responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
	body       []byte
}

// NewResponse creates a builder with a 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v as the body, encoded on Write.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	b.payload = v
	b.body = nil
	return b
}

// Text sets a plain text body.
func (b *ResponseBuilder) Text(s string) *ResponseBuilder {
	b.headers["Content-Type"] = "text/plain; charset=utf-8"
	b.payload = nil
	b.body = []byte(s)
	return b
}

// Write sends the built response.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	body := b.body
	if b.payload != nil {
		encoded, err := json.Marshal(b.payload)
		if err != nil {
			slog.Error("Failed to encode response", "error", err)
			http.Error(w, `{"error":"internal","message":"encoding failed"}`, http.StatusInternalServerError)
			return
		}
		body = append(encoded, '\n')
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse builds a JSON error body with the given kind.
func ErrorResponse(statusCode int, kind, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: kind, Message: message})
}

// FromError maps a ledger error onto its status code and kind. Persistence
// and unknown failures never leak their cause to the client.
func FromError(err error) *ResponseBuilder {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return NewResponse().Status(http.StatusBadRequest).
			JSON(errorBody{Error: KindInvalidInput, Message: ve.Error(), Field: ve.Field})
	case errors.Is(err, core.ErrInvalidInput):
		return ErrorResponse(http.StatusBadRequest, KindInvalidInput, err.Error())
	case errors.Is(err, core.ErrForbidden):
		return ErrorResponse(http.StatusForbidden, KindForbidden, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		return ErrorResponse(http.StatusUnauthorized, KindUnauthenticated, "authentication required")
	case errors.Is(err, core.ErrNotFound):
		return ErrorResponse(http.StatusNotFound, KindNotFound, err.Error())
	case errors.Is(err, core.ErrPersistence):
		return ErrorResponse(http.StatusInternalServerError, KindPersistence, "storage unavailable")
	default:
		return ErrorResponse(http.StatusInternalServerError, KindInternal, "internal error")
	}
}

// RateLimited is written when the limiter rejects a request.
func RateLimited() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, KindRateLimited, "rate limit exceeded, please try again later")
}

// MethodNotAllowed is written for diagnostic methods the API never serves.
func MethodNotAllowed() *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, KindNotAllowed, "method not allowed")
}

// expenseJSON mirrors the columns of the legacy expense query.
type expenseJSON struct {
	ExpenseID    int64       `json:"expenseID"`
	UserID       int64       `json:"userID"`
	ProjectID    int64       `json:"projectID"`
	Description  string      `json:"description"`
	Notes        string      `json:"notes"`
	Amount       json.Number `json:"amount"`
	DateRecorded string      `json:"dateRecorded"`
}

type summaryJSON struct {
	ProjectID        int64       `json:"projectID"`
	NumberOfExpenses int64       `json:"numberOfExpenses"`
	TotalAmount      json.Number `json:"totalAmount"`
}

type projectJSON struct {
	ProjectID   int64  `json:"projectID"`
	ClientID    int64  `json:"clientID"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate,omitempty"`
	Status      string `json:"status"`
}

type listEnvelope[T any] struct {
	Data []T `json:"data"`
}

type createdEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    expenseJSON `json:"data"`
}

func toExpenseJSON(rec core.ExpenseRecord) expenseJSON {
	return expenseJSON{
		ExpenseID:    rec.ID,
		UserID:       rec.AuthorID,
		ProjectID:    rec.ProjectID,
		Description:  rec.Description,
		Notes:        rec.Notes,
		Amount:       json.Number(rec.Amount.String()),
		DateRecorded: rec.RecordedAt.UTC().Format(time.RFC3339),
	}
}

func expenseList(records []core.ExpenseRecord) listEnvelope[expenseJSON] {
	out := make([]expenseJSON, len(records))
	for i, r := range records {
		out[i] = toExpenseJSON(r)
	}
	return listEnvelope[expenseJSON]{Data: out}
}

func summaryList(sums []core.ProjectSummary) listEnvelope[summaryJSON] {
	out := make([]summaryJSON, len(sums))
	for i, s := range sums {
		out[i] = summaryJSON{
			ProjectID:        s.ProjectID,
			NumberOfExpenses: s.Count,
			TotalAmount:      json.Number(s.Total.String()),
		}
	}
	return listEnvelope[summaryJSON]{Data: out}
}

func projectList(projects []core.Project) listEnvelope[projectJSON] {
	out := make([]projectJSON, len(projects))
	for i, p := range projects {
		pj := projectJSON{
			ProjectID:   p.ID,
			ClientID:    p.ClientID,
			Description: p.Description,
			Status:      p.Status,
		}
		if !p.DueDate.IsZero() {
			pj.DueDate = p.DueDate.Format(time.DateOnly)
		}
		out[i] = pj
	}
	return listEnvelope[projectJSON]{Data: out}
}
