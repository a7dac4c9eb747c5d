package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points at one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs.
const (
	ProblemTypeValidation       = "https://api.parkest.app/problems/validation-error"
	ProblemTypeUnauthorized     = "https://api.parkest.app/problems/unauthorized"
	ProblemTypeNotFound         = "https://api.parkest.app/problems/not-found"
	ProblemTypeConflict         = "https://api.parkest.app/problems/conflict"
	ProblemTypeNotReady         = "https://api.parkest.app/problems/trip-not-ready"
	ProblemTypeTooManyRequests  = "https://api.parkest.app/problems/too-many-requests"
	ProblemTypeTLSRequired      = "https://api.parkest.app/problems/tls-required"
	ProblemTypeUnsupportedMedia = "https://api.parkest.app/problems/unsupported-media-type"
	ProblemTypeInternal         = "https://api.parkest.app/problems/internal-error"
	ProblemTypeUnavailable      = "https://api.parkest.app/problems/service-unavailable"
)

// Kind is a problem type together with its fixed title and status.
type Kind struct {
	Type   string
	Title  string
	Status int
}

// Problem kinds returned by the API.
var (
	KindValidation       = Kind{ProblemTypeValidation, "Validation error", http.StatusBadRequest}
	KindUnauthorized     = Kind{ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized}
	KindNotFound         = Kind{ProblemTypeNotFound, "Not found", http.StatusNotFound}
	KindConflict         = Kind{ProblemTypeConflict, "Conflict", http.StatusConflict}
	KindNotReady         = Kind{ProblemTypeNotReady, "Trip not ready", http.StatusConflict}
	KindTooManyRequests  = Kind{ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests}
	KindTLSRequired      = Kind{ProblemTypeTLSRequired, "TLS required", http.StatusForbidden}
	KindUnsupportedMedia = Kind{ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType}
	KindInternal         = Kind{ProblemTypeInternal, "Internal server error", http.StatusInternalServerError}
	KindUnavailable      = Kind{ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable}
)

// New creates a problem of this kind.
func (k Kind) New(traceID, detail string) *Problem {
	return &Problem{
		Type:    k.Type,
		Title:   k.Title,
		Status:  k.Status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// Write sends the problem. Problems are never cached.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	h.Set("Cache-Control", "no-store")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest creates a 400 validation problem listing the invalid fields.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := KindValidation.New(traceID, detail)
	p.Errors = errors
	return p
}

// NewUnauthorized creates a 401 problem.
func NewUnauthorized(traceID, detail string) *Problem { return KindUnauthorized.New(traceID, detail) }

// NewNotFound creates a 404 problem.
func NewNotFound(traceID, detail string) *Problem { return KindNotFound.New(traceID, detail) }

// NewConflict creates a 409 problem.
func NewConflict(traceID, detail string) *Problem { return KindConflict.New(traceID, detail) }

// NewNotReady is a 409 for a trip requested before the selection settled.
func NewNotReady(traceID, detail string) *Problem { return KindNotReady.New(traceID, detail) }

// NewTooManyRequests creates a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return KindTooManyRequests.New(traceID, detail)
}

// NewInternalError creates a 500 problem.
func NewInternalError(traceID, detail string) *Problem { return KindInternal.New(traceID, detail) }

// NewServiceUnavailable creates a 503 problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return KindUnavailable.New(traceID, detail)
}
