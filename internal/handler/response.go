package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
)

// OrganizationHeader carries the caller's tenant on every request.
const OrganizationHeader = "X-Organization-ID"

// Response is the envelope every endpoint writes.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{Success: true, Data: data})
}

// Fail maps err to a status code. Server errors are logged and hidden from
// the caller.
func Fail(w http.ResponseWriter, log *zap.Logger, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.OrNop(log).Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	write(w, status, Response{Success: false, Error: msg})
}

func StatusFor(err error) int {
	var pre *appErrors.ErrPrecondition
	var res *appErrors.ErrResolution
	switch {
	case errors.Is(err, appErrors.ErrInvalidArgument):
		return http.StatusBadRequest
	case appErrors.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &pre):
		if pre.Kind == appErrors.CampaignNotEnrollable || pre.Kind == appErrors.ScheduledForLater {
			return http.StatusConflict
		}
		return http.StatusUnprocessableEntity
	case errors.As(err, &res):
		return http.StatusServiceUnavailable
	case errors.Is(err, appErrors.ErrInvalidTransition), errors.Is(err, appErrors.ErrEnrollmentLocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func write(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type orgKey struct{}

// RequireOrganization rejects requests without a positive X-Organization-ID
// and stores it on the request context.
func RequireOrganization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(OrganizationHeader))
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			Fail(w, nil, fmt.Errorf("%s header must be a positive integer: %w", OrganizationHeader, appErrors.ErrInvalidArgument))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), orgKey{}, id)))
	})
}

// OrganizationID returns the tenant set by RequireOrganization, or 0.
func OrganizationID(r *http.Request) int {
	id, _ := r.Context().Value(orgKey{}).(int)
	return id
}

// IDParam parses a positive integer chi URL parameter.
func IDParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, appErrors.ErrInvalidArgument)
	}
	return id, nil
}

// Decode reads a JSON body into dst. An empty body leaves dst untouched.
func Decode(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid body: %v: %w", err, appErrors.ErrInvalidArgument)
	}
	return nil
}
