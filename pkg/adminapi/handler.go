package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5"

	"github.com/togetheros/rollout/pkg/canary"
	"github.com/togetheros/rollout/pkg/feature"
	"github.com/togetheros/rollout/pkg/logger"
)

var (
	ErrInvalidJSON          = errors.New("invalid JSON body")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrNilResponse          = errors.New("handler returned nil response")
)

// Response renders itself to the client.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// HandlerFunc is a typed handler: R is bound from the request before the
// handler runs.
type HandlerFunc[R any] func(ctx context.Context, req R) Response

// Bind populates v from r.
type Bind func(r *http.Request, v any) error

// Envelope is the body of every JSON response.
type Envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type jsonResponse struct {
	status int
	body   Envelope
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON responds 200 with v as data.
func JSON(v any) Response {
	return jsonResponse{status: http.StatusOK, body: Envelope{Data: v}}
}

// Created responds 201 with v as data.
func Created(v any) Response {
	return jsonResponse{status: http.StatusCreated, body: Envelope{Data: v}}
}

type noContent struct{}

func (noContent) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// NoContent responds 204.
func NoContent() Response { return noContent{} }

// Error maps err to a status code and error code by its sentinel.
func Error(err error) Response {
	status, code := classify(err)
	return jsonResponse{status: status, body: Envelope{Error: &ErrorDetail{Code: code, Message: err.Error()}}}
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, feature.ErrFlagNotFound):
		return http.StatusNotFound, "flag_not_found"
	case errors.Is(err, canary.ErrNoActiveDeployment):
		return http.StatusNotFound, "no_active_deployment"
	case errors.Is(err, feature.ErrInvalidFlag),
		errors.Is(err, canary.ErrInvalidStages),
		errors.Is(err, canary.ErrEmptyVersion),
		errors.Is(err, ErrInvalidJSON):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, "unsupported_media_type"
	case errors.Is(err, canary.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// Wrap adapts a typed handler to http.HandlerFunc. Binders run in order;
// the first failure is rendered as an error response.
func Wrap[R any](log *slog.Logger, h HandlerFunc[R], binders ...Bind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req R
		for _, bind := range binders {
			if err := bind(r, &req); err != nil {
				render(log, w, r, Error(err))
				return
			}
		}
		resp := h(r.Context(), req)
		if resp == nil {
			resp = Error(ErrNilResponse)
		}
		render(log, w, r, resp)
	}
}

func render(log *slog.Logger, w http.ResponseWriter, r *http.Request, resp Response) {
	if j, ok := resp.(jsonResponse); ok && j.status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "admin request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path),
			slog.String("error", j.body.Error.Message))
	}
	if err := resp.Render(w, r); err != nil {
		log.ErrorContext(r.Context(), "failed to render response", logger.Error(err))
	}
}

// BindJSON decodes an application/json body strictly: unknown fields and
// trailing data are rejected.
func BindJSON(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("%w: expected application/json", ErrUnsupportedMediaType)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidJSON)
		}
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidJSON)
	}
	return nil
}

// BindOptionalJSON is BindJSON that accepts an empty body.
func BindOptionalJSON(r *http.Request, v any) error {
	if r.ContentLength == 0 && r.Header.Get("Content-Type") == "" {
		return nil
	}
	return BindJSON(r, v)
}

// BindPath sets string fields tagged `path:"name"` from chi URL parameters.
func BindPath(r *http.Request, v any) error {
	return bindStrings(v, "path", func(name string) []string {
		if p := chi.URLParam(r, name); p != "" {
			return []string{p}
		}
		return nil
	})
}

// BindQuery sets string and []string fields tagged `query:"name"`.
func BindQuery(r *http.Request, v any) error {
	q := r.URL.Query()
	return bindStrings(v, "query", func(name string) []string { return q[name] })
}

func bindStrings(v any, tag string, lookup func(name string) []string) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bind %s: target must be a pointer to struct", tag)
	}
	rv = rv.Elem()
	rt := rv.Type()
	for i := range rt.NumField() {
		name := rt.Field(i).Tag.Get(tag)
		if name == "" || name == "-" {
			continue
		}
		values := lookup(name)
		if len(values) == 0 {
			continue
		}
		f := rv.Field(i)
		switch {
		case f.Kind() == reflect.String:
			f.SetString(values[0])
		case f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.String:
			f.Set(reflect.ValueOf(values).Convert(f.Type()))
		default:
			return fmt.Errorf("bind %s: field %s has unsupported type %s", tag, rt.Field(i).Name, f.Type())
		}
	}
	return nil
}
