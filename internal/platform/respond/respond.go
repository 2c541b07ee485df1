// Package respond writes RFC 9457 problem details for responses produced
// outside Huma operations: unknown routes, wrong methods, panics and
// redirects. Bodies are JSON unless the client prefers CBOR.
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/danielgtaylor/huma/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/janisto/astro-identity/internal/platform/logging"
)

const (
	contentTypeProblemJSON = "application/problem+json"
	contentTypeProblemCBOR = "application/problem+cbor"
	schemaPath             = "/schemas/ErrorModel.json"

	msgNotFound         = "resource not found"
	msgMethodNotAllowed = "method not allowed"
	msgInternal         = "internal server error"
)

// schemaPrefix is the mount path of the Huma API serving /schemas.
var schemaPrefix atomic.Pointer[string]

// SetSchemaPrefix sets the path the Huma API is mounted on, e.g. "/v1", so
// problem bodies link to the schema it serves.
func SetSchemaPrefix(prefix string) {
	schemaPrefix.Store(&prefix)
}

type format uint8

const (
	formatJSON format = iota
	formatCBOR
)

// problem mirrors huma.ErrorModel with the $schema link Huma adds to its own bodies.
type problem struct {
	Schema string              `json:"$schema,omitempty" cbor:"$schema,omitempty"`
	Title  string              `json:"title,omitempty"   cbor:"title,omitempty"`
	Status int                 `json:"status,omitempty"  cbor:"status,omitempty"`
	Detail string              `json:"detail,omitempty"  cbor:"detail,omitempty"`
	Errors []*huma.ErrorDetail `json:"errors,omitempty"  cbor:"errors,omitempty"`
}

// NotFoundHandler answers unknown routes with a 404 problem.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteProblem(w, r, http.StatusNotFound, msgNotFound)
	}
}

// MethodNotAllowedHandler answers with a 405 problem and an Allow header
// listing the methods the route does serve.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allow := allowedMethods(r); len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
		}
		WriteProblem(w, r, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
}

// Recoverer turns panics into a logged 500 problem. http.ErrAbortHandler is
// re-panicked so net/http can abort the connection. Nothing is written when
// the handler already sent headers.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				logging.LogError(r.Context(), "panic recovered", err, zap.ByteString("stack", debug.Stack()))
				if rw.wroteHeader {
					return
				}
				WriteProblem(rw, r, http.StatusInternalServerError, msgInternal)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// WriteRedirect sends a redirect with a problem body describing the new location.
func WriteRedirect(w http.ResponseWriter, r *http.Request, location string, code int) {
	w.Header().Set("Location", location)
	WriteProblem(w, r, code, "see "+location)
}

// WriteProblem writes a problem body in the format the client prefers.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string, errs ...*huma.ErrorDetail) {
	schema := schemaURL(r)
	body := problem{
		Schema: schema,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Errors: errs,
	}

	var (
		payload []byte
		err     error
		ct      = contentTypeProblemJSON
	)
	if selectFormat(r.Header.Get("Accept")) == formatCBOR {
		ct = contentTypeProblemCBOR
		payload, err = cbor.Marshal(body)
	} else {
		payload, err = marshalJSON(body)
	}
	if err != nil {
		logging.LogError(r.Context(), "encode problem", err, zap.Int("status", status))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", ct)
	h.Set("Link", "<"+schema+`>; rel="describedBy"`)
	ensureVary(h, "Accept")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		logging.LogWarn(r.Context(), "write problem", zap.Error(err))
	}
}

func marshalJSON(v any) ([]byte, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return []byte(strings.TrimSuffix(sb.String(), "\n")), nil
}

func schemaURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	prefix := ""
	if p := schemaPrefix.Load(); p != nil {
		prefix = *p
	}
	return scheme + "://" + r.Host + prefix + schemaPath
}

// ensureVary adds each value to Vary unless an existing entry already names it.
func ensureVary(h http.Header, values ...string) {
	seen := make(map[string]struct{})
	for _, line := range h.Values("Vary") {
		for part := range strings.SplitSeq(line, ",") {
			seen[strings.ToLower(strings.TrimSpace(part))] = struct{}{}
		}
	}
	for _, v := range values {
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok || v == "" {
			continue
		}
		seen[key] = struct{}{}
		h.Add("Vary", v)
	}
}

type acceptRange struct {
	typ string
	q   float64
}

// parseAccept returns the media ranges of an Accept header. Ranges without a
// slash or with an unparsable q are dropped.
func parseAccept(header string) []acceptRange {
	var out []acceptRange
	for part := range strings.SplitSeq(header, ",") {
		mediaType, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		mediaType = strings.ToLower(strings.TrimSpace(mediaType))
		if !strings.Contains(mediaType, "/") {
			continue
		}
		q, ok := qValue(params)
		if !ok {
			continue
		}
		out = append(out, acceptRange{typ: mediaType, q: q})
	}
	return out
}

func qValue(params string) (float64, bool) {
	q := 1.0
	for p := range strings.SplitSeq(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "q") {
			continue
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return 0, false
		}
		q = parsed
	}
	return q, true
}

// selectFormat prefers CBOR only when it is named explicitly with a higher q
// than JSON, or with the same q while JSON is reached only through a wildcard.
func selectFormat(accept string) format {
	var (
		cborQ, jsonQ         = -1.0, -1.0
		jsonExplicit, cborOK bool
	)
	for _, ar := range parseAccept(accept) {
		switch ar.typ {
		case "application/cbor", "application/problem+cbor", "application/*+cbor":
			cborQ = max(cborQ, ar.q)
			cborOK = true
		case "application/json", "application/problem+json", "application/*+json":
			if !jsonExplicit || ar.q > jsonQ {
				jsonQ = ar.q
			}
			jsonExplicit = true
		case "*/*", "application/*":
			if !jsonExplicit {
				jsonQ = max(jsonQ, ar.q)
			}
		}
	}
	if !cborOK || cborQ <= 0 {
		return formatJSON
	}
	if cborQ > jsonQ || (cborQ == jsonQ && !jsonExplicit) {
		return formatCBOR
	}
	return formatJSON
}

// allowedMethods asks chi which methods match the request path.
func allowedMethods(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return nil
	}
	path := rctx.RoutePath
	if path == "" {
		path = r.URL.RawPath
	}
	if path == "" {
		path = r.URL.Path
	}
	if path == "" {
		path = "/"
	}

	var allowed []string
	for _, m := range []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	} {
		if rctx.Routes.Match(chi.NewRouteContext(), m, path) {
			allowed = append(allowed, m)
		}
	}
	return allowed
}

// responseWriter records whether headers went out so Recoverer knows if a
// problem body can still be written.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
