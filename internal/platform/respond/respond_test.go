package respond

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
)

func decodeProblem(t *testing.T, resp *httptest.ResponseRecorder) problem {
	t.Helper()
	var p problem
	var err error
	switch ct := resp.Header().Get("Content-Type"); ct {
	case contentTypeProblemJSON:
		err = json.Unmarshal(resp.Body.Bytes(), &p)
	case contentTypeProblemCBOR:
		err = cbor.Unmarshal(resp.Body.Bytes(), &p)
	default:
		t.Fatalf("unexpected content type %q", ct)
	}
	if err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return p
}

func TestNotFoundHandlerReturnsProblemDetails(t *testing.T) {
	router := chi.NewRouter()
	router.NotFound(NotFoundHandler())

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/v1/missing", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	link := resp.Header().Get("Link")
	if !strings.Contains(link, schemaPath) || !strings.Contains(link, "describedBy") {
		t.Fatalf("expected Link header with schema, got %q", link)
	}
	p := decodeProblem(t, resp)
	if p.Status != http.StatusNotFound || p.Title != "Not Found" || p.Detail != msgNotFound {
		t.Fatalf("unexpected problem: %+v", p)
	}
	if p.Schema != "http://example.com"+schemaPath {
		t.Fatalf("unexpected $schema %q", p.Schema)
	}
}

func TestNotFoundHandlerReturnsCBORWhenAccepted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("Accept", "application/cbor")
	resp := httptest.NewRecorder()
	NotFoundHandler().ServeHTTP(resp, req)

	p := decodeProblem(t, resp)
	if resp.Header().Get("Content-Type") != contentTypeProblemCBOR || p.Status != http.StatusNotFound {
		t.Fatalf("expected CBOR 404, got %q %+v", resp.Header().Get("Content-Type"), p)
	}
}

func TestMethodNotAllowedListsAllowedMethods(t *testing.T) {
	router := chi.NewRouter()
	router.MethodNotAllowed(MethodNotAllowedHandler())
	router.Get("/v1/profiles/{id}", func(w http.ResponseWriter, _ *http.Request) {})
	router.Patch("/v1/profiles/{id}", func(w http.ResponseWriter, _ *http.Request) {})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/v1/profiles/abc", nil))

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
	if allow := resp.Header().Get("Allow"); allow != "GET, PATCH" {
		t.Fatalf("expected Allow 'GET, PATCH', got %q", allow)
	}
	if p := decodeProblem(t, resp); p.Detail != msgMethodNotAllowed {
		t.Fatalf("unexpected detail %q", p.Detail)
	}
}

func TestAllowedMethodsNilRouteContext(t *testing.T) {
	if got := allowedMethods(httptest.NewRequest(http.MethodGet, "/", nil)); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestRecovererReturnsProblemDetails(t *testing.T) {
	for name, value := range map[string]any{
		"string": "boom",
		"error":  errors.New("boom"),
	} {
		t.Run(name, func(t *testing.T) {
			h := Recoverer()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic(value)
			}))
			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

			if resp.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", resp.Code)
			}
			if p := decodeProblem(t, resp); p.Detail != msgInternal {
				t.Fatalf("unexpected detail %q", p.Detail)
			}
			if strings.Contains(resp.Body.String(), "boom") {
				t.Fatal("panic value must not leak into the response")
			}
		})
	}
}

func TestRecovererRePanicsOnErrAbortHandler(t *testing.T) {
	h := Recoverer()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler re-panic, got %v", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestRecovererSkipsWriteWhenHeaderAlreadyWritten(t *testing.T) {
	h := Recoverer()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial response"))
		panic("after write")
	}))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if resp.Code != http.StatusOK || resp.Body.String() != "partial response" {
		t.Fatalf("expected original response preserved, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestWriteRedirect(t *testing.T) {
	for _, code := range []int{http.StatusMovedPermanently, http.StatusFound, http.StatusPermanentRedirect} {
		resp := httptest.NewRecorder()
		WriteRedirect(resp, httptest.NewRequest(http.MethodGet, "/old", nil), "/health", code)

		if resp.Code != code {
			t.Fatalf("expected %d, got %d", code, resp.Code)
		}
		if loc := resp.Header().Get("Location"); loc != "/health" {
			t.Fatalf("expected Location /health, got %q", loc)
		}
	}
}

func TestSchemaURLScheme(t *testing.T) {
	forwarded := httptest.NewRequest(http.MethodGet, "/", nil)
	forwarded.Header.Set("X-Forwarded-Proto", "https")
	if got := schemaURL(forwarded); !strings.HasPrefix(got, "https://") {
		t.Fatalf("expected https for forwarded proto, got %q", got)
	}

	direct := httptest.NewRequest(http.MethodGet, "/", nil)
	direct.TLS = &tls.ConnectionState{}
	if got := schemaURL(direct); !strings.HasPrefix(got, "https://") {
		t.Fatalf("expected https for TLS, got %q", got)
	}
}

func TestSchemaURLUsesPrefix(t *testing.T) {
	SetSchemaPrefix("/v1")
	t.Cleanup(func() { SetSchemaPrefix("") })

	got := schemaURL(httptest.NewRequest(http.MethodGet, "/", nil))
	if got != "http://example.com/v1/schemas/ErrorModel.json" {
		t.Fatalf("unexpected schema URL %q", got)
	}
}

func TestJSONProblemHasNoHTMLEscaping(t *testing.T) {
	resp := httptest.NewRecorder()
	WriteProblem(resp, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusBadRequest, "a <b> & c")
	if !strings.Contains(resp.Body.String(), "a <b> & c") {
		t.Fatalf("expected raw characters, got %s", resp.Body.String())
	}
}

func TestVaryHeader(t *testing.T) {
	h := http.Header{}
	h.Add("Vary", "Origin, accept")
	ensureVary(h, "Accept", "Accept-Encoding", "Accept-Encoding", "")

	got := h.Values("Vary")
	if len(got) != 2 || got[1] != "Accept-Encoding" {
		t.Fatalf("expected [Origin, accept Accept-Encoding], got %v", got)
	}
}

func TestSelectFormat(t *testing.T) {
	tests := []struct {
		accept string
		want   format
	}{
		{"", formatJSON},
		{"*/*", formatJSON},
		{"application/*", formatJSON},
		{"application/json", formatJSON},
		{"application/cbor", formatCBOR},
		{"application/problem+cbor", formatCBOR},
		{"application/cbor, application/json", formatJSON},
		{"application/cbor, */*", formatCBOR},
		{"application/json;q=0.5, application/cbor", formatCBOR},
		{"application/cbor;q=0.5, application/json", formatJSON},
		{"application/cbor;q=0", formatJSON},
		{"application/cbor;q=2", formatJSON},
		{"application/cbor;q=abc, application/json;q=0.1", formatJSON},
		{"*/*, application/json;q=0.1, application/cbor;q=0.5", formatCBOR},
		{"text/html, cbor", formatJSON},
	}
	for _, tt := range tests {
		if got := selectFormat(tt.accept); got != tt.want {
			t.Errorf("selectFormat(%q) = %d, want %d", tt.accept, got, tt.want)
		}
	}
}

func TestParseAcceptDropsMalformedRanges(t *testing.T) {
	got := parseAccept("json, , application/cbor;q=1.5, application/json;q=0.3;q=0.7")
	if len(got) != 1 || got[0].typ != "application/json" || got[0].q != 0.7 {
		t.Fatalf("unexpected ranges %+v", got)
	}
}
