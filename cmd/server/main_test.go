package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/janisto/astro-identity/internal/http/health"
	"github.com/janisto/astro-identity/internal/http/v1/registration"
	"github.com/janisto/astro-identity/internal/platform/config"
)

func testConfig() config.Config {
	return config.Config{
		Port:         "8080",
		StoreBackend: config.BackendMemory,
		StoreTimeout: time.Second,
		UserIDFormat: "uuid",
	}
}

func testServer(t *testing.T) (http.Handler, *deps) {
	t.Helper()
	d, err := buildDeps(context.Background(), testConfig(), newProcessRegistry())
	if err != nil {
		t.Fatalf("buildDeps: %v", err)
	}
	t.Cleanup(d.close)
	return newRouter(testConfig(), d), d
}

func serve(srv http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set(chimiddleware.RequestIDHeader, "test-req")
	resp := httptest.NewRecorder()
	srv.ServeHTTP(resp, req)
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	resp := serve(srv, http.MethodGet, "/health", "")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", resp.Code)
	}
	var body health.Response
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body.Status != "healthy" {
		t.Fatalf("expected status healthy, got %s", body.Status)
	}
	if len(body.Checks) != 0 {
		t.Fatalf("memory backend should register no checks, got %v", body.Checks)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv, _ := testServer(t)
	resp := serve(srv, http.MethodGet, "/health", "")

	if got := resp.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff, got %q", got)
	}
	if got := resp.Header().Get(chimiddleware.RequestIDHeader); got != "test-req" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}

func TestRegistrationThroughRouter(t *testing.T) {
	srv, _ := testServer(t)
	resp := serve(srv, http.MethodPost, "/v1/registrations",
		`{"first_name":"Ali","last_name":"Demir","email":"Ali@Example.com"}`)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var body registration.Registration
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !body.Success || body.Email != "Ali@Example.com" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if loc := resp.Header().Get("Location"); loc != "/v1/profiles/"+body.ProfileID {
		t.Fatalf("unexpected Location %q", loc)
	}

	again := serve(srv, http.MethodPost, "/v1/registrations",
		`{"first_name":"Veli","last_name":"Kaya","email":"ali@example.com"}`)
	if again.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a taken email, got %d", again.Code)
	}
}

func TestRegistrationCountedInMetrics(t *testing.T) {
	srv, _ := testServer(t)
	serve(srv, http.MethodPost, "/v1/registrations",
		`{"first_name":"Ali","last_name":"Demir","email":"ali@example.com"}`)

	resp := serve(srv, http.MethodGet, "/metrics", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	body := resp.Body.String()
	if !strings.Contains(body, `astro_identity_registrations_total{result="success"} 1`) {
		t.Fatalf("registration counter missing from metrics:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatal("expected Go runtime collector output")
	}
}

func TestSecuredRouteWithoutIdentityProvider(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/profiles/01JNQ7W3ZK9V4T2M8B6XH5R0DA", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp := httptest.NewRecorder()
	srv.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestNotFoundReturnsProblemDetails(t *testing.T) {
	srv, _ := testServer(t)
	resp := serve(srv, http.MethodGet, "/missing", "")

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("expected application/problem+json content type, got %q", ct)
	}
	if link := resp.Header().Get("Link"); !strings.Contains(link, "/v1/schemas/ErrorModel.json") {
		t.Fatalf("expected describedBy link under /v1, got %q", link)
	}

	var problem huma.ErrorModel
	if err := json.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to unmarshal 404 response: %v", err)
	}
	if problem.Status != http.StatusNotFound || problem.Detail != "resource not found" {
		t.Fatalf("unexpected problem: %+v", problem)
	}
}

func TestMethodNotAllowedReturnsProblemDetails(t *testing.T) {
	srv, _ := testServer(t)
	resp := serve(srv, http.MethodPost, "/health", "")

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", resp.Code)
	}
	if allow := resp.Header().Get("Allow"); !strings.Contains(allow, http.MethodGet) {
		t.Fatalf("expected Allow header to list GET, got %q", allow)
	}
}

func TestOpenAPIServedUnderPrefix(t *testing.T) {
	srv, _ := testServer(t)
	resp := serve(srv, http.MethodGet, "/v1/openapi.json", "")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var doc struct {
		Paths map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &doc); err != nil {
		t.Fatalf("failed to unmarshal OpenAPI document: %v", err)
	}
	for _, path := range []string{"/registrations", "/profiles", "/profiles/{id}", "/profiles/{id}/status"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("OpenAPI document missing %s", path)
		}
	}
}

func TestBuildDepsRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown backend", func(c *config.Config) { c.StoreBackend = "sqlite" }, "unknown store backend"},
		{"firestore without project", func(c *config.Config) { c.StoreBackend = config.BackendFirestore }, "FIREBASE_PROJECT_ID"},
		{"unknown id format", func(c *config.Config) { c.UserIDFormat = "serial" }, "unknown user id format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := buildDeps(context.Background(), cfg, prometheus.NewRegistry())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDepsCloseRunsInReverseOrder(t *testing.T) {
	var order []int
	d := &deps{closers: []func(){
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}}
	d.close()
	d.close()

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("unexpected close order %v", order)
	}
}

func TestListenErrorChannel(t *testing.T) {
	listenErr := make(chan error, 1)

	expectedErr := &net.OpError{Op: "listen", Net: "tcp", Err: errors.New("address already in use")}
	go func() {
		listenErr <- expectedErr
	}()

	select {
	case err := <-listenErr:
		if !strings.Contains(err.Error(), "address already in use") {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for error")
	}
}

func TestServerShutdown(t *testing.T) {
	handler, _ := testServer(t)
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		t.Fatalf("expected ErrServerClosed, got %v", err)
	}
}

func TestOpenAPICBORContentTypes(t *testing.T) {
	api := humachi.New(chi.NewRouter(), huma.DefaultConfig("Test API", "1.0.0"))
	addCBORContent(api)

	type echoInput struct {
		Body struct {
			Name string `json:"name"`
		}
	}
	type echoOutput struct {
		Body struct {
			Name string `json:"name"`
		}
	}
	huma.Post(api, "/echo", func(_ context.Context, in *echoInput) (*echoOutput, error) {
		out := &echoOutput{}
		out.Body.Name = in.Body.Name
		return out, nil
	})

	op := api.OpenAPI().Paths["/echo"].Post
	if _, ok := op.RequestBody.Content["application/cbor"]; !ok {
		t.Fatal("expected application/cbor in request body content")
	}
	if _, ok := op.Responses["200"].Content["application/cbor"]; !ok {
		t.Fatal("expected application/cbor in 200 response content")
	}
}
