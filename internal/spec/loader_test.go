package spec

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const petstoreYAML = `swagger: "2.0"
info:
  title: Petstore
  version: "1.0.0"
host: petstore.example.com
basePath: /v2
schemes: [http, https]
paths:
  /pet/{petId}:
    parameters:
      - name: petId
        in: path
        required: true
        type: integer
    get:
      operationId: getPetById
      responses:
        200:
          description: ok
          schema:
            $ref: '#/definitions/Pet'
definitions:
  Pet:
    type: object
    required: [name]
    properties:
      id:
        type: integer
      name:
        type: string
`

func writeSpec(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_BlocksFileURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := Load(ctx, "file:///etc/hosts")
	if err == nil {
		t.Fatalf("expected error for file:// URL")
	}
	var se *SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpecError, got %T", err)
	}
	if se.Code != InputError {
		t.Fatalf("expected InputError, got %v", se.Code)
	}
}

func TestLoad_UnsupportedScheme(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := Load(ctx, "ftp://example.com/spec.yaml")
	if err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
	var se *SpecError
	if !errors.As(err, &se) || se.Code != InputError {
		t.Fatalf("expected InputError, got %v (%T)", err, err)
	}
}

func TestLoad_NetworkError(t *testing.T) {
	t.Parallel()
	// Unused port to provoke a quick network failure.
	url := "http://127.0.0.1:1/spec.yaml"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Load(ctx, url, WithHTTPTimeout(200*time.Millisecond), WithMaxRetries(2), WithBackoffBase(10*time.Millisecond))
	if err == nil {
		t.Fatalf("expected network error")
	}
	var se *SpecError
	if !errors.As(err, &se) || se.Code != NetworkError {
		t.Fatalf("expected NetworkError, got %v (%T)", err, err)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "swagger.yaml", petstoreYAML)

	s, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.APIURL != "https://petstore.example.com/v2" {
		t.Fatalf("unexpected api url %q", s.APIURL)
	}
	if s.Origin != path {
		t.Fatalf("unexpected origin %q", s.Origin)
	}
	if s.Title() != "Petstore" {
		t.Fatalf("unexpected title %q", s.Title())
	}
	// unquoted 200 key must be normalized to a string
	if _, ok := Lookup(s.Doc, "paths", "/pet/{petId}", "get", "responses", "200", "schema"); !ok {
		t.Fatalf("expected responses.200.schema to be present")
	}
}

func TestLoad_URL_HostFallback(t *testing.T) {
	t.Parallel()
	body := strings.Replace(petstoreYAML, "host: petstore.example.com\n", "", 1)
	body = strings.Replace(body, "schemes: [http, https]\n", "", 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	s, err := Load(context.Background(), srv.URL+"/swagger.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.APIURL != srv.URL+"/v2" {
		t.Fatalf("expected api url from serving host, got %q", s.APIURL)
	}
}

func TestLoad_URL_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Load(context.Background(), srv.URL+"/swagger.yaml", WithMaxRetries(3))
	var se *SpecError
	if !errors.As(err, &se) || se.Code != NetworkError {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestLoad_WithBaseURL(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "swagger.yaml", petstoreYAML)
	s, err := Load(context.Background(), path, WithBaseURL("http://localhost:8080/api/"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.APIURL != "http://localhost:8080/api" {
		t.Fatalf("unexpected api url %q", s.APIURL)
	}
}

func TestLoad_RejectsOpenAPI3(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "openapi.yaml", "openapi: 3.0.0\ninfo:\n  title: x\n  version: '1'\npaths: {}\n")
	_, err := Load(context.Background(), path)
	var se *SpecError
	if !errors.As(err, &se) || se.Code != ParseError {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if se.Location == "" {
		t.Fatalf("expected location to be set")
	}
}

func TestLoad_InvalidStructure(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "bad.yaml", "swagger: '2.0'\ninfo:\n  title: x\n  version: '1'\nschemes: https\npaths: {}\n")
	_, err := Load(context.Background(), path)
	var se *SpecError
	if !errors.As(err, &se) || se.Code != ValidationError {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "broken.yaml", "swagger: '2.0'\npaths: [\n")
	_, err := Load(context.Background(), path)
	var se *SpecError
	if !errors.As(err, &se) || se.Code != ParseError {
		t.Fatalf("expected ParseError, got %v", err)
	}
}
