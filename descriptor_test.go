package photocluster

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestApplyDefaultsFillsUnsetFields(t *testing.T) {
	client := New(WithTimeout(45*time.Second), WithMaxRetries(4), WithInitialBackoff(300*time.Millisecond))

	d := client.applyDefaults(RequestDescriptor{Path: "/api/photos"})

	if d.Method != http.MethodGet {
		t.Errorf("Expected GET default, got %s", d.Method)
	}
	if d.Timeout != 45*time.Second {
		t.Errorf("Expected client timeout inherited, got %v", d.Timeout)
	}
	if d.Retries == nil || *d.Retries != 4 {
		t.Errorf("Expected client retries inherited, got %v", d.Retries)
	}
	if d.RetryDelay != 300*time.Millisecond {
		t.Errorf("Expected client backoff inherited, got %v", d.RetryDelay)
	}
	if d.Header.Get("User-Agent") == "" {
		t.Error("Expected default headers copied in")
	}
}

func TestApplyDefaultsKeepsExplicitFields(t *testing.T) {
	client := New()

	retries := 1
	d := client.applyDefaults(RequestDescriptor{
		Method:     http.MethodDelete,
		Path:       "/api/photos/abc",
		Timeout:    5 * time.Second,
		Retries:    &retries,
		RetryDelay: 50 * time.Millisecond,
	})

	if d.Method != http.MethodDelete {
		t.Errorf("Expected DELETE kept, got %s", d.Method)
	}
	if d.Timeout != 5*time.Second {
		t.Errorf("Expected explicit timeout kept, got %v", d.Timeout)
	}
	if *d.Retries != 1 {
		t.Errorf("Expected explicit retries kept, got %d", *d.Retries)
	}
	if d.RetryDelay != 50*time.Millisecond {
		t.Errorf("Expected explicit delay kept, got %v", d.RetryDelay)
	}
}

func TestApplyDefaultsDoesNotMutateClientHeaders(t *testing.T) {
	client := New(WithHeader("X-Fixed", "yes"))

	header := http.Header{}
	header.Set("X-Fixed", "override")
	client.applyDefaults(RequestDescriptor{Path: "/x", Header: header})

	if got := client.defaultHeader.Get("X-Fixed"); got != "yes" {
		t.Errorf("Client default header mutated to %q", got)
	}
}

func TestResolveJoinsBaseURL(t *testing.T) {
	cases := []struct {
		name string
		base string
		path string
		want string
	}{
		{"plain join", "http://localhost:8000", "/api/photos", "http://localhost:8000/api/photos"},
		{"trailing slash base", "http://localhost:8000/", "/api/photos", "http://localhost:8000/api/photos"},
		{"no leading slash", "http://localhost:8000", "api/photos", "http://localhost:8000/api/photos"},
		{"absolute passthrough", "http://localhost:8000", "https://cdn.example.com/img.jpg", "https://cdn.example.com/img.jpg"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := New(WithBaseURL(tc.base))
			spec, err := client.resolve(client.applyDefaults(RequestDescriptor{Path: tc.path}))
			if err != nil {
				t.Fatalf("resolve() returned error: %v", err)
			}
			if spec.url != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, spec.url)
			}
		})
	}
}

func TestResolveMergesQueryIntoExisting(t *testing.T) {
	client := New(WithBaseURL("http://localhost:8000"))

	d := client.applyDefaults(RequestDescriptor{
		Path:  "/api/photos?processed_only=true",
		Query: url.Values{"page": {"3"}},
	})
	spec, err := client.resolve(d)
	if err != nil {
		t.Fatalf("resolve() returned error: %v", err)
	}

	u, err := url.Parse(spec.url)
	if err != nil {
		t.Fatalf("Parse(%q) returned error: %v", spec.url, err)
	}
	q := u.Query()
	if q.Get("processed_only") != "true" {
		t.Errorf("Expected inline query kept, got %s", u.RawQuery)
	}
	if q.Get("page") != "3" {
		t.Errorf("Expected descriptor query merged, got %s", u.RawQuery)
	}
}

func TestResolveSetsContentTypeForBodies(t *testing.T) {
	client := New(WithBaseURL("http://localhost:8000"))

	d := client.applyDefaults(RequestDescriptor{
		Method: http.MethodPost,
		Path:   "/api/photos",
		Body:   map[string]string{"filename": "a.jpg"},
	})
	spec, err := client.resolve(d)
	if err != nil {
		t.Fatalf("resolve() returned error: %v", err)
	}
	if got := spec.header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Expected JSON content type, got %q", got)
	}
	if !strings.Contains(string(spec.body), `"filename":"a.jpg"`) {
		t.Errorf("Expected marshaled body, got %s", spec.body)
	}
}

func TestMarshalBodyVariants(t *testing.T) {
	if body, err := marshalBody(nil); err != nil || body != nil {
		t.Errorf("Expected nil body passthrough, got %v / %v", body, err)
	}

	raw := []byte(`{"already":"encoded"}`)
	if body, err := marshalBody(raw); err != nil || string(body) != string(raw) {
		t.Errorf("Expected []byte passthrough, got %s / %v", body, err)
	}

	msg := json.RawMessage(`{"raw":"message"}`)
	if body, err := marshalBody(msg); err != nil || string(body) != string(msg) {
		t.Errorf("Expected RawMessage passthrough, got %s / %v", body, err)
	}

	type photo struct {
		Filename string `json:"filename"`
	}
	body, err := marshalBody(photo{Filename: "b.jpg"})
	if err != nil {
		t.Fatalf("marshalBody returned error: %v", err)
	}
	if string(body) != `{"filename":"b.jpg"}` {
		t.Errorf("Expected marshaled struct, got %s", body)
	}

	if _, err := marshalBody(make(chan int)); err == nil {
		t.Error("Expected error for unmarshalable body")
	} else {
		var e *Error
		if !errors.As(err, &e) || e.Type != ErrorTypeValidation {
			t.Errorf("Expected validation error, got %v", err)
		}
	}
}

func TestEndpointFromURL(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"http://localhost:8000/api/photos", "localhost:8000/api/photos"},
		{"http://localhost:8000/", "localhost:8000/"},
		{"http://localhost:8000", "localhost:8000/"},
	}
	for _, tc := range cases {
		u, err := url.Parse(tc.raw)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tc.raw, err)
		}
		if got := endpointFromURL(u); got != tc.want {
			t.Errorf("endpointFromURL(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
	if got := endpointFromURL(nil); got != "unknown" {
		t.Errorf("Expected unknown for nil URL, got %q", got)
	}
}
