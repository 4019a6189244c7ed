package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPythonPDFParser_Parse(t *testing.T) {
	// Mock Python service
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parse" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Filename") != "test.pdf" {
			t.Errorf("unexpected filename header: %q", r.Header.Get("X-Filename"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"text":  "Hello\x00 from PDF\x07\n",
			"pages": 3,
		})
	}))
	defer server.Close()

	parser := NewPythonPDFParser(server.URL)
	out, err := parser.Parse(context.Background(), []byte("fake pdf"), "/docs/test.pdf")

	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out.Text != "Hello from PDF" {
		t.Errorf("unexpected text: %q", out.Text)
	}
	if out.Pages != 3 {
		t.Errorf("unexpected pages: %d", out.Pages)
	}
}

func TestPythonPDFParser_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"service error", http.StatusOK, `{"error":"parsing failed","text":""}`},
		{"empty text", http.StatusOK, `{"text":"  ","pages":1}`},
		{"bad status", http.StatusBadGateway, `oops`},
		{"bad json", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			parser := NewPythonPDFParser(server.URL)
			if _, err := parser.Parse(context.Background(), []byte("bad"), "test.pdf"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPythonPDFParser_SupportedFormats(t *testing.T) {
	parser := NewPythonPDFParser("")
	formats := parser.SupportedFormats()

	if len(formats) != 1 || formats[0] != "pdf" {
		t.Error("should support only pdf")
	}
}

func TestPythonPDFParser_DefaultURL(t *testing.T) {
	parser := NewPythonPDFParser("")
	if parser.serviceURL != DefaultServiceURL {
		t.Error("should default to localhost:8081")
	}
}

func TestPythonPDFParser_IsServiceHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		}
	}))
	defer server.Close()

	parser := NewPythonPDFParser(server.URL)
	if !parser.IsServiceHealthy(context.Background()) {
		t.Error("should be healthy")
	}
}

func TestPythonPDFParser_UnhealthyService(t *testing.T) {
	parser := NewPythonPDFParser("http://127.0.0.1:1")
	if parser.IsServiceHealthy(context.Background()) {
		t.Error("should be unhealthy")
	}
}

func TestPythonPDFParser_StartServiceMissingScript(t *testing.T) {
	parser := NewPythonPDFParser("")
	if _, err := parser.StartService(context.Background(), t.TempDir()); err == nil {
		t.Error("expected error for missing script")
	}
}
