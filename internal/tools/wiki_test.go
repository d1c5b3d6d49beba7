package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWikiLookupToolReturnsBestMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("srsearch"); got != "creeper" {
			t.Errorf("srsearch query = %q, want creeper", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"query":{"search":[{"title":"Creeper","snippet":"A <span class=\"searchmatch\">Creeper</span> is a hostile mob."}]}}`))
	}))
	defer srv.Close()

	tool := NewWikiLookupTool(srv.Client(), srv.URL)
	res, err := tool.Execute(context.Background(), "conn-1", json.RawMessage(`{"query":"creeper"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("Execute() result = %+v, want success", res)
	}
	want := "Creeper: A Creeper is a hostile mob."
	if res.Content != want {
		t.Fatalf("Execute() content = %q, want %q", res.Content, want)
	}
}

func TestWikiLookupToolNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query":{"search":[]}}`))
	}))
	defer srv.Close()

	tool := NewWikiLookupTool(srv.Client(), srv.URL)
	res, err := tool.Execute(context.Background(), "conn-1", json.RawMessage(`{"query":"nonexistent-thing"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("Execute() result = %+v, want a non-error no-results message", res)
	}
}

func TestWikiLookupToolMissingQuery(t *testing.T) {
	tool := NewWikiLookupTool(nil, "")
	res, err := tool.Execute(context.Background(), "conn-1", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.IsError {
		t.Fatal("Execute() with missing query should report an error result")
	}
}

func TestWikiLookupToolUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tool := NewWikiLookupTool(srv.Client(), srv.URL)
	res, err := tool.Execute(context.Background(), "conn-1", json.RawMessage(`{"query":"creeper"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.IsError {
		t.Fatal("Execute() should report an error result on a non-200 upstream response")
	}
}
