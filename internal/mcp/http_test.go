package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPTransportRoundTrip(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotMethod = req.Method
		_ = json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", ID: *req.ID, Result: json.RawMessage(`{}`)})
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
	resp, err := tr.Send(context.Background(), NewRequest(7, MethodPing, nil))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.ID != 7 {
		t.Errorf("response id = %d, want 7", resp.ID)
	}
	if gotMethod != MethodPing {
		t.Errorf("server saw method %q", gotMethod)
	}
}

func TestHTTPTransportSessionAffinity(t *testing.T) {
	var secondHeader string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Mcp-Session", "s-1")
		} else {
			secondHeader = r.Header.Get("Mcp-Session")
		}
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", ID: *req.ID, Result: json.RawMessage(`{}`)})
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
	ctx := context.Background()
	if _, err := tr.Send(ctx, NewRequest(1, MethodPing, nil)); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if _, err := tr.Send(ctx, NewRequest(2, MethodPing, nil)); err != nil {
		t.Fatalf("second Send: %v", err)
	}

	if secondHeader != "s-1" {
		t.Errorf("second request carried session %q, want s-1", secondHeader)
	}
}

func TestHTTPTransportNotificationAccepted(t *testing.T) {
	var sawID bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		sawID = req.ID != nil
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
	resp, err := tr.Send(context.Background(), NewNotification(MethodInitialized, nil))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp != nil {
		t.Errorf("notification returned a response: %+v", resp)
	}
	if sawID {
		t.Error("notification carried an id on the wire")
	}
}

func TestHTTPTransportServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
	_, err := tr.Send(context.Background(), NewRequest(1, MethodPing, nil))
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("err = %v, want a 500 failure", err)
	}
}
