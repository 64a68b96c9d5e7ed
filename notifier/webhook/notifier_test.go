package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RowanDark/subhawk/fingerprint"
)

func vulnerableFinding() fingerprint.Finding {
	return fingerprint.Finding{
		Subdomain:  "old.example.com",
		Vulnerable: true,
		Service:    "GitHub Pages",
		CNAME:      []string{"orphaned.github.io"},
		Evidence:   []string{"CNAME points to: orphaned.github.io"},
	}
}

func TestNewEmptyEndpoint(t *testing.T) {
	notifier, err := New(Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notifier != nil {
		t.Fatalf("expected nil notifier for empty endpoint")
	}
}

func TestNewRejectsRelativeEndpoint(t *testing.T) {
	if _, err := New(Options{Endpoint: "hooks/takeover"}); err == nil {
		t.Fatalf("expected error for relative endpoint")
	}
}

func TestNotifyDeliversSignedPayload(t *testing.T) {
	var (
		gotEvent     string
		gotSignature string
		gotBody      []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEvent = r.Header.Get("X-Subhawk-Event")
		gotSignature = r.Header.Get("X-Subhawk-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	notifier, err := New(Options{Endpoint: server.URL, Secret: "s3cret", Domain: "example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := notifier.Notify(context.Background(), "example.com", vulnerableFinding()); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if gotEvent != "takeover.vulnerable" {
		t.Fatalf("unexpected event header: %s", gotEvent)
	}

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(gotBody)
	if expected := hex.EncodeToString(mac.Sum(nil)); gotSignature != expected {
		t.Fatalf("signature mismatch: got %s want %s", gotSignature, expected)
	}

	var body payload
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if body.Finding.Subdomain != "old.example.com" || body.Finding.Service != "GitHub Pages" {
		t.Fatalf("unexpected payload finding: %+v", body.Finding)
	}
	if body.Domain != "example.com" {
		t.Fatalf("unexpected payload domain: %s", body.Domain)
	}
}

func TestNotifySkipsNonVulnerable(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	notifier, err := New(Options{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	finding := fingerprint.Finding{Subdomain: "www.example.com"}
	if err := notifier.Notify(context.Background(), "example.com", finding); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no webhook delivery for non-vulnerable finding")
	}
}

func TestNotifyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier, err := New(Options{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := notifier.Notify(context.Background(), "example.com", vulnerableFinding()); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}

func TestNotifyNilReceiver(t *testing.T) {
	var notifier *Notifier
	if err := notifier.Notify(context.Background(), "example.com", vulnerableFinding()); err != nil {
		t.Fatalf("expected nil notifier to no-op, got %v", err)
	}
}
