package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	logx "taskping/pkg/logx"
)

func TestGatewaySendText(t *testing.T) {
	t.Parallel()
	var got sendTextRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/message/sendText/main" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("apikey") != "k1" {
			t.Errorf("apikey = %q", r.Header.Get("apikey"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	g := New(Config{BaseURL: ts.URL, APIKey: "k1"}, logx.Nop())
	res, err := g.SendText(context.Background(), "+525512345678", "hello")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if !res.OK {
		t.Fatalf("result = %+v", res)
	}
	// The gateway wants bare digits.
	if got.Number != "525512345678" {
		t.Fatalf("number sent = %q", got.Number)
	}
	if got.Text != "hello" {
		t.Fatalf("text sent = %q", got.Text)
	}
}

func TestGatewayRejectionIsNotAnError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown number", http.StatusBadRequest)
	}))
	defer ts.Close()

	g := New(Config{BaseURL: ts.URL, APIKey: "k1"}, logx.Nop())
	res, err := g.SendText(context.Background(), "+525512345678", "hello")
	if err != nil {
		t.Fatalf("provider rejection should not be a transport error: %v", err)
	}
	if res.OK || res.Detail == "" {
		t.Fatalf("result = %+v, want OK=false with detail", res)
	}
}

func TestGatewayTransportError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	g := New(Config{BaseURL: ts.URL, APIKey: "k1"}, logx.Nop())
	if _, err := g.SendText(context.Background(), "+525512345678", "hello"); err == nil {
		t.Fatal("expected a transport error for a closed server")
	}
}

func TestSimulatorRecordsAndFails(t *testing.T) {
	t.Parallel()
	sim := NewSimulator()

	res, err := sim.SendText(context.Background(), "+525512345678", "first")
	if err != nil || !res.OK {
		t.Fatalf("SendText = %+v, %v", res, err)
	}

	sim.FailFor("+5551234567", "not registered")
	res, err = sim.SendText(context.Background(), "+5551234567", "second")
	if err != nil {
		t.Fatalf("simulated failure should not be an error: %v", err)
	}
	if res.OK || res.Detail != "not registered" {
		t.Fatalf("result = %+v", res)
	}

	sent := sim.Sent()
	if len(sent) != 1 || sent[0].Recipient != "+525512345678" || sent[0].Text != "first" {
		t.Fatalf("sent = %+v", sent)
	}
}
