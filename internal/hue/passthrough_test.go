package hue

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dokzlo13/echohue/internal/device"
)

const lightJSON = `{"state":{"on":false,"bri":1,"hue":0,"sat":0,"xy":[0.3,0.3],"ct":199,"reachable":true,"colormode":"ct"},"type":"Extended color light","name":"Real","modelid":"LCT001"}`

type fakeBridge struct {
	mu   sync.Mutex
	puts []string
	gets int
}

func (f *fakeBridge) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && (r.URL.Path == "/api/user/lights/1" || r.URL.Path == "/api/user/lights/2"):
			f.mu.Lock()
			f.gets++
			f.mu.Unlock()
			io.WriteString(w, lightJSON)
		case r.Method == http.MethodPut && r.URL.Path == "/api/user/lights/1/state":
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.puts = append(f.puts, string(body))
			f.mu.Unlock()
			io.WriteString(w, `[{"success":{"/lights/1/state/on":true}}]`)
		case r.Method == http.MethodPut && r.URL.Path == "/api/user/lights/2/state":
			io.WriteString(w, `[{"error":{"type":201,"address":"/lights/2/state/bri","description":"parameter, bri, is not modifiable. Device is set to off."}}]`)
		default:
			t.Logf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func TestBackend_Forwards(t *testing.T) {
	fake := &fakeBridge{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	p := NewPassthrough(srv.URL, "user", 1000)
	b := p.Backend(1)
	ctx := context.Background()

	if err := b.TryOn(ctx); err != nil {
		t.Fatalf("TryOn: %v", err)
	}
	if err := b.TryBrightness(ctx, 100); err != nil {
		t.Fatalf("TryBrightness: %v", err)
	}
	if err := b.TryXY(ctx, [2]float64{0.5, 0.25}); err != nil {
		t.Fatalf("TryXY: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.gets != 1 {
		t.Errorf("light fetched %d times, want 1", fake.gets)
	}
	if len(fake.puts) != 3 {
		t.Fatalf("got %d state updates, want 3: %v", len(fake.puts), fake.puts)
	}
	if !strings.Contains(fake.puts[0], `"on":true`) {
		t.Errorf("on update = %s", fake.puts[0])
	}
	if !strings.Contains(fake.puts[1], `"bri":100`) {
		t.Errorf("bri update = %s", fake.puts[1])
	}
	if !strings.Contains(fake.puts[2], `"xy":[0.5,0.25]`) {
		t.Errorf("xy update = %s", fake.puts[2])
	}
}

func TestBackend_BridgeError(t *testing.T) {
	fake := &fakeBridge{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	p := NewPassthrough(srv.URL, "user", 1000)
	dev := device.NewWithBackend("Real", false, 1, p.Backend(2))
	device.NewRegistry(zerolog.Nop()).Register(dev)

	results := dev.Apply(context.Background(), device.Attributes{device.Attr("bri", 50)})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].OK() {
		t.Error("bri update succeeded, want failure from bridge error")
	}
	if st := dev.State(); st.Bri != 1 {
		t.Errorf("Bri = %d, want unchanged 1", st.Bri)
	}
}

func TestBackend_CancelledContext(t *testing.T) {
	p := NewPassthrough("127.0.0.1:1", "user", 1)
	b := p.Backend(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.TryOn(ctx); err == nil {
		t.Error("TryOn with cancelled context succeeded")
	}
}
