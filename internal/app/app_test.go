package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dokzlo13/echohue/internal/config"
	"github.com/dokzlo13/echohue/internal/ledger"
)

const testLua = `
local bridge = require("bridge")
bridge.handle("Lamp", {
  bri = function(light, bri)
    if bri > 200 then return false end
  end,
})
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	script := filepath.Join(dir, "devices.lua")
	if err := os.WriteFile(script, []byte(testLua), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	cfg, err := config.Parse([]byte(`
bridge:
  ip: 127.0.0.1
  serial: abcdef123456
  announce_interval: 1h
ledger:
  enabled: true
  path: ` + filepath.Join(dir, "ledger.sqlite") + `
status:
  enabled: true
  host: 127.0.0.1
lua:
  script: ` + script + `
devices:
  - name: Desk
  - name: Lamp
    backend: lua
shutdown_timeout: 2s
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// Ephemeral ports.
	cfg.Bridge.HTTPPort = 0
	cfg.Bridge.MulticastPort = 0
	cfg.Status.Port = 0
	return cfg
}

func startApp(t *testing.T) *App {
	t.Helper()

	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		a.Stop()
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { a.Stop() })

	waitFor(t, "hub running", a.Services().Hub.Running)
	return a
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func exchange(t *testing.T, addr net.Addr, raw string) string {
	t.Helper()
	conn, err := net.Dial("tcp4", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(3 * time.Second))
	if _, err := conn.Write([]byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(resp)
}

func putState(light, body string) string {
	return "PUT /api/user/lights/" + light + "/state HTTP/1.1\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
}

func TestApp_EndToEnd(t *testing.T) {
	a := startApp(t)
	s := a.Services()

	resp := exchange(t, s.Hub.HTTPAddr(), putState("2", `{"on":true,"bri":250}`))
	if !strings.Contains(resp, `{"success":{"/lights/2/state/on":true}}`) {
		t.Errorf("response missing on success: %s", resp)
	}
	if !strings.Contains(resp, `"type":901`) {
		t.Errorf("response missing declined bri: %s", resp)
	}

	lamp, _ := s.Hub.Registry().Get(1)
	if st := lamp.State(); !st.On || st.Bri != 1 {
		t.Errorf("Lamp state = %+v, want on with bri unchanged", st)
	}

	l := ledger.New(s.DB.DB)
	var entries []*ledger.Entry
	waitFor(t, "ledger entry", func() bool {
		entries, _ = l.GetByLight(2, 10)
		return len(entries) == 1
	})
	if entries[0].EventType != ledger.EventLightCommand {
		t.Errorf("EventType = %q, want %q", entries[0].EventType, ledger.EventLightCommand)
	}
	if entries[0].Payload["name"] != "Lamp" {
		t.Errorf("payload name = %v, want Lamp", entries[0].Payload["name"])
	}
}

func TestApp_StatusServer(t *testing.T) {
	a := startApp(t)
	base := "http://" + a.Services().Status.Addr().String()

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/health", http.StatusOK, `"healthy"`},
		{"/ready", http.StatusOK, `"ready"`},
		{"/lights", http.StatusOK, `"name":"Desk"`},
		{"/metrics", http.StatusOK, "echohue_"},
	}

	// Generate at least one request so the counter vectors are exported.
	exchange(t, a.Services().Hub.HTTPAddr(), "GET /api/user/lights HTTP/1.1\r\n\r\n")

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(base + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", body, tt.wantBody)
			}
		})
	}
}

func TestStatusService_NotReady(t *testing.T) {
	s := NewStatusService("127.0.0.1", 0, time.Second, func() bool { return false }, nil, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	if err != nil {
		t.Fatalf("GET /ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestBuildDevices_UnavailableBackend(t *testing.T) {
	_, err := buildDevices([]config.DeviceConfig{{Name: "Lamp", Backend: config.BackendMQTT}}, backends{})
	if err == nil || !strings.Contains(err.Error(), "mqtt") {
		t.Errorf("buildDevices = %v, want mqtt unavailable error", err)
	}
}
