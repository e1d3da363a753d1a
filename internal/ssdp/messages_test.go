package ssdp

import (
	"net"
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		LocalIP:  net.IPv4(192, 168, 1, 10),
		HTTPPort: 80,
		Group:    &net.UDPAddr{IP: net.IPv4(239, 255, 255, 250), Port: 1900},
		Serial:   "ABCDEF123456",
	}
}

func TestMatchTarget(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantOK  bool
	}{
		{
			name:    "basic",
			payload: "M-SEARCH * HTTP/1.1\r\nST: urn:schemas-upnp-org:device:basic:1\r\n\r\n",
			want:    TargetBasic,
			wantOK:  true,
		},
		{
			name:    "rootdevice",
			payload: "M-SEARCH * HTTP/1.1\r\nST: upnp:rootdevice\r\n\r\n",
			want:    TargetRoot,
			wantOK:  true,
		},
		{
			name:    "all_answered_as_rootdevice",
			payload: "M-SEARCH * HTTP/1.1\r\nST: ssdp:all\r\n\r\n",
			want:    TargetRoot,
			wantOK:  true,
		},
		{
			name:    "unknown_target",
			payload: "M-SEARCH * HTTP/1.1\r\nST: urn:dial-multiscreen-org:service:dial:1\r\n\r\n",
		},
		{
			name:    "not_a_search",
			payload: "NOTIFY * HTTP/1.1\r\nNT: upnp:rootdevice\r\n\r\n",
		},
		{
			name:    "empty",
			payload: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchTarget(tt.payload)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("MatchTarget() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNotifyMessage(t *testing.T) {
	msg := NotifyMessage(testConfig())

	for _, want := range []string{
		"NOTIFY * HTTP/1.1\r\n",
		"HOST: 239.255.255.250:1900\r\n",
		"LOCATION: http://192.168.1.10:80/description.xml\r\n",
		"SERVER: FreeRTOS/6.0.5, UPnP/1.0, IpBridge/0.1\r\n",
		"NTS: ssdp:alive\r\n",
		"USN: uuid:2f402f80-da50-11e1-9b23-ABCDEF123456::upnp:rootdevice\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("notify message missing %q:\n%s", want, msg)
		}
	}
	if !strings.HasSuffix(msg, "\r\n\r\n") {
		t.Error("notify message must end with a blank line")
	}
}

func TestResponseMessage(t *testing.T) {
	msg := ResponseMessage(testConfig(), TargetBasic)

	if !strings.HasPrefix(msg, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("unexpected status line:\n%s", msg)
	}
	for _, want := range []string{
		"EXT:\r\n",
		"ST: urn:schemas-upnp-org:device:basic:1\r\n",
		"LOCATION: http://192.168.1.10:80/description.xml\r\n",
		"USN: uuid:2f402f80-da50-11e1-9b23-ABCDEF123456::upnp:rootdevice\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("response missing %q:\n%s", want, msg)
		}
	}
}
