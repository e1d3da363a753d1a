package httpd

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"text/template"
	"time"

	"github.com/dokzlo13/echohue/internal/device"
)

var (
	//go:embed assets/hue_logo_0.png
	iconSmall []byte
	//go:embed assets/hue_logo_3.png
	iconBig []byte
)

// Identity is the bridge identity rendered into the static documents.
type Identity struct {
	IP      net.IP
	Port    int
	Serial  string
	MAC     string
	Gateway string
}

const iconHeaders = "HTTP/1.1 200 OK\r\nContent-type: image/png\r\n\r\n"

var descriptionTmpl = template.Must(template.New("description").Parse(`<?xml version="1.0" encoding="UTF-8" ?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
<specVersion>
<major>1</major>
<minor>0</minor>
</specVersion>
<URLBase>http://{{.IP}}:{{.Port}}/</URLBase>
<device>
<deviceType>urn:schemas-upnp-org:device:Basic:1</deviceType>
<friendlyName>Philips hue ({{.IP}})</friendlyName>
<manufacturer>Royal Philips Electronics</manufacturer>
<manufacturerURL>http://www.philips.com</manufacturerURL>
<modelDescription>Philips hue Personal Wireless Lighting</modelDescription>
<modelName>Philips hue bridge 2012</modelName>
<modelNumber>929000226503</modelNumber>
<modelURL>http://www.meethue.com</modelURL>
<serialNumber>{{.Serial}}</serialNumber>
<UDN>uuid:2f402f80-da50-11e1-9b23-{{.Serial}}</UDN>
<serviceList>
<service>
<serviceType>(null)</serviceType>
<serviceId>(null)</serviceId>
<controlURL>(null)</controlURL>
<eventSubURL>(null)</eventSubURL>
<SCPDURL>(null)</SCPDURL>
</service>
</serviceList>
<presentationURL>index.html</presentationURL>
<iconList>
<icon>
<mimetype>image/png</mimetype>
<height>48</height>
<width>48</width>
<depth>24</depth>
<url>hue_logo_0.png</url>
</icon>
<icon>
<mimetype>image/png</mimetype>
<height>120</height>
<width>120</width>
<depth>24</depth>
<url>hue_logo_3.png</url>
</icon>
</iconList>
</device>
</root>
`))

// documents holds everything that is rendered once at startup.
type documents struct {
	identity     Identity
	description  []byte
	apiConfig    []byte
	newDeveloper []byte
	iconSmall    []byte
	iconBig      []byte
}

func renderDocuments(id Identity) (*documents, error) {
	var xml bytes.Buffer
	if err := descriptionTmpl.Execute(&xml, id); err != nil {
		return nil, fmt.Errorf("render description: %w", err)
	}
	description := fmt.Appendf(nil,
		"HTTP/1.1 200 OK\r\nContent-Type: text/xml\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		xml.Len(), xml.Bytes())

	apiConfig, err := json.Marshal([]apiConfigJSON{{
		SWVersion:  "01008227",
		APIVersion: "1.2.1",
		Name:       "Smartbridge 1",
		MAC:        id.MAC,
	}})
	if err != nil {
		return nil, fmt.Errorf("render api config: %w", err)
	}

	return &documents{
		identity:     id,
		description:  description,
		apiConfig:    apiConfig,
		newDeveloper: []byte(`[{"success":{"username":"c6260f982b43a226b5542b967f612ce"}}]`),
		iconSmall:    append([]byte(iconHeaders), iconSmall...),
		iconBig:      append([]byte(iconHeaders), iconBig...),
	}, nil
}

type apiConfigJSON struct {
	SWVersion  string `json:"swversion"`
	APIVersion string `json:"apiversion"`
	Name       string `json:"name"`
	MAC        string `json:"mac"`
}

// envelope wraps a JSON body in the fixed response headers.
func envelope(body []byte, now time.Time) []byte {
	return fmt.Appendf(nil,
		"HTTP/1.1 200 OK\r\nContent-Length: %d\r\nContent-Type: application/json\r\nDate: %s\r\nConnection: close\r\n\r\n%s",
		len(body), now.UTC().Format(http.TimeFormat), body)
}

// lightsObject renders {"1":{...},"2":{...}} keeping registry order.
func lightsObject(devices []*device.Device, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range devices {
		if i > 0 {
			buf.WriteByte(',')
		}
		doc, err := json.Marshal(d.Full(now))
		if err != nil {
			return nil, err
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(i + 1)))
		buf.WriteByte(':')
		buf.Write(doc)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type hueError struct {
	Error device.Error `json:"error"`
}

func errorBody(errType int, address, description string) []byte {
	body, _ := json.Marshal([]hueError{{Error: device.Error{
		Type:        errType,
		Address:     address,
		Description: description,
	}}})
	return body
}

// Hue error types used by the request server.
const (
	ErrorTypeInvalidJSON  = 2
	ErrorTypeNotAvailable = 3
)

func notAvailable(light string) []byte {
	address := "/lights/" + light
	return errorBody(ErrorTypeNotAvailable, address, fmt.Sprintf("resource, %s, not available", address))
}

func invalidJSON(light string) []byte {
	return errorBody(ErrorTypeInvalidJSON, "/lights/"+light+"/state", "body contains invalid json")
}

// The bridge document is fixed apart from the lights and the network identity.

type bridgeDocument struct {
	Lights    json.RawMessage     `json:"lights"`
	Schedules map[string]schedule `json:"schedules"`
	Config    bridgeConfig        `json:"config"`
	Groups    map[string]group    `json:"groups"`
	Scenes    struct{}            `json:"scenes"`
}

type schedule struct {
	Time        string          `json:"time"`
	Description string          `json:"description"`
	Name        string          `json:"name"`
	Command     scheduleCommand `json:"command"`
}

type scheduleCommand struct {
	Body struct {
		On             bool     `json:"on"`
		XY             *float64 `json:"xy"`
		Bri            *int     `json:"bri"`
		TransitionTime *int     `json:"transitiontime"`
	} `json:"body"`
	Address string `json:"address"`
	Method  string `json:"method"`
}

type whitelistEntry struct {
	Name         string `json:"name"`
	LastUseDate  string `json:"last use date"`
	CreationDate string `json:"create date"`
}

type bridgeConfig struct {
	PortalServices bool   `json:"portalservices"`
	Gateway        string `json:"gateway"`
	MAC            string `json:"mac"`
	SWVersion      string `json:"swversion"`
	LinkButton     bool   `json:"linkbutton"`
	IPAddress      string `json:"ipaddress"`
	ProxyPort      int    `json:"proxyport"`
	SWUpdate       struct {
		Text        string `json:"text"`
		Notify      bool   `json:"notify"`
		UpdateState int    `json:"updatestate"`
		URL         string `json:"url"`
	} `json:"swupdate"`
	Netmask      string                    `json:"netmask"`
	Name         string                    `json:"name"`
	DHCP         bool                      `json:"dhcp"`
	ProxyAddress string                    `json:"proxyaddress"`
	Whitelist    map[string]whitelistEntry `json:"whitelist"`
	UTC          string                    `json:"UTC"`
}

type groupAction struct {
	On        bool       `json:"on"`
	Bri       int        `json:"bri"`
	Hue       int        `json:"hue"`
	Sat       int        `json:"sat"`
	XY        [2]float64 `json:"xy"`
	CT        int        `json:"ct"`
	Alert     *string    `json:"alert"`
	Effect    string     `json:"effect"`
	ColorMode string     `json:"colormode"`
	Reachable *bool      `json:"reachable"`
}

type group struct {
	Name   string      `json:"name"`
	Action groupAction `json:"action"`
	Lights []string    `json:"lights"`
}

func (d *documents) bridge(devices []*device.Device, now time.Time) ([]byte, error) {
	lights, err := lightsObject(devices, now)
	if err != nil {
		return nil, err
	}

	sched := schedule{Time: "2012-10-29T12:00:00", Name: "schedule"}
	sched.Command.Body.On = true
	sched.Command.Address = "/api/newdeveloper/groups/0/action"
	sched.Command.Method = "PUT"

	cfg := bridgeConfig{
		Gateway:   d.identity.Gateway,
		MAC:       d.identity.MAC,
		SWVersion: "01005215",
		IPAddress: net.JoinHostPort(d.identity.IP.String(), strconv.Itoa(d.identity.Port)),
		Netmask:   "255.255.255.0",
		Name:      "Philips hue",
		DHCP:      true,
		Whitelist: map[string]whitelistEntry{
			"newdeveloper": {
				Name:         "test user",
				LastUseDate:  "2015-02-04T21:35:18",
				CreationDate: "2012-10-29T12:00:00",
			},
		},
		UTC: "2012-10-29T12:05:00",
	}

	return json.Marshal(bridgeDocument{
		Lights:    lights,
		Schedules: map[string]schedule{"1": sched},
		Config:    cfg,
		Groups: map[string]group{
			"1": {
				Name: "Group 1",
				Action: groupAction{
					On:        true,
					Bri:       254,
					Hue:       33536,
					Sat:       144,
					XY:        [2]float64{0.346, 0.3568},
					CT:        201,
					Effect:    "none",
					ColorMode: "xy",
				},
				Lights: []string{"1", "2"},
			},
		},
	})
}
