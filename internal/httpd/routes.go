package httpd

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/echohue/internal/device"
)

// Route names, used as the metrics label.
const (
	RouteTest        = "test"
	RouteDescription = "description"
	RouteIcon        = "icon"
	RouteLights      = "lights"
	RouteState       = "state"
	RoutePut         = "put"
	RouteLight       = "light"
	RouteConfig      = "config"
	RouteBridge      = "bridge"
	RouteRegister    = "register"
	RouteNotFound    = "not_found"
)

const defaultDeveloper = "newdeveloper"

var (
	requestLine = regexp.MustCompile(`^([A-Z]+) (\S+) HTTP/\d`)
	lightsPath  = regexp.MustCompile(`^/api/.*lights/?$`)
	statePath   = regexp.MustCompile(`^/api/.*lights/(\d+)/state/?$`)
	lightPath   = regexp.MustCompile(`^/api/.*lights/(\d+)/?$`)
	developer   = regexp.MustCompile(`^/api/([^/]+)`)
)

var notFound = []byte("HTTP/1.1 404 Not Found")

// request is the little that routing needs to know about the raw text.
type request struct {
	method string
	path   string
	header string
	body   string
}

// parseRequest splits raw request text. Text that does not start with a
// request line is treated as body in its entirety.
func parseRequest(data []byte) request {
	text := string(data)
	m := requestLine.FindStringSubmatch(text)
	if m == nil {
		return request{body: text}
	}

	req := request{method: m[1], path: m[2], header: text}
	if i := strings.Index(req.path, "?"); i >= 0 {
		req.path = req.path[:i]
	}
	if i := strings.Index(text, "\r\n\r\n"); i >= 0 {
		req.header = text[:i]
		req.body = text[i+4:]
	}
	return req
}

// payload returns the trailing Content-Length bytes of the body.
func (r request) payload() string {
	n := announcedLength([]byte(r.header))
	if n > 0 && n <= len(r.body) {
		return r.body[len(r.body)-n:]
	}
	return r.body
}

func (s *Server) route(ctx context.Context, req request) []byte {
	name, resp := s.dispatch(ctx, req)
	s.metrics.Request(name)
	log.Debug().
		Str("route", name).
		Str("method", req.method).
		Str("path", req.path).
		Msg("Handled request")
	return resp
}

func (s *Server) dispatch(ctx context.Context, req request) (string, []byte) {
	now := s.now()

	switch {
	case strings.Contains(req.body, "test"):
		return RouteTest, []byte("ok")

	case req.path == "/description.xml":
		return RouteDescription, s.docs.description

	case req.path == "/hue_logo_0.png":
		return RouteIcon, s.docs.iconSmall

	case req.path == "/hue_logo_3.png":
		return RouteIcon, s.docs.iconBig
	}

	isAPI := strings.HasPrefix(req.path, "/api")

	switch {
	case req.method == "GET" && lightsPath.MatchString(req.path):
		body, err := lightsObject(s.registry.All(), now)
		if err != nil {
			log.Error().Err(err).Msg("Failed to render lights")
			body = []byte("{}")
		}
		return RouteLights, envelope(body, now)

	case req.method == "PUT" && isAPI:
		if m := statePath.FindStringSubmatch(req.path); m != nil {
			return RouteState, envelope(s.putState(ctx, m[1], req.payload()), now)
		}
		return RoutePut, envelope(nil, now)

	case req.method == "GET" && lightPath.MatchString(req.path):
		light := lightPath.FindStringSubmatch(req.path)[1]
		d, ok := s.lookup(light)
		if !ok {
			return RouteLight, envelope(notAvailable(light), now)
		}
		body, err := json.Marshal(d.Single(now))
		if err != nil {
			log.Error().Err(err).Str("light", light).Msg("Failed to render light")
			body = []byte("{}")
		}
		return RouteLight, envelope(body, now)

	case req.method == "GET" && isAPI && strings.Contains(req.path, "/config"):
		return RouteConfig, envelope(s.docs.apiConfig, now)

	case req.method == "GET" && isAPI:
		token := defaultDeveloper
		if m := developer.FindStringSubmatch(req.path); m != nil {
			token = m[1]
		}
		log.Info().Str("developer", token).Msg("Bridge document requested")

		body, err := s.docs.bridge(s.registry.All(), now)
		if err != nil {
			log.Error().Err(err).Msg("Failed to render bridge document")
			body = []byte("{}")
		}
		return RouteBridge, envelope(body, now)

	case req.method == "POST" && isAPI:
		return RouteRegister, envelope(s.docs.newDeveloper, now)
	}

	return RouteNotFound, notFound
}

func (s *Server) lookup(light string) (*device.Device, bool) {
	n, err := strconv.Atoi(light)
	if err != nil {
		return nil, false
	}
	return s.registry.Get(n - 1)
}

func (s *Server) putState(ctx context.Context, light, payload string) []byte {
	d, ok := s.lookup(light)
	if !ok {
		log.Warn().Str("light", light).Msg("State update for unknown light")
		return notAvailable(light)
	}

	attrs, err := device.ParseAttributes([]byte(payload))
	if err != nil {
		log.Warn().Err(err).Str("light", light).Msg("Invalid state body")
		return invalidJSON(light)
	}

	results := d.Apply(ctx, attrs)
	for _, r := range results {
		s.metrics.LightUpdate(r.Key, r.OK())
	}

	body, err := json.Marshal(results)
	if err != nil {
		log.Error().Err(err).Str("light", light).Msg("Failed to encode results")
		return errorBody(device.ErrorTypeInternal, "/lights/"+light+"/state", "Internal error")
	}
	return body
}
