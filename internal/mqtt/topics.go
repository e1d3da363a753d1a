package mqtt

import "strings"

// Topics builds topic names under a common prefix.
type Topics struct {
	Prefix string
}

func (t Topics) join(parts ...string) string {
	prefix := strings.TrimSuffix(t.Prefix, "/")
	if prefix == "" {
		return strings.Join(parts, "/")
	}
	return prefix + "/" + strings.Join(parts, "/")
}

// Status is the retained online/offline topic.
func (t Topics) Status() string { return t.join("status") }

// LightSet is where commands for a light are published.
func (t Topics) LightSet(segment string) string { return t.join("lights", segment, "set") }

// LightState is where the retained state of a light is published.
func (t Topics) LightState(segment string) string { return t.join("lights", segment, "state") }
