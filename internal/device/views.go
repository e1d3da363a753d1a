package device

import "time"

const (
	lightType     = "Extended color light"
	modelID       = "LCT007"
	swVersion     = "5.105.0.21169"
	lastInstallTS = "2006-01-02T15:04:05"
)

// StateJSON is the "state" object of a light document.
type StateJSON struct {
	On        bool       `json:"on"`
	Bri       uint8      `json:"bri"`
	Hue       uint16     `json:"hue"`
	Sat       uint8      `json:"sat"`
	Effect    string     `json:"effect"`
	XY        [2]float64 `json:"xy"`
	CT        uint16     `json:"ct"`
	Alert     string     `json:"alert"`
	ColorMode ColorMode  `json:"colormode"`
	Mode      string     `json:"mode"`
	Reachable bool       `json:"reachable"`
}

// SWUpdate is the "swupdate" object of a light document.
type SWUpdate struct {
	State       string `json:"state"`
	LastInstall string `json:"lastinstall"`
}

// Capabilities is the fixed capabilities block of a full light document.
type Capabilities struct {
	Certified bool `json:"certified"`
	Control   struct {
		MinDimLevel    int           `json:"mindimlevel"`
		MaxLumen       int           `json:"maxlumen"`
		ColorGamutType string        `json:"colorgamuttype"`
		ColorGamut     [3][2]float64 `json:"colorgamut"`
		CT             struct {
			Min int `json:"min"`
			Max int `json:"max"`
		} `json:"ct"`
	} `json:"control"`
	Streaming struct {
		Renderer bool `json:"renderer"`
		Proxy    bool `json:"proxy"`
	} `json:"streaming"`
}

// LightConfig is the fixed "config" block of a full light document.
type LightConfig struct {
	Archetype string `json:"archetype"`
	Function  string `json:"function"`
	Direction string `json:"direction"`
}

// FullJSON is the light document used in listings and the bridge document.
type FullJSON struct {
	State            StateJSON    `json:"state"`
	SWUpdate         SWUpdate     `json:"swupdate"`
	Type             string       `json:"type"`
	Name             string       `json:"name"`
	ModelID          string       `json:"modelid"`
	ManufacturerName string       `json:"manufacturername"`
	ProductName      string       `json:"productname"`
	Capabilities     Capabilities `json:"capabilities"`
	Config           LightConfig  `json:"config"`
	UniqueID         string       `json:"uniqueid"`
	SWVersion        string       `json:"swversion"`
}

// SingleJSON is the document returned for a single-light lookup.
type SingleJSON struct {
	State     StateJSON `json:"state"`
	SWUpdate  SWUpdate  `json:"swupdate"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	ModelID   string    `json:"modelid"`
	SWVersion string    `json:"swversion"`
}

// JSON returns the wire form of the state.
func (s State) JSON() StateJSON {
	return StateJSON{
		On:        s.On,
		Bri:       s.Bri,
		Hue:       s.Hue,
		Sat:       s.Sat,
		Effect:    "none",
		XY:        s.XY,
		CT:        s.CT,
		Alert:     "none",
		ColorMode: s.ColorMode,
		Mode:      "homeautomation",
		Reachable: true,
	}
}

func defaultCapabilities() Capabilities {
	var c Capabilities
	c.Certified = true
	c.Control.MinDimLevel = 5000
	c.Control.MaxLumen = 600
	c.Control.ColorGamutType = "A"
	c.Control.ColorGamut = [3][2]float64{{0.675, 0.322}, {0.409, 0.518}, {0.167, 0.04}}
	c.Control.CT.Min = MinCT
	c.Control.CT.Max = MaxCT
	c.Streaming.Renderer = true
	return c
}

// Full renders the full light document.
func (d *Device) Full(now time.Time) FullJSON {
	d.mu.Lock()
	state, uniqueID := d.state, d.uniqueID
	d.mu.Unlock()

	return FullJSON{
		State:            state.JSON(),
		SWUpdate:         SWUpdate{State: "noupdates", LastInstall: now.Format(lastInstallTS)},
		Type:             lightType,
		Name:             d.name,
		ModelID:          modelID,
		ManufacturerName: "Philips",
		ProductName:      "Hue color lamp",
		Capabilities:     defaultCapabilities(),
		Config:           LightConfig{Archetype: "sultanbulb", Function: "mixed", Direction: "omnidirectional"},
		UniqueID:         uniqueID,
		SWVersion:        swVersion,
	}
}

// Single renders the single-light document.
func (d *Device) Single(now time.Time) SingleJSON {
	state := d.State()
	return SingleJSON{
		State:     state.JSON(),
		SWUpdate:  SWUpdate{State: "noupdates", LastInstall: now.Format(lastInstallTS)},
		Type:      lightType,
		Name:      d.name,
		ModelID:   modelID,
		SWVersion: swVersion,
	}
}
