package mqtt

import (
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/echohue/internal/device"
	"github.com/dokzlo13/echohue/internal/eventbus"
)

// StatePublisher publishes the state of a light, retained, after every
// Apply that changed at least one attribute.
type StatePublisher struct {
	pub    Publisher
	topics Topics
}

// NewStatePublisher creates a state publisher.
func NewStatePublisher(pub Publisher, topics Topics) *StatePublisher {
	return &StatePublisher{pub: pub, topics: topics}
}

// Subscribe registers the publisher for light_changed events.
func (s *StatePublisher) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeLightChanged, s.Handle)
}

// Handle is an eventbus.Handler.
func (s *StatePublisher) Handle(event eventbus.Event) {
	change, ok := event.Data.(device.Change)
	if !ok {
		return
	}
	if !anyAccepted(change.Results) {
		return
	}

	if err := s.Publish(change.Index, change.State); err != nil {
		log.Error().Err(err).Int("light", change.Index+1).Str("name", change.Name).Msg("Failed to publish light state")
	}
}

// Publish sends the state of the light at index.
func (s *StatePublisher) Publish(index int, state device.State) error {
	payload, err := json.Marshal(state.JSON())
	if err != nil {
		return err
	}
	return s.pub.Publish(s.topics.LightState(strconv.Itoa(index+1)), payload, true)
}

func anyAccepted(results []device.Result) bool {
	for _, r := range results {
		if r.OK() {
			return true
		}
	}
	return false
}
