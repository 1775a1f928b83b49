package agent

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-agent/internal/device"
	"github.com/nerrad567/gray-logic-agent/internal/infrastructure/mqtt"
)

// Notification is the JSON body published for a changed resource.
type Notification struct {
	Path      string       `json:"path"`
	Value     device.Value `json:"value"`
	Timestamp time.Time    `json:"timestamp"`
}

// InstanceSet is the JSON body published when an object's instances change.
type InstanceSet struct {
	Object    device.ObjectID     `json:"object"`
	Instances []device.InstanceID `json:"instances"`
	Timestamp time.Time           `json:"timestamp"`
}

// mirrorQoS is fire-and-forget. The mirror publishes from Engine.Flush on
// the loop goroutine and must not wait for a broker acknowledgement.
const mirrorQoS byte = 0

// mirror implements engine.NotifySink by publishing flushed observations to
// the agent's notify topics. Publish failures are logged and dropped.
type mirror struct {
	client   MQTTClient
	endpoint string
	logger   Logger
	now      func() time.Time
}

// Logger defines the logging interface used by the runtime's helpers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func newMirror(client MQTTClient, endpoint string, logger Logger) *mirror {
	return &mirror{
		client:   client,
		endpoint: endpoint,
		logger:   logger,
		now:      time.Now,
	}
}

// ResourceChanged publishes one resource value.
func (m *mirror) ResourceChanged(path device.Path, value device.Value) {
	topic := mqtt.Topics{}.AgentNotify(m.endpoint, uint16(path.Object), uint16(path.Instance), uint16(path.Resource))
	m.publish(topic, Notification{
		Path:      path.String(),
		Value:     value,
		Timestamp: m.now().UTC(),
	})
}

// InstancesChanged publishes an object's instance list.
func (m *mirror) InstancesChanged(oid device.ObjectID, instances []device.InstanceID) {
	if instances == nil {
		instances = []device.InstanceID{}
	}
	topic := mqtt.Topics{}.AgentInstances(m.endpoint, uint16(oid))
	m.publish(topic, InstanceSet{
		Object:    oid,
		Instances: instances,
		Timestamp: m.now().UTC(),
	})
}

func (m *mirror) publish(topic string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		m.logger.Warn("encoding notification failed", "topic", topic, "error", err)
		return
	}
	if err := m.client.Publish(topic, payload, mirrorQoS, false); err != nil {
		m.logger.Warn("publishing notification failed", "topic", topic, "error", err)
		return
	}
	m.logger.Debug("notification published", "topic", topic)
}
