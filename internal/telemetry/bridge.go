// Package telemetry bridges the agent's observed values to a The Things
// Network v3 MQTT integration.
//
// Inbound, uplink messages are decoded and their Cayenne LPP fields stored in
// observed values: temperature* fields in the thermometer, accelerometer*
// fields in the accelerometer (all three axes at once) and digital_out*
// fields in the output state. Fields with other prefixes are ignored.
//
// Outbound, PublishOutput queues a downlink that switches the remote output.
// The new state only reaches the output's observed value when the device
// reports it back in a later uplink.
package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-agent/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-agent/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-agent/internal/observed"
)

// Defaults for downlink frames.
const (
	DefaultFPort    = 2
	DefaultPriority = "NORMAL"
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config contains the bridge topics and downlink settings.
type Config struct {
	// SubscribeTopic is the filter subscribed to; it may be broader than
	// UplinkTopic (for example "#").
	SubscribeTopic string

	// UplinkTopic is the exact topic whose messages carry device readings.
	UplinkTopic string

	// DownlinkTopic receives downlink envelopes.
	DownlinkTopic string

	// FPort and Priority are copied into every downlink.
	FPort    int
	Priority string

	// QoS and Retain apply to downlink publishes. Downlinks are fire and
	// forget and retained so late subscribers see the last command.
	QoS    byte
	Retain bool
}

// Sinks are the observed values updated from uplinks. Nil sinks are skipped.
type Sinks struct {
	Temperature  *observed.Value[float64]
	Acceleration *observed.Value[observed.Vector3]
	Output       *observed.Value[bool]
}

// reading is a fully decoded uplink, applied only after every field decoded.
type reading struct {
	temperature  *float64
	acceleration *observed.Vector3
	output       *bool
}

// Bridge connects MQTT telemetry to observed values.
type Bridge struct {
	cfg    Config
	client MQTTClient
	sinks  Sinks
	logger Logger
}

// NewBridge creates a bridge. Zero FPort and empty Priority take the
// defaults.
func NewBridge(cfg Config, client MQTTClient, sinks Sinks) *Bridge {
	if cfg.FPort == 0 {
		cfg.FPort = DefaultFPort
	}
	if cfg.Priority == "" {
		cfg.Priority = DefaultPriority
	}
	if cfg.SubscribeTopic == "" {
		cfg.SubscribeTopic = cfg.UplinkTopic
	}
	return &Bridge{
		cfg:    cfg,
		client: client,
		sinks:  sinks,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// Start subscribes to the configured topic filter.
func (b *Bridge) Start() error {
	if b.cfg.SubscribeTopic == "" {
		return fmt.Errorf("%w: no subscribe topic", ErrNotConfigured)
	}
	if err := b.client.Subscribe(b.cfg.SubscribeTopic, 0, b.HandleMessage); err != nil {
		return fmt.Errorf("%w: subscribing to %s: %w", ErrTransportFailure, b.cfg.SubscribeTopic, err)
	}
	b.logger.Info("telemetry bridge subscribed",
		"filter", b.cfg.SubscribeTopic,
		"uplink", b.cfg.UplinkTopic,
	)
	return nil
}

// HandleMessage processes one inbound MQTT message. It runs on the MQTT
// client's goroutine and touches observed values only.
//
// Messages on other topics are logged and ignored. A malformed uplink
// returns an error wrapping ErrMalformedTelemetry and changes nothing; the
// MQTT client logs it.
func (b *Bridge) HandleMessage(topic string, payload []byte) error {
	if topic != b.cfg.UplinkTopic {
		b.logger.Debug("ignoring message on unrelated topic", "topic", topic, "bytes", len(payload))
		metrics.RecordTelemetry("ignored")
		return nil
	}

	up, r, err := decodeUplink(payload)
	if err != nil {
		metrics.RecordTelemetry("malformed")
		return fmt.Errorf("%w: %s: %w", ErrMalformedTelemetry, topic, err)
	}

	b.apply(r)
	metrics.RecordTelemetry("applied")
	b.logger.Debug("uplink applied",
		"device", up.EndDeviceIDs.DeviceID,
		"received_at", up.ReceivedAt,
		"fields", len(up.UplinkMessage.DecodedPayload),
	)
	return nil
}

func (b *Bridge) apply(r reading) {
	if r.temperature != nil && b.sinks.Temperature != nil {
		b.sinks.Temperature.Set(*r.temperature)
	}
	if r.acceleration != nil && b.sinks.Acceleration != nil {
		b.sinks.Acceleration.Set(*r.acceleration)
	}
	if r.output != nil && b.sinks.Output != nil {
		b.sinks.Output.Set(*r.output)
	}
}

// decodeUplink parses an uplink and all of its known fields. Fields are
// visited in name order, so when several share a prefix the last name wins.
func decodeUplink(payload []byte) (Uplink, reading, error) {
	var up Uplink
	if err := json.Unmarshal(payload, &up); err != nil {
		return up, reading{}, fmt.Errorf("decoding uplink: %w", err)
	}
	if up.UplinkMessage == nil || up.UplinkMessage.DecodedPayload == nil {
		return up, reading{}, fmt.Errorf("uplink has no decoded_payload")
	}

	var r reading
	fields := up.UplinkMessage.DecodedPayload
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		raw := fields[name]
		switch {
		case strings.HasPrefix(name, prefixTemperature):
			v, err := decodeNumber(raw)
			if err != nil {
				return up, reading{}, fmt.Errorf("field %s: %w", name, err)
			}
			r.temperature = &v

		case strings.HasPrefix(name, prefixAccelerometer):
			var a Acceleration
			if err := json.Unmarshal(raw, &a); err != nil {
				return up, reading{}, fmt.Errorf("field %s: %w", name, err)
			}
			if a.X == nil || a.Y == nil || a.Z == nil {
				return up, reading{}, fmt.Errorf("field %s: missing axis", name)
			}
			r.acceleration = &observed.Vector3{X: *a.X, Y: *a.Y, Z: *a.Z}

		case strings.HasPrefix(name, prefixDigitalOutput):
			v, err := decodeNumber(raw)
			if err != nil {
				return up, reading{}, fmt.Errorf("field %s: %w", name, err)
			}
			on := v == 1
			r.output = &on
		}
	}
	return up, r, nil
}

func decodeNumber(raw json.RawMessage) (float64, error) {
	var v float64
	if err := json.Unmarshal(bytes.TrimSpace(raw), &v); err != nil {
		return 0, fmt.Errorf("not a number: %w", err)
	}
	return v, nil
}

// EncodeOutputCommand builds the downlink envelope that switches the output.
func (b *Bridge) EncodeOutputCommand(on bool) ([]byte, error) {
	idx := 0
	if on {
		idx = 1
	}
	return json.Marshal(DownlinkEnvelope{Downlinks: []Downlink{{
		FPort:      b.cfg.FPort,
		FrmPayload: outputPayloads[idx],
		Priority:   b.cfg.Priority,
	}}})
}

// PublishOutput queues a downlink switching the remote output. It does not
// wait for the device to act on it.
//
// Returns:
//   - error: wrapping ErrTransportFailure if the publish fails
func (b *Bridge) PublishOutput(on bool) error {
	if b.cfg.DownlinkTopic == "" {
		return fmt.Errorf("%w: no downlink topic", ErrNotConfigured)
	}

	payload, err := b.EncodeOutputCommand(on)
	if err != nil {
		return fmt.Errorf("encoding downlink: %w", err)
	}

	err = b.client.Publish(b.cfg.DownlinkTopic, payload, b.cfg.QoS, b.cfg.Retain)
	metrics.RecordDownlink(err)
	if err != nil {
		return fmt.Errorf("%w: publishing to %s: %w", ErrTransportFailure, b.cfg.DownlinkTopic, err)
	}

	b.logger.Info("output downlink published", "topic", b.cfg.DownlinkTopic, "on", on)
	return nil
}
