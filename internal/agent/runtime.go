package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nerrad567/gray-logic-agent/internal/command"
	"github.com/nerrad567/gray-logic-agent/internal/device"
	"github.com/nerrad567/gray-logic-agent/internal/engine"
	"github.com/nerrad567/gray-logic-agent/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-agent/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-agent/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-agent/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-agent/internal/objects"
	"github.com/nerrad567/gray-logic-agent/internal/observed"
	"github.com/nerrad567/gray-logic-agent/internal/persistence"
	"github.com/nerrad567/gray-logic-agent/internal/scheduler"
	"github.com/nerrad567/gray-logic-agent/internal/telemetry"
)

// Snapshot names in the persistence store.
const (
	SnapshotAccessControl = "access_control"
	SnapshotDigitalOutput = "digital_output"
)

// MQTTClient is the broker surface used by the telemetry bridge and the
// notification mirror. *mqtt.Client implements it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// SampleWriter receives polled readings. *influxdb.Client implements it.
type SampleWriter interface {
	WriteSensorSample(endpoint, object string, oid, iid uint16, fields map[string]any)
	WriteOutputState(endpoint string, oid, iid uint16, on bool)
}

// Options holds the runtime's dependencies. Only Config and Logger are
// required.
type Options struct {
	Config *config.Config
	Logger *logging.Logger

	// MQTT carries telemetry and mirrored notifications. Nil disables both.
	MQTT MQTTClient

	// Store saves and restores snapshots. Nil disables persistence.
	Store *persistence.Store

	// Samples receives sensor readings on every tick. Nil disables it.
	Samples SampleWriter

	// Input is the operator command stream; nil disables the command
	// channel. Output receives command results and defaults to io.Discard.
	Input  io.Reader
	Output io.Writer
}

// Runtime is the agent's root. Create it with New and drive it with Run.
type Runtime struct {
	cfg    *config.Config
	logger *logging.Logger

	engine *engine.Engine
	loop   *scheduler.Loop
	bridge *telemetry.Bridge

	led          *observed.Value[bool]
	thermometer  *observed.Value[float64]
	acceleration *observed.Value[observed.Vector3]

	output        *objects.DigitalOutput
	temperature   *objects.BasicSensor
	accelerometer *objects.ThreeAxisSensor

	store   *persistence.Store
	samples SampleWriter

	executor *command.Executor
	input    io.Reader
}

// New builds the runtime: observed values, objects, engine, telemetry bridge
// and loop. Nothing touches the network or the store until Run.
//
// Returns:
//   - *Runtime: ready to Run
//   - error: if a dependency is missing or an object cannot be installed
func New(opts Options) (*Runtime, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	cfg := opts.Config

	r := &Runtime{
		cfg:          cfg,
		logger:       opts.Logger,
		engine:       engine.New(),
		led:          observed.New(false),
		thermometer:  observed.New(0.0),
		acceleration: observed.New(observed.Vector3{}),
		store:        opts.Store,
		samples:      opts.Samples,
		input:        opts.Input,
	}
	r.engine.SetLogger(opts.Logger.Component("engine"))

	var forwarder objects.CommandForwarder
	if opts.MQTT != nil && cfg.Telemetry.Enabled {
		r.bridge = newBridge(cfg, opts.MQTT, telemetry.Sinks{
			Temperature:  r.thermometer,
			Acceleration: r.acceleration,
			Output:       r.led,
		})
		r.bridge.SetLogger(opts.Logger.Component("telemetry"))
		forwarder = r.bridge
	}

	if err := r.installObjects(forwarder); err != nil {
		return nil, err
	}

	if opts.MQTT != nil && cfg.Agent.MirrorNotifications {
		r.engine.SetSink(newMirror(opts.MQTT, cfg.Device.EndpointName, opts.Logger.Component("mirror")))
	}

	r.loop = scheduler.New(r.engine, scheduler.Options{
		Timeout: cfg.LoopTimeout(),
		Logger:  opts.Logger.Component("scheduler"),
	})

	var persister command.Persister
	if r.store != nil {
		persister = r
	}
	r.executor = command.NewExecutor(r.engine, persister, opts.Output)
	r.executor.SetLogger(opts.Logger.Component("command"))

	return r, nil
}

func newBridge(cfg *config.Config, client MQTTClient, sinks telemetry.Sinks) *telemetry.Bridge {
	tc := cfg.Telemetry
	topics := mqtt.Topics{}
	return telemetry.NewBridge(telemetry.Config{
		SubscribeTopic: tc.SubscribeTopic,
		UplinkTopic:    topics.TTNUplink(tc.ApplicationID, tc.DeviceID),
		DownlinkTopic:  topics.TTNDownlinkReplace(tc.ApplicationID, tc.DeviceID),
		FPort:          tc.FPort,
		Priority:       tc.Priority,
		QoS:            byte(tc.QoS),
		Retain:         tc.Retain,
	}, client, sinks)
}

// installObjects creates the three objects with their instance 0 and
// registers them with the engine.
func (r *Runtime) installObjects(forwarder objects.CommandForwarder) error {
	dev := r.cfg.Device

	r.output = objects.NewDigitalOutput(forwarder)
	if _, err := r.output.AddInstance(0, dev.Output.ApplicationType, r.led); err != nil {
		return fmt.Errorf("installing digital output: %w", err)
	}

	r.temperature = objects.NewTemperature()
	if _, err := r.temperature.AddInstance(0, objects.SensorConfig{
		Units:    dev.Temperature.Units,
		MinRange: dev.Temperature.MinRange,
		MaxRange: dev.Temperature.MaxRange,
		Source:   r.thermometer,
	}); err != nil {
		return fmt.Errorf("installing temperature sensor: %w", err)
	}

	r.accelerometer = objects.NewAccelerometer()
	if _, err := r.accelerometer.AddInstance(0, objects.ThreeAxisConfig{
		Units:    dev.Accelerometer.Units,
		MinRange: dev.Accelerometer.MinRange,
		MaxRange: dev.Accelerometer.MaxRange,
		Source:   r.acceleration,
	}); err != nil {
		return fmt.Errorf("installing accelerometer: %w", err)
	}

	for _, obj := range []interface {
		device.Object
		SetLogger(device.Logger)
	}{r.output, r.temperature, r.accelerometer} {
		obj.SetLogger(r.logger.Component("objects"))
		if err := r.engine.Register(obj); err != nil {
			return fmt.Errorf("registering object %d: %w", obj.OID(), err)
		}
	}
	return nil
}

// Engine returns the protocol engine, for the HTTP API.
func (r *Runtime) Engine() *engine.Engine { return r.engine }

// Loop returns the event loop.
func (r *Runtime) Loop() *scheduler.Loop { return r.loop }

// Run restores persisted state, applies configured access entries, starts
// telemetry and the command channel, and runs the loop until ctx is done,
// the loop is interrupted or operator input ends. Modified state is saved
// once more before Run returns.
//
// Returns:
//   - error: nil on a clean stop, or the loop's fatal error
func (r *Runtime) Run(ctx context.Context) error {
	r.restore(ctx)
	r.applyAccessEntries()

	if r.bridge != nil {
		if err := r.bridge.Start(); err != nil {
			return fmt.Errorf("starting telemetry: %w", err)
		}
	}

	r.loop.ScheduleAfter(r.tick, r.cfg.PollInterval())

	if r.input != nil {
		feeder := command.NewFeeder(r.input, r.loop, r.executor)
		feeder.SetLogger(r.logger.Component("command"))
		r.loop.Go(feeder.Run)
	}

	r.logger.Info("agent running",
		"endpoint", r.cfg.Device.EndpointName,
		"objects", len(r.engine.Objects()),
		"telemetry", r.bridge != nil,
		"persistence", r.store != nil,
	)

	err := r.loop.Run(ctx)

	r.persistModified(context.Background())
	r.engine.Close()
	r.logger.Info("agent stopped")
	return err
}

// tick is the periodic task: save, poll, sample, repeat.
func (r *Runtime) tick(ctx context.Context, l *scheduler.Loop) {
	r.persistModified(ctx)

	r.temperature.UpdateAll()
	r.accelerometer.UpdateAll()
	r.output.UpdateAll()

	r.writeSamples()

	l.ScheduleAfter(r.tick, r.cfg.PollInterval())
}

// writeSamples hands the current readings of every instance to the sample
// writer.
func (r *Runtime) writeSamples() {
	if r.samples == nil {
		return
	}
	endpoint := r.cfg.Device.EndpointName

	for _, iid := range r.temperature.Instances() {
		if v, units, ok := r.temperature.Reading(iid); ok {
			r.samples.WriteSensorSample(endpoint, sampleName(r.temperature), uint16(objects.OIDTemperature), uint16(iid),
				map[string]any{"value": v, "units": units})
		}
	}
	for _, iid := range r.accelerometer.Instances() {
		if v, units, ok := r.accelerometer.Reading(iid); ok {
			r.samples.WriteSensorSample(endpoint, sampleName(r.accelerometer), uint16(objects.OIDAccelerometer), uint16(iid),
				map[string]any{"x": v.X, "y": v.Y, "z": v.Z, "units": units})
		}
	}
	for _, iid := range r.output.Instances() {
		if on, ok := r.output.State(iid); ok {
			r.samples.WriteOutputState(endpoint, uint16(objects.OIDDigitalOutput), uint16(iid), on)
		}
	}
}

func sampleName(obj device.Object) string {
	return strings.ToLower(strings.ReplaceAll(obj.Name(), " ", "_"))
}

// persistables lists the snapshots in restore order.
func (r *Runtime) persistables() []struct {
	name string
	p    persistence.Persistable
} {
	return []struct {
		name string
		p    persistence.Persistable
	}{
		{SnapshotAccessControl, r.engine.AccessControl()},
		{SnapshotDigitalOutput, r.output},
	}
}

// restore loads every snapshot. A missing or unreadable snapshot leaves the
// defaults in place.
func (r *Runtime) restore(ctx context.Context) {
	if r.store == nil {
		return
	}
	for _, s := range r.persistables() {
		err := r.store.Load(ctx, s.name, s.p)
		switch {
		case errors.Is(err, persistence.ErrSnapshotNotFound):
			r.logger.Debug("no snapshot to restore", "snapshot", s.name)
			continue
		case err != nil:
			r.logger.Warn("restoring snapshot failed, using defaults", "snapshot", s.name, "error", err)
		default:
			r.logger.Info("snapshot restored", "snapshot", s.name)
		}
		metrics.RecordPersist(s.name, "restore", err)
	}
}

// applyAccessEntries installs the configured access entries on top of the
// restored ones.
func (r *Runtime) applyAccessEntries() {
	for _, e := range r.cfg.Access.Entries {
		mask, err := engine.ParseMask(e.Mask)
		if err == nil {
			err = r.engine.SetACL(device.ObjectID(e.Object), device.InstanceID(e.Instance), e.SSID, mask)
		}
		if err != nil {
			r.logger.Warn("ignoring access entry",
				"object", e.Object, "instance", e.Instance, "ssid", e.SSID, "mask", e.Mask,
				"error", err,
			)
		}
	}
}

// persistModified saves every modified snapshot. Failures are logged.
func (r *Runtime) persistModified(ctx context.Context) {
	if r.store == nil {
		return
	}
	for _, s := range r.persistables() {
		saved, err := r.store.SaveIfModified(ctx, s.name, s.p)
		if !saved {
			continue
		}
		metrics.RecordPersist(s.name, "save", err)
		if err != nil {
			r.logger.Warn("saving snapshot failed", "snapshot", s.name, "error", err)
		}
	}
}

// PersistAll saves every snapshot whether modified or not. It backs the
// operator's persist command.
func (r *Runtime) PersistAll(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	var errs []error
	for _, s := range r.persistables() {
		err := r.store.Save(ctx, s.name, s.p)
		metrics.RecordPersist(s.name, "save", err)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
