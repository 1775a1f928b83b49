// Package agent assembles the managed-device agent.
//
// A Runtime owns every long-lived piece of the agent: the protocol engine,
// the event loop, the installed objects and the observed values they poll,
// the telemetry bridge, and the optional snapshot store and sample writer.
// It replaces process-wide singletons with one explicit root that main
// builds, runs and tears down.
//
// Installed objects:
//   - 3201 Digital Output, instance 0 polling the LED state
//   - 3303 Temperature, instance 0 polling the thermometer
//   - 3313 Accelerometer, instance 0 polling the three axes
//
// A periodic task on the loop saves modified snapshots, polls every sensor
// and output, and writes samples. Engine notifications can be mirrored to
// MQTT so other tools can follow the agent's state.
//
// Usage:
//
//	rt, err := agent.New(agent.Options{Config: cfg, Logger: log, MQTT: client})
//	if err != nil {
//	    return err
//	}
//	err = rt.Run(ctx)
package agent
