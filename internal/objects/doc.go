// Package objects provides the concrete object types the agent exposes.
//
//	┌──────────────────────┐   Get()   ┌───────────────────────┐
//	│ observed.Value[bool] │◄──────────│ DigitalOutput  /3201  │──► CommandForwarder
//	└──────────────────────┘           └───────────────────────┘    (downlink)
//	┌──────────────────────┐   Get()   ┌───────────────────────┐
//	│ observed.Value[f64]  │◄──────────│ BasicSensor    /3303  │
//	└──────────────────────┘           └───────────────────────┘
//	┌──────────────────────┐   Get()   ┌───────────────────────┐
//	│ observed.Value[Vec3] │◄──────────│ ThreeAxisSensor /3313 │
//	└──────────────────────┘           └───────────────────────┘
//
// Each type embeds a device.Model, so it satisfies device.Object and can be
// registered with the engine. Instances hold a non-owning reference to an
// observed source and copy its reading into resource state when polled,
// either by Update from the periodic task or, for the output state, by a
// read. Only resources whose value actually changed raise a notification.
//
// All methods must be called from the event loop goroutine.
package objects
