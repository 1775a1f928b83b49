package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the agent.
const (
	// MeasurementSensorSamples holds periodic readings of sensor objects.
	MeasurementSensorSamples = "sensor_samples"

	// MeasurementOutputState holds digital output state changes.
	MeasurementOutputState = "output_state"
)

// SensorSample builds a sensor_samples point for one object instance.
//
// Tags identify the instance (endpoint, object name, object id, instance
// id); fields carry the readings, e.g. {"value": 21.5, "min": 19, "max": 23}.
func SensorSample(endpoint, object string, oid, iid uint16, fields map[string]any, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSensorSamples,
		instanceTags(endpoint, object, oid, iid),
		fields,
		ts,
	)
}

// OutputState builds an output_state point for one digital output instance.
func OutputState(endpoint string, oid, iid uint16, on bool, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementOutputState,
		instanceTags(endpoint, "Digital Output", oid, iid),
		map[string]any{"on": on},
		ts,
	)
}

func instanceTags(endpoint, object string, oid, iid uint16) map[string]string {
	return map[string]string{
		"endpoint":  endpoint,
		"object":    object,
		"object_id": strconv.Itoa(int(oid)),
		"instance":  strconv.Itoa(int(iid)),
	}
}

// WriteSensorSample records the readings of one sensor instance.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteSensorSample("porch", "Temperature", 3303, 0,
//	    map[string]any{"value": 21.5})
func (c *Client) WriteSensorSample(endpoint, object string, oid, iid uint16, fields map[string]any) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(SensorSample(endpoint, object, oid, iid, fields, time.Now()))
}

// WriteOutputState records a digital output state.
func (c *Client) WriteOutputState(endpoint string, oid, iid uint16, on bool) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(OutputState(endpoint, oid, iid, on, time.Now()))
}
