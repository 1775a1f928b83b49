// Package influxdb records agent readings in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// Two measurements are written:
//
//	sensor_samples  endpoint,object,object_id,instance  value,min,max | x,y,z,...
//	output_state    endpoint,object,object_id,instance  on
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSensorSample("porch", "Temperature", 3303, 0,
//	    map[string]any{"value": 21.5})
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered to the
// SetOnError callback. Connection and health check errors are returned
// directly. Writes on a closed or unconnected client are dropped.
package influxdb
