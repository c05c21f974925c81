// Package influxdb provides InfluxDB connectivity for posebridge telemetry.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched point writes, and health monitoring. Telemetry adapts
// the client to the bridge's telemetry hook.
//
// # Measurements
//
//   - slot_record: tags site, slot; fields x, y, z, pitch, roll, yaw
//   - publish: tags site, result; field slots
//   - connection: tags site, state; field value
//
// slot_record is sampled every influxdb.sample_every publishes, since a
// point per slot per poll would dominate the bucket.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	tel := influxdb.NewTelemetry(client, cfg.Site.ID)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The write API blocks while a batch is in flight, so WritePoint only puts
// the point on a bounded queue drained by the client's own goroutine.
//
// # Error Handling
//
// WritePoint never blocks. Points that find the queue full are counted by
// Dropped. Batch errors are delivered via the
// SetOnError callback and counted by WriteErrors. Connection and health check
// errors are returned directly.
package influxdb
