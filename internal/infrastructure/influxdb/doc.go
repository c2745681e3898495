// Package influxdb records receiver state and traffic counters in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every notification
// a receiver emits becomes a receiver_status point tagged with the
// receiver and key; status dumps add receiver_counters points.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReceiverStatus("living", "volume", "40", true)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; asynchronous write
// errors are delivered to the SetOnError callback.
package influxdb
