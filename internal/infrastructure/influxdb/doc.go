// Package influxdb records device traffic in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library: Connect pings the
// server and sets up a batched, non-blocking write API. Uplinks are written
// to the device_uplink measurement, tagged by application, device and
// devEUI; downlink outcomes go to device_downlink.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteUplink(influxdb.Uplink{DeviceID: id, DevEUI: eui, Payload: raw})
//
// # Error Handling
//
// Writes never return errors. Batch failures are delivered to the callback
// set with SetOnError. Connection and health check errors are returned
// directly.
package influxdb
