// Package ip implements the protocol handler for devices that talk to the
// core directly over IP.
//
// Downlinks are not pushed to the device: they are queued in the IP
// mailbox, and the device is woken up with a notification to fetch them.
// Uplinks are reported to the owning application over MQTT on
// lpwan/application/{applicationID}/uplink and recorded in InfluxDB.
package ip
