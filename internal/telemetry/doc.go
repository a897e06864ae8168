// Package telemetry samples host CPU load and package temperatures into the
// shared telemetry record. Device-reported pump and liquid values come from
// the pipeline's stats refresh instead.
package telemetry
