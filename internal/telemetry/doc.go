// Package telemetry configures OpenTelemetry tracing for the server.
package telemetry
