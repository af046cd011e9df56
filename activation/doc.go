// Package activation publishes the message that tells downstream consumers
// a flattened predictions table is ready.
//
// The message is transport-neutral JSON. Publishers implement it for Google
// Pub/Sub (the default) and Kafka, and are created by name from a
// provider.Registry so deployments choose the transport in configuration.
package activation
