// Package transport submits built requests to a server and returns the
// decoded response envelope. Two transports exist: HTTP, the standard JMAP
// binding, and NATS request/reply for deployments that front a JMAP
// service with a message bus.
//
// Cancellation and timeouts come from the caller's context.
package transport
