// Package combined provides interaction benchmarks that run the countdown
// packages together: the host frame loop reading state while the dispatcher
// ticks, the start/stop rendezvous, and the event feed under both producers.
//
// These benchmarks are more representative of real-world performance
// than isolated micro-benchmarks, as they capture the cumulative cost
// and any interactions between components.
package combined
