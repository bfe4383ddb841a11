// Package clocks implements the monotonic and wall clock interfaces.
//
// Clocks are resources: a guest asks for an instance handle and passes it
// to Now, Resolution and Subscribe. Monotonic time is nanoseconds since the
// host was created. Wall time is seconds and nanoseconds since the Unix
// epoch.
package clocks
