// Package session holds the authoritative set of embed sessions.
//
// The Store is populated once per descriptor set and afterwards only sees
// single-credential replacements from the refresh scheduler. Renderers read
// ordered snapshots and subscribe to change events to know when to re-read.
package session
