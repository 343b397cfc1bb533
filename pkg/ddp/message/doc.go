// Package message defines the typed DDP messages exchanged between a client
// and a server.
//
// Every message is an immutable value. Optional fields are modeled with
// Optional so that an absent field and a present-but-empty (or null) field
// stay distinguishable, which matters on the wire: an omitted key and a key
// set to null are different protocol events.
//
// Collections and sequences handed to a constructor are copied, and every
// accessor returns a fresh copy, so callers can never mutate a message after
// it has been built.
package message
