// Package pollregistry implements the poll registry inside the governance
// context.
//
// The registry is a state-transition function over a host key-value store:
// polls are created with a fixed option set, each identity votes at most once
// per poll, tallies only grow, and only the creator can close a poll. Every
// operation runs inside a single host transaction and appends its domain
// event to an outbox that workers relay to the event bus and the live tally
// feed.
package pollregistry
