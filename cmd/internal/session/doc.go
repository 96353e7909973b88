// Package session owns the authenticated identity of the process.
//
// It defines the Session record, the durable key/value Store that carries it
// across restarts, and the Machine that reconciles the three ways an identity
// can be established (rehydration from the store, a federated callback, a
// credential exchange) into exactly one active session.
//
// Invariant: a session holds a token if and only if it holds exactly one
// non-none role. Everything that constructs or decodes a Session funnels
// through that check.
package session
