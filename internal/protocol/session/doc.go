// Package session owns request/acknowledgment reliability over datagrams.
//
// Ownership boundary:
// - pending request table and exactly-once resolution
// - inbound datagram classification and ACK emission
// - UDP endpoint receive loop
//
// Every dispatched request is inserted once and removed once. Whichever of
// ACK, timeout, close or transport failure removes it resolves it; the
// others find nothing and do nothing.
package session
