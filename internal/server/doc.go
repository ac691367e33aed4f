// Package server implements the real-time gateway of the gig marketplace.
//
// Clients hold a WebSocket open to the gateway, announce the user they act
// for and exchange JSON events. The gateway keeps two pieces of shared
// state: the Registry of open connections and the Directory mapping user
// ids to the connection that announced them last. Direct messages are
// persisted and relayed to the recipient's connection; new gigs are
// persisted and broadcast to every open connection.
//
// The identity announced on a connection is not verified. Any client can
// announce any user id and send messages with any sender id; callers that
// need stronger guarantees must authenticate at the HTTP boundary.
package server
