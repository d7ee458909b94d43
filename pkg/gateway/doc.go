// Package gateway maintains the realtime connection to the chat
// platform.
//
// A Session owns one logical connection: it pulls a gateway URL,
// dials it over a Transport, performs the hello handshake, heartbeats,
// and reconnects with exponential backoff when the link drops. When a
// prior session can be resumed the dial carries sn and session_id so
// the server replays missed events.
//
// All session state lives in a single goroutine. Timers and socket
// callbacks deliver into that goroutine through channels, so there is
// no locking around the connection lifecycle; cancelling the Run
// context is the one way to stop everything.
//
// The package also provides the webhook receiver, an HTTP alternative
// to the websocket session, and a factory that selects between the
// two by configured mode.
package gateway
