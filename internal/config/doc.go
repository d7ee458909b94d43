// Package config loads and validates kgate.json, the client
// configuration file.
//
// Configuration covers the bot token, the receiver mode (websocket or
// webhook), frame handling (compression and the shared encrypt key),
// event filtering, and the timing knobs of the gateway session. Every
// field has a sensible default so a minimal file only needs a token:
//
//	{"token": "1/MTIzNDU=/abcdef=="}
package config
