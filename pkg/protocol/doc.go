// Package protocol implements the gateway wire format: JSON envelopes tagged
// with an opcode, the signalling payloads carried by each opcode, and the
// per-frame transforms (AES-256-CBC decryption, zlib inflation) applied
// before an inbound frame can be decoded.
//
// Every exchange over the gateway socket is one [Envelope]:
//
//	{"s": <opcode>, "d": <payload>, "sn": <sequence>}
//
// The payload shape depends on the opcode. [DecodeEnvelope] parses the outer
// envelope and leaves the payload as raw JSON for the caller to interpret;
// the typed payloads ([HelloPayload], [ReconnectPayload]) have their own
// decode helpers. Outbound traffic is limited to the client Ping, built by
// [EncodePing].
//
// Frame transforms are deliberately separated from envelope parsing: a
// session negotiates compression and encryption once, then applies
// [FrameReader.Unwrap] to every inbound frame before handing the plaintext
// JSON to DecodeEnvelope. A frame that fails to unwrap or parse is an error
// scoped to that single frame, never to the connection.
package protocol
