// Package event turns decoded gateway Event payloads into typed application
// events and fans them out to listeners.
//
// The [Classifier] routes each payload by its channel-type discriminant into
// a group-channel message, a direct message, or a system notice, applies the
// configured ignore policy (drop bot authors, drop the local identity), and
// decodes the wire content into message segments.
//
// The [Dispatcher] is a hierarchical emitter: emitting "message.channel"
// also fires every listener registered on "message", most specific first,
// and each listener sees a given emission exactly once. The gateway may
// redeliver events after a resume, so the dispatcher deduplicates by event
// identity with a fixed-capacity recency ring before anything is fired.
package event
