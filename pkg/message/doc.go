// Package message is the bidirectional codec between an abstract segment
// representation and the platform's wire content.
//
// An outbound message is a []Segment: text, at-mentions, media references,
// markdown, a reply quote, or a card. [Codec.Encode] flattens the list into
// a (content, type code, quote) triple in segment order: text and mentions
// accumulate into rich-text content, the first media segment replaces the
// message with its uploaded URL, and a card replaces the message with a
// single-element JSON card array after structural validation. [Codec.Decode]
// reverses the mapping for inbound content, splitting rich text on the
// reserved (met)id(met) mention markers.
//
// Cards are modelled as closed tagged unions ([Module], [Element]) rather
// than maps, so an unsupported module kind is a compile error instead of a
// runtime surprise. [ValidateCard] checks the whole module tree in one pass
// before a card leaves the process; violations are *[ValidationError] values
// naming the offending module index and field.
//
// Media uploads go through the injected [Uploader] capability; the codec has
// no transport of its own.
package message
