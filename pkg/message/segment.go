package message

// Segment is one typed unit of a message: literal text, an at-mention, a
// media reference, markdown, a reply back-reference, or a card. Order within
// a segment list is meaningful and preserved end to end by the codec.
//
// The set of implementations is closed; Encode and Decode switch over it
// exhaustively.
type Segment interface {
	segmentType() string
}

// TextSegment is literal text appended to the message content.
type TextSegment struct {
	Text string
}

func (TextSegment) segmentType() string { return "text" }

// AtSegment mentions a user by id. The special ids "here" and "all" address
// online members and everyone respectively.
type AtSegment struct {
	UserID string
}

func (AtSegment) segmentType() string { return "at" }

// ImageSegment references an image. URL may be a remote http(s) URL, a local
// file:// path, or a data: URI; local references are uploaded during encode.
type ImageSegment struct {
	URL   string
	Title string
}

func (ImageSegment) segmentType() string { return "image" }

// VideoSegment references a video.
type VideoSegment struct {
	URL   string
	Title string
}

func (VideoSegment) segmentType() string { return "video" }

// AudioSegment references an audio track.
type AudioSegment struct {
	URL   string
	Title string
	Cover string
}

func (AudioSegment) segmentType() string { return "audio" }

// MarkdownSegment is kmarkdown-formatted text.
type MarkdownSegment struct {
	Text string
}

func (MarkdownSegment) segmentType() string { return "markdown" }

// ReplySegment quotes an earlier message by id. It affects only the quote
// reference of the encoded message, never its content or type.
type ReplySegment struct {
	MessageID string
}

func (ReplySegment) segmentType() string { return "reply" }

// FileSegment references a file attachment. Files appear in decoded inbound
// messages but cannot be sent through the codec.
type FileSegment struct {
	URL      string
	Name     string
	FileType string
	Size     int64
}

func (FileSegment) segmentType() string { return "file" }

// CardSegment carries a full card. A card is exclusive: when present, the
// entire message becomes the card and later segments are not merged.
type CardSegment struct {
	Card Card
}

func (CardSegment) segmentType() string { return "card" }

// Quotable is a back-reference to an earlier message, used as the quote of
// an outbound send.
type Quotable struct {
	MessageID string
}

// Segment constructors, mirroring the platform's segment builder surface.

// Text builds a literal text segment.
func Text(text string) TextSegment { return TextSegment{Text: text} }

// At builds a mention segment.
func At(userID string) AtSegment { return AtSegment{UserID: userID} }

// Image builds an image segment.
func Image(url string) ImageSegment { return ImageSegment{URL: url} }

// Video builds a video segment.
func Video(url string) VideoSegment { return VideoSegment{URL: url} }

// Audio builds an audio segment.
func Audio(url string) AudioSegment { return AudioSegment{URL: url} }

// Markdown builds a kmarkdown segment.
func Markdown(text string) MarkdownSegment { return MarkdownSegment{Text: text} }

// Reply builds a reply segment quoting messageID.
func Reply(messageID string) ReplySegment { return ReplySegment{MessageID: messageID} }

// File builds a file segment.
func File(url, name string) FileSegment { return FileSegment{URL: url, Name: name} }

// CardOf wraps modules into a card segment.
func CardOf(theme Theme, modules ...Module) CardSegment {
	return CardSegment{Card: Card{Theme: theme, Modules: modules}}
}
