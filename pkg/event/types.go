package event

import (
	"encoding/json"
	"strconv"

	"github.com/kookworks/kgate/pkg/message"
)

// ChannelType is the channel-kind discriminant embedded in event payloads.
type ChannelType string

const (
	ChannelGroup     ChannelType = "GROUP"     // Guild channel message
	ChannelPerson    ChannelType = "PERSON"    // Direct message
	ChannelBroadcast ChannelType = "BROADCAST" // System notice
)

// IgnorePolicy selects which message authors are silently dropped.
type IgnorePolicy string

const (
	IgnoreNone IgnorePolicy = ""     // Dispatch everything
	IgnoreBot  IgnorePolicy = "bot"  // Drop messages authored by bots
	IgnoreSelf IgnorePolicy = "self" // Drop messages authored by the local identity
)

// systemEventType is the payload type value marking a system notice inside a
// message channel.
const systemEventType = 255

// Hierarchical event names.
const (
	NameMessage        = "message"
	NameChannelMessage = "message.channel"
	NamePrivateMessage = "message.private"
	NameNotice         = "notice"
)

// Payload is the raw Event envelope body as delivered by the gateway.
type Payload struct {
	ChannelType  ChannelType     `json:"channel_type"`
	Type         int             `json:"type"`
	TargetID     string          `json:"target_id"`
	AuthorID     string          `json:"author_id"`
	Content      string          `json:"content"`
	MsgID        string          `json:"msg_id"`
	EventID      string          `json:"event_id,omitempty"`
	MsgTimestamp int64           `json:"msg_timestamp"`
	Nonce        string          `json:"nonce,omitempty"`
	Extra        Extra           `json:"extra"`
	Raw          json.RawMessage `json:"-"`
}

// Extra carries per-event metadata. Its type tag is a number for messages
// and a string naming the notice kind for system events, hence the raw slot
// with typed accessors.
type Extra struct {
	Type         json.RawMessage `json:"type"`
	GuildID      string          `json:"guild_id,omitempty"`
	ChannelName  string          `json:"channel_name,omitempty"`
	Mention      []string        `json:"mention,omitempty"`
	MentionAll   bool            `json:"mention_all,omitempty"`
	MentionRoles []string        `json:"mention_roles,omitempty"`
	MentionHere  bool            `json:"mention_here,omitempty"`
	Author       *Author         `json:"author,omitempty"`
	Body         json.RawMessage `json:"body,omitempty"`
}

// DedupID is the delivery identity used to drop gateway replays. Messages
// carry msg_id; some notices carry event_id instead.
func (p *Payload) DedupID() string {
	if p.MsgID != "" {
		return p.MsgID
	}
	return p.EventID
}

// MessageType returns the numeric message type in extra, when present.
func (e *Extra) MessageType() (message.Type, bool) {
	n, err := strconv.Atoi(string(e.Type))
	if err != nil {
		return 0, false
	}
	return message.Type(n), true
}

// NoticeType returns the string notice kind in extra, when present.
func (e *Extra) NoticeType() (string, bool) {
	var s string
	if err := json.Unmarshal(e.Type, &s); err != nil {
		return "", false
	}
	return s, true
}

// Author describes the author of a message event.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Online   bool   `json:"online,omitempty"`
	Bot      bool   `json:"bot,omitempty"`
}

// MessageKind distinguishes the two message event shapes.
type MessageKind string

const (
	KindChannel MessageKind = "channel"
	KindPrivate MessageKind = "private"
)

// MessageEvent is a typed, decoded message delivery. For channel messages
// ChannelID is the originating channel; for direct messages it is empty and
// AuthorID identifies the conversation.
type MessageEvent struct {
	Kind        MessageKind
	MessageID   string
	AuthorID    string
	Author      *Author
	GuildID     string
	ChannelID   string
	ChannelName string
	Timestamp   int64
	RawContent  string
	Type        message.Type
	Segments    []message.Segment
	Mention     []string
	MentionAll  bool
	MentionHere bool
}

// Quote builds a quote reference for replying to this message.
func (m *MessageEvent) Quote() *message.Quotable {
	return &message.Quotable{MessageID: m.MessageID}
}

// NoticeEvent is a system notice: a reaction, a membership change, a channel
// update, and so on. Body is the notice-specific payload, left raw for the
// listener to interpret.
type NoticeEvent struct {
	NoticeType string
	TargetID   string
	Timestamp  int64
	Body       json.RawMessage
}
