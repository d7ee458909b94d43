package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kookworks/kgate/pkg/message"
)

// Classifier routes raw Event payloads into typed message and notice events
// and hands them to the dispatcher. One classifier serves one gateway
// session.
type Classifier struct {
	codec      *message.Codec
	dispatcher *Dispatcher
	ignore     IgnorePolicy
	logger     *slog.Logger

	mu     sync.RWMutex
	selfID string
}

// NewClassifier builds a classifier. codec decodes inbound wire content;
// ignore selects the author drop policy.
func NewClassifier(codec *message.Codec, dispatcher *Dispatcher, ignore IgnorePolicy, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		codec:      codec,
		dispatcher: dispatcher,
		ignore:     ignore,
		logger:     logger,
	}
}

// SetSelfID records the local identity once it is known (after the bot's own
// profile lookup). Required for the "self" ignore policy.
func (c *Classifier) SetSelfID(id string) {
	c.mu.Lock()
	c.selfID = id
	c.mu.Unlock()
}

// HandleEvent classifies one Event payload and dispatches the result. It is
// called from the session loop for every data-carrying envelope.
func (c *Classifier) HandleEvent(ctx context.Context, raw json.RawMessage) error {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("event: decode payload: %w", err)
	}
	p.Raw = raw

	switch p.ChannelType {
	case ChannelGroup:
		return c.handleMessage(ctx, &p, KindChannel)
	case ChannelPerson:
		return c.handleMessage(ctx, &p, KindPrivate)
	case ChannelBroadcast:
		return c.handleNotice(ctx, &p)
	default:
		return fmt.Errorf("event: unknown channel type %q", p.ChannelType)
	}
}

// handleMessage applies the ignore policy, decodes content, and dispatches a
// typed message event. System events inside a message channel (type 255) are
// reclassified as notices.
func (c *Classifier) handleMessage(ctx context.Context, p *Payload, kind MessageKind) error {
	if p.Type == systemEventType {
		return c.handleNotice(ctx, p)
	}

	if c.dropByPolicy(p) {
		c.logger.Debug("dropping message by ignore policy",
			"policy", string(c.ignore), "author_id", p.AuthorID)
		return nil
	}

	typ := message.Type(p.Type)
	if t, ok := p.Extra.MessageType(); ok {
		typ = t
	}
	segments, err := c.codec.Decode(p.Content, typ)
	if err != nil {
		return fmt.Errorf("event: decode content of %s: %w", p.MsgID, err)
	}

	ev := &MessageEvent{
		Kind:        kind,
		MessageID:   p.MsgID,
		AuthorID:    p.AuthorID,
		Author:      p.Extra.Author,
		GuildID:     p.Extra.GuildID,
		Timestamp:   p.MsgTimestamp,
		RawContent:  p.Content,
		Type:        typ,
		Segments:    segments,
		Mention:     p.Extra.Mention,
		MentionAll:  p.Extra.MentionAll,
		MentionHere: p.Extra.MentionHere,
	}

	name := NamePrivateMessage
	if kind == KindChannel {
		name = NameChannelMessage
		ev.ChannelID = p.TargetID
		ev.ChannelName = p.Extra.ChannelName
	}

	if c.dispatcher.EmitDedup(ctx, p.DedupID(), name, ev) {
		c.logger.Info("message received",
			"kind", string(kind), "author_id", p.AuthorID, "msg_id", p.MsgID)
	}
	return nil
}

// handleNotice dispatches a system notice under notice.<kind>.
func (c *Classifier) handleNotice(ctx context.Context, p *Payload) error {
	kind, ok := p.Extra.NoticeType()
	if !ok {
		return fmt.Errorf("event: notice without a type tag")
	}

	ev := &NoticeEvent{
		NoticeType: kind,
		TargetID:   p.TargetID,
		Timestamp:  p.MsgTimestamp,
		Body:       p.Extra.Body,
	}
	c.dispatcher.EmitDedup(ctx, p.DedupID(), NameNotice+"."+kind, ev)
	return nil
}

// dropByPolicy reports whether the configured ignore policy silences this
// message.
func (c *Classifier) dropByPolicy(p *Payload) bool {
	switch c.ignore {
	case IgnoreBot:
		return p.Extra.Author != nil && p.Extra.Author.Bot
	case IgnoreSelf:
		c.mu.RLock()
		self := c.selfID
		c.mu.RUnlock()
		return self != "" && p.AuthorID == self
	default:
		return false
	}
}
