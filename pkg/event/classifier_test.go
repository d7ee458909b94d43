package event

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kookworks/kgate/pkg/message"
)

func newTestClassifier(t *testing.T, ignore IgnorePolicy) (*Classifier, *Dispatcher) {
	t.Helper()
	d := NewDispatcher(0, nil)
	c := NewClassifier(message.NewCodec(nil), d, ignore, nil)
	return c, d
}

func channelPayload(authorID, msgID, content string, bot bool) json.RawMessage {
	p := map[string]any{
		"channel_type":  "GROUP",
		"type":          9,
		"target_id":     "chan-1",
		"author_id":     authorID,
		"content":       content,
		"msg_id":        msgID,
		"msg_timestamp": 1724800000000,
		"extra": map[string]any{
			"type":         9,
			"guild_id":     "guild-1",
			"channel_name": "general",
			"author":       map[string]any{"id": authorID, "bot": bot},
		},
	}
	data, _ := json.Marshal(p)
	return data
}

func TestClassifyChannelMessage(t *testing.T) {
	c, d := newTestClassifier(t, IgnoreNone)

	var got *MessageEvent
	d.On(NameChannelMessage, func(_ context.Context, payload any) {
		got = payload.(*MessageEvent)
	})

	if err := c.HandleEvent(context.Background(), channelPayload("u-1", "m-1", "hi (met)7(met)", false)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if got == nil {
		t.Fatal("no event dispatched")
	}
	if got.Kind != KindChannel || got.ChannelID != "chan-1" || got.ChannelName != "general" {
		t.Errorf("event = %+v", got)
	}
	if len(got.Segments) != 2 {
		t.Fatalf("len(Segments) = %d, want 2 (markdown + at)", len(got.Segments))
	}
	if at, ok := got.Segments[1].(message.AtSegment); !ok || at.UserID != "7" {
		t.Errorf("Segments[1] = %#v, want at(7)", got.Segments[1])
	}
}

func TestClassifyPrivateMessage(t *testing.T) {
	c, d := newTestClassifier(t, IgnoreNone)

	var gotName string
	var broad *MessageEvent
	d.On(NameMessage, func(_ context.Context, payload any) {
		broad = payload.(*MessageEvent)
	})
	d.On(NamePrivateMessage, func(_ context.Context, _ any) {
		gotName = NamePrivateMessage
	})

	payload := json.RawMessage(`{
		"channel_type": "PERSON",
		"type": 1,
		"target_id": "u-self",
		"author_id": "u-2",
		"content": "hello",
		"msg_id": "m-2",
		"msg_timestamp": 1724800000001,
		"extra": {"type": 1, "author": {"id": "u-2"}}
	}`)
	if err := c.HandleEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if gotName != NamePrivateMessage {
		t.Error("message.private listener did not fire")
	}
	if broad == nil || broad.Kind != KindPrivate {
		t.Errorf("message listener got %+v", broad)
	}
}

func TestIgnorePolicyBot(t *testing.T) {
	c, d := newTestClassifier(t, IgnoreBot)

	fired := false
	d.On(NameMessage, func(_ context.Context, _ any) { fired = true })

	if err := c.HandleEvent(context.Background(), channelPayload("u-bot", "m-3", "beep", true)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if fired {
		t.Error("bot-authored message dispatched under bot ignore policy")
	}

	if err := c.HandleEvent(context.Background(), channelPayload("u-1", "m-4", "human", false)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if !fired {
		t.Error("human-authored message not dispatched")
	}
}

func TestIgnorePolicySelf(t *testing.T) {
	c, d := newTestClassifier(t, IgnoreSelf)
	c.SetSelfID("u-me")

	fired := false
	d.On(NameMessage, func(_ context.Context, _ any) { fired = true })

	if err := c.HandleEvent(context.Background(), channelPayload("u-me", "m-5", "echo", false)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if fired {
		t.Error("self-authored message dispatched under self ignore policy")
	}
}

func TestSystemEventInMessageChannel(t *testing.T) {
	c, d := newTestClassifier(t, IgnoreNone)

	var got *NoticeEvent
	d.On(NameNotice, func(_ context.Context, payload any) {
		got = payload.(*NoticeEvent)
	})

	payload := json.RawMessage(`{
		"channel_type": "GROUP",
		"type": 255,
		"target_id": "chan-1",
		"msg_id": "ev-1",
		"msg_timestamp": 1724800000002,
		"extra": {"type": "added_reaction", "body": {"emoji": ":+1:"}}
	}`)
	if err := c.HandleEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if got == nil {
		t.Fatal("no notice dispatched")
	}
	if got.NoticeType != "added_reaction" {
		t.Errorf("NoticeType = %q", got.NoticeType)
	}
}

func TestBroadcastNotice(t *testing.T) {
	c, d := newTestClassifier(t, IgnoreNone)

	var gotKind string
	d.On("notice.guild_updated", func(_ context.Context, payload any) {
		gotKind = payload.(*NoticeEvent).NoticeType
	})

	payload := json.RawMessage(`{
		"channel_type": "BROADCAST",
		"type": 255,
		"target_id": "guild-1",
		"msg_id": "ev-2",
		"extra": {"type": "guild_updated", "body": {}}
	}`)
	if err := c.HandleEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if gotKind != "guild_updated" {
		t.Errorf("NoticeType = %q, want guild_updated", gotKind)
	}
}

func TestUnknownChannelType(t *testing.T) {
	c, _ := newTestClassifier(t, IgnoreNone)
	err := c.HandleEvent(context.Background(), json.RawMessage(`{"channel_type":"VOID"}`))
	if err == nil {
		t.Fatal("expected error for unknown channel type")
	}
}

func TestNoticeRedeliveryDroppedByEventID(t *testing.T) {
	c, d := newTestClassifier(t, IgnoreNone)

	count := 0
	d.On(NameNotice, func(_ context.Context, _ any) { count++ })

	// Broadcast notices may carry event_id instead of msg_id; the identity
	// falls back to it so replays are still dropped.
	payload := json.RawMessage(`{
		"channel_type": "BROADCAST",
		"type": 255,
		"target_id": "guild-1",
		"event_id": "ev-1",
		"extra": {"type": "guild_updated", "body": {}}
	}`)
	for i := 0; i < 2; i++ {
		if err := c.HandleEvent(context.Background(), payload); err != nil {
			t.Fatalf("HandleEvent() error = %v", err)
		}
	}
	if count != 1 {
		t.Errorf("notice dispatched %d times, want 1", count)
	}
}

func TestRedeliveryDroppedByIdentity(t *testing.T) {
	c, d := newTestClassifier(t, IgnoreNone)

	count := 0
	d.On(NameMessage, func(_ context.Context, _ any) { count++ })

	payload := channelPayload("u-1", "m-same", "once", false)
	for i := 0; i < 2; i++ {
		if err := c.HandleEvent(context.Background(), payload); err != nil {
			t.Fatalf("HandleEvent() error = %v", err)
		}
	}
	if count != 1 {
		t.Errorf("count = %d, want exactly one dispatch for redelivered identity", count)
	}
}
