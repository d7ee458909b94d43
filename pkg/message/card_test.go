package message

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestCardJSONRoundTrip(t *testing.T) {
	card := Card{
		Theme: ThemeWarning,
		Size:  "lg",
		Modules: []Module{
			NewHeader("Release 2.4"),
			NewSection(NewKMarkdown("**notes**"), "right", NewImageElement("https://x/a.png")),
			NewImageGroup(NewImageElement("https://x/b.png"), NewImageElement("https://x/c.png")),
			NewActionGroup(NewButton("Deploy", "deploy", ThemePrimary)),
			NewContext(NewText("by ops"), NewImageElement("https://x/d.png")),
			NewDivider(),
			NewAudioModule("https://x/a.mp3", "notes", "https://x/cover.png"),
			NewCountdown(1893456000000, "second", 1893455000000),
			NewInvite("join-me"),
		},
	}

	data, err := json.Marshal(card)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Card
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded, card) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", decoded, card)
	}
}

func TestCardMarshalIncludesTypeTag(t *testing.T) {
	data, err := json.Marshal(Card{Modules: []Module{NewDivider()}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["type"] != "card" {
		t.Errorf(`type = %v, want "card"`, raw["type"])
	}
}

func TestCardUnmarshalUnknownModule(t *testing.T) {
	var card Card
	err := json.Unmarshal([]byte(`{"type":"card","modules":[{"type":"hologram"}]}`), &card)
	if err == nil {
		t.Fatal("expected error for unknown module type")
	}
}

func TestParagraphRoundTrip(t *testing.T) {
	card := Card{Modules: []Module{
		NewSection(NewParagraph(2, NewText("left"), NewKMarkdown("right")), "right", nil),
	}}
	data, err := json.Marshal(card)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Card
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	sec := decoded.Modules[0].(SectionModule)
	para, ok := sec.Text.(ParagraphElement)
	if !ok {
		t.Fatalf("section text = %T, want ParagraphElement", sec.Text)
	}
	if para.Cols != 2 || len(para.Fields) != 2 {
		t.Errorf("paragraph = %+v", para)
	}
}
