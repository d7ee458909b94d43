package message

import (
	"encoding/json"
	"fmt"
)

// Theme is a card or button color theme.
type Theme string

const (
	ThemePrimary   Theme = "primary"
	ThemeWarning   Theme = "warning"
	ThemeDanger    Theme = "danger"
	ThemeInfo      Theme = "info"
	ThemeSuccess   Theme = "success"
	ThemeSecondary Theme = "secondary"
	ThemeNone      Theme = "none"
	ThemeInvisible Theme = "invisible" // Card-only theme with a restricted module set.
)

// Element type tags as they appear on the wire.
const (
	ElementText      = "plain-text"
	ElementKMarkdown = "kmarkdown"
	ElementImage     = "image"
	ElementButton    = "button"
	ElementParagraph = "paragraph"
)

// Module type tags as they appear on the wire.
const (
	ModuleHeader      = "header"
	ModuleSection     = "section"
	ModuleImageGroup  = "image-group"
	ModuleContainer   = "container"
	ModuleActionGroup = "action-group"
	ModuleContext     = "context"
	ModuleDivider     = "divider"
	ModuleFile        = "file"
	ModuleAudio       = "audio"
	ModuleVideo       = "video"
	ModuleCountdown   = "countdown"
	ModuleInvite      = "invite"
)

// Element is one leaf of a card module: text, markdown, an image, a button,
// or a paragraph of text fields. The concrete types carry a wire Type tag
// that the constructors fill in; validation rejects a mismatched tag before
// anything is sent.
type Element interface {
	elementType() string
}

// TextElement is a plain-text leaf.
type TextElement struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Emoji   bool   `json:"emoji,omitempty"`
}

func (TextElement) elementType() string { return ElementText }

// KMarkdownElement is a markdown-formatted leaf.
type KMarkdownElement struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (KMarkdownElement) elementType() string { return ElementKMarkdown }

// ImageElement references an image by URL or local source.
type ImageElement struct {
	Type   string `json:"type"`
	Src    string `json:"src"`
	Alt    string `json:"alt,omitempty"`
	Size   string `json:"size,omitempty"`
	Circle bool   `json:"circle,omitempty"`
}

func (ImageElement) elementType() string { return ElementImage }

// ButtonElement is an interactive button.
type ButtonElement struct {
	Type  string `json:"type"`
	Theme Theme  `json:"theme,omitempty"`
	Value string `json:"value"`
	Click string `json:"click,omitempty"` // "link" or "return-val"
	Text  string `json:"text"`
}

func (ButtonElement) elementType() string { return ElementButton }

// ParagraphElement lays out text fields in 1-3 columns.
type ParagraphElement struct {
	Type   string    `json:"type"`
	Cols   int       `json:"cols"`
	Fields []Element `json:"fields"`
}

func (ParagraphElement) elementType() string { return ElementParagraph }

// Element constructors.

// NewText builds a plain-text element.
func NewText(content string) TextElement {
	return TextElement{Type: ElementText, Content: content, Emoji: true}
}

// NewKMarkdown builds a markdown element.
func NewKMarkdown(content string) KMarkdownElement {
	return KMarkdownElement{Type: ElementKMarkdown, Content: content}
}

// NewImageElement builds an image element.
func NewImageElement(src string) ImageElement {
	return ImageElement{Type: ElementImage, Src: src}
}

// NewButton builds a button element.
func NewButton(text, value string, theme Theme) ButtonElement {
	return ButtonElement{Type: ElementButton, Text: text, Value: value, Theme: theme}
}

// NewParagraph builds a paragraph element.
func NewParagraph(cols int, fields ...Element) ParagraphElement {
	return ParagraphElement{Type: ElementParagraph, Cols: cols, Fields: fields}
}

// Module is one block of a card. Like elements, each concrete type carries
// its wire Type tag.
type Module interface {
	moduleType() string
}

// HeaderModule renders a large plain-text title.
type HeaderModule struct {
	Type string      `json:"type"`
	Text TextElement `json:"text"`
}

func (HeaderModule) moduleType() string { return ModuleHeader }

// SectionModule renders text with an optional image or button accessory.
type SectionModule struct {
	Type      string  `json:"type"`
	Mode      string  `json:"mode"` // "left" or "right": accessory placement
	Text      Element `json:"text,omitempty"`
	Accessory Element `json:"accessory,omitempty"`
}

func (SectionModule) moduleType() string { return ModuleSection }

// ImageGroupModule renders 1-9 images side by side.
type ImageGroupModule struct {
	Type     string         `json:"type"`
	Elements []ImageElement `json:"elements"`
}

func (ImageGroupModule) moduleType() string { return ModuleImageGroup }

// ContainerModule renders 1-9 images stacked.
type ContainerModule struct {
	Type     string         `json:"type"`
	Elements []ImageElement `json:"elements"`
}

func (ContainerModule) moduleType() string { return ModuleContainer }

// ActionGroupModule renders up to 4 buttons.
type ActionGroupModule struct {
	Type     string          `json:"type"`
	Elements []ButtonElement `json:"elements"`
}

func (ActionGroupModule) moduleType() string { return ModuleActionGroup }

// ContextModule renders up to 10 small text or image elements.
type ContextModule struct {
	Type     string    `json:"type"`
	Elements []Element `json:"elements"`
}

func (ContextModule) moduleType() string { return ModuleContext }

// DividerModule renders a horizontal rule.
type DividerModule struct {
	Type string `json:"type"`
}

func (DividerModule) moduleType() string { return ModuleDivider }

// FileModule attaches a downloadable file.
type FileModule struct {
	Type  string `json:"type"`
	Src   string `json:"src"`
	Title string `json:"title"`
}

func (FileModule) moduleType() string { return ModuleFile }

// AudioModule attaches a playable audio track.
type AudioModule struct {
	Type  string `json:"type"`
	Src   string `json:"src"`
	Title string `json:"title"`
	Cover string `json:"cover,omitempty"`
}

func (AudioModule) moduleType() string { return ModuleAudio }

// VideoModule attaches a playable video.
type VideoModule struct {
	Type  string `json:"type"`
	Src   string `json:"src"`
	Title string `json:"title"`
}

func (VideoModule) moduleType() string { return ModuleVideo }

// CountdownModule renders a live countdown.
type CountdownModule struct {
	Type      string `json:"type"`
	Mode      string `json:"mode"` // "day", "hour", or "second"
	EndTime   int64  `json:"endTime"`
	StartTime int64  `json:"startTime,omitempty"` // Required when Mode is "second".
}

func (CountdownModule) moduleType() string { return ModuleCountdown }

// InviteModule renders a server invite by code.
type InviteModule struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

func (InviteModule) moduleType() string { return ModuleInvite }

// Module constructors.

// NewHeader builds a header module.
func NewHeader(text string) HeaderModule {
	return HeaderModule{Type: ModuleHeader, Text: NewText(text)}
}

// NewSection builds a section module. mode defaults to "left" when empty.
func NewSection(text Element, mode string, accessory Element) SectionModule {
	if mode == "" {
		mode = "left"
	}
	return SectionModule{Type: ModuleSection, Mode: mode, Text: text, Accessory: accessory}
}

// NewImageGroup builds an image-group module.
func NewImageGroup(elements ...ImageElement) ImageGroupModule {
	return ImageGroupModule{Type: ModuleImageGroup, Elements: elements}
}

// NewContainer builds a container module.
func NewContainer(elements ...ImageElement) ContainerModule {
	return ContainerModule{Type: ModuleContainer, Elements: elements}
}

// NewActionGroup builds an action-group module.
func NewActionGroup(elements ...ButtonElement) ActionGroupModule {
	return ActionGroupModule{Type: ModuleActionGroup, Elements: elements}
}

// NewContext builds a context module.
func NewContext(elements ...Element) ContextModule {
	return ContextModule{Type: ModuleContext, Elements: elements}
}

// NewDivider builds a divider module.
func NewDivider() DividerModule {
	return DividerModule{Type: ModuleDivider}
}

// NewFileModule builds a file module.
func NewFileModule(src, title string) FileModule {
	return FileModule{Type: ModuleFile, Src: src, Title: title}
}

// NewAudioModule builds an audio module.
func NewAudioModule(src, title, cover string) AudioModule {
	return AudioModule{Type: ModuleAudio, Src: src, Title: title, Cover: cover}
}

// NewVideoModule builds a video module.
func NewVideoModule(src, title string) VideoModule {
	return VideoModule{Type: ModuleVideo, Src: src, Title: title}
}

// NewCountdown builds a countdown module. mode defaults to "hour" when empty.
func NewCountdown(endTime int64, mode string, startTime int64) CountdownModule {
	if mode == "" {
		mode = "hour"
	}
	return CountdownModule{Type: ModuleCountdown, Mode: mode, EndTime: endTime, StartTime: startTime}
}

// NewInvite builds an invite module.
func NewInvite(code string) InviteModule {
	return InviteModule{Type: ModuleInvite, Code: code}
}

// Card is a structured interactive message body: an ordered tree of typed
// modules under a theme. The wire representation of a card message is a JSON
// array containing exactly one card object.
type Card struct {
	Theme   Theme    `json:"theme,omitempty"`
	Color   string   `json:"color,omitempty"`
	Size    string   `json:"size,omitempty"`
	Modules []Module `json:"modules"`
}

// cardWire adds the fixed "type":"card" tag for marshalling.
type cardWire struct {
	Type    string   `json:"type"`
	Theme   Theme    `json:"theme,omitempty"`
	Color   string   `json:"color,omitempty"`
	Size    string   `json:"size,omitempty"`
	Modules []Module `json:"modules"`
}

// MarshalJSON emits the card with its wire type tag.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardWire{
		Type:    "card",
		Theme:   c.Theme,
		Color:   c.Color,
		Size:    c.Size,
		Modules: c.Modules,
	})
}

// UnmarshalJSON parses a card, dispatching each module and element on its
// wire type tag.
func (c *Card) UnmarshalJSON(data []byte) error {
	var raw struct {
		Theme   Theme             `json:"theme"`
		Color   string            `json:"color"`
		Size    string            `json:"size"`
		Modules []json.RawMessage `json:"modules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Theme = raw.Theme
	c.Color = raw.Color
	c.Size = raw.Size
	c.Modules = c.Modules[:0]
	for i, rm := range raw.Modules {
		mod, err := unmarshalModule(rm)
		if err != nil {
			return fmt.Errorf("message: card module %d: %w", i, err)
		}
		c.Modules = append(c.Modules, mod)
	}
	return nil
}

// peekType extracts the wire type tag from a raw JSON object.
func peekType(data json.RawMessage) (string, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return "", err
	}
	return tag.Type, nil
}

// unmarshalModule decodes one module on its type tag.
func unmarshalModule(data json.RawMessage) (Module, error) {
	typ, err := peekType(data)
	if err != nil {
		return nil, err
	}
	switch typ {
	case ModuleHeader:
		var m HeaderModule
		return m, json.Unmarshal(data, &m)
	case ModuleSection:
		return unmarshalSection(data)
	case ModuleImageGroup:
		var m ImageGroupModule
		return m, json.Unmarshal(data, &m)
	case ModuleContainer:
		var m ContainerModule
		return m, json.Unmarshal(data, &m)
	case ModuleActionGroup:
		var m ActionGroupModule
		return m, json.Unmarshal(data, &m)
	case ModuleContext:
		return unmarshalContext(data)
	case ModuleDivider:
		var m DividerModule
		return m, json.Unmarshal(data, &m)
	case ModuleFile:
		var m FileModule
		return m, json.Unmarshal(data, &m)
	case ModuleAudio:
		var m AudioModule
		return m, json.Unmarshal(data, &m)
	case ModuleVideo:
		var m VideoModule
		return m, json.Unmarshal(data, &m)
	case ModuleCountdown:
		var m CountdownModule
		return m, json.Unmarshal(data, &m)
	case ModuleInvite:
		var m InviteModule
		return m, json.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("unknown module type %q", typ)
	}
}

// unmarshalSection decodes a section, resolving its polymorphic text and
// accessory slots.
func unmarshalSection(data json.RawMessage) (Module, error) {
	var raw struct {
		Mode      string          `json:"mode"`
		Text      json.RawMessage `json:"text"`
		Accessory json.RawMessage `json:"accessory"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	m := SectionModule{Type: ModuleSection, Mode: raw.Mode}
	var err error
	if len(raw.Text) > 0 && string(raw.Text) != "null" {
		if m.Text, err = unmarshalElement(raw.Text); err != nil {
			return nil, err
		}
	}
	if len(raw.Accessory) > 0 && string(raw.Accessory) != "null" {
		if m.Accessory, err = unmarshalElement(raw.Accessory); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// unmarshalContext decodes a context module's polymorphic element list.
func unmarshalContext(data json.RawMessage) (Module, error) {
	var raw struct {
		Elements []json.RawMessage `json:"elements"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	m := ContextModule{Type: ModuleContext}
	for _, re := range raw.Elements {
		el, err := unmarshalElement(re)
		if err != nil {
			return nil, err
		}
		m.Elements = append(m.Elements, el)
	}
	return m, nil
}

// unmarshalElement decodes one element on its type tag.
func unmarshalElement(data json.RawMessage) (Element, error) {
	typ, err := peekType(data)
	if err != nil {
		return nil, err
	}
	switch typ {
	case ElementText:
		var e TextElement
		return e, json.Unmarshal(data, &e)
	case ElementKMarkdown:
		var e KMarkdownElement
		return e, json.Unmarshal(data, &e)
	case ElementImage:
		var e ImageElement
		return e, json.Unmarshal(data, &e)
	case ElementButton:
		var e ButtonElement
		return e, json.Unmarshal(data, &e)
	case ElementParagraph:
		var raw struct {
			Cols   int               `json:"cols"`
			Fields []json.RawMessage `json:"fields"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		e := ParagraphElement{Type: ElementParagraph, Cols: raw.Cols}
		for _, rf := range raw.Fields {
			f, err := unmarshalElement(rf)
			if err != nil {
				return nil, err
			}
			e.Fields = append(e.Fields, f)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown element type %q", typ)
	}
}
