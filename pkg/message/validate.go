package message

import "fmt"

// Card structural limits.
const (
	maxCardModules      = 50
	maxHeaderTextLen    = 100
	maxImageElements    = 9
	maxActionButtons    = 4
	maxContextElements  = 10
	maxPlainTextLen     = 2000
	maxKMarkdownLen     = 5000
	maxParagraphFields  = 50
	maxParagraphColumns = 3
)

// ValidationError reports a structural violation in an outbound card. Index
// is the offending module's position, -1 for card-level violations.
type ValidationError struct {
	Index  int    // Module index within the card, -1 for the card itself.
	Module string // Module type tag, empty for card-level violations.
	Field  string // Offending field, when one can be named.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("message: invalid card: %s", e.Reason)
	case e.Field != "":
		return fmt.Sprintf("message: invalid card: module %d (%s) field %q: %s", e.Index, e.Module, e.Field, e.Reason)
	default:
		return fmt.Sprintf("message: invalid card: module %d (%s): %s", e.Index, e.Module, e.Reason)
	}
}

// cardErr builds a card-level validation error.
func cardErr(reason string) *ValidationError {
	return &ValidationError{Index: -1, Reason: reason}
}

// modErr builds a module-level validation error.
func modErr(index int, mod Module, field, reason string) *ValidationError {
	return &ValidationError{Index: index, Module: mod.moduleType(), Field: field, Reason: reason}
}

// invisibleAllowed is the module set permitted under the invisible theme.
// Sections are additionally required to drop their accessory.
var invisibleAllowed = map[string]bool{
	ModuleContext:     true,
	ModuleActionGroup: true,
	ModuleDivider:     true,
	ModuleHeader:      true,
	ModuleContainer:   true,
	ModuleFile:        true,
	ModuleAudio:       true,
	ModuleVideo:       true,
	ModuleSection:     true,
}

// ValidateCard checks a card's full module tree in a single pass before it is
// allowed out. A nil return means the card is structurally sound; any other
// return is a *ValidationError naming the offending module and field.
func ValidateCard(c *Card) error {
	if n := len(c.Modules); n < 1 || n > maxCardModules {
		return cardErr(fmt.Sprintf("module count must be 1-%d, got %d", maxCardModules, n))
	}

	invisible := c.Theme == ThemeInvisible
	for i, mod := range c.Modules {
		if invisible {
			if !invisibleAllowed[mod.moduleType()] {
				return modErr(i, mod, "", "module type not permitted under invisible theme")
			}
			if sec, ok := mod.(SectionModule); ok && sec.Accessory != nil {
				return modErr(i, mod, "accessory", "not permitted under invisible theme")
			}
		}
		if err := validateModule(i, mod); err != nil {
			return err
		}
	}
	return nil
}

// validateModule applies the per-type structural rules. The switch is
// exhaustive over the concrete module types.
func validateModule(i int, mod Module) error {
	switch m := mod.(type) {
	case HeaderModule:
		if m.Type != ModuleHeader {
			return modErr(i, mod, "type", fmt.Sprintf("expected %q, got %q", ModuleHeader, m.Type))
		}
		if m.Text.Type != ElementText {
			return modErr(i, mod, "text", "must be a plain-text element")
		}
		if len([]rune(m.Text.Content)) > maxHeaderTextLen {
			return modErr(i, mod, "text", fmt.Sprintf("content exceeds %d characters", maxHeaderTextLen))
		}
		return validateElement(i, mod, "text", m.Text)

	case SectionModule:
		if m.Type != ModuleSection {
			return modErr(i, mod, "type", fmt.Sprintf("expected %q, got %q", ModuleSection, m.Type))
		}
		if m.Mode != "left" && m.Mode != "right" {
			return modErr(i, mod, "mode", `must be "left" or "right"`)
		}
		if m.Text != nil {
			switch m.Text.(type) {
			case TextElement, KMarkdownElement, ParagraphElement:
			default:
				return modErr(i, mod, "text", "must be plain-text, kmarkdown, or paragraph")
			}
			if err := validateElement(i, mod, "text", m.Text); err != nil {
				return err
			}
		}
		if m.Accessory != nil {
			switch m.Accessory.(type) {
			case ImageElement, ButtonElement:
			default:
				return modErr(i, mod, "accessory", "must be an image or button")
			}
			if _, isButton := m.Accessory.(ButtonElement); isButton && m.Mode == "left" {
				return modErr(i, mod, "accessory", "a button cannot be placed on the left")
			}
			if err := validateElement(i, mod, "accessory", m.Accessory); err != nil {
				return err
			}
		}
		return nil

	case ImageGroupModule:
		if m.Type != ModuleImageGroup {
			return modErr(i, mod, "type", fmt.Sprintf("expected %q, got %q", ModuleImageGroup, m.Type))
		}
		return validateImageList(i, mod, m.Elements)

	case ContainerModule:
		if m.Type != ModuleContainer {
			return modErr(i, mod, "type", fmt.Sprintf("expected %q, got %q", ModuleContainer, m.Type))
		}
		return validateImageList(i, mod, m.Elements)

	case ActionGroupModule:
		if m.Type != ModuleActionGroup {
			return modErr(i, mod, "type", fmt.Sprintf("expected %q, got %q", ModuleActionGroup, m.Type))
		}
		if len(m.Elements) > maxActionButtons {
			return modErr(i, mod, "elements", fmt.Sprintf("at most %d buttons", maxActionButtons))
		}
		for _, el := range m.Elements {
			if err := validateElement(i, mod, "elements", el); err != nil {
				return err
			}
		}
		return nil

	case ContextModule:
		if m.Type != ModuleContext {
			return modErr(i, mod, "type", fmt.Sprintf("expected %q, got %q", ModuleContext, m.Type))
		}
		if len(m.Elements) > maxContextElements {
			return modErr(i, mod, "elements", fmt.Sprintf("at most %d elements", maxContextElements))
		}
		for _, el := range m.Elements {
			switch el.(type) {
			case TextElement, KMarkdownElement, ImageElement:
			default:
				return modErr(i, mod, "elements", "only plain-text, kmarkdown, and image elements are allowed")
			}
			if err := validateElement(i, mod, "elements", el); err != nil {
				return err
			}
		}
		return nil

	case DividerModule:
		if m.Type != ModuleDivider {
			return modErr(i, mod, "type", fmt.Sprintf("expected %q, got %q", ModuleDivider, m.Type))
		}
		return nil

	case FileModule:
		if m.Type != ModuleFile {
			return modErr(i, mod, "type", fmt.Sprintf("expected %q, got %q", ModuleFile, m.Type))
		}
		return validateMedia(i, mod, m.Src, m.Title)

	case AudioModule:
		if m.Type != ModuleAudio {
			return modErr(i, mod, "type", fmt.Sprintf("expected %q, got %q", ModuleAudio, m.Type))
		}
		return validateMedia(i, mod, m.Src, m.Title)

	case VideoModule:
		if m.Type != ModuleVideo {
			return modErr(i, mod, "type", fmt.Sprintf("expected %q, got %q", ModuleVideo, m.Type))
		}
		return validateMedia(i, mod, m.Src, m.Title)

	case CountdownModule:
		if m.Type != ModuleCountdown {
			return modErr(i, mod, "type", fmt.Sprintf("expected %q, got %q", ModuleCountdown, m.Type))
		}
		if m.EndTime == 0 {
			return modErr(i, mod, "endTime", "required")
		}
		if m.Mode != "day" && m.Mode != "hour" && m.Mode != "second" {
			return modErr(i, mod, "mode", `must be "day", "hour", or "second"`)
		}
		if m.Mode == "second" && m.StartTime == 0 {
			return modErr(i, mod, "startTime", `required when mode is "second"`)
		}
		return nil

	case InviteModule:
		if m.Type != ModuleInvite {
			return modErr(i, mod, "type", fmt.Sprintf("expected %q, got %q", ModuleInvite, m.Type))
		}
		if m.Code == "" {
			return modErr(i, mod, "code", "required")
		}
		return nil

	default:
		return modErr(i, mod, "", "unknown module type")
	}
}

// validateImageList checks the shared image-group/container element rules.
func validateImageList(i int, mod Module, elements []ImageElement) error {
	if n := len(elements); n < 1 || n > maxImageElements {
		return modErr(i, mod, "elements", fmt.Sprintf("must contain 1-%d images, got %d", maxImageElements, n))
	}
	for _, el := range elements {
		if err := validateElement(i, mod, "elements", el); err != nil {
			return err
		}
	}
	return nil
}

// validateMedia checks the shared file/audio/video src+title requirement.
func validateMedia(i int, mod Module, src, title string) error {
	if src == "" {
		return modErr(i, mod, "src", "required")
	}
	if title == "" {
		return modErr(i, mod, "title", "required")
	}
	return nil
}

// validateElement applies element-level rules within a module. field names
// the slot the element occupies so errors stay addressable.
func validateElement(i int, mod Module, field string, el Element) error {
	switch e := el.(type) {
	case TextElement:
		if e.Content == "" {
			return modErr(i, mod, field, "plain-text content is required")
		}
		if len([]rune(e.Content)) > maxPlainTextLen {
			return modErr(i, mod, field, fmt.Sprintf("plain-text content exceeds %d characters", maxPlainTextLen))
		}
	case KMarkdownElement:
		if e.Content == "" {
			return modErr(i, mod, field, "kmarkdown content is required")
		}
		if len([]rune(e.Content)) > maxKMarkdownLen {
			return modErr(i, mod, field, fmt.Sprintf("kmarkdown content exceeds %d characters", maxKMarkdownLen))
		}
	case ImageElement:
		if e.Src == "" {
			return modErr(i, mod, field, "image src is required")
		}
	case ButtonElement:
		if e.Text == "" {
			return modErr(i, mod, field, "button text is required")
		}
		if e.Value == "" {
			return modErr(i, mod, field, "button value is required")
		}
		if e.Click != "" && e.Click != "link" && e.Click != "return-val" {
			return modErr(i, mod, field, `button click must be "link" or "return-val"`)
		}
	case ParagraphElement:
		if e.Cols < 1 || e.Cols > maxParagraphColumns {
			return modErr(i, mod, field, fmt.Sprintf("paragraph cols must be 1-%d", maxParagraphColumns))
		}
		if len(e.Fields) > maxParagraphFields {
			return modErr(i, mod, field, fmt.Sprintf("paragraph holds at most %d fields", maxParagraphFields))
		}
		for _, f := range e.Fields {
			switch f.(type) {
			case TextElement, KMarkdownElement:
			default:
				return modErr(i, mod, field, "paragraph fields must be plain-text or kmarkdown")
			}
			if err := validateElement(i, mod, field, f); err != nil {
				return err
			}
		}
	}
	return nil
}
