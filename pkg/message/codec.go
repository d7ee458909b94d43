package message

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Type is the numeric wire type code of a message.
type Type int

const (
	TypeText      Type = 1
	TypeImage     Type = 2
	TypeVideo     Type = 3
	TypeFile      Type = 4
	TypeAudio     Type = 8
	TypeKMarkdown Type = 9
	TypeCard      Type = 10
)

// Codec errors.
var (
	// ErrFileSend is returned when a file segment is encoded; the platform
	// has no outbound file message, files go through the asset API instead.
	ErrFileSend = errors.New("message: file segments cannot be sent")

	// ErrNoUploader is returned when a segment references local media but the
	// codec was built without an upload capability.
	ErrNoUploader = errors.New("message: local media reference requires an uploader")
)

// Uploader is the injected media-upload capability: it stores the bytes read
// from r and returns a URL the platform can fetch.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, name string) (url string, err error)
}

// Encoded is the result of encoding a segment list: the wire content string,
// the resolved numeric type code, the quote reference (if any), and a random
// nonce for server-side send dedup.
type Encoded struct {
	Content string
	Type    Type
	Quote   *Quotable
	Nonce   string
}

// SendRequest is the outbound REST payload shape consumed by the message
// send endpoint.
type SendRequest struct {
	TargetID string `json:"target_id"`
	Content  string `json:"content"`
	Type     int    `json:"type"`
	Quote    string `json:"quote,omitempty"`
	Nonce    string `json:"nonce,omitempty"`
}

// Request binds an encode result to a send target.
func (e *Encoded) Request(targetID string) SendRequest {
	req := SendRequest{
		TargetID: targetID,
		Content:  e.Content,
		Type:     int(e.Type),
		Nonce:    e.Nonce,
	}
	if e.Quote != nil {
		req.Quote = e.Quote.MessageID
	}
	return req
}

// Codec converts between segment lists and the platform wire content. It is
// stateless apart from the injected uploader; a single Codec is safe for
// concurrent use.
type Codec struct {
	uploader Uploader
}

// NewCodec builds a codec. uploader may be nil, in which case encoding a
// local media reference fails with ErrNoUploader.
func NewCodec(uploader Uploader) *Codec {
	return &Codec{uploader: uploader}
}

// mentionRe matches the reserved at-mention marker in rich-text content.
var mentionRe = regexp.MustCompile(`\(met\)(\d+|here|all)\(met\)`)

// Encode converts a segment list to wire content. Segments are processed in
// order; the first non-text segment decides the type code, and a card
// replaces the whole message. quote is the caller-supplied quote reference;
// a reply segment fills it only when the caller left it nil.
func (c *Codec) Encode(ctx context.Context, segments []Segment, quote *Quotable) (*Encoded, error) {
	out := &Encoded{Type: TypeText, Nonce: uuid.NewString()}
	var content strings.Builder

loop:
	for _, seg := range segments {
		switch s := seg.(type) {
		case TextSegment:
			content.WriteString(s.Text)

		case AtSegment:
			// Mentions upgrade the message to rich text so the marker is
			// decoded back into an at segment on the receiving side.
			content.WriteString("(met)" + s.UserID + "(met)")
			out.Type = TypeKMarkdown

		case MarkdownSegment:
			content.WriteString(s.Text)
			out.Type = TypeKMarkdown

		case ImageSegment:
			// Rich text already claimed the type; a later media segment
			// cannot override it.
			if out.Type == TypeKMarkdown {
				break loop
			}
			url, err := c.resolveMedia(ctx, s.URL)
			if err != nil {
				return nil, err
			}
			content.Reset()
			content.WriteString(url)
			out.Type = TypeImage
			break loop

		case VideoSegment:
			if out.Type == TypeKMarkdown {
				break loop
			}
			url, err := c.resolveMedia(ctx, s.URL)
			if err != nil {
				return nil, err
			}
			content.Reset()
			content.WriteString(url)
			out.Type = TypeVideo
			break loop

		case AudioSegment:
			if out.Type == TypeKMarkdown {
				break loop
			}
			url, err := c.resolveMedia(ctx, s.URL)
			if err != nil {
				return nil, err
			}
			content.Reset()
			content.WriteString(url)
			out.Type = TypeAudio
			break loop

		case ReplySegment:
			if quote == nil {
				quote = &Quotable{MessageID: s.MessageID}
			}

		case FileSegment:
			return nil, ErrFileSend

		case CardSegment:
			card := s.Card
			if err := c.resolveCardMedia(ctx, &card); err != nil {
				return nil, err
			}
			if err := ValidateCard(&card); err != nil {
				return nil, err
			}
			data, err := json.Marshal([]Card{card})
			if err != nil {
				return nil, fmt.Errorf("message: marshal card: %w", err)
			}
			content.Reset()
			content.Write(data)
			out.Type = TypeCard
			break loop

		default:
			return nil, fmt.Errorf("message: unsupported segment %T", seg)
		}
	}

	out.Content = content.String()
	out.Quote = quote
	return out, nil
}

// Decode reconstructs a segment list from wire content and its type code.
func (c *Codec) Decode(content string, typ Type) ([]Segment, error) {
	switch typ {
	case TypeText:
		return []Segment{Text(content)}, nil
	case TypeImage:
		return []Segment{Image(content)}, nil
	case TypeVideo:
		return []Segment{Video(content)}, nil
	case TypeFile:
		return []Segment{File(content, "")}, nil
	case TypeAudio:
		return []Segment{Audio(content)}, nil
	case TypeCard:
		var cards []Card
		if err := json.Unmarshal([]byte(content), &cards); err != nil {
			return nil, fmt.Errorf("message: decode card content: %w", err)
		}
		segs := make([]Segment, 0, len(cards))
		for _, card := range cards {
			segs = append(segs, CardSegment{Card: card})
		}
		return segs, nil
	default:
		// Rich text: split on mention markers into alternating markdown and
		// at segments, preserving surrounding order.
		return decodeRichText(content), nil
	}
}

// decodeRichText scans content for mention markers. Text between markers
// becomes markdown segments; leftover trailing text becomes a final one.
func decodeRichText(content string) []Segment {
	var segs []Segment
	for {
		loc := mentionRe.FindStringSubmatchIndex(content)
		if loc == nil {
			break
		}
		if before := content[:loc[0]]; before != "" {
			segs = append(segs, Markdown(before))
		}
		segs = append(segs, At(content[loc[2]:loc[3]]))
		content = content[loc[1]:]
	}
	if content != "" {
		segs = append(segs, Markdown(content))
	}
	return segs
}

// resolveMedia turns a media reference into a platform-fetchable URL,
// uploading local and inline references through the injected capability.
func (c *Codec) resolveMedia(ctx context.Context, ref string) (string, error) {
	if !isLocalRef(ref) {
		return ref, nil
	}
	if c.uploader == nil {
		return "", ErrNoUploader
	}
	r, name, err := openMediaRef(ref)
	if err != nil {
		return "", err
	}
	defer r.Close()
	return c.uploader.Upload(ctx, r, name)
}

// resolveCardMedia walks a card and uploads any image element with a local
// source, so the card ships with fetchable URLs only.
func (c *Codec) resolveCardMedia(ctx context.Context, card *Card) error {
	for mi, mod := range card.Modules {
		switch m := mod.(type) {
		case SectionModule:
			if img, ok := m.Accessory.(ImageElement); ok {
				url, err := c.resolveMedia(ctx, img.Src)
				if err != nil {
					return err
				}
				img.Src = url
				m.Accessory = img
				card.Modules[mi] = m
			}
		case ImageGroupModule:
			for ei := range m.Elements {
				url, err := c.resolveMedia(ctx, m.Elements[ei].Src)
				if err != nil {
					return err
				}
				m.Elements[ei].Src = url
			}
			card.Modules[mi] = m
		case ContainerModule:
			for ei := range m.Elements {
				url, err := c.resolveMedia(ctx, m.Elements[ei].Src)
				if err != nil {
					return err
				}
				m.Elements[ei].Src = url
			}
			card.Modules[mi] = m
		case ContextModule:
			for ei, el := range m.Elements {
				if img, ok := el.(ImageElement); ok {
					url, err := c.resolveMedia(ctx, img.Src)
					if err != nil {
						return err
					}
					img.Src = url
					m.Elements[ei] = img
				}
			}
			card.Modules[mi] = m
		}
	}
	return nil
}

// isLocalRef reports whether a media reference needs uploading before send.
func isLocalRef(ref string) bool {
	return strings.HasPrefix(ref, "file://") || strings.HasPrefix(ref, "data:")
}

// openMediaRef opens a local media reference for reading.
func openMediaRef(ref string) (io.ReadCloser, string, error) {
	switch {
	case strings.HasPrefix(ref, "file://"):
		path := strings.TrimPrefix(ref, "file://")
		f, err := os.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("message: open media file: %w", err)
		}
		return f, filepath.Base(path), nil

	case strings.HasPrefix(ref, "data:"):
		idx := strings.Index(ref, "base64,")
		if idx < 0 {
			return nil, "", fmt.Errorf("message: data URI without base64 payload")
		}
		data, err := base64.StdEncoding.DecodeString(ref[idx+len("base64,"):])
		if err != nil {
			return nil, "", fmt.Errorf("message: decode data URI: %w", err)
		}
		return io.NopCloser(strings.NewReader(string(data))), "inline", nil

	default:
		return nil, "", fmt.Errorf("message: not a local media reference: %q", ref)
	}
}
