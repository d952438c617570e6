package mail

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// unsupportedContent is returned for messages whose content type is
// neither text nor multipart.
const unsupportedContent = "Unsupported content."

// htmlTagPattern matches HTML tags for stripping. This is a plain
// tag-removal pass, not an HTML parser: entities and malformed tags
// pass through untouched.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// ExtractText reduces a raw RFC 822 message to a single plain-text
// string:
//
//   - a text/plain message yields its body verbatim;
//   - a multipart message yields its first text/plain part verbatim,
//     or, when none exists, the concatenation of every text/html part
//     with tags stripped;
//   - anything else yields a fixed placeholder.
//
// Only one multipart level is inspected. The normalization is lossy:
// formatting, links, and inline images are not preserved.
func ExtractText(raw []byte) (string, error) {
	ent, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return "", fmt.Errorf("parsing message: %w", err)
	}
	return extractEntity(ent)
}

func extractEntity(ent *message.Entity) (string, error) {
	mediaType, _, _ := ent.Header.ContentType()

	switch {
	case mediaType == "text/plain":
		body, err := io.ReadAll(ent.Body)
		if err != nil {
			return "", fmt.Errorf("reading text body: %w", err)
		}
		return string(body), nil

	case strings.HasPrefix(mediaType, "multipart/"):
		return extractMultipart(ent)

	default:
		return unsupportedContent, nil
	}
}

// extractMultipart scans the parts in order. The first text/plain part
// wins and the remaining parts are not inspected; otherwise stripped
// text from every text/html part is accumulated.
func extractMultipart(ent *message.Entity) (string, error) {
	mr := ent.MultipartReader()
	if mr == nil {
		return unsupportedContent, nil
	}

	var html strings.Builder
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return "", fmt.Errorf("reading message part: %w", err)
		}

		partType, _, _ := part.Header.ContentType()
		switch partType {
		case "text/plain":
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return "", fmt.Errorf("reading text part: %w", err)
			}
			return string(body), nil
		case "text/html":
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return "", fmt.Errorf("reading html part: %w", err)
			}
			html.WriteString(stripTags(string(body)))
		}
	}

	return html.String(), nil
}

// stripTags removes everything matching <...> from the input.
func stripTags(s string) string {
	return htmlTagPattern.ReplaceAllString(s, "")
}
