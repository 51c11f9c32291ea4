package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/mikey/email-assistant/internal/core"
	"golang.org/x/net/html"
)

// Parse reads an RFC 5322 message into an Email. The body is the text/plain
// content, or the visible text of the HTML part when there is no plain part.
// The Message-ID becomes the email id.
func Parse(r io.Reader) (*core.Email, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	email := headerFields(&mr.Header)
	text, htmlBody := readParts(mr)
	switch {
	case text != "":
		email.Body = text
	case htmlBody != "":
		email.Body = HTMLText(htmlBody)
	}
	return email, nil
}

// headerFields copies the envelope headers into an Email
func headerFields(h *mail.Header) *core.Email {
	email := &core.Email{}

	if id, err := h.MessageID(); err == nil {
		email.ID = id
	}
	if subject, err := h.Subject(); err == nil {
		email.Subject = subject
	} else {
		email.Subject = h.Get("Subject")
	}

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		email.From = FormatAddress(from[0])
	} else {
		email.From = h.Get("From")
	}
	if to, err := h.AddressList("To"); err == nil {
		for _, a := range to {
			email.To = append(email.To, a.Address)
		}
	}
	return email
}

// FormatAddress renders an address as "Name <addr>", or the bare address
// when there is no display name
func FormatAddress(a *mail.Address) string {
	if a.Name == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Address)
}

// readParts collects the inline text/plain and text/html parts. Attachments
// are skipped.
func readParts(mr *mail.Reader) (text, htmlBody string) {
	var plain, rich strings.Builder
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep whatever was read before the broken part
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"), contentType == "":
			appendPart(&plain, string(body))
		case strings.HasPrefix(contentType, "text/html"):
			appendPart(&rich, string(body))
		}
	}
	return plain.String(), rich.String()
}

func appendPart(sb *strings.Builder, s string) {
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(s)
}

// HTMLText returns the visible text of an HTML document, one block per line.
// Script and style content is dropped.
func HTMLText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var sb strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				skip++
			case "br", "p", "div", "tr", "li", "h1", "h2", "h3":
				sb.WriteString("\n")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				if skip > 0 {
					skip--
				}
			case "p", "div", "tr", "li":
				sb.WriteString("\n")
			}
		case html.TextToken:
			if skip == 0 {
				sb.WriteString(strings.Join(strings.Fields(string(z.Text())), " "))
				sb.WriteString(" ")
			}
		}
	}
}
