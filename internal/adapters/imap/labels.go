package imap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
)

// Mailbox roles map IMAP folders onto the label model: the inbox carries
// INBOX, the junk folder SPAM and the trash folder TRASH. The archive folder
// carries none of them.
const (
	labelInbox  = "INBOX"
	labelSpam   = "SPAM"
	labelTrash  = "TRASH"
	labelUnread = "UNREAD"
)

// keyword encodes a label as an IMAP keyword. Keywords are ASCII atoms:
// spaces become underscores, and underscores, plus signs, atom specials and
// non-ASCII bytes become "+XX" hex escapes.
func keyword(label string) imap.Flag {
	var sb strings.Builder
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c == ' ':
			sb.WriteByte('_')
		case c < ' ', c >= 0x7f, c == '_', c == '+', strings.IndexByte(`(){%*"\]`, c) >= 0:
			fmt.Fprintf(&sb, "+%02X", c)
		default:
			sb.WriteByte(c)
		}
	}
	return imap.Flag(sb.String())
}

// labelName decodes a keyword back into a label. A "+" not followed by two
// hex digits is kept as is.
func labelName(f imap.Flag) string {
	s := string(f)
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '_':
			sb.WriteByte(' ')
		case c == '+' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b, _ := strconv.ParseUint(s[i+1:i+3], 16, 8)
			sb.WriteByte(byte(b))
			i += 2
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('A' <= c && c <= 'F') || ('a' <= c && c <= 'f')
}

// isKeyword reports whether a flag is a user keyword rather than a system
// flag such as \Seen or a server marker such as $NotJunk
func isKeyword(f imap.Flag) bool {
	s := string(f)
	return s != "" && !strings.HasPrefix(s, `\`) && !strings.HasPrefix(s, "$")
}

// messageLabels derives the labels of a message from its folder role and flags
func messageLabels(role string, flags []imap.Flag) []string {
	var out []string
	if role != "" {
		out = append(out, role)
	}
	seen := false
	for _, f := range flags {
		if f == imap.FlagSeen {
			seen = true
		}
		if isKeyword(f) {
			out = append(out, labelName(f))
		}
	}
	if !seen {
		out = append(out, labelUnread)
	}
	return out
}
