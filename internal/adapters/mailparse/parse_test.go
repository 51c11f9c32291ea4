package mailparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multipartMessage = "From: Alice Example <alice@example.com>\r\n" +
	"To: bob@example.com, carol@example.com\r\n" +
	"Subject: =?UTF-8?Q?Caf=C3=A9_plans?=\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"See you at noon.\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>See you at <b>noon</b>.</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"menu.pdf\"\r\n" +
	"\r\n" +
	"%PDF-1.4\r\n" +
	"--outer--\r\n"

func TestParseMultipart(t *testing.T) {
	email, err := Parse(strings.NewReader(multipartMessage))
	require.NoError(t, err)

	assert.Equal(t, "abc123@example.com", email.ID)
	assert.Equal(t, "Alice Example <alice@example.com>", email.From)
	assert.Equal(t, []string{"bob@example.com", "carol@example.com"}, email.To)
	assert.Equal(t, "Café plans", email.Subject)
	assert.Equal(t, "See you at noon.", strings.TrimSpace(email.Body))
	assert.NotContains(t, email.Body, "PDF")
}

func TestParseHTMLOnly(t *testing.T) {
	msg := "From: shop@example.com\r\n" +
		"Subject: Deals\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><head><style>p{color:red}</style></head><body><p>Big   sale</p><script>track()</script><p>Today only</p></body></html>\r\n"

	email, err := Parse(strings.NewReader(msg))
	require.NoError(t, err)
	assert.Equal(t, "shop@example.com", email.From)
	assert.Contains(t, email.Body, "Big sale")
	assert.Contains(t, email.Body, "Today only")
	assert.NotContains(t, email.Body, "color")
	assert.NotContains(t, email.Body, "track")
}

func TestParsePlain(t *testing.T) {
	msg := "From: a@example.com\r\nSubject: Hi\r\n\r\nJust text\r\n"
	email, err := Parse(strings.NewReader(msg))
	require.NoError(t, err)
	assert.Equal(t, "Just text", strings.TrimSpace(email.Body))
	assert.Empty(t, email.ID)
}
