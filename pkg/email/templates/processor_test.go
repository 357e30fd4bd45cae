package templates_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/email/templates"
)

func TestProcessor_Render_BuiltIns(t *testing.T) {
	t.Parallel()

	p := templates.NewProcessor()
	assert.Equal(t, []string{
		templates.AdminAlert,
		templates.EventApproved,
		templates.EventRejected,
		templates.EventReminder,
		templates.EventRequestConfirmation,
	}, p.IDs())

	for _, id := range p.IDs() {
		t.Run(id, func(t *testing.T) {
			t.Parallel()

			c, err := p.Render(context.Background(), id, nil, templates.Options{})
			require.NoError(t, err)
			assert.NotEmpty(t, c.Subject)
			assert.True(t, strings.HasPrefix(c.HTMLBody, "<!DOCTYPE html>"))
			assert.NotEmpty(t, c.TextBody)
		})
	}
}

func TestProcessor_Render_Defaults(t *testing.T) {
	t.Parallel()

	p := templates.NewProcessor()
	c, err := p.Render(context.Background(), templates.EventApproved, templates.Data{"eventName": "Spring Regatta"}, templates.Options{})
	require.NoError(t, err)

	assert.Equal(t, "Approved: Spring Regatta", c.Subject)
	assert.Contains(t, c.HTMLBody, "Date TBD")
	assert.Contains(t, c.HTMLBody, "Hello there,")
	assert.Contains(t, c.TextBody, "Location: Location TBD")
	assert.Contains(t, c.TextBody, "Club: Your club")
}

func TestProcessor_Render_NotFound(t *testing.T) {
	t.Parallel()

	_, err := templates.NewProcessor().Render(context.Background(), "missing", nil, templates.Options{})
	assert.ErrorIs(t, err, templates.ErrTemplateNotFound)
}

func TestProcessor_Render_Sanitizes(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"<script>alert(1)</script>Hello",
		"&lt;script&gt;alert(1)&lt;/script&gt;Hello",
		"<iframe src=\"https://evil.example\"></iframe>Hello",
		"<scr<script>ipt>alert(1) Hello",
		"<ifr<iframe>ame src=x>Hello",
	}
	p := templates.NewProcessor()

	for _, in := range inputs {
		c, err := p.Render(context.Background(), templates.EventRequestConfirmation, templates.Data{
			"eventName":     in,
			"recipientName": in,
			"notes":         in,
			"actionUrl":     "javascript:alert(1)",
		}, templates.Options{})
		require.NoError(t, err)

		for _, out := range []string{c.Subject, c.HTMLBody, c.TextBody} {
			assert.Contains(t, out, "Hello")
			assert.NotContains(t, strings.ToLower(out), "<script")
			assert.NotContains(t, strings.ToLower(out), "<iframe")
			assert.NotContains(t, strings.ToLower(out), "javascript:")
		}
		assert.NotContains(t, c.HTMLBody, "View request", "unsafe action link must be dropped")
	}
}

func TestProcessor_Render_EscapesMarkup(t *testing.T) {
	t.Parallel()

	c, err := templates.NewProcessor().Render(context.Background(), templates.EventApproved,
		templates.Data{"eventName": "Tom & Jerry <b>Cup</b>"}, templates.Options{Layout: templates.LayoutNone})
	require.NoError(t, err)

	assert.Contains(t, c.HTMLBody, "Tom &amp; Jerry &lt;b&gt;Cup&lt;/b&gt;")
	assert.False(t, strings.HasPrefix(c.HTMLBody, "<!DOCTYPE"))
}

func TestProcessor_Render_Branding(t *testing.T) {
	t.Parallel()

	p := templates.NewProcessor(templates.WithDefaultOptions(templates.Options{
		Branding: templates.Branding{FooterText: "Federation of Clubs", PrimaryColor: "#ff0000"},
	}))

	c, err := p.Render(context.Background(), templates.EventReminder, templates.Data{
		"clubName":  "Harbour Sailing Club",
		"eventDate": "2026-03-14",
	}, templates.Options{Locale: "fr-FR", Branding: templates.Branding{LogoURL: "https://cdn.example/logo.png"}})
	require.NoError(t, err)

	assert.Contains(t, c.HTMLBody, "https://cdn.example/logo.png")
	assert.Contains(t, c.HTMLBody, `alt="Harbour Sailing Club"`)
	assert.Contains(t, c.HTMLBody, "#ff0000")
	assert.Contains(t, c.HTMLBody, "Federation of Clubs")
	assert.Contains(t, c.Subject, "14/03/2026")
	assert.Contains(t, c.TextBody, "--\nFederation of Clubs")
}

func TestProcessor_RenderCustom(t *testing.T) {
	t.Parallel()

	p := templates.NewProcessor()

	c, err := p.RenderCustom(context.Background(), templates.CustomData{
		Subject:       "Pool closed\r\nBcc: x@example.com",
		Message:       "The pool is closed on Monday.\n\n<script>x()</script>Sorry!",
		RecipientName: "Ana",
		ActionText:    "Schedule",
		ActionURL:     "https://club.example/schedule",
	}, templates.Options{Layout: templates.LayoutNone})
	require.NoError(t, err)

	assert.NotContains(t, c.Subject, "\n")
	assert.Contains(t, c.HTMLBody, "Hello Ana,")
	assert.Contains(t, c.HTMLBody, "Sorry!")
	assert.NotContains(t, c.HTMLBody, "<script>")
	assert.Contains(t, c.HTMLBody, `href="https://club.example/schedule"`)
	assert.Contains(t, c.TextBody, "Schedule: https://club.example/schedule")

	_, err = p.RenderCustom(context.Background(), templates.CustomData{Subject: "x"}, templates.Options{})
	assert.ErrorIs(t, err, templates.ErrInvalidTemplate)
}

func TestProcessor_Register(t *testing.T) {
	t.Parallel()

	p := templates.NewProcessor()
	assert.ErrorIs(t, p.Register(templates.Template{ID: "x"}), templates.ErrInvalidTemplate)

	require.NoError(t, p.Register(templates.Template{
		ID:       "welcome",
		Defaults: templates.Data{"name": "friend"},
		Subject:  func(d templates.Data) string { return "Welcome " + d["name"] },
		Build:    func(d templates.Data) templates.Body { return templates.Body{Paragraphs: []string{"Hi " + d["name"]}} },
	}))
	assert.True(t, p.Has("welcome"))

	c, err := p.Render(context.Background(), "welcome", nil, templates.Options{Layout: templates.LayoutNone})
	require.NoError(t, err)
	assert.Equal(t, "Welcome friend", c.Subject)
	assert.Equal(t, "Hi friend\n", c.TextBody)
}
