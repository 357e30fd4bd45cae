package templates

import (
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/a-h/templ"
)

const defaultPrimaryColor = "#1d4ed8"

var hexColorRegex = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)

// write collects the first error of a sequence of writes.
type write struct {
	w   io.Writer
	err error
}

func (wr *write) raw(s string) {
	if wr.err == nil {
		_, wr.err = io.WriteString(wr.w, s)
	}
}

func (wr *write) text(s string) {
	wr.raw(templ.EscapeString(s))
}

// BodyComponent renders b as an HTML fragment. Every value is escaped.
func BodyComponent(b Body, primaryColor string) templ.Component {
	if !hexColorRegex.MatchString(primaryColor) {
		primaryColor = defaultPrimaryColor
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		wr := &write{w: w}
		if b.Heading != "" {
			wr.raw(`<h1 style="font-size:20px;margin:0 0 16px;">`)
			wr.text(b.Heading)
			wr.raw("</h1>")
		}
		if b.Greeting != "" {
			wr.raw(`<p style="margin:0 0 12px;">`)
			wr.text(b.Greeting)
			wr.raw("</p>")
		}
		for _, p := range b.Paragraphs {
			wr.raw(`<p style="margin:0 0 12px;line-height:1.5;">`)
			wr.text(p)
			wr.raw("</p>")
		}
		if len(b.Details) > 0 {
			wr.raw(`<table role="presentation" style="border-collapse:collapse;margin:0 0 16px;">`)
			for _, d := range b.Details {
				wr.raw(`<tr><td style="padding:4px 12px 4px 0;color:#6b7280;">`)
				wr.text(d.Label)
				wr.raw(`</td><td style="padding:4px 0;">`)
				wr.text(d.Value)
				wr.raw("</td></tr>")
			}
			wr.raw("</table>")
		}
		if b.Action != nil && b.Action.URL != "" {
			wr.raw(fmt.Sprintf(`<p style="margin:16px 0;"><a href="%s" style="background:%s;color:#ffffff;padding:10px 18px;border-radius:4px;text-decoration:none;display:inline-block;">`,
				templ.EscapeString(b.Action.URL), primaryColor))
			wr.text(b.Action.Text)
			wr.raw("</a></p>")
		}
		if b.Closing != "" {
			wr.raw(`<p style="margin:16px 0 0;">`)
			wr.text(b.Closing)
			wr.raw("</p>")
		}
		return wr.err
	})
}

// BrandedLayout wraps content in a full HTML document with club branding.
func BrandedLayout(title string, brand Branding, content templ.Component) templ.Component {
	color := brand.PrimaryColor
	if !hexColorRegex.MatchString(color) {
		color = defaultPrimaryColor
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		wr := &write{w: w}
		wr.raw(`<!DOCTYPE html><html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width,initial-scale=1"><title>`)
		wr.text(title)
		wr.raw(`</title></head><body style="margin:0;padding:0;background:#f3f4f6;font-family:Arial,Helvetica,sans-serif;color:#111827;">`)
		wr.raw(`<table role="presentation" width="100%" style="border-collapse:collapse;"><tr><td align="center" style="padding:24px;">`)
		wr.raw(`<table role="presentation" width="600" style="border-collapse:collapse;background:#ffffff;border-radius:6px;">`)
		wr.raw(fmt.Sprintf(`<tr><td style="padding:16px 24px;border-bottom:4px solid %s;">`, color))
		if brand.LogoURL != "" {
			wr.raw(`<img src="`)
			wr.text(brand.LogoURL)
			wr.raw(`" alt="`)
			wr.text(brand.ClubName)
			wr.raw(`" height="40" style="display:block;">`)
		} else {
			wr.raw(`<strong style="font-size:18px;">`)
			wr.text(brand.ClubName)
			wr.raw("</strong>")
		}
		wr.raw(`</td></tr><tr><td style="padding:24px;">`)
		if wr.err != nil {
			return wr.err
		}
		if err := content.Render(ctx, w); err != nil {
			return err
		}
		wr.raw(`</td></tr>`)
		if brand.FooterText != "" {
			wr.raw(`<tr><td style="padding:16px 24px;font-size:12px;color:#6b7280;border-top:1px solid #e5e7eb;">`)
			wr.text(brand.FooterText)
			wr.raw("</td></tr>")
		}
		wr.raw(`</table></td></tr></table></body></html>`)
		return wr.err
	})
}
