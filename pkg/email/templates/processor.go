package templates

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/mailqueue/pkg/sanitizer"
)

// Processor renders registered templates and ad hoc messages.
// It is safe for concurrent use.
type Processor struct {
	mu        sync.RWMutex
	templates map[string]Template
	defaults  Options
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithDefaultOptions sets options merged under every Render call.
func WithDefaultOptions(opts Options) ProcessorOption {
	return func(p *Processor) {
		p.defaults = opts
	}
}

// WithTemplates registers additional templates, replacing built-ins with the same id.
func WithTemplates(tpls ...Template) ProcessorOption {
	return func(p *Processor) {
		for _, t := range tpls {
			p.templates[t.ID] = t
		}
	}
}

// NewProcessor returns a processor with the built-in templates registered.
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{templates: make(map[string]Template)}
	for _, t := range builtinTemplates() {
		p.templates[t.ID] = t
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds or replaces a template.
func (p *Processor) Register(t Template) error {
	if t.ID == "" || t.Subject == nil || t.Build == nil {
		return fmt.Errorf("%w: id, subject and build are required", ErrInvalidTemplate)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.templates[t.ID] = t
	return nil
}

// Has reports whether id is registered.
func (p *Processor) Has(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.templates[id]
	return ok
}

// IDs returns the registered template ids in sorted order.
func (p *Processor) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Sorted(maps.Keys(p.templates))
}

// Render fills template id with data and renders it. Every value is
// sanitized before use; missing values take the template defaults.
func (p *Processor) Render(ctx context.Context, id string, data Data, opts Options) (Content, error) {
	p.mu.RLock()
	tpl, ok := p.templates[id]
	p.mu.RUnlock()
	if !ok {
		return Content{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}

	opts = p.mergeOptions(opts)
	d := prepare(data, tpl.Defaults)
	for _, field := range tpl.DateFields {
		d[field] = FormatDate(d[field], opts.Locale)
	}
	if _, ok := d["clubName"]; ok && opts.Branding.ClubName == "" {
		opts.Branding.ClubName = d["clubName"]
	}

	return p.render(ctx, sanitizer.SingleLine(tpl.Subject(d)), tpl.Build(d), opts)
}

// RenderCustom renders an ad hoc subject and message.
func (p *Processor) RenderCustom(ctx context.Context, data CustomData, opts Options) (Content, error) {
	subject := sanitizer.SingleLine(sanitizer.SanitizeText(data.Subject))
	message := sanitizer.SanitizeText(data.Message)
	if subject == "" || message == "" {
		return Content{}, fmt.Errorf("%w: subject and message are required", ErrInvalidTemplate)
	}

	body := Body{Paragraphs: splitParagraphs(message)}
	if name := sanitizer.SanitizeText(data.RecipientName); name != "" {
		body.Greeting = "Hello " + name + ","
	}
	if url := sanitizer.SanitizeURL(data.ActionURL); url != "" {
		text := sanitizer.SanitizeText(data.ActionText)
		if text == "" {
			text = "Open"
		}
		body.Action = &Action{Text: text, URL: url}
	}

	return p.render(ctx, subject, body, p.mergeOptions(opts))
}

func (p *Processor) render(ctx context.Context, subject string, body Body, opts Options) (Content, error) {
	var component templ.Component = BodyComponent(body, opts.Branding.PrimaryColor)
	if opts.Layout != LayoutNone {
		component = BrandedLayout(subject, opts.Branding, component)
	}

	html, err := Render(ctx, component)
	if err != nil {
		return Content{}, errors.Join(ErrRender, err)
	}

	return Content{
		Subject:  subject,
		HTMLBody: html,
		TextBody: PlainText(body, opts.Branding),
	}, nil
}

func (p *Processor) mergeOptions(opts Options) Options {
	if opts.Layout == "" {
		opts.Layout = p.defaults.Layout
	}
	if opts.Layout == "" {
		opts.Layout = LayoutBranded
	}
	if opts.Locale == "" {
		opts.Locale = p.defaults.Locale
	}
	b, def := &opts.Branding, p.defaults.Branding
	if b.ClubName == "" {
		b.ClubName = def.ClubName
	}
	if b.LogoURL == "" {
		b.LogoURL = def.LogoURL
	}
	if b.PrimaryColor == "" {
		b.PrimaryColor = def.PrimaryColor
	}
	if b.FooterText == "" {
		b.FooterText = def.FooterText
	}
	b.ClubName = sanitizer.SingleLine(sanitizer.SanitizeText(b.ClubName))
	b.FooterText = sanitizer.SanitizeText(b.FooterText)
	b.LogoURL = sanitizer.SanitizeURL(b.LogoURL)
	return opts
}

// prepare sanitizes every value and fills blanks from defaults.
// URL-valued fields (suffix "Url") keep only safe schemes.
func prepare(data, defaults Data) Data {
	d := make(Data, len(defaults)+len(data))
	for k, v := range data {
		if strings.HasSuffix(k, "Url") {
			d[k] = sanitizer.SanitizeURL(v)
			continue
		}
		d[k] = sanitizer.SanitizeText(v)
	}
	for k, v := range defaults {
		if d[k] == "" {
			d[k] = v
		}
	}
	return d
}

// PlainText renders the text alternative of a body.
func PlainText(b Body, brand Branding) string {
	var sb strings.Builder
	if b.Heading != "" {
		sb.WriteString(b.Heading + "\n\n")
	}
	if b.Greeting != "" {
		sb.WriteString(b.Greeting + "\n\n")
	}
	for _, p := range b.Paragraphs {
		sb.WriteString(p + "\n\n")
	}
	for _, d := range b.Details {
		sb.WriteString(d.Label + ": " + d.Value + "\n")
	}
	if len(b.Details) > 0 {
		sb.WriteString("\n")
	}
	if b.Action != nil && b.Action.URL != "" {
		sb.WriteString(b.Action.Text + ": " + b.Action.URL + "\n\n")
	}
	if b.Closing != "" {
		sb.WriteString(b.Closing + "\n")
	}
	if brand.FooterText != "" {
		sb.WriteString("\n--\n" + brand.FooterText + "\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func splitParagraphs(s string) []string {
	var out []string
	for p := range strings.SplitSeq(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
