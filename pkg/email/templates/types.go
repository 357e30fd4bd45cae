package templates

// Built-in template ids.
const (
	EventRequestConfirmation = "event_request_confirmation"
	EventApproved            = "event_approved"
	EventRejected            = "event_rejected"
	EventReminder            = "event_reminder"
	AdminAlert               = "admin_alert"
)

// Layout names the document shell wrapped around a body.
type Layout string

const (
	LayoutNone    Layout = "none"
	LayoutBranded Layout = "branded"
)

// Branding customizes the branded layout for a club.
type Branding struct {
	ClubName     string `json:"club_name,omitempty" yaml:"club_name"`
	LogoURL      string `json:"logo_url,omitempty" yaml:"logo_url"`
	PrimaryColor string `json:"primary_color,omitempty" yaml:"primary_color"`
	FooterText   string `json:"footer_text,omitempty" yaml:"footer_text"`
}

// Options control how content is wrapped and how dates are formatted.
// An empty Layout means LayoutBranded; an empty Locale means "en".
type Options struct {
	Layout   Layout
	Branding Branding
	Locale   string
}

// Data carries interpolation values keyed by field name.
type Data map[string]string

// Content is the rendered result handed to a sender.
type Content struct {
	Subject  string
	HTMLBody string
	TextBody string
}

// CustomData is an ad hoc message without a registered template.
type CustomData struct {
	Subject       string
	Message       string
	RecipientName string
	ActionText    string
	ActionURL     string
}

// Action is a call-to-action link rendered as a button.
type Action struct {
	Text string
	URL  string
}

// Detail is a labelled value in a details table.
type Detail struct {
	Label string
	Value string
}

// Body is the layout-independent structure of a message.
type Body struct {
	Greeting   string
	Heading    string
	Paragraphs []string
	Details    []Detail
	Action     *Action
	Closing    string
}

// Template builds a subject and body from sanitized data.
// Missing fields are filled from Defaults before Build is called.
type Template struct {
	ID       string
	Defaults Data
	// DateFields are formatted according to the render locale.
	DateFields []string
	Subject    func(d Data) string
	Build      func(d Data) Body
}
