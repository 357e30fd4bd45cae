package email

import "time"

// Provider names accepted by NewSender.
const (
	ProviderPostmark = "postmark"
	ProviderSMTP     = "smtp"
	ProviderDev      = "dev"
	ProviderSimulate = "simulate"
)

// Config selects and configures the outbound transport.
// An empty Provider picks postmark when a server token is present and
// falls back to the simulate sender otherwise.
type Config struct {
	Provider     string `env:"EMAIL_PROVIDER"`
	SenderEmail  string `env:"SENDER_EMAIL,required"`
	SupportEmail string `env:"SUPPORT_EMAIL"`
	DevDir       string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`

	Postmark PostmarkConfig
	SMTP     SMTPConfig
	DKIM     DKIMConfig
}

// PostmarkConfig holds Postmark API credentials and tracking flags.
type PostmarkConfig struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	TrackOpens   bool   `env:"POSTMARK_TRACK_OPENS" envDefault:"true"`
	TrackLinks   string `env:"POSTMARK_TRACK_LINKS" envDefault:"HtmlOnly"`
}

// SMTPConfig describes the relay used by SMTPSender.
type SMTPConfig struct {
	Host        string        `env:"SMTP_HOST"`
	Port        int           `env:"SMTP_PORT" envDefault:"587"`
	Username    string        `env:"SMTP_USERNAME"`
	Password    string        `env:"SMTP_PASSWORD"`
	HelloName   string        `env:"SMTP_HELO" envDefault:"localhost"`
	StartTLS    bool          `env:"SMTP_STARTTLS" envDefault:"true"`
	DialTimeout time.Duration `env:"SMTP_DIAL_TIMEOUT" envDefault:"10s"`
}

// DKIMConfig enables DKIM signing for SMTP delivery when Selector is set.
type DKIMConfig struct {
	Domain     string `env:"DKIM_DOMAIN"`
	Selector   string `env:"DKIM_SELECTOR"`
	KeyPath    string `env:"DKIM_KEY_PATH"`
	PrivateKey string `env:"DKIM_PRIVATE_KEY"`
}
