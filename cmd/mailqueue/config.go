package main

import (
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/adminapi"
	"github.com/dmitrymomot/mailqueue/pkg/attachment"
	"github.com/dmitrymomot/mailqueue/pkg/dispatcher"
	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/email/templates"
	"github.com/dmitrymomot/mailqueue/pkg/httpserver"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/mongo"
	"github.com/dmitrymomot/mailqueue/pkg/opensearch"
	"github.com/dmitrymomot/mailqueue/pkg/pg"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
	"github.com/dmitrymomot/mailqueue/pkg/redis"
)

// appConfig is everything the binary reads from the environment.
type appConfig struct {
	Log        logger.Config
	Postgres   pg.Config
	Redis      redis.Config
	Mongo      mongo.Config
	OpenSearch opensearch.Config
	HTTP       httpserver.Config
	Admin      adminapi.Config
	Email      email.Config
	Attachment attachment.Config
	Dispatch   dispatcher.Config

	// Queue is the base policy. PolicyFile, when present, overlays it and is
	// re-read at the start of every dispatch cycle.
	Queue      queue.Config
	PolicyFile string `env:"QUEUE_POLICY_FILE" envDefault:"./mailqueue.yaml"`

	Audit auditConfig

	// Branding wraps rendered templates.
	ClubName     string `env:"BRAND_CLUB_NAME" envDefault:"Club Federation"`
	LogoURL      string `env:"BRAND_LOGO_URL"`
	PrimaryColor string `env:"BRAND_PRIMARY_COLOR" envDefault:"#1d4ed8"`
	FooterText   string `env:"BRAND_FOOTER_TEXT"`

	JanitorInterval time.Duration `env:"JANITOR_INTERVAL" envDefault:"1m"`
}

type auditConfig struct {
	BufferSize     int           `env:"AUDIT_BUFFER_SIZE" envDefault:"1024"`
	BatchSize      int           `env:"AUDIT_BATCH_SIZE" envDefault:"100"`
	BatchTimeout   time.Duration `env:"AUDIT_BATCH_TIMEOUT" envDefault:"10ms"`
	StorageTimeout time.Duration `env:"AUDIT_STORAGE_TIMEOUT" envDefault:"5s"`
}

func (c appConfig) branding() templates.Options {
	return templates.Options{
		Layout: templates.LayoutBranded,
		Branding: templates.Branding{
			ClubName:     c.ClubName,
			LogoURL:      c.LogoURL,
			PrimaryColor: c.PrimaryColor,
			FooterText:   c.FooterText,
		},
	}
}
