package attachment

// Config selects and configures the reference resolvers.
type Config struct {
	// LocalDir is the root for file:// references. Empty disables them.
	LocalDir string `env:"ATTACHMENT_LOCAL_DIR"`

	// MaxSize caps a single resolved attachment in bytes.
	MaxSize int64 `env:"ATTACHMENT_MAX_SIZE" envDefault:"10485760"`

	S3 S3Config
}

// S3Config configures the s3:// resolver. An empty Region disables it.
type S3Config struct {
	Region      string `env:"S3_REGION"`
	AccessKeyID string `env:"S3_ACCESS_KEY_ID"`
	SecretKey   string `env:"S3_SECRET_KEY"`

	// Endpoint is set for S3-compatible services such as MinIO,
	// which usually also need ForcePathStyle.
	Endpoint       string `env:"S3_ENDPOINT"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
}
