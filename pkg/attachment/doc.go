// Package attachment resolves attachments that are stored by reference.
//
// A queued email may carry attachment content inline or a reference such as
// s3://bucket/key or file://reports/summary.pdf. Loader dispatches each
// reference to the Resolver registered for its scheme and returns the
// inline attachments a provider expects:
//
//	s3r, err := attachment.NewS3Resolver(ctx, cfg.S3, attachment.WithMaxSize(cfg.MaxSize))
//	if err != nil {
//		return err
//	}
//	loader := attachment.NewLoader().Handle("s3", s3r)
//	files, err := loader.Load(ctx, queued.Attachments)
//
// Resolvers enforce a per-object size limit and report missing objects with
// ErrNotFound, oversized ones with ErrTooLarge.
package attachment
