// Package binder fills request structs from HTTP requests.
//
// Each binder handles one source and one struct tag:
//
//   - JSON / OptionalJSON: strict JSON bodies (unknown fields rejected, 1 MB cap)
//   - Query: `query:"name"` fields from the URL query
//   - Path: `path:"name"` fields through a router extractor such as chi.URLParam
//
// Supported field types are strings (including named string types such as
// queue.Status), integers, floats, bools, time.Duration, anything implementing
// encoding.TextUnmarshaler (uuid.UUID, time.Time), pointers to those for
// optional values, and slices for repeated or comma separated parameters.
//
//	type listRequest struct {
//		Statuses []queue.Status `query:"status"`
//		Limit    int            `query:"limit"`
//	}
//
//	var req listRequest
//	if err := binder.Query()(r, &req); err != nil {
//		// errors.Is(err, binder.ErrFailedToParseQuery)
//	}
package binder
