package binder

import "net/http"

// Query binds URL query parameters to fields tagged `query:"name"`.
// Slices take repeated or comma separated values; pointers mark optional fields.
func Query() Func {
	return func(r *http.Request, v any) error {
		return bindToStruct(v, "query", r.URL.Query(), ErrFailedToParseQuery)
	}
}
