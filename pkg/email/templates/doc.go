// Package templates renders email content for the delivery engine.
//
// A Processor holds named templates (event request confirmation,
// approval, rejection, reminder and admin alerts are built in) and turns
// a template id plus Data into Content: subject, HTML and plain text.
// Every interpolated value passes through sanitizer.SanitizeText before
// it is embedded, and HTML output is escaped by templ. Missing values
// fall back to per-template defaults such as "Date TBD".
//
// The branded layout wraps the body in a document shell with the club's
// name, logo, color and footer. Locale decides the date order used for
// date fields.
package templates
