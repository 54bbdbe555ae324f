package form

// ParserError reports a configuration or dispatch problem: a missing
// boundary, an unsupported Content-Type, or (with
// Config.UploadErrorOnBadCTE) an unrecognized per-part
// Content-Transfer-Encoding. It is the umbrella alongside
// querystring.ParseError and multipart.ParseError, which surface
// their own concrete types directly rather than being wrapped.
type ParserError struct {
	Reason string
}

func (e *ParserError) Error() string {
	return "form: " + e.Reason
}
