package pipeline

import "net/http"

// Params holds route parameters for one request.
type Params map[string]string

// Request is the per-request state shared by hooks and the resource.
type Request struct {
	*http.Request

	Params Params

	// Text is the raw decoded body, set by the body parser.
	Text    string
	HasText bool

	// JSON is the structured request value, set by the body parser. Forms
	// yield a map[string]any; JSON bodies yield whatever document was sent.
	JSON    any
	HasJSON bool
}

// SetText stores the raw decoded body.
func (r *Request) SetText(s string) {
	r.Text = s
	r.HasText = true
}

// SetJSON stores the structured request value.
func (r *Request) SetJSON(v any) {
	r.JSON = v
	r.HasJSON = true
}

// Response is the response under construction. Nothing reaches the client
// until every hook has run.
type Response struct {
	Status int
	Header http.Header

	// Body is the raw body. nil means the handler did not set one; an
	// empty string is a body.
	Body *string

	// JSON is the structured response value. nil means none.
	JSON any
}

// NewResponse returns a Response with status 200 and no body.
func NewResponse() *Response {
	return &Response{Status: http.StatusOK, Header: make(http.Header)}
}

// SetBody sets the raw body.
func (r *Response) SetBody(s string) {
	r.Body = &s
}

// HasBody reports whether a raw body was set, even an empty one.
func (r *Response) HasBody() bool {
	return r.Body != nil
}
