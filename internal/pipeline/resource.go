package pipeline

import "net/http"

// Resource is the target of a route. It answers methods by implementing
// any of Getter, Poster, Putter, Patcher and Deleter, and may declare
// capability flags through BodyParserOptOut and SecretPolicy.
type Resource any

// Responder handles one method of a resource.
type Responder func(req *Request, resp *Response) error

// Method responders.
type (
	Getter   interface{ OnGet(req *Request, resp *Response) error }
	Poster   interface{ OnPost(req *Request, resp *Response) error }
	Putter   interface{ OnPut(req *Request, resp *Response) error }
	Patcher  interface{ OnPatch(req *Request, resp *Response) error }
	Deleter  interface{ OnDelete(req *Request, resp *Response) error }
	Optioner interface{ OnOptions(req *Request, resp *Response) error }
)

// BodyParserOptOut is implemented by resources that handle their own body.
type BodyParserOptOut interface {
	DisableBodyParser() bool
}

// SecretPolicy is implemented by resources that decide whether the shared
// secret is required to reach them.
type SecretPolicy interface {
	SecretRequired() bool
}

// BodyParserDisabled reports whether res opted out of body parsing.
// Resources without the flag are parsed.
func BodyParserDisabled(res Resource) bool {
	o, ok := res.(BodyParserOptOut)
	return ok && o.DisableBodyParser()
}

// RequiresSecret reports whether res demands the shared secret. Resources
// without the flag require it.
func RequiresSecret(res Resource) bool {
	p, ok := res.(SecretPolicy)
	return !ok || p.SecretRequired()
}

// ResponderFor returns the responder of res for method. HEAD is served by
// OnGet.
func ResponderFor(res Resource, method string) (Responder, bool) {
	switch method {
	case http.MethodGet, http.MethodHead:
		if r, ok := res.(Getter); ok {
			return r.OnGet, true
		}
	case http.MethodPost:
		if r, ok := res.(Poster); ok {
			return r.OnPost, true
		}
	case http.MethodPut:
		if r, ok := res.(Putter); ok {
			return r.OnPut, true
		}
	case http.MethodPatch:
		if r, ok := res.(Patcher); ok {
			return r.OnPatch, true
		}
	case http.MethodDelete:
		if r, ok := res.(Deleter); ok {
			return r.OnDelete, true
		}
	}
	return nil, false
}

// AllowedMethods lists the methods res answers. OPTIONS is always
// allowed; without an Optioner it is answered with the Allow header.
func AllowedMethods(res Resource) []string {
	var out []string
	if _, ok := res.(Getter); ok {
		out = append(out, http.MethodGet, http.MethodHead)
	}
	if _, ok := res.(Poster); ok {
		out = append(out, http.MethodPost)
	}
	if _, ok := res.(Putter); ok {
		out = append(out, http.MethodPut)
	}
	if _, ok := res.(Patcher); ok {
		out = append(out, http.MethodPatch)
	}
	if _, ok := res.(Deleter); ok {
		out = append(out, http.MethodDelete)
	}
	return append(out, http.MethodOptions)
}
