// Package adapt holds the downstream body-adaptation hooks that a
// Server invokes once it has an embedded HTTP request or response body in
// hand: the decoder's job ends at "here is a head and a sequence of body
// chunks"; what to do about the content is always delegated to one of
// these.
package adapt

import "net/http"

// Handler is the content-adaptation contract. ReqmodBody is given a fully
// reassembled embedded HTTP request and its body and returns a possibly
// rewritten body; ok reports whether it actually changed anything, which
// the server uses to choose between an ICAP 200 (modified) and a 204 (no
// content) response. RespmodBody is the RESPMOD analogue.
type Handler interface {
	ReqmodBody(req *http.Request, body []byte) (modified []byte, ok bool, err error)
	RespmodBody(res *http.Response, body []byte) (modified []byte, ok bool, err error)
}
