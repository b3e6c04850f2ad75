// Package server drives the resumable icap.Decoder over a live
// net.Conn, the way the teacher's handleConnection drove its own
// line-at-a-time parser, and dispatches completed messages to an
// adapt.Handler.
package server

import (
	"bufio"
	"bytes"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"

	"tokenshield-icapd/internal/adapt"
	"tokenshield-icapd/internal/icap"
	"tokenshield-icapd/internal/ratelimit"
)

// Limits bundles the three size budgets the decoder is constructed with.
type Limits struct {
	MaxInitialLine int
	MaxICAPHeader  int
	MaxChunk       int
}

// Server accepts ICAP connections and adapts REQMOD/RESPMOD bodies
// through a Handler.
type Server struct {
	Limits  Limits
	Handler adapt.Handler
	Limiter *ratelimit.Limiter
	Debug   bool
}

// readBuf grows as bytes arrive from the connection and is compacted as
// the decoder consumes a prefix of it; this is the "caller owns the
// buffer" side of the decoder's resumable contract.
type readBuf struct {
	data []byte
}

func (b *readBuf) fill(conn net.Conn) error {
	tmp := make([]byte, 4096)
	n, err := conn.Read(tmp)
	if n > 0 {
		b.data = append(b.data, tmp[:n]...)
	}
	return err
}

func (b *readBuf) consume(n int) {
	b.data = b.data[n:]
}

// HandleConnection decodes and adapts every ICAP message sent over conn
// until the connection closes or a fatal decode error forces it shut.
func (s *Server) HandleConnection(conn net.Conn) {
	defer conn.Close()

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	if s.Limiter != nil && !s.Limiter.Allow(host) {
		if s.Debug {
			log.Printf("DEBUG: rate limit rejected %s", host)
		}
		return
	}

	if s.Debug {
		log.Printf("DEBUG: new connection from %s", conn.RemoteAddr())
	}

	w := bufio.NewWriter(conn)
	buf := &readBuf{}

	for {
		d, err := icap.NewDecoder(s.Limits.MaxInitialLine, s.Limits.MaxICAPHeader, s.Limits.MaxChunk, true, icap.NewMessage)
		if err != nil {
			log.Printf("ERROR: failed to construct decoder: %v", err)
			return
		}
		if err := s.handleOneMessage(conn, w, buf, d); err != nil {
			if s.Debug {
				log.Printf("DEBUG: connection from %s ended: %v", conn.RemoteAddr(), err)
			}
			return
		}
	}
}

// handleOneMessage decodes exactly one ICAP message (OPTIONS, REQMOD or
// RESPMOD) off buf/conn and writes its response.
func (s *Server) handleOneMessage(conn net.Conn, w *bufio.Writer, buf *readBuf, d *icap.Decoder) error {
	var (
		msg    icap.MessageBuilder
		method string
		body   bytes.Buffer
	)

	for {
		ev, adv := d.Decode(buf.data)
		buf.consume(adv)

		switch ev.Kind {
		case icap.NeedMore:
			if err := buf.fill(conn); err != nil {
				return err
			}

		case icap.MessageHead:
			// OPTIONS carries no body the caller needs, but an opt-body
			// may still follow on the wire (§4.C); the response is
			// deferred to EndOfMessage so the decoder fully drains it
			// first and the next message on this connection doesn't
			// start mid-body.
			msg = ev.Message
			method = msg.GetMethod()

		case icap.RequestHead, icap.ResponseHead:
			// Head is retained on msg; nothing further to do until the
			// body (or EndOfMessage, for a headers-only message) arrives.

		case icap.BodyChunk:
			body.Write(ev.Chunk)

		case icap.PreviewComplete:
			// Nothing to do yet: the very next event tells us whether the
			// preview ended with "ieof" (EndOfMessage follows directly,
			// nothing more is ever coming) or needs a decision
			// (AwaitingPreviewDecision follows). A production gateway
			// would also decide here whether the preview already told it
			// enough to skip adaptation and answer "204 No Content"
			// instead of continuing; this decoder always continues.

		case icap.AwaitingPreviewDecision:
			if _, err := w.WriteString("ICAP/1.0 100 Continue\r\n\r\n"); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
			d.Continue()

		case icap.EndOfMessage:
			if method == "OPTIONS" {
				return writeOptions(w, 0)
			}
			return s.respond(w, msg, method, body.Bytes())

		case icap.ErrorEvent:
			de, _ := ev.Err.(*icap.DecodeError)
			log.Printf("ERROR: decode failed: %v", ev.Err)
			code := 400
			if de != nil && de.Kind == icap.ErrFrameTooLong {
				code = 413
			}
			if werr := writeError(w, code, "Bad Request"); werr != nil {
				return werr
			}
			return fmt.Errorf("fatal decode error: %w", ev.Err)
		}
	}
}

func (s *Server) respond(w *bufio.Writer, msg icap.MessageBuilder, method string, body []byte) error {
	enc := msg.GetEncapsulatedHeader()
	if enc == nil {
		return writeNoContent(w)
	}

	switch {
	case enc.Has(icap.SectionReqHdr) && method == "REQMOD":
		req, err := requestFromHead(msg.GetRequestHead())
		if err != nil {
			return writeError(w, 500, "Internal Server Error")
		}
		modified, ok, err := s.Handler.ReqmodBody(req, body)
		if err != nil {
			log.Printf("ERROR: ReqmodBody failed: %v", err)
			return writeError(w, 500, "Internal Server Error")
		}
		if !ok {
			return writeNoContent(w)
		}
		return writeModifiedRequest(w, req, modified)

	case enc.Has(icap.SectionResHdr) && method == "RESPMOD":
		res, err := responseFromHead(msg.GetResponseHead())
		if err != nil {
			return writeError(w, 500, "Internal Server Error")
		}
		modified, ok, err := s.Handler.RespmodBody(res, body)
		if err != nil {
			log.Printf("ERROR: RespmodBody failed: %v", err)
			return writeError(w, 500, "Internal Server Error")
		}
		if !ok {
			return writeNoContent(w)
		}
		return writeModifiedResponse(w, res, modified)

	default:
		return writeNoContent(w)
	}
}

func requestFromHead(head *icap.HTTPHead) (*http.Request, error) {
	if head == nil {
		return nil, fmt.Errorf("missing embedded HTTP request head")
	}
	u, err := url.Parse(head.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid embedded request URI %q: %w", head.URI, err)
	}
	req := &http.Request{
		Method: head.Method,
		URL:    u,
		Proto:  head.Proto,
		Header: make(http.Header),
	}
	for _, e := range head.Headers.All() {
		req.Header.Add(e.Name, e.Value)
	}
	return req, nil
}

func responseFromHead(head *icap.HTTPHead) (*http.Response, error) {
	if head == nil {
		return nil, fmt.Errorf("missing embedded HTTP response head")
	}
	res := &http.Response{
		StatusCode: head.StatusCode,
		Proto:      head.Proto,
		Header:     make(http.Header),
	}
	for _, e := range head.Headers.All() {
		res.Header.Add(e.Name, e.Value)
	}
	return res, nil
}
