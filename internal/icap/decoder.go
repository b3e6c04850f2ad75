// Package icap implements a resumable, byte-driven decoder for the
// Internet Content Adaptation Protocol (RFC 3507). The Decoder in this
// file is the core described in the design: it never blocks on I/O and
// never retains a reference into a caller's buffer across a suspension —
// every call to Decode consumes a prefix of buf and reports how many
// bytes it used, exactly like a bufio.SplitFunc.
package icap

import "strconv"

type decoderState int

const (
	stateSkipControl decoderState = iota
	stateReadIcapInitial
	stateReadIcapHeader
	stateReadHTTPRequestHeader
	stateReadHTTPResponseHeader
	stateReadHTTPBody
)

// EventKind discriminates the outcome of a Decode call. NeedMore is a
// control signal, never an error; the remaining kinds correspond to the
// six outcomes of §6 plus three additive, more granular kinds (RequestHead,
// ResponseHead, AwaitingPreviewDecision) that give callers a hook on each
// embedded HTTP head and on the Preview pause, without removing anything
// from the abstract contract.
type EventKind int

const (
	NeedMore EventKind = iota
	MessageHead
	RequestHead
	ResponseHead
	BodyChunk
	PreviewComplete
	AwaitingPreviewDecision
	EndOfMessage
	ErrorEvent
)

// Event is the tagged result of one Decode call.
type Event struct {
	Kind    EventKind
	Message MessageBuilder // set on MessageHead, RequestHead, ResponseHead, EndOfMessage
	Chunk   []byte         // set on BodyChunk
	Err     error          // set on ErrorEvent
}

// Decoder is the resumable ICAP state machine of §4.E. It is not
// internally synchronised and must be owned by exactly one logical caller
// (§5).
type Decoder struct {
	maxInitialLineLength int
	maxIcapHeaderSize    int
	maxChunkSize         int
	isRequest            bool
	createMessage        CreateMessageFunc

	state decoderState
	msg   MessageBuilder

	headerDelim *sizeDelimiter

	previewRequested bool
	previewActive    bool
	awaitingContinue bool
	pendingEndOfMsg  bool

	fatal *DecodeError
}

// NewDecoder constructs a Decoder with the three size budgets of §3. All
// three must be non-negative and maxInitialLineLength/maxIcapHeaderSize
// must be strictly positive; maxChunkSize may be 0 to disallow bodies
// entirely. isRequest is fixed for the life of the decoder and reported
// back by IsDecodingRequest. createMessage is invoked exactly once per
// message, immediately after the initial line is split.
func NewDecoder(maxInitialLineLength, maxIcapHeaderSize, maxChunkSize int, isRequest bool, createMessage CreateMessageFunc) (*Decoder, error) {
	if maxInitialLineLength <= 0 {
		return nil, newDecodeError(ErrInvalidArgument, "maxInitialLineLength must be positive, got %d", maxInitialLineLength)
	}
	if maxIcapHeaderSize <= 0 {
		return nil, newDecodeError(ErrInvalidArgument, "maxIcapHeaderSize must be positive, got %d", maxIcapHeaderSize)
	}
	if maxChunkSize < 0 {
		return nil, newDecodeError(ErrInvalidArgument, "maxChunkSize must not be negative, got %d", maxChunkSize)
	}
	if createMessage == nil {
		return nil, newDecodeError(ErrInvalidArgument, "createMessage must not be nil")
	}
	return &Decoder{
		maxInitialLineLength: maxInitialLineLength,
		maxIcapHeaderSize:    maxIcapHeaderSize,
		maxChunkSize:         maxChunkSize,
		isRequest:            isRequest,
		createMessage:        createMessage,
		state:                stateSkipControl,
	}, nil
}

// IsDecodingRequest reports the isRequest flag fixed at construction.
func (d *Decoder) IsDecodingRequest() bool { return d.isRequest }

// Continue tells the decoder that the caller has decided to request the
// remainder of a previewed body. It has no effect outside
// AwaitingPreviewDecision.
func (d *Decoder) Continue() {
	d.awaitingContinue = false
	d.previewActive = false
}

// Acknowledge clears a fatal error and resets the decoder to
// SkipControlChars, ready for the next message. Per §7, a fatal error
// repeats on every Decode call until the caller acknowledges it.
func (d *Decoder) Acknowledge() {
	d.fatal = nil
	d.state = stateSkipControl
	d.msg = nil
	d.headerDelim = nil
	d.previewRequested = false
	d.previewActive = false
	d.awaitingContinue = false
	d.pendingEndOfMsg = false
}

// Decode consumes a prefix of buf and returns the next Event along with
// how many bytes of buf it consumed. The caller must drop exactly that
// many bytes from the front of its buffer before the next call — if
// Event.Kind is NeedMore, nothing was consumed and the caller must append
// more bytes to the same buffer before calling again.
func (d *Decoder) Decode(buf []byte) (Event, int) {
	if d.fatal != nil {
		return Event{Kind: ErrorEvent, Err: d.fatal}, 0
	}

	total := 0
	for {
		if d.pendingEndOfMsg {
			d.pendingEndOfMsg = false
			ev := Event{Kind: EndOfMessage, Message: d.msg}
			d.msg = nil
			d.state = stateSkipControl
			d.previewRequested = false
			d.previewActive = false
			d.awaitingContinue = false
			return ev, total
		}
		if d.awaitingContinue {
			return Event{Kind: AwaitingPreviewDecision}, total
		}

		switch d.state {

		case stateSkipControl:
			adv, found := skipControlCharacters(buf[total:])
			total += adv
			if !found {
				return Event{Kind: NeedMore}, total
			}
			d.state = stateReadIcapInitial

		case stateReadIcapInitial:
			line, adv, err := readLine(buf[total:], d.maxInitialLineLength)
			if err == errNeedMore {
				return Event{Kind: NeedMore}, total
			}
			if err != nil {
				return d.fail(err.(*DecodeError)), total
			}
			method, uri, version, ok := splitInitialLine(line)
			total += adv
			if !ok {
				// Tolerant re-sync (§7): discard and resume scanning for
				// the next message, never surfaced to the caller.
				d.state = stateSkipControl
				continue
			}
			msg, cerr := d.createMessage(method, uri, version)
			if cerr != nil {
				// Builder rejection before a message exists is likewise
				// recovered locally, per §7.
				d.state = stateSkipControl
				continue
			}
			d.msg = msg
			d.state = stateReadIcapHeader

		case stateReadIcapHeader:
			if d.headerDelim == nil {
				d.msg.ClearHeaders()
				d.headerDelim = newSizeDelimiter(d.maxIcapHeaderSize)
			}
			name, value, adv, blank, err := readHeaderEntry(buf[total:], d.headerDelim)
			if err == errNeedMore {
				return Event{Kind: NeedMore}, total
			}
			if err != nil {
				return d.fail(err.(*DecodeError)), total
			}
			total += adv
			if !blank {
				d.msg.AddHeader(name, value)
				continue
			}

			d.headerDelim = nil
			if ev, ok := d.finishIcapHeaders(); !ok {
				return ev, total
			}

		case stateReadHTTPRequestHeader:
			length, _ := d.msg.GetEncapsulatedHeader().SectionLength(SectionReqHdr)
			if len(buf[total:]) < length {
				return Event{Kind: NeedMore}, total
			}
			head, err := parseHTTPRequestHead(buf[total : total+length])
			if err != nil {
				return d.fail(err.(*DecodeError)), total
			}
			d.msg.SetRequestHead(head)
			total += length
			d.resolveAfterRequestHead()
			return Event{Kind: RequestHead, Message: d.msg}, total

		case stateReadHTTPResponseHeader:
			length, _ := d.msg.GetEncapsulatedHeader().SectionLength(SectionResHdr)
			if len(buf[total:]) < length {
				return Event{Kind: NeedMore}, total
			}
			head, err := parseHTTPResponseHead(buf[total : total+length])
			if err != nil {
				return d.fail(err.(*DecodeError)), total
			}
			d.msg.SetResponseHead(head)
			total += length
			d.resolveAfterResponseHead()
			return Event{Kind: ResponseHead, Message: d.msg}, total

		case stateReadHTTPBody:
			data, adv, terminal, ieof, err := readChunk(buf[total:], d.maxChunkSize)
			if err == errNeedMore {
				return Event{Kind: NeedMore}, total
			}
			if err != nil {
				return d.fail(err.(*DecodeError)), total
			}
			total += adv

			if !terminal {
				return Event{Kind: BodyChunk, Chunk: data}, total
			}

			if d.previewActive {
				d.previewActive = false
				if ieof {
					d.pendingEndOfMsg = true
				} else {
					d.awaitingContinue = true
				}
				return Event{Kind: PreviewComplete}, total
			}

			d.pendingEndOfMsg = true
		}
	}
}

// finishIcapHeaders runs once the blank line terminating the ICAP header
// block has been consumed: it enforces the mandatory Host/Encapsulated
// headers, parses Encapsulated, and selects the next state. On success it
// returns (zero Event, true) so Decode's loop continues; on a fatal error
// it returns the Error event and false.
func (d *Decoder) finishIcapHeaders() (Event, bool) {
	if !d.msg.ContainsHeader("Host") || !d.msg.ContainsHeader("Encapsulated") {
		return d.fail(newDecodeError(ErrMissingMandatoryHeader, "Host and Encapsulated headers are both required")), false
	}
	if len(d.msg.GetHeaderValues("Encapsulated")) > 1 {
		return d.fail(newDecodeError(ErrInvalidEncapsulatedHeader, "duplicate Encapsulated header")), false
	}

	encValue, _ := d.msg.GetHeader("Encapsulated")
	enc, err := parseEncapsulated(encValue, d.msg.GetMethod())
	if err != nil {
		return d.fail(err.(*DecodeError)), false
	}
	d.msg.SetEncapsulatedHeader(enc)

	if previewStr, ok := d.msg.GetHeader("Preview"); ok {
		if _, perr := strconv.Atoi(previewStr); perr == nil {
			d.previewRequested = true
		}
	}

	d.resolveAfterHeaders()
	return Event{Kind: MessageHead, Message: d.msg}, true
}

func (d *Decoder) resolveAfterHeaders() {
	enc := d.msg.GetEncapsulatedHeader()
	switch {
	case enc.Has(SectionReqHdr):
		d.state = stateReadHTTPRequestHeader
	case enc.Has(SectionResHdr):
		d.state = stateReadHTTPResponseHeader
	default:
		d.resolveBodyOrEnd(enc)
	}
}

func (d *Decoder) resolveAfterRequestHead() {
	enc := d.msg.GetEncapsulatedHeader()
	if enc.Has(SectionResHdr) {
		d.state = stateReadHTTPResponseHeader
		return
	}
	d.resolveBodyOrEnd(enc)
}

func (d *Decoder) resolveAfterResponseHead() {
	d.resolveBodyOrEnd(d.msg.GetEncapsulatedHeader())
}

func (d *Decoder) resolveBodyOrEnd(enc *EncapsulatedHeader) {
	if kind, ok := enc.BodyKind(); ok && kind != SectionNullBody {
		d.state = stateReadHTTPBody
		d.previewActive = d.previewRequested
		return
	}
	d.state = stateSkipControl
	d.pendingEndOfMsg = true
}

func (d *Decoder) fail(err *DecodeError) Event {
	d.fatal = err
	return Event{Kind: ErrorEvent, Err: err}
}
