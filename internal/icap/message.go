package icap

import "strings"

// headerEntry is one header name/value pair in insertion order.
type headerEntry struct {
	Name  string
	Value string
}

// Headers is a case-insensitive, order-preserving, duplicate-preserving
// multi-map, used for both the ICAP header block and embedded HTTP header
// blocks (§3, §4.E).
type Headers struct {
	entries []headerEntry
}

// Add appends a name/value pair. Duplicate names are preserved as
// additional entries rather than overwritten.
func (h *Headers) Add(name, value string) {
	h.entries = append(h.entries, headerEntry{Name: name, Value: value})
}

// Get returns the first value recorded for name, ASCII case-insensitively.
func (h *Headers) Get(name string) (string, bool) {
	for _, e := range h.entries {
		if strings.EqualFold(e.Name, name) {
			return e.Value, true
		}
	}
	return "", false
}

// Values returns every value recorded for name, in insertion order.
func (h *Headers) Values(name string) []string {
	var out []string
	for _, e := range h.entries {
		if strings.EqualFold(e.Name, name) {
			out = append(out, e.Value)
		}
	}
	return out
}

// Has reports whether name was recorded at least once.
func (h *Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Clear empties the header list without discarding the backing array.
func (h *Headers) Clear() {
	h.entries = h.entries[:0]
}

// Len returns the number of header entries, counting duplicates.
func (h *Headers) Len() int {
	return len(h.entries)
}

// All returns the header entries in insertion order, for serialization or
// round-trip checks.
func (h *Headers) All() []headerEntry {
	return h.entries
}

// HTTPHead is an embedded HTTP request or response head parsed out of the
// Encapsulated body region (§3).
type HTTPHead struct {
	// Populated for an embedded HTTP request head.
	Method string
	URI    string

	// Populated for an embedded HTTP response head.
	StatusCode int
	Reason     string

	// Common to both.
	Proto   string
	Headers Headers
}

// MessageBuilder is the contract the decoder requires of the caller-
// supplied IcapMessage implementation (§4.D). The decoder calls
// CreateMessage exactly once per message, immediately after the initial
// line is split, then mutates the returned builder until it emits the
// message and never touches it again.
type MessageBuilder interface {
	ClearHeaders()
	AddHeader(name, value string)
	ContainsHeader(name string) bool
	GetHeader(name string) (string, bool)
	GetHeaderValues(name string) []string
	GetMethod() string
	SetEncapsulatedHeader(e *EncapsulatedHeader)
	GetEncapsulatedHeader() *EncapsulatedHeader
	SetRequestHead(h *HTTPHead)
	GetRequestHead() *HTTPHead
	SetResponseHead(h *HTTPHead)
	GetResponseHead() *HTTPHead
}

// CreateMessageFunc is the caller-supplied factory hook invoked once the
// ICAP initial line has been split into its three tokens. It may reject
// the line by returning an error, which the decoder treats as a locally
// recovered InvalidInitialLine (§7).
type CreateMessageFunc func(method, uri, version string) (MessageBuilder, error)

// Message is the default MessageBuilder implementation: an opaque,
// mutable object the decoder populates and the caller receives ownership
// of on emission (§4.D).
type Message struct {
	Method  string
	URI     string
	Version string

	headers      Headers
	encapsulated *EncapsulatedHeader
	requestHead  *HTTPHead
	responseHead *HTTPHead
}

// NewMessage constructs a Message from the split ICAP initial line. It is
// the default CreateMessageFunc used by cmd/icapd and cmd/icapctl; callers
// embedding the decoder in their own pipeline may supply a different
// factory that wraps a richer domain object instead.
func NewMessage(method, uri, version string) (MessageBuilder, error) {
	return &Message{Method: method, URI: uri, Version: version}, nil
}

func (m *Message) ClearHeaders()                { m.headers.Clear() }
func (m *Message) AddHeader(name, value string)  { m.headers.Add(name, value) }
func (m *Message) ContainsHeader(name string) bool { return m.headers.Has(name) }
func (m *Message) GetHeader(name string) (string, bool) { return m.headers.Get(name) }
func (m *Message) GetHeaderValues(name string) []string { return m.headers.Values(name) }
func (m *Message) GetMethod() string { return m.Method }

func (m *Message) SetEncapsulatedHeader(e *EncapsulatedHeader) { m.encapsulated = e }
func (m *Message) GetEncapsulatedHeader() *EncapsulatedHeader  { return m.encapsulated }

func (m *Message) SetRequestHead(h *HTTPHead) { m.requestHead = h }
func (m *Message) GetRequestHead() *HTTPHead   { return m.requestHead }

func (m *Message) SetResponseHead(h *HTTPHead) { m.responseHead = h }
func (m *Message) GetResponseHead() *HTTPHead  { return m.responseHead }

// Headers exposes the full ICAP header list for read-only use by callers
// once the message has been emitted.
func (m *Message) Headers() *Headers { return &m.headers }
