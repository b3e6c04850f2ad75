package server

import (
	"bytes"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"tokenshield-icapd/internal/adapt"
)

// mockConn implements net.Conn over in-memory buffers, so a Server can be
// driven end to end without opening a real socket.
type mockConn struct {
	readBuffer  *bytes.Buffer
	writeBuffer *bytes.Buffer
}

func (m *mockConn) Read(b []byte) (int, error)  { return m.readBuffer.Read(b) }
func (m *mockConn) Write(b []byte) (int, error) { return m.writeBuffer.Write(b) }
func (m *mockConn) Close() error                { return nil }
func (m *mockConn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1344}
}
func (m *mockConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 12345}
}
func (m *mockConn) SetDeadline(t time.Time) error      { return nil }
func (m *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }

// noopHandler never modifies anything, exercising the 204 path.
type noopHandler struct{}

func (noopHandler) ReqmodBody(*http.Request, []byte) ([]byte, bool, error)   { return nil, false, nil }
func (noopHandler) RespmodBody(*http.Response, []byte) ([]byte, bool, error) { return nil, false, nil }

var _ adapt.Handler = noopHandler{}

func newConn(request string) *mockConn {
	return &mockConn{
		readBuffer:  bytes.NewBufferString(request),
		writeBuffer: &bytes.Buffer{},
	}
}

func TestHandleConnectionOptions(t *testing.T) {
	conn := newConn("OPTIONS icap://example.net/services/echo ICAP/1.0\r\n" +
		"Host: example.net\r\n" +
		"Encapsulated: null-body=0\r\n" +
		"\r\n")

	s := &Server{
		Limits:  Limits{MaxInitialLine: 4096, MaxICAPHeader: 8192, MaxChunk: 65536},
		Handler: noopHandler{},
	}
	s.HandleConnection(conn)

	out := conn.writeBuffer.String()
	if !strings.HasPrefix(out, "ICAP/1.0 200 OK") {
		t.Fatalf("got response %q, want a 200 OK OPTIONS response", out)
	}
	if !strings.Contains(out, "Methods: REQMOD, RESPMOD") {
		t.Fatalf("got response %q, want advertised methods", out)
	}
}

func TestHandleConnectionReqmodNullBodyIsNoContent(t *testing.T) {
	embeddedReq := "GET /index.html HTTP/1.1\r\nHost: origin.example.net\r\n\r\n"
	request := "REQMOD icap://example.net/reqmod ICAP/1.0\r\n" +
		"Host: example.net\r\n" +
		"Encapsulated: req-hdr=0, null-body=" + itoa(len(embeddedReq)) + "\r\n" +
		"\r\n" +
		embeddedReq

	conn := newConn(request)
	s := &Server{
		Limits:  Limits{MaxInitialLine: 4096, MaxICAPHeader: 8192, MaxChunk: 65536},
		Handler: noopHandler{},
	}
	s.HandleConnection(conn)

	out := conn.writeBuffer.String()
	if !strings.HasPrefix(out, "ICAP/1.0 204 No Content") {
		t.Fatalf("got response %q, want 204 No Content", out)
	}
}

func TestHandleConnectionOptionsDrainsOptBodyBeforeNextMessage(t *testing.T) {
	embeddedReq := "GET /index.html HTTP/1.1\r\nHost: origin.example.net\r\n\r\n"
	request := "OPTIONS icap://example.net/services/echo ICAP/1.0\r\n" +
		"Host: example.net\r\n" +
		"Encapsulated: opt-body=0\r\n" +
		"\r\n" +
		"5\r\nhello\r\n0\r\n\r\n" +
		"REQMOD icap://example.net/reqmod ICAP/1.0\r\n" +
		"Host: example.net\r\n" +
		"Encapsulated: req-hdr=0, null-body=" + itoa(len(embeddedReq)) + "\r\n" +
		"\r\n" +
		embeddedReq

	conn := newConn(request)
	s := &Server{
		Limits:  Limits{MaxInitialLine: 4096, MaxICAPHeader: 8192, MaxChunk: 65536},
		Handler: noopHandler{},
	}
	s.HandleConnection(conn)

	out := conn.writeBuffer.String()
	if !strings.HasPrefix(out, "ICAP/1.0 200 OK") {
		t.Fatalf("got response %q, want OPTIONS 200 OK first", out)
	}
	if !strings.Contains(out, "ICAP/1.0 204 No Content") {
		t.Fatalf("got response %q, want the REQMOD on the same connection to be handled as 204 No Content, not garbled by undrained opt-body bytes", out)
	}
}

func TestHandleConnectionPreviewIeofSendsNoSpuriousContinue(t *testing.T) {
	embeddedRes := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\n"
	request := "RESPMOD icap://example.net/respmod ICAP/1.0\r\n" +
		"Host: example.net\r\n" +
		"Preview: 2\r\n" +
		"Encapsulated: res-hdr=0, res-body=" + itoa(len(embeddedRes)) + "\r\n" +
		"\r\n" +
		embeddedRes +
		"2\r\nhe\r\n" +
		"0; ieof\r\n\r\n"

	conn := newConn(request)
	s := &Server{
		Limits:  Limits{MaxInitialLine: 4096, MaxICAPHeader: 8192, MaxChunk: 65536},
		Handler: noopHandler{},
	}
	s.HandleConnection(conn)

	out := conn.writeBuffer.String()
	if strings.Contains(out, "100 Continue") {
		t.Fatalf("got response %q, an ieof-terminated preview must never provoke a 100 Continue", out)
	}
	if !strings.HasPrefix(out, "ICAP/1.0 204 No Content") {
		t.Fatalf("got response %q, want 204 No Content", out)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
