package server

import (
	"bufio"
	"fmt"
	"net/http"
)

// writeOptions answers an ICAP OPTIONS request, advertising REQMOD and
// RESPMOD support and the server's Preview policy.
func writeOptions(w *bufio.Writer, previewBytes int) error {
	resp := fmt.Sprintf("ICAP/1.0 200 OK\r\n"+
		"Service: icapd\r\n"+
		"ISTag: \"icapd-1\"\r\n"+
		"Encapsulated: null-body=0\r\n"+
		"Max-Connections: 100\r\n"+
		"Options-TTL: 3600\r\n"+
		"Allow: 204\r\n"+
		"Preview: %d\r\n"+
		"Methods: REQMOD, RESPMOD\r\n"+
		"\r\n", previewBytes)
	if _, err := w.WriteString(resp); err != nil {
		return err
	}
	return w.Flush()
}

// writeNoContent answers with ICAP 204: the message should pass through
// unmodified.
func writeNoContent(w *bufio.Writer) error {
	if _, err := w.WriteString("ICAP/1.0 204 No Content\r\nISTag: \"icapd-1\"\r\nConnection: keep-alive\r\n\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

// writeError answers with a bare ICAP status line, used for malformed
// requests the decoder itself rejected.
func writeError(w *bufio.Writer, code int, reason string) error {
	if _, err := w.WriteString(fmt.Sprintf("ICAP/1.0 %d %s\r\n\r\n", code, reason)); err != nil {
		return err
	}
	return w.Flush()
}

// writeModifiedRequest answers REQMOD with an encapsulated, rewritten
// HTTP request and chunked body.
func writeModifiedRequest(w *bufio.Writer, req *http.Request, body []byte) error {
	req.Header.Set("Content-Length", fmt.Sprintf("%d", len(body)))

	var headBuf []byte
	headBuf = append(headBuf, fmt.Sprintf("%s %s %s\r\n", req.Method, req.URL.String(), req.Proto)...)
	for name, values := range req.Header {
		for _, v := range values {
			headBuf = append(headBuf, fmt.Sprintf("%s: %s\r\n", name, v)...)
		}
	}
	headBuf = append(headBuf, "\r\n"...)

	return writeModifiedMessage(w, headBuf, body, "req-hdr=0, req-body=%d")
}

// writeModifiedResponse answers RESPMOD with an encapsulated, rewritten
// HTTP response and chunked body.
func writeModifiedResponse(w *bufio.Writer, res *http.Response, body []byte) error {
	res.Header.Set("Content-Length", fmt.Sprintf("%d", len(body)))

	var headBuf []byte
	headBuf = append(headBuf, fmt.Sprintf("%s %d %s\r\n", res.Proto, res.StatusCode, http.StatusText(res.StatusCode))...)
	for name, values := range res.Header {
		for _, v := range values {
			headBuf = append(headBuf, fmt.Sprintf("%s: %s\r\n", name, v)...)
		}
	}
	headBuf = append(headBuf, "\r\n"...)

	return writeModifiedMessage(w, headBuf, body, "res-hdr=0, res-body=%d")
}

func writeModifiedMessage(w *bufio.Writer, head, body []byte, encapsulatedFormat string) error {
	encapsulated := fmt.Sprintf(encapsulatedFormat, len(head))
	status := fmt.Sprintf("ICAP/1.0 200 OK\r\nISTag: \"icapd-1\"\r\nConnection: keep-alive\r\nEncapsulated: %s\r\n\r\n", encapsulated)

	if _, err := w.WriteString(status); err != nil {
		return err
	}
	if _, err := w.Write(head); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.WriteString(fmt.Sprintf("%x\r\n", len(body))); err != nil {
			return err
		}
		if _, err := w.Write(body); err != nil {
			return err
		}
		if _, err := w.WriteString("\r\n"); err != nil {
			return err
		}
	}
	if _, err := w.WriteString("0\r\n\r\n"); err != nil {
		return err
	}
	return w.Flush()
}
