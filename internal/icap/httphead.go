package icap

import (
	"strconv"
)

// parseHTTPRequestHead parses an embedded HTTP request head — request line
// plus headers — out of a fixed-length section (§4.E transition 4). The
// same folding rules as the ICAP header block apply. A section without a
// trailing blank line is rejected.
func parseHTTPRequestHead(section []byte) (*HTTPHead, error) {
	reqLine, adv, err := readLine(section, len(section))
	if err != nil {
		return nil, newDecodeError(ErrMalformedHeader, "embedded HTTP request line missing or malformed")
	}
	method, uri, proto, ok := splitInitialLine(reqLine)
	if !ok {
		return nil, newDecodeError(ErrMalformedHeader, "malformed embedded HTTP request line %q", reqLine)
	}

	headers, _, err := readFixedHeaderBlock(section[adv:], len(section)-adv)
	if err != nil {
		return nil, err
	}

	return &HTTPHead{Method: method, URI: uri, Proto: proto, Headers: *headers}, nil
}

// parseHTTPResponseHead parses an embedded HTTP response head — status
// line plus headers — out of a fixed-length section (§4.E transition 5).
func parseHTTPResponseHead(section []byte) (*HTTPHead, error) {
	statusLine, adv, err := readLine(section, len(section))
	if err != nil {
		return nil, newDecodeError(ErrMalformedHeader, "embedded HTTP status line missing or malformed")
	}
	proto, codeStr, reason, ok := splitInitialLine(statusLine)
	if !ok {
		return nil, newDecodeError(ErrMalformedHeader, "malformed embedded HTTP status line %q", statusLine)
	}
	code, convErr := strconv.Atoi(codeStr)
	if convErr != nil {
		return nil, newDecodeError(ErrMalformedHeader, "malformed HTTP status code %q", codeStr)
	}

	headers, _, err := readFixedHeaderBlock(section[adv:], len(section)-adv)
	if err != nil {
		return nil, err
	}

	return &HTTPHead{StatusCode: code, Reason: reason, Proto: proto, Headers: *headers}, nil
}

// readFixedHeaderBlock reads header entries (with folding) from a
// closed, fixed-length window. Unlike the ICAP header block, running out
// of bytes before the blank terminator is reached is always fatal — there
// is no more data coming for this section, ever, so an under-run here
// means the embedded head is malformed rather than merely incomplete.
func readFixedHeaderBlock(section []byte, budget int) (*Headers, int, error) {
	headers := &Headers{}
	delim := newSizeDelimiter(budget)
	pos := 0
	for {
		name, value, adv, blank, err := readHeaderEntry(section[pos:], delim)
		if err == errNeedMore {
			return nil, 0, newDecodeError(ErrMalformedHeader, "embedded HTTP header section has no trailing blank line")
		}
		if err != nil {
			return nil, 0, err
		}
		pos += adv
		if blank {
			return headers, pos, nil
		}
		headers.Add(name, value)
	}
}
