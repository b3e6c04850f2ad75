package icap

import (
	"strconv"
	"strings"
)

// trailerBudgetFloor is the minimum byte budget for the trailer headers
// that may follow a terminal ("0") chunk. There is no separate cap for
// this in the spec's three constructor caps, so the trailer block reuses
// maxChunkSize, raised to this floor for a small maxChunkSize that would
// otherwise reject even an empty trailer's terminating blank line.
const trailerBudgetFloor = 256

// readChunk reads one HTTP/1.1 chunk — "hex-size CRLF payload CRLF" — or
// the terminal "0 CRLF" (optionally followed by trailer headers and a
// final CRLF), per §4.E transition 6. Chunk extensions are parsed only
// far enough to recognise the ICAP Preview "ieof" extension; any other
// extension is ignored, matching the common chunked-reader practice of
// not acting on unrecognised extensions.
func readChunk(buf []byte, maxChunkSize int) (payload []byte, advance int, terminal bool, ieof bool, err error) {
	sizeLine, adv, found := rawLine(buf)
	if !found {
		return nil, 0, false, false, errNeedMore
	}

	raw := string(sizeLine)
	ext := ""
	if i := strings.IndexByte(raw, ';'); i >= 0 {
		ext = strings.TrimSpace(raw[i+1:])
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, 0, false, false, newDecodeError(ErrMalformedChunk, "empty chunk size")
	}
	size64, convErr := strconv.ParseInt(raw, 16, 64)
	if convErr != nil || size64 < 0 {
		return nil, 0, false, false, newDecodeError(ErrMalformedChunk, "invalid chunk size %q", raw)
	}
	size := int(size64)

	if size == 0 {
		budget := maxChunkSize
		if budget < trailerBudgetFloor {
			budget = trailerBudgetFloor
		}
		delim := newSizeDelimiter(budget)
		pos := adv
		for {
			_, _, tadv, blank, terr := readHeaderEntry(buf[pos:], delim)
			if terr == errNeedMore {
				return nil, 0, false, false, errNeedMore
			}
			if terr != nil {
				return nil, 0, false, false, terr
			}
			pos += tadv
			if blank {
				break
			}
		}
		return nil, pos, true, strings.EqualFold(ext, "ieof"), nil
	}

	if size > maxChunkSize {
		return nil, 0, false, false, newDecodeError(ErrFrameTooLong, "chunk of %d bytes exceeds max %d", size, maxChunkSize)
	}

	body := buf[adv:]
	if len(body) < size {
		return nil, 0, false, false, errNeedMore
	}
	chunkData := body[:size]
	after := adv + size

	if len(buf)-after < 1 {
		return nil, 0, false, false, errNeedMore
	}
	termLen := 1
	if buf[after] == '\r' {
		if len(buf)-after < 2 {
			return nil, 0, false, false, errNeedMore
		}
		if buf[after+1] != '\n' {
			return nil, 0, false, false, newDecodeError(ErrMalformedChunk, "missing CRLF chunk terminator")
		}
		termLen = 2
	} else if buf[after] != '\n' {
		return nil, 0, false, false, newDecodeError(ErrMalformedChunk, "missing chunk terminator")
	}

	out := make([]byte, size)
	copy(out, chunkData)
	return out, after + termLen, false, false, nil
}
