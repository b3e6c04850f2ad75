package icap

import (
	"bytes"
	"strings"
)

// This file holds the byte-buffer reader primitives of §4.A. Every
// primitive here follows the same shape as a bufio.SplitFunc: given the
// unconsumed prefix of the connection's buffer, it reports how many bytes
// to advance past, or errNeedMore if the buffer doesn't yet hold a
// complete token. None of them retain a reference into buf past the call.

// skipControlCharacters advances past any byte with value <= 0x20, except
// that it stops at the first byte > 0x20. It tolerates stray CR/LF left
// over between messages on a persistent connection. If the whole buffer is
// control bytes, it reports the whole buffer consumed and found=false so
// the caller knows it hasn't yet seen the start of the next message.
func skipControlCharacters(buf []byte) (advance int, found bool) {
	for i, b := range buf {
		if b > 0x20 {
			return i, true
		}
	}
	return len(buf), false
}

// rawLine scans for the next line terminator (CRLF or a bare LF; a lone CR
// is not a terminator) without charging any size budget. It is the
// low-level scan shared by readLine and readHeaderEntry.
func rawLine(buf []byte) (line []byte, advance int, found bool) {
	idx := bytes.IndexByte(buf, '\n')
	if idx == -1 {
		return nil, 0, false
	}
	end := idx
	if end > 0 && buf[end-1] == '\r' {
		end--
	}
	return buf[:end], idx + 1, true
}

// readLine reads one CRLF- (or bare-LF-) terminated line bounded by a fixed
// cap, used for the ICAP initial line (§4.A). It fails with FrameTooLong
// once cap bytes have been seen without a terminator, or once a terminated
// line's content exceeds cap.
func readLine(buf []byte, cap int) (line []byte, advance int, err error) {
	line, advance, found := rawLine(buf)
	if !found {
		if len(buf) > cap {
			return nil, 0, newDecodeError(ErrFrameTooLong, "line exceeds %d byte limit", cap)
		}
		return nil, 0, errNeedMore
	}
	if len(line) > cap {
		return nil, 0, newDecodeError(ErrFrameTooLong, "line exceeds %d byte limit", cap)
	}
	return line, advance, nil
}

// readHeaderEntry reads one logical header entry — a name/value line plus
// any folded continuation lines (§4.E) — charging the combined byte count
// against delim exactly once, only after the whole entry (including its
// continuations) is known to be present. This is what makes header folding
// safe to re-attempt from scratch on every Decode call: nothing is charged
// until the entry is fully resolved, so a caller that keeps re-presenting
// the same unconsumed prefix across suspensions never double-counts it.
//
// blank=true signals the blank line that terminates a header block; name
// and value are meaningless in that case.
func readHeaderEntry(buf []byte, delim *sizeDelimiter) (name, value string, advance int, blank bool, err error) {
	first, adv, found := rawLine(buf)
	if !found {
		if delim.wouldExceed(len(buf)) {
			return "", "", 0, false, newDecodeError(ErrFrameTooLong, "header block exceeds %d bytes", delim.cap)
		}
		return "", "", 0, false, errNeedMore
	}
	if len(first) == 0 {
		if err := delim.add(adv); err != nil {
			return "", "", 0, false, err
		}
		return "", "", adv, true, nil
	}
	n, v, ok := splitHeader(first)
	if !ok {
		return "", "", 0, false, newDecodeError(ErrMalformedHeader, "malformed header line %q", first)
	}

	total := adv
	value = v
	for {
		next, adv2, found2 := rawLine(buf[total:])
		if !found2 {
			if delim.wouldExceed(total + len(buf[total:])) {
				return "", "", 0, false, newDecodeError(ErrFrameTooLong, "header block exceeds %d bytes", delim.cap)
			}
			return "", "", 0, false, errNeedMore
		}
		if !isHeaderLineSimpleValue(next) {
			break
		}
		if cont := strings.TrimSpace(string(next)); cont != "" {
			value = value + " " + cont
		}
		total += adv2
	}

	if err := delim.add(total); err != nil {
		return "", "", 0, false, err
	}
	return n, value, total, false, nil
}

// splitInitialLine splits an ICAP or embedded-HTTP initial line on runs of
// plain spaces into exactly three tokens. Embedded tabs are not treated as
// separators — they stay part of whichever token contains them. Fewer than
// three tokens is reported as ok=false; the caller treats that as invalid.
func splitInitialLine(line []byte) (first, second, third string, ok bool) {
	n := len(line)
	i := 0
	fields := make([]string, 0, 2)
	for len(fields) < 2 {
		for i < n && line[i] == ' ' {
			i++
		}
		start := i
		for i < n && line[i] != ' ' {
			i++
		}
		if i == start {
			return "", "", "", false
		}
		fields = append(fields, string(line[start:i]))
	}
	for i < n && line[i] == ' ' {
		i++
	}
	if i >= n {
		return "", "", "", false
	}
	third = strings.TrimRight(string(line[i:]), " ")
	if third == "" {
		return "", "", "", false
	}
	return fields[0], fields[1], third, true
}

// splitHeader splits a header line on the first ':', trims surrounding
// whitespace from the value, and rejects an empty or whitespace-containing
// name.
func splitHeader(line []byte) (name, value string, ok bool) {
	idx := bytes.IndexByte(line, ':')
	if idx <= 0 {
		return "", "", false
	}
	rawName := line[:idx]
	if bytes.ContainsAny(rawName, " \t") {
		return "", "", false
	}
	name = string(rawName)
	value = strings.TrimSpace(string(line[idx+1:]))
	return name, value, true
}

// isHeaderLineSimpleValue reports whether line is a header continuation —
// a physical line that starts with a space or horizontal tab.
func isHeaderLineSimpleValue(line []byte) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}
