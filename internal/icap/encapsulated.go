package icap

import (
	"strconv"
	"strings"
)

// SectionKind is one of the six section names that can appear in an
// Encapsulated header value (§3).
type SectionKind string

const (
	SectionReqHdr   SectionKind = "req-hdr"
	SectionResHdr   SectionKind = "res-hdr"
	SectionReqBody  SectionKind = "req-body"
	SectionResBody  SectionKind = "res-body"
	SectionOptBody  SectionKind = "opt-body"
	SectionNullBody SectionKind = "null-body"
)

func (k SectionKind) isBody() bool {
	switch k {
	case SectionReqBody, SectionResBody, SectionOptBody, SectionNullBody:
		return true
	default:
		return false
	}
}

// EncapsulatedEntry is one (section-kind, byte-offset) pair.
type EncapsulatedEntry struct {
	Kind   SectionKind
	Offset int
}

// EncapsulatedHeader is the parsed, validated descriptor for an ICAP
// message's Encapsulated header (§3).
type EncapsulatedHeader struct {
	Entries []EncapsulatedEntry
}

// Offset returns the byte offset recorded for kind, if present.
func (e *EncapsulatedHeader) Offset(kind SectionKind) (int, bool) {
	for _, ent := range e.Entries {
		if ent.Kind == kind {
			return ent.Offset, true
		}
	}
	return 0, false
}

// Has reports whether kind appears in the descriptor.
func (e *EncapsulatedHeader) Has(kind SectionKind) bool {
	_, ok := e.Offset(kind)
	return ok
}

// BodyKind returns the single body-kind entry, if any (§3: at most one,
// and it is always last).
func (e *EncapsulatedHeader) BodyKind() (SectionKind, bool) {
	if len(e.Entries) == 0 {
		return "", false
	}
	last := e.Entries[len(e.Entries)-1]
	if last.Kind.isBody() {
		return last.Kind, true
	}
	return "", false
}

// SectionLength returns offset(next-entry) - offset(kind): the byte length
// of a fixed-length header section.
func (e *EncapsulatedHeader) SectionLength(kind SectionKind) (int, bool) {
	for i, ent := range e.Entries {
		if ent.Kind != kind {
			continue
		}
		if i+1 >= len(e.Entries) {
			return 0, false
		}
		return e.Entries[i+1].Offset - ent.Offset, true
	}
	return 0, false
}

// parseEncapsulated parses the raw value of an ICAP Encapsulated header
// (§4.C) and validates it against the method that carries it.
func parseEncapsulated(value, method string) (*EncapsulatedHeader, error) {
	parts := strings.Split(value, ",")
	entries := make([]EncapsulatedEntry, 0, len(parts))

	lastOffset := -1
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, newDecodeError(ErrInvalidEncapsulatedHeader, "empty entry in %q", value)
		}
		eq := strings.IndexByte(part, '=')
		if eq <= 0 {
			return nil, newDecodeError(ErrInvalidEncapsulatedHeader, "malformed entry %q", part)
		}
		kind := SectionKind(strings.TrimSpace(part[:eq]))
		offsetStr := strings.TrimSpace(part[eq+1:])
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return nil, newDecodeError(ErrInvalidEncapsulatedHeader, "invalid offset in %q", part)
		}
		if offset < lastOffset {
			return nil, newDecodeError(ErrInvalidEncapsulatedHeader, "offsets must be non-decreasing")
		}
		lastOffset = offset
		entries = append(entries, EncapsulatedEntry{Kind: kind, Offset: offset})
	}
	if len(entries) == 0 {
		return nil, newDecodeError(ErrInvalidEncapsulatedHeader, "empty Encapsulated header")
	}

	bodyCount := 0
	for i, ent := range entries {
		if ent.Kind.isBody() {
			bodyCount++
			if i != len(entries)-1 {
				return nil, newDecodeError(ErrInvalidEncapsulatedHeader, "body-kind entry %q must be last", ent.Kind)
			}
		}
	}
	if bodyCount > 1 {
		return nil, newDecodeError(ErrInvalidEncapsulatedHeader, "at most one body-kind entry is allowed")
	}

	if err := validateForMethod(entries, method); err != nil {
		return nil, err
	}

	return &EncapsulatedHeader{Entries: entries}, nil
}

// validateForMethod applies the per-method shape rules of §4.C. Unknown
// methods accept any well-formed descriptor.
func validateForMethod(entries []EncapsulatedEntry, method string) error {
	kinds := make([]SectionKind, len(entries))
	for i, e := range entries {
		kinds[i] = e.Kind
	}

	switch strings.ToUpper(method) {
	case "OPTIONS":
		for _, k := range kinds {
			if k != SectionOptBody && k != SectionNullBody {
				return newDecodeError(ErrInvalidEncapsulatedHeader, "OPTIONS may only carry opt-body or null-body, got %q", k)
			}
		}
	case "REQMOD":
		for _, k := range kinds {
			switch k {
			case SectionReqHdr, SectionReqBody, SectionNullBody:
			default:
				return newDecodeError(ErrInvalidEncapsulatedHeader, "REQMOD may only carry req-hdr, req-body or null-body, got %q", k)
			}
		}
	case "RESPMOD":
		sawResHdr := false
		for _, k := range kinds {
			switch k {
			case SectionReqHdr, SectionResBody, SectionNullBody:
			case SectionResHdr:
				sawResHdr = true
			default:
				return newDecodeError(ErrInvalidEncapsulatedHeader, "RESPMOD may not carry %q", k)
			}
		}
		if !sawResHdr {
			return newDecodeError(ErrInvalidEncapsulatedHeader, "RESPMOD requires a res-hdr entry")
		}
	}
	return nil
}
