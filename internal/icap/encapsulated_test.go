package icap

import "testing"

func TestParseEncapsulatedReqmod(t *testing.T) {
	enc, err := parseEncapsulated("req-hdr=0, req-body=150", "REQMOD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off, ok := enc.Offset(SectionReqHdr); !ok || off != 0 {
		t.Fatalf("got req-hdr offset %d ok=%v", off, ok)
	}
	kind, ok := enc.BodyKind()
	if !ok || kind != SectionReqBody {
		t.Fatalf("got body kind %q ok=%v", kind, ok)
	}
}

func TestParseEncapsulatedRespmodRequiresResHdr(t *testing.T) {
	_, err := parseEncapsulated("req-hdr=0, res-body=80", "RESPMOD")
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != ErrInvalidEncapsulatedHeader {
		t.Fatalf("got err %v, want ErrInvalidEncapsulatedHeader", err)
	}
}

func TestParseEncapsulatedOptionsRejectsReqHdr(t *testing.T) {
	_, err := parseEncapsulated("req-hdr=0, null-body=50", "OPTIONS")
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != ErrInvalidEncapsulatedHeader {
		t.Fatalf("got err %v, want ErrInvalidEncapsulatedHeader", err)
	}
}

func TestParseEncapsulatedBodyMustBeLast(t *testing.T) {
	_, err := parseEncapsulated("null-body=0, req-hdr=10", "REQMOD")
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != ErrInvalidEncapsulatedHeader {
		t.Fatalf("got err %v, want ErrInvalidEncapsulatedHeader", err)
	}
}

func TestParseEncapsulatedOffsetsMustBeNonDecreasing(t *testing.T) {
	_, err := parseEncapsulated("req-hdr=100, req-body=10", "REQMOD")
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != ErrInvalidEncapsulatedHeader {
		t.Fatalf("got err %v, want ErrInvalidEncapsulatedHeader", err)
	}
}

func TestSectionLength(t *testing.T) {
	enc, err := parseEncapsulated("req-hdr=0, req-body=120", "REQMOD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	length, ok := enc.SectionLength(SectionReqHdr)
	if !ok || length != 120 {
		t.Fatalf("got length=%d ok=%v, want 120 true", length, ok)
	}
}
