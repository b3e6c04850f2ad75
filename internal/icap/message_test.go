package icap

import "testing"

func TestHeadersCaseInsensitiveGet(t *testing.T) {
	var h Headers
	h.Add("Host", "icap.example.net")
	if v, ok := h.Get("HOST"); !ok || v != "icap.example.net" {
		t.Fatalf("got %q ok=%v", v, ok)
	}
}

func TestHeadersPreservesDuplicates(t *testing.T) {
	var h Headers
	h.Add("X-Tag", "a")
	h.Add("X-Tag", "b")
	values := h.Values("x-tag")
	if len(values) != 2 || values[0] != "a" || values[1] != "b" {
		t.Fatalf("got %v", values)
	}
}

func TestNewMessageAndBuilderRoundtrip(t *testing.T) {
	mb, err := NewMessage("REQMOD", "icap://example.net/reqmod", "ICAP/1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mb.AddHeader("Host", "example.net")
	if !mb.ContainsHeader("host") {
		t.Fatalf("expected Host header to be present")
	}
	if got := mb.GetMethod(); got != "REQMOD" {
		t.Fatalf("got method %q", got)
	}

	enc := &EncapsulatedHeader{Entries: []EncapsulatedEntry{{Kind: SectionNullBody, Offset: 0}}}
	mb.SetEncapsulatedHeader(enc)
	if mb.GetEncapsulatedHeader() != enc {
		t.Fatalf("encapsulated header not retained")
	}
}
