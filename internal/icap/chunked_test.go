package icap

import (
	"bytes"
	"testing"
)

func TestReadChunkPayload(t *testing.T) {
	buf := []byte("5\r\nhello\r\n0\r\n\r\n")
	payload, adv, terminal, ieof, err := readChunk(buf, 4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if terminal || ieof {
		t.Fatalf("got terminal=%v ieof=%v, want false false", terminal, ieof)
	}
	if !bytes.Equal(payload, []byte("hello")) {
		t.Fatalf("got payload %q", payload)
	}
	if adv != len("5\r\nhello\r\n") {
		t.Fatalf("got advance %d", adv)
	}
}

func TestReadChunkTerminalPlain(t *testing.T) {
	buf := []byte("0\r\n\r\n")
	_, adv, terminal, ieof, err := readChunk(buf, 4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !terminal || ieof {
		t.Fatalf("got terminal=%v ieof=%v, want true false", terminal, ieof)
	}
	if adv != len(buf) {
		t.Fatalf("got advance %d, want %d", adv, len(buf))
	}
}

func TestReadChunkTerminalIeof(t *testing.T) {
	buf := []byte("0; ieof\r\n\r\n")
	_, _, terminal, ieof, err := readChunk(buf, 4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !terminal || !ieof {
		t.Fatalf("got terminal=%v ieof=%v, want true true", terminal, ieof)
	}
}

func TestReadChunkTerminalWithTrailer(t *testing.T) {
	buf := []byte("0\r\nX-Trailer: value\r\n\r\n")
	_, adv, terminal, _, err := readChunk(buf, 4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !terminal || adv != len(buf) {
		t.Fatalf("got terminal=%v adv=%d, want true %d", terminal, adv, len(buf))
	}
}

func TestReadChunkNeedsMorePayload(t *testing.T) {
	buf := []byte("a\r\nshort")
	_, _, _, _, err := readChunk(buf, 4096)
	if err != errNeedMore {
		t.Fatalf("got err %v, want errNeedMore", err)
	}
}

func TestReadChunkTooLarge(t *testing.T) {
	buf := []byte("ffff\r\n")
	_, _, _, _, err := readChunk(buf, 16)
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != ErrFrameTooLong {
		t.Fatalf("got err %v, want ErrFrameTooLong", err)
	}
}

func TestReadChunkMalformedSize(t *testing.T) {
	buf := []byte("zz\r\ndata\r\n")
	_, _, _, _, err := readChunk(buf, 4096)
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != ErrMalformedChunk {
		t.Fatalf("got err %v, want ErrMalformedChunk", err)
	}
}
