package lineframe

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x01},
		bytes.Repeat([]byte{0xa5}, 92),
		bytes.Repeat([]byte{0x3c}, 93),
		bytes.Repeat([]byte{0x7e}, 120),
		bytes.Repeat([]byte{0x11}, 2048),
	}

	var stream bytes.Buffer
	for _, p := range payloads {
		enc := Encode(p)
		for _, line := range strings.Split(strings.TrimRight(string(enc), "\n"), "\n") {
			if len(line)-2 > MAX_LINE_LEN {
				t.Fatalf("line too long: %d", len(line))
			}
		}
		stream.Write(enc)
	}

	d := NewDecoder(&stream)
	for i, p := range payloads {
		got, err := d.Decode()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !bytes.Equal(got, p) {
			t.Fatalf("frame %d: got %d bytes, want %d", i, len(got), len(p))
		}
	}

	if _, err := d.Decode(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestSkipsNoise(t *testing.T) {
	var stream bytes.Buffer
	stream.WriteString("boot: SBL v3\r\n")
	stream.WriteString("\n")
	stream.Write(Encode([]byte{9, 8, 7}))

	got, err := NewDecoder(&stream).Decode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{9, 8, 7}) {
		t.Fatalf("got %x", got)
	}
}

func TestCrcError(t *testing.T) {
	// Re-encode a frame with a corrupted payload byte but the original CRC.
	enc := Encode([]byte{1, 2, 3, 4})
	d := NewDecoder(bytes.NewReader(enc))
	if _, err := d.Decode(); err != nil {
		t.Fatal(err)
	}

	good := Encode([]byte{1, 2, 3, 4})
	bad := Encode([]byte{1, 2, 3, 5})
	// Splice the good CRC onto the bad payload by swapping the final base64
	// quantum, which holds the trailing CRC bytes.
	spliced := append([]byte(nil), bad[:len(bad)-5]...)
	spliced = append(spliced, good[len(good)-5:]...)

	if bytes.Equal(spliced, bad) {
		t.Skip("splice produced identical frame")
	}
	if _, err := NewDecoder(bytes.NewReader(spliced)).Decode(); !IsFrameError(err) {
		t.Fatalf("expected frame error, got %v", err)
	}
}
