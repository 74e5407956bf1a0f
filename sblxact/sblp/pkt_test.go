package sblp

import (
	"bytes"
	"testing"

	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
)

func TestPktHdrWord(t *testing.T) {
	tests := []struct {
		hdr  PktHdr
		word uint32
	}{
		{PktHdr{Len: 116, Start: true, End: true}, 0xc0000074},
		{PktHdr{Len: 116, Start: true}, 0x80000074},
		{PktHdr{Len: 12, End: true}, 0x4000000c},
		{PktHdr{Len: 0}, 0},
	}

	for _, test := range tests {
		if w := test.hdr.Word(); w != test.word {
			t.Errorf("%+v: word=0x%08x want 0x%08x", test.hdr, w, test.word)
		}

		dec, err := DecodePktHdr(test.hdr.Bytes())
		if err != nil {
			t.Fatal(err)
		}
		if dec != test.hdr {
			t.Errorf("decoded %+v want %+v", dec, test.hdr)
		}
	}
}

func TestFragmentSingle(t *testing.T) {
	msg := bytes.Repeat([]byte{0x5a}, PKT_MAX_DATA)

	pkts := Fragment(msg, MAX_IOS_LRAM_SIZE)
	if len(pkts) != 1 {
		t.Fatalf("got %d packets", len(pkts))
	}

	hdr, _ := DecodePktHdr(pkts[0])
	if !hdr.Start || !hdr.End || int(hdr.Len) != len(msg) {
		t.Fatalf("bad header %+v", hdr)
	}
	if len(pkts[0]) != MAX_IOS_LRAM_SIZE {
		t.Fatalf("packet size %d", len(pkts[0]))
	}
}

func TestFragmentReassemble(t *testing.T) {
	for _, sz := range []int{0, 1, 8, 115, 116, 117, 232, 500, MAX_IOS_MSG_SIZE} {
		msg := make([]byte, sz)
		for i := range msg {
			msg[i] = byte(i * 31)
		}

		pkts := Fragment(msg, MAX_IOS_LRAM_SIZE)
		want := (sz + PKT_MAX_DATA - 1) / PKT_MAX_DATA
		if want == 0 {
			want = 1
		}
		if len(pkts) != want {
			t.Errorf("size %d: %d packets, want %d", sz, len(pkts), want)
		}

		r := NewReassembler()
		var out []byte
		for i, p := range pkts {
			if len(p) > MAX_IOS_LRAM_SIZE {
				t.Fatalf("size %d: packet %d is %d bytes", sz, i, len(p))
			}

			hdr, _ := DecodePktHdr(p)
			if hdr.Start != (i == 0) || hdr.End != (i == len(pkts)-1) {
				t.Fatalf("size %d: packet %d flags %+v", sz, i, hdr)
			}

			m, err := r.RxFrag(p)
			if err != nil {
				t.Fatalf("size %d: %v", sz, err)
			}
			if i < len(pkts)-1 && m != nil {
				t.Fatalf("size %d: message complete early", sz)
			}
			out = m
		}

		if !bytes.Equal(out, msg) {
			t.Errorf("size %d: reassembly mismatch", sz)
		}
	}
}

func TestReassembleErrors(t *testing.T) {
	pkts := Fragment(make([]byte, 300), MAX_IOS_LRAM_SIZE)

	r := NewReassembler()
	if _, err := r.RxFrag(pkts[1]); !sblxutil.IsUnexpectedStatus(err) {
		t.Errorf("continuation without start: err=%v", err)
	}

	bad := append([]byte(nil), pkts[0]...)
	bad = bad[:len(bad)-1]
	if _, err := r.RxFrag(bad); !sblxutil.IsUnexpectedStatus(err) {
		t.Errorf("truncated packet: err=%v", err)
	}

	// A new start discards a partial message.
	if _, err := r.RxFrag(pkts[0]); err != nil {
		t.Fatal(err)
	}
	single := Fragment([]byte{1, 2, 3}, MAX_IOS_LRAM_SIZE)[0]
	m, err := r.RxFrag(single)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(m, []byte{1, 2, 3}) {
		t.Errorf("got %x", m)
	}
}
