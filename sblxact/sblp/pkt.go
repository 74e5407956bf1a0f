/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package sblp

import (
	"encoding/binary"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
)

const PKT_HDR_SIZE = 4

// Most message bytes a single IOS packet can carry.
const PKT_MAX_DATA = MAX_IOS_LRAM_SIZE - PKT_HDR_SIZE

const (
	pktLenMask  = 0x3fff
	pktEndBit   = 1 << 30
	pktStartBit = 1 << 31
)

// Leading word of every IOS packet.  Start marks the first fragment of a
// message, End the last.
type PktHdr struct {
	Len   uint16
	End   bool
	Start bool
}

func (h PktHdr) Word() uint32 {
	w := uint32(h.Len) & pktLenMask
	if h.End {
		w |= pktEndBit
	}
	if h.Start {
		w |= pktStartBit
	}
	return w
}

func (h PktHdr) Bytes() []byte {
	b := make([]byte, PKT_HDR_SIZE)
	binary.LittleEndian.PutUint32(b, h.Word())
	return b
}

func DecodePktHdr(data []byte) (PktHdr, error) {
	if len(data) < PKT_HDR_SIZE {
		return PktHdr{}, sblxutil.FmtUnexpectedStatusError(
			"packet too short for header: %d bytes", len(data))
	}

	w := binary.LittleEndian.Uint32(data)
	return PktHdr{
		Len:   uint16(w & pktLenMask),
		End:   w&pktEndBit != 0,
		Start: w&pktStartBit != 0,
	}, nil
}

// Splits an encoded message into IOS packets of at most mtu bytes each,
// header included.
func Fragment(msg []byte, mtu int) [][]byte {
	fragSz := mtu - PKT_HDR_SIZE
	if fragSz <= 0 {
		fragSz = PKT_MAX_DATA
	}

	var pkts [][]byte
	off := 0
	for {
		n := len(msg) - off
		if n > fragSz {
			n = fragSz
		}

		hdr := PktHdr{
			Len:   uint16(n),
			Start: off == 0,
			End:   off+n >= len(msg),
		}

		pkt := make([]byte, 0, PKT_HDR_SIZE+n)
		pkt = append(pkt, hdr.Bytes()...)
		pkt = append(pkt, msg[off:off+n]...)
		pkts = append(pkts, pkt)

		off += n
		if hdr.End {
			return pkts
		}
	}
}

// Collects IOS packets until a complete message has arrived.
type Reassembler struct {
	cur     []byte
	started bool
}

func NewReassembler() *Reassembler {
	return &Reassembler{}
}

func (r *Reassembler) Reset() {
	r.cur = nil
	r.started = false
}

// Consumes one packet.  Returns the complete message once the end fragment
// arrives; nil while more fragments are expected.
func (r *Reassembler) RxFrag(pkt []byte) ([]byte, error) {
	hdr, err := DecodePktHdr(pkt)
	if err != nil {
		return nil, err
	}

	data := pkt[PKT_HDR_SIZE:]
	if int(hdr.Len) != len(data) {
		r.Reset()
		return nil, sblxutil.FmtUnexpectedStatusError(
			"packet length mismatch: hdr.len=%d actual=%d",
			hdr.Len, len(data))
	}

	if hdr.Start {
		if r.started {
			log.Debugf("discarding %d bytes of incomplete message", len(r.cur))
		}
		r.cur = nil
		r.started = true
	} else if !r.started {
		return nil, sblxutil.NewUnexpectedStatusError(
			"continuation packet without start")
	}

	r.cur = append(r.cur, data...)
	if len(r.cur) > MAX_IOS_MSG_SIZE {
		r.Reset()
		return nil, sblxutil.FmtUnexpectedStatusError(
			"reassembled message exceeds %d bytes", MAX_IOS_MSG_SIZE)
	}

	if !hdr.End {
		return nil, nil
	}

	msg := r.cur
	r.Reset()
	return msg, nil
}
