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

	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
)

const MSG_HDR_SIZE = 8

// Size of the CRC field at the front of every message.  The CRC covers
// everything after it.
const MSG_CRC_SIZE = 4

type MsgHdr struct {
	Crc32 uint32
	Type  MsgType
	Len   uint16 // Message length excluding the CRC field.
}

type SblMsg interface {
	Hdr() *MsgHdr
	SetHdr(hdr *MsgHdr)

	Type() MsgType

	// Encodes the type-specific part of the message.
	Payload() []byte

	decodePayload(b []byte) error
}

// Implemented by messages with fields that can hold values the protocol
// does not allow.
type validator interface {
	Validate() error
}

type SblBase struct {
	hdr MsgHdr
}

func (b *SblBase) Hdr() *MsgHdr {
	return &b.hdr
}

func (b *SblBase) SetHdr(h *MsgHdr) {
	b.hdr = *h
}

func DecodeMsgHdr(data []byte) (*MsgHdr, error) {
	if len(data) < MSG_HDR_SIZE {
		return nil, sblxutil.FmtUnexpectedStatusError(
			"message too short for header: %d bytes", len(data))
	}

	return &MsgHdr{
		Crc32: binary.LittleEndian.Uint32(data[0:4]),
		Type:  MsgType(binary.LittleEndian.Uint16(data[4:6])),
		Len:   binary.LittleEndian.Uint16(data[6:8]),
	}, nil
}

func (hdr *MsgHdr) Bytes() []byte {
	buf := make([]byte, MSG_HDR_SIZE)

	binary.LittleEndian.PutUint32(buf[0:4], hdr.Crc32)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(hdr.Type))
	binary.LittleEndian.PutUint16(buf[6:8], hdr.Len)

	return buf
}

// Serializes a message and fills in its header.  The CRC is computed last,
// over the type, length and payload.
func EncodeMsg(m SblMsg) ([]byte, error) {
	if v, ok := m.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	pl := m.Payload()
	total := MSG_HDR_SIZE + len(pl)
	if total > MAX_IOS_MSG_SIZE {
		return nil, sblxutil.FmtBadParamError(
			"%s message too large: %d bytes (max %d)",
			m.Type(), total, MAX_IOS_MSG_SIZE)
	}

	hdr := MsgHdr{
		Type: m.Type(),
		Len:  uint16(total - MSG_CRC_SIZE),
	}

	data := append(hdr.Bytes(), pl...)
	hdr.Crc32 = Crc32(data[MSG_CRC_SIZE:])
	binary.LittleEndian.PutUint32(data[0:4], hdr.Crc32)

	m.SetHdr(&hdr)
	return data, nil
}

// Verifies a message's CRC and length, then decodes it into the variant
// indicated by its type.  Types with no registered decoder yield an
// *UnknownMsg rather than an error.
func DecodeMsg(data []byte) (SblMsg, error) {
	hdr, err := DecodeMsgHdr(data)
	if err != nil {
		return nil, err
	}

	actual := Crc32(data[MSG_CRC_SIZE:])
	if actual != hdr.Crc32 {
		return nil, sblxutil.NewCrcMismatchError(hdr.Crc32, actual)
	}

	if int(hdr.Len) != len(data)-MSG_CRC_SIZE {
		return nil, sblxutil.FmtUnexpectedStatusError(
			"%s message length mismatch: hdr.len=%d actual=%d",
			hdr.Type, hdr.Len, len(data)-MSG_CRC_SIZE)
	}

	var m SblMsg
	cb := msgCtorMap[hdr.Type]
	if cb == nil {
		m = &UnknownMsg{MsgType: hdr.Type}
	} else {
		m = cb()
	}

	if err := m.decodePayload(data[MSG_HDR_SIZE:]); err != nil {
		return nil, err
	}

	m.SetHdr(hdr)
	return m, nil
}

// Little-endian field helpers.

func appendU32(b []byte, v uint32) []byte {
	var w [4]byte
	binary.LittleEndian.PutUint32(w[:], v)
	return append(b, w[:]...)
}

type fieldReader struct {
	b   []byte
	off int
	typ MsgType
}

func (r *fieldReader) u32() (uint32, error) {
	if len(r.b)-r.off < 4 {
		return 0, sblxutil.FmtUnexpectedStatusError(
			"%s payload truncated at offset %d", r.typ, r.off)
	}
	v := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v, nil
}

func (r *fieldReader) rest() []byte {
	return r.b[r.off:]
}

func (r *fieldReader) done() error {
	if r.off != len(r.b) {
		return sblxutil.FmtUnexpectedStatusError(
			"%s payload has %d trailing bytes", r.typ, len(r.b)-r.off)
	}
	return nil
}
