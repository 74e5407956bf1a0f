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

// Package sim implements the slave side of the SBL wired-update protocol
// in software.  It is used to exercise hosts without hardware, both
// in-process (Xport) and over a line-framed stream (Serve).
package sim

import (
	"encoding/binary"
	"sync"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/sblmgr/sblxact/sblp"
)

// SBL boot states reported in the status message.
const (
	SBL_STATE_IDLE     = 0
	SBL_STATE_OTA_DESC = 1
	SBL_STATE_UPDATE   = 2
	SBL_STATE_DATA     = 3
	SBL_STATE_RESET    = 4
)

type SlaveCfg struct {
	Version      uint32
	MaxImageSize uint32
	AmInfo       [sblp.STATUS_AM_INFO_WORDS]uint32
	Mtu          int

	// Size of the slave's update window.  An update message announces the
	// whole image; the slave expects the image's top MaxUpdateSize bytes
	// not yet received as the block that follows.
	MaxUpdateSize int
}

func NewSlaveCfg() SlaveCfg {
	return SlaveCfg{
		Version:       1,
		MaxImageSize:  0x80000,
		Mtu:           sblp.MAX_IOS_LRAM_SIZE,
		MaxUpdateSize: sblp.DFLT_MAX_UPDATE_SIZE,
	}
}

// Misbehaviour to inject into the slave's responses.
type Faults struct {
	// NACK every message of the given type with the given status.
	Nack map[sblp.MsgType]sblp.AckStatus

	// Corrupt the CRC of the next N responses.
	CorruptCrc int

	// Swallow the next N ready signals.
	DropReady int

	// Hold back the response to the next N messages until the host's wait
	// for it times out (Xport only).
	LateRsp int

	// Answer every message with a status message instead of an ack.
	StatusForAll bool
}

type Block struct {
	Off  int
	Len  int
	Crc  uint32
	Data []byte
}

type Slave struct {
	cfg    SlaveCfg
	faults Faults
	reasm  *sblp.Reassembler
	state  uint32

	otaDescAddr uint32
	imageSize   int
	received    int
	curBlock    *Block
	blocks      []Block
	rxTypes     []sblp.MsgType
	resetOpt    sblp.ResetOpt

	mtx sync.Mutex
}

func NewSlave(cfg SlaveCfg) *Slave {
	if cfg.Mtu == 0 {
		cfg.Mtu = sblp.MAX_IOS_LRAM_SIZE
	}
	if cfg.MaxUpdateSize <= 0 {
		cfg.MaxUpdateSize = sblp.DFLT_MAX_UPDATE_SIZE
	}

	return &Slave{
		cfg:   cfg,
		reasm: sblp.NewReassembler(),
	}
}

func (s *Slave) SetFaults(f Faults) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.faults = f
}

// Consumes a ready signal; reports false if it should be dropped.
func (s *Slave) takeReady() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.faults.DropReady > 0 {
		s.faults.DropReady--
		return false
	}
	return true
}

func (s *Slave) takeLate() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.faults.LateRsp > 0 {
		s.faults.LateRsp--
		return true
	}
	return false
}

// Processes one packet written into the IOS.  Returns the ready events the
// slave raises in response: a single empty event for a fragment that does
// not complete a message, or the packets of the response.
func (s *Slave) HandlePkt(pkt []byte) [][]byte {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	data, err := s.reasm.RxFrag(pkt)
	if err != nil {
		log.Debugf("sim: bad packet: %s", err.Error())
		return s.encodeRsp(s.ack(0, sblp.ACK_STATUS_FAILURE, 0))
	}
	if data == nil {
		return [][]byte{{}}
	}

	return s.encodeRsp(s.handleMsg(data))
}

func (s *Slave) encodeRsp(rsp sblp.SblMsg) [][]byte {
	enc, err := sblp.EncodeMsg(rsp)
	if err != nil {
		log.Errorf("sim: failed to encode response: %s", err.Error())
		return [][]byte{{}}
	}

	if s.faults.CorruptCrc > 0 {
		s.faults.CorruptCrc--
		enc[0] ^= 0xff
	}

	return sblp.Fragment(enc, s.cfg.Mtu)
}

func (s *Slave) ack(src sblp.MsgType, status sblp.AckStatus,
	seq uint32) *sblp.AckMsg {

	a := sblp.NewAckMsg()
	a.SrcType = src
	a.Status = status
	a.Seq = seq
	return a
}

func (s *Slave) status() *sblp.StatusMsg {
	st := sblp.NewStatusMsg()
	st.Version = s.cfg.Version
	st.MaxImageSize = s.cfg.MaxImageSize
	st.CurState = s.state
	st.AmInfo = s.cfg.AmInfo
	return st
}

func (s *Slave) handleMsg(data []byte) sblp.SblMsg {
	m, err := sblp.DecodeMsg(data)
	if err != nil {
		log.Debugf("sim: rejecting message: %s", err.Error())

		var src sblp.MsgType
		if len(data) >= sblp.MSG_HDR_SIZE {
			src = sblp.MsgType(binary.LittleEndian.Uint16(data[4:6]))
		}
		return s.ack(src, sblp.ACK_STATUS_CRC, 0)
	}

	s.rxTypes = append(s.rxTypes, m.Type())
	log.Debugf("sim: rx %s", m.Type())

	if s.faults.StatusForAll {
		return s.status()
	}
	if st, ok := s.faults.Nack[m.Type()]; ok {
		return s.ack(m.Type(), st, 0)
	}

	switch msg := m.(type) {
	case *sblp.HelloMsg:
		// A hello begins a new update.
		s.imageSize = 0
		s.received = 0
		s.curBlock = nil
		s.blocks = nil
		return s.status()

	case *sblp.OtaDescMsg:
		if msg.Addr%4 != 0 {
			return s.ack(m.Type(), sblp.ACK_STATUS_INVALID_ADDR, 0)
		}
		s.otaDescAddr = msg.Addr
		s.state = SBL_STATE_OTA_DESC
		return s.ack(m.Type(), sblp.ACK_STATUS_SUCCESS, 0)

	case *sblp.UpdateMsg:
		return s.handleUpdate(msg)

	case *sblp.DataMsg:
		return s.handleData(msg)

	case *sblp.AbortMsg:
		s.curBlock = nil
		s.state = SBL_STATE_IDLE
		return s.ack(m.Type(), sblp.ACK_STATUS_SUCCESS, 0)

	case *sblp.ResetMsg:
		s.resetOpt = msg.Opt
		s.state = SBL_STATE_RESET
		return s.ack(m.Type(), sblp.ACK_STATUS_SUCCESS, 0)

	default:
		return s.ack(m.Type(), sblp.ACK_STATUS_UNKNOWN_MSG_TYPE, 0)
	}
}

func (s *Slave) handleUpdate(msg *sblp.UpdateMsg) sblp.SblMsg {
	total := int(msg.TotalSize)
	if msg.InlineSize != 0 || total == 0 ||
		msg.TotalSize > s.cfg.MaxImageSize {

		return s.ack(msg.Type(), sblp.ACK_STATUS_INVALID_PARAM, 0)
	}

	if s.imageSize != 0 && total != s.imageSize {
		log.Debugf("sim: image size changed mid-update; have=%d want=%d",
			total, s.imageSize)
		return s.ack(msg.Type(), sblp.ACK_STATUS_INVALID_PARAM, 0)
	}

	remaining := total - s.received
	if remaining <= 0 {
		return s.ack(msg.Type(), sblp.ACK_STATUS_INVALID_OPERATION, 0)
	}

	n := remaining
	if n > s.cfg.MaxUpdateSize {
		n = s.cfg.MaxUpdateSize
	}

	s.imageSize = total
	s.curBlock = &Block{
		Off: remaining - n,
		Len: n,
		Crc: msg.BlobCrc,
	}
	s.state = SBL_STATE_UPDATE
	return s.ack(msg.Type(), sblp.ACK_STATUS_SUCCESS, 0)
}

func (s *Slave) handleData(msg *sblp.DataMsg) sblp.SblMsg {
	b := s.curBlock
	if b == nil {
		return s.ack(msg.Type(), sblp.ACK_STATUS_INVALID_OPERATION, msg.Seq)
	}

	if int(msg.Seq) != len(b.Data) {
		return s.ack(msg.Type(), sblp.ACK_STATUS_SEQ, msg.Seq)
	}
	if len(b.Data)+len(msg.Data) > b.Len {
		return s.ack(msg.Type(), sblp.ACK_STATUS_TOO_MUCH_DATA, msg.Seq)
	}

	b.Data = append(b.Data, msg.Data...)
	s.state = SBL_STATE_DATA

	if len(b.Data) == b.Len {
		s.curBlock = nil
		if sblp.Crc32(b.Data) != b.Crc {
			return s.ack(msg.Type(), sblp.ACK_STATUS_CRC, msg.Seq)
		}
		s.blocks = append(s.blocks, *b)
		s.received += b.Len
		log.Debugf("sim: block %d complete; off=%d len=%d",
			len(s.blocks), b.Off, b.Len)
	}

	return s.ack(msg.Type(), sblp.ACK_STATUS_SUCCESS, msg.Seq)
}

// Completed blocks in the order they were received.
func (s *Slave) Blocks() []Block {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return append([]Block(nil), s.blocks...)
}

// Reassembles the image from the blocks received since the last hello.
// Returns nil until every block has arrived.
func (s *Slave) Image() []byte {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.imageSize == 0 || s.received != s.imageSize {
		return nil
	}

	img := make([]byte, s.imageSize)
	for _, b := range s.blocks {
		copy(img[b.Off:], b.Data)
	}
	return img
}

// Types of every CRC-valid message received, in order.
func (s *Slave) RxTypes() []sblp.MsgType {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return append([]sblp.MsgType(nil), s.rxTypes...)
}

func (s *Slave) OtaDescAddr() uint32 {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.otaDescAddr
}

// Option of the last reset received; zero if none.
func (s *Slave) ResetOpt() sblp.ResetOpt {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.resetOpt
}
