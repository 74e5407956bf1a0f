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
	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
)

type msgCtor func() SblMsg

func helloMsgCtor() SblMsg   { return NewHelloMsg() }
func statusMsgCtor() SblMsg  { return NewStatusMsg() }
func otaDescMsgCtor() SblMsg { return NewOtaDescMsg() }
func updateMsgCtor() SblMsg  { return NewUpdateMsg() }
func abortMsgCtor() SblMsg   { return NewAbortMsg() }
func resetMsgCtor() SblMsg   { return NewResetMsg() }
func ackMsgCtor() SblMsg     { return NewAckMsg() }
func dataMsgCtor() SblMsg    { return NewDataMsg() }

var msgCtorMap = map[MsgType]msgCtor{
	MSG_TYPE_HELLO:    helloMsgCtor,
	MSG_TYPE_STATUS:   statusMsgCtor,
	MSG_TYPE_OTA_DESC: otaDescMsgCtor,
	MSG_TYPE_UPDATE:   updateMsgCtor,
	MSG_TYPE_ABORT:    abortMsgCtor,
	MSG_TYPE_RESET:    resetMsgCtor,
	MSG_TYPE_ACK:      ackMsgCtor,
	MSG_TYPE_DATA:     dataMsgCtor,
}

//////////////////////////////////////////////////////////////////////////////
// $hello                                                                   //
//////////////////////////////////////////////////////////////////////////////

type HelloMsg struct {
	SblBase
}

func NewHelloMsg() *HelloMsg {
	return &HelloMsg{}
}

func (m *HelloMsg) Type() MsgType   { return MSG_TYPE_HELLO }
func (m *HelloMsg) Payload() []byte { return nil }

func (m *HelloMsg) decodePayload(b []byte) error {
	r := fieldReader{b: b, typ: m.Type()}
	return r.done()
}

//////////////////////////////////////////////////////////////////////////////
// $status                                                                  //
//////////////////////////////////////////////////////////////////////////////

const STATUS_AM_INFO_WORDS = 16

type StatusMsg struct {
	SblBase      `structs:"-"`
	Version      uint32                       `structs:"version"`
	MaxImageSize uint32                       `structs:"max_image_size"`
	CurStatus    uint32                       `structs:"cur_status"`
	CurState     uint32                       `structs:"cur_state"`
	AmInfo       [STATUS_AM_INFO_WORDS]uint32 `structs:"am_info"`
}

func NewStatusMsg() *StatusMsg {
	return &StatusMsg{}
}

func (m *StatusMsg) Type() MsgType { return MSG_TYPE_STATUS }

func (m *StatusMsg) Payload() []byte {
	b := make([]byte, 0, 4*(4+STATUS_AM_INFO_WORDS))
	b = appendU32(b, m.Version)
	b = appendU32(b, m.MaxImageSize)
	b = appendU32(b, m.CurStatus)
	b = appendU32(b, m.CurState)
	for _, w := range m.AmInfo {
		b = appendU32(b, w)
	}
	return b
}

func (m *StatusMsg) decodePayload(b []byte) error {
	r := fieldReader{b: b, typ: m.Type()}

	fields := []*uint32{&m.Version, &m.MaxImageSize, &m.CurStatus, &m.CurState}
	for i := range m.AmInfo {
		fields = append(fields, &m.AmInfo[i])
	}

	for _, f := range fields {
		v, err := r.u32()
		if err != nil {
			return err
		}
		*f = v
	}

	return r.done()
}

//////////////////////////////////////////////////////////////////////////////
// $ota desc                                                                //
//////////////////////////////////////////////////////////////////////////////

type OtaDescMsg struct {
	SblBase
	Addr uint32
}

func NewOtaDescMsg() *OtaDescMsg {
	return &OtaDescMsg{}
}

func (m *OtaDescMsg) Type() MsgType { return MSG_TYPE_OTA_DESC }

func (m *OtaDescMsg) Payload() []byte {
	return appendU32(nil, m.Addr)
}

func (m *OtaDescMsg) decodePayload(b []byte) error {
	r := fieldReader{b: b, typ: m.Type()}

	var err error
	if m.Addr, err = r.u32(); err != nil {
		return err
	}

	return r.done()
}

//////////////////////////////////////////////////////////////////////////////
// $update                                                                  //
//////////////////////////////////////////////////////////////////////////////

type UpdateMsg struct {
	SblBase
	TotalSize  uint32
	BlobCrc    uint32
	InlineSize uint32
}

func NewUpdateMsg() *UpdateMsg {
	return &UpdateMsg{}
}

func (m *UpdateMsg) Type() MsgType { return MSG_TYPE_UPDATE }

func (m *UpdateMsg) Payload() []byte {
	b := make([]byte, 0, 12)
	b = appendU32(b, m.TotalSize)
	b = appendU32(b, m.BlobCrc)
	b = appendU32(b, m.InlineSize)
	return b
}

// Inline data is not supported; all image bytes travel in data messages.
func (m *UpdateMsg) Validate() error {
	if m.InlineSize != 0 {
		return sblxutil.FmtBadParamError(
			"update with inline data not supported; size=%d", m.InlineSize)
	}
	return nil
}

func (m *UpdateMsg) decodePayload(b []byte) error {
	r := fieldReader{b: b, typ: m.Type()}

	for _, f := range []*uint32{&m.TotalSize, &m.BlobCrc, &m.InlineSize} {
		v, err := r.u32()
		if err != nil {
			return err
		}
		*f = v
	}

	return r.done()
}

//////////////////////////////////////////////////////////////////////////////
// $abort                                                                   //
//////////////////////////////////////////////////////////////////////////////

type AbortMsg struct {
	SblBase
}

func NewAbortMsg() *AbortMsg {
	return &AbortMsg{}
}

func (m *AbortMsg) Type() MsgType   { return MSG_TYPE_ABORT }
func (m *AbortMsg) Payload() []byte { return nil }

func (m *AbortMsg) decodePayload(b []byte) error {
	r := fieldReader{b: b, typ: m.Type()}
	return r.done()
}

//////////////////////////////////////////////////////////////////////////////
// $reset                                                                   //
//////////////////////////////////////////////////////////////////////////////

type ResetMsg struct {
	SblBase
	Opt ResetOpt
}

func NewResetMsg() *ResetMsg {
	return &ResetMsg{
		Opt: RESET_OPT_POI,
	}
}

func (m *ResetMsg) Type() MsgType { return MSG_TYPE_RESET }

func (m *ResetMsg) Payload() []byte {
	return appendU32(nil, uint32(m.Opt))
}

func (m *ResetMsg) Validate() error {
	if m.Opt != RESET_OPT_POI && m.Opt != RESET_OPT_POR {
		return sblxutil.FmtBadParamError("invalid reset option: %s", m.Opt)
	}
	return nil
}

func (m *ResetMsg) decodePayload(b []byte) error {
	r := fieldReader{b: b, typ: m.Type()}

	v, err := r.u32()
	if err != nil {
		return err
	}
	m.Opt = ResetOpt(v)

	return r.done()
}

//////////////////////////////////////////////////////////////////////////////
// $ack                                                                     //
//////////////////////////////////////////////////////////////////////////////

type AckMsg struct {
	SblBase
	SrcType MsgType
	Status  AckStatus
	Seq     uint32
}

func NewAckMsg() *AckMsg {
	return &AckMsg{}
}

func (m *AckMsg) Type() MsgType { return MSG_TYPE_ACK }

func (m *AckMsg) Payload() []byte {
	b := make([]byte, 0, 12)
	b = appendU32(b, uint32(m.SrcType))
	b = appendU32(b, uint32(m.Status))
	b = appendU32(b, m.Seq)
	return b
}

func (m *AckMsg) decodePayload(b []byte) error {
	r := fieldReader{b: b, typ: m.Type()}

	src, err := r.u32()
	if err != nil {
		return err
	}
	m.SrcType = MsgType(src)

	status, err := r.u32()
	if err != nil {
		return err
	}
	m.Status = AckStatus(status)

	if m.Seq, err = r.u32(); err != nil {
		return err
	}

	return r.done()
}

//////////////////////////////////////////////////////////////////////////////
// $data                                                                    //
//////////////////////////////////////////////////////////////////////////////

type DataMsg struct {
	SblBase
	Seq  uint32 // Byte offset of Data within the current block.
	Data []byte
}

func NewDataMsg() *DataMsg {
	return &DataMsg{}
}

func (m *DataMsg) Type() MsgType { return MSG_TYPE_DATA }

func (m *DataMsg) Payload() []byte {
	b := make([]byte, 0, 4+len(m.Data))
	b = appendU32(b, m.Seq)
	return append(b, m.Data...)
}

func (m *DataMsg) Validate() error {
	if len(m.Data) > MAX_CHUNK_SIZE {
		return sblxutil.FmtBadParamError(
			"data chunk too large: %d bytes (max %d)",
			len(m.Data), MAX_CHUNK_SIZE)
	}
	return nil
}

func (m *DataMsg) decodePayload(b []byte) error {
	r := fieldReader{b: b, typ: m.Type()}

	var err error
	if m.Seq, err = r.u32(); err != nil {
		return err
	}
	m.Data = append([]byte(nil), r.rest()...)

	return nil
}

//////////////////////////////////////////////////////////////////////////////
// $unknown                                                                 //
//////////////////////////////////////////////////////////////////////////////

// A CRC-valid message of a type this package has no decoder for (e.g.,
// recover).
type UnknownMsg struct {
	SblBase
	MsgType MsgType
	Raw     []byte
}

func (m *UnknownMsg) Type() MsgType   { return m.MsgType }
func (m *UnknownMsg) Payload() []byte { return m.Raw }

func (m *UnknownMsg) decodePayload(b []byte) error {
	m.Raw = append([]byte(nil), b...)
	return nil
}
