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
	"fmt"

	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
)

const (
	// Capacity of the slave's IOS local RAM; the largest physical packet.
	MAX_IOS_LRAM_SIZE = 120

	// Largest logical message the slave will reassemble.
	MAX_IOS_MSG_SIZE = 2048

	// Largest image slice carried by a single data message (message header
	// plus sequence number).
	MAX_CHUNK_SIZE = MAX_IOS_MSG_SIZE - 12

	// Default size of an image block delivered in one update round.
	DFLT_MAX_UPDATE_SIZE = 0x48000 + 80

	// Default flash address of the OTA descriptor.
	DFLT_OTA_DESC_ADDR = 0xFE000
)

type MsgType uint16

const (
	MSG_TYPE_HELLO    MsgType = 0
	MSG_TYPE_STATUS   MsgType = 1
	MSG_TYPE_OTA_DESC MsgType = 2
	MSG_TYPE_UPDATE   MsgType = 3
	MSG_TYPE_ABORT    MsgType = 4
	MSG_TYPE_RECOVER  MsgType = 5
	MSG_TYPE_RESET    MsgType = 6
	MSG_TYPE_ACK      MsgType = 7
	MSG_TYPE_DATA     MsgType = 8
)

var msgTypeNameMap = map[MsgType]string{
	MSG_TYPE_HELLO:    "hello",
	MSG_TYPE_STATUS:   "status",
	MSG_TYPE_OTA_DESC: "ota_desc",
	MSG_TYPE_UPDATE:   "update",
	MSG_TYPE_ABORT:    "abort",
	MSG_TYPE_RECOVER:  "recover",
	MSG_TYPE_RESET:    "reset",
	MSG_TYPE_ACK:      "ack",
	MSG_TYPE_DATA:     "data",
}

func (t MsgType) String() string {
	s := msgTypeNameMap[t]
	if s == "" {
		return fmt.Sprintf("unknown(%d)", int(t))
	}
	return s
}

type AckStatus uint32

const (
	ACK_STATUS_SUCCESS AckStatus = iota
	ACK_STATUS_FAILURE
	ACK_STATUS_INVALID_INFO0
	ACK_STATUS_CRC
	ACK_STATUS_SEC
	ACK_STATUS_MSG_TOO_BIG
	ACK_STATUS_UNKNOWN_MSG_TYPE
	ACK_STATUS_INVALID_ADDR
	ACK_STATUS_INVALID_OPERATION
	ACK_STATUS_INVALID_PARAM
	ACK_STATUS_SEQ
	ACK_STATUS_TOO_MUCH_DATA
)

var ackStatusNameMap = map[AckStatus]string{
	ACK_STATUS_SUCCESS:           "success",
	ACK_STATUS_FAILURE:           "failure",
	ACK_STATUS_INVALID_INFO0:     "invalid_info0",
	ACK_STATUS_CRC:               "crc",
	ACK_STATUS_SEC:               "sec",
	ACK_STATUS_MSG_TOO_BIG:       "msg_too_big",
	ACK_STATUS_UNKNOWN_MSG_TYPE:  "unknown_msg_type",
	ACK_STATUS_INVALID_ADDR:      "invalid_addr",
	ACK_STATUS_INVALID_OPERATION: "invalid_operation",
	ACK_STATUS_INVALID_PARAM:     "invalid_param",
	ACK_STATUS_SEQ:               "seq",
	ACK_STATUS_TOO_MUCH_DATA:     "too_much_data",
}

func (s AckStatus) String() string {
	str := ackStatusNameMap[s]
	if str == "" {
		return "???"
	}
	return str
}

type ResetOpt uint32

const (
	RESET_OPT_POI ResetOpt = 0x1
	RESET_OPT_POR ResetOpt = 0x2
)

func (o ResetOpt) String() string {
	switch o {
	case RESET_OPT_POI:
		return "poi"
	case RESET_OPT_POR:
		return "por"
	default:
		return fmt.Sprintf("0x%x", uint32(o))
	}
}

func ResetOptFromString(s string) (ResetOpt, error) {
	switch s {
	case "poi", "POI":
		return RESET_OPT_POI, nil
	case "por", "POR":
		return RESET_OPT_POR, nil
	default:
		return 0, sblxutil.FmtBadParamError("invalid reset option: %s", s)
	}
}
