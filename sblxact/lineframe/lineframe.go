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

// Package lineframe carries binary packets over a byte stream as
// base64-encoded console lines, the same framing newtmgr uses for serial
// links.  Each frame is
//
//	base64(len:16BE || payload || crc16:16BE)
//
// split into lines of at most MAX_LINE_LEN characters.  The first line of a
// frame starts with {0x06, 0x09}, continuation lines with {0x04, 0x14}, and
// every line ends with '\n'.
package lineframe

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/joaojeronimo/go-crc16"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/newt/util"
)

// Base64 characters per line.  A multiple of four so that each line decodes
// on its own.
const MAX_LINE_LEN = 124

// Largest payload a frame may carry.
const MAX_FRAME_LEN = 4096

var startMarker = []byte{6, 9}
var contMarker = []byte{4, 20}

// Splits a payload into the lines of one frame, each terminated by a
// newline.
func EncodeLines(payload []byte) [][]byte {
	body := make([]byte, 2, 2+len(payload)+2)
	binary.BigEndian.PutUint16(body, uint16(len(payload)+2))
	body = append(body, payload...)

	crc := make([]byte, 2)
	binary.BigEndian.PutUint16(crc, crc16.Crc16(payload))
	body = append(body, crc...)

	b64 := make([]byte, base64.StdEncoding.EncodedLen(len(body)))
	base64.StdEncoding.Encode(b64, body)

	var lines [][]byte
	for written := 0; written < len(b64); {
		var line []byte
		if written == 0 {
			line = append(line, startMarker...)
		} else {
			line = append(line, contMarker...)
		}

		n := util.Min(MAX_LINE_LEN, len(b64)-written)
		line = append(line, b64[written:written+n]...)
		line = append(line, '\n')
		lines = append(lines, line)

		written += n
	}

	return lines
}

func Encode(payload []byte) []byte {
	return bytes.Join(EncodeLines(payload), nil)
}

// A malformed frame.  The stream itself is still usable.
type FrameError struct {
	Text string
}

func fmtFrameError(format string, args ...interface{}) *FrameError {
	return &FrameError{fmt.Sprintf(format, args...)}
}

func (e *FrameError) Error() string {
	return e.Text
}

func IsFrameError(err error) bool {
	_, ok := err.(*FrameError)
	return ok
}

type frame struct {
	expectedLen int
	buf         bytes.Buffer
}

type Decoder struct {
	scanner *bufio.Scanner
	cur     *frame
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		scanner: bufio.NewScanner(r),
	}
}

// Blocking receive of the next complete frame.  Lines that are not part of
// a frame (console noise) are skipped.  Returns io.EOF when the stream ends.
func (d *Decoder) Decode() ([]byte, error) {
	for d.scanner.Scan() {
		line := bytes.TrimLeft(d.scanner.Bytes(), "\r")
		line = bytes.TrimRight(line, "\r")

		if len(line) < 2 {
			continue
		}

		isStart := bytes.Equal(line[:2], startMarker)
		if !isStart && !bytes.Equal(line[:2], contMarker) {
			continue
		}

		data, err := base64.StdEncoding.DecodeString(string(line[2:]))
		if err != nil {
			d.cur = nil
			return nil, fmtFrameError("Couldn't decode base64 string: %s\n"+
				"Line hex dump:\n%s", string(line[2:]), hex.Dump(line))
		}

		if isStart {
			if len(data) < 2 {
				continue
			}

			flen := int(binary.BigEndian.Uint16(data[0:2]))
			if flen < 2 || flen > MAX_FRAME_LEN+2 {
				d.cur = nil
				return nil, fmtFrameError("invalid frame length: %d", flen)
			}
			d.cur = &frame{expectedLen: flen}
			data = data[2:]
		}

		if d.cur == nil {
			continue
		}

		d.cur.buf.Write(data)
		if d.cur.buf.Len() < d.cur.expectedLen {
			continue
		}

		b := d.cur.buf.Bytes()[:d.cur.expectedLen]
		d.cur = nil

		if len(b) < 2 {
			return nil, fmtFrameError("short frame")
		}
		payload := b[:len(b)-2]
		expected := binary.BigEndian.Uint16(b[len(b)-2:])
		if actual := crc16.Crc16(payload); actual != expected {
			return nil, fmtFrameError("CRC error; expected=0x%04x actual=0x%04x",
				expected, actual)
		}

		log.Debugf("Decoded frame:\n%s", hex.Dump(payload))
		return payload, nil
	}

	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
