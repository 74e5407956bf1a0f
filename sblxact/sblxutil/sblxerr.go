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

package sblxutil

import (
	"fmt"

	"github.com/pkg/errors"
)

// Broad classes of failure reported by sblxact operations.
type ErrorKind int

const (
	KIND_NONE ErrorKind = iota
	KIND_CRC_MISMATCH
	KIND_UNEXPECTED_STATUS
	KIND_BAD_PARAM
	KIND_TIMEOUT
	KIND_XPORT
	KIND_ABORTED
)

var errorKindNameMap = map[ErrorKind]string{
	KIND_NONE:              "none",
	KIND_CRC_MISMATCH:      "crc_mismatch",
	KIND_UNEXPECTED_STATUS: "unexpected_status",
	KIND_BAD_PARAM:         "bad_param",
	KIND_TIMEOUT:           "timeout",
	KIND_XPORT:             "xport",
	KIND_ABORTED:           "aborted",
}

func (k ErrorKind) String() string {
	s := errorKindNameMap[k]
	if s == "" {
		return "???"
	}
	return s
}

// Classifies an error, looking through any pkg/errors wrapping.  Errors that
// do not originate in sblxact are assumed to come from the underlying
// transport.
func Kind(err error) ErrorKind {
	if err == nil {
		return KIND_NONE
	}

	switch errors.Cause(err).(type) {
	case *CrcMismatchError:
		return KIND_CRC_MISMATCH
	case *UnexpectedStatusError:
		return KIND_UNEXPECTED_STATUS
	case *BadParamError:
		return KIND_BAD_PARAM
	case *RspTimeoutError:
		return KIND_TIMEOUT
	case *AbortedError:
		return KIND_ABORTED
	default:
		return KIND_XPORT
	}
}

// A received message failed its CRC-32 check.
type CrcMismatchError struct {
	Text     string
	Expected uint32
	Actual   uint32
}

func NewCrcMismatchError(expected uint32, actual uint32) *CrcMismatchError {
	return &CrcMismatchError{
		Text: fmt.Sprintf("crc mismatch; expected=0x%08x actual=0x%08x",
			expected, actual),
		Expected: expected,
		Actual:   actual,
	}
}

func (e *CrcMismatchError) Error() string {
	return e.Text
}

func IsCrcMismatch(err error) bool {
	_, ok := errors.Cause(err).(*CrcMismatchError)
	return ok
}

// The peer responded with something other than what the current exchange
// calls for: a NACK, a status that rules out the update, a malformed
// message, or a message type that is not valid in the current state.
type UnexpectedStatusError struct {
	Text string
}

func NewUnexpectedStatusError(text string) *UnexpectedStatusError {
	return &UnexpectedStatusError{
		Text: text,
	}
}

func FmtUnexpectedStatusError(format string,
	args ...interface{}) *UnexpectedStatusError {

	return NewUnexpectedStatusError(fmt.Sprintf(format, args...))
}

func (e *UnexpectedStatusError) Error() string {
	return e.Text
}

func IsUnexpectedStatus(err error) bool {
	_, ok := errors.Cause(err).(*UnexpectedStatusError)
	return ok
}

// The caller asked for something the protocol does not support.
type BadParamError struct {
	Text string
}

func NewBadParamError(text string) *BadParamError {
	return &BadParamError{
		Text: text,
	}
}

func FmtBadParamError(format string, args ...interface{}) *BadParamError {
	return NewBadParamError(fmt.Sprintf(format, args...))
}

func (e *BadParamError) Error() string {
	return e.Text
}

func IsBadParam(err error) bool {
	_, ok := errors.Cause(err).(*BadParamError)
	return ok
}

// Represents an application-layer timeout; packet sent, but the slave never
// raised its ready signal.
type RspTimeoutError struct {
	Text string
}

func NewRspTimeoutError(text string) *RspTimeoutError {
	return &RspTimeoutError{
		Text: text,
	}
}

func FmtRspTimeoutError(format string, args ...interface{}) *RspTimeoutError {
	return NewRspTimeoutError(fmt.Sprintf(format, args...))
}

func (e *RspTimeoutError) Error() string {
	return e.Text
}

func IsRspTimeout(err error) bool {
	_, ok := errors.Cause(err).(*RspTimeoutError)
	return ok
}

// Represents a low-level transport error.  Err, when set, is the failure
// reported by the underlying device or socket; errors.Cause reaches it.
type XportError struct {
	Text string
	Err  error
}

func NewXportError(text string) *XportError {
	return &XportError{
		Text: text,
		Err:  errors.New(text),
	}
}

func WrapXportError(err error, format string,
	args ...interface{}) *XportError {

	return &XportError{
		Text: fmt.Sprintf(format, args...),
		Err:  err,
	}
}

func (e *XportError) Error() string {
	if e.Err == nil || e.Err.Error() == e.Text {
		return e.Text
	}
	return e.Text + ": " + e.Err.Error()
}

func (e *XportError) Cause() error {
	return e.Err
}

// Unlike the other predicates, this looks at every link in the chain: an
// XportError is never the root cause of anything.
func IsXport(err error) bool {
	for err != nil {
		if _, ok := err.(*XportError); ok {
			return true
		}

		c, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = c.Cause()
	}

	return false
}

type AbortedError struct {
	Text string
}

func NewAbortedError(text string) *AbortedError {
	return &AbortedError{text}
}

func (e *AbortedError) Error() string {
	return e.Text
}

func IsAborted(err error) bool {
	_, ok := errors.Cause(err).(*AbortedError)
	return ok
}

type SesnAlreadyOpenError struct {
	Text string
}

func NewSesnAlreadyOpenError(text string) *SesnAlreadyOpenError {
	return &SesnAlreadyOpenError{
		Text: text,
	}
}

func (e *SesnAlreadyOpenError) Error() string {
	return e.Text
}

func IsSesnAlreadyOpen(err error) bool {
	_, ok := errors.Cause(err).(*SesnAlreadyOpenError)
	return ok
}

type SesnClosedError struct {
	Text string
}

func NewSesnClosedError(text string) *SesnClosedError {
	return &SesnClosedError{
		Text: text,
	}
}

func (e *SesnClosedError) Error() string {
	return e.Text
}

func IsSesnClosed(err error) bool {
	_, ok := errors.Cause(err).(*SesnClosedError)
	return ok
}
