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

package sesn

import (
	"time"

	"mynewt.apache.org/sblmgr/sblxact/sblp"
)

var DfltTxOptions = TxOptions{
	Timeout: 10 * time.Second,
	Tries:   1,
}

type TxOptions struct {
	// Longest wait for any single ready signal.  Must be positive.
	Timeout time.Duration

	// Total number of attempts at an exchange that timed out.  Only
	// timeouts are retried.
	Tries int
}

func NewTxOptions() TxOptions {
	return DfltTxOptions
}

// Represents a communication session with an SBL slave over one link.  The
// session owns its transport for its lifetime; exchanges are strictly
// sequential.
type Sesn interface {
	// Initiates communication with the slave.
	// Returns:
	//     * nil: success.
	//     * sblxutil.SesnAlreadyOpenError: session already open.
	//     * other error
	Open() error

	// Ends communication with the slave.
	//     * nil: success.
	//     * sblxutil.SesnClosedError: session not open.
	Close() error

	IsOpen() bool

	// Largest physical packet the session will write, header included.
	MtuOut() int

	// Stops an exchange in progress.  This must be called from a separate
	// goroutine, as exchanges are blocking.
	AbortRx() error

	// Transmits a single message, fragmenting as necessary, and blocks until
	// the slave's response has been received and validated.
	//     * nil: success.
	//     * sblxutil.CrcMismatchError: response failed its CRC check.
	//     * sblxutil.RspTimeoutError: slave never signalled ready.
	//     * sblxutil.SesnClosedError: session not open.
	//     * sblxutil.BadParamError: opt.Timeout is not positive.
	//     * other error
	TxRxMsg(m sblp.SblMsg, opt TxOptions) (sblp.SblMsg, error)
}
