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

package xport

import (
	"time"
)

// A byte transport to an SBL slave's IOS.  The link is half duplex and
// strictly sequential: the host writes a packet, then waits for the slave
// to raise its ready signal before it may write or read again.
type Xport interface {
	Start() error
	Stop() error

	// Writes one IOS packet.
	Tx(pkt []byte) error

	// Blocks until the slave raises its ready signal, the timeout expires,
	// or stopChan is closed.  Returns the packet the slave queued for the
	// host, or an empty slice if the signal was a bare handshake.
	RxReady(timeout time.Duration, stopChan <-chan struct{}) ([]byte, error)

	// Discards ready events that arrived after their exchange was given
	// up on.
	Drain()
}
