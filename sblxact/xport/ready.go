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
	"sync"
	"time"

	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
)

const DFLT_READY_QUEUE_DEPTH = 16

// Buffers ready events posted by a transport's receive path until the
// session waits for them.  Each event is the packet that accompanied the
// signal (possibly empty).
type ReadyQueue struct {
	ch     chan []byte
	errCh  chan error
	mtx    sync.Mutex
	closed bool
}

func NewReadyQueue(depth int) *ReadyQueue {
	return &ReadyQueue{
		ch:    make(chan []byte, depth),
		errCh: make(chan error, 1),
	}
}

// Posts a ready event.  Events posted after Close are dropped.  If the
// queue is full the oldest event is discarded; the session only ever has
// one exchange outstanding, so a full queue means stale signals.
func (q *ReadyQueue) Post(pkt []byte) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if q.closed {
		return
	}

	for {
		select {
		case q.ch <- pkt:
			return
		default:
			select {
			case <-q.ch:
			default:
			}
		}
	}
}

// Reports a receive-path failure to the next waiter.
func (q *ReadyQueue) PostErr(err error) {
	select {
	case q.errCh <- err:
	default:
	}
}

// Discards buffered events.  A pending error is kept; it describes the
// link rather than any one exchange.
func (q *ReadyQueue) Drain() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

func (q *ReadyQueue) Close() {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	q.closed = true
	q.PostErr(sblxutil.NewXportError("transport stopped"))
}

func (q *ReadyQueue) Wait(timeout time.Duration,
	stopChan <-chan struct{}) ([]byte, error) {

	// Deliver events that were already buffered ahead of errors.
	select {
	case pkt := <-q.ch:
		return pkt, nil
	default:
	}

	// A non-positive timeout waits indefinitely.  Sessions never request
	// that.
	var tmoChan <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer sblxutil.StopAndDrainTimer(timer)
		tmoChan = timer.C
	}

	select {
	case pkt := <-q.ch:
		return pkt, nil
	case err := <-q.errCh:
		return nil, err
	case <-tmoChan:
		return nil, sblxutil.FmtRspTimeoutError(
			"no ready signal from slave after %s", timeout.String())
	case <-stopChan:
		return nil, sblxutil.NewAbortedError("wait for ready signal aborted")
	}
}
