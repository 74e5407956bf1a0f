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

package sim

import (
	"time"

	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
	"mynewt.apache.org/sblmgr/sblxact/xport"
)

// An in-process transport connected directly to a simulated slave.
type Xport struct {
	slave   *Slave
	q       *xport.ReadyQueue
	started bool

	// Response withheld until the host times out waiting for it.
	late [][]byte
}

func NewXport(s *Slave) *Xport {
	return &Xport{
		slave: s,
	}
}

func (x *Xport) Slave() *Slave {
	return x.slave
}

func (x *Xport) Start() error {
	if x.started {
		return sblxutil.NewXportError("sim xport started twice")
	}

	x.q = xport.NewReadyQueue(64)
	x.started = true
	return nil
}

func (x *Xport) Stop() error {
	if !x.started {
		return sblxutil.NewXportError("sim xport stopped twice")
	}

	x.q.Close()
	x.started = false
	return nil
}

func (x *Xport) Tx(pkt []byte) error {
	if !x.started {
		return sblxutil.NewXportError("sim xport not started")
	}

	evs := x.slave.HandlePkt(pkt)
	if len(evs) > 0 && len(evs[0]) > 0 && x.slave.takeLate() {
		x.late = evs
		return nil
	}

	for _, ev := range evs {
		if x.slave.takeReady() {
			x.q.Post(ev)
		}
	}
	return nil
}

func (x *Xport) RxReady(timeout time.Duration,
	stopChan <-chan struct{}) ([]byte, error) {

	if !x.started {
		return nil, sblxutil.NewXportError("sim xport not started")
	}

	pkt, err := x.q.Wait(timeout, stopChan)
	if sblxutil.IsRspTimeout(err) && x.late != nil {
		// The withheld response shows up just after the host gives up.
		for _, ev := range x.late {
			x.q.Post(ev)
		}
		x.late = nil
	}

	return pkt, err
}

func (x *Xport) Drain() {
	if x.started {
		x.q.Drain()
	}
}
