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

package tcp

import (
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
	"mynewt.apache.org/sblmgr/sblxact/xport"
)

type XportCfg struct {
	Addr        string
	DialTimeout time.Duration
}

func NewXportCfg() *XportCfg {
	return &XportCfg{
		DialTimeout: 5 * time.Second,
	}
}

// Talks to an SBL slave through a network bridge (or a simulated slave
// served by `sblmgr sim`).
type TcpXport struct {
	cfg  *XportCfg
	link *xport.StreamLink
}

func NewTcpXport(cfg *XportCfg) *TcpXport {
	return &TcpXport{
		cfg: cfg,
	}
}

func (x *TcpXport) Start() error {
	if x.link != nil {
		return sblxutil.NewXportError("TCP xport started twice")
	}

	conn, err := net.DialTimeout("tcp", x.cfg.Addr, x.cfg.DialTimeout)
	if err != nil {
		return sblxutil.WrapXportError(err, "failed to connect to %s",
			x.cfg.Addr)
	}

	log.Debugf("connected to %s", conn.RemoteAddr().String())

	x.link = xport.NewStreamLink(conn, xport.StreamLinkCfg{
		Name: "tcp",
	})
	return nil
}

func (x *TcpXport) Stop() error {
	if x.link == nil {
		return sblxutil.NewXportError("TCP xport stopped twice")
	}

	err := x.link.Close()
	x.link = nil
	return err
}

func (x *TcpXport) Tx(pkt []byte) error {
	if x.link == nil {
		return sblxutil.NewXportError("TCP xport not started")
	}
	return x.link.Tx(pkt)
}

func (x *TcpXport) RxReady(timeout time.Duration,
	stopChan <-chan struct{}) ([]byte, error) {

	if x.link == nil {
		return nil, sblxutil.NewXportError("TCP xport not started")
	}
	return x.link.RxReady(timeout, stopChan)
}

func (x *TcpXport) Drain() {
	if x.link != nil {
		x.link.Drain()
	}
}
