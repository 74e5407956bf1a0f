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

package sblserial

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"

	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
	"mynewt.apache.org/sblmgr/sblxact/xport"
)

type XportCfg struct {
	DevPath     string
	Baud        int
	ReadTimeout time.Duration

	// Pause between frame lines; the bridge's UART buffer is small.
	LineDelay time.Duration
}

func NewXportCfg() *XportCfg {
	return &XportCfg{
		Baud:        115200,
		ReadTimeout: 10 * time.Second,
		LineDelay:   20 * time.Millisecond,
	}
}

// Talks to an SBL slave through a UART-to-IOS bridge.
type SerialXport struct {
	cfg  *XportCfg
	port *serial.Port
	link *xport.StreamLink
}

func NewSerialXport(cfg *XportCfg) *SerialXport {
	return &SerialXport{
		cfg: cfg,
	}
}

func (sx *SerialXport) Start() error {
	if sx.link != nil {
		return sblxutil.NewXportError("serial xport started twice")
	}

	c := &serial.Config{
		Name:        sx.cfg.DevPath,
		Baud:        sx.cfg.Baud,
		ReadTimeout: sx.cfg.ReadTimeout,
	}

	port, err := serial.OpenPort(c)
	if err != nil {
		return sblxutil.WrapXportError(err,
			"failed to open serial port %s", sx.cfg.DevPath)
	}

	if err := port.Flush(); err != nil {
		port.Close()
		return sblxutil.WrapXportError(err, "failed to flush serial port")
	}

	log.Debugf("opened serial port %s at %d baud",
		sx.cfg.DevPath, sx.cfg.Baud)

	sx.port = port
	sx.link = xport.NewStreamLink(port, xport.StreamLinkCfg{
		Name:         "serial",
		LineDelay:    sx.cfg.LineDelay,
		RestartOnEOF: true,
	})

	return nil
}

func (sx *SerialXport) Stop() error {
	if sx.link == nil {
		return sblxutil.NewXportError("serial xport stopped twice")
	}

	err := sx.link.Close()
	sx.link = nil
	sx.port = nil
	return err
}

func (sx *SerialXport) Tx(pkt []byte) error {
	if sx.link == nil {
		return sblxutil.NewXportError("serial xport not started")
	}
	return sx.link.Tx(pkt)
}

func (sx *SerialXport) RxReady(timeout time.Duration,
	stopChan <-chan struct{}) ([]byte, error) {

	if sx.link == nil {
		return nil, sblxutil.NewXportError("serial xport not started")
	}
	return sx.link.RxReady(timeout, stopChan)
}

func (sx *SerialXport) Drain() {
	if sx.link != nil {
		sx.link.Drain()
	}
}
