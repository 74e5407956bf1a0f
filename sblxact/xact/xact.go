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

package xact

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/sblmgr/sblxact/sblp"
	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
	"mynewt.apache.org/sblmgr/sblxact/sesn"
)

type Result interface {
	Status() int
}

type Cmd interface {
	// Transmits request and listens for response; blocking.
	Run(s sesn.Sesn) (Result, error)
	Abort() error

	TxOptions() sesn.TxOptions
	SetTxOptions(opt sesn.TxOptions)
}

type CmdBase struct {
	txOptions sesn.TxOptions
	curSesn   sesn.Sesn
	abortErr  error
	mtx       sync.Mutex
}

func NewCmdBase() CmdBase {
	return CmdBase{
		txOptions: sesn.NewTxOptions(),
	}
}

func (c *CmdBase) TxOptions() sesn.TxOptions {
	return c.txOptions
}

func (c *CmdBase) SetTxOptions(opt sesn.TxOptions) {
	c.txOptions = opt
}

// Stops the command at its next suspension point.  Safe to call from any
// goroutine.
func (c *CmdBase) Abort() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.abortErr = sblxutil.NewAbortedError("Command aborted")
	if c.curSesn != nil {
		if err := c.curSesn.AbortRx(); err != nil {
			return err
		}
	}

	return nil
}

func txReq(s sesn.Sesn, m sblp.SblMsg, c *CmdBase) (sblp.SblMsg, error) {
	c.mtx.Lock()
	if c.abortErr != nil {
		c.mtx.Unlock()
		return nil, c.abortErr
	}
	c.curSesn = s
	c.mtx.Unlock()

	defer func() {
		c.mtx.Lock()
		c.curSesn = nil
		c.mtx.Unlock()
	}()

	rsp, err := s.TxRxMsg(m, c.TxOptions())
	if err != nil {
		log.Debugf("error %v during %s exchange", err, m.Type())

		// An abort that interrupts a wait surfaces as the abort, not as
		// whatever the transport reported.
		c.mtx.Lock()
		abortErr := c.abortErr
		c.mtx.Unlock()
		if abortErr != nil {
			return nil, abortErr
		}
		return nil, err
	}

	return rsp, nil
}

// Interprets a response that must be an ack of the given message type.
func toAck(rsp sblp.SblMsg, src sblp.MsgType) (*sblp.AckMsg, error) {
	ack, ok := rsp.(*sblp.AckMsg)
	if !ok {
		return nil, sblxutil.FmtUnexpectedStatusError(
			"expected ack of %s, got %s", src, rsp.Type())
	}

	if ack.SrcType != src {
		return nil, sblxutil.FmtUnexpectedStatusError(
			"expected ack of %s, got ack of %s", src, ack.SrcType)
	}

	return ack, nil
}

// Like toAck, but also requires a success status.
func toSuccessAck(rsp sblp.SblMsg, src sblp.MsgType) (*sblp.AckMsg, error) {
	ack, err := toAck(rsp, src)
	if err != nil {
		return nil, err
	}

	if ack.Status != sblp.ACK_STATUS_SUCCESS {
		return nil, sblxutil.FmtUnexpectedStatusError(
			"%s nacked; status=%s (%d) seq=%d",
			src, ack.Status, int(ack.Status), ack.Seq)
	}

	return ack, nil
}
