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
	"mynewt.apache.org/sblmgr/sblxact/sblp"
	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
	"mynewt.apache.org/sblmgr/sblxact/sesn"
)

//////////////////////////////////////////////////////////////////////////////
// $hello                                                                   //
//////////////////////////////////////////////////////////////////////////////

type HelloCmd struct {
	CmdBase
}

type HelloResult struct {
	Rsp *sblp.StatusMsg
}

func NewHelloCmd() *HelloCmd {
	return &HelloCmd{
		CmdBase: NewCmdBase(),
	}
}

func newHelloResult() *HelloResult {
	return &HelloResult{}
}

func (r *HelloResult) Status() int {
	return 0
}

func (c *HelloCmd) Run(s sesn.Sesn) (Result, error) {
	rsp, err := txReq(s, sblp.NewHelloMsg(), &c.CmdBase)
	if err != nil {
		return nil, err
	}

	srsp, ok := rsp.(*sblp.StatusMsg)
	if !ok {
		return nil, sblxutil.FmtUnexpectedStatusError(
			"expected status in response to hello, got %s", rsp.Type())
	}

	res := newHelloResult()
	res.Rsp = srsp
	return res, nil
}

//////////////////////////////////////////////////////////////////////////////
// $ack-only commands                                                       //
//////////////////////////////////////////////////////////////////////////////

// Result of any command the slave answers with a bare ack.
type AckResult struct {
	Rsp *sblp.AckMsg
}

func newAckResult() *AckResult {
	return &AckResult{}
}

func (r *AckResult) Status() int {
	return int(r.Rsp.Status)
}

func runAckCmd(s sesn.Sesn, m sblp.SblMsg, c *CmdBase) (Result, error) {
	rsp, err := txReq(s, m, c)
	if err != nil {
		return nil, err
	}

	ack, err := toAck(rsp, m.Type())
	if err != nil {
		return nil, err
	}

	res := newAckResult()
	res.Rsp = ack
	return res, nil
}

type ResetCmd struct {
	CmdBase
	Opt sblp.ResetOpt
}

func NewResetCmd() *ResetCmd {
	return &ResetCmd{
		CmdBase: NewCmdBase(),
		Opt:     sblp.RESET_OPT_POI,
	}
}

func (c *ResetCmd) Run(s sesn.Sesn) (Result, error) {
	r := sblp.NewResetMsg()
	r.Opt = c.Opt

	return runAckCmd(s, r, &c.CmdBase)
}

type AbortCmd struct {
	CmdBase
}

func NewAbortCmd() *AbortCmd {
	return &AbortCmd{
		CmdBase: NewCmdBase(),
	}
}

func (c *AbortCmd) Run(s sesn.Sesn) (Result, error) {
	return runAckCmd(s, sblp.NewAbortMsg(), &c.CmdBase)
}

type OtaDescCmd struct {
	CmdBase
	Addr uint32
}

func NewOtaDescCmd() *OtaDescCmd {
	return &OtaDescCmd{
		CmdBase: NewCmdBase(),
		Addr:    sblp.DFLT_OTA_DESC_ADDR,
	}
}

func (c *OtaDescCmd) Run(s sesn.Sesn) (Result, error) {
	r := sblp.NewOtaDescMsg()
	r.Addr = c.Addr

	return runAckCmd(s, r, &c.CmdBase)
}
