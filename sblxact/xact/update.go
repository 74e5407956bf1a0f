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
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/sblmgr/sblxact/sblp"
	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
	"mynewt.apache.org/sblmgr/sblxact/sesn"
)

//////////////////////////////////////////////////////////////////////////////
// $state                                                                   //
//////////////////////////////////////////////////////////////////////////////

type HostState int

const (
	HOST_STATE_NOT_STARTED HostState = iota
	HOST_STATE_HELLO
	HOST_STATE_UPDATE_INFO0
	HOST_STATE_OTA_DESC
	HOST_STATE_UPDATE_MAIN
	HOST_STATE_MAIN_DATA
	HOST_STATE_UPDATE_CHILD
	HOST_STATE_CHILD_DATA
	HOST_STATE_RESET
)

var hostStateNameMap = map[HostState]string{
	HOST_STATE_NOT_STARTED:  "not_started",
	HOST_STATE_HELLO:        "hello",
	HOST_STATE_UPDATE_INFO0: "update_info0",
	HOST_STATE_OTA_DESC:     "ota_desc",
	HOST_STATE_UPDATE_MAIN:  "update_main",
	HOST_STATE_MAIN_DATA:    "main_data",
	HOST_STATE_UPDATE_CHILD: "update_child",
	HOST_STATE_CHILD_DATA:   "child_data",
	HOST_STATE_RESET:        "reset",
}

func (s HostState) String() string {
	name := hostStateNameMap[s]
	if name == "" {
		name = fmt.Sprintf("state_%d", int(s))
	}
	return name
}

// Number of blocks an image of the given size is split into.
func NumBlocks(imageSize int, maxUpdateSize int) int {
	if imageSize <= 0 || maxUpdateSize <= 0 {
		return 0
	}
	return (imageSize + maxUpdateSize - 1) / maxUpdateSize
}

// Half-open image range [Start, End).
type BlockRange struct {
	Start int
	End   int
}

// Lists the image blocks in transmission order: from the end of the image
// backward, so the lowest-address block is sent last.
func BlockRanges(imageSize int, maxUpdateSize int) []BlockRange {
	var ranges []BlockRange

	n := NumBlocks(imageSize, maxUpdateSize)
	end := imageSize
	for i := 0; i < n; i++ {
		start := end - maxUpdateSize
		if start < 0 {
			start = 0
		}
		ranges = append(ranges, BlockRange{start, end})
		end = start
	}

	return ranges
}

type UpdateCfg struct {
	Image         []byte
	MaxUpdateSize int
	OtaDescAddr   uint32
	ResetOpt      sblp.ResetOpt
}

func NewUpdateCfg() UpdateCfg {
	return UpdateCfg{
		MaxUpdateSize: sblp.DFLT_MAX_UPDATE_SIZE,
		OtaDescAddr:   sblp.DFLT_OTA_DESC_ADDR,
		ResetOpt:      sblp.RESET_OPT_POI,
	}
}

// Host side of one wired update attempt.  UpdateSesn performs no I/O: each
// call consumes the slave's latest response and yields the next message to
// send.  A failed call leaves the session untouched, with one exception: a
// hello that fails (corrupt status, or an image the slave cannot hold)
// returns the session to HOST_STATE_NOT_STARTED so it can be started over.
type UpdateSesn struct {
	State               HostState
	UpdateStart         int
	UpdateEnd           int
	AppLen              int
	SentDataSize        int
	NumUpdatesRemaining int

	// Status reported by the slave in response to hello.
	SlaveStatus *sblp.StatusMsg

	cfg     UpdateCfg
	lastTx  sblp.MsgType
	lastSeq uint32
	blocks  int
	started bool
}

func NewUpdateSesn(cfg UpdateCfg) (*UpdateSesn, error) {
	if len(cfg.Image) == 0 {
		return nil, sblxutil.NewBadParamError("empty image")
	}
	if cfg.MaxUpdateSize <= 0 {
		return nil, sblxutil.FmtBadParamError(
			"invalid max update size: %d", cfg.MaxUpdateSize)
	}
	if cfg.ResetOpt != sblp.RESET_OPT_POI &&
		cfg.ResetOpt != sblp.RESET_OPT_POR {

		return nil, sblxutil.FmtBadParamError(
			"invalid reset option: 0x%x", uint32(cfg.ResetOpt))
	}

	return &UpdateSesn{
		State: HOST_STATE_NOT_STARTED,
		cfg:   cfg,
	}, nil
}

func (u *UpdateSesn) ImageSize() int {
	return len(u.cfg.Image)
}

// Total number of blocks in this update.
func (u *UpdateSesn) NumBlocks() int {
	return NumBlocks(len(u.cfg.Image), u.cfg.MaxUpdateSize)
}

// Number of image bytes the slave has acknowledged so far.
func (u *UpdateSesn) BytesSent() int {
	if !u.started || u.State == HOST_STATE_HELLO {
		return 0
	}
	if u.State == HOST_STATE_NOT_STARTED {
		return len(u.cfg.Image)
	}

	// Completed blocks occupy [UpdateEnd, end of image).
	return len(u.cfg.Image) - u.UpdateEnd + u.SentDataSize
}

// Indicates whether the update ran to completion.
func (u *UpdateSesn) Done() bool {
	return u.started && u.State == HOST_STATE_NOT_STARTED
}

func (u *UpdateSesn) send(m sblp.SblMsg, next HostState) sblp.SblMsg {
	log.Debugf("sbl update: %s --> %s; tx %s", u.State, next, m.Type())
	u.State = next
	u.lastTx = m.Type()
	return m
}

// Begins the update; returns the hello message to send.
func (u *UpdateSesn) Start() (sblp.SblMsg, error) {
	if u.State != HOST_STATE_NOT_STARTED || u.started {
		return nil, sblxutil.FmtBadParamError(
			"update already started; state=%s", u.State)
	}

	u.started = true
	return u.send(sblp.NewHelloMsg(), HOST_STATE_HELLO), nil
}

func (u *UpdateSesn) otaDesc() sblp.SblMsg {
	m := sblp.NewOtaDescMsg()
	m.Addr = u.cfg.OtaDescAddr
	return u.send(m, HOST_STATE_OTA_DESC)
}

func (u *UpdateSesn) update() sblp.SblMsg {
	end := u.UpdateStart
	start := end - u.cfg.MaxUpdateSize
	if start < 0 {
		start = 0
	}

	u.UpdateEnd = end
	u.UpdateStart = start
	u.AppLen = end - start
	u.SentDataSize = 0
	u.NumUpdatesRemaining--
	u.blocks++

	// The slave derives the block's extent from the image size and its own
	// update window.
	m := sblp.NewUpdateMsg()
	m.TotalSize = uint32(len(u.cfg.Image))
	m.BlobCrc = sblp.Crc32(u.cfg.Image[start:end])
	m.InlineSize = 0

	log.Debugf("sbl update: block %d/%d [%d,%d) crc=0x%08x",
		u.blocks, u.NumBlocks(), start, end, m.BlobCrc)

	return u.send(m, HOST_STATE_UPDATE_MAIN)
}

func (u *UpdateSesn) data() sblp.SblMsg {
	n := u.AppLen - u.SentDataSize
	if n > sblp.MAX_CHUNK_SIZE {
		n = sblp.MAX_CHUNK_SIZE
	}

	off := u.UpdateStart + u.SentDataSize

	m := sblp.NewDataMsg()
	m.Seq = uint32(u.SentDataSize)
	m.Data = u.cfg.Image[off : off+n]
	u.lastSeq = m.Seq

	u.SentDataSize += n
	return u.send(m, HOST_STATE_MAIN_DATA)
}

func (u *UpdateSesn) reset() sblp.SblMsg {
	m := sblp.NewResetMsg()
	m.Opt = u.cfg.ResetOpt
	return u.send(m, HOST_STATE_RESET)
}

// Consumes a response from the slave.  Returns the next message to send,
// or nil once the final reset has been acknowledged.
func (u *UpdateSesn) HandleRsp(rsp sblp.SblMsg) (sblp.SblMsg, error) {
	if rsp == nil {
		return nil, sblxutil.NewBadParamError("nil response")
	}

	switch u.State {
	case HOST_STATE_HELLO:
		return u.handleHelloRsp(rsp)

	case HOST_STATE_OTA_DESC,
		HOST_STATE_UPDATE_MAIN,
		HOST_STATE_MAIN_DATA,
		HOST_STATE_RESET:

		return u.handleAck(rsp)

	default:
		return nil, sblxutil.FmtUnexpectedStatusError(
			"unexpected %s in state %s", rsp.Type(), u.State)
	}
}

func (u *UpdateSesn) restart() {
	log.Debugf("sbl update: %s --> %s; hello failed",
		u.State, HOST_STATE_NOT_STARTED)

	u.State = HOST_STATE_NOT_STARTED
	u.started = false
}

// Informs the session that the exchange for its last message failed before
// a response could be handed to HandleRsp.  Only a corrupt reply to hello
// changes anything.
func (u *UpdateSesn) HandleRxErr(err error) {
	if u.State == HOST_STATE_HELLO && sblxutil.IsCrcMismatch(err) {
		u.restart()
	}
}

func (u *UpdateSesn) handleHelloRsp(rsp sblp.SblMsg) (sblp.SblMsg, error) {
	srsp, ok := rsp.(*sblp.StatusMsg)
	if !ok {
		// A nack of the hello is reported as such.
		if _, err := toSuccessAck(rsp, sblp.MSG_TYPE_HELLO); err != nil {
			return nil, err
		}
		return nil, sblxutil.FmtUnexpectedStatusError(
			"unexpected %s in state %s", rsp.Type(), u.State)
	}

	imageSize := len(u.cfg.Image)
	if int64(srsp.MaxImageSize) < int64(imageSize) {
		u.restart()
		return nil, sblxutil.FmtUnexpectedStatusError(
			"image too large for slave; image_size=%d max_image_size=%d",
			imageSize, srsp.MaxImageSize)
	}

	u.SlaveStatus = srsp
	u.NumUpdatesRemaining = u.NumBlocks()
	u.UpdateStart = imageSize
	u.UpdateEnd = imageSize
	u.AppLen = 0
	u.SentDataSize = 0

	return u.otaDesc(), nil
}

func (u *UpdateSesn) handleAck(rsp sblp.SblMsg) (sblp.SblMsg, error) {
	ack, err := toSuccessAck(rsp, u.lastTx)
	if err != nil {
		return nil, err
	}

	// A stray ack from an earlier, timed out exchange must not be taken for
	// this one.
	if u.lastTx == sblp.MSG_TYPE_DATA && ack.Seq != u.lastSeq {
		return nil, sblxutil.FmtUnexpectedStatusError(
			"data ack for wrong chunk; have seq=%d want seq=%d",
			ack.Seq, u.lastSeq)
	}

	switch u.State {
	case HOST_STATE_OTA_DESC:
		if u.NumUpdatesRemaining <= 0 {
			return nil, sblxutil.FmtUnexpectedStatusError(
				"ota descriptor acked with no blocks remaining")
		}
		return u.update(), nil

	case HOST_STATE_UPDATE_MAIN, HOST_STATE_MAIN_DATA:
		if u.SentDataSize < u.AppLen {
			return u.data(), nil
		}
		if u.NumUpdatesRemaining > 0 {
			return u.otaDesc(), nil
		}
		return u.reset(), nil

	case HOST_STATE_RESET:
		log.Debugf("sbl update: %s --> %s; complete",
			u.State, HOST_STATE_NOT_STARTED)
		u.State = HOST_STATE_NOT_STARTED
		return nil, nil

	default:
		return nil, sblxutil.FmtUnexpectedStatusError(
			"unexpected ack in state %s", u.State)
	}
}

//////////////////////////////////////////////////////////////////////////////
// $update                                                                  //
//////////////////////////////////////////////////////////////////////////////

// Reports the state an update failed in along with the underlying error.
type UpdateError struct {
	State HostState
	Err   error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update failed in state %s: %s", e.State, e.Err)
}

func (e *UpdateError) Cause() error {
	return e.Err
}

func IsUpdateError(err error) bool {
	_, ok := err.(*UpdateError)
	return ok
}

type UpdateProgressFn func(c *UpdateCmd, u *UpdateSesn)

type UpdateCmd struct {
	CmdBase
	Data          []byte
	MaxUpdateSize int
	OtaDescAddr   uint32
	ResetOpt      sblp.ResetOpt
	ProgressCb    UpdateProgressFn
}

type UpdateResult struct {
	Sesn *UpdateSesn
}

func NewUpdateCmd() *UpdateCmd {
	cfg := NewUpdateCfg()

	return &UpdateCmd{
		CmdBase:       NewCmdBase(),
		MaxUpdateSize: cfg.MaxUpdateSize,
		OtaDescAddr:   cfg.OtaDescAddr,
		ResetOpt:      cfg.ResetOpt,
	}
}

func newUpdateResult() *UpdateResult {
	return &UpdateResult{}
}

func (r *UpdateResult) Status() int {
	if r.Sesn != nil && r.Sesn.Done() {
		return 0
	}
	return int(sblp.ACK_STATUS_FAILURE)
}

func (c *UpdateCmd) Run(s sesn.Sesn) (Result, error) {
	u, err := NewUpdateSesn(UpdateCfg{
		Image:         c.Data,
		MaxUpdateSize: c.MaxUpdateSize,
		OtaDescAddr:   c.OtaDescAddr,
		ResetOpt:      c.ResetOpt,
	})
	if err != nil {
		return nil, err
	}

	m, err := u.Start()
	if err != nil {
		return nil, err
	}

	for m != nil {
		rsp, err := txReq(s, m, &c.CmdBase)
		if err != nil {
			u.HandleRxErr(err)
			return nil, &UpdateError{State: u.State, Err: err}
		}

		m, err = u.HandleRsp(rsp)
		if err != nil {
			return nil, &UpdateError{State: u.State, Err: err}
		}

		if c.ProgressCb != nil && rsp.Type() == sblp.MSG_TYPE_ACK {
			c.ProgressCb(c, u)
		}
	}

	res := newUpdateResult()
	res.Sesn = u
	return res, nil
}

// Reads an image file into memory.
func ImageFromFile(filename string) ([]byte, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read image file")
	}
	if len(data) == 0 {
		return nil, sblxutil.FmtBadParamError("image file is empty: %s",
			filename)
	}

	return data, nil
}
