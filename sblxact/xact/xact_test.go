package xact

import (
	"bytes"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"mynewt.apache.org/sblmgr/sblxact/sblp"
	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
	"mynewt.apache.org/sblmgr/sblxact/sesn"
	"mynewt.apache.org/sblmgr/sblxact/sim"
)

func testImage(size int) []byte {
	img := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(img)
	return img
}

func testTxOptions() sesn.TxOptions {
	return sesn.TxOptions{
		Timeout: 500 * time.Millisecond,
		Tries:   1,
	}
}

func newSimSesn(t *testing.T, cfg sim.SlaveCfg) (*sesn.PktSesn, *sim.Slave) {
	slave := sim.NewSlave(cfg)
	x := sim.NewXport(slave)
	if err := x.Start(); err != nil {
		t.Fatalf("xport start: %s", err.Error())
	}

	s, err := sesn.NewPktSesn(x, sesn.NewSesnCfg())
	if err != nil {
		t.Fatalf("new sesn: %s", err.Error())
	}
	if err := s.Open(); err != nil {
		t.Fatalf("sesn open: %s", err.Error())
	}

	return s, slave
}

func countTypes(types []sblp.MsgType, t sblp.MsgType) int {
	n := 0
	for _, tt := range types {
		if tt == t {
			n++
		}
	}
	return n
}

func TestHelloCmd(t *testing.T) {
	cfg := sim.NewSlaveCfg()
	cfg.Version = 7
	cfg.MaxImageSize = 123456
	cfg.AmInfo[3] = 0xdeadbeef

	s, _ := newSimSesn(t, cfg)

	c := NewHelloCmd()
	c.SetTxOptions(testTxOptions())
	res, err := c.Run(s)
	if err != nil {
		t.Fatalf("hello failed: %s", err.Error())
	}

	rsp := res.(*HelloResult).Rsp
	if rsp.Version != 7 || rsp.MaxImageSize != 123456 ||
		rsp.AmInfo[3] != 0xdeadbeef {

		t.Fatalf("unexpected status: %+v", rsp)
	}
}

func TestAckCmds(t *testing.T) {
	s, slave := newSimSesn(t, sim.NewSlaveCfg())

	rc := NewResetCmd()
	rc.Opt = sblp.RESET_OPT_POR
	rc.SetTxOptions(testTxOptions())
	res, err := rc.Run(s)
	if err != nil {
		t.Fatalf("reset failed: %s", err.Error())
	}
	if res.Status() != 0 {
		t.Fatalf("reset status: have=%d want=0", res.Status())
	}
	if slave.ResetOpt() != sblp.RESET_OPT_POR {
		t.Fatalf("slave saw reset %s", slave.ResetOpt())
	}

	ac := NewAbortCmd()
	ac.SetTxOptions(testTxOptions())
	res, err = ac.Run(s)
	if err != nil {
		t.Fatalf("abort failed: %s", err.Error())
	}
	if res.Status() != 0 {
		t.Fatalf("abort status: have=%d want=0", res.Status())
	}

	oc := NewOtaDescCmd()
	oc.Addr = 0x3
	oc.SetTxOptions(testTxOptions())
	res, err = oc.Run(s)
	if err != nil {
		t.Fatalf("ota desc failed: %s", err.Error())
	}
	if res.Status() != int(sblp.ACK_STATUS_INVALID_ADDR) {
		t.Fatalf("ota desc status: have=%d want=%d",
			res.Status(), sblp.ACK_STATUS_INVALID_ADDR)
	}

	bad := NewResetCmd()
	bad.Opt = 0x4
	if _, err := bad.Run(s); !sblxutil.IsBadParam(err) {
		t.Fatalf("expected bad param error, got %v", err)
	}
}

func TestBlockRanges(t *testing.T) {
	type tcase struct {
		size int
		max  int
	}

	tcs := []tcase{
		{1, 1},
		{1, 100},
		{100, 100},
		{101, 100},
		{300000, sblp.DFLT_MAX_UPDATE_SIZE},
		{12345, 5000},
		{4096, 7},
	}

	for _, tc := range tcs {
		ranges := BlockRanges(tc.size, tc.max)

		want := (tc.size + tc.max - 1) / tc.max
		if len(ranges) != want || NumBlocks(tc.size, tc.max) != want {
			t.Fatalf("size=%d max=%d: have %d blocks want %d",
				tc.size, tc.max, len(ranges), want)
		}

		if ranges[0].End != tc.size || ranges[len(ranges)-1].Start != 0 {
			t.Fatalf("size=%d max=%d: bad outer bounds %+v",
				tc.size, tc.max, ranges)
		}

		img := testImage(tc.size)
		var rebuilt []byte
		for i := len(ranges) - 1; i >= 0; i-- {
			r := ranges[i]
			if r.End-r.Start > tc.max || r.End <= r.Start {
				t.Fatalf("size=%d max=%d: bad block %+v",
					tc.size, tc.max, r)
			}
			if i > 0 && ranges[i-1].Start != r.End {
				t.Fatalf("size=%d max=%d: blocks not contiguous %+v",
					tc.size, tc.max, ranges)
			}
			rebuilt = append(rebuilt, img[r.Start:r.End]...)
		}

		if !bytes.Equal(rebuilt, img) {
			t.Fatalf("size=%d max=%d: reassembled image differs",
				tc.size, tc.max)
		}
	}

	if NumBlocks(0, 10) != 0 || NumBlocks(10, 0) != 0 {
		t.Fatalf("degenerate sizes should yield no blocks")
	}
}

func TestUpdateEndToEnd(t *testing.T) {
	img := testImage(300000)
	s, slave := newSimSesn(t, sim.NewSlaveCfg())

	var bounds []BlockRange
	var lastSent int

	c := NewUpdateCmd()
	c.Data = img
	c.SetTxOptions(testTxOptions())
	c.ProgressCb = func(c *UpdateCmd, u *UpdateSesn) {
		if u.State == HOST_STATE_UPDATE_MAIN {
			bounds = append(bounds, BlockRange{u.UpdateStart, u.UpdateEnd})
		}
		if u.BytesSent() < lastSent {
			t.Errorf("progress went backward: %d -> %d",
				lastSent, u.BytesSent())
		}
		lastSent = u.BytesSent()
	}

	res, err := c.Run(s)
	if err != nil {
		t.Fatalf("update failed: %s", err.Error())
	}
	if res.Status() != 0 {
		t.Fatalf("update status: have=%d want=0", res.Status())
	}

	u := res.(*UpdateResult).Sesn
	if !u.Done() || u.State != HOST_STATE_NOT_STARTED {
		t.Fatalf("session not complete; state=%s", u.State)
	}
	if u.BytesSent() != len(img) || lastSent != len(img) {
		t.Fatalf("bytes sent: have=%d want=%d", u.BytesSent(), len(img))
	}

	wantBounds := []BlockRange{{5008, 300000}, {0, 5008}}
	if !reflect.DeepEqual(bounds, wantBounds) {
		t.Fatalf("block bounds: have=%+v want=%+v", bounds, wantBounds)
	}

	blocks := slave.Blocks()
	if len(blocks) != 2 || blocks[0].Len != 294992 || blocks[1].Len != 5008 {
		t.Fatalf("unexpected slave blocks")
	}
	if !bytes.Equal(slave.Image(), img) {
		t.Fatalf("slave image differs from host image")
	}

	types := slave.RxTypes()
	if types[0] != sblp.MSG_TYPE_HELLO ||
		types[1] != sblp.MSG_TYPE_OTA_DESC ||
		types[len(types)-1] != sblp.MSG_TYPE_RESET {

		t.Fatalf("unexpected message sequence: %v", types)
	}
	if countTypes(types, sblp.MSG_TYPE_OTA_DESC) != 2 ||
		countTypes(types, sblp.MSG_TYPE_UPDATE) != 2 ||
		countTypes(types, sblp.MSG_TYPE_DATA) != 145+3 {

		t.Fatalf("unexpected message counts: %v", types)
	}

	if slave.ResetOpt() != sblp.RESET_OPT_POI {
		t.Fatalf("reset option: have=%s want=poi", slave.ResetOpt())
	}
	if slave.OtaDescAddr() != sblp.DFLT_OTA_DESC_ADDR {
		t.Fatalf("ota desc addr: have=0x%x", slave.OtaDescAddr())
	}
}

func TestUpdateSmallBlocks(t *testing.T) {
	img := testImage(12345)
	cfg := sim.NewSlaveCfg()
	cfg.MaxUpdateSize = 5000
	s, slave := newSimSesn(t, cfg)

	c := NewUpdateCmd()
	c.Data = img
	c.MaxUpdateSize = 5000
	c.OtaDescAddr = 0x10000
	c.ResetOpt = sblp.RESET_OPT_POR
	c.SetTxOptions(testTxOptions())

	if _, err := c.Run(s); err != nil {
		t.Fatalf("update failed: %s", err.Error())
	}

	if len(slave.Blocks()) != 3 {
		t.Fatalf("have %d blocks want 3", len(slave.Blocks()))
	}
	if !bytes.Equal(slave.Image(), img) {
		t.Fatalf("slave image differs from host image")
	}
	if slave.OtaDescAddr() != 0x10000 {
		t.Fatalf("ota desc addr: have=0x%x", slave.OtaDescAddr())
	}
	if slave.ResetOpt() != sblp.RESET_OPT_POR {
		t.Fatalf("reset option: have=%s want=por", slave.ResetOpt())
	}
}

func TestUpdateImageTooLarge(t *testing.T) {
	cfg := sim.NewSlaveCfg()
	cfg.MaxImageSize = 100000
	s, slave := newSimSesn(t, cfg)

	c := NewUpdateCmd()
	c.Data = testImage(300000)
	c.SetTxOptions(testTxOptions())

	_, err := c.Run(s)
	if err == nil {
		t.Fatalf("update of oversized image succeeded")
	}
	if sblxutil.Kind(err) != sblxutil.KIND_UNEXPECTED_STATUS {
		t.Fatalf("error kind: have=%s want=%s",
			sblxutil.Kind(err), sblxutil.KIND_UNEXPECTED_STATUS)
	}

	uerr, ok := err.(*UpdateError)
	if !ok || uerr.State != HOST_STATE_NOT_STARTED {
		t.Fatalf("expected update error in not_started state, got %v", err)
	}

	types := slave.RxTypes()
	if len(types) != 1 || types[0] != sblp.MSG_TYPE_HELLO {
		t.Fatalf("slave received more than hello: %v", types)
	}
}

func TestUpdateFaults(t *testing.T) {
	type tcase struct {
		name   string
		faults sim.Faults
		kind   sblxutil.ErrorKind
		state  HostState
	}

	tcs := []tcase{
		{
			name: "data nack",
			faults: sim.Faults{
				Nack: map[sblp.MsgType]sblp.AckStatus{
					sblp.MSG_TYPE_DATA: sblp.ACK_STATUS_SEQ,
				},
			},
			kind:  sblxutil.KIND_UNEXPECTED_STATUS,
			state: HOST_STATE_MAIN_DATA,
		},
		{
			name: "ota desc nack",
			faults: sim.Faults{
				Nack: map[sblp.MsgType]sblp.AckStatus{
					sblp.MSG_TYPE_OTA_DESC: sblp.ACK_STATUS_INVALID_ADDR,
				},
			},
			kind:  sblxutil.KIND_UNEXPECTED_STATUS,
			state: HOST_STATE_OTA_DESC,
		},
		{
			name:   "corrupt status",
			faults: sim.Faults{CorruptCrc: 1},
			kind:   sblxutil.KIND_CRC_MISMATCH,
			state:  HOST_STATE_NOT_STARTED,
		},
		{
			name:   "status for everything",
			faults: sim.Faults{StatusForAll: true},
			kind:   sblxutil.KIND_UNEXPECTED_STATUS,
			state:  HOST_STATE_OTA_DESC,
		},
		{
			name:   "lost ready",
			faults: sim.Faults{DropReady: 1},
			kind:   sblxutil.KIND_TIMEOUT,
			state:  HOST_STATE_HELLO,
		},
	}

	for _, tc := range tcs {
		s, slave := newSimSesn(t, sim.NewSlaveCfg())
		slave.SetFaults(tc.faults)

		c := NewUpdateCmd()
		c.Data = testImage(5000)
		c.SetTxOptions(sesn.TxOptions{
			Timeout: 50 * time.Millisecond,
			Tries:   1,
		})

		_, err := c.Run(s)
		if err == nil {
			t.Fatalf("%s: update succeeded", tc.name)
		}
		if sblxutil.Kind(err) != tc.kind {
			t.Fatalf("%s: error kind: have=%s want=%s (%s)",
				tc.name, sblxutil.Kind(err), tc.kind, err.Error())
		}

		uerr, ok := err.(*UpdateError)
		if !ok || uerr.State != tc.state {
			t.Fatalf("%s: expected update error in state %s, got %v",
				tc.name, tc.state, err)
		}
	}
}

func TestUpdateRetryAfterTimeout(t *testing.T) {
	tcs := map[string]sim.Faults{
		"lost ready":  {DropReady: 1},
		"late status": {LateRsp: 1},
	}

	for name, faults := range tcs {
		img := testImage(5000)
		s, slave := newSimSesn(t, sim.NewSlaveCfg())
		slave.SetFaults(faults)

		c := NewUpdateCmd()
		c.Data = img
		c.SetTxOptions(sesn.TxOptions{
			Timeout: 50 * time.Millisecond,
			Tries:   2,
		})

		if _, err := c.Run(s); err != nil {
			t.Fatalf("%s: update failed: %s", name, err.Error())
		}

		if countTypes(slave.RxTypes(), sblp.MSG_TYPE_HELLO) != 2 {
			t.Fatalf("%s: hello not retried: %v", name, slave.RxTypes())
		}
		if !bytes.Equal(slave.Image(), img) {
			t.Fatalf("%s: slave image differs from host image", name)
		}
	}
}

func TestUpdateAbort(t *testing.T) {
	s, slave := newSimSesn(t, sim.NewSlaveCfg())

	c := NewUpdateCmd()
	c.Data = testImage(20000)
	c.SetTxOptions(testTxOptions())
	c.ProgressCb = func(c *UpdateCmd, u *UpdateSesn) {
		if u.State == HOST_STATE_MAIN_DATA {
			c.Abort()
		}
	}

	_, err := c.Run(s)
	if !sblxutil.IsAborted(err) {
		t.Fatalf("expected aborted error, got %v", err)
	}
	if sblxutil.Kind(err) != sblxutil.KIND_ABORTED {
		t.Fatalf("error kind: have=%s", sblxutil.Kind(err))
	}
	types := slave.RxTypes()
	if countTypes(types, sblp.MSG_TYPE_UPDATE) != 1 ||
		countTypes(types, sblp.MSG_TYPE_DATA) != 0 {

		t.Fatalf("messages sent after abort: %v", types)
	}
}

func TestUpdateBadParams(t *testing.T) {
	s, _ := newSimSesn(t, sim.NewSlaveCfg())

	c := NewUpdateCmd()
	if _, err := c.Run(s); !sblxutil.IsBadParam(err) {
		t.Fatalf("empty image: expected bad param, got %v", err)
	}

	c = NewUpdateCmd()
	c.Data = testImage(10)
	c.MaxUpdateSize = 0
	if _, err := c.Run(s); !sblxutil.IsBadParam(err) {
		t.Fatalf("zero max update size: expected bad param, got %v", err)
	}

	c = NewUpdateCmd()
	c.Data = testImage(10)
	c.ResetOpt = 0x4
	if _, err := c.Run(s); !sblxutil.IsBadParam(err) {
		t.Fatalf("bad reset option: expected bad param, got %v", err)
	}

	u, err := NewUpdateSesn(UpdateCfg{
		Image:         testImage(10),
		MaxUpdateSize: 4,
		ResetOpt:      sblp.RESET_OPT_POI,
	})
	if err != nil {
		t.Fatalf("new update sesn: %s", err.Error())
	}
	if _, err := u.Start(); err != nil {
		t.Fatalf("start: %s", err.Error())
	}
	if _, err := u.Start(); !sblxutil.IsBadParam(err) {
		t.Fatalf("second start: expected bad param, got %v", err)
	}
}
