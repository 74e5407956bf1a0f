package sim

import (
	"net"
	"testing"

	"mynewt.apache.org/sblmgr/sblxact/lineframe"
	"mynewt.apache.org/sblmgr/sblxact/sblp"
)

// Sends one message to the slave and decodes its reply.
func exchange(t *testing.T, s *Slave, m sblp.SblMsg) sblp.SblMsg {
	enc, err := sblp.EncodeMsg(m)
	if err != nil {
		t.Fatalf("encode %s: %s", m.Type(), err.Error())
	}

	var evs [][]byte
	for _, p := range sblp.Fragment(enc, sblp.MAX_IOS_LRAM_SIZE) {
		evs = s.HandlePkt(p)
	}

	r := sblp.NewReassembler()
	for _, ev := range evs {
		data, err := r.RxFrag(ev)
		if err != nil {
			t.Fatalf("reassemble reply: %s", err.Error())
		}
		if data != nil {
			rsp, err := sblp.DecodeMsg(data)
			if err != nil {
				t.Fatalf("decode reply: %s", err.Error())
			}
			return rsp
		}
	}

	t.Fatalf("no reply to %s", m.Type())
	return nil
}

func expectAck(t *testing.T, rsp sblp.SblMsg, src sblp.MsgType,
	status sblp.AckStatus) {

	ack, ok := rsp.(*sblp.AckMsg)
	if !ok {
		t.Fatalf("expected ack, got %s", rsp.Type())
	}
	if ack.SrcType != src || ack.Status != status {
		t.Fatalf("ack mismatch: have=%s/%s want=%s/%s",
			ack.SrcType, ack.Status, src, status)
	}
}

func dataMsg(seq int, data []byte) *sblp.DataMsg {
	d := sblp.NewDataMsg()
	d.Seq = uint32(seq)
	d.Data = data
	return d
}

// Announces an image of the given size; blk is the block that follows.
func updateMsg(imageSize int, blk []byte) *sblp.UpdateMsg {
	u := sblp.NewUpdateMsg()
	u.TotalSize = uint32(imageSize)
	u.BlobCrc = sblp.Crc32(blk)
	return u
}

func TestSlaveBlockTransfer(t *testing.T) {
	cfg := NewSlaveCfg()
	cfg.MaxUpdateSize = 16
	s := NewSlave(cfg)

	hi := []byte("0123456789abcdef")
	lo := []byte("lowblock")
	size := len(lo) + len(hi)

	if _, ok := exchange(t, s, sblp.NewHelloMsg()).(*sblp.StatusMsg); !ok {
		t.Fatalf("hello not answered with status")
	}

	for i, blk := range [][]byte{hi, lo} {
		if s.Image() != nil {
			t.Fatalf("image available after %d of 2 blocks", i)
		}

		od := sblp.NewOtaDescMsg()
		od.Addr = sblp.DFLT_OTA_DESC_ADDR
		expectAck(t, exchange(t, s, od), sblp.MSG_TYPE_OTA_DESC,
			sblp.ACK_STATUS_SUCCESS)
		expectAck(t, exchange(t, s, updateMsg(size, blk)),
			sblp.MSG_TYPE_UPDATE, sblp.ACK_STATUS_SUCCESS)
		expectAck(t, exchange(t, s, dataMsg(0, blk[:5])), sblp.MSG_TYPE_DATA,
			sblp.ACK_STATUS_SUCCESS)
		expectAck(t, exchange(t, s, dataMsg(5, blk[5:])), sblp.MSG_TYPE_DATA,
			sblp.ACK_STATUS_SUCCESS)
	}

	if string(s.Image()) != "lowblock0123456789abcdef" {
		t.Fatalf("unexpected image: %q", s.Image())
	}

	blocks := s.Blocks()
	if len(blocks) != 2 || blocks[0].Off != 8 || blocks[0].Len != 16 ||
		blocks[1].Off != 0 || blocks[1].Len != 8 {

		t.Fatalf("unexpected blocks: %+v", blocks)
	}

	// Every block has been received; a further update has nothing to carry.
	expectAck(t, exchange(t, s, updateMsg(size, lo)), sblp.MSG_TYPE_UPDATE,
		sblp.ACK_STATUS_INVALID_OPERATION)
	if s.OtaDescAddr() != sblp.DFLT_OTA_DESC_ADDR {
		t.Fatalf("ota desc addr: have=0x%x", s.OtaDescAddr())
	}
}

func TestSlaveNacks(t *testing.T) {
	s := NewSlave(NewSlaveCfg())
	blk := []byte("abcdefgh")

	expectAck(t, exchange(t, s, dataMsg(0, blk)), sblp.MSG_TYPE_DATA,
		sblp.ACK_STATUS_INVALID_OPERATION)

	od := sblp.NewOtaDescMsg()
	od.Addr = 0x1001
	expectAck(t, exchange(t, s, od), sblp.MSG_TYPE_OTA_DESC,
		sblp.ACK_STATUS_INVALID_ADDR)

	big := sblp.NewUpdateMsg()
	big.TotalSize = 0x80001
	expectAck(t, exchange(t, s, big), sblp.MSG_TYPE_UPDATE,
		sblp.ACK_STATUS_INVALID_PARAM)

	expectAck(t, exchange(t, s, updateMsg(len(blk), blk)),
		sblp.MSG_TYPE_UPDATE, sblp.ACK_STATUS_SUCCESS)
	expectAck(t, exchange(t, s, dataMsg(3, blk)), sblp.MSG_TYPE_DATA,
		sblp.ACK_STATUS_SEQ)
	expectAck(t, exchange(t, s, dataMsg(0, append(blk, 'x'))),
		sblp.MSG_TYPE_DATA, sblp.ACK_STATUS_TOO_MUCH_DATA)

	expectAck(t, exchange(t, s, updateMsg(len(blk)+1, blk)),
		sblp.MSG_TYPE_UPDATE, sblp.ACK_STATUS_INVALID_PARAM)

	bad := updateMsg(len(blk), blk)
	bad.BlobCrc ^= 1
	expectAck(t, exchange(t, s, bad), sblp.MSG_TYPE_UPDATE,
		sblp.ACK_STATUS_SUCCESS)
	expectAck(t, exchange(t, s, dataMsg(0, blk)), sblp.MSG_TYPE_DATA,
		sblp.ACK_STATUS_CRC)
	if len(s.Blocks()) != 0 {
		t.Fatalf("block with bad crc was kept")
	}

	s.SetFaults(Faults{
		Nack: map[sblp.MsgType]sblp.AckStatus{
			sblp.MSG_TYPE_HELLO: sblp.ACK_STATUS_FAILURE,
		},
	})
	expectAck(t, exchange(t, s, sblp.NewHelloMsg()), sblp.MSG_TYPE_HELLO,
		sblp.ACK_STATUS_FAILURE)
}

func TestSlaveRejectsBadCrc(t *testing.T) {
	s := NewSlave(NewSlaveCfg())

	enc, err := sblp.EncodeMsg(sblp.NewHelloMsg())
	if err != nil {
		t.Fatalf("encode: %s", err.Error())
	}
	enc[0] ^= 0x01

	evs := s.HandlePkt(sblp.Fragment(enc, sblp.MAX_IOS_LRAM_SIZE)[0])
	data, err := sblp.NewReassembler().RxFrag(evs[0])
	if err != nil {
		t.Fatalf("reassemble: %s", err.Error())
	}
	rsp, err := sblp.DecodeMsg(data)
	if err != nil {
		t.Fatalf("decode: %s", err.Error())
	}

	expectAck(t, rsp, sblp.MSG_TYPE_HELLO, sblp.ACK_STATUS_CRC)
	if len(s.RxTypes()) != 0 {
		t.Fatalf("corrupt message recorded: %v", s.RxTypes())
	}
}

func TestServe(t *testing.T) {
	host, dev := net.Pipe()
	defer host.Close()

	s := NewSlave(NewSlaveCfg())
	done := make(chan error, 1)
	go func() {
		done <- Serve(s, dev)
	}()

	enc, err := sblp.EncodeMsg(sblp.NewHelloMsg())
	if err != nil {
		t.Fatalf("encode: %s", err.Error())
	}

	go func() {
		host.Write([]byte("console noise\n"))
		host.Write(lineframe.Encode(sblp.Fragment(enc, sblp.MAX_IOS_LRAM_SIZE)[0]))
	}()

	ev, err := lineframe.NewDecoder(host).Decode()
	if err != nil {
		t.Fatalf("read ready event: %s", err.Error())
	}

	data, err := sblp.NewReassembler().RxFrag(ev)
	if err != nil {
		t.Fatalf("reassemble: %s", err.Error())
	}
	rsp, err := sblp.DecodeMsg(data)
	if err != nil {
		t.Fatalf("decode: %s", err.Error())
	}
	if _, ok := rsp.(*sblp.StatusMsg); !ok {
		t.Fatalf("expected status, got %s", rsp.Type())
	}

	dev.Close()
	<-done
}
