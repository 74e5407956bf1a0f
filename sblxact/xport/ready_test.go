package xport

import (
	"bytes"
	"testing"
	"time"

	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
)

func TestReadyQueueOrder(t *testing.T) {
	q := NewReadyQueue(4)
	q.Post(nil)
	q.Post([]byte{1, 2})

	pkt, err := q.Wait(time.Second, nil)
	if err != nil || len(pkt) != 0 {
		t.Fatalf("first event: pkt=%x err=%v", pkt, err)
	}

	pkt, err = q.Wait(time.Second, nil)
	if err != nil || !bytes.Equal(pkt, []byte{1, 2}) {
		t.Fatalf("second event: pkt=%x err=%v", pkt, err)
	}
}

func TestReadyQueueTimeout(t *testing.T) {
	q := NewReadyQueue(1)

	start := time.Now()
	_, err := q.Wait(20*time.Millisecond, nil)
	if !sblxutil.IsRspTimeout(err) {
		t.Fatalf("err=%v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("returned early")
	}
}

func TestReadyQueueAbort(t *testing.T) {
	q := NewReadyQueue(1)
	stop := make(chan struct{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(stop)
	}()

	_, err := q.Wait(5*time.Second, stop)
	if !sblxutil.IsAborted(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestReadyQueueOverflowDropsOldest(t *testing.T) {
	q := NewReadyQueue(2)
	q.Post([]byte{1})
	q.Post([]byte{2})
	q.Post([]byte{3})

	pkt, _ := q.Wait(time.Second, nil)
	if !bytes.Equal(pkt, []byte{2}) {
		t.Fatalf("got %x", pkt)
	}
}

func TestReadyQueueClose(t *testing.T) {
	q := NewReadyQueue(1)
	q.Close()
	q.Post([]byte{1})

	_, err := q.Wait(time.Second, nil)
	if !sblxutil.IsXport(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestReadyQueueDrainKeepsError(t *testing.T) {
	q := NewReadyQueue(4)
	q.Post(nil)
	q.Post([]byte{1})
	q.PostErr(sblxutil.NewXportError("bus fault"))

	if n := q.Drain(); n != 2 {
		t.Fatalf("drained %d events want 2", n)
	}

	_, err := q.Wait(time.Second, nil)
	if !sblxutil.IsXport(err) {
		t.Fatalf("link error lost by drain: %v", err)
	}
}
