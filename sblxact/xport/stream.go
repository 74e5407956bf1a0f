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
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/sblmgr/sblxact/lineframe"
	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
)

type StreamLinkCfg struct {
	// Used in log messages.
	Name string

	// Pause between the lines of a multi-line frame.  Slow bridges have
	// very small receive buffers.
	LineDelay time.Duration

	// Treat end-of-stream as a read timeout rather than a lost link.  Serial
	// ports report timeouts this way.
	RestartOnEOF bool
}

// Carries packets over a line-framed byte stream.  A single reader
// goroutine decodes inbound frames and posts each one as a ready event.
type StreamLink struct {
	cfg  StreamLinkCfg
	conn io.ReadWriteCloser
	q    *ReadyQueue

	wg      sync.WaitGroup
	txMtx   sync.Mutex
	mtx     sync.Mutex
	closing bool
}

func NewStreamLink(conn io.ReadWriteCloser, cfg StreamLinkCfg) *StreamLink {
	l := &StreamLink{
		cfg:  cfg,
		conn: conn,
		q:    NewReadyQueue(DFLT_READY_QUEUE_DEPTH),
	}

	l.wg.Add(1)
	go l.rxLoop()

	return l
}

func (l *StreamLink) isClosing() bool {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	return l.closing
}

func (l *StreamLink) rxLoop() {
	defer l.wg.Done()

	dec := lineframe.NewDecoder(l.conn)
	for {
		pkt, err := dec.Decode()
		if l.isClosing() {
			return
		}

		if err == nil {
			l.q.Post(pkt)
			continue
		}

		if lineframe.IsFrameError(err) {
			log.Warnf("%s: dropping bad frame: %s", l.cfg.Name, err.Error())
			continue
		}

		if l.cfg.RestartOnEOF && (err == io.EOF || err == io.ErrNoProgress) {
			dec = lineframe.NewDecoder(l.conn)
			continue
		}

		log.Debugf("%s: read failed: %s", l.cfg.Name, err.Error())
		l.q.PostErr(sblxutil.WrapXportError(err, "%s read failed",
			l.cfg.Name))
		return
	}
}

func (l *StreamLink) Tx(pkt []byte) error {
	if l.isClosing() {
		return sblxutil.NewXportError(l.cfg.Name + " link closed")
	}

	l.txMtx.Lock()
	defer l.txMtx.Unlock()

	sblxutil.LogPkt("tx", l.cfg.Name, pkt)

	for i, line := range lineframe.EncodeLines(pkt) {
		if i > 0 && l.cfg.LineDelay > 0 {
			time.Sleep(l.cfg.LineDelay)
		}
		if _, err := l.conn.Write(line); err != nil {
			return sblxutil.WrapXportError(err, "%s write failed",
				l.cfg.Name)
		}
	}

	return nil
}

func (l *StreamLink) RxReady(timeout time.Duration,
	stopChan <-chan struct{}) ([]byte, error) {

	return l.q.Wait(timeout, stopChan)
}

func (l *StreamLink) Drain() {
	if n := l.q.Drain(); n > 0 {
		log.Debugf("%s: discarded %d stale ready events", l.cfg.Name, n)
	}
}

// Closes the underlying stream and waits for the reader to exit.
func (l *StreamLink) Close() error {
	l.mtx.Lock()
	if l.closing {
		l.mtx.Unlock()
		return sblxutil.NewXportError(l.cfg.Name + " link closed twice")
	}
	l.closing = true
	l.mtx.Unlock()

	err := l.conn.Close()
	l.wg.Wait()
	l.q.Close()

	return err
}
