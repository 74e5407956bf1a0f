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

package sesn

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/sblmgr/sblxact/sblp"
	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
	"mynewt.apache.org/sblmgr/sblxact/xport"
)

// Carries SBL messages over any Xport as IOS packets.
type PktSesn struct {
	cfg    SesnCfg
	x      xport.Xport
	reasm  *sblp.Reassembler
	isOpen bool

	// Serializes exchanges and protects isOpen.
	m sync.Mutex

	abortMtx sync.Mutex
	abortCh  chan struct{}
}

func NewPktSesn(x xport.Xport, cfg SesnCfg) (*PktSesn, error) {
	if cfg.Mtu <= sblp.PKT_HDR_SIZE || cfg.Mtu > sblp.MAX_IOS_LRAM_SIZE {
		return nil, sblxutil.FmtBadParamError(
			"invalid mtu %d; must be in (%d, %d]",
			cfg.Mtu, sblp.PKT_HDR_SIZE, sblp.MAX_IOS_LRAM_SIZE)
	}

	return &PktSesn{
		cfg:     cfg,
		x:       x,
		reasm:   sblp.NewReassembler(),
		abortCh: make(chan struct{}),
	}, nil
}

func (s *PktSesn) Open() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.isOpen {
		return sblxutil.NewSesnAlreadyOpenError(
			"Attempt to open an already-open session")
	}

	s.reasm.Reset()
	s.isOpen = true
	return nil
}

func (s *PktSesn) Close() error {
	s.AbortRx()

	s.m.Lock()
	defer s.m.Unlock()

	if !s.isOpen {
		return sblxutil.NewSesnClosedError(
			"Attempt to close an unopened session")
	}

	s.isOpen = false
	if s.cfg.OnCloseCb != nil {
		s.cfg.OnCloseCb(s, nil)
	}
	return nil
}

func (s *PktSesn) IsOpen() bool {
	s.m.Lock()
	defer s.m.Unlock()

	return s.isOpen
}

func (s *PktSesn) MtuOut() int {
	return s.cfg.Mtu
}

func (s *PktSesn) AbortRx() error {
	s.abortMtx.Lock()
	defer s.abortMtx.Unlock()

	close(s.abortCh)
	s.abortCh = make(chan struct{})
	return nil
}

func (s *PktSesn) stopChan() <-chan struct{} {
	s.abortMtx.Lock()
	defer s.abortMtx.Unlock()

	return s.abortCh
}

func (s *PktSesn) TxRxMsg(m sblp.SblMsg, opt TxOptions) (sblp.SblMsg, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if !s.isOpen {
		return nil, sblxutil.NewSesnClosedError(
			"Attempt to transmit over closed session")
	}
	if opt.Timeout <= 0 {
		return nil, sblxutil.FmtBadParamError(
			"invalid timeout %s; the wait for the slave must be bounded",
			opt.Timeout)
	}

	enc, err := sblp.EncodeMsg(m)
	if err != nil {
		return nil, err
	}
	pkts := sblp.Fragment(enc, s.cfg.Mtu)

	tries := opt.Tries
	if tries < 1 {
		tries = 1
	}

	stopChan := s.stopChan()
	for i := 0; ; i++ {
		log.Debugf("tx %s msg; len=%d pkts=%d crc=0x%08x try=%d",
			m.Type(), len(enc), len(pkts), m.Hdr().Crc32, i+1)

		// Whatever is queued now answers an exchange nobody is waiting on.
		s.x.Drain()
		s.reasm.Reset()

		rsp, err := s.txrx(pkts, opt, stopChan)
		if err == nil {
			return rsp, nil
		}

		if !sblxutil.IsRspTimeout(err) || i+1 >= tries {
			return nil, errors.Wrapf(err, "%s exchange", m.Type())
		}

		log.Warnf("%s exchange timed out; retrying (%d of %d)",
			m.Type(), i+2, tries)
	}
}

func (s *PktSesn) txrx(pkts [][]byte, opt TxOptions,
	stopChan <-chan struct{}) (sblp.SblMsg, error) {

	for i, p := range pkts {
		if i > 0 {
			// The slave must consume each fragment before the next one is
			// written into its LRAM.
			ev, err := s.x.RxReady(opt.Timeout, stopChan)
			if err != nil {
				return nil, err
			}
			if len(ev) != 0 {
				return nil, sblxutil.FmtUnexpectedStatusError(
					"slave sent %d bytes before message was complete", len(ev))
			}
		}

		sblxutil.LogPkt("tx", fmt.Sprintf("pkt %d/%d", i+1, len(pkts)), p)
		if err := s.x.Tx(p); err != nil {
			return nil, err
		}
	}

	for {
		ev, err := s.x.RxReady(opt.Timeout, stopChan)
		if err != nil {
			return nil, err
		}
		if len(ev) == 0 {
			log.Debugf("bare ready signal while awaiting response")
			continue
		}

		sblxutil.LogPkt("rx", "pkt", ev)
		data, err := s.reasm.RxFrag(ev)
		if err != nil {
			return nil, err
		}
		if data == nil {
			continue
		}

		rsp, err := sblp.DecodeMsg(data)
		if err != nil {
			return nil, err
		}

		log.Debugf("rx %s msg; len=%d crc=0x%08x",
			rsp.Type(), len(data), rsp.Hdr().Crc32)
		return rsp, nil
	}
}
