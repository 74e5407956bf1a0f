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

package sim

import (
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/sblmgr/sblxact/lineframe"
)

// Serves a simulated slave over a line-framed stream (a TCP connection or
// pty) until the stream is closed.  Each inbound frame is a packet written
// into the IOS; each outbound frame is a ready event.
func Serve(s *Slave, rw io.ReadWriter) error {
	dec := lineframe.NewDecoder(rw)

	for {
		pkt, err := dec.Decode()
		if err == io.EOF {
			return nil
		}
		if lineframe.IsFrameError(err) {
			log.Debugf("sim: dropping bad frame: %s", err.Error())
			continue
		}
		if err != nil {
			return errors.Wrap(err, "sim: read packet")
		}

		for _, ev := range s.HandlePkt(pkt) {
			if !s.takeReady() {
				continue
			}
			if _, err := rw.Write(lineframe.Encode(ev)); err != nil {
				return errors.Wrap(err, "sim: write ready event")
			}
		}
	}
}
