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

package tcp

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type ConnHandler func(conn net.Conn) error

// Accepts bridge connections and hands each one to a handler.
type Listener struct {
	ln      net.Listener
	handler ConnHandler
	wg      sync.WaitGroup
}

func Listen(addr string, handler ConnHandler) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}

	return &Listener{
		ln:      ln,
		handler: handler,
	}, nil
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serves connections until Close is called.  Connections are handled one
// at a time; a slave only ever has one host.
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return err
		}

		log.Infof("accepted connection from %s", conn.RemoteAddr().String())

		l.wg.Add(1)
		err = l.handler(conn)
		l.wg.Done()
		conn.Close()

		if err != nil {
			log.Warnf("connection from %s failed: %s",
				conn.RemoteAddr().String(), err.Error())
		} else {
			log.Infof("connection from %s closed",
				conn.RemoteAddr().String())
		}
	}
}

func (l *Listener) Close() error {
	err := l.ln.Close()
	l.wg.Wait()
	return err
}
