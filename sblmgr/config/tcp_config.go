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

package config

import (
	"fmt"
	"net"
	"strings"

	"mynewt.apache.org/newt/util"
	"mynewt.apache.org/sblmgr/sblxact/tcp"
)

func einvalTcpConnString(f string, args ...interface{}) error {
	suffix := fmt.Sprintf(f, args...)
	return util.FmtNewtError("Invalid tcp connstring; %s", suffix)
}

// Accepts "addr=host:port" or a bare "host:port".
func ParseTcpConnString(cs string) (*tcp.XportCfg, error) {
	tc := tcp.NewXportCfg()

	for _, p := range strings.Split(cs, ",") {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) == 1 {
			kv = []string{"addr", kv[0]}
		}

		switch kv[0] {
		case "addr":
			if _, _, err := net.SplitHostPort(kv[1]); err != nil {
				return tc, einvalTcpConnString("Invalid addr: %s", kv[1])
			}
			tc.Addr = kv[1]

		default:
			return tc, einvalTcpConnString("Unrecognized key: %s", kv[0])
		}
	}

	return tc, nil
}
