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

package sblp

import (
	"hash/crc32"
)

// Computes the CRC-32 that protects every message.  Defaults to
// CRC-32/ISO-HDLC; a link that talks to an SBL whose CRC engine is
// configured differently can substitute its own function before opening any
// sessions.
var Crc32 func(data []byte) uint32 = crc32.ChecksumIEEE
