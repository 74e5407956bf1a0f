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

// Package sblutil holds state shared by sblmgr's command handlers: the tool's
// identity and the values of its global options.
package sblutil

import (
	"time"

	"mynewt.apache.org/newt/util"
	"mynewt.apache.org/sblmgr/sblxact/sesn"
)

type ToolInfoType struct {
	ExeName       string
	ShortName     string
	LongName      string
	VersionString string
	CfgFilename   string
}

var ToolInfo ToolInfoType

type GlobalOpts struct {
	Conn       string
	ConnType   string
	ConnString string

	Timeout float64
	Tries   int

	// Whether -t and -r were given.  Unset options defer to the connection
	// profile.
	TimeoutSet bool
	TriesSet   bool
}

var Opts GlobalOpts

// Converts a timeout in seconds, refusing values that would leave a wait
// for the device unbounded.
func SecsToDuration(secs float64) (time.Duration, error) {
	d := time.Duration(secs * float64(time.Second))
	if d <= 0 {
		return 0, util.FmtNewtError("Invalid timeout: %g; must be positive",
			secs)
	}

	return d, nil
}

// Exchange options for this invocation.  The command line wins over the
// profile's values (zero meaning unset), which win over the defaults.
func TxOptions(profTimeout float64, profTries int) (sesn.TxOptions, error) {
	opt := sesn.NewTxOptions()

	timeout, timeoutSrc := profTimeout, "profile"
	if Opts.TimeoutSet {
		timeout, timeoutSrc = Opts.Timeout, "command line"
	}
	if Opts.TimeoutSet || profTimeout != 0 {
		d, err := SecsToDuration(timeout)
		if err != nil {
			return opt, util.FmtNewtError("%s (from %s)", err.Error(),
				timeoutSrc)
		}
		opt.Timeout = d
	}

	tries := profTries
	if Opts.TriesSet {
		tries = Opts.Tries
	}
	if Opts.TriesSet || profTries != 0 {
		if tries < 1 {
			return opt, util.FmtNewtError("Invalid tries: %d", tries)
		}
		opt.Tries = tries
	}

	return opt, nil
}
