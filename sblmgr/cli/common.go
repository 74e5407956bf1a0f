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

package cli

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/newt/util"
	"mynewt.apache.org/sblmgr/sblmgr/config"
	"mynewt.apache.org/sblmgr/sblmgr/sblutil"
	"mynewt.apache.org/sblmgr/sblxact/sblserial"
	"mynewt.apache.org/sblmgr/sblxact/sesn"
	"mynewt.apache.org/sblmgr/sblxact/xact"
	"mynewt.apache.org/sblmgr/sblxact/xport"
)

var globalCpm *config.ConnProfileMgr
var globalProfile *config.ConnProfile
var globalSesn sesn.Sesn
var globalXport xport.Xport

var curCmd xact.Cmd
var curCmdMtx sync.Mutex

func connProfileMgr() (*config.ConnProfileMgr, error) {
	if globalCpm != nil {
		return globalCpm, nil
	}

	path, err := config.ConnProfilePath()
	if err != nil {
		return nil, err
	}

	cpm, err := config.LoadConnProfiles(path)
	if err != nil {
		return nil, err
	}

	globalCpm = cpm
	return globalCpm, nil
}

// Resolves the link for this invocation.  --conntype describes a link
// outright; otherwise the -c profile is used, with --connstring overriding
// its connection string.
func getConnProfile() (*config.ConnProfile, error) {
	if globalProfile != nil {
		return globalProfile, nil
	}

	var cp *config.ConnProfile
	if sblutil.Opts.ConnType != "" {
		ct, err := config.ConnTypeFromString(sblutil.Opts.ConnType)
		if err != nil {
			return nil, err
		}

		cp = &config.ConnProfile{
			Name:       "cmdline",
			Type:       ct,
			ConnString: sblutil.Opts.ConnString,
		}
		if err := cp.Validate(); err != nil {
			return nil, err
		}
	} else {
		if sblutil.Opts.Conn == "" {
			return nil, util.NewNewtError(
				"No connection specified; use -c <profile> or --conntype")
		}

		cpm, err := connProfileMgr()
		if err != nil {
			return nil, err
		}

		stored, err := cpm.Get(sblutil.Opts.Conn)
		if err != nil {
			return nil, err
		}

		override := *stored
		if sblutil.Opts.ConnString != "" {
			override.ConnString = sblutil.Opts.ConnString
			if err := override.Validate(); err != nil {
				return nil, err
			}
		}
		cp = &override
	}

	log.Debugf("Using connection profile %s", cp.String())
	globalProfile = cp
	return globalProfile, nil
}

// Exchange options for this invocation; exits on invalid values.
func TxOptions() sesn.TxOptions {
	cp, err := getConnProfile()
	if err != nil {
		nmUsage(nil, err)
	}

	opt, err := sblutil.TxOptions(cp.Timeout, cp.Tries)
	if err != nil {
		nmUsage(nil, err)
	}

	return opt
}

func GetXport() (xport.Xport, error) {
	if globalXport != nil {
		return globalXport, nil
	}

	cp, err := getConnProfile()
	if err != nil {
		return nil, err
	}

	x, err := cp.NewXport(TxOptions().Timeout)
	if err != nil {
		return nil, err
	}

	if err := x.Start(); err != nil {
		return nil, util.ChildNewtError(err)
	}

	globalXport = x
	return globalXport, nil
}

func GetSesn() (sesn.Sesn, error) {
	if globalSesn != nil {
		return globalSesn, nil
	}

	x, err := GetXport()
	if err != nil {
		return nil, err
	}

	s, err := sesn.NewPktSesn(x, sesn.NewSesnCfg())
	if err != nil {
		return nil, util.ChildNewtError(err)
	}

	if err := s.Open(); err != nil {
		return nil, util.ChildNewtError(err)
	}

	globalSesn = s
	return globalSesn, nil
}

// Releases the session and its transport.  Safe to call more than once.
func Cleanup() {
	if globalSesn != nil {
		globalSesn.Close()
		globalSesn = nil
	}

	if globalXport != nil {
		// A serial port with a read in progress can't be closed on every
		// platform; leave it to the OS at exit.
		if _, ok := globalXport.(*sblserial.SerialXport); !ok {
			globalXport.Stop()
		}
		globalXport = nil
	}
}

// Runs a command, recording it so a signal handler can abort it.
func runCmd(c xact.Cmd, s sesn.Sesn) (xact.Result, error) {
	curCmdMtx.Lock()
	curCmd = c
	curCmdMtx.Unlock()

	defer func() {
		curCmdMtx.Lock()
		curCmd = nil
		curCmdMtx.Unlock()
	}()

	return c.Run(s)
}

// Aborts the command in progress, if any.  Reports whether there was one.
func AbortCurrent() bool {
	curCmdMtx.Lock()
	c := curCmd
	curCmdMtx.Unlock()

	if c == nil {
		return false
	}

	if err := c.Abort(); err != nil {
		log.Debugf("Abort failed: %s", err.Error())
	}
	return true
}
