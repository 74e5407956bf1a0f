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

package main

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/newt/util"
	"mynewt.apache.org/sblmgr/sblmgr/cli"
	"mynewt.apache.org/sblmgr/sblmgr/sblutil"
)

// The first interrupt aborts the command in progress so the device is left
// between exchanges; a second one, or one with nothing to abort, exits.
func handleSignals(sigChan <-chan os.Signal) {
	aborted := false

	for s := range sigChan {
		switch s {
		case syscall.SIGQUIT:
			util.PrintStacks()

		case os.Interrupt, syscall.SIGTERM:
			if !aborted && cli.AbortCurrent() {
				aborted = true
				log.Warnf("Aborting; interrupt again to exit immediately")
				continue
			}
			cli.NmExit(1)
		}
	}
}

func main() {
	sblutil.ToolInfo = sblutil.ToolInfoType{
		ExeName:       "sblmgr",
		ShortName:     "sblmgr",
		LongName:      "Apache Mynewt SBL Manager",
		VersionString: "0.1.0",
		CfgFilename:   ".sblmgr.json",
	}

	cli.NmSetOnExit(cli.Cleanup)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	go handleSignals(sigChan)

	err := cli.Commands().Execute()
	cli.Cleanup()
	if err != nil {
		os.Exit(1)
	}
}
