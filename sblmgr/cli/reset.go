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
	"fmt"

	"github.com/spf13/cobra"

	"mynewt.apache.org/newt/util"
	"mynewt.apache.org/sblmgr/sblxact/sblp"
	"mynewt.apache.org/sblmgr/sblxact/xact"
)

func printAckResult(res xact.Result) {
	ares := res.(*xact.AckResult)
	if ares.Status() != 0 {
		fmt.Printf("Error: %s (%d)\n", ares.Rsp.Status, ares.Status())
		return
	}

	fmt.Printf("Done\n")
}

func resetRunCmd(cmd *cobra.Command, args []string) {
	opt := sblp.RESET_OPT_POI
	if len(args) > 0 {
		var err error
		opt, err = sblp.ResetOptFromString(args[0])
		if err != nil {
			nmUsage(cmd, util.ChildNewtError(err))
		}
	}

	s, err := GetSesn()
	if err != nil {
		nmUsage(nil, err)
	}

	c := xact.NewResetCmd()
	c.SetTxOptions(TxOptions())
	c.Opt = opt

	res, err := runCmd(c, s)
	if err != nil {
		nmUsage(nil, cmdError(err))
	}

	printAckResult(res)
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [poi|por]",
		Short: "Reset the device",
		Run:   resetRunCmd,
	}
}

func abortRunCmd(cmd *cobra.Command, args []string) {
	s, err := GetSesn()
	if err != nil {
		nmUsage(nil, err)
	}

	c := xact.NewAbortCmd()
	c.SetTxOptions(TxOptions())

	res, err := runCmd(c, s)
	if err != nil {
		nmUsage(nil, cmdError(err))
	}

	printAckResult(res)
}

func abortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abort",
		Short: "Abandon an update in progress",
		Run:   abortRunCmd,
	}
}
