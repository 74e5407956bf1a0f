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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mynewt.apache.org/newt/util"
	"mynewt.apache.org/sblmgr/sblmgr/sblutil"
	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
	"mynewt.apache.org/sblmgr/sblxact/sesn"
)

var SblmgrLogLevel log.Level

func Commands() *cobra.Command {
	logLevelStr := ""
	sblCmd := &cobra.Command{
		Use:   sblutil.ToolInfo.ExeName,
		Short: sblutil.ToolInfo.ShortName + " updates SBL devices over a wired link",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			SblmgrLogLevel, err = log.ParseLevel(logLevelStr)
			if err != nil {
				nmUsage(nil, util.ChildNewtError(err))
			}

			err = util.Init(SblmgrLogLevel, "", util.VERBOSITY_DEFAULT)
			if err != nil {
				nmUsage(nil, err)
			}
			sblxutil.SetLogLevel(SblmgrLogLevel)

			sblutil.Opts.TimeoutSet = cmd.Flags().Changed("timeout")
			sblutil.Opts.TriesSet = cmd.Flags().Changed("tries")
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	sblCmd.PersistentFlags().StringVarP(&sblutil.Opts.Conn, "conn", "c", "",
		"connection profile to use")

	sblCmd.PersistentFlags().Float64VarP(&sblutil.Opts.Timeout, "timeout", "t",
		sesn.DfltTxOptions.Timeout.Seconds(),
		"timeout in seconds (partial seconds allowed); overrides the profile")

	sblCmd.PersistentFlags().IntVarP(&sblutil.Opts.Tries, "tries", "r",
		sesn.DfltTxOptions.Tries,
		"total number of tries in case of timeout; overrides the profile")

	sblCmd.PersistentFlags().StringVarP(&logLevelStr, "loglevel", "l", "info",
		"log level to use")

	sblCmd.PersistentFlags().StringVar(&sblutil.Opts.ConnType, "conntype", "",
		"Connection type to use instead of using the profile's type")

	sblCmd.PersistentFlags().StringVar(&sblutil.Opts.ConnString, "connstring", "",
		"Connection key-value pairs to use instead of using the profile's "+
			"connstring")

	versCmd := &cobra.Command{
		Use:     "version",
		Short:   "Display the " + sblutil.ToolInfo.ShortName + " version number",
		Example: "  " + sblutil.ToolInfo.ExeName + " version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n",
				sblutil.ToolInfo.LongName,
				sblutil.ToolInfo.VersionString)
		},
	}
	sblCmd.AddCommand(versCmd)

	sblCmd.AddCommand(statusCmd())
	sblCmd.AddCommand(updateCmd())
	sblCmd.AddCommand(resetCmd())
	sblCmd.AddCommand(abortCmd())
	sblCmd.AddCommand(connProfileCmd())
	sblCmd.AddCommand(simCmd())

	return sblCmd
}
