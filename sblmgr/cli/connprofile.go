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
	"mynewt.apache.org/sblmgr/sblmgr/config"
	"mynewt.apache.org/sblmgr/sblmgr/sblutil"
)

func mustConnProfileMgr(cmd *cobra.Command) *config.ConnProfileMgr {
	cpm, err := connProfileMgr()
	if err != nil {
		nmUsage(cmd, err)
	}
	return cpm
}

func connProfileAddCmd(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		nmUsage(cmd, util.NewNewtError("Need connection profile name"))
	}

	cpm := mustConnProfileMgr(cmd)

	cp := &config.ConnProfile{Name: args[0]}
	for _, vdef := range args[1:] {
		if err := cp.Set(vdef); err != nil {
			nmUsage(cmd, err)
		}
	}

	if err := cpm.Put(cp); err != nil {
		nmUsage(cmd, err)
	}

	fmt.Printf("Connection profile %s successfully added\n", cp.Name)
}

func connProfileShowCmd(cmd *cobra.Command, args []string) {
	cpm := mustConnProfileMgr(cmd)

	names := cpm.Names()
	if len(args) > 0 {
		if _, err := cpm.Get(args[0]); err != nil {
			nmUsage(nil, err)
		}
		names = []string{args[0]}
	}

	if len(names) == 0 {
		fmt.Printf("No connection profiles found!\n")
		return
	}

	fmt.Printf("Connection profiles:\n")
	for _, name := range names {
		cp, _ := cpm.Get(name)
		fmt.Printf("  %s\n", cp.String())
	}
}

func connProfileDelCmd(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		nmUsage(cmd, util.NewNewtError("Need connection profile name"))
	}

	cpm := mustConnProfileMgr(cmd)
	if err := cpm.Delete(args[0]); err != nil {
		nmUsage(cmd, err)
	}

	fmt.Printf("Connection profile %s successfully deleted.\n", args[0])
}

func connProfileVarsHelp() string {
	s := "Variables:\n"
	for _, v := range config.ConnProfileVars {
		s += fmt.Sprintf("  %-14s %s\n", v.Name, v.Desc)
	}
	return s
}

func connProfileCmd() *cobra.Command {
	cpCmd := &cobra.Command{
		Use:   "conn",
		Short: "Manage " + sblutil.ToolInfo.ShortName + " connection profiles",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <conn_profile> <varname=value ...>",
		Short: "Add or replace a connection profile",
		Long: "Stores a link and the update settings for the device behind " +
			"it.\nThe profile is validated before it is saved.\n\n" +
			connProfileVarsHelp(),
		Example: "  " + sblutil.ToolInfo.ExeName +
			" conn add uart type=serial connstring=\"dev=/dev/ttyUSB0,baud=115200\" timeout=2 tries=3\n" +
			"  " + sblutil.ToolInfo.ExeName +
			" conn add simdev type=tcp connstring=localhost:9999 addr=0xfe000 maxupdatesize=16384 reset=por",
		Run: connProfileAddCmd,
	}
	cpCmd.AddCommand(addCmd)

	delCmd := &cobra.Command{
		Use:   "delete <conn_profile>",
		Short: "Delete a connection profile",
		Run:   connProfileDelCmd,
	}
	cpCmd.AddCommand(delCmd)

	showCmd := &cobra.Command{
		Use:   "show [conn_profile]",
		Short: "Show one or all connection profiles",
		Run:   connProfileShowCmd,
	}
	cpCmd.AddCommand(showCmd)

	return cpCmd
}
