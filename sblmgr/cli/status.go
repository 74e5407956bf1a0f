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

	"github.com/fatih/structs"
	"github.com/spf13/cobra"
	"github.com/ugorji/go/codec"

	"mynewt.apache.org/newt/util"
	"mynewt.apache.org/sblmgr/sblxact/sblp"
	"mynewt.apache.org/sblmgr/sblxact/xact"
)

var statusJson bool

func formatStatusJson(rsp *sblp.StatusMsg) (string, error) {
	h := new(codec.JsonHandle)
	h.Canonical = true
	h.Indent = 4

	var b []byte
	if err := codec.NewEncoderBytes(&b, h).Encode(structs.Map(rsp)); err != nil {
		return "", util.ChildNewtError(err)
	}

	return string(b), nil
}

func formatStatusText(rsp *sblp.StatusMsg) string {
	s := ""
	for _, f := range structs.New(rsp).Fields() {
		name := f.Tag("structs")
		if name == "-" || !f.IsExported() {
			continue
		}

		switch v := f.Value().(type) {
		case [sblp.STATUS_AM_INFO_WORDS]uint32:
			s += fmt.Sprintf("    %s:\n", name)
			for i, w := range v {
				s += fmt.Sprintf("        [%2d] 0x%08x\n", i, w)
			}

		case uint32:
			s += fmt.Sprintf("    %s: %d (0x%x)\n", name, v, v)

		default:
			s += fmt.Sprintf("    %s: %v\n", name, v)
		}
	}

	return s
}

func statusRunCmd(cmd *cobra.Command, args []string) {
	s, err := GetSesn()
	if err != nil {
		nmUsage(nil, err)
	}

	c := xact.NewHelloCmd()
	c.SetTxOptions(TxOptions())

	res, err := runCmd(c, s)
	if err != nil {
		nmUsage(nil, util.ChildNewtError(err))
	}
	rsp := res.(*xact.HelloResult).Rsp

	if statusJson {
		js, err := formatStatusJson(rsp)
		if err != nil {
			nmUsage(nil, err)
		}
		fmt.Println(js)
		return
	}

	fmt.Printf("Status:\n%s", formatStatusText(rsp))
}

func statusCmd() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Query the bootloader's status",
		Run:   statusRunCmd,
	}

	statusCmd.PersistentFlags().BoolVar(&statusJson, "json", false,
		"print the status as JSON")

	return statusCmd
}
