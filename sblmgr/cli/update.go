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
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/cheggaaa/pb.v1"

	"mynewt.apache.org/newt/util"
	"mynewt.apache.org/sblmgr/sblmgr/sblutil"
	"mynewt.apache.org/sblmgr/sblxact/sblp"
	"mynewt.apache.org/sblmgr/sblxact/sblxutil"
	"mynewt.apache.org/sblmgr/sblxact/xact"
)

var updateAddrStr string
var updateMaxSize int
var updateResetStr string
var updateNoProgress bool

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, util.FmtNewtError("Invalid number: %s", s)
	}
	return uint32(v), nil
}

// Wraps a command failure in an error that also names its class.
func cmdError(err error) error {
	return util.FmtNewtError("%s [%s]", err.Error(), sblxutil.Kind(err))
}

func updateRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		nmUsage(cmd, util.NewNewtError("Need to specify image to upload"))
	}

	image, err := xact.ImageFromFile(args[0])
	if err != nil {
		nmUsage(cmd, util.ChildNewtError(err))
	}

	cp, err := getConnProfile()
	if err != nil {
		nmUsage(nil, err)
	}

	// Profile settings apply unless overridden on the command line.
	cfg, err := cp.UpdateCfg()
	if err != nil {
		nmUsage(nil, err)
	}

	if cmd.Flags().Changed("addr") {
		cfg.OtaDescAddr, err = parseU32(updateAddrStr)
		if err != nil {
			nmUsage(cmd, err)
		}
	}
	if cmd.Flags().Changed("max-update-size") {
		if updateMaxSize <= 0 {
			nmUsage(cmd, util.FmtNewtError("Invalid max update size: %d",
				updateMaxSize))
		}
		cfg.MaxUpdateSize = updateMaxSize
	}
	if cmd.Flags().Changed("reset") {
		cfg.ResetOpt, err = sblp.ResetOptFromString(updateResetStr)
		if err != nil {
			nmUsage(cmd, util.ChildNewtError(err))
		}
	}

	s, err := GetSesn()
	if err != nil {
		nmUsage(nil, err)
	}

	c := xact.NewUpdateCmd()
	c.SetTxOptions(TxOptions())
	c.Data = image
	c.OtaDescAddr = cfg.OtaDescAddr
	c.MaxUpdateSize = cfg.MaxUpdateSize
	c.ResetOpt = cfg.ResetOpt

	var bar *pb.ProgressBar
	if !updateNoProgress {
		bar = pb.New(len(image))
		bar.SetUnits(pb.U_BYTES)
		bar.ShowSpeed = true
		bar.Start()

		c.ProgressCb = func(c *xact.UpdateCmd, u *xact.UpdateSesn) {
			bar.Set(u.BytesSent())
		}
	}

	res, err := runCmd(c, s)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		nmUsage(nil, cmdError(err))
	}

	ures := res.(*xact.UpdateResult)
	if ures.Status() != 0 {
		fmt.Printf("Error: %d\n", ures.Status())
		return
	}

	fmt.Printf("Done; sent %d bytes in %d block(s), reset=%s\n",
		ures.Sesn.ImageSize(), ures.Sesn.NumBlocks(), cfg.ResetOpt)
}

func updateCmd() *cobra.Command {
	updateCmd := &cobra.Command{
		Use:   "update <image-file>",
		Short: "Download an image to the device",
		Example: "  " + sblutil.ToolInfo.ExeName +
			" -c profile update app.bin --reset por",
		Run: updateRunCmd,
	}

	updateCmd.PersistentFlags().StringVar(&updateAddrStr, "addr",
		fmt.Sprintf("0x%x", sblp.DFLT_OTA_DESC_ADDR),
		"address of the OTA descriptor; overrides the profile")
	updateCmd.PersistentFlags().IntVar(&updateMaxSize, "max-update-size",
		sblp.DFLT_MAX_UPDATE_SIZE,
		"largest image block sent in a single update; overrides the profile")
	updateCmd.PersistentFlags().StringVar(&updateResetStr, "reset", "poi",
		"reset issued once the image is downloaded (poi|por); overrides "+
			"the profile")
	updateCmd.PersistentFlags().BoolVar(&updateNoProgress, "no-progress",
		false, "don't display a progress bar")

	return updateCmd
}
