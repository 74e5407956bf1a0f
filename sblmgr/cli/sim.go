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
	"io/ioutil"
	"net"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mynewt.apache.org/newt/util"
	"mynewt.apache.org/sblmgr/sblxact/sim"
	"mynewt.apache.org/sblmgr/sblxact/tcp"
)

var simListenAddr string
var simMaxImageSize uint32
var simMaxUpdateSize int
var simOutFile string

func simConnHandler(cfg sim.SlaveCfg) tcp.ConnHandler {
	return func(conn net.Conn) error {
		slave := sim.NewSlave(cfg)
		err := sim.Serve(slave, conn)

		blocks := slave.Blocks()
		img := slave.Image()
		if img == nil && len(blocks) > 0 {
			log.Warnf("connection closed with image incomplete; "+
				"%d block(s) received", len(blocks))
		}
		if img != nil {
			log.Infof("received %d byte image in %d block(s); reset=%s",
				len(img), len(blocks), slave.ResetOpt())

			if simOutFile != "" {
				if werr := ioutil.WriteFile(simOutFile, img, 0644); werr != nil {
					log.Errorf("failed to write %s: %s", simOutFile,
						werr.Error())
				} else {
					log.Infof("image written to %s", simOutFile)
				}
			}
		}

		return err
	}
}

func simRunCmd(cmd *cobra.Command, args []string) {
	cfg := sim.NewSlaveCfg()
	cfg.MaxImageSize = simMaxImageSize
	cfg.MaxUpdateSize = simMaxUpdateSize
	if simMaxUpdateSize <= 0 {
		nmUsage(cmd, util.FmtNewtError("Invalid max update size: %d",
			simMaxUpdateSize))
	}

	l, err := tcp.Listen(simListenAddr, simConnHandler(cfg))
	if err != nil {
		nmUsage(nil, util.ChildNewtError(err))
	}

	log.Infof("simulated SBL slave listening on %s", l.Addr().String())
	if err := l.Serve(); err != nil {
		nmUsage(nil, util.ChildNewtError(err))
	}
}

func simCmd() *cobra.Command {
	simCmd := &cobra.Command{
		Use:   "sim",
		Short: "Serve a simulated SBL device over TCP",
		Run:   simRunCmd,
	}

	simCmd.PersistentFlags().StringVar(&simListenAddr, "listen", ":9999",
		"address to accept connections on")
	simCmd.PersistentFlags().Uint32Var(&simMaxImageSize, "max-image-size",
		sim.NewSlaveCfg().MaxImageSize,
		"largest image the simulated device accepts")
	simCmd.PersistentFlags().IntVar(&simMaxUpdateSize, "max-update-size",
		sim.NewSlaveCfg().MaxUpdateSize,
		"update window of the simulated device; hosts must match it")
	simCmd.PersistentFlags().StringVar(&simOutFile, "out", "",
		"file to write each received image to")

	return simCmd
}
