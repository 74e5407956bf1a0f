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

package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"mynewt.apache.org/newt/util"
	"mynewt.apache.org/sblmgr/sblmgr/sblutil"
	"mynewt.apache.org/sblmgr/sblxact/sblp"
	"mynewt.apache.org/sblmgr/sblxact/sblserial"
	"mynewt.apache.org/sblmgr/sblxact/tcp"
	"mynewt.apache.org/sblmgr/sblxact/xact"
	"mynewt.apache.org/sblmgr/sblxact/xport"
)

type ConnType int

const (
	CONN_TYPE_NONE ConnType = iota
	CONN_TYPE_SERIAL
	CONN_TYPE_TCP
)

var connTypeNameMap = map[ConnType]string{
	CONN_TYPE_NONE:   "???",
	CONN_TYPE_SERIAL: "serial",
	CONN_TYPE_TCP:    "tcp",
}

func ConnTypeToString(ct ConnType) string {
	return connTypeNameMap[ct]
}

func ConnTypeFromString(s string) (ConnType, error) {
	for k, v := range connTypeNameMap {
		if k != CONN_TYPE_NONE && s == v {
			return k, nil
		}
	}

	return CONN_TYPE_NONE, util.FmtNewtError("Invalid connection type: %s", s)
}

func (ct ConnType) MarshalText() ([]byte, error) {
	return []byte(ConnTypeToString(ct)), nil
}

func (ct *ConnType) UnmarshalText(text []byte) error {
	var err error
	*ct, err = ConnTypeFromString(string(text))
	return err
}

// A device link together with the update settings that suit the device
// behind it.  Zero-valued settings fall back to the built-in defaults.
type ConnProfile struct {
	Name       string   `json:"-"`
	Type       ConnType `json:"type"`
	ConnString string   `json:"connstring"`

	// Seconds to wait for each ready signal.
	Timeout float64 `json:"timeout,omitempty"`
	Tries   int     `json:"tries,omitempty"`

	OtaDescAddr   uint32 `json:"ota_desc_addr,omitempty"`
	MaxUpdateSize int    `json:"max_update_size,omitempty"`
	Reset         string `json:"reset,omitempty"`
}

func (cp *ConnProfile) String() string {
	s := fmt.Sprintf("%s: type=%s connstring='%s'",
		cp.Name, ConnTypeToString(cp.Type), cp.ConnString)

	if cp.Timeout != 0 {
		s += fmt.Sprintf(" timeout=%g", cp.Timeout)
	}
	if cp.Tries != 0 {
		s += fmt.Sprintf(" tries=%d", cp.Tries)
	}
	if cp.OtaDescAddr != 0 {
		s += fmt.Sprintf(" addr=0x%x", cp.OtaDescAddr)
	}
	if cp.MaxUpdateSize != 0 {
		s += fmt.Sprintf(" maxupdatesize=%d", cp.MaxUpdateSize)
	}
	if cp.Reset != "" {
		s += " reset=" + cp.Reset
	}

	return s
}

type connProfileVar struct {
	Name string
	Desc string
	set  func(cp *ConnProfile, v string) error
}

func badVar(name string, v string) error {
	return util.FmtNewtError("Invalid %s: %s", name, v)
}

// Settings accepted by ConnProfile.Set, in display order.
var ConnProfileVars = []connProfileVar{
	{"type", "link type (serial|tcp)", func(cp *ConnProfile, v string) error {
		var err error
		cp.Type, err = ConnTypeFromString(v)
		return err
	}},
	{"connstring", "link parameters", func(cp *ConnProfile, v string) error {
		cp.ConnString = v
		return nil
	}},
	{"timeout", "seconds to wait for the device", func(cp *ConnProfile, v string) error {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return badVar("timeout", v)
		}
		cp.Timeout = f
		return nil
	}},
	{"tries", "attempts per exchange that times out", func(cp *ConnProfile, v string) error {
		n, err := cast.ToIntE(v)
		if err != nil {
			return badVar("tries", v)
		}
		cp.Tries = n
		return nil
	}},
	{"addr", "OTA descriptor address", func(cp *ConnProfile, v string) error {
		n, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			return badVar("addr", v)
		}
		cp.OtaDescAddr = uint32(n)
		return nil
	}},
	{"maxupdatesize", "device update window in bytes", func(cp *ConnProfile, v string) error {
		n, err := cast.ToIntE(v)
		if err != nil {
			return badVar("maxupdatesize", v)
		}
		cp.MaxUpdateSize = n
		return nil
	}},
	{"reset", "reset after update (poi|por)", func(cp *ConnProfile, v string) error {
		cp.Reset = strings.ToLower(v)
		return nil
	}},
}

// Applies a single "name=value" setting.
func (cp *ConnProfile) Set(vdef string) error {
	kv := strings.SplitN(vdef, "=", 2)
	if len(kv) != 2 {
		return util.FmtNewtError("Expected varname=value: %s", vdef)
	}

	for _, v := range ConnProfileVars {
		if v.Name == kv[0] {
			return v.set(cp, kv[1])
		}
	}

	return util.FmtNewtError("Unknown variable: %s", kv[0])
}

// Rejects profiles that could never be used to update a device.
func (cp *ConnProfile) Validate() error {
	if cp.Name == "" {
		return util.NewNewtError("Connection profile has no name")
	}

	switch cp.Type {
	case CONN_TYPE_SERIAL:
		if _, err := ParseSerialConnString(cp.ConnString); err != nil {
			return err
		}
	case CONN_TYPE_TCP:
		if _, err := ParseTcpConnString(cp.ConnString); err != nil {
			return err
		}
	default:
		return util.FmtNewtError("%s: must specify a connection type", cp.Name)
	}

	if cp.Timeout < 0 {
		return util.FmtNewtError("%s: timeout is negative", cp.Name)
	}
	if cp.Tries < 0 {
		return util.FmtNewtError("%s: tries is negative", cp.Name)
	}
	if cp.OtaDescAddr%4 != 0 {
		return util.FmtNewtError("%s: OTA descriptor address 0x%x is not "+
			"word aligned", cp.Name, cp.OtaDescAddr)
	}
	if cp.MaxUpdateSize < 0 {
		return util.FmtNewtError("%s: max update size is negative",
			cp.Name)
	}
	if cp.Reset != "" {
		if _, err := sblp.ResetOptFromString(cp.Reset); err != nil {
			return util.FmtNewtError("%s: %s", cp.Name, err.Error())
		}
	}

	return nil
}

// Update settings with the profile's values applied over the defaults.
func (cp *ConnProfile) UpdateCfg() (xact.UpdateCfg, error) {
	cfg := xact.NewUpdateCfg()

	if cp.OtaDescAddr != 0 {
		cfg.OtaDescAddr = cp.OtaDescAddr
	}
	if cp.MaxUpdateSize != 0 {
		cfg.MaxUpdateSize = cp.MaxUpdateSize
	}
	if cp.Reset != "" {
		opt, err := sblp.ResetOptFromString(cp.Reset)
		if err != nil {
			return cfg, util.ChildNewtError(err)
		}
		cfg.ResetOpt = opt
	}

	return cfg, nil
}

// Builds the transport the profile describes.  The transport is not
// started.
func (cp *ConnProfile) NewXport(readTimeout time.Duration) (xport.Xport, error) {
	switch cp.Type {
	case CONN_TYPE_SERIAL:
		sc, err := ParseSerialConnString(cp.ConnString)
		if err != nil {
			return nil, err
		}
		sc.ReadTimeout = readTimeout
		return sblserial.NewSerialXport(sc), nil

	case CONN_TYPE_TCP:
		tc, err := ParseTcpConnString(cp.ConnString)
		if err != nil {
			return nil, err
		}
		return tcp.NewTcpXport(tc), nil

	default:
		return nil, util.FmtNewtError("Unknown connection type: %s (%d)",
			ConnTypeToString(cp.Type), int(cp.Type))
	}
}

// Connection profiles persisted as a JSON object keyed by profile name.
type ConnProfileMgr struct {
	path     string
	profiles map[string]*ConnProfile
}

// Location of the profile file in the user's home directory.
func ConnProfilePath() (string, error) {
	dir, err := homedir.Dir()
	if err != nil {
		return "", util.ChildNewtError(err)
	}

	return filepath.Join(dir, sblutil.ToolInfo.CfgFilename), nil
}

// Reads the profiles stored at path.  A missing file holds no profiles.
func LoadConnProfiles(path string) (*ConnProfileMgr, error) {
	cpm := &ConnProfileMgr{
		path:     path,
		profiles: map[string]*ConnProfile{},
	}

	log.Debugf("Reading connection profiles from %s", path)
	blob, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cpm, nil
		}
		return nil, util.ChildNewtError(err)
	}

	if err := json.Unmarshal(blob, &cpm.profiles); err != nil {
		return nil, util.FmtNewtError("Error reading connection profiles "+
			"(%s): %s", path, err.Error())
	}

	for name, cp := range cpm.profiles {
		cp.Name = name
	}

	return cpm, nil
}

func (cpm *ConnProfileMgr) Names() []string {
	names := make([]string, 0, len(cpm.profiles))
	for name := range cpm.profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (cpm *ConnProfileMgr) Get(name string) (*ConnProfile, error) {
	cp := cpm.profiles[name]
	if cp == nil {
		return nil, util.FmtNewtError("Connection profile \"%s\" doesn't "+
			"exist", name)
	}

	return cp, nil
}

// Validates the profile, then adds it, replacing any profile of the same
// name.
func (cpm *ConnProfileMgr) Put(cp *ConnProfile) error {
	if err := cp.Validate(); err != nil {
		return err
	}

	cpm.profiles[cp.Name] = cp
	return cpm.save()
}

func (cpm *ConnProfileMgr) Delete(name string) error {
	if cpm.profiles[name] == nil {
		return util.FmtNewtError("Connection profile \"%s\" doesn't exist",
			name)
	}

	delete(cpm.profiles, name)
	return cpm.save()
}

// Writes a temporary file and renames it over the old one so an
// interrupted save never leaves a truncated profile file.
func (cpm *ConnProfileMgr) save() error {
	b, err := json.MarshalIndent(cpm.profiles, "", "    ")
	if err != nil {
		return util.ChildNewtError(err)
	}

	tmp := cpm.path + ".tmp"
	if err := ioutil.WriteFile(tmp, b, 0644); err != nil {
		return util.ChildNewtError(err)
	}
	if err := os.Rename(tmp, cpm.path); err != nil {
		os.Remove(tmp)
		return util.ChildNewtError(err)
	}

	log.Debugf("Saved %d connection profile(s) to %s",
		len(cpm.profiles), cpm.path)
	return nil
}
