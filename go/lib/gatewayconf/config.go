// Copyright 2024 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gatewayconf loads and validates the TOML configuration file
// described in spec §6, using github.com/pelletier/go-toml the way the
// teacher's config-carrying tools load theirs.
package gatewayconf

import (
	"net"
	"os"

	"github.com/pelletier/go-toml"

	"github.com/scionproto/scion-ip-gateway/go/lib/addr"
	"github.com/scionproto/scion-ip-gateway/go/lib/log"
	"github.com/scionproto/scion-ip-gateway/go/lib/serrors"
)

// MaxTruncatedAsn is the largest ASN the 20-bit AS field of a MapKey can
// represent. Configuring an isd_asn whose ASN exceeds this is rejected
// at load time (resolving spec §9's open question: reject, don't
// silently truncate).
const MaxTruncatedAsn = (1 << 20) - 1

const (
	defaultSciondAddress = "127.0.0.1:30255"
	defaultTapName       = "scion"
	defaultRxQueues      = 1
)

// Config mirrors the §6 configuration table.
type Config struct {
	Log struct {
		Level log.Level `toml:"level"`
	} `toml:"log"`

	Translator struct {
		IsdAsn       string `toml:"isd_asn"`
		GatewayAddr  string `toml:"gateway_addr"`
		HostAddr     string `toml:"host_addr"`
		GatewayAddr4 string `toml:"gateway_addr4"`
		HostAddr4    string `toml:"host_addr4"`
	} `toml:"translator"`

	Sciond struct {
		Address string `toml:"address"`
	} `toml:"sciond"`

	Tap struct {
		Name string `toml:"name"`
	} `toml:"tap"`

	XDP struct {
		Interface string `toml:"interface"`
		RxQueues  int    `toml:"rx_queues"`
	} `toml:"xdp"`

	// parsed holds the validated form of Translator.IsdAsn, populated by
	// Validate.
	parsed addr.IsdAsn
}

// IsdAsn returns the parsed local identity. Only valid after Validate
// has returned nil.
func (c *Config) IsdAsn() addr.IsdAsn {
	return c.parsed
}

// Load reads and parses path, applying defaults, then validates it.
// A malformed or invalid file is a ConfigError: terminal before any
// attachment (spec §7).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, serrors.Wrap("config error: cannot read file", err, "path", path)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, serrors.Wrap("config error: malformed TOML", err, "path", path)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Sciond.Address == "" {
		c.Sciond.Address = defaultSciondAddress
	}
	if c.Tap.Name == "" {
		c.Tap.Name = defaultTapName
	}
	if c.XDP.RxQueues == 0 {
		c.XDP.RxQueues = defaultRxQueues
	}
}

// Validate checks required fields and resolves the 20-bit AS truncation
// open question by rejecting configurations it cannot safely represent
// as a MapKey, rather than truncating silently. All failures are
// accumulated and returned together via serrors.List.
func (c *Config) Validate() error {
	var errs serrors.List

	if c.Translator.IsdAsn == "" {
		errs = append(errs, serrors.New("config error: translator.isd_asn is required"))
	} else {
		ia, err := addr.ParseIsdAsnString(c.Translator.IsdAsn)
		if err != nil {
			errs = append(errs, serrors.Wrap("config error: invalid translator.isd_asn", err))
		} else if ia.ASN() > MaxTruncatedAsn {
			errs = append(errs, serrors.New(
				"config error: translator.isd_asn's AS does not fit in the 20-bit MapKey field",
				"isd_asn", c.Translator.IsdAsn, "as", ia.ASN(), "max", MaxTruncatedAsn,
			))
		} else {
			c.parsed = ia
		}
	}

	requireIPv6Net(&errs, "translator.gateway_addr", c.Translator.GatewayAddr)
	requireIPv6Net(&errs, "translator.host_addr", c.Translator.HostAddr)

	if (c.Translator.GatewayAddr4 == "") != (c.Translator.HostAddr4 == "") {
		errs = append(errs, serrors.New(
			"config error: translator.gateway_addr4 and host_addr4 must both be set or both be empty"))
	}

	if c.XDP.Interface == "" {
		errs = append(errs, serrors.New("config error: xdp.interface is required"))
	}
	if c.XDP.RxQueues < 1 {
		errs = append(errs, serrors.New("config error: xdp.rx_queues must be >= 1", "value", c.XDP.RxQueues))
	}

	return errs.ToError()
}

func requireIPv6Net(errs *serrors.List, field, value string) {
	if value == "" {
		*errs = append(*errs, serrors.New("config error: required field is empty", "field", field))
		return
	}
	if _, _, err := net.ParseCIDR(value); err != nil {
		*errs = append(*errs, serrors.Wrap("config error: not a valid network", err, "field", field, "value", value))
	}
}
