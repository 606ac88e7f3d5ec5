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

// gwctrl is the control binary of the SCION/IPv6 gateway (spec §6): it
// parses -i/-e/-d, loads the TOML configuration, attaches the fast-path
// hooks, runs the path-resolution control loop, and tears everything
// down on SIGINT/SIGTERM. Grounded on colibri-cmd/main.go's cobra
// skeleton.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scionproto/scion-ip-gateway/go/lib/log"
	"github.com/scionproto/scion-ip-gateway/go/lib/serrors"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

type exitCoder interface {
	ExitCode() int
}

// exitCode maps an error to the process exit code required by spec §6:
// 0 on clean shutdown, non-zero on attachment or initialization failure.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ec, ok := err.(exitCoder); ok {
		return ec.ExitCode()
	}
	return 1
}

func newRootCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:           "gwctrl",
		Short:         "SCION/IPv6 gateway control plane",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVarP(&opts.Ingress, "ingress", "i", "", "ingress network interface")
	cmd.Flags().StringVarP(&opts.Egress, "egress", "e", "", "egress network interface")
	cmd.Flags().StringVarP(&opts.Sciond, "sciond", "d", "", "SCION daemon endpoint")
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "gw.toml", "configuration file")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := opts.validate(); err != nil {
			return err
		}
		return run(cmd.Context(), opts)
	}

	return cmd
}

// runOptions holds the parsed CLI flags, validated before run starts so
// a flag error never gets past attachment (spec §6: "-e requires -d").
type runOptions struct {
	Ingress    string
	Egress     string
	Sciond     string
	ConfigPath string
}

func (o runOptions) validate() error {
	if o.Ingress == "" && o.Egress == "" {
		return serrors.New("at least one of --ingress/-i or --egress/-e is required")
	}
	if o.Egress != "" && o.Sciond == "" {
		return serrors.New("--egress/-e requires --sciond/-d")
	}
	return nil
}

func init() {
	_ = log.Setup(log.Info)
}
