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
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/embedfw/fwbundle/fwbundle/cli"
	"github.com/embedfw/fwbundle/util"
)

var fwbundleLogLevel log.Level
var fwbundleSilent bool
var fwbundleQuiet bool
var fwbundleVerbose bool
var fwbundleLogFile string
var fwbundleHelp bool

func fwbundleCmd() *cobra.Command {
	fwbundleHelpText := cli.FormatHelp(`Fwbundle assembles firmware images
		for embedded boards and writes them to hardware.  It combines a boot
		loader, a device tree and the board's chip timing configuration into
		a signed image, and can deploy the result over recovery-mode USB, to
		an SD card, or to a SPI flash emulator.`)
	fwbundleHelpText += "\n\n" + cli.FormatHelp(`Please use the fwbundle
		help command, and specify the name of the command you want help for,
		for help on how to use a specific command`)
	fwbundleHelpEx := "  fwbundle\n"
	fwbundleHelpEx += "  fwbundle help [<command-name>]\n"
	fwbundleHelpEx += "    For help on <command-name>.  If not specified, " +
		"print this message."

	logLevelStr := ""
	fwbundleCmd := &cobra.Command{
		Use:     "fwbundle",
		Short:   "Fwbundle is a tool to assemble and flash firmware images",
		Long:    fwbundleHelpText,
		Example: fwbundleHelpEx,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbosity := util.VERBOSITY_DEFAULT
			if fwbundleSilent {
				verbosity = util.VERBOSITY_SILENT
			} else if fwbundleQuiet {
				verbosity = util.VERBOSITY_QUIET
			} else if fwbundleVerbose {
				verbosity = util.VERBOSITY_VERBOSE
			}

			var err error
			fwbundleLogLevel, err = log.ParseLevel(logLevelStr)
			if err != nil {
				cli.BundleUsage(nil, util.NewBundleError(err.Error()))
			}

			err = util.Init(fwbundleLogLevel, fwbundleLogFile, verbosity)
			if err != nil {
				cli.BundleUsage(nil, err)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	fwbundleCmd.PersistentFlags().BoolVarP(&fwbundleVerbose, "verbose", "v",
		false, "Enable verbose output when executing commands")
	fwbundleCmd.PersistentFlags().BoolVarP(&fwbundleQuiet, "quiet", "q",
		false, "Be quiet; only display error output")
	fwbundleCmd.PersistentFlags().BoolVarP(&fwbundleSilent, "silent", "s",
		false, "Be silent; don't output anything")
	fwbundleCmd.PersistentFlags().StringVarP(&logLevelStr, "loglevel", "l",
		"WARN", "Log level")
	fwbundleCmd.PersistentFlags().StringVarP(&fwbundleLogFile, "outfile",
		"o", "", "Filename to tee output to")
	fwbundleCmd.PersistentFlags().BoolVarP(&fwbundleHelp, "help", "h",
		false, "Help for fwbundle commands")

	versHelpText := cli.FormatHelp(`Display the fwbundle version number`)
	versHelpEx := "  fwbundle version"
	versCmd := &cobra.Command{
		Use:     "version",
		Short:   "Display the fwbundle version number",
		Long:    versHelpText,
		Example: versHelpEx,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s\n", cli.FwbundleVersionStr)
		},
	}

	fwbundleCmd.AddCommand(versCmd)

	return fwbundleCmd
}

func main() {
	cmd := fwbundleCmd()

	cli.AddBundleCommands(cmd)
	cli.AddWriteCommands(cmd)

	cmd.Execute()
}
