/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command xcall serves, drives, and documents the xcall command
// protocol.
package main

import (
	"fmt"
	"os"

	"github.com/Comcast/xcall/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configFile  string
	verbose     bool
	development bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "xcall",
	Short: "Drive objects in a host runtime with serializable commands",
	Long: `xcall interprets trees of commands (construct, invoke, get and set
fields, index arrays, destroy references) against objects living in a
host runtime.  References to host objects stay valid until destroyed.

Use "xcall serve" to expose an interpreter over stdio, TCP, WebSockets,
HTTP, or MQTT, and "xcall send" to talk to one.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := util.NewLogger(verbose, development)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		util.SetLogger(l)
		util.Logging = verbose
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (.yaml, .toml, or .json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&development, "development", false, "Human-friendly log output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(libCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
