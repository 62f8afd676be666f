// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentfs/agentfs-core/cfg"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	runtimeConfig cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "agentfsctl",
	Short: "Drive an in-memory AgentFS core directly, without a FUSE or socket front-end",
	Long: `agentfsctl constructs a core.Core in-process and exercises it the
way an adapter would: creating branches and snapshots, opening and writing
files, and reporting stats(). It never touches the host filesystem; every
byte it moves lives in the core's content store for the lifetime of the
process.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		return cfg.ValidateConfig(&runtimeConfig)
	},
}

// Execute runs the root command, exiting the process with status 1 on
// error, mirroring the teacher's cmd.Execute.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file; flags take precedence over it.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	runtimeConfig = cfg.Default()
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&runtimeConfig, viper.DecodeHook(cfg.DecodeHook()))
		return
	}
	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("error while reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&runtimeConfig, viper.DecodeHook(cfg.DecodeHook()))
}
