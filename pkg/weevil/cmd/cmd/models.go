// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/antflydb/weevil/pkg/weevil"
	"github.com/antflydb/weevil/pkg/weevil/lib/backends"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List classification models in the models directory",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	registry, err := weevil.NewClassifierRegistry(
		viper.GetString("models_dir"),
		backends.NewSessionFactory(backends.GPUModeCPU),
		logger,
	)
	if err != nil {
		return err
	}
	defer func() {
		_ = registry.Close()
	}()

	names := registry.List()
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
