// Copyright 2026 The optdriver Authors
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
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"optdriver.dev/optdriver/internal/appmain"
	"optdriver.dev/optdriver/pkg/evaluator"
)

func (c *cli) serveEvaluatorCmd() *cobra.Command {
	var cfg evaluator.Config
	cmd := &cobra.Command{
		Use:   "serve-evaluator",
		Short: "Serve a registered evaluator function over gRPC",
		Long: `serve-evaluator exposes a built-in function to drivers whose evaluator
block names an address. gRPC is served on evaluator.grpcport; metrics,
/healthz and /configz on evaluator.httpport.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := evaluator.FromConfig(cfg, c.functions)
			if err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{
				"function":    cfg.Function,
				"max_workers": cfg.MaxWorkers,
			}).Info("serving evaluator")
			return appmain.RunApplication(c.runtime, e)
		},
	}
	cmd.Flags().StringVar(&cfg.Function, "function", "", "registered function name")
	cmd.Flags().IntVar(&cfg.MaxWorkers, "max-workers", 1, "concurrent evaluations per batch")
	cmd.Flags().StringVar(&cfg.Retry, "retry", "", "retry schedule for failed calls, e.g. \"[0.1 1] *2 <5\"")
	_ = cmd.MarkFlagRequired("function")
	return cmd
}
