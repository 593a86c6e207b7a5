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
	"fmt"

	"github.com/spf13/cobra"

	"optdriver.dev/optdriver/pkg/driver"
	"optdriver.dev/optdriver/pkg/opterr"
	"optdriver.dev/optdriver/pkg/vocs"
)

func (c *cli) runCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "run DOCUMENT",
		Short: "Step until max_evaluations rows exist or the generator is exhausted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withDriver(ctx, args[0], func(d *driver.Driver) error {
				before := d.NData()
				if err := d.Run(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d rows evaluated, %d total\n", d.RunID(), d.NData()-before, d.NData())
				return dumpTo(ctx, d, output)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the final document to this target")
	return cmd
}

func (c *cli) stepCmd() *cobra.Command {
	var (
		steps  int
		output string
	)
	cmd := &cobra.Command{
		Use:   "step DOCUMENT",
		Short: "Run a fixed number of generate-evaluate steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return opterr.Validationf("--steps must be at least 1, got %d", steps)
			}
			ctx := cmd.Context()
			return c.withDriver(ctx, args[0], func(d *driver.Driver) error {
				before := d.NData()
				for i := 0; i < steps; i++ {
					if err := d.Step(ctx); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d rows evaluated, %d total\n", d.RunID(), d.NData()-before, d.NData())
				return dumpTo(ctx, d, output)
			})
		},
	}
	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "number of steps")
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the final document to this target")
	return cmd
}

func (c *cli) evaluateCmd() *cobra.Command {
	var set []string
	cmd := &cobra.Command{
		Use:   "evaluate DOCUMENT",
		Short: "Evaluate one point without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseAssignments(set)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return c.withDriver(ctx, args[0], func(d *driver.Driver) error {
				out, err := d.Evaluate(ctx, rec)
				if err != nil {
					return err
				}
				printRecord(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "variable assignment name=value, repeatable")
	return cmd
}

func (c *cli) randomCmd() *cobra.Command {
	var (
		n      int
		seed   int64
		bounds []string
		output string
	)
	cmd := &cobra.Command{
		Use:   "random DOCUMENT",
		Short: "Evaluate and store uniformly sampled points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			custom, err := parseBounds(bounds)
			if err != nil {
				return err
			}
			var seedp *int64
			if cmd.Flags().Changed("seed") {
				seedp = &seed
			}
			ctx := cmd.Context()
			return c.withDriver(ctx, args[0], func(d *driver.Driver) error {
				out, err := d.RandomEvaluate(ctx, n, seedp, custom)
				if err != nil {
					return err
				}
				if err := printTable(cmd.OutOrStdout(), out); err != nil {
					return err
				}
				return dumpTo(ctx, d, output)
			})
		},
	}
	cmd.Flags().IntVarP(&n, "samples", "n", 1, "number of points")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().StringArrayVar(&bounds, "bounds", nil, "custom bounds name=lo:hi, repeatable")
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the final document to this target")
	return cmd
}

func (c *cli) gridCmd() *cobra.Command {
	var (
		n      int
		per    map[string]int
		bounds []string
		output string
	)
	cmd := &cobra.Command{
		Use:   "grid DOCUMENT",
		Short: "Evaluate and store a full mesh over the variable bounds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			custom, err := parseBounds(bounds)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return c.withDriver(ctx, args[0], func(d *driver.Driver) error {
				out, err := d.GridEvaluate(ctx, vocs.GridSamples{Default: n, PerVariable: per}, custom)
				if err != nil {
					return err
				}
				if err := printTable(cmd.OutOrStdout(), out); err != nil {
					return err
				}
				return dumpTo(ctx, d, output)
			})
		},
	}
	cmd.Flags().IntVarP(&n, "samples", "n", 3, "points along each variable")
	cmd.Flags().StringToIntVar(&per, "per-variable", nil, "points along named variables, e.g. x=5,y=2")
	cmd.Flags().StringArrayVar(&bounds, "bounds", nil, "custom bounds name=lo:hi, repeatable")
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the final document to this target")
	return cmd
}
