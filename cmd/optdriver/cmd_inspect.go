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
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/driver"
	"optdriver.dev/optdriver/pkg/opterr"
)

func (c *cli) showCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show DOCUMENT",
		Short: "Print a driver document after loading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withDriver(ctx, args[0], func(d *driver.Driver) error {
				var (
					out string
					err error
				)
				switch format {
				case "yaml":
					out, err = d.YAML()
				case "json":
					out, err = d.JSON()
				case "summary":
					out = d.String()
				case "data":
					return printTable(cmd.OutOrStdout(), d.Data())
				default:
					return opterr.Validationf("unknown format %q, want yaml, json, summary or data", format)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "yaml, json, summary or data")
	return cmd
}

func (c *cli) describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe DOCUMENT",
		Short: "Summarize the numeric columns of the dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withDriver(ctx, args[0], func(d *driver.Driver) error {
				summaries, err := dataset.Describe(d.Data())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "column\tcount\tmean\tstd\tmin\tmedian\tmax")
				for _, s := range summaries {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n", s.Column, s.Count,
						formatCell(s.Mean), formatCell(s.StdDev), formatCell(s.Min), formatCell(s.Median), formatCell(s.Max))
				}
				return tw.Flush()
			})
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export DOCUMENT OUT",
		Short: "Write the dataset to a .csv or .xlsx file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var write func(*dataset.Table, io.Writer) error
			switch ext := strings.ToLower(filepath.Ext(args[1])); ext {
			case ".csv":
				write = dataset.WriteCSV
			case ".xlsx":
				write = dataset.WriteXLSX
			default:
				return opterr.Validationf("cannot export to %q files, want .csv or .xlsx", ext)
			}
			return c.withDriver(cmd.Context(), args[0], func(d *driver.Driver) error {
				data := d.Data()
				f, err := os.Create(args[1])
				if err != nil {
					return opterr.Wrap(opterr.Serialization, err, "cannot create export file")
				}
				if err := write(data, f); err != nil {
					f.Close()
					return opterr.Wrap(opterr.Serialization, err, "cannot export data")
				}
				if err := f.Close(); err != nil {
					return opterr.Wrap(opterr.Serialization, err, "cannot export data")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", data.Len(), args[1])
				return nil
			})
		},
	}
}
