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

package driver

import (
	"context"
	"fmt"
	"strings"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/evaluator"
	"optdriver.dev/optdriver/pkg/generator"
	"optdriver.dev/optdriver/pkg/opterr"
	"optdriver.dev/optdriver/pkg/vocs"
)

// AddData appends rows to the dataset, labelling them after the current
// last row, and mirrors them into the generator.
func (d *Driver) AddData(ctx context.Context, rows *dataset.Table) error {
	d.m.Lock()
	defer d.m.Unlock()
	return d.addData(ctx, rows)
}

func (d *Driver) addData(ctx context.Context, rows *dataset.Table) error {
	start := 0
	if last, ok := d.data.MaxIndex(); ok {
		start = last + 1
	}
	added := rows.Reindexed(start)
	next := d.data.Concat(added)
	d.logger.Debugf("adding %d rows", added.Len())

	var err error
	switch g := d.gen.(type) {
	case generator.StateOwner:
		err = g.SetData(next)
	case generator.Accumulator:
		err = g.AddData(added)
	default:
		err = d.gen.ReplaceData(next)
	}
	if err != nil {
		return err
	}
	d.data = next
	d.recordRows(ctx)
	return nil
}

// ResetData empties the dataset and the generator mirror. New rows are
// labelled from 0 again.
func (d *Driver) ResetData(ctx context.Context) error {
	d.m.Lock()
	defer d.m.Unlock()
	empty := dataset.New()
	if err := d.replaceMirror(empty); err != nil {
		return err
	}
	d.data = empty
	d.recordRows(ctx)
	return nil
}

// RemoveData drops the rows labelled by indices and relabels the rest
// 0..m-1. With inplace the dataset and the mirror are updated and nil is
// returned; otherwise the result is returned and nothing changes.
func (d *Driver) RemoveData(ctx context.Context, indices []int, inplace bool) (*dataset.Table, error) {
	d.m.Lock()
	defer d.m.Unlock()
	next, err := d.data.Drop(indices)
	if err != nil {
		return nil, err
	}
	if !inplace {
		return next, nil
	}
	if err := d.replaceMirror(next); err != nil {
		return nil, err
	}
	d.data = next
	d.recordRows(ctx)
	return nil, nil
}

func (d *Driver) replaceMirror(t *dataset.Table) error {
	if s, ok := d.gen.(generator.StateOwner); ok {
		return s.SetData(t.Copy())
	}
	return d.gen.ReplaceData(t.Copy())
}

// validateOutputs requires every objective and constraint to be present
// and numeric in every row. All offending cells are reported at once.
func validateOutputs(v *vocs.VOCS, t *dataset.Table) error {
	required := v.RequiredOutputs()
	index := t.Index()
	var problems []string
	for pos := 0; pos < t.Len(); pos++ {
		row := t.Row(pos)
		var bad []string
		for _, name := range required {
			cell, ok := row[name]
			switch {
			case !ok || cell == nil:
				bad = append(bad, fmt.Sprintf("%q is missing", name))
			case !dataset.IsNumeric(cell):
				bad = append(bad, fmt.Sprintf("%q is not numeric (%v)", name, cell))
			}
		}
		if len(bad) == 0 {
			continue
		}
		msg := fmt.Sprintf("row %d: %s", index[pos], strings.Join(bad, ", "))
		if s, ok := row[evaluator.ErrorStrColumn].(string); ok && s != "" {
			msg += fmt.Sprintf(" (evaluator error: %s)", s)
		}
		problems = append(problems, msg)
	}
	if len(problems) > 0 {
		return opterr.OutputValidationf("%s", strings.Join(problems, "; "))
	}
	return nil
}
