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

package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// ExportSheet names the worksheet written by WriteXLSX.
const ExportSheet = "data"

// header is the row label column followed by the sorted data columns.
func header(t *Table) []string {
	return append([]string{"index"}, t.Columns()...)
}

// WriteCSV writes t with a header row. Missing cells are empty and list
// cells are rendered with fmt.
func WriteCSV(t *Table, w io.Writer) error {
	cw := csv.NewWriter(w)
	cols := t.Columns()
	if err := cw.Write(header(t)); err != nil {
		return err
	}
	index := t.Index()
	for pos := 0; pos < t.Len(); pos++ {
		row := t.Row(pos)
		rec := make([]string, 0, len(cols)+1)
		rec = append(rec, strconv.Itoa(index[pos]))
		for _, col := range cols {
			rec = append(rec, csvCell(row[col]))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// WriteXLSX writes t as a single worksheet spreadsheet. Numbers and
// booleans keep their cell types; list cells become text.
func WriteXLSX(t *Table, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return err
	}

	head := make([]interface{}, 0, len(t.Columns())+1)
	for _, h := range header(t) {
		head = append(head, h)
	}
	if err := setRow(f, 1, head); err != nil {
		return err
	}

	cols := t.Columns()
	index := t.Index()
	for pos := 0; pos < t.Len(); pos++ {
		row := t.Row(pos)
		cells := make([]interface{}, 0, len(cols)+1)
		cells = append(cells, index[pos])
		for _, col := range cols {
			v := row[col]
			if IsList(v) {
				v = fmt.Sprint(v)
			}
			cells = append(cells, v)
		}
		if err := setRow(f, pos+2, cells); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func setRow(f *excelize.File, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(ExportSheet, cell, &cells)
}
