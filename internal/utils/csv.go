package utils

import (
	"encoding/csv"
	"fmt"
	"sort"

	"github.com/facette/natsort"
)

// CSV rows are ordered naturally by their first column.
type CSV [][]string

func (data CSV) Less(i, j int) bool {
	return natsort.Compare(data[i][0], data[j][0])
}

func (data CSV) Len() int {
	return len(data)
}
func (data CSV) Swap(i, j int) {
	data[i], data[j] = data[j], data[i]
}

// WriteAsCSV writes columns then the rows of data into dir/filename.
// Rows are sorted when sorted is set.
func WriteAsCSV(data CSV, dir, filename string, columns []string, sorted bool) error {
	f, err := OpenFile(dir, filename)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	if sorted {
		sort.Sort(data)
	}
	if err := w.WriteAll(data); err != nil {
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	return f.Close()
}
