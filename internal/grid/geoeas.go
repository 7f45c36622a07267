package grid

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cwbudde/varmapfit/internal/spectral"
)

// Dataset holds the columns of a GEO-EAS file
type Dataset struct {
	Title   string
	Names   []string
	Columns [][]float64
}

// ReadGEOEAS parses a GEO-EAS (GSLib) text file: a title line, the number of
// variables, one name per line, then one whitespace-separated record per line.
func ReadGEOEAS(r io.Reader) (*Dataset, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	next := func(what string) (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("failed to read %s: %w", what, err)
			}
			return "", fmt.Errorf("unexpected end of file reading %s", what)
		}
		return strings.TrimSpace(scanner.Text()), nil
	}

	title, err := next("title")
	if err != nil {
		return nil, err
	}

	countLine, err := next("variable count")
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(countLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("missing variable count")
	}
	nVars, err := strconv.Atoi(fields[0])
	if err != nil || nVars <= 0 {
		return nil, fmt.Errorf("invalid variable count %q", countLine)
	}

	ds := &Dataset{
		Title:   title,
		Names:   make([]string, nVars),
		Columns: make([][]float64, nVars),
	}
	for v := 0; v < nVars; v++ {
		name, err := next("variable name")
		if err != nil {
			return nil, err
		}
		ds.Names[v] = name
	}

	line := 0
	for scanner.Scan() {
		line++
		record := strings.Fields(scanner.Text())
		if len(record) == 0 {
			continue
		}
		if len(record) < nVars {
			return nil, fmt.Errorf("record %d has %d values, expected %d", line, len(record), nVars)
		}
		for v := 0; v < nVars; v++ {
			val, err := strconv.ParseFloat(record[v], 64)
			if err != nil {
				return nil, fmt.Errorf("record %d column %d: %w", line, v+1, err)
			}
			ds.Columns[v] = append(ds.Columns[v], val)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	return ds, nil
}

// Variable returns the column with the given name
func (ds *Dataset) Variable(name string) ([]float64, error) {
	for i, n := range ds.Names {
		if n == name {
			return ds.Columns[i], nil
		}
	}
	return nil, fmt.Errorf("variable %q not found", name)
}

// Array materializes a variable as a dense array matching the geometry
func (ds *Dataset) Array(name string, geom Geometry) (*spectral.Array, error) {
	col, err := ds.Variable(name)
	if err != nil {
		return nil, err
	}
	if len(col) != geom.Cells() {
		return nil, fmt.Errorf("variable %q has %d values, grid has %d cells", name, len(col), geom.Cells())
	}
	data := make([]float64, len(col))
	copy(data, col)
	return spectral.FromSlice(geom.NI, geom.NJ, geom.NK, data)
}

// WriteGEOEAS writes named arrays of identical shape as a GEO-EAS file
func WriteGEOEAS(w io.Writer, title string, names []string, arrays []*spectral.Array) error {
	if len(names) != len(arrays) || len(arrays) == 0 {
		return fmt.Errorf("need one name per array, got %d names and %d arrays", len(names), len(arrays))
	}
	for _, a := range arrays[1:] {
		if !a.SameShape(arrays[0]) {
			return fmt.Errorf("all arrays must have the same dimensions")
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, title)
	fmt.Fprintln(bw, len(names))
	for _, n := range names {
		fmt.Fprintln(bw, n)
	}
	for idx := range arrays[0].Data {
		for v, a := range arrays {
			if v > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatFloat(a.Data[idx], 'g', -1, 64))
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write GEO-EAS data: %w", err)
	}
	return nil
}
