package landcover

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// A ClassTable maps class codes to class names.
type ClassTable map[int64]string

// A ClassTableOption sets an option on [ReadClassTable].
type ClassTableOption func(*classTableOptions)

type classTableOptions struct {
	codeColumn string
	nameColumn string
}

// WithCodeColumn sets the name of the column containing class codes. The
// default is the first column.
func WithCodeColumn(codeColumn string) ClassTableOption {
	return func(o *classTableOptions) {
		o.codeColumn = codeColumn
	}
}

// WithNameColumn sets the name of the column containing class names. The
// default is the second column.
func WithNameColumn(nameColumn string) ClassTableOption {
	return func(o *classTableOptions) {
		o.nameColumn = nameColumn
	}
}

// ReadClassTable reads a ClassTable from CSV data with a header row.
func ReadClassTable(r io.Reader, options ...ClassTableOption) (ClassTable, error) {
	var o classTableOptions
	for _, option := range options {
		option(&o)
	}

	csvReader := csv.NewReader(r)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	switch {
	case errors.Is(err, io.EOF):
		return nil, errors.New("missing header")
	case err != nil:
		return nil, err
	}
	codeIndex, err := columnIndex(header, o.codeColumn, 0)
	if err != nil {
		return nil, err
	}
	nameIndex, err := columnIndex(header, o.nameColumn, 1)
	if err != nil {
		return nil, err
	}

	classTable := make(ClassTable)
	for {
		record, err := csvReader.Read()
		switch {
		case errors.Is(err, io.EOF):
			return classTable, nil
		case err != nil:
			return nil, err
		}
		if max(codeIndex, nameIndex) >= len(record) {
			line, _ := csvReader.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected at least %d fields", line, max(codeIndex, nameIndex)+1)
		}
		code, err := strconv.ParseInt(strings.TrimSpace(record[codeIndex]), 10, 64)
		if err != nil {
			line, _ := csvReader.FieldPos(codeIndex)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		classTable[code] = strings.TrimSpace(record[nameIndex])
	}
}

// ReadClassTableFile reads a ClassTable from the CSV file name.
func ReadClassTableFile(name string, options ...ClassTableOption) (ClassTable, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	classTable, err := ReadClassTable(file, options...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return classTable, nil
}

func columnIndex(header []string, column string, defaultIndex int) (int, error) {
	if column == "" {
		if defaultIndex >= len(header) {
			return 0, fmt.Errorf("expected at least %d columns", defaultIndex+1)
		}
		return defaultIndex, nil
	}
	index := slices.IndexFunc(header, func(s string) bool {
		return strings.EqualFold(strings.TrimSpace(s), column)
	})
	if index < 0 {
		return 0, fmt.Errorf("%s: column not found", column)
	}
	return index, nil
}
