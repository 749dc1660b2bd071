package landcover

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
)

// A ClassArea is the area covered by a single class.
type ClassArea struct {
	Code    int64
	Name    string
	Pixels  int
	Area    float64
	Percent float64
}

// ClassStats are per-class area statistics of an array.
type ClassStats struct {
	Rows []ClassArea
	// Dropped contains the values that occur in the array but are not in the
	// class table. They are not included in Rows.
	Dropped []ValueCount
}

// ComputeClassStats tabulates the area of each class in array. Each pixel
// covers cellSize squared, and percentages are relative to nominalArea. Rows
// are sorted by decreasing percentage.
func ComputeClassStats(array *Array, classTable ClassTable, cellSize, nominalArea float64) *ClassStats {
	stats := &ClassStats{}
	for _, valueCount := range array.Unique() {
		name, ok := classTable[valueCount.Value]
		if !ok {
			stats.Dropped = append(stats.Dropped, valueCount)
			continue
		}
		area := float64(valueCount.Count) * cellSize * cellSize
		stats.Rows = append(stats.Rows, ClassArea{
			Code:    valueCount.Value,
			Name:    name,
			Pixels:  valueCount.Count,
			Area:    area,
			Percent: area / nominalArea * 100,
		})
	}
	slices.SortFunc(stats.Rows, func(a, b ClassArea) int {
		if c := cmp.Compare(b.Percent, a.Percent); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return stats
}

// ClassStats returns the class statistics of s. Percentages are relative to
// the area of s's envelope.
func (s *Selection) ClassStats(classTable ClassTable) *ClassStats {
	return ComputeClassStats(s.Array, classTable, s.CellSize, s.Envelope.Width()*s.Envelope.Height())
}

// WriteTable writes s as an aligned text table.
func (s *ClassStats) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintln(tw, "cdl\tname\tarea\tpct\t"); err != nil {
		return err
	}
	for _, row := range s.Rows {
		if _, err := fmt.Fprintf(tw, "%d\t%s\t%.0f\t%.6f\t\n", row.Code, row.Name, row.Area, row.Percent); err != nil {
			return err
		}
	}
	return tw.Flush()
}
