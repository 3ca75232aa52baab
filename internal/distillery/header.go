package distillery

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sdalu/distillery/internal/header"
)

// HeaderReport describes the detected dump header of one file.
type HeaderReport struct {
	Path   string
	System string
	Length int
}

// ScanHeaders inspects each file's leading bytes for a known dump
// header. Files without one yield a report with Length 0.
func ScanHeaders(ctx context.Context, paths []string) ([]HeaderReport, error) {
	reports := make([]HeaderReport, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := scanHeader(path)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func scanHeader(path string) (HeaderReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return HeaderReport{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sample := make([]byte, header.SampleSize())
	n, err := io.ReadFull(f, sample)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return HeaderReport{}, fmt.Errorf("reading %s: %w", path, err)
	}
	sample = sample[:n]

	d, err := header.Lookup(sample)
	if err != nil || d == nil {
		// Undecidable counts as unheadered.
		return HeaderReport{Path: path}, nil
	}
	return HeaderReport{Path: path, System: d.System, Length: d.HeaderLength()}, nil
}
