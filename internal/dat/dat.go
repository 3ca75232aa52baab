package dat

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// Parse decodes a DAT catalog, trying the Logiqx dialect first, then
// ClrMamePro. An input matching neither is a content error.
func Parse(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading dat: %w", err)
	}

	f, err := parseLogiqx(bytes.NewReader(data))
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, errFormat) {
		return nil, err
	}

	f, err = parseClrMamePro(bytes.NewReader(data))
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, errFormat) {
		return nil, err
	}

	return nil, fmt.Errorf("%w: unrecognized dat dialect", ErrContent)
}

// ParseFile decodes the DAT catalog at path.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dat: %w", err)
	}
	defer f.Close()

	parsed, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return parsed, nil
}
