package model

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// UnknownLabel is returned for class indices outside the label table.
const UnknownLabel = "unknown"

// Labels is an ordered label table; the position of a label is its class index.
type Labels []string

// Name returns the label for idx, or UnknownLabel when idx is out of range.
func (l Labels) Name(idx int) string {
	if idx < 0 || idx >= len(l) {
		return UnknownLabel
	}
	return l[idx]
}

// Index returns the class index of name, or -1 if it is not in the table.
func (l Labels) Index(name string) int {
	for i, label := range l {
		if label == name {
			return i
		}
	}
	return -1
}

// LoadLabels reads a newline-delimited label table.
//
// One label per line, in class index order. Reading stops at the first empty
// line so trailing blank lines and anything after them are ignored. Windows line
// endings are accepted.
//
// Arguments:
//   - r: The label source.
//
// Returns:
//   - Labels: The label table.
//   - error: An error if reading fails or no label was found.
func LoadLabels(r io.Reader) (Labels, error) {
	var labels Labels
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			break
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read labels")
	}
	if len(labels) == 0 {
		return nil, errors.New("label table is empty")
	}
	return labels, nil
}

// LoadLabelsFile reads a label table from path.
func LoadLabelsFile(path string) (Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open labels %s", path)
	}
	defer f.Close()

	labels, err := LoadLabels(f)
	if err != nil {
		return nil, errors.Wrapf(err, "labels %s", path)
	}
	return labels, nil
}
