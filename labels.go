package vespadet

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadLabels reads the class labels used to train the Model from the given
// text file.  It should contain one label per line, blank lines are skipped.
func LoadLabels(file string) ([]string, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	return ReadLabels(f)
}

// ReadLabels reads one label per line from r
func ReadLabels(r io.Reader) ([]string, error) {

	scanner := bufio.NewScanner(r)

	var labels []string

	// read and trim each line
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		labels = append(labels, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading labels: %w", err)
	}

	return labels, nil
}

// Label returns the label of class idx, or a generated name when labels do
// not cover it
func Label(labels []string, idx int) string {

	if idx >= 0 && idx < len(labels) {
		return labels[idx]
	}

	return fmt.Sprintf("class%d", idx)
}
