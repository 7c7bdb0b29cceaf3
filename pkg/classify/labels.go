package classify

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadLabels reads class labels from a file, one label per line, in
// model order. Blank lines are skipped. A leading "<index> " prefix,
// as written by common training tools, is stripped.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open labels: %v", ErrModelLoad, err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// "0 Closed" -> "Closed"
		if fields := strings.SplitN(line, " ", 2); len(fields) == 2 {
			if isIndex(fields[0], len(labels)) {
				line = fields[1]
			}
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read labels: %v", ErrModelLoad, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no labels in %s", ErrModelLoad, path)
	}
	return labels, nil
}

func isIndex(s string, want int) bool {
	if len(s) == 0 {
		return false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + int(c-'0')
	}
	return n == want
}
