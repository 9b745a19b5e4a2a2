// Package inputs reads the line-delimited target and keyword lists that
// drive a crawl run.
package inputs

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadTargets reads the target list from path, one target per line.
// Blank lines are ignored; an empty list is a configuration error.
func LoadTargets(path string) ([]string, error) {
	targets, err := loadLines(path)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets found in %s", path)
	}
	return targets, nil
}

// LoadKeywords reads the keyword list from path, one keyword per line.
// Blank lines are ignored; an empty list is a configuration error.
func LoadKeywords(path string) ([]string, error) {
	keywords, err := loadLines(path)
	if err != nil {
		return nil, err
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("no keywords found in %s", path)
	}
	return keywords, nil
}

func loadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
