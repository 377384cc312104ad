// Package targets loads and validates the list of URLs a run cycles through.
package targets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

// ErrEmpty is returned when a URL list holds no entries.
var ErrEmpty = errors.New("url list is empty")

// Load reads a newline-separated URL list from path.
func Load(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url list: %w", err)
	}
	defer file.Close()

	urls, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return urls, nil
}

// Parse reads one URL per line. Blank lines and lines starting with '#' are skipped;
// every remaining line must be a valid target.
func Parse(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		entry := strings.TrimSpace(scanner.Text())
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		if err := Validate(entry); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		urls = append(urls, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	if len(urls) == 0 {
		return nil, ErrEmpty
	}
	return urls, nil
}

// Validate checks that raw is an absolute http or https URL with a host.
func Validate(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: host is required", raw)
	}
	return nil
}
