// Utilities for collecting artist names from flags and files.
package shared

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const bom = "\ufeff"

// ParseArtistList splits a comma separated list of artist names, trimming each name and skipping blanks.
func ParseArtistList(list string) []string {
	var names []string
	for _, part := range strings.Split(list, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ReadArtists reads one artist name per line, trimming each line and skipping blanks.
func ReadArtists(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), bom))
		if line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read artists: %w", err)
	}
	return names, nil
}

// ReadArtistsFile reads artist names from the file at path, one per line.
func ReadArtistsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artists file: %w", err)
	}
	defer f.Close()

	return ReadArtists(f)
}

// CollectArtists merges names from the --artists list and the --artists-file path, list first.
//
// Returns [ErrNoArtists] when neither source yields a name.
func CollectArtists(list, path string) ([]string, error) {
	names := ParseArtistList(list)

	if strings.TrimSpace(path) != "" {
		fromFile, err := ReadArtistsFile(path)
		if err != nil {
			return nil, err
		}
		names = append(names, fromFile...)
	}

	if len(names) == 0 {
		return nil, ErrNoArtists
	}
	return names, nil
}
