package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"path"
	"slices"
	"strings"

	"trivia-lab/errors"
)

//go:embed censored/*.txt
var censoredFolder embed.FS

// CensoredData is the merged word list with the languages it came from.
type CensoredData struct {
	Words     []string
	Languages []string
}

// CensoredLoader reads one word list per language, one word per line.
type CensoredLoader struct {
	fs fs.FS
}

func NewCensoredLoader(f fs.FS) *CensoredLoader {
	return &CensoredLoader{fs: f}
}

// DefaultLoader reads the word lists shipped with the binary.
func DefaultLoader() *CensoredLoader {
	return NewCensoredLoader(censoredFolder)
}

// LoadAll merges every .txt file of dir; "es.txt" is the "es" list.
func (l *CensoredLoader) LoadAll(dir string) (*CensoredData, error) {
	entries, err := fs.ReadDir(l.fs, dir)
	if err != nil {
		return nil, err
	}

	var languages []string
	unique := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".txt" {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(l.fs, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		// Scanner copes with \r\n endings
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				unique[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}
	if len(unique) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(unique))
	for w := range unique {
		words = append(words, w)
	}
	slices.Sort(words)
	return &CensoredData{Words: words, Languages: languages}, nil
}
