// Package runtime handles infrastructure-level tasks like loading
// configuration data shipped with the binary.
package runtime

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"

	"chatroom/errors"
)

//go:embed censored/*.txt
var censoredFS embed.FS

// WordList is the deduplicated set of censored words together with the
// languages it was assembled from, kept for logging.
type WordList struct {
	Words     []string
	Languages []string
}

// LoadCensoredWords parses the embedded per-language dictionaries
// (censored/{lang}.txt, one word per line) into a unique word list.
func LoadCensoredWords() (*WordList, error) {
	return loadWordList(censoredFS, "censored")
}

func loadWordList(fsys embed.FS, dir string) (*WordList, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var languages []string
	unique := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fsys.ReadFile(dir + "/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// A scanner handles both \n and \r\n line endings.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
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
	return &WordList{Words: words, Languages: languages}, nil
}
