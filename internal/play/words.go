package play

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed words.yaml
var defaultWords []byte

// Word is one prompt and its accepted meaning.
type Word struct {
	Term    string `yaml:"term"`
	Meaning string `yaml:"meaning"`
}

// WordList is a named vocabulary set.
type WordList struct {
	Name  string `yaml:"name"`
	Words []Word `yaml:"words"`
}

// ErrEmptyWordList is returned for a list without usable words.
var ErrEmptyWordList = errors.New("word list has no words")

// ParseWords decodes a YAML word list. Entries missing a term or meaning
// are rejected.
func ParseWords(r io.Reader) (WordList, error) {
	var list WordList
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&list); err != nil {
		if errors.Is(err, io.EOF) {
			return WordList{}, ErrEmptyWordList
		}
		return WordList{}, fmt.Errorf("decode word list: %w", err)
	}
	if len(list.Words) == 0 {
		return WordList{}, ErrEmptyWordList
	}
	for i, w := range list.Words {
		if w.Term == "" || w.Meaning == "" {
			return WordList{}, fmt.Errorf("word %d: term and meaning are required", i)
		}
	}
	return list, nil
}

// LoadWords reads a word list from path, or the built-in list when path is empty.
func LoadWords(path string) (WordList, error) {
	if path == "" {
		return ParseWords(bytes.NewReader(defaultWords))
	}
	f, err := os.Open(path)
	if err != nil {
		return WordList{}, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()
	return ParseWords(f)
}
