package parser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	wordPrefix    = "W:"
	meaningPrefix = "M:"
	examplePrefix = "E:"

	// meaningSeparator splits several meanings written on one line.
	meaningSeparator = ";"
)

// Entry is one word read from a word list, not yet registered in a deck.
type Entry struct {
	Term     string
	Meanings []string
	Example  string
}

type state int

const (
	seeking state = iota
	readingWord
	readingMeaning
	readingExample
)

// ParseFile reads a word list from path. Files ending in .csv are read as
// CSV, everything else as W:/M:/E: blocks.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ParseCSV(file)
	}
	return Parse(file)
}

// Parse reads W:/M:/E: blocks. An entry starts at W:, ends at the next W: or
// a "---" line, and is kept only if it has a term and at least one meaning.
// Lines following M: are further meanings; lines following E: extend the example.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var entries []Entry
	var current Entry
	var example []string
	currentState := seeking

	finishEntry := func() {
		current.Example = strings.TrimSpace(strings.Join(example, "\n"))
		if current.Term != "" && len(current.Meanings) > 0 {
			entries = append(entries, current)
		}
		current = Entry{}
		example = nil
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == "---" {
			finishEntry()
			continue
		}

		switch {
		case strings.HasPrefix(line, wordPrefix):
			if currentState != seeking { // A new word always starts a new entry
				finishEntry()
			}
			currentState = readingWord
			current.Term = strings.TrimSpace(line[len(wordPrefix):])
		case strings.HasPrefix(line, meaningPrefix):
			if currentState == seeking {
				continue
			}
			currentState = readingMeaning
			current.Meanings = appendMeanings(current.Meanings, line[len(meaningPrefix):])
		case strings.HasPrefix(line, examplePrefix):
			if currentState == seeking {
				continue
			}
			currentState = readingExample
			example = append(example, strings.TrimSpace(line[len(examplePrefix):]))
		case currentState == readingMeaning:
			current.Meanings = appendMeanings(current.Meanings, line)
		case currentState == readingExample:
			example = append(example, line)
		}
	}

	finishEntry() // Finish the very last entry in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// ParseCSV reads rows of word,meanings[,example]. Meanings within the second
// column are separated by ';'. A leading header row starting with "word" is skipped.
func ParseCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entries []Entry
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		term := strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff"))
		if line == 1 && strings.EqualFold(term, "word") {
			continue
		}
		e := Entry{Term: term, Meanings: appendMeanings(nil, record[1])}
		if len(record) > 2 {
			e.Example = strings.TrimSpace(record[2])
		}
		if e.Term == "" || len(e.Meanings) == 0 {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func appendMeanings(meanings []string, line string) []string {
	for _, m := range strings.Split(line, meaningSeparator) {
		if m = strings.TrimSpace(m); m != "" {
			meanings = append(meanings, m)
		}
	}
	return meanings
}
