package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// loadQuestions reads the quiz question list from a CSV file with a
// header row naming at least "question" and "answer" columns. Extra
// columns are ignored.
func loadQuestions(path string) ([]Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open questions file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse questions file: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("questions file %q is empty", path)
	}

	questionCol, answerCol := -1, -1
	for i, name := range records[0] {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "question":
			questionCol = i
		case "answer":
			answerCol = i
		}
	}
	if questionCol < 0 || answerCol < 0 {
		return nil, fmt.Errorf("questions file %q needs question and answer columns", path)
	}

	var questions []Question
	for _, rec := range records[1:] {
		if len(rec) <= questionCol || len(rec) <= answerCol {
			continue
		}

		text := strings.TrimSpace(rec[questionCol])
		answer := strings.TrimSpace(rec[answerCol])
		if text == "" {
			continue
		}

		questions = append(questions, Question{
			Text:   text,
			Answer: answer,
		})
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("questions file %q has no usable rows", path)
	}

	return questions, nil
}
