package extractor

import (
	"os"
	"regexp"
	"strings"
)

var blankLine = regexp.MustCompile(`\n\s*\n`)

func readTXT(path string, paragraphs bool) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.ToValidUTF8(string(data), "")
	if !paragraphs {
		return []string{text}, nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return blankLine.Split(text, -1), nil
}
