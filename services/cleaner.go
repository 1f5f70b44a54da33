package services

import (
	"regexp"
	"strings"
)

var (
	// dòng chỉ chứa "Page 3", "Page 3 of 10", "Trang 3"
	rePageNumberLine = regexp.MustCompile(`(?im)^\s*(page|trang)\s*\d+(\s*(of|/)\s*\d+)?\s*$`)
	reTOCLine        = regexp.MustCompile(`(?im)^\s*(mục lục|table of contents|contents)\s*$`)
	reSymbolLine     = regexp.MustCompile(`(?m)^[\s\p{P}\p{S}\d]*$`)
	reMultiNewLine   = regexp.MustCompile(`\n{2,}`)
)

// CleanExtractedText bỏ các dòng mục lục, số trang và dòng chỉ có ký hiệu
func CleanExtractedText(text string) string {
	cleaned := strings.ReplaceAll(text, "\r\n", "\n")
	cleaned = reTOCLine.ReplaceAllString(cleaned, "")
	cleaned = rePageNumberLine.ReplaceAllString(cleaned, "")
	cleaned = reSymbolLine.ReplaceAllString(cleaned, "")
	cleaned = reMultiNewLine.ReplaceAllString(cleaned, "\n")
	return strings.TrimSpace(cleaned)
}
