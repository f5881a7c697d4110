package util

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
)

//go:embed version.txt
var embeddedVersion string

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

func GetVersion() string {
	return strings.TrimSpace(embeddedVersion)
}

func GetNameAndVersion() string {
	return fmt.Sprintf("%s / %s", Name, GetVersion())
}

// StripHtml converts note markup to plain text: tags dropped, entities
// unescaped, whitespace folded.
func StripHtml(text string) string {
	stripped := strings.ReplaceAll(text, "<br>", " ")
	stripped = strings.ReplaceAll(stripped, "<br/>", " ")
	stripped = strings.ReplaceAll(stripped, "</p>", " ")
	stripped = htmlTagRegex.ReplaceAllString(stripped, "")
	stripped = html.UnescapeString(stripped)
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(stripped, " "))
}

// ContentToSearch is the normalized form of a note body that the timeline
// duplicate linker compares: plain text, folded whitespace, lower case.
func ContentToSearch(content string) string {
	return strings.ToLower(StripHtml(content))
}

func PrettyPrint(i interface{}) string {
	s, _ := json.MarshalIndent(i, "", " ")
	return string(s)
}

func DateTimeFormat() string {
	return "2006-01-02 15:04:05 CEST"
}
