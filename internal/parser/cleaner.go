package parser

import (
	"regexp"
	"strings"

	"docindex/internal/models"
)

var (
	referencesRe = regexp.MustCompile(models.ReferencesRegex)
	blankLinesRe = regexp.MustCompile(models.BlankLinesRegex)
	spaceRunRe   = regexp.MustCompile(models.SpaceRunRegex)

	defaultBoilerplateRe = regexp.MustCompile(models.BoilerplateRegex)
)

// Clean strips the references section and running headers from extracted
// PDF text and normalizes whitespace. A nil boilerplate pattern disables
// header removal.
func Clean(text string, boilerplate *regexp.Regexp) string {
	if loc := referencesRe.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}

	if boilerplate != nil {
		text = boilerplate.ReplaceAllString(text, "")
	}

	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	text = spaceRunRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
