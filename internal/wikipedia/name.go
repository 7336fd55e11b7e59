package wikipedia

import (
	"net/url"
	"regexp"
	"strings"
)

// qualifierPattern matches a trailing rank/aggregate qualifier and everything after it
var qualifierPattern = regexp.MustCompile(`(?i)\s+(agg|s\.l|s\.s|var|subsp)\.?.*$`)

// CleanScientificName strips notation Wikipedia titles do not carry:
//
//	"Helleborus niger/orientalis"  -> "Helleborus niger"
//	"Taraxacum officinale agg."    -> "Taraxacum officinale"
//	"Ranunculus acris subsp. friesianus" -> "Ranunculus acris"
func CleanScientificName(name string) string {
	name = strings.SplitN(name, "/", 2)[0]
	name = qualifierPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// pageTitle converts a name to an escaped REST path segment ("Bellis perennis" -> "Bellis_perennis")
func pageTitle(name string) string {
	return url.PathEscape(strings.ReplaceAll(name, " ", "_"))
}
