// Package fingerprint computes the content identity used to deduplicate
// postings across repeated scrapes.
package fingerprint

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Func computes a fingerprint for a posting's identifying fields.
type Func func(source, title, company, location string) string

// Of is the default fingerprint: source-prefixed xxhash64 of the normalised
// (source, title, company, location) tuple.
//
// Normalisation lowercases and removes every whitespace rune, so the single
// space used as a separator can never occur inside a part.
func Of(source, title, company, location string) string {
	src := normalize(source)
	key := strings.Join([]string{src, normalize(title), normalize(company), normalize(location)}, " ")
	return src + "_" + strconv.FormatUint(xxhash.Sum64String(key), 16)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}
