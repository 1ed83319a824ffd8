// Package identity derives the key used to match a posting across runs.
//
// The key covers the normalized title, company and canonical link. Description,
// location and posted date are deliberately left out because the listings
// site reformats them between runs. Changing Normalize or the field set
// changes every key: bump Version so old and new keys can never be mixed.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tonykipkemboi/crewai-jobs/internal/domain"
	"github.com/tonykipkemboi/crewai-jobs/internal/scrape/util"
)

const Version = "v1"

// fieldSep never appears in cleaned text, so ("ab","c") and ("a","bc") differ.
const fieldSep = "\x1f"

// Resolve returns the identity of a raw listing.
func Resolve(j domain.RawJob) string {
	return Key(j.Title, j.Company, j.URL)
}

// Key hashes the identifying fields.
func Key(title, company, link string) string {
	payload := strings.Join([]string{
		Normalize(title),
		Normalize(company),
		util.CanonicalizeURL(link),
	}, fieldSep)
	sum := sha256.Sum256([]byte(payload))
	return Version + ":" + hex.EncodeToString(sum[:])
}

// Normalize folds compatibility forms, strips combining marks, lower-cases
// and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(util.CleanText(out))
}
