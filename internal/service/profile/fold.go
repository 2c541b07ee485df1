package profile

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters that carry no canonical decomposition but read as a base letter.
var foldReplacer = strings.NewReplacer(
	"ı", "i",
	"İ", "i",
	"ł", "l",
	"Ł", "l",
	"ø", "o",
	"Ø", "o",
	"đ", "d",
	"Đ", "d",
	"æ", "ae",
	"Æ", "ae",
	"œ", "oe",
	"Œ", "oe",
)

// FoldName reduces a name to a comparison key: diacritics removed, case folded
// and runs of whitespace collapsed. "Ayşe  Yılmaz" and "ayse yilmaz" share a key.
//
// Casers and transformers are stateful, so both are built per call.
func FoldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	stripped = foldReplacer.Replace(stripped)
	folded := cases.Fold().String(stripped)
	return strings.Join(strings.Fields(folded), " ")
}
