package compose

import (
	"mime"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const defaultContentType = "application/octet-stream"

// Extensions that name a content encoding rather than a content type.
var encodingExtensions = map[string]struct{}{
	".gz":  {},
	".z":   {},
	".bz2": {},
	".xz":  {},
	".br":  {},
	".zst": {},
}

// ASCIIFilename transliterates name to plain ASCII: accents are decomposed and
// dropped ("zpráva.pdf" becomes "zprava.pdf"), anything left outside ASCII is
// removed.
func ASCIIFilename(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || unicode.IsControl(r) {
			return -1
		}
		return r
	}, folded)
	folded = strings.TrimSpace(folded)
	if folded == "" || folded == "." {
		return "attachment"
	}
	return folded
}

// ContentType picks the attachment media type: the hint when it has the
// type/subtype shape, else a guess from the filename extension, else
// application/octet-stream.
func ContentType(hint, filename string) (string, map[string]string) {
	if mediaType, params, ok := parseHint(hint); ok {
		return mediaType, params
	}

	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		return defaultContentType, nil
	}
	if _, encoded := encodingExtensions[ext]; encoded {
		return defaultContentType, nil
	}
	if guessed := mime.TypeByExtension(ext); guessed != "" {
		if mediaType, _, ok := parseHint(guessed); ok {
			return mediaType, nil
		}
	}
	return defaultContentType, nil
}

func parseHint(hint string) (string, map[string]string, bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return "", nil, false
	}
	mediaType, params, err := mime.ParseMediaType(hint)
	if err != nil {
		return "", nil, false
	}
	maintype, subtype, found := strings.Cut(mediaType, "/")
	if !found || maintype == "" || subtype == "" {
		return "", nil, false
	}
	if len(params) == 0 {
		params = nil
	}
	return mediaType, params, true
}
