package usecase

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Profile selects which cleaning rules a Normalizer applies
type Profile string

const (
	// ProfileCatalog cleans canonical catalog names
	ProfileCatalog Profile = "catalog"
	// ProfileInvoice cleans invoice line descriptions and expands abbreviations
	ProfileInvoice Profile = "invoice"
	// ProfileMagazine cleans magazine catalog names and drops filler words
	ProfileMagazine Profile = "magazine"
)

// maxNormalizePasses bounds the fixed-point loop in Normalize
const maxNormalizePasses = 10

// Compiled regex patterns for normalization
var (
	leadingAsteriskPattern = regexp.MustCompile(`^\s*\*\s*`)
	invoiceCodePattern     = regexp.MustCompile(`^\d{4,6}-`)
	invoiceCodeExtract     = regexp.MustCompile(`^\s*\*?(\d+)-`)

	// Tax and fiscal annotations OCR leaves on invoice lines
	taxNoisePattern = regexp.MustCompile(` BC R\$[^)]+| ICMS-ST[^)]+| FCI.+| NV| VPN\d*`)

	leadingDigitsPattern  = regexp.MustCompile(`^[\d\s]+`)
	catalogDisallowed     = regexp.MustCompile(`[^A-Z0-9 ]`)
	invoiceDisallowed     = regexp.MustCompile(`[^A-Z0-9 ./,-]`)
	magazinePunctuation   = regexp.MustCompile(`[^\w\s]`)
	multipleSpacesPattern = regexp.MustCompile(`\s+`)
)

// magazineStopWords are filler words in magazine listings
var magazineStopWords = map[string]bool{
	"UNIDADE": true, "CAIXA": true, "PRESENTE": true, "COM": true, "LACO": true,
	"DO": true, "DA": true, "DE": true, "PARA": true, "E": true, "O": true, "A": true,
	"CM": true, "NATURA": true, "MINI": true, "EMBALAGEM": true, "ESPECIAL": true,
	"KIT": true,
}

// Normalizer turns free-text product names into a canonical uppercase form
type Normalizer struct {
	profile            Profile
	rules              []abbreviationRule
	enableDebugLogging bool
}

// NewNormalizer creates a normalizer for the given profile. Abbreviations are
// only applied by the invoice profile; nil selects the built-in table.
func NewNormalizer(profile Profile, abbreviations []Abbreviation, enableDebugLogging bool) (*Normalizer, error) {
	switch profile {
	case ProfileCatalog, ProfileInvoice, ProfileMagazine:
	default:
		return nil, fmt.Errorf("unknown normalizer profile %q", profile)
	}

	n := &Normalizer{profile: profile, enableDebugLogging: enableDebugLogging}
	if profile == ProfileInvoice {
		if abbreviations == nil {
			abbreviations = defaultAbbreviations
		}
		rules, err := compileAbbreviations(abbreviations)
		if err != nil {
			return nil, err
		}
		n.rules = rules
	}
	return n, nil
}

// Profile returns the normalizer's profile
func (n *Normalizer) Profile() Profile {
	return n.profile
}

// Normalize cleans s. Empty or whitespace-only input yields "".
// Passes repeat until the output stops changing, so Normalize is idempotent.
func (n *Normalizer) Normalize(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	out := n.pass(s)
	for i := 1; i < maxNormalizePasses; i++ {
		next := n.pass(out)
		if next == out {
			break
		}
		out = next
	}

	if n.enableDebugLogging {
		log.Printf("[NORMALIZE] %s: %q → %q", n.profile, s, out)
	}
	return out
}

func (n *Normalizer) pass(s string) string {
	switch n.profile {
	case ProfileInvoice:
		return n.invoicePass(s)
	case ProfileMagazine:
		return magazinePass(s)
	default:
		return catalogPass(s)
	}
}

func catalogPass(s string) string {
	s = foldDiacritics(strings.ToUpper(s))
	s = leadingDigitsPattern.ReplaceAllString(s, "")
	s = catalogDisallowed.ReplaceAllString(s, "")
	return collapseSpaces(s)
}

func (n *Normalizer) invoicePass(s string) string {
	s = strings.TrimSpace(strings.ToUpper(s))

	// Step 1: Drop the leading marker and the numeric product code
	s = strings.TrimSpace(leadingAsteriskPattern.ReplaceAllString(s, ""))
	s = strings.TrimSpace(invoiceCodePattern.ReplaceAllString(s, ""))

	// Step 2: Drop tax annotations
	s = strings.TrimSpace(taxNoisePattern.ReplaceAllString(s, ""))

	// Step 3: Fold accents so the abbreviation table sees plain ASCII
	s = collapseSpaces(foldDiacritics(s))

	// Step 4: Expand abbreviations in table order
	for _, rule := range n.rules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}

	// Step 5: Final cleanup
	s = invoiceDisallowed.ReplaceAllString(s, "")
	return collapseSpaces(s)
}

func magazinePass(s string) string {
	s = foldDiacritics(strings.ToUpper(s))
	s = magazinePunctuation.ReplaceAllString(s, "")

	words := strings.Fields(s)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if magazineStopWords[w] || len([]rune(w)) <= 1 {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// ExtractInvoiceCode returns the numeric product code that prefixes an
// invoice description ("*12345-SAB LIQ ..." yields "12345"), or "".
func ExtractInvoiceCode(description string) string {
	m := invoiceCodeExtract.FindStringSubmatch(strings.TrimSpace(strings.ToUpper(description)))
	if m == nil {
		return ""
	}
	return m[1]
}

// foldDiacritics strips combining marks: "COLÔNIA" becomes "COLONIA".
// A fresh transformer is built per call since transformers are stateful.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(multipleSpacesPattern.ReplaceAllString(s, " "))
}

// TitleCase capitalizes the first letter of every word and lowercases the
// rest: "SABONETE LIQUIDO" becomes "Sabonete Liquido".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if prevLetter {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToUpper(r))
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}

// Normalizers bundles one Normalizer per profile
type Normalizers struct {
	Catalog  *Normalizer
	Invoice  *Normalizer
	Magazine *Normalizer
}

// NewNormalizers builds every profile. abbreviations feeds the invoice profile.
func NewNormalizers(abbreviations []Abbreviation, enableDebugLogging bool) (*Normalizers, error) {
	catalog, err := NewNormalizer(ProfileCatalog, nil, enableDebugLogging)
	if err != nil {
		return nil, err
	}
	invoice, err := NewNormalizer(ProfileInvoice, abbreviations, enableDebugLogging)
	if err != nil {
		return nil, err
	}
	magazine, err := NewNormalizer(ProfileMagazine, nil, enableDebugLogging)
	if err != nil {
		return nil, err
	}
	return &Normalizers{Catalog: catalog, Invoice: invoice, Magazine: magazine}, nil
}

// For returns the normalizer for profile, or nil for an unknown profile
func (n *Normalizers) For(profile Profile) *Normalizer {
	switch profile {
	case ProfileCatalog:
		return n.Catalog
	case ProfileInvoice:
		return n.Invoice
	case ProfileMagazine:
		return n.Magazine
	}
	return nil
}
