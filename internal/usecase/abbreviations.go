package usecase

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Abbreviation is one entry of the ordered substitution table applied to
// invoice descriptions. Pattern is a regular expression matched against
// uppercase, diacritic-free text.
type Abbreviation struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// abbreviationFile is the on-disk layout of an abbreviation table
type abbreviationFile struct {
	Abbreviations []Abbreviation `yaml:"abbreviations"`
}

// defaultAbbreviations is the built-in invoice vocabulary. Order matters:
// later patterns see the output of earlier ones.
var defaultAbbreviations = []Abbreviation{
	{`\bSAB BAR\b`, "SABONETE EM BARRA"},
	{`\bSAB LIO\b`, "SABONETE LIQUIDO"},
	{`\bSAB LIQ\b`, "SABONETE LIQUIDO"},
	{`\bAMEIX BAU\b`, "AMEIXA E FLOR DE BAUNILHA"},
	{`\bCR CORP\b`, "CREME CORPORAL"},
	{`\bDES PER\b`, "DESODORANTE CORPORAL"},
	{`\bDESODORANTE COLONIA\b`, "COLONIA"},
	{`\bDES ROLLON\b`, "DESODORANTE ANTITRANSPIRANTE ROLL ON"},
	{`\bDES SPRAY\b`, "DESODORANTE SPRAY"},
	{`\bEDP\b`, "DEO PARFUM"},
	{`\bSH\b`, "SHAMPOO"},
	{`\bCOND\b`, "CONDICIONADOR"},
	{`\bHID\b`, "HIDRATANTE"},
	{`\bCORP\b`, "CORPORAL"},
	{`\bCR\b`, "CREME"},
	{`\bSAB BARRA\b`, "SABONETE EM BARRA"},
	{`\bDES\b`, "DESODORANTE"},
	{`\bCOL\b`, "COLONIA"},
	{`\bAGUA COL\b`, "AGUA DE COLONIA"},
	{`\bMMBB\b`, "MAMAE E BEBE"},
	{`\bSR N\b`, "SENHOR N"},
	{`\bMASC\b`, "MASCULINO"},
	{`\bFEM\b`, "FEMININO"},
	{`\bFL\b`, "FLOR DE"},
	{`\bAMT\b`, "AMAZONIA"},
	{`\bPRG\b`, "PERFUMADO"},
	{`\bRF\b`, "REFIL"},
	{`\bPER\b`, "PERFUMADO"},
}

// DefaultAbbreviations returns a copy of the built-in abbreviation table
func DefaultAbbreviations() []Abbreviation {
	out := make([]Abbreviation, len(defaultAbbreviations))
	copy(out, defaultAbbreviations)
	return out
}

// LoadAbbreviations reads an abbreviation table from a YAML file of the form
//
//	abbreviations:
//	  - pattern: '\bSAB LIQ\b'
//	    replacement: SABONETE LIQUIDO
func LoadAbbreviations(path string) ([]Abbreviation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read abbreviations: %w", err)
	}

	var file abbreviationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse abbreviations %s: %w", path, err)
	}
	if len(file.Abbreviations) == 0 {
		return nil, fmt.Errorf("parse abbreviations %s: no entries", path)
	}

	for i, a := range file.Abbreviations {
		if strings.TrimSpace(a.Pattern) == "" {
			return nil, fmt.Errorf("abbreviation %d in %s has an empty pattern", i+1, path)
		}
	}
	return file.Abbreviations, nil
}

type abbreviationRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// compileAbbreviations compiles the table in order. Patterns and
// replacements are folded to the alphabet the normalizer produces; patterns
// keep their case so escapes like \b survive.
func compileAbbreviations(abbreviations []Abbreviation) ([]abbreviationRule, error) {
	rules := make([]abbreviationRule, 0, len(abbreviations))
	for _, a := range abbreviations {
		re, err := regexp.Compile(foldDiacritics(a.Pattern))
		if err != nil {
			return nil, fmt.Errorf("abbreviation %q: %w", a.Pattern, err)
		}
		rules = append(rules, abbreviationRule{
			pattern:     re,
			replacement: foldDiacritics(strings.ToUpper(a.Replacement)),
		})
	}
	return rules, nil
}
