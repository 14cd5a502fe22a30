// Package taxonomy holds the closed list of CCI services a conversation can be
// classified under, and the normalization that maps free oracle text onto it.
package taxonomy

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed services.yaml
var servicesYAML []byte

// Service is the stable key of a taxonomy entry. It is what gets stored.
type Service string

const (
	CommercialSupport      Service = "commercial_support"
	TradeMissions          Service = "trade_missions"
	NetworkingEvents       Service = "networking_events"
	Training               Service = "training"
	LegalAdvisory          Service = "legal_advisory"
	MarketStudies          Service = "market_studies"
	CompanySetup           Service = "company_setup"
	Communications         Service = "communications"
	AdministrativeServices Service = "administrative_services"
	GeneralInformation     Service = "general_information"
)

// Default is returned whenever no specific service can be identified.
const Default = GeneralInformation

type Contact struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
}

type Definition struct {
	Key      Service   `yaml:"key"`
	Label    string    `yaml:"label"`
	Aliases  []string  `yaml:"aliases"`
	Contacts []Contact `yaml:"contacts"`
}

type file struct {
	Services []Definition `yaml:"services"`
}

var (
	definitions []Definition
	byKey       map[Service]Definition
	exact       map[string]Service
	partial     []aliasMatch
)

type aliasMatch struct {
	alias   string
	service Service
	order   int
}

func init() {
	defs, err := parse(servicesYAML)
	if err != nil {
		panic(err)
	}
	index(defs)
}

func parse(raw []byte) ([]Definition, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse services taxonomy: %w", err)
	}
	if len(f.Services) == 0 {
		return nil, fmt.Errorf("services taxonomy is empty")
	}
	if last := f.Services[len(f.Services)-1].Key; last != Default {
		return nil, fmt.Errorf("services taxonomy must end with %q, got %q", Default, last)
	}
	seen := map[Service]bool{}
	for _, d := range f.Services {
		if d.Key == "" || d.Label == "" {
			return nil, fmt.Errorf("services taxonomy entry missing key or label: %+v", d)
		}
		if seen[d.Key] {
			return nil, fmt.Errorf("duplicate service key %q", d.Key)
		}
		seen[d.Key] = true
	}
	return f.Services, nil
}

func index(defs []Definition) {
	definitions = defs
	byKey = make(map[Service]Definition, len(defs))
	exact = map[string]Service{}
	partial = nil
	for i, d := range defs {
		byKey[d.Key] = d
		names := append([]string{string(d.Key), strings.ReplaceAll(string(d.Key), "_", " "), d.Label}, d.Aliases...)
		for _, n := range names {
			f := Fold(n)
			if _, ok := exact[f]; !ok {
				exact[f] = d.Key
			}
			if d.Key != Default {
				partial = append(partial, aliasMatch{alias: f, service: d.Key, order: i})
			}
		}
	}
	// longest alias first so "missions commerciales" wins over "commercial"
	sort.SliceStable(partial, func(i, j int) bool {
		if len(partial[i].alias) != len(partial[j].alias) {
			return len(partial[i].alias) > len(partial[j].alias)
		}
		return partial[i].order < partial[j].order
	})
}

// All returns the taxonomy in its canonical order.
func All() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

func (s Service) Valid() bool {
	_, ok := byKey[s]
	return ok
}

// Label is the French display label; unknown keys render as themselves.
func (s Service) Label() string {
	if d, ok := byKey[s]; ok {
		return d.Label
	}
	return string(s)
}

func (s Service) String() string { return string(s) }

var (
	numbering = regexp.MustCompile(`^\s*\d+\s*[.)\-:]\s*`)
	trimChars = "\"'`*«»“”.:;!- \t"
)

// Normalize maps free oracle text onto a taxonomy member. Anything it cannot
// place falls back to Default.
func Normalize(text string) Service {
	t := text
	if i := strings.IndexAny(t, "\r\n"); i >= 0 {
		t = t[:i]
	}
	t = Fold(t)
	t = numbering.ReplaceAllString(t, "")
	t = strings.Trim(t, trimChars)
	if t == "" {
		return Default
	}
	if s, ok := exact[t]; ok {
		return s
	}
	// "Missions économiques - Participation à des missions..." style answers
	if i := strings.Index(t, " - "); i > 0 {
		if s, ok := exact[strings.Trim(t[:i], trimChars)]; ok {
			return s
		}
	}
	for _, m := range partial {
		if containsWord(t, m.alias) {
			return m.service
		}
	}
	return Default
}

// containsWord reports whether sub occurs in s on word boundaries, so that
// "formation" does not match inside "informations".
func containsWord(s, sub string) bool {
	for start := 0; start < len(s); {
		i := strings.Index(s[start:], sub)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(sub)
		if (i == 0 || !isWordByte(s[i-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		start = i + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 0x80
}

// Fold lowercases and strips diacritics so "Études" and "etudes" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.NewReplacer("’", "'", "‘", "'").Replace(out)
	return strings.ToLower(strings.TrimSpace(out))
}
