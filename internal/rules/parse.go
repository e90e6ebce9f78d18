package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RuleParser turns one non-comment line of a rules file into a Rule.
type RuleParser interface {
	CanParse(line string) bool
	Parse(line string) (Rule, error)
}

// The rules file holds one rule per line. Blank lines and lines starting
// with # are ignored.
//
//	smiley face => ::happy::     phrase, whole words, any case
//	s/\bum+\b//g                 regex, sed style, i by default
func parseRules(contents string, parsers []RuleParser) ([]Rule, error) {
	var rules []Rule
	for n, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, err := parseLine(line, parsers)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseLine(line string, parsers []RuleParser) (Rule, error) {
	for _, parser := range parsers {
		if parser.CanParse(line) {
			return parser.Parse(line)
		}
	}
	return nil, errors.New("unsupported rule format")
}

func defaultRuleParsers() []RuleParser {
	return []RuleParser{sedParser{}, phraseParser{}}
}

type phraseParser struct{}

func (phraseParser) CanParse(line string) bool       { return strings.Contains(line, "=>") }
func (phraseParser) Parse(line string) (Rule, error) { return parsePhraseRule(line) }

type sedParser struct{}

func (sedParser) CanParse(line string) bool {
	return len(line) > 1 && line[0] == 's' && isDelimiter(line[1])
}
func (sedParser) Parse(line string) (Rule, error) { return parseSedRule(line) }

// phraseRule replaces a phrase wherever it appears, ignoring case. Ends of the
// phrase that are word characters only match at word boundaries, so "lol"
// leaves "lollipop" alone.
type phraseRule struct {
	re          *regexp.Regexp
	replacement string
}

func parsePhraseRule(line string) (Rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" {
		return nil, errors.New("phrase rule source cannot be empty")
	}

	pattern := regexp.QuoteMeta(from)
	if first, _ := utf8.DecodeRuneInString(from); isASCIIWord(first) {
		pattern = `\b` + pattern
	}
	if last, _ := utf8.DecodeLastRuneInString(from); isASCIIWord(last) {
		pattern += `\b`
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid phrase %q: %w", from, err)
	}
	return phraseRule{re: re, replacement: to}, nil
}

func (r phraseRule) Apply(input string) (string, bool) {
	output := r.re.ReplaceAllLiteralString(input, r.replacement)
	return output, output != input
}

// sedRule is s<d>pattern<d>replacement<d>flags. Without g only the first
// match is replaced.
type sedRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func parseSedRule(line string) (Rule, error) {
	delim := line[1]
	pattern, rest, err := splitDelimited(line[2:], delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, rest, err := splitDelimited(rest, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}

	global := false
	inline := "i"
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'g':
			global = true
		case 'i':
		case 'm', 's':
			if !strings.ContainsRune(inline, flag) {
				inline += string(flag)
			}
		case ' ':
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + inline + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return sedRule{re: re, replacement: replacement, global: global}, nil
}

func (r sedRule) Apply(input string) (string, bool) {
	var output string
	if r.global {
		output = r.re.ReplaceAllString(input, r.replacement)
	} else {
		loc := r.re.FindStringSubmatchIndex(input)
		if loc == nil {
			return input, false
		}
		expanded := r.re.ExpandString(nil, r.replacement, input, loc)
		output = input[:loc[0]] + string(expanded) + input[loc[1]:]
	}
	return output, output != input
}

// splitDelimited reads up to the next unescaped delim. Escapes are kept so
// the regexp package sees them.
func splitDelimited(s string, delim byte) (field string, rest string, err error) {
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == delim:
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", errors.New("unterminated expression")
}

func isDelimiter(c byte) bool {
	return c < utf8.RuneSelf && !isASCIIWord(rune(c)) && c != ' ' && c != '\t'
}

// isASCIIWord matches what \b treats as a word character.
func isASCIIWord(r rune) bool {
	return r == '_' || (r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}
