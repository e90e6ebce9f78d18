// Package rules rewrites final transcripts with user substitutions before
// they are inserted into the document.
package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// DefaultPassLimit bounds how many full passes Apply makes over the rules.
const DefaultPassLimit = 30

// Rule is one compiled substitution.
type Rule interface {
	Apply(input string) (output string, changed bool)
}

// Engine holds the rules loaded from one file. Reload swaps the rule set
// atomically, so Apply can run concurrently with the watcher.
type Engine struct {
	path      string
	parsers   []RuleParser
	passLimit int

	mu    sync.RWMutex
	rules []Rule
}

// NewEngine loads rules from path with the built-in line formats. An empty
// path gives an engine that passes text through.
func NewEngine(path string, passLimit int) (*Engine, error) {
	return NewEngineWithParsers(path, passLimit, defaultRuleParsers())
}

// NewEngineWithParsers loads rules with a custom set of line formats, tried
// in order.
func NewEngineWithParsers(path string, passLimit int, parsers []RuleParser) (*Engine, error) {
	if passLimit <= 0 {
		passLimit = DefaultPassLimit
	}
	if len(parsers) == 0 {
		parsers = defaultRuleParsers()
	}

	e := &Engine{path: strings.TrimSpace(path), parsers: parsers, passLimit: passLimit}
	if err := e.Reload(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) Path() string {
	return e.path
}

// Reload re-reads the rules file. A missing file clears the rules; a file
// that fails to parse leaves the previous rules in place.
func (e *Engine) Reload() error {
	if e.path == "" {
		return nil
	}

	contents, err := os.ReadFile(e.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		e.swap(nil)
		return nil
	case err != nil:
		return fmt.Errorf("failed to read rules file %q: %w", e.path, err)
	}

	rules, err := parseRules(string(contents), e.parsers)
	if err != nil {
		return fmt.Errorf("failed to parse rules file %q: %w", e.path, err)
	}
	e.swap(rules)
	return nil
}

// Len returns the number of loaded rules.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

func (e *Engine) swap(rules []Rule) {
	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()
}

// Apply runs every rule in file order, repeating whole passes until a pass
// changes nothing or the pass limit is reached. Cyclic rule sets stop at the
// limit with whatever the last pass produced.
func (e *Engine) Apply(text string) (string, error) {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	for pass := 0; pass < e.passLimit && len(rules) > 0; pass++ {
		dirty := false
		for _, rule := range rules {
			if next, changed := rule.Apply(text); changed {
				text = next
				dirty = true
			}
		}
		if !dirty {
			break
		}
	}
	return text, nil
}
