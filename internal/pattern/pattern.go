// Package pattern models the expected-output description of a test
// case: an ordered list of typed tokens, each of which knows how to
// emit a regular-expression fragment.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

type Kind string

const (
	KindText    Kind = "text"
	KindRegex   Kind = "regex"
	KindSpace   Kind = "space"
	KindNewline Kind = "newline"
)

// Pattern is a single matching token. It is a tagged variant: Kind
// selects which of the remaining fields are meaningful.
type Pattern struct {
	Index    int  `json:"index" toml:"index"`
	Expected bool `json:"expected" toml:"expected"`
	Kind     Kind `json:"kind" toml:"kind"`

	// Text carries the literal for KindText and the raw expression for
	// KindRegex.
	Text          string `json:"text,omitempty" toml:"text,omitempty"`
	CollapseSpace bool   `json:"collapse_space,omitempty" toml:"collapse_space,omitempty"`
	WordBoundary  bool   `json:"word_boundary,omitempty" toml:"word_boundary,omitempty"`
}

func NewText(index int, expected bool, text string, collapseSpace, wordBoundary bool) Pattern {
	return Pattern{
		Index:         index,
		Expected:      expected,
		Kind:          KindText,
		Text:          text,
		CollapseSpace: collapseSpace,
		WordBoundary:  wordBoundary,
	}
}

// NewRegex validates the expression at construction time so that the
// match engine stays total over well-formed lists.
func NewRegex(index int, expected bool, expr string) (Pattern, error) {
	if _, err := regexp.Compile(expr); err != nil {
		return Pattern{}, fmt.Errorf("invalid regex pattern at index %d: %w", index, err)
	}
	return Pattern{Index: index, Expected: expected, Kind: KindRegex, Text: expr}, nil
}

func NewSpace(index int, expected bool) Pattern {
	return Pattern{Index: index, Expected: expected, Kind: KindSpace}
}

func NewNewline(index int, expected bool) Pattern {
	return Pattern{Index: index, Expected: expected, Kind: KindNewline}
}

// Fragment emits the regex fragment for this token alone. Group
// wrapping is the caller's job.
func (p Pattern) Fragment() string {
	var frag string
	switch p.Kind {
	case KindText:
		if p.CollapseSpace {
			frag = collapseSpaceFragment(p.Text)
		} else {
			frag = regexp.QuoteMeta(p.Text)
		}
		if p.WordBoundary {
			frag = `\b` + frag + `\b`
		}
	case KindRegex:
		frag = p.Text
	case KindSpace:
		frag = `\s+`
	case KindNewline:
		frag = `\n`
	}
	return frag
}

// collapseSpaceFragment splits the literal into whitespace and
// non-whitespace runs; whitespace runs match any whitespace run of
// length >= 1 in the input.
func collapseSpaceFragment(text string) string {
	var b strings.Builder
	var run strings.Builder
	inSpace := false
	flush := func() {
		if run.Len() == 0 {
			return
		}
		if inSpace {
			b.WriteString(`\s+`)
		} else {
			b.WriteString(regexp.QuoteMeta(run.String()))
		}
		run.Reset()
	}
	for _, r := range text {
		isSpace := unicode.IsSpace(r)
		if run.Len() > 0 && isSpace != inSpace {
			flush()
		}
		inSpace = isSpace
		run.WriteRune(r)
	}
	flush()
	return b.String()
}

func (p Pattern) String() string {
	polarity := "expected"
	if !p.Expected {
		polarity = "forbidden"
	}
	switch p.Kind {
	case KindText, KindRegex:
		return fmt.Sprintf("%s[%d] %s %q", p.Kind, p.Index, polarity, p.Text)
	default:
		return fmt.Sprintf("%s[%d] %s", p.Kind, p.Index, polarity)
	}
}
