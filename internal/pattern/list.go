package pattern

import (
	"encoding/binary"
	"fmt"
	"regexp"

	"github.com/cespare/xxhash/v2"
)

// List is an immutable ordered sequence of tokens. Token indices must
// be the consecutive integers 0..N-1.
type List []Pattern

func (l List) Validate() error {
	for i, p := range l {
		if p.Index != i {
			return fmt.Errorf("pattern index %d at position %d; indices must be consecutive", p.Index, i)
		}
		switch p.Kind {
		case KindText, KindSpace, KindNewline:
		case KindRegex:
			if _, err := regexp.Compile(p.Text); err != nil {
				return fmt.Errorf("invalid regex pattern at index %d: %w", i, err)
			}
		default:
			return fmt.Errorf("unknown pattern kind %q at index %d", p.Kind, i)
		}
	}
	return nil
}

// ExpectedSeq returns the expected tokens in list order.
func (l List) ExpectedSeq() []Pattern {
	var seq []Pattern
	for _, p := range l {
		if p.Expected {
			seq = append(seq, p)
		}
	}
	return seq
}

// Run is a maximal contiguous range of forbidden tokens.
// PrecedingExpected is the number of expected tokens before the run;
// the match engine uses it to locate the run's search interval.
type Run struct {
	Patterns          []Pattern
	PrecedingExpected int
}

// ForbiddenRuns returns the maximal runs of forbidden tokens, each
// sandwiched between expected tokens or the list boundaries.
func (l List) ForbiddenRuns() []Run {
	var runs []Run
	expectedSeen := 0
	var cur []Pattern
	flush := func() {
		if len(cur) == 0 {
			return
		}
		runs = append(runs, Run{Patterns: cur, PrecedingExpected: expectedSeen})
		cur = nil
	}
	for _, p := range l {
		if p.Expected {
			flush()
			expectedSeen++
			continue
		}
		cur = append(cur, p)
	}
	flush()
	return runs
}

// Hash is a structural digest over every token's tag and fields. Lists
// that hash equal compile to the same regex.
func (l List) Hash() uint64 {
	h := xxhash.New()
	var buf [8]byte
	writeInt := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	writeBool := func(v bool) {
		if v {
			writeInt(1)
		} else {
			writeInt(0)
		}
	}
	writeStr := func(s string) {
		writeInt(uint64(len(s)))
		_, _ = h.WriteString(s)
	}
	writeInt(uint64(len(l)))
	for _, p := range l {
		writeStr(string(p.Kind))
		writeInt(uint64(p.Index))
		writeBool(p.Expected)
		writeStr(p.Text)
		writeBool(p.CollapseSpace)
		writeBool(p.WordBoundary)
	}
	return h.Sum64()
}
