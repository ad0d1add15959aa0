package match

import (
	"regexp"

	"github.com/puzpuzpuz/xsync/v3"
)

// Compiled expressions are memoized process-wide. Pattern lists are
// immutable and the set of distinct expressions is small (one per
// test-case file plus forbidden runs), so the cache is never evicted.
// The expression string already encodes flags and token structure,
// which makes it a sound cache key.
var compiled = xsync.NewMapOf[string, *regexp.Regexp]()

func compileCached(expr string) (*regexp.Regexp, error) {
	if re, ok := compiled.Load(expr); ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	actual, _ := compiled.LoadOrStore(expr, re)
	return actual, nil
}
