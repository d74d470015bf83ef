package filter

import (
	"regexp"

	"github.com/puzpuzpuz/xsync/v3"
)

const maxCachedPatterns = 1024

// regexCache memoizes compiled patterns. Patterns that fail to compile are
// cached as nil so they are not recompiled on every evaluation.
type regexCache struct {
	patterns *xsync.MapOf[string, *regexp.Regexp]
}

func newRegexCache() *regexCache {
	return &regexCache{patterns: xsync.NewMapOf[string, *regexp.Regexp]()}
}

func (c *regexCache) get(pattern string) *regexp.Regexp {
	if re, ok := c.patterns.Load(pattern); ok {
		return re
	}

	if c.patterns.Size() >= maxCachedPatterns {
		c.patterns.Clear()
	}

	re, _ := c.patterns.LoadOrCompute(pattern, func() *regexp.Regexp {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil
		}
		return compiled
	})
	return re
}
