package pool

import (
	"net/url"
	"strings"
)

const (
	motherDuckPrefix    = "md:"
	motherDuckURIScheme = "motherduck://"
	motherDuckTokenKey  = "motherduck_token"
)

// IsMotherDuckDSN reports whether dsn targets MotherDuck, either as an md:
// database or a motherduck:// URI.
func IsMotherDuckDSN(dsn string) bool {
	return strings.HasPrefix(dsn, motherDuckPrefix) || strings.HasPrefix(dsn, motherDuckURIScheme)
}

// ResolveDSN rewrites motherduck:// URIs to the md: form DuckDB understands
// and sets motherduck_token when one is given and the DSN lacks it. Local
// paths and :memory: pass through unchanged.
func ResolveDSN(dsn, motherDuckToken string) string {
	if !IsMotherDuckDSN(dsn) {
		return dsn
	}
	if rest, ok := strings.CutPrefix(dsn, motherDuckURIScheme); ok {
		dsn = motherDuckPrefix + rest
	}
	if motherDuckToken == "" {
		return dsn
	}

	base, rawQuery, _ := strings.Cut(dsn, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil || q.Get(motherDuckTokenKey) != "" {
		return dsn
	}
	q.Set(motherDuckTokenKey, motherDuckToken)
	return base + "?" + q.Encode()
}
