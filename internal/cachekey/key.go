// Package cachekey implements the cache key policy: deterministic key
// derivation from operation identity plus arguments, and the registry
// mapping write operations to the invalidation patterns they trigger.
//
// Keys are explicit. Callers name the operation and its arguments; no
// key is ever inferred from a call site.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Key is a canonical cache key. The charset is restricted to characters
// accepted by every backing store (letters, digits, '.', '_', '-', '='),
// with '.' separating segments.
type Key string

func (k Key) String() string { return string(k) }

// Arg is one named operation argument.
type Arg struct {
	Name  string
	Value string
}

// Int is a convenience constructor for integer-valued arguments.
func Int(name string, v int64) Arg {
	return Arg{Name: name, Value: fmt.Sprintf("%d", v)}
}

// Str is a convenience constructor for string-valued arguments.
func Str(name, v string) Arg {
	return Arg{Name: name, Value: v}
}

// Derive builds the canonical key for an operation invocation.
// It is a pure function: identical inputs always produce an identical
// key. Arguments are positional — call sites for one operation must pass
// them in the operation's declared order, with optional arguments last,
// so that Prefix patterns cover every parameterized variant. Distinct
// operations never collide because the operation name is the first
// segment and names cannot contain the separator.
func Derive(op string, args ...Arg) Key {
	var b strings.Builder
	b.WriteString(sanitize(op))

	for _, a := range args {
		b.WriteByte('.')
		b.WriteString(sanitize(a.Name))
		b.WriteByte('=')
		b.WriteString(sanitize(a.Value))
	}
	return Key(b.String())
}

// Prefix returns the pattern matching every key derived from op with the
// given leading args, regardless of any further arguments. The trailing
// separator prevents "id=7" from matching "id=70".
func Prefix(op string, args ...Arg) Pattern {
	return Pattern{Key: Derive(op, args...), IsPrefix: true}
}

// Exact returns the pattern matching exactly one derived key.
func Exact(op string, args ...Arg) Pattern {
	return Pattern{Key: Derive(op, args...)}
}

// Pattern is an invalidation target: an exact key, or a key prefix
// purging that key and every parameterized variant beneath it.
type Pattern struct {
	Key      Key
	IsPrefix bool
}

func (p Pattern) String() string {
	if p.IsPrefix {
		return string(p.Key) + ".*"
	}
	return string(p.Key)
}

// isSafe reports whether r may appear unescaped in a key segment.
func isSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

// sanitize passes store-safe values through unchanged and replaces
// anything else with a truncated SHA-256 digest. The digest keeps
// derivation deterministic and collision-free with overwhelming
// probability while staying within the key charset.
func sanitize(v string) string {
	for _, r := range v {
		if !isSafe(r) {
			sum := sha256.Sum256([]byte(v))
			return "x" + hex.EncodeToString(sum[:8])
		}
	}
	if v == "" {
		return "x"
	}
	return v
}
