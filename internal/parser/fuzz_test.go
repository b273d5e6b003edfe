package parser

import (
	"testing"

	"github.com/nmxmxh/kvstored/internal/arena"
)

// FuzzParse exercises the "Parse safety" property from spec.md §8: for
// any byte string up to the configured max, Parse terminates, returns a
// value, and never reads past the line's bounds.
func FuzzParse(f *testing.F) {
	f.Add([]byte("PING"))
	f.Add([]byte("SET hello world"))
	f.Add([]byte(`SET k "unterminated`))
	f.Add([]byte("GET \x00\x01 weird\xffbytes"))
	f.Add([]byte(""))
	f.Add([]byte("   \t  "))

	f.Fuzz(func(t *testing.T, line []byte) {
		if len(line) > MaxLineLength {
			line = line[:MaxLineLength]
		}
		a := arena.New(len(line) + 64)
		cmd := Parse(line, a)
		if cmd == nil {
			t.Fatal("Parse must never return nil")
		}
		if cmd.Err == nil && cmd.ArgCount() > MaxArgs {
			t.Fatalf("well-formed command exceeded MaxArgs: %d", cmd.ArgCount())
		}
	})
}
