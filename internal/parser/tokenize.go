package parser

import "errors"

// ErrUnclosedQuote is returned by scanTokens when a quoted token never
// finds its closing quote, per spec.md §4.D's state machine
// (IN_QUOTE -> (eof) FAIL(Unclosed quote)).
var ErrUnclosedQuote = errors.New("unclosed quote")

func isSpaceOrTab(b byte) bool { return b == ' ' || b == '\t' }

// scanTokens splits line into raw token byte ranges following the
// SKIP_WS/IN_BARE/IN_QUOTE machine from spec.md §4.D. Quoted tokens have
// their surrounding quotes stripped and backslash escapes collapsed by
// shifting bytes left within the same backing array, so no token ever
// requires a separate allocation. Scanning stops early once maxTokens
// tokens have been collected (Parse passes 1+MaxArgs: the opcode token
// plus the global argument cap).
func scanTokens(line []byte, maxTokens int) ([][]byte, error) {
	tokens := make([][]byte, 0, 8)
	i := 0
	n := len(line)

	for {
		// SKIP_WS
		for i < n && isSpaceOrTab(line[i]) {
			i++
		}
		if i >= n {
			return tokens, nil
		}

		var tok []byte
		if line[i] == '"' || line[i] == '\'' {
			quoteCh := line[i]
			i++
			start := i
			write := start
			for {
				if i >= n {
					return nil, ErrUnclosedQuote
				}
				c := line[i]
				if c == quoteCh {
					i++
					break
				}
				if c == '\\' && i+1 < n {
					i++
					c = line[i]
				}
				line[write] = c
				write++
				i++
			}
			tok = line[start:write]
		} else {
			start := i
			for i < n && !isSpaceOrTab(line[i]) {
				i++
			}
			tok = line[start:i]
		}

		tokens = append(tokens, tok)
		if len(tokens) >= maxTokens {
			return tokens, nil
		}
	}
}
