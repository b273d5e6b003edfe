package parser

import (
	"testing"

	"github.com/nmxmxh/kvstored/internal/arena"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseLine(t *testing.T, s string) (*ParsedCommand, *arena.Arena) {
	t.Helper()
	a := arena.New(4096)
	buf := []byte(s)
	return Parse(buf, a), a
}

func TestParsePingNoArgs(t *testing.T) {
	cmd, _ := parseLine(t, "PING")
	require.Nil(t, cmd.Err)
	assert.Equal(t, OpPing, cmd.Opcode)
	assert.Equal(t, 0, cmd.ArgCount())
}

func TestParseLowercaseOpcode(t *testing.T) {
	cmd, _ := parseLine(t, "ping")
	require.Nil(t, cmd.Err)
	assert.Equal(t, OpPing, cmd.Opcode)
}

func TestParseSetRoundTrip(t *testing.T) {
	cmd, a := parseLine(t, "SET hello world")
	require.Nil(t, cmd.Err)
	assert.Equal(t, OpSet, cmd.Opcode)
	require.True(t, cmd.HasKey)
	assert.Equal(t, "hello", cmd.Key.String(a))
	assert.Equal(t, "world", cmd.Args[1].String(a))
}

func TestParseQuotedArgumentWithEscape(t *testing.T) {
	cmd, a := parseLine(t, `SET k "a \"quoted\" value"`)
	require.Nil(t, cmd.Err)
	assert.Equal(t, `a "quoted" value`, cmd.Args[1].String(a))
}

func TestParseUnclosedQuote(t *testing.T) {
	cmd, _ := parseLine(t, `SET k "unterminated`)
	require.NotNil(t, cmd.Err)
}

func TestParseUnknownCommand(t *testing.T) {
	cmd, _ := parseLine(t, "FOO bar")
	require.NotNil(t, cmd.Err)
	assert.Equal(t, "Unknown command", cmd.Err.Message)
}

func TestParseTooFewArguments(t *testing.T) {
	cmd, _ := parseLine(t, "SET onlykey")
	require.NotNil(t, cmd.Err)
}

func TestParseTooManyArguments(t *testing.T) {
	cmd, _ := parseLine(t, "GET a b")
	require.NotNil(t, cmd.Err)
}

func TestParseIncrByNumericPreparse(t *testing.T) {
	cmd, _ := parseLine(t, "INCRBY counter 5")
	require.Nil(t, cmd.Err)
	assert.True(t, cmd.HasIntArg)
	assert.Equal(t, int64(5), cmd.IntArg)
}

func TestParseIncrByInvalidInteger(t *testing.T) {
	cmd, _ := parseLine(t, "INCRBY counter notanumber")
	require.NotNil(t, cmd.Err)
	assert.Equal(t, "Invalid integer", cmd.Err.Message)
}

func TestParseVariadicLPush(t *testing.T) {
	cmd, _ := parseLine(t, "LPUSH q a b c")
	require.Nil(t, cmd.Err)
	assert.Equal(t, 4, cmd.ArgCount())
}

func TestParseEmptyLine(t *testing.T) {
	cmd, _ := parseLine(t, "")
	require.NotNil(t, cmd.Err)
}

