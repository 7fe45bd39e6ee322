package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectTokens(t *testing.T, src string) []string {
	t.Helper()
	s := newScanner([]byte(src))
	var out []string
	for {
		tok, err := s.nextToken()
		require.NoError(t, err)
		if tok.eof {
			return out
		}
		out = append(out, tok.text)
	}
}

func TestScannerBasicTokens(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "+"}, collectTokens(t, "  1   2 +  "))
}

func TestScannerRejectsOversizeToken(t *testing.T) {
	s := newScanner([]byte(strings.Repeat("a", maxTokenLen+1)))
	_, err := s.nextToken()
	assert.Error(t, err)
}

func TestScannerAcceptsMaxLengthToken(t *testing.T) {
	s := newScanner([]byte(strings.Repeat("a", maxTokenLen)))
	tok, err := s.nextToken()
	require.NoError(t, err)
	assert.Len(t, tok.text, maxTokenLen)
}

func TestScannerRejectsNonPrintableByte(t *testing.T) {
	s := newScanner([]byte("ok\xffmore"))
	_, err := s.nextToken()
	assert.Error(t, err)
}

func TestScannerLineComment(t *testing.T) {
	s := newScanner([]byte("1 \\ rest of line ignored\n2"))
	tok1, err := s.nextToken()
	require.NoError(t, err)
	assert.Equal(t, "1", tok1.text)

	tok2, err := s.nextToken()
	require.NoError(t, err)
	assert.Equal(t, `\`, tok2.text)
	s.skipToEndOfLine()

	tok3, err := s.nextToken()
	require.NoError(t, err)
	assert.Equal(t, "2", tok3.text)
}

func TestScannerParenComment(t *testing.T) {
	s := newScanner([]byte("( this is a comment ) 5"))
	tok, err := s.nextToken()
	require.NoError(t, err)
	assert.Equal(t, "(", tok.text)
	require.NoError(t, s.skipToCloseParen())

	tok2, err := s.nextToken()
	require.NoError(t, err)
	assert.Equal(t, "5", tok2.text)
}

func TestScannerUnterminatedParenComment(t *testing.T) {
	s := newScanner([]byte("( never closed"))
	_, err := s.nextToken()
	require.NoError(t, err)
	err = s.skipToCloseParen()
	assert.Error(t, err)
}
