package spec

import (
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokVersion   // @1.2:1.4
	tokCompiler  // %
	tokEnable    // +name
	tokDisable   // ~name or -name
	tokKeyValue  // key=value
	tokDep       // ^
	tokEdgeStart // ^[
	tokEdgeEnd   // ]
	tokHash      // /abc
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokName:
		return "name"
	case tokVersion:
		return "version"
	case tokCompiler:
		return "compiler"
	case tokEnable, tokDisable:
		return "variant"
	case tokKeyValue:
		return "key=value"
	case tokDep:
		return "'^'"
	case tokEdgeStart:
		return "'^['"
	case tokEdgeEnd:
		return "']'"
	case tokHash:
		return "hash"
	}
	return "token"
}

type token struct {
	kind   tokenKind
	text   string // name, version list, variant name, key or hash
	value  string // value for key=value tokens
	pos    int
	spaced bool // whitespace precedes the token
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool { return isIdentStart(c) || c == '-' }

func isNameChar(c byte) bool { return isIdentChar(c) || c == '.' }

func isVersionChar(c byte) bool { return isNameChar(c) || c == ':' || c == ',' || c == '=' }

func isValueChar(c byte) bool {
	return isNameChar(c) || strings.IndexByte("+*,:=~/\\", c) >= 0
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

type lexer struct {
	input string
	pos   int
}

// tokenize splits input into tokens, failing on the first character that
// cannot start a token.
func tokenize(input string) ([]token, error) {
	l := &lexer{input: input}
	var out []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.kind == tokEOF {
			return out, nil
		}
	}
}

func (l *lexer) errorf(pos int, msg string) error {
	return &ParseError{Input: l.input, Pos: pos, Message: msg}
}

func (l *lexer) span(start int, ok func(byte) bool) string {
	i := start
	for i < len(l.input) && ok(l.input[i]) {
		i++
	}
	l.pos = i
	return l.input[start:i]
}

func (l *lexer) next() (token, error) {
	start := l.pos
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	tok := token{pos: l.pos, spaced: l.pos > start || start == 0}
	if l.pos >= len(l.input) {
		tok.kind = tokEOF
		return tok, nil
	}
	c := l.input[l.pos]
	switch {
	case c == '^':
		l.pos++
		tok.kind = tokDep
		if l.pos < len(l.input) && l.input[l.pos] == '[' {
			l.pos++
			tok.kind = tokEdgeStart
		}
	case c == ']':
		l.pos++
		tok.kind = tokEdgeEnd
	case c == '@':
		tok.kind = tokVersion
		tok.text = l.span(l.pos+1, isVersionChar)
		if tok.text == "" {
			return tok, l.errorf(tok.pos, "expected version after '@'")
		}
	case c == '%':
		l.pos++
		tok.kind = tokCompiler
	case c == '+' || c == '~' || c == '-':
		tok.kind = tokEnable
		if c != '+' {
			tok.kind = tokDisable
		}
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == c {
			return tok, l.errorf(tok.pos, "variant propagation is not supported")
		}
		if l.pos+1 >= len(l.input) || !isIdentStart(l.input[l.pos+1]) {
			return tok, l.errorf(tok.pos+1, "expected variant name")
		}
		tok.text = l.span(l.pos+1, isIdentChar)
	case c == '/':
		tok.kind = tokHash
		tok.text = l.span(l.pos+1, func(b byte) bool { return isIdentStart(b) && b != '_' })
		if tok.text == "" {
			return tok, l.errorf(tok.pos, "expected hash after '/'")
		}
	case isIdentStart(c):
		name := l.span(l.pos, isNameChar)
		tok.kind = tokName
		tok.text = name
		if l.pos < len(l.input) && l.input[l.pos] == '=' {
			return l.keyValue(tok)
		}
	default:
		return tok, l.errorf(l.pos, "unexpected character "+quoteByte(c))
	}
	return tok, nil
}

func (l *lexer) keyValue(tok token) (token, error) {
	tok.kind = tokKeyValue
	if strings.ContainsRune(tok.text, '.') {
		return tok, l.errorf(tok.pos, "invalid key "+tok.text)
	}
	l.pos++ // '='
	if l.pos < len(l.input) && l.input[l.pos] == '=' {
		return tok, l.errorf(l.pos, "variant propagation is not supported")
	}
	if l.pos < len(l.input) && (l.input[l.pos] == '"' || l.input[l.pos] == '\'') {
		q := l.input[l.pos]
		end := strings.IndexByte(l.input[l.pos+1:], q)
		if end < 0 {
			return tok, l.errorf(l.pos, "unterminated quoted value")
		}
		tok.value = l.input[l.pos+1 : l.pos+1+end]
		l.pos += end + 2
		return tok, nil
	}
	tok.value = l.span(l.pos, isValueChar)
	if tok.value == "" {
		return tok, l.errorf(l.pos, "expected value after '"+tok.text+"='")
	}
	return tok, nil
}

func quoteByte(c byte) string {
	return "'" + string(c) + "'"
}
