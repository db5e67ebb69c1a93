package lexer

import (
	"strings"
	"unicode/utf8"

	"ember/internal/token"
)

type Lexer struct {
	input string

	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination

	line int // 1-based
	col  int // 1-based column of current char
}

func New(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0, // readChar() will advance to col=1 for first char
	}
	l.readChar()
	return l
}

// Tokenize scans the whole input up front. The result always ends with a
// single EOF token, which makes random access and rewinding trivial.
func Tokenize(input string) []token.Token {
	l := New(input)
	toks := make([]token.Token, 0, len(input)/3+1)
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

// NextToken returns the next token and advances the cursor. Once EOF has
// been returned every further call returns EOF again.
func (l *Lexer) NextToken() token.Token {
	for {
		l.skipWhitespace()

		if l.ch == ';' {
			l.skipLineComment()
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.skipBlockComment()
			continue
		}

		break
	}

	if l.ch == 0 && l.position >= len(l.input) {
		return l.newToken(token.EOF, "", l.line, l.col)
	}

	startLine, startCol := l.line, l.col

	switch l.ch {
	case '(':
		return l.single(token.LPAREN, startLine, startCol)
	case ')':
		return l.single(token.RPAREN, startLine, startCol)
	case '{':
		return l.single(token.LBRACE, startLine, startCol)
	case '}':
		return l.single(token.RBRACE, startLine, startCol)
	case ',':
		return l.single(token.COMMA, startLine, startCol)
	case ':':
		return l.single(token.COLON, startLine, startCol)
	case '.':
		return l.single(token.DOT, startLine, startCol)
	case '+':
		return l.single(token.PLUS, startLine, startCol)
	case '-':
		return l.single(token.MINUS, startLine, startCol)
	case '*':
		return l.single(token.STAR, startLine, startCol)
	case '/':
		// block comments were handled above
		return l.single(token.SLASH, startLine, startCol)

	case '=':
		return l.either('=', token.EQ, token.ASSIGN, startLine, startCol)
	case '!':
		return l.either('=', token.NE, token.BANG, startLine, startCol)
	case '<':
		return l.either('=', token.LE, token.LT, startLine, startCol)
	case '>':
		return l.either('=', token.GE, token.GT, startLine, startCol)

	case '"', '\'':
		return l.readStringToken(startLine, startCol)
	}

	if isIdentStart(l.ch) {
		lit := l.readIdentifier()
		return l.newToken(token.LookupIdent(lit), lit, startLine, startCol)
	}

	if isDigit(l.ch) {
		return l.newToken(token.NUMBER, l.readNumber(), startLine, startCol)
	}

	_, size := utf8.DecodeRuneInString(l.input[l.position:])
	bad := l.input[l.position : l.position+size]
	for i := 0; i < size; i++ {
		l.readChar()
	}
	return l.errorToken("unexpected character '"+bad+"'", bad, startLine, startCol)
}

func (l *Lexer) errorToken(msg, lexeme string, line, col int) token.Token {
	tok := l.newToken(token.ERROR, msg, line, col)
	tok.Lexeme = lexeme
	return tok
}

func (l *Lexer) newToken(t token.Type, lit string, line, col int) token.Token {
	return token.Token{
		Type:    t,
		Literal: lit,
		Line:    line,
		Col:     col,
	}
}

func (l *Lexer) single(t token.Type, line, col int) token.Token {
	tok := l.newToken(t, string(t), line, col)
	l.readChar()
	return tok
}

// either emits two if the next char is next, otherwise one.
func (l *Lexer) either(next byte, two, one token.Type, line, col int) token.Token {
	if l.peekChar() == next {
		l.readChar()
		l.readChar()
		return l.newToken(two, string(two), line, col)
	}
	return l.single(one, line, col)
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = len(l.input)
		l.readPosition = len(l.input) + 1
		return
	}

	l.ch = l.input[l.readPosition]
	l.position = l.readPosition
	l.readPosition++

	// Track line/col for current char
	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) atEnd() bool {
	return l.position >= len(l.input)
}

func (l *Lexer) skipWhitespace() {
	for !l.atEnd() && (l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n') {
		l.readChar()
	}
}

func (l *Lexer) skipLineComment() {
	for !l.atEnd() && l.ch != '\n' {
		l.readChar()
	}
}

func (l *Lexer) skipBlockComment() {
	l.readChar() // consume '/'
	l.readChar() // consume '*'

	for !l.atEnd() {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar() // consume '*'
			l.readChar() // consume '/'
			return
		}
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for !l.atEnd() && isIdentPart(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber() string {
	start := l.position
	for !l.atEnd() && isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for !l.atEnd() && isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.position]
}

func (l *Lexer) readStringToken(startLine, startCol int) token.Token {
	start := l.position
	quote := l.ch
	l.readChar() // move past opening quote

	var b strings.Builder
	for {
		if l.atEnd() {
			lexeme := l.input[start:]
			if nl := strings.IndexByte(lexeme, '\n'); nl >= 0 {
				lexeme = lexeme[:nl]
			}
			return l.errorToken("unterminated string", lexeme, startLine, startCol)
		}
		if l.ch == quote {
			break
		}

		if l.ch == '\\' {
			switch l.peekChar() {
			case '"', '\'', '\\':
				l.readChar()
				b.WriteByte(l.ch)
				l.readChar()
				continue
			case 'n':
				l.readChar()
				b.WriteByte('\n')
				l.readChar()
				continue
			case 't':
				l.readChar()
				b.WriteByte('\t')
				l.readChar()
				continue
			}
			// unknown escape: keep the backslash literally
		}

		b.WriteByte(l.ch)
		l.readChar()
	}

	l.readChar() // consume closing quote
	return l.newToken(token.STRING, b.String(), startLine, startCol)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
