package token

type Type string

// Token is a view into the scanned source. Literal is the exact lexeme
// except for STRING, where it is the text between the quotes, and ERROR,
// where it carries the scanner's message. Lexeme is only set on ERROR
// tokens and holds the source text that could not be scanned.
type Token struct {
	Type    Type
	Literal string
	Lexeme  string
	Line    int
	Col     int
}

const (
	// Special
	ERROR Type = "ERROR"
	EOF   Type = "EOF"

	// Identifiers + literals
	IDENT  Type = "IDENT"
	NUMBER Type = "NUMBER"
	STRING Type = "STRING"

	// Keywords
	TRUE   Type = "TRUE"
	FALSE  Type = "FALSE"
	AND    Type = "AND"
	OR     Type = "OR"
	IF     Type = "IF"
	ELSE   Type = "ELSE"
	WHILE  Type = "WHILE"
	FOR    Type = "FOR"
	FN     Type = "FN"
	MUT    Type = "MUT"
	RETURN Type = "RETURN"
	PRINT  Type = "PRINT"

	// Operators
	ASSIGN Type = "="
	PLUS   Type = "+"
	MINUS  Type = "-"
	STAR   Type = "*"
	SLASH  Type = "/"
	BANG   Type = "!"

	EQ Type = "=="
	NE Type = "!="
	LT Type = "<"
	LE Type = "<="
	GT Type = ">"
	GE Type = ">="

	// Delimiters
	COMMA  Type = ","
	COLON  Type = ":"
	DOT    Type = "."
	LPAREN Type = "("
	RPAREN Type = ")"
	LBRACE Type = "{"
	RBRACE Type = "}"
)

var keywords = map[string]Type{
	"true":   TRUE,
	"false":  FALSE,
	"and":    AND,
	"or":     OR,
	"if":     IF,
	"else":   ELSE,
	"while":  WHILE,
	"for":    FOR,
	"fn":     FN,
	"mut":    MUT,
	"return": RETURN,
	"print":  PRINT,
}

func LookupIdent(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Keywords returns the reserved words in no particular order.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	return out
}

// IsKeyword reports whether t is one of the reserved-word token types.
func IsKeyword(t Type) bool {
	for _, k := range keywords {
		if k == t {
			return true
		}
	}
	return false
}
