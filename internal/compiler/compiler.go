package compiler

import (
	"strconv"

	"ember/internal/code"
	"ember/internal/lexer"
	"ember/internal/object"
	"ember/internal/token"
)

const (
	maxLocals = 256
	maxArgs   = 255
	endLexeme = "<end>"
)

type Precedence int

const (
	precNone Precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   Precedence
}

var rules map[token.Type]parseRule

func init() {
	rules = map[token.Type]parseRule{
		token.LPAREN: {(*Compiler).grouping, (*Compiler).call, precCall},
		token.LBRACE: {(*Compiler).mapLiteral, nil, precNone},
		token.DOT:    {nil, (*Compiler).dot, precCall},
		token.MINUS:  {(*Compiler).unary, (*Compiler).binary, precTerm},
		token.PLUS:   {nil, (*Compiler).binary, precTerm},
		token.SLASH:  {nil, (*Compiler).binary, precFactor},
		token.STAR:   {nil, (*Compiler).binary, precFactor},
		token.BANG:   {(*Compiler).unary, nil, precNone},
		token.NE:     {nil, (*Compiler).binary, precEquality},
		token.EQ:     {nil, (*Compiler).binary, precEquality},
		token.GT:     {nil, (*Compiler).binary, precComparison},
		token.GE:     {nil, (*Compiler).binary, precComparison},
		token.LT:     {nil, (*Compiler).binary, precComparison},
		token.LE:     {nil, (*Compiler).binary, precComparison},
		token.IDENT:  {(*Compiler).variable, nil, precNone},
		token.STRING: {(*Compiler).str, nil, precNone},
		token.NUMBER: {(*Compiler).number, nil, precNone},
		token.AND:    {nil, (*Compiler).and, precAnd},
		token.OR:     {nil, (*Compiler).or, precOr},
		token.TRUE:   {(*Compiler).literal, nil, precNone},
		token.FALSE:  {(*Compiler).literal, nil, precNone},
	}
}

type funcKind int

const (
	kindScript funcKind = iota
	kindFunction
)

type local struct {
	name  token.Token
	depth int // -1 while the initializer is being compiled
}

type EmittedInstruction struct {
	Opcode   code.Opcode
	Position int
}

// funcState is the compiler record of one function under construction.
// The chain through enclosing mirrors lexical nesting.
type funcState struct {
	enclosing  *funcState
	fn         *object.Function
	kind       funcKind
	locals     []local
	scopeDepth int
	names      map[string]int // identifier constants already in the pool

	emitted    []EmittedInstruction
	lastTarget int // highest offset any forward jump lands on
}

type cursor struct {
	pos      int
	previous token.Token
	current  token.Token
}

type Compiler struct {
	toks     []token.Token
	pos      int
	previous token.Token
	current  token.Token

	fs       *funcState
	interner *object.Interner

	errors    ErrorList
	panicMode bool

	// preview suppresses every side effect of parsing so an expression can
	// be scanned speculatively and then re-parsed from a saved mark.
	preview  bool
	assigned bool
}

type Option func(*Compiler)

// WithInterner shares an intern table between compilations and VMs.
func WithInterner(in *object.Interner) Option {
	return func(c *Compiler) {
		if in != nil {
			c.interner = in
		}
	}
}

func New(source string, opts ...Option) *Compiler {
	c := &Compiler{
		toks:     lexer.Tokenize(source),
		pos:      -1,
		interner: object.NewInterner(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fs = c.newFuncState(kindScript, nil, 0)
	return c
}

// Compile translates source into a top-level function. It never returns a
// partially compiled function: any recorded error yields an ErrorList.
func Compile(source string, opts ...Option) (*object.Function, error) {
	return New(source, opts...).Compile()
}

func (c *Compiler) Compile() (*object.Function, error) {
	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	fn := c.endFunction()
	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return fn, nil
}

func (c *Compiler) Interner() *object.Interner { return c.interner }

func (c *Compiler) newFuncState(kind funcKind, name *object.StringObject, arity int) *funcState {
	return &funcState{
		enclosing: c.fs,
		fn:        object.NewFunction(name, arity),
		kind:      kind,
		locals:    make([]local, 0, maxLocals),
		names:     map[string]int{},
	}
}

func (c *Compiler) chunk() *object.Chunk { return c.fs.fn.Chunk }

// ---- token cursor ----

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		if c.pos < len(c.toks)-1 {
			c.pos++
		}
		c.current = c.toks[c.pos]
		if c.current.Type != token.ERROR {
			return
		}
		c.errorAtCurrent(c.current.Literal)
	}
}

func (c *Compiler) check(t token.Type) bool { return c.current.Type == t }

func (c *Compiler) match(t token.Type) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t token.Type, msg string) {
	if c.check(t) {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) peekNext() token.Token {
	if c.pos+1 < len(c.toks) {
		return c.toks[c.pos+1]
	}
	return c.toks[len(c.toks)-1]
}

func (c *Compiler) mark() cursor {
	return cursor{pos: c.pos, previous: c.previous, current: c.current}
}

func (c *Compiler) rewind(m cursor) {
	c.pos = m.pos
	c.previous = m.previous
	c.current = m.current
}

// ---- errors ----

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }

func (c *Compiler) error(msg string) { c.errorAt(c.previous, msg) }

func (c *Compiler) errorAt(tok token.Token, msg string) {
	if c.preview || c.panicMode {
		return
	}
	c.panicMode = true
	c.report(tok, msg)
}

func (c *Compiler) report(tok token.Token, msg string) {
	e := &Error{Line: tok.Line, Col: tok.Col, Message: msg}
	switch tok.Type {
	case token.EOF:
		e.Lexeme = endLexeme
	case token.ERROR:
		e.Lexeme = tok.Lexeme
	default:
		e.Lexeme = tok.Literal
	}
	c.errors = append(c.errors, e)
}

func (c *Compiler) synchronize() {
	c.panicMode = false
	for !c.check(token.EOF) {
		switch c.current.Type {
		case token.FN, token.MUT, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.advance()
	}
}

// ---- emission ----

func (c *Compiler) emit(op code.Opcode, operands ...int) int {
	if c.preview {
		return -1
	}
	pos := c.chunk().WriteInstruction(code.Make(op, operands...), c.previous.Line)
	c.fs.emitted = append(c.fs.emitted, EmittedInstruction{Opcode: op, Position: pos})
	return pos
}

func (c *Compiler) emitConstant(v object.Value) {
	if c.preview {
		return
	}
	idx := c.chunk().AddConstant(v)
	pos, err := c.chunk().WriteConstantLoad(idx, c.previous.Line)
	if err != nil {
		c.error(err.Error())
		return
	}
	op := code.OpConstant
	if idx > code.MaxUint8 {
		op = code.OpConstantLong
	}
	c.fs.emitted = append(c.fs.emitted, EmittedInstruction{Opcode: op, Position: pos})
}

func (c *Compiler) stringConstant(text string) {
	if c.preview {
		return
	}
	c.emitConstant(object.FromObject(c.interner.Intern(text)))
}

// emitJump writes op with a placeholder offset and returns the offset of
// the operand for patchJump.
func (c *Compiler) emitJump(op code.Opcode) int {
	pos := c.emit(op, code.MaxUint16)
	if pos < 0 {
		return -1
	}
	return pos + 1
}

func (c *Compiler) patchJump(operand int) {
	if operand < 0 {
		return
	}
	ch := c.chunk()
	jump := ch.Len() - operand - 2
	if jump > code.MaxUint16 {
		c.error("too much code to jump over")
		return
	}
	ch.Code[operand] = byte(jump >> 8)
	ch.Code[operand+1] = byte(jump)
	if ch.Len() > c.fs.lastTarget {
		c.fs.lastTarget = ch.Len()
	}
}

func (c *Compiler) emitLoop(start int) {
	if c.preview {
		return
	}
	offset := c.chunk().Len() - start + code.OpLoop.Width()
	if offset > code.MaxUint16 {
		c.error("loop body too large")
		return
	}
	c.emit(code.OpLoop, offset)
}

func (c *Compiler) identifierConstant(name string) int {
	if c.preview {
		return 0
	}
	if idx, ok := c.fs.names[name]; ok {
		return idx
	}
	idx := c.chunk().AddConstant(object.FromObject(c.interner.Intern(name)))
	if idx > code.MaxUint24 {
		c.error("too many constants in one chunk")
		return 0
	}
	c.fs.names[name] = idx
	return idx
}

func (c *Compiler) endFunction() *object.Function {
	c.emit(code.OpFalse)
	c.emit(code.OpReturn)
	fn := c.fs.fn
	c.fs = c.fs.enclosing
	return fn
}

// ---- scopes ----

func (c *Compiler) beginScope() { c.fs.scopeDepth++ }

// endScope pops every local declared in the closing block, newest first.
func (c *Compiler) endScope() {
	fs := c.fs
	fs.scopeDepth--
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		c.emit(code.OpPopLocal)
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
}

func (c *Compiler) declareLocal(name token.Token) {
	fs := c.fs
	for i := len(fs.locals) - 1; i >= 0; i-- {
		l := fs.locals[i]
		if l.depth != -1 && l.depth < fs.scopeDepth {
			break
		}
		if l.name.Literal == name.Literal {
			c.error("already a variable with this name in this scope")
		}
	}
	if len(fs.locals) == maxLocals {
		c.error("too many local variables in function")
		return
	}
	fs.locals = append(fs.locals, local{name: name, depth: -1})
}

func (c *Compiler) markInitialized() {
	fs := c.fs
	if len(fs.locals) == 0 {
		return
	}
	fs.locals[len(fs.locals)-1].depth = fs.scopeDepth
}

// resolveLocal looks only at the current function; there are no closures.
func (c *Compiler) resolveLocal(name token.Token) (int, bool) {
	fs := c.fs
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name.Literal == name.Literal {
			if fs.locals[i].depth == -1 {
				c.error("can't read local variable in its own initializer")
			}
			return i, true
		}
	}
	return -1, false
}

func (c *Compiler) atTopLevel() bool {
	return c.fs.kind == kindScript && c.fs.scopeDepth == 0
}

// ---- declarations and statements ----

func (c *Compiler) declaration() {
	switch {
	case c.match(token.FN):
		c.fnDeclaration()
	case c.match(token.MUT):
		c.mutDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) fnDeclaration() {
	fnTok := c.previous
	c.consume(token.IDENT, "expected function name")
	name := c.previous

	if !c.atTopLevel() {
		// Still parse the body so recovery resumes after it.
		c.function(name)
		c.report(fnTok, "functions may only be declared at the top level")
		return
	}

	global := c.identifierConstant(name.Literal)
	fn := c.function(name)
	if fn == nil {
		return
	}
	c.emitConstant(object.FromFunction(fn))
	c.emit(code.OpDefineGlobal, global)
}

func (c *Compiler) function(name token.Token) *object.Function {
	c.fs = c.newFuncState(kindFunction, c.interner.Intern(name.Literal), 0)
	c.beginScope()

	c.consume(token.LPAREN, "expected '(' after function name")
	if !c.check(token.RPAREN) {
		for {
			c.fs.fn.Arity++
			if c.fs.fn.Arity > maxArgs {
				c.errorAtCurrent("can't have more than 255 parameters")
			}
			c.consume(token.IDENT, "expected parameter name")
			c.declareLocal(c.previous)
			c.markInitialized()
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "expected ')' after parameters")
	c.consume(token.LBRACE, "expected '{' before function body")
	c.block()

	return c.endFunction()
}

func (c *Compiler) mutDeclaration() {
	c.consume(token.IDENT, "expected variable name")
	name := c.previous

	global := -1
	if c.fs.scopeDepth > 0 {
		c.declareLocal(name)
	} else {
		global = c.identifierConstant(name.Literal)
	}

	if c.match(token.ASSIGN) {
		c.expression()
		c.emit(code.OpRetain)
	} else {
		c.emit(code.OpFalse)
	}

	if global < 0 {
		c.markInitialized()
		return
	}
	c.emit(code.OpDefineGlobal, global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.expression()
		c.emit(code.OpPrint)
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.effectStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "expected '}' after block")
}

// effectStatement is either an assignment or an expression statement. The
// two share a prefix of arbitrary length, so the expression is first
// scanned in preview mode; the token after it decides how to re-parse.
func (c *Compiler) effectStatement() {
	start := c.mark()
	c.preview = true
	c.expression()
	isAssignment := c.check(token.ASSIGN)
	c.preview = false
	c.rewind(start)

	if isAssignment {
		c.assignment()
		return
	}
	c.expression()
	c.emit(code.OpPop)
}

func (c *Compiler) assignment() {
	c.assigned = false
	c.parsePrecedence(precAssignment)
	if !c.assigned {
		c.errorAtCurrent("invalid assignment target")
	}
	c.assigned = false
}

func (c *Compiler) ifStatement() {
	c.consume(token.LPAREN, "expected '(' after 'if'")
	c.expression()
	c.consume(token.RPAREN, "expected ')' after condition")

	thenJump := c.emitJump(code.OpJumpIfFalse)
	c.emit(code.OpPop)
	c.statement()

	elseJump := c.emitJump(code.OpJump)
	c.patchJump(thenJump)
	c.emit(code.OpPop)

	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := c.chunk().Len()
	c.consume(token.LPAREN, "expected '(' after 'while'")
	c.expression()
	c.consume(token.RPAREN, "expected ')' after condition")

	exitJump := c.emitJump(code.OpJumpIfFalse)
	c.emit(code.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emit(code.OpPop)
}

// forStatement compiles for (init, cond, step) body. Every clause may be
// empty.
func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LPAREN, "expected '(' after 'for'")

	switch {
	case c.match(token.COMMA):
	case c.match(token.MUT):
		c.mutDeclaration()
		c.consume(token.COMMA, "expected ',' after loop initializer")
	default:
		c.effectStatement()
		c.consume(token.COMMA, "expected ',' after loop initializer")
	}

	loopStart := c.chunk().Len()
	exitJump, hasExit := -1, false
	if !c.match(token.COMMA) {
		c.expression()
		c.consume(token.COMMA, "expected ',' after loop condition")
		exitJump, hasExit = c.emitJump(code.OpJumpIfFalse), true
		c.emit(code.OpPop)
	}

	if !c.match(token.RPAREN) {
		bodyJump := c.emitJump(code.OpJump)
		stepStart := c.chunk().Len()
		c.effectStatement()
		c.consume(token.RPAREN, "expected ')' after for clauses")
		c.emitLoop(loopStart)
		loopStart = stepStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if hasExit {
		c.patchJump(exitJump)
		c.emit(code.OpPop)
	}
	c.endScope()
}

func (c *Compiler) returnStatement() {
	if c.canStartExpression() {
		c.expression()
	} else {
		c.emit(code.OpFalse)
	}
	c.emit(code.OpReturn)
}

func (c *Compiler) canStartExpression() bool {
	r, ok := rules[c.current.Type]
	return ok && r.prefix != nil
}

// ---- expressions ----

func (c *Compiler) expression() {
	c.parsePrecedence(precOr)
}

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := rules[c.previous.Type].prefix
	if prefix == nil {
		c.error("expected expression")
		return
	}
	canAssign := prec <= precAssignment
	prefix(c, canAssign)

	for prec <= rules[c.current.Type].prec {
		c.advance()
		rules[c.previous.Type].infix(c, canAssign)
	}
}

func (c *Compiler) number(bool) {
	n, err := strconv.ParseFloat(c.previous.Literal, 64)
	if err != nil {
		c.error("invalid number literal")
		return
	}
	c.emitConstant(object.Number(n))
}

func (c *Compiler) str(bool) {
	c.stringConstant(c.previous.Literal)
}

func (c *Compiler) literal(bool) {
	switch c.previous.Type {
	case token.TRUE:
		c.emit(code.OpTrue)
	case token.FALSE:
		c.emit(code.OpFalse)
	}
}

func (c *Compiler) grouping(bool) {
	c.expression()
	c.consume(token.RPAREN, "expected ')' after expression")
}

func (c *Compiler) unary(bool) {
	op := c.previous.Type
	c.parsePrecedence(precUnary)

	switch op {
	case token.MINUS:
		if !c.foldNegate() {
			c.emit(code.OpNegate)
		}
	case token.BANG:
		c.emit(code.OpNot)
	}
}

func (c *Compiler) binary(bool) {
	op := c.previous.Type
	c.parsePrecedence(rules[op].prec + 1)

	if c.foldBinary(op) {
		return
	}
	switch op {
	case token.PLUS:
		c.emit(code.OpAdd)
	case token.MINUS:
		c.emit(code.OpSubtract)
	case token.STAR:
		c.emit(code.OpMultiply)
	case token.SLASH:
		c.emit(code.OpDivide)
	case token.EQ:
		c.emit(code.OpEqual)
	case token.NE:
		c.emit(code.OpEqual)
		c.emit(code.OpNot)
	case token.GT:
		c.emit(code.OpGreater)
	case token.GE:
		c.emit(code.OpLess)
		c.emit(code.OpNot)
	case token.LT:
		c.emit(code.OpLess)
	case token.LE:
		c.emit(code.OpGreater)
		c.emit(code.OpNot)
	}
}

func (c *Compiler) and(bool) {
	endJump := c.emitJump(code.OpJumpIfFalse)
	c.emit(code.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(bool) {
	elseJump := c.emitJump(code.OpJumpIfFalse)
	endJump := c.emitJump(code.OpJump)
	c.patchJump(elseJump)
	c.emit(code.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) variable(canAssign bool) {
	name := c.previous
	slot, isLocal := c.resolveLocal(name)

	if canAssign && c.match(token.ASSIGN) {
		c.expression()
		if isLocal {
			c.emit(code.OpSetLocal, slot)
		} else {
			c.emit(code.OpSetGlobal, c.identifierConstant(name.Literal))
		}
		c.assigned = true
		return
	}

	if isLocal {
		c.emit(code.OpGetLocal, slot)
	} else {
		c.emit(code.OpGetGlobal, c.identifierConstant(name.Literal))
	}
}

func (c *Compiler) call(bool) {
	argc := c.argumentList()
	c.emit(code.OpCall, argc)
}

// argumentList retains every argument: each becomes a local of the callee.
func (c *Compiler) argumentList() int {
	argc := 0
	if !c.check(token.RPAREN) {
		for {
			c.expression()
			c.emit(code.OpRetain)
			if argc == maxArgs {
				c.error("can't have more than 255 arguments")
			}
			argc++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "expected ')' after arguments")
	return argc
}

var mapMethods = map[string]code.Opcode{
	"insert": code.OpSetEntry,
	"remove": code.OpRemoveEntry,
	"has":    code.OpHasEntry,
	"get":    code.OpGetEntry,
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(token.IDENT, "expected key name after '.'")
	name := c.previous

	if op, ok := mapMethods[name.Literal]; ok && c.check(token.LPAREN) {
		c.advance()
		c.expression()
		if op == code.OpSetEntry {
			c.consume(token.COMMA, "expected ',' between key and value")
			c.expression()
		}
		c.consume(token.RPAREN, "expected ')' after "+name.Literal+" arguments")
		c.emit(op)
		return
	}

	c.stringConstant(name.Literal)
	if canAssign && c.match(token.ASSIGN) {
		c.expression()
		c.emit(code.OpSetEntry)
		c.emit(code.OpPop)
		c.assigned = true
		return
	}
	c.emit(code.OpGetEntry)
}

func (c *Compiler) mapLiteral(bool) {
	c.emit(code.OpNewMap)
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		if c.check(token.IDENT) && c.peekNext().Type == token.COLON {
			c.advance()
			c.stringConstant(c.previous.Literal)
		} else {
			c.expression()
		}
		c.consume(token.COLON, "expected ':' after map key")
		c.expression()
		c.emit(code.OpSetEntry)
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.RBRACE, "expected '}' after map entries")
}
