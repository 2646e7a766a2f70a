package syntax

import (
	"fmt"

	"cjsh.dev/cjsh/token"
)

// ErrIncomplete is returned by Parse when src is a well-formed prefix of a
// logical unit (e.g. an `if` awaiting its `fi`) so that an interactive line
// source knows to read another physical line and retry, using PS2.
var ErrIncomplete = fmt.Errorf("cjsh: incomplete input")

// Alias is the pre-parse substitution table consulted while building the
// token stream (spec §3, "Alias table"): name -> expansion text, applied
// only to the first word of a command.
type Alias map[string]string

// Parser turns preprocessed source into a *File. One Parser handles one
// complete logical input unit (which may itself span several physical
// lines, e.g. an unterminated `if`); the caller (an interactive line
// source or the script runner) is responsible for feeding it a text that
// is either complete or reports ErrIncomplete.
type Parser struct {
	toks    []Token
	pos     int
	aliases Alias
	posix   bool
	src     string
}

// NewParser tokenizes src (already run through Preprocessor.Process) and
// prepares a Parser over it.
func NewParser(src string, aliases Alias, posix bool) (*Parser, error) {
	lx := NewLexer(src, 1)
	toks, err := lx.Tokenize()
	if err != nil {
		return nil, err
	}
	return &Parser{toks: toks, aliases: aliases, posix: posix, src: src}, nil
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) advance()    { if p.pos < len(p.toks)-1 { p.pos++ } }
func (p *Parser) atEOF() bool { return p.cur().Kind == token.EOF }

func (p *Parser) skipNewlines() {
	for p.cur().Kind == token.NEWLINE {
		p.advance()
	}
}

// litAt returns the literal text of the current token if it is an
// unquoted/single-literal WORD, used to recognize reserved words which are
// only reserved at command-start position (spec §4.A).
func (p *Parser) litAt() (string, bool) {
	t := p.cur()
	if t.Kind != token.WORD || t.Word == nil {
		return "", false
	}
	return t.Word.Lit()
}

func (p *Parser) atReserved(word string) bool {
	lit, ok := p.litAt()
	return ok && lit == word
}

// Parse parses a complete File from src.
func Parse(src string, aliases Alias, posix bool) (*File, error) {
	p, err := NewParser(src, aliases, posix)
	if err != nil {
		return nil, err
	}
	return p.parseFile()
}

func (p *Parser) parseFile() (*File, error) {
	f := &File{}
	p.skipNewlines()
	for !p.atEOF() {
		unit, err := p.parseLogicalUnit()
		if err != nil {
			return nil, err
		}
		if unit != nil {
			f.Units = append(f.Units, unit)
		}
		p.skipNewlines()
	}
	return f, nil
}

// parseLogicalUnitList parses a `LIST` in the grammar sense: logical units
// until a reserved word in stop[] is seen at command-start position.
func (p *Parser) parseLogicalUnitList(stop ...string) ([]*LogicalUnit, error) {
	var units []*LogicalUnit
	p.skipNewlines()
	for {
		if p.atEOF() {
			return nil, ErrIncomplete
		}
		for _, s := range stop {
			// a standalone "}" is lexed as an RBRACE token, not a WORD
			if p.atReserved(s) || (s == "}" && p.cur().Kind == token.RBRACE) {
				return units, nil
			}
		}
		unit, err := p.parseLogicalUnit()
		if err != nil {
			return nil, err
		}
		if unit != nil {
			units = append(units, unit)
		}
		p.skipNewlines()
	}
}

// parseLogicalUnit parses one pipeline plus its trailing combinator
// (spec §4.C step 3/4).
func (p *Parser) parseLogicalUnit() (*LogicalUnit, error) {
	line := p.cur().Line
	pipeline, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	if pipeline == nil {
		return nil, nil
	}
	u := &LogicalUnit{Pipeline: pipeline, Combinator: Seq, Line: line}
	switch p.cur().Kind {
	case token.LAND:
		p.advance()
		u.Combinator = And
	case token.LOR:
		p.advance()
		u.Combinator = Or
	case token.AND:
		p.advance()
		pipeline.Background = true
		u.Combinator = Seq
	case token.SEMICOLON:
		p.advance()
	case token.NEWLINE, token.EOF:
		// terminates naturally
	}
	return u, nil
}

// parsePipeline parses one or more Stmts connected by | or |&ve
// (spec §4.C step 4).
func (p *Parser) parsePipeline() (*Pipeline, error) {
	line := p.cur().Line
	negate := false
	if p.atReserved("!") {
		negate = true
		p.advance()
	}
	first, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	if first == nil {
		if negate {
			return nil, &SyntaxError{Line: line, Detail: "expected command after !", Frag: p.src}
		}
		return nil, nil
	}
	pl := &Pipeline{Stmts: []*Stmt{first}, Negate: negate, Line: line}
	for p.cur().Kind == token.OR || p.cur().Kind == token.PIPEALL {
		p.advance()
		p.skipNewlines()
		next, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, &SyntaxError{Line: p.cur().Line, Detail: "expected command after |", Frag: p.src}
		}
		pl.Stmts = append(pl.Stmts, next)
	}
	return pl, nil
}

// parseStmt parses one simple or compound command with its leading
// assignments and redirections (spec §4.C step 4, §3 "Command").
func (p *Parser) parseStmt() (*Stmt, error) {
	line := p.cur().Line
	s := &Stmt{Line: line}
	for {
		if p.cur().Kind == token.ASSIGNWORD {
			s.Assigns = append(s.Assigns, parseAssign(p.cur()))
			p.advance()
			continue
		}
		if r, ok, err := p.tryParseRedirect(); err != nil {
			return nil, err
		} else if ok {
			s.Redirs = append(s.Redirs, r)
			continue
		}
		break
	}

	cmd, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	if cmd == nil {
		if len(s.Assigns) > 0 {
			// a bare assignment with no command word is its own
			// simple command (sets shell variables, exit status 0).
			s.Source = renderStmt(s)
			return s, nil
		}
		if len(s.Redirs) > 0 {
			return nil, &SyntaxError{Line: line, Detail: "redirection with no command", Frag: p.src}
		}
		return nil, nil
	}
	s.Cmd = cmd

	for {
		if r, ok, err := p.tryParseRedirect(); err != nil {
			return nil, err
		} else if ok {
			s.Redirs = append(s.Redirs, r)
			continue
		}
		break
	}
	s.Source = renderStmt(s)
	return s, nil
}

func parseAssign(t Token) *Assign {
	name := t.Text
	append_ := false
	i := 0
	for i < len(name) && name[i] != '=' && name[i] != '+' {
		i++
	}
	key := name[:i]
	if i < len(name) && name[i] == '+' {
		append_ = true
		i++
	}
	val := name[i+1:]
	w, _ := wordFromRaw(val)
	return &Assign{Name: key, Append: append_, Value: w, Line: t.Line}
}

func (p *Parser) tryParseRedirect() (*Redirect, bool, error) {
	t := p.cur()
	fd := -1
	kind := RedirKind(0)
	switch t.Kind {
	case token.LSS:
		kind = RedirInFile
	case token.GTR:
		kind = RedirOutFile
	case token.SHR:
		kind = RedirAppend
	case token.SHL:
		kind = RedirHereDoc
	case token.DHEREDOC:
		kind = RedirHereDoc
	case token.WHEREDOC:
		kind = RedirHereString
	case token.RDRINOUT:
		kind = RedirReadWrite
	case token.DPLIN, token.DPLOUT:
		kind = RedirDup
	case token.CLBOUT:
		kind = RedirOutFile
	default:
		return nil, false, nil
	}
	if t.Text != "" {
		fmt.Sscanf(t.Text, "%d", &fd)
	} else if t.Kind == token.DPLIN {
		fd = 0 // bare `<&N`/`<&-` affects fd 0 absent a leading digit
	} else if t.Kind == token.DPLOUT {
		fd = 1 // bare `>&N`/`>&-` affects fd 1 absent a leading digit
	}
	force := t.Kind == token.CLBOUT
	line := t.Line
	p.advance()
	if p.cur().Kind != token.WORD {
		return nil, false, &SyntaxError{Line: line, Detail: "redirection missing target", Frag: p.src}
	}
	target := p.cur().Word
	p.advance()
	if kind == RedirDup {
		if lit, ok := target.Lit(); ok && lit == "-" {
			return &Redirect{Fd: fd, Kind: RedirCloseFd, Line: line}, true, nil
		}
	}
	return &Redirect{Fd: fd, Kind: kind, Target: target, Force: force, Line: line}, true, nil
}

// parseCommand dispatches on the current token/reserved word to build one
// Command node, implementing spec §4.H's construct recognition.
func (p *Parser) parseCommand() (Command, error) {
	switch {
	case p.cur().Kind == token.LPAREN:
		return p.parseSubshell()
	case p.cur().Kind == token.LBRACE, p.atReserved("{"):
		return p.parseBlock()
	case p.cur().Kind == token.DLBRCK:
		return p.parseTestClause()
	case p.atReserved("if"):
		return p.parseIf()
	case p.atReserved("while"):
		return p.parseWhile(false)
	case p.atReserved("until"):
		return p.parseWhile(true)
	case p.atReserved("for"):
		return p.parseFor()
	case p.atReserved("case"):
		return p.parseCase()
	case p.atReserved("function"):
		return p.parseFuncDeclKeyword()
	case p.cur().Kind == token.WORD:
		return p.parseCallOrFuncDecl()
	}
	return nil, nil
}

func (p *Parser) parseSubshell() (Command, error) {
	line := p.cur().Line
	p.advance()
	units, err := p.parseLogicalUnitListUntilRParen()
	if err != nil {
		return nil, err
	}
	return &Subshell{Stmts: units, Line: line}, nil
}

func (p *Parser) parseLogicalUnitListUntilRParen() ([]*LogicalUnit, error) {
	var units []*LogicalUnit
	p.skipNewlines()
	for {
		if p.atEOF() {
			return nil, ErrIncomplete
		}
		if p.cur().Kind == token.RPAREN {
			p.advance()
			return units, nil
		}
		unit, err := p.parseLogicalUnit()
		if err != nil {
			return nil, err
		}
		if unit != nil {
			units = append(units, unit)
		}
		p.skipNewlines()
	}
}

func (p *Parser) parseBlock() (Command, error) {
	line := p.cur().Line
	p.advance()
	units, err := p.parseLogicalUnitList("}")
	if err != nil {
		return nil, err
	}
	if !p.atReserved("}") && p.cur().Kind != token.RBRACE {
		return nil, ErrIncomplete
	}
	p.advance()
	return &Block{Stmts: units, Line: line}, nil
}

func (p *Parser) parseIf() (Command, error) {
	line := p.cur().Line
	p.advance()
	cond, err := p.parseLogicalUnitList("then")
	if err != nil {
		return nil, err
	}
	if !p.atReserved("then") {
		return nil, ErrIncomplete
	}
	p.advance()
	then, err := p.parseLogicalUnitList("elif", "else", "fi")
	if err != nil {
		return nil, err
	}
	clause := &IfClause{Cond: cond, Then: then, Line: line}
	switch {
	case p.atReserved("elif"):
		sub, err := p.parseIf() // recurse; "elif" reuses the same grammar as "if"
		if err != nil {
			return nil, err
		}
		clause.Else = sub.(*IfClause)
		return clause, nil
	case p.atReserved("else"):
		p.advance()
		body, err := p.parseLogicalUnitList("fi")
		if err != nil {
			return nil, err
		}
		clause.ElseBody = body
		if !p.atReserved("fi") {
			return nil, ErrIncomplete
		}
		p.advance()
		return clause, nil
	case p.atReserved("fi"):
		p.advance()
		return clause, nil
	}
	return nil, ErrIncomplete
}

func (p *Parser) parseWhile(until bool) (Command, error) {
	line := p.cur().Line
	p.advance()
	cond, err := p.parseLogicalUnitList("do")
	if err != nil {
		return nil, err
	}
	if !p.atReserved("do") {
		return nil, ErrIncomplete
	}
	p.advance()
	body, err := p.parseLogicalUnitList("done")
	if err != nil {
		return nil, err
	}
	if !p.atReserved("done") {
		return nil, ErrIncomplete
	}
	p.advance()
	return &WhileClause{Until: until, Cond: cond, Do: body, Line: line}, nil
}

func (p *Parser) parseFor() (Command, error) {
	line := p.cur().Line
	p.advance()
	name, ok := p.litAt()
	if !ok {
		return nil, &SyntaxError{Line: line, Detail: "for: expected name", Frag: p.src}
	}
	p.advance()
	var items []*Word
	if p.atReserved("in") {
		p.advance()
		for p.cur().Kind == token.WORD {
			items = append(items, p.cur().Word)
			p.advance()
		}
	}
	for p.cur().Kind == token.SEMICOLON || p.cur().Kind == token.NEWLINE {
		p.advance()
	}
	if !p.atReserved("do") {
		return nil, ErrIncomplete
	}
	p.advance()
	body, err := p.parseLogicalUnitList("done")
	if err != nil {
		return nil, err
	}
	if !p.atReserved("done") {
		return nil, ErrIncomplete
	}
	p.advance()
	return &ForClause{Name: name, Items: items, Do: body, Line: line}, nil
}

func (p *Parser) parseCase() (Command, error) {
	line := p.cur().Line
	p.advance()
	if p.cur().Kind != token.WORD {
		return nil, &SyntaxError{Line: line, Detail: "case: expected word", Frag: p.src}
	}
	word := p.cur().Word
	p.advance()
	p.skipNewlines()
	if !p.atReserved("in") {
		return nil, &SyntaxError{Line: line, Detail: "case: expected in", Frag: p.src}
	}
	p.advance()
	p.skipNewlines()
	cc := &CaseClause{Word: word, Line: line}
	for !p.atReserved("esac") {
		if p.atEOF() {
			return nil, ErrIncomplete
		}
		if p.cur().Kind == token.LPAREN {
			p.advance()
		}
		item := &CaseItem{}
		for {
			if p.cur().Kind != token.WORD {
				return nil, &SyntaxError{Line: p.cur().Line, Detail: "case: expected pattern", Frag: p.src}
			}
			item.Patterns = append(item.Patterns, p.cur().Word)
			p.advance()
			if p.cur().Kind == token.OR {
				p.advance()
				continue
			}
			break
		}
		if p.cur().Kind != token.RPAREN {
			return nil, &SyntaxError{Line: p.cur().Line, Detail: "case: expected )", Frag: p.src}
		}
		p.advance()
		units, err := p.parseCaseItemBody()
		if err != nil {
			return nil, err
		}
		item.Stmts = units
		if p.cur().Kind == token.DSEMICOLON {
			p.advance()
		} else if p.cur().Kind == token.SEMIFALL {
			item.FallThrough = true
			p.advance()
		}
		p.skipNewlines()
		cc.Items = append(cc.Items, item)
	}
	p.advance() // esac
	return cc, nil
}

// parseCaseItemBody parses the LIST inside one case arm, stopping at ;;,
// ;&, or esac without consuming the terminator.
func (p *Parser) parseCaseItemBody() ([]*LogicalUnit, error) {
	var units []*LogicalUnit
	p.skipNewlines()
	for {
		if p.atEOF() {
			return nil, ErrIncomplete
		}
		if p.atReserved("esac") || p.cur().Kind == token.DSEMICOLON || p.cur().Kind == token.SEMIFALL {
			return units, nil
		}
		unit, err := p.parseLogicalUnit()
		if err != nil {
			return nil, err
		}
		if unit != nil {
			units = append(units, unit)
		}
		p.skipNewlines()
	}
}

func (p *Parser) parseFuncDeclKeyword() (Command, error) {
	line := p.cur().Line
	p.advance()
	name, ok := p.litAt()
	if !ok {
		return nil, &SyntaxError{Line: line, Detail: "function: expected name", Frag: p.src}
	}
	p.advance()
	if p.cur().Kind == token.LPAREN {
		p.advance()
		if p.cur().Kind != token.RPAREN {
			return nil, &SyntaxError{Line: line, Detail: "function: expected )", Frag: p.src}
		}
		p.advance()
	}
	p.skipNewlines()
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, ErrIncomplete
	}
	return &FuncDecl{Name: name, Body: body, Line: line}, nil
}

// parseCallOrFuncDecl distinguishes `NAME` and `NAME ()` function
// definitions from ordinary simple commands by lookahead.
func (p *Parser) parseCallOrFuncDecl() (Command, error) {
	line := p.cur().Line
	if p.looksLikeFuncDecl() {
		name, _ := p.litAt()
		p.advance()
		p.advance() // (
		p.advance() // )
		p.skipNewlines()
		body, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		if body == nil {
			return nil, ErrIncomplete
		}
		return &FuncDecl{Name: name, Body: body, Line: line}, nil
	}
	return p.parseCall()
}

func (p *Parser) looksLikeFuncDecl() bool {
	if p.pos+2 >= len(p.toks) {
		return false
	}
	return p.toks[p.pos+1].Kind == token.LPAREN && p.toks[p.pos+2].Kind == token.RPAREN
}

func (p *Parser) parseCall() (Command, error) {
	line := p.cur().Line
	p.expandLeadingAlias(map[string]bool{})
	var args []*Word
	for p.cur().Kind == token.WORD || p.cur().Kind == token.ASSIGNWORD {
		args = append(args, p.cur().Word)
		p.advance()
	}
	if len(args) == 0 {
		return nil, nil
	}
	return &CallExpr{Args: args, Line: line}, nil
}

// expandLeadingAlias applies alias substitution to the current
// command-start word, transitively and with cycle detection, by splicing
// the alias's own tokens in place of the single aliased WORD token (spec
// §4.C step 2, §3 "Alias table"). Only a plain (unquoted, unescaped)
// single-literal word can name an alias.
func (p *Parser) expandLeadingAlias(seen map[string]bool) {
	if p.aliases == nil || p.cur().Kind != token.WORD {
		return
	}
	w := p.cur().Word
	if len(w.Parts) != 1 {
		return
	}
	lit, ok := w.Parts[0].(*Lit)
	if !ok || lit.Quote != QUnquoted {
		return
	}
	exp, ok := p.aliases[lit.Value]
	if !ok || seen[lit.Value] {
		return
	}
	seen[lit.Value] = true
	sub, err := NewParser(exp, nil, p.posix)
	if err != nil || len(sub.toks) == 0 {
		return
	}
	repl := sub.toks[:len(sub.toks)-1] // drop sub-EOF
	tail := append([]Token{}, p.toks[p.pos+1:]...)
	p.toks = append(append(append([]Token{}, p.toks[:p.pos]...), repl...), tail...)
	p.expandLeadingAlias(seen)
}

// parseTestClause parses `[[ expr ]]` using a small precedence-climbing
// grammar: !, then binary/unary tests, joined by && and ||.
func (p *Parser) parseTestClause() (Command, error) {
	line := p.cur().Line
	p.advance() // [[
	expr, err := p.parseTestOr()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != token.DRBRCK {
		return nil, &SyntaxError{Line: line, Detail: "expected ]]", Frag: p.src}
	}
	p.advance()
	return &TestClause{Expr: expr, Line: line}, nil
}

func (p *Parser) parseTestOr() (TestExpr, error) {
	x, err := p.parseTestAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.LOR {
		p.advance()
		y, err := p.parseTestAnd()
		if err != nil {
			return nil, err
		}
		x = TestOr{X: x, Y: y}
	}
	return x, nil
}

func (p *Parser) parseTestAnd() (TestExpr, error) {
	x, err := p.parseTestUnit()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.LAND {
		p.advance()
		y, err := p.parseTestUnit()
		if err != nil {
			return nil, err
		}
		x = TestAnd{X: x, Y: y}
	}
	return x, nil
}

func (p *Parser) parseTestUnit() (TestExpr, error) {
	if p.atReserved("!") {
		p.advance()
		x, err := p.parseTestUnit()
		if err != nil {
			return nil, err
		}
		return TestNot{X: x}, nil
	}
	if p.cur().Kind == token.LPAREN {
		p.advance()
		x, err := p.parseTestOr()
		if err != nil {
			return nil, err
		}
		if p.cur().Kind != token.RPAREN {
			return nil, &SyntaxError{Detail: "expected )", Frag: p.src}
		}
		p.advance()
		return x, nil
	}
	if p.cur().Kind != token.WORD {
		return nil, &SyntaxError{Detail: "expected test expression", Frag: p.src}
	}
	lit, isLit := p.cur().Word.Lit()
	if isLit && len(lit) == 2 && lit[0] == '-' {
		op := lit
		p.advance()
		if p.cur().Kind != token.WORD {
			return nil, &SyntaxError{Detail: "expected operand after " + op, Frag: p.src}
		}
		x := p.cur().Word
		p.advance()
		return TestUnary{Op: op, X: x}, nil
	}
	x := p.cur().Word
	p.advance()
	if p.cur().Kind == token.WORD {
		if opLit, ok := p.cur().Word.Lit(); ok && isTestBinaryOp(opLit) {
			p.advance()
			if p.cur().Kind != token.WORD {
				return nil, &SyntaxError{Detail: "expected operand after " + opLit, Frag: p.src}
			}
			y := p.cur().Word
			p.advance()
			return TestBinary{Op: opLit, X: x, Y: y}, nil
		}
	}
	return TestWord{X: x}, nil
}

func isTestBinaryOp(s string) bool {
	switch s {
	case "=", "==", "!=", "<", ">", "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		return true
	}
	return false
}
