package syntax

import "testing"

func parseOne(t *testing.T, src string) *File {
	t.Helper()
	f, err := Parse(src, nil, false)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return f
}

func TestParseSimpleCommand(t *testing.T) {
	f := parseOne(t, "echo hi\n")
	if len(f.Units) != 1 {
		t.Fatalf("got %d units, want 1", len(f.Units))
	}
	call, ok := f.Units[0].Pipeline.Stmts[0].Cmd.(*CallExpr)
	if !ok {
		t.Fatalf("Cmd = %T, want *CallExpr", f.Units[0].Pipeline.Stmts[0].Cmd)
	}
	if len(call.Args) != 2 {
		t.Fatalf("got %d args, want 2", len(call.Args))
	}
	lit, ok := call.Args[0].Lit()
	if !ok || lit != "echo" {
		t.Errorf("Args[0] = %q, want %q", lit, "echo")
	}
}

func TestParseAndOrCombinators(t *testing.T) {
	f := parseOne(t, "true && echo yes || echo no\n")
	if len(f.Units) != 3 {
		t.Fatalf("got %d units, want 3", len(f.Units))
	}
	if f.Units[0].Combinator != And {
		t.Errorf("first combinator = %v, want And", f.Units[0].Combinator)
	}
	if f.Units[1].Combinator != Or {
		t.Errorf("second combinator = %v, want Or", f.Units[1].Combinator)
	}
}

func TestParsePipeline(t *testing.T) {
	f := parseOne(t, "ls | grep foo | wc -l\n")
	pl := f.Units[0].Pipeline
	if len(pl.Stmts) != 3 {
		t.Fatalf("got %d stmts, want 3", len(pl.Stmts))
	}
}

func TestParseIf(t *testing.T) {
	f := parseOne(t, "if true; then echo a; else echo b; fi\n")
	clause, ok := f.Units[0].Pipeline.Stmts[0].Cmd.(*IfClause)
	if !ok {
		t.Fatalf("Cmd = %T, want *IfClause", f.Units[0].Pipeline.Stmts[0].Cmd)
	}
	if len(clause.Then) != 1 || len(clause.ElseBody) != 1 {
		t.Errorf("Then=%d ElseBody=%d, want 1/1", len(clause.Then), len(clause.ElseBody))
	}
}

func TestParseForLoop(t *testing.T) {
	f := parseOne(t, "for x in a b c; do echo $x; done\n")
	fc, ok := f.Units[0].Pipeline.Stmts[0].Cmd.(*ForClause)
	if !ok {
		t.Fatalf("Cmd = %T, want *ForClause", f.Units[0].Pipeline.Stmts[0].Cmd)
	}
	if fc.Name != "x" || len(fc.Items) != 3 {
		t.Errorf("Name=%q Items=%d, want x/3", fc.Name, len(fc.Items))
	}
}

func TestParseCase(t *testing.T) {
	f := parseOne(t, "case $x in a|b) echo ab ;; *) echo other ;; esac\n")
	cc, ok := f.Units[0].Pipeline.Stmts[0].Cmd.(*CaseClause)
	if !ok {
		t.Fatalf("Cmd = %T, want *CaseClause", f.Units[0].Pipeline.Stmts[0].Cmd)
	}
	if len(cc.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(cc.Items))
	}
	if len(cc.Items[0].Patterns) != 2 {
		t.Errorf("first item has %d patterns, want 2", len(cc.Items[0].Patterns))
	}
}

func TestParseFuncDecl(t *testing.T) {
	f := parseOne(t, "foo() { echo bar; }\n")
	fd, ok := f.Units[0].Pipeline.Stmts[0].Cmd.(*FuncDecl)
	if !ok {
		t.Fatalf("Cmd = %T, want *FuncDecl", f.Units[0].Pipeline.Stmts[0].Cmd)
	}
	if fd.Name != "foo" {
		t.Errorf("Name = %q, want foo", fd.Name)
	}
}

func TestParseIncomplete(t *testing.T) {
	_, err := Parse("if true; then echo a\n", nil, false)
	if err != ErrIncomplete {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}
}

func TestParseAlias(t *testing.T) {
	aliases := Alias{"ll": "ls -l"}
	f, err := Parse("ll /tmp\n", aliases, false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	call, ok := f.Units[0].Pipeline.Stmts[0].Cmd.(*CallExpr)
	if !ok {
		t.Fatalf("Cmd = %T, want *CallExpr", f.Units[0].Pipeline.Stmts[0].Cmd)
	}
	if len(call.Args) != 3 {
		t.Fatalf("got %d args, want 3 (ls -l /tmp)", len(call.Args))
	}
	lit, _ := call.Args[0].Lit()
	if lit != "ls" {
		t.Errorf("Args[0] = %q, want ls", lit)
	}
}

func TestParseNegatedPipeline(t *testing.T) {
	f := parseOne(t, "! true\n")
	if !f.Units[0].Pipeline.Negate {
		t.Errorf("Negate = false, want true")
	}
}

func TestParseBackground(t *testing.T) {
	f := parseOne(t, "sleep 1 &\n")
	if !f.Units[0].Pipeline.Background {
		t.Errorf("Background = false, want true")
	}
}
