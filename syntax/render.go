package syntax

import "strings"

// renderWord reconstructs an approximate source rendering of w, used to
// populate Stmt.Source (spec §3, Command "original source text for error
// messages") and, from there, a job's display_text (spec §3 Job,
// spec §8 scenario 7). It is not a round-trippable printer: quoting is
// reproduced well enough to read back as the same words, not byte-for-byte
// identical to whatever the user typed.
func renderWord(w *Word) string {
	var b strings.Builder
	for _, p := range w.Parts {
		renderWordPart(&b, p)
	}
	return b.String()
}

func renderWordPart(b *strings.Builder, p WordPart) {
	switch v := p.(type) {
	case *Lit:
		b.WriteString(v.Value)
	case *SglQuoted:
		b.WriteByte('\'')
		b.WriteString(v.Value)
		b.WriteByte('\'')
	case *DblQuoted:
		b.WriteByte('"')
		for _, pp := range v.Parts {
			renderWordPart(b, pp)
		}
		b.WriteByte('"')
	case *ParamExp:
		renderParamExp(b, v)
	case *ArithmExp:
		b.WriteString("$((")
		b.WriteString(v.Expr)
		b.WriteString("))")
	case *CmdSubst:
		if v.Backtick {
			b.WriteByte('`')
			b.WriteString(v.Source)
			b.WriteByte('`')
		} else {
			b.WriteString("$(")
			b.WriteString(v.Source)
			b.WriteByte(')')
		}
	}
}

func renderParamExp(b *strings.Builder, p *ParamExp) {
	if p.Short {
		b.WriteByte('$')
		b.WriteString(p.Param)
		return
	}
	b.WriteString("${")
	b.WriteString(p.Param)
	b.WriteByte('}')
}

// renderStmt reconstructs s's leading assignments and command into one
// display line, joining them the way they read on the command line.
func renderStmt(s *Stmt) string {
	var parts []string
	for _, a := range s.Assigns {
		op := "="
		if a.Append {
			op = "+="
		}
		parts = append(parts, a.Name+op+renderWord(a.Value))
	}
	if s.Cmd != nil {
		if cmd := renderCommand(s.Cmd); cmd != "" {
			parts = append(parts, cmd)
		}
	}
	return strings.Join(parts, " ")
}

// renderCommand renders a Command node for display. Simple commands render
// their full argv; compound commands render a short summary rather than a
// full body dump, which is all a job table or diagnostic line needs.
func renderCommand(c Command) string {
	switch v := c.(type) {
	case *CallExpr:
		words := make([]string, len(v.Args))
		for i, a := range v.Args {
			words[i] = renderWord(a)
		}
		return strings.Join(words, " ")
	case *FuncDecl:
		return v.Name + "()"
	case *Subshell:
		return "(...)"
	case *Block:
		return "{ ...; }"
	case *IfClause:
		return "if ...; fi"
	case *WhileClause:
		if v.Until {
			return "until ...; done"
		}
		return "while ...; done"
	case *ForClause:
		return "for " + v.Name + " in ...; done"
	case *CaseClause:
		return "case ... in ... esac"
	case *TestClause:
		return "[[ ... ]]"
	case *BinaryCmd:
		return "..."
	}
	return ""
}

// RenderPipeline reconstructs a display line for an entire pipeline,
// joining each stage's Stmt.Source with " | " (spec §3 Job display_text,
// spec §8 scenario 7: `jobs` prints the real command text, e.g. `sleep 1`
// rather than a placeholder).
func RenderPipeline(p *Pipeline) string {
	parts := make([]string, len(p.Stmts))
	for i, s := range p.Stmts {
		parts[i] = s.Source
	}
	text := strings.Join(parts, " | ")
	if p.Negate {
		text = "! " + text
	}
	return text
}
