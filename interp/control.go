package interp

import (
	"context"
	"fmt"

	"cjsh.dev/cjsh/pattern"
	"cjsh.dev/cjsh/syntax"
)

func (r *Runner) execIf(ctx context.Context, c *syntax.IfClause) (int, error) {
	if err := r.runUnits(ctx, c.Cond); err != nil {
		if _, ok := err.(*loopSignal); ok {
			return r.Vars.LastStatus(), err
		}
	}
	if r.Vars.LastStatus() == 0 {
		return 0, r.runUnits(ctx, c.Then)
	}
	if c.Else != nil {
		return r.execIf(ctx, c.Else)
	}
	if c.ElseBody != nil {
		return 0, r.runUnits(ctx, c.ElseBody)
	}
	return 0, nil
}

func (r *Runner) execWhile(ctx context.Context, c *syntax.WhileClause) (int, error) {
	status := 0
	for {
		if err := r.runUnits(ctx, c.Cond); err != nil {
			return r.Vars.LastStatus(), err
		}
		ok := r.Vars.LastStatus() == 0
		if c.Until {
			ok = !ok
		}
		if !ok {
			break
		}
		err := r.runUnits(ctx, c.Do)
		status = r.Vars.LastStatus()
		if ls, isLoop := err.(*loopSignal); isLoop {
			if ls.level > 1 {
				ls.level--
				return status, ls
			}
			if ls.kind == loopBreak {
				break
			}
			continue
		}
		if err != nil {
			return status, err
		}
	}
	return status, nil
}

func (r *Runner) execFor(ctx context.Context, c *syntax.ForClause) (int, error) {
	items, err := r.ecfg.Words(c.Items)
	if err != nil {
		return 1, err
	}
	status := 0
	for _, item := range items {
		if err := r.Vars.Set(c.Name, item); err != nil {
			return 1, err
		}
		err := r.runUnits(ctx, c.Do)
		status = r.Vars.LastStatus()
		if ls, isLoop := err.(*loopSignal); isLoop {
			if ls.level > 1 {
				ls.level--
				return status, ls
			}
			if ls.kind == loopBreak {
				break
			}
			continue
		}
		if err != nil {
			return status, err
		}
	}
	return status, nil
}

func (r *Runner) execCase(ctx context.Context, c *syntax.CaseClause) (int, error) {
	subject, err := r.ecfg.Literal(c.Word)
	if err != nil {
		return 1, err
	}
	for idx, item := range c.Items {
		matched := false
		for _, pw := range item.Patterns {
			pat, err := r.ecfg.Literal(pw)
			if err != nil {
				return 1, err
			}
			if pattern.Match(pat, subject) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if err := r.runUnits(ctx, item.Stmts); err != nil {
			return r.Vars.LastStatus(), err
		}
		if item.FallThrough && idx+1 < len(c.Items) {
			if err := r.runUnits(ctx, c.Items[idx+1].Stmts); err != nil {
				return r.Vars.LastStatus(), err
			}
		}
		return r.Vars.LastStatus(), nil
	}
	return 0, nil
}

func (r *Runner) execBlock(ctx context.Context, b *syntax.Block) (int, error) {
	err := r.runUnits(ctx, b.Stmts)
	return r.Vars.LastStatus(), err
}

// execSubshell runs stmts against a forked copy of the shell state (spec
// §4.I): variable, positional-parameter, and directory changes never
// propagate back to the parent Runner.
func (r *Runner) execSubshell(ctx context.Context, s *syntax.Subshell) (int, error) {
	r2 := r.sub()
	err := r2.runUnits(ctx, s.Stmts)
	return r2.Vars.LastStatus(), err
}

func (r *Runner) execBinary(ctx context.Context, b *syntax.BinaryCmd) (int, error) {
	sx, err := r.execStmt(ctx, b.X)
	r.Vars.SetLastStatus(sx)
	if err != nil {
		return sx, err
	}
	switch b.Op {
	case syntax.And:
		if sx != 0 {
			return sx, nil
		}
	case syntax.Or:
		if sx == 0 {
			return sx, nil
		}
	}
	sy, err := r.execStmt(ctx, b.Y)
	r.Vars.SetLastStatus(sy)
	return sy, err
}

func (r *Runner) execTest(ctx context.Context, expr syntax.TestExpr) (int, error) {
	v, err := r.evalTest(expr)
	if err != nil {
		return 2, err
	}
	return boolStatus(!v), nil
}

func (r *Runner) evalTest(expr syntax.TestExpr) (bool, error) {
	switch e := expr.(type) {
	case syntax.TestWord:
		s, err := r.ecfg.Literal(e.X)
		return s != "", err
	case syntax.TestUnary:
		return r.evalTestUnary(e)
	case syntax.TestBinary:
		return r.evalTestBinary(e)
	case syntax.TestNot:
		v, err := r.evalTest(e.X)
		return !v, err
	case syntax.TestAnd:
		l, err := r.evalTest(e.X)
		if err != nil || !l {
			return false, err
		}
		return r.evalTest(e.Y)
	case syntax.TestOr:
		l, err := r.evalTest(e.X)
		if err != nil || l {
			return l, err
		}
		return r.evalTest(e.Y)
	}
	return false, fmt.Errorf("cjsh: unsupported test expression %T", expr)
}
