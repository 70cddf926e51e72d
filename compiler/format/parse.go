package format

import (
	"strconv"
	"strings"

	"tlog.app/go/errors"

	"github.com/slowlang/codewriter/compiler/ir"
	"github.com/slowlang/codewriter/compiler/ssa"
)

type parser struct {
	r      *ssa.Repr
	labels map[string]ssa.Label
}

// Parse reads a listing in the Format syntax back into a Repr.
// Blank lines and lines starting with # are ignored.
// Unknown operands become ssa.Opaque descriptors.
func Parse(name, text string) (_ *ssa.Repr, err error) {
	p := parser{
		r:      ssa.New(name),
		labels: map[string]ssa.Label{},
	}

	lines := strings.Split(text, "\n")

	for _, l := range lines {
		l = strings.TrimSpace(l)

		if lab, ok := labelDef(l); ok {
			if _, ok := p.labels[lab]; ok {
				return nil, errors.Wrap(ssa.ErrDuplicateLabel, "%v", lab)
			}

			p.labels[lab] = p.r.NewLabel()
		}
	}

	for i, l := range lines {
		l = strings.TrimSpace(l)

		if l == "" || l[0] == '#' {
			continue
		}

		err = p.line(l)
		if err != nil {
			return nil, errors.Wrap(err, "line %d", i+1)
		}
	}

	return p.r, nil
}

func labelDef(l string) (string, bool) {
	if !strings.HasSuffix(l, ":") || strings.ContainsAny(l, " \t,") {
		return "", false
	}

	return l[:len(l)-1], len(l) > 1
}

func (p *parser) line(l string) (err error) {
	if lab, ok := labelDef(l); ok {
		p.r.Define(p.labels[lab])

		return nil
	}

	op, rest, _ := strings.Cut(l, " ")

	var args []any

	for _, tok := range split(rest) {
		x, err := p.operand(tok)
		if err != nil {
			return errors.Wrap(err, "operand %q", tok)
		}

		args = append(args, x)
	}

	p.r.Emit(op, args...)

	return nil
}

func (p *parser) operand(tok string) (any, error) {
	if _, ok := p.labels[tok]; ok || isLabelName(tok) {
		return p.label(tok), nil
	}

	switch {
	case strings.HasPrefix(tok, "%"):
		return parseReg(tok)
	case strings.HasPrefix(tok, "$"):
		return parseConst(tok[1:])
	case strings.HasPrefix(tok, "<SwitchDictDescr") && strings.HasSuffix(tok, ">"):
		return p.switchDict(tok[len("<SwitchDictDescr") : len(tok)-1])
	case len(tok) >= 3 && tok[1] == '[' && tok[len(tok)-1] == ']':
		k, ok := ir.ParseKind(tok[:1])
		if !ok || k == ir.Void {
			break
		}

		l := ssa.ListOfKind{Kind: k, Items: []any{}}

		for _, t := range split(tok[2 : len(tok)-1]) {
			x, err := p.operand(t)
			if err != nil {
				return nil, err
			}

			l.Items = append(l.Items, x)
		}

		return l, nil
	}

	if tok == "" {
		return nil, errors.New("empty operand")
	}

	return ssa.Opaque(tok), nil
}

func (p *parser) switchDict(s string) (*ssa.SwitchDict, error) {
	d := &ssa.SwitchDict{}

	for _, c := range split(s) {
		v, lab, ok := strings.Cut(c, ":")
		if !ok {
			return nil, errors.New("bad switch case: %q", c)
		}

		x, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "switch case")
		}

		d.Add(x, p.label(lab))
	}

	return d, nil
}

// label returns the label named name. Names never defined get a fresh
// label which Finalize reports as undefined.
func (p *parser) label(name string) ssa.Label {
	l, ok := p.labels[name]
	if !ok {
		l = p.r.NewLabel()
		p.labels[name] = l
	}

	return l
}

func isLabelName(s string) bool {
	if len(s) < 2 || s[0] != 'L' {
		return false
	}

	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}

func parseReg(tok string) (ssa.Register, error) {
	if len(tok) < 3 {
		return ssa.Register{}, errors.New("bad register: %q", tok)
	}

	k, ok := ir.ParseKind(tok[1:2])
	if !ok || k == ir.Void {
		return ssa.Register{}, errors.New("bad register kind: %q", tok)
	}

	c, err := strconv.Atoi(tok[2:])
	if err != nil || c < 0 {
		return ssa.Register{}, errors.New("bad register color: %q", tok)
	}

	return ssa.Register{Kind: k, Color: c}, nil
}

func parseConst(s string) (ir.Const, error) {
	switch s {
	case "True":
		return ir.BoolConst(true), nil
	case "False":
		return ir.BoolConst(false), nil
	case "None":
		return ir.NilConst(), nil
	case "inf", "-inf", "nan":
		x, _ := strconv.ParseFloat(s, 64)
		return ir.FloatConst(x), nil
	}

	if x, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ir.IntConst(x), nil
	}

	if x, err := strconv.ParseFloat(s, 64); err == nil {
		return ir.FloatConst(x), nil
	}

	if strings.HasPrefix(s, `"`) {
		x, err := strconv.Unquote(s)
		if err != nil {
			return ir.Const{}, errors.Wrap(err, "string constant")
		}

		return ir.StrConst(x), nil
	}

	if strings.HasPrefix(s, "<* ") && strings.HasSuffix(s, ">") {
		class, name, ok := strings.Cut(s[3:len(s)-1], " ")
		if ok {
			return ir.SymConst(class, name), nil
		}
	}

	if s == "" {
		return ir.Const{}, errors.New("empty constant")
	}

	return ir.Const{K: ir.Ref, Val: ssa.Opaque(s)}, nil
}

// split cuts s at top level ", " separators.
func split(s string) (r []string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	depth := 0
	quote := false
	st := 0

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case quote:
			switch c {
			case '\\':
				i++
			case '"':
				quote = false
			}
		case c == '"':
			quote = true
		case c == '[' || c == '<':
			depth++
		case c == ']' || c == '>':
			depth--
		case c == ',' && depth == 0:
			r = append(r, strings.TrimSpace(s[st:i]))
			st = i + 1
		}
	}

	r = append(r, strings.TrimSpace(s[st:]))

	return r
}
