package pep508

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/matzehuels/depwalk/pkg/errors"
)

// Marker is a parsed environment marker expression.
// The zero value is not usable - use ParseMarker.
type Marker struct {
	root node
	raw  string
}

// String returns the marker source text.
func (m *Marker) String() string { return m.raw }

// Eval evaluates the marker against env.
// A reference to a variable env does not define yields (false, error with
// code UNSUPPORTED_MARKER): the condition cannot be proven true, so the
// requirement is treated as not applying.
func (m *Marker) Eval(env Environment) (bool, error) {
	return m.root.eval(env)
}

// ParseMarker parses a marker expression such as
//
//	python_version >= "3.9" and (os_name == "posix" or extra == "tls")
//
// Returns a MALFORMED_REQUIREMENT error on syntax errors.
func ParseMarker(s string) (*Marker, error) {
	toks, err := lex(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.orExpr()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, errors.New(errors.ErrCodeMalformedRequirement, "trailing tokens in marker %q", s)
	}
	return &Marker{root: root, raw: s}, nil
}

// =============================================================================
// Lexer
// =============================================================================

type tokKind int

const (
	tokIdent tokKind = iota
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
}

var opTexts = []string{"===", "==", "!=", "<=", ">=", "~=", "<", ">"}

func lex(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '\'' || c == '"':
			end := strings.IndexByte(s[i+1:], byte(c))
			if end < 0 {
				return nil, errors.New(errors.ErrCodeMalformedRequirement, "unterminated string in marker %q", s)
			}
			toks = append(toks, token{tokString, s[i+1 : i+1+end]})
			i += end + 2
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(s) && (unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j])) || s[j] == '_' || s[j] == '.') {
				j++
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		default:
			matched := false
			for _, op := range opTexts {
				if strings.HasPrefix(s[i:], op) {
					toks = append(toks, token{tokOp, op})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return nil, errors.New(errors.ErrCodeMalformedRequirement, "unexpected character %q in marker %q", c, s)
			}
		}
	}
	return toks, nil
}

// =============================================================================
// Parser
// =============================================================================
//
// Grammar (PEP 508 marker subset):
//
//	marker  := and_expr ('or' and_expr)*
//	and_expr:= term ('and' term)*
//	term    := '(' marker ')' | value op value
//	value   := variable | string-literal
//	op      := '==' '!=' '<' '<=' '>' '>=' '~=' '===' 'in' 'not in'

type parser struct {
	toks []token
	pos  int
}

func (p *parser) eof() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() (token, bool) {
	if p.eof() {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) acceptIdent(word string) bool {
	if t, ok := p.peek(); ok && t.kind == tokIdent && t.text == word {
		p.pos++
		return true
	}
	return false
}

func (p *parser) orExpr() (node, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.acceptIdent("or") {
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &boolNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) andExpr() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.acceptIdent("and") {
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &boolNode{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) term() (node, error) {
	if t, ok := p.peek(); ok && t.kind == tokLParen {
		p.pos++
		inner, err := p.orExpr()
		if err != nil {
			return nil, err
		}
		if t, ok := p.peek(); !ok || t.kind != tokRParen {
			return nil, errors.New(errors.ErrCodeMalformedRequirement, "missing closing parenthesis in marker")
		}
		p.pos++
		return inner, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (node, error) {
	left, err := p.value()
	if err != nil {
		return nil, err
	}

	t, ok := p.peek()
	if !ok {
		return nil, errors.New(errors.ErrCodeMalformedRequirement, "marker ends before comparison operator")
	}

	var op string
	switch {
	case t.kind == tokOp:
		op = t.text
		p.pos++
	case t.kind == tokIdent && t.text == "in":
		op = "in"
		p.pos++
	case t.kind == tokIdent && t.text == "not":
		p.pos++
		if !p.acceptIdent("in") {
			return nil, errors.New(errors.ErrCodeMalformedRequirement, "expected 'in' after 'not' in marker")
		}
		op = "not in"
	default:
		return nil, errors.New(errors.ErrCodeMalformedRequirement, "expected comparison operator, got %q", t.text)
	}

	right, err := p.value()
	if err != nil {
		return nil, err
	}
	return &cmpNode{op: op, left: left, right: right}, nil
}

func (p *parser) value() (valNode, error) {
	t, ok := p.peek()
	if !ok {
		return valNode{}, errors.New(errors.ErrCodeMalformedRequirement, "marker ends before value")
	}
	switch t.kind {
	case tokString:
		p.pos++
		return valNode{literal: true, text: t.text}, nil
	case tokIdent:
		if t.text == "and" || t.text == "or" || t.text == "not" || t.text == "in" {
			return valNode{}, errors.New(errors.ErrCodeMalformedRequirement, "keyword %q used as value", t.text)
		}
		p.pos++
		return valNode{text: t.text}, nil
	default:
		return valNode{}, errors.New(errors.ErrCodeMalformedRequirement, "expected value, got %q", t.text)
	}
}

// =============================================================================
// Evaluation
// =============================================================================

type node interface {
	eval(env Environment) (bool, error)
}

type boolNode struct {
	op          string // "and" or "or"
	left, right node
}

func (n *boolNode) eval(env Environment) (bool, error) {
	// No short-circuiting: every comparison is evaluated, so an
	// unsupported variable anywhere in the expression poisons the whole
	// marker. "a or b" with an undefined a fails closed even when b is
	// provably true; the condition as written cannot be proven.
	l, lerr := n.left.eval(env)
	r, rerr := n.right.eval(env)
	if lerr != nil {
		return false, lerr
	}
	if rerr != nil {
		return false, rerr
	}

	switch n.op {
	case "and":
		return l && r, nil
	case "or":
		return l || r, nil
	}
	return false, errors.New(errors.ErrCodeInternal, "unknown boolean op %q", n.op)
}

type valNode struct {
	literal bool   // quoted string vs variable reference
	text    string // literal text or variable name
}

func (v valNode) resolve(env Environment) (string, error) {
	if v.literal {
		return v.text, nil
	}
	val, ok := env.Lookup(v.text)
	if !ok {
		return "", errors.New(errors.ErrCodeUnsupportedMarker, "marker variable %q not defined in environment", v.text)
	}
	return val, nil
}

type cmpNode struct {
	op          string
	left, right valNode
}

func (n *cmpNode) eval(env Environment) (bool, error) {
	l, err := n.left.resolve(env)
	if err != nil {
		return false, err
	}
	r, err := n.right.resolve(env)
	if err != nil {
		return false, err
	}

	switch n.op {
	case "in":
		return strings.Contains(r, l), nil
	case "not in":
		return !strings.Contains(r, l), nil
	case "===":
		return l == r, nil
	case "==":
		return compare(l, r) == 0, nil
	case "!=":
		return compare(l, r) != 0, nil
	case "<":
		return compare(l, r) < 0, nil
	case "<=":
		return compare(l, r) <= 0, nil
	case ">":
		return compare(l, r) > 0, nil
	case ">=":
		return compare(l, r) >= 0, nil
	case "~=":
		return compatibleRelease(l, r), nil
	}
	return false, errors.New(errors.ErrCodeInternal, "unknown comparison op %q", n.op)
}

// compare orders two marker values. Values that both look like dotted
// version numbers ("3.10" vs "3.9") compare numerically segment by
// segment; anything else compares as plain strings. This matches how
// markers are used in practice: version variables against version
// literals, everything else against exact strings.
func compare(a, b string) int {
	av, aok := parseVersion(a)
	bv, bok := parseVersion(b)
	if aok && bok {
		return compareVersions(av, bv)
	}
	return strings.Compare(a, b)
}

// compatibleRelease implements the ~= operator: left ~= right holds when
// left >= right and left matches right with its final segment wildcarded
// (e.g. "3.10.4" ~= "3.10" but not "3.11").
func compatibleRelease(l, r string) bool {
	lv, lok := parseVersion(l)
	rv, rok := parseVersion(r)
	if !lok || !rok || len(rv) < 2 {
		return false
	}
	if compareVersions(lv, rv) < 0 {
		return false
	}
	prefix := rv[:len(rv)-1]
	if len(lv) < len(prefix) {
		return false
	}
	return compareVersions(lv[:len(prefix)], prefix) == 0
}

func parseVersion(s string) ([]int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		nums = append(nums, n)
	}
	return nums, len(nums) > 0
}

func compareVersions(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

// StaticEnv is a fixed variable table implementing [Environment].
// Useful for tests and for evaluating markers against a recorded
// environment snapshot.
type StaticEnv map[string]string

// Lookup returns the value for name.
func (e StaticEnv) Lookup(name string) (string, bool) {
	v, ok := e[name]
	return v, ok
}

// Ensure StaticEnv implements Environment.
var _ Environment = StaticEnv(nil)
