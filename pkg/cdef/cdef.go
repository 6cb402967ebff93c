// Package cdef implements the CDEF (consolidated definition) expression
// language: a comma-separated reverse-Polish form compiled into a flat
// token vector with a known maximum stack depth, then evaluated per
// sample index against other curves' iterators.
package cdef

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TokenKind identifies a compiled CDEF operation.
type TokenKind int

const (
	Plus TokenKind = iota
	Minus
	Mul
	Div
	Mod
	If
	Un
	Time
	Le
	Ge
	Constant
	CurveRef
)

// arity is the number of stack operands each TokenKind consumes. Curve
// references and constants push one value and consume none; Time reads
// nothing and short-circuits evaluation.
var arity = map[TokenKind]int{
	Plus: 2, Minus: 2, Mul: 2, Div: 2, Mod: 2,
	If: 3, Un: 1, Le: 2, Ge: 2,
	Time: 0, Constant: 0, CurveRef: 0,
}

// Token is one compiled instruction: an operator, a numeric constant
// (covers UNKN and INF as well as literal numbers), or a reference to
// another curve in the same graph.
type Token struct {
	Kind      TokenKind
	Constant  float64
	CurveName string
}

// Script is a compiled CDEF expression: a flat token vector plus the
// stack-depth highwater mark observed during compilation. Callers
// allocate a scratch stack of MaxStackSize once and reuse it across
// every sample index, avoiding per-call heap allocation.
type Script struct {
	Tokens       []Token
	MaxStackSize int
}

// Compile parses a comma-separated RPN string into a Script. curveExists
// reports whether a bare identifier names a curve in the current graph;
// any token that is neither an operator, a keyword, a strict numeric
// literal, nor a known curve name is a compile error. Compilation also
// rejects any expression whose abstract stack would underflow.
func Compile(source string, curveExists func(name string) bool) (*Script, error) {
	script := &Script{}
	if strings.TrimSpace(source) == "" {
		return script, nil
	}

	tokens := strings.FieldsFunc(source, func(r rune) bool { return r == ',' })
	stackSize := 0

	for _, raw := range tokens {
		tok, argc, err := parseToken(raw, curveExists)
		if err != nil {
			return nil, err
		}
		if stackSize < argc {
			return nil, fmt.Errorf("cdef: %q called with fewer than %d operands in %q", raw, argc, source)
		}
		stackSize -= argc
		stackSize++
		if stackSize > script.MaxStackSize {
			script.MaxStackSize = stackSize
		}
		script.Tokens = append(script.Tokens, tok)
	}

	return script, nil
}

func parseToken(raw string, curveExists func(name string) bool) (Token, int, error) {
	switch raw {
	case "+":
		return Token{Kind: Plus}, arity[Plus], nil
	case "-":
		return Token{Kind: Minus}, arity[Minus], nil
	case "*":
		return Token{Kind: Mul}, arity[Mul], nil
	case "/":
		return Token{Kind: Div}, arity[Div], nil
	case "%":
		return Token{Kind: Mod}, arity[Mod], nil
	case "IF":
		return Token{Kind: If}, arity[If], nil
	case "UN":
		return Token{Kind: Un}, arity[Un], nil
	case "UNKN":
		return Token{Kind: Constant, Constant: math.NaN()}, arity[Constant], nil
	case "INF":
		return Token{Kind: Constant, Constant: math.Inf(1)}, arity[Constant], nil
	case "TIME":
		return Token{Kind: Time}, arity[Time], nil
	case "LE":
		return Token{Kind: Le}, arity[Le], nil
	case "GE":
		return Token{Kind: Ge}, arity[Ge], nil
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return Token{Kind: Constant, Constant: v}, arity[Constant], nil
	}

	if curveExists != nil && curveExists(raw) {
		return Token{Kind: CurveRef, CurveName: raw}, arity[CurveRef], nil
	}

	return Token{}, 0, fmt.Errorf("cdef: unknown token %q", raw)
}

// IteratorLookup resolves a curve reference encountered during Eval to the
// sample it contributes at a given logical index. isSelf is true when the
// reference is to the curve the script is attached to — callers must
// supply the raw (non-CDEF) iterator in that case to avoid recursion, per
// the curve-reference evaluation rule.
type IteratorLookup func(curveName string, isSelf bool) (value float64, ok bool)

// Eval drives the script for one logical sample index. stack must have
// length >= MaxStackSize; callers allocate it once per evaluation context
// and reuse it across indices. selfName identifies the curve this script
// is attached to, for the self-reference rule above.
func (s *Script) Eval(stack []float64, index int, selfName string, lookup IteratorLookup) float64 {
	sp := 0
	for _, tok := range s.Tokens {
		switch tok.Kind {
		case Plus:
			sp--
			stack[sp-1] = stack[sp-1] + stack[sp]
		case Minus:
			sp--
			stack[sp-1] = stack[sp-1] - stack[sp]
		case Mul:
			sp--
			stack[sp-1] = stack[sp-1] * stack[sp]
		case Div:
			sp--
			a, b := stack[sp-1], stack[sp]
			if !isFinite(a) || !isFinite(b) {
				stack[sp-1] = math.NaN()
			} else {
				stack[sp-1] = a / b
			}
		case Mod:
			sp--
			a, b := stack[sp-1], stack[sp]
			if !isFinite(a) || !isFinite(b) {
				stack[sp-1] = math.NaN()
			} else {
				stack[sp-1] = math.Mod(a, b)
			}
		case If:
			sp -= 2
			if stack[sp-1] != 0 {
				stack[sp-1] = stack[sp]
			} else {
				stack[sp-1] = stack[sp+1]
			}
		case Un:
			if math.IsNaN(stack[sp-1]) {
				stack[sp-1] = 1
			} else {
				stack[sp-1] = 0
			}
		case Time:
			// Absolute-time semantics are unused by this renderer.
			return math.NaN()
		case Le:
			sp--
			stack[sp-1] = boolFloat(stack[sp-1] <= stack[sp])
		case Ge:
			sp--
			stack[sp-1] = boolFloat(stack[sp-1] >= stack[sp])
		case Constant:
			stack[sp] = tok.Constant
			sp++
		case CurveRef:
			v, ok := lookup(tok.CurveName, tok.CurveName == selfName)
			if !ok {
				v = math.NaN()
			}
			stack[sp] = v
			sp++
		}
	}
	if sp > 0 {
		return stack[sp-1]
	}
	return math.NaN()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
