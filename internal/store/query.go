package store

import (
	"encoding/json"
	"strings"

	"github.com/peerdoc/peerdoc/internal/model"
)

// The query node variants (spec §9 Design Notes): the translation from a
// MongoDB-like query language to this tree, and from this tree to a
// concrete backend filter, are both external-translator concerns out of
// scope here. Match below is a minimal in-memory evaluator good enough to
// exercise FindDocuments in tests without a real translator.

type And struct{ Left, Right QueryNode }
type Or struct{ Left, Right QueryNode }
type Eq struct {
	Field string
	Value any
}
type Neq struct {
	Field string
	Value any
}
type Gt struct {
	Field string
	Value float64
}
type Gte struct {
	Field string
	Value float64
}
type Lt struct {
	Field string
	Value float64
}
type Lte struct {
	Field string
	Value float64
}
type Contains struct {
	Field string
	Text  string
}

func (And) queryNode()      {}
func (Or) queryNode()       {}
func (Eq) queryNode()       {}
func (Neq) queryNode()      {}
func (Gt) queryNode()       {}
func (Gte) queryNode()      {}
func (Lt) queryNode()       {}
func (Lte) queryNode()      {}
func (Contains) queryNode() {}

// Match evaluates query against doc's JSON payload.
func Match(query QueryNode, doc model.Document) bool {
	if doc.Tombstone {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(doc.Data, &fields); err != nil {
		return false
	}
	return evaluate(query, fields)
}

func evaluate(node QueryNode, fields map[string]any) bool {
	switch n := node.(type) {
	case And:
		return evaluate(n.Left, fields) && evaluate(n.Right, fields)
	case Or:
		return evaluate(n.Left, fields) || evaluate(n.Right, fields)
	case Eq:
		return compareEqual(fields[n.Field], n.Value)
	case Neq:
		return !compareEqual(fields[n.Field], n.Value)
	case Gt:
		v, ok := numberOf(fields[n.Field])
		return ok && v > n.Value
	case Gte:
		v, ok := numberOf(fields[n.Field])
		return ok && v >= n.Value
	case Lt:
		v, ok := numberOf(fields[n.Field])
		return ok && v < n.Value
	case Lte:
		v, ok := numberOf(fields[n.Field])
		return ok && v <= n.Value
	case Contains:
		s, ok := fields[n.Field].(string)
		return ok && strings.Contains(s, n.Text)
	default:
		return false
	}
}

func compareEqual(a, b any) bool {
	af, aok := numberOf(a)
	bf, bok := numberOf(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func numberOf(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
