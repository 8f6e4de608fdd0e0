// Package varloc defines the stable lexical addresses the pre-parser
// assigns to every declaration, and the two kinds of binding a name can
// resolve to: an addressable Target or a statically-monomorphized Direct
// function (spec.md §3, "PreVar").
package varloc

import (
	"fmt"

	"github.com/sourceror/compiler/api"
)

// Id uniquely identifies a lexical location. Depth 0 is module scope;
// Index is the declaration's order within that scope. Lexicographic order
// (Depth first, then Index) is the ordering the usage lattice relies on.
type Id struct {
	Depth uint32
	Index uint32
}

func (v Id) String() string {
	return fmt.Sprintf("{depth:%d,index:%d}", v.Depth, v.Index)
}

// Less implements the lexicographic order over Ids.
func (v Id) Less(other Id) bool {
	if v.Depth != other.Depth {
		return v.Depth < other.Depth
	}
	return v.Index < other.Index
}

// Signature is the parameter type vector of a direct-function overload.
type Signature struct {
	Params []api.VarType
}

// Equal reports whether two signatures have the same arity and
// parameter types, in order.
func (s Signature) Equal(other Signature) bool {
	if len(s.Params) != len(other.Params) {
		return false
	}
	for i, p := range s.Params {
		if !p.Equal(other.Params[i]) {
			return false
		}
	}
	return true
}

// Overload is one arity/signature-distinguished entry of a Direct
// function's overload set: its signature and the AST-level identity
// (FuncIdx) codegen uses to find its body.
type Overload struct {
	Signature Signature
	FuncIdx   int
}

// Kind discriminates the two PreVar variants.
type Kind byte

const (
	// KindTarget is an addressable variable binding with a stable
	// location id.
	KindTarget Kind = iota
	// KindDirect is a statically-monomorphized, non-capturing,
	// potentially-overloaded function binding.
	KindDirect
)

// PreVar is either Target(Id) or Direct(overload set). Exactly one of
// TargetID / Overloads is meaningful, discriminated by Kind.
type PreVar struct {
	Kind     Kind
	TargetID Id
	// Overloads holds every direct-function overload registered under
	// this name at this scope. Only meaningful when Kind == KindDirect.
	Overloads []Overload
}

// Target constructs a Target PreVar at id.
func Target(id Id) PreVar {
	return PreVar{Kind: KindTarget, TargetID: id}
}

// Direct constructs a single-overload Direct PreVar.
func Direct(sig Signature, funcIdx int) PreVar {
	return PreVar{Kind: KindDirect, Overloads: []Overload{{Signature: sig, FuncIdx: funcIdx}}}
}

// IsTarget reports whether v is a Target binding.
func (v PreVar) IsTarget() bool { return v.Kind == KindTarget }

// IsDirect reports whether v is a Direct binding.
func (v PreVar) IsDirect() bool { return v.Kind == KindDirect }

// FindOverload returns the overload matching sig, if one of v's
// overloads has an identical signature.
func (v PreVar) FindOverload(sig Signature) (Overload, bool) {
	for _, o := range v.Overloads {
		if o.Signature.Equal(sig) {
			return o, true
		}
	}
	return Overload{}, false
}

// WithOverload returns a copy of v with o appended to its overload set.
// It panics (ICE) if v is not Direct.
func (v PreVar) WithOverload(o Overload) PreVar {
	if v.Kind != KindDirect {
		api.Raise("varloc.WithOverload", "cannot extend overload set of a non-Direct PreVar")
	}
	next := make([]Overload, len(v.Overloads), len(v.Overloads)+1)
	copy(next, v.Overloads)
	next = append(next, o)
	return PreVar{Kind: KindDirect, Overloads: next}
}

// MergeOverload adds o to v's overload set, used when a second
// FunctionDeclaration under the same direct name introduces a
// distinctly-signatured overload. It reports ok=false (no change made)
// if v is not Direct, or if an overload with an identical signature is
// already registered.
func (v PreVar) MergeOverload(o Overload) (merged PreVar, ok bool) {
	if v.Kind != KindDirect {
		return v, false
	}
	if _, dup := v.FindOverload(o.Signature); dup {
		return v, false
	}
	return v.WithOverload(o), true
}
