// Package ir provides the language-neutral program model checked for
// allocation effects.
//
// This package contains type definitions and serialization only. Front-ends
// (CUE descriptions, Java source) produce an ir.Program; the resolver and
// checker consume it. ir imports nothing internal.
//
// Key design constraints:
//   - Method identity is Owner.name(p1,p2); constructors are named <init>
//   - Body nodes are a closed tagged set (call, new, new_array, local, block, class)
//   - All JSON tags use snake_case
//   - Content hashes use RFC 8785 canonical JSON with domain separation
package ir
