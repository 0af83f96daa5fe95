// Package reql builds database queries as immutable expression trees.
//
// Builder methods never perform I/O: each call captures a new Term wrapping
// the receiver, so built queries are reusable and safe to share across
// goroutines. Execution happens only when a term is handed to the engine.
package reql
