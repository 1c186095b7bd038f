// Package nodelink renders dependency graphs as Graphviz DOT documents.
//
// Output is byte-deterministic: nodes and edges are emitted in sorted
// order, so the same graph always serializes to the same document
// regardless of how it was constructed.
package nodelink
