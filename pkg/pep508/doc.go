// Package pep508 parses Python dependency requirement strings and
// evaluates their environment markers.
//
// A requirement string follows the PEP 508 grammar:
//
//	name[extra1,extra2] (>=1.0,<2.0); python_version < "3.12" and os_name == "posix"
//
// Only the parts depwalk needs are modeled: the target package name, the
// requested extras, and the environment marker. Version specifiers are
// validated syntactically but otherwise ignored, since depwalk inspects
// already-resolved installed packages.
//
// # Marker evaluation
//
// Markers are parsed into an expression tree and evaluated against an
// [Environment] - never interpreted dynamically. A marker that references
// a variable the environment does not define evaluates to "does not
// apply" (fail-closed): an unprovable condition must not introduce an
// edge. Callers can distinguish that case via the UNSUPPORTED_MARKER
// error code and log it.
package pep508
