package main

import "database/sql"

// DB wraps *sql.DB and provides query helpers over an internal/store
// analysis cache file (SPEC_FULL.md §4 "Viewer server").
type DB struct {
	*sql.DB
}

// NewDB returns a DB wrapper.
func NewDB(db *sql.DB) *DB {
	return &DB{DB: db}
}

// FunctionSummary is one row of the /api/functions listing.
type FunctionSummary struct {
	Name      string `json:"name"`
	Entry     int64  `json:"entry"`
	Signature string `json:"signature"`
}

// CFGNode is one basic block in a /api/cfg/{function} response.
type CFGNode struct {
	Index        int   `json:"index"`
	Start        int64 `json:"start"`
	End          int64 `json:"end"`
	IsLoopHeader bool  `json:"is_loop_header"`
}

// CFGEdge is one control-flow edge in a /api/cfg/{function} response.
type CFGEdge struct {
	From int    `json:"from"`
	To   int    `json:"to"`
	Kind string `json:"kind"`
}

// CFG is the unified response format for /api/cfg/{function}.
type CFG struct {
	Function string    `json:"function"`
	Nodes    []CFGNode `json:"nodes"`
	Edges    []CFGEdge `json:"edges"`
}

// CallGraphEdge is one inter-procedural call edge (spec.md §4.5).
type CallGraphEdge struct {
	Caller   string `json:"caller"`
	Callee   string `json:"callee"`
	CallSite int64  `json:"call_site"`
}

// Finding is one detector finding (spec.md §4.6).
type Finding struct {
	Detector string `json:"detector"`
	Function string `json:"function"`
	Offset   int64  `json:"offset"`
	Message  string `json:"message"`
}

// Source is the decompiled pseudo-source for one function (spec.md §4.3).
type Source struct {
	Function   string `json:"function"`
	Decompiled string `json:"decompiled"`
}

const maxCFGNodes = 2000
