package main

import "database/sql"

// latestHash returns the content hash of the most recently cached
// program, since a viewer points at one cache file produced by the
// most recent sierra-decompile run against it.
func (db *DB) latestHash() (string, error) {
	var hash string
	err := db.QueryRow(queryLatestHash).Scan(&hash)
	return hash, err
}

// Functions returns every function's name, entry offset, and signature.
func (db *DB) Functions(hash string) ([]FunctionSummary, error) {
	rows, err := db.Query(queryFunctions, hash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FunctionSummary
	for rows.Next() {
		var f FunctionSummary
		if err := rows.Scan(&f.Name, &f.Entry, &f.Signature); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if out == nil {
		out = []FunctionSummary{}
	}
	return out, rows.Err()
}

// CFG returns the control-flow graph (blocks + edges) cached for function.
func (db *DB) CFG(hash, function string) (*CFG, error) {
	rows, err := db.Query(queryCFGNodes, hash, function, maxCFGNodes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var nodes []CFGNode
	for rows.Next() {
		var n CFGNode
		var loopHeader int64
		if err := rows.Scan(&n.Index, &n.Start, &n.End, &loopHeader); err != nil {
			return nil, err
		}
		n.IsLoopHeader = loopHeader != 0
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows2, err := db.Query(queryCFGEdges, hash, function)
	if err != nil {
		return nil, err
	}
	defer rows2.Close()
	var edges []CFGEdge
	for rows2.Next() {
		var e CFGEdge
		if err := rows2.Scan(&e.From, &e.To, &e.Kind); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	if nodes == nil {
		nodes = []CFGNode{}
	}
	if edges == nil {
		edges = []CFGEdge{}
	}
	return &CFG{Function: function, Nodes: nodes, Edges: edges}, rows2.Err()
}

// CallGraph returns call edges, restricted to edges touching function
// when function is non-empty.
func (db *DB) CallGraph(hash, function string) ([]CallGraphEdge, error) {
	var rows *sql.Rows
	var err error
	if function == "" {
		rows, err = db.Query(queryCallGraphAll, hash)
	} else {
		rows, err = db.Query(queryCallGraphByFunction, hash, function, function)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CallGraphEdge
	for rows.Next() {
		var e CallGraphEdge
		if err := rows.Scan(&e.Caller, &e.Callee, &e.CallSite); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if out == nil {
		out = []CallGraphEdge{}
	}
	return out, rows.Err()
}

// Findings returns detector findings, restricted to function when non-empty.
func (db *DB) Findings(hash, function string) ([]Finding, error) {
	var rows *sql.Rows
	var err error
	if function == "" {
		rows, err = db.Query(queryFindingsAll, hash)
	} else {
		rows, err = db.Query(queryFindingsByFunction, hash, function)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Finding
	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.Detector, &f.Function, &f.Offset, &f.Message); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if out == nil {
		out = []Finding{}
	}
	return out, rows.Err()
}

// Source returns the decompiled pseudo-source cached for function.
func (db *DB) Source(hash, function string) (string, error) {
	var decompiled sql.NullString
	err := db.QueryRow(querySourceByFunction, hash, function).Scan(&decompiled)
	if err != nil {
		return "", err
	}
	return decompiled.String, nil
}
