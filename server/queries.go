package main

// SQL constants aligned with internal/store's schema (internal/store/store.go):
// programs(hash, source), functions(hash, name, entry, signature, decompiled),
// nodes(hash, function, block_index, start, end, is_loop_header),
// edges(hash, function, from_block, to_block, kind),
// callgraph_edges(hash, caller, callee, call_site),
// findings(hash, detector, function, offset, message).

const queryLatestHash = `SELECT hash FROM programs ORDER BY rowid DESC LIMIT 1`

const queryFunctions = `
SELECT name, entry, signature FROM functions WHERE hash = ? ORDER BY name
`

const queryCFGNodes = `
SELECT block_index, start, end, is_loop_header FROM nodes
WHERE hash = ? AND function = ? ORDER BY block_index LIMIT ?
`

const queryCFGEdges = `
SELECT from_block, to_block, kind FROM edges
WHERE hash = ? AND function = ? ORDER BY from_block
`

const queryCallGraphAll = `
SELECT caller, callee, call_site FROM callgraph_edges WHERE hash = ? ORDER BY caller, callee
`

const queryCallGraphByFunction = `
SELECT caller, callee, call_site FROM callgraph_edges
WHERE hash = ? AND (caller = ? OR callee = ?) ORDER BY caller, callee
`

const queryFindingsAll = `
SELECT detector, function, offset, message FROM findings WHERE hash = ? ORDER BY function, offset
`

const queryFindingsByFunction = `
SELECT detector, function, offset, message FROM findings
WHERE hash = ? AND function = ? ORDER BY offset
`

const querySourceByFunction = `
SELECT decompiled FROM functions WHERE hash = ? AND name = ?
`
