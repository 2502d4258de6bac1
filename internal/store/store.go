// Package store implements the analysis cache (SPEC_FULL.md §4
// "Supplemented features"): a SQLite file, keyed by a content hash of
// the input, that persists a parsed Program's functions, CFG blocks and
// edges, decompiled listings, detector findings, and symbolic-execution
// models. It is the Sierra-domain retarget of the teacher's WriteDB, cut
// down from its Go-source dashboard schema to the handful of tables this
// toolkit's data model needs.
package store

import (
	"fmt"
	"os"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/FuzzingLabs/sierra-analyzer/internal/detect"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierraerr"
	"github.com/FuzzingLabs/sierra-analyzer/internal/symex"
)

// Cache wraps a single SQLite connection to an analysis cache file.
type Cache struct {
	conn *sqlite.Conn
}

// Open creates (if needed) and opens a cache file, ensuring its schema
// exists.
func Open(path string) (*Cache, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode = WAL", nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := createTables(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Cache{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Cache) Close() error { return c.conn.Close() }

func createTables(conn *sqlite.Conn) error {
	ddl := `
CREATE TABLE IF NOT EXISTS programs (
    hash TEXT PRIMARY KEY,
    source TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS functions (
    hash TEXT NOT NULL,
    name TEXT NOT NULL,
    entry INTEGER NOT NULL,
    signature TEXT NOT NULL,
    decompiled TEXT,
    PRIMARY KEY (hash, name)
);

CREATE TABLE IF NOT EXISTS nodes (
    hash TEXT NOT NULL,
    function TEXT NOT NULL,
    block_index INTEGER NOT NULL,
    start INTEGER NOT NULL,
    end INTEGER NOT NULL,
    is_loop_header INTEGER NOT NULL,
    PRIMARY KEY (hash, function, block_index)
);

CREATE TABLE IF NOT EXISTS edges (
    hash TEXT NOT NULL,
    function TEXT NOT NULL,
    from_block INTEGER NOT NULL,
    to_block INTEGER NOT NULL,
    kind TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS findings (
    hash TEXT NOT NULL,
    detector TEXT NOT NULL,
    function TEXT NOT NULL,
    offset INTEGER NOT NULL,
    message TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS callgraph_edges (
    hash TEXT NOT NULL,
    caller TEXT NOT NULL,
    callee TEXT NOT NULL,
    call_site INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS symbolic_models (
    hash TEXT NOT NULL,
    function TEXT NOT NULL,
    params TEXT NOT NULL,
    ret TEXT,
    partial INTEGER NOT NULL,
    reason TEXT
);
`
	return sqlitex.ExecuteScript(conn, ddl, nil)
}

// Has reports whether a program with the given content hash is already
// cached, letting a caller skip re-parsing and re-analysing an unchanged
// input file.
func (c *Cache) Has(hash string) (bool, error) {
	found := false
	err := sqlitex.ExecuteTransient(c.conn, `SELECT 1 FROM programs WHERE hash = ?`,
		&sqlitex.ExecOptions{
			Args: []any{hash},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				return nil
			},
		})
	return found, err
}

// StoreProgram persists a program's raw source text keyed by hash,
// plus every function's signature, decompiled listing, CFG blocks, and
// edges.
func StoreProgram(c *Cache, hash, source string, prog *sierra.Program) error {
	endFn, err := sqlitex.ImmediateTransaction(c.conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	if err = sqlitex.ExecuteTransient(c.conn, `INSERT OR REPLACE INTO programs (hash, source) VALUES (?, ?)`,
		&sqlitex.ExecOptions{Args: []any{hash, source}}); err != nil {
		return err
	}

	for _, fn := range prog.Functions {
		if err = storeFunction(c.conn, hash, fn); err != nil {
			return err
		}
		if fn.CFG != nil {
			if err = storeCFG(c.conn, hash, fn.CFG); err != nil {
				return err
			}
		}
	}
	return nil
}

func storeFunction(conn *sqlite.Conn, hash string, fn *sierra.Function) error {
	sig := fmt.Sprintf("(%d params) -> (%d rets)", len(fn.Params), len(fn.RetTypes))
	var decompiled string
	for _, l := range fn.Decompiled {
		decompiled += l.Text + "\n"
	}
	return sqlitex.ExecuteTransient(conn,
		`INSERT OR REPLACE INTO functions (hash, name, entry, signature, decompiled) VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{hash, fn.Name, int64(fn.Entry), sig, decompiled}})
}

func storeCFG(conn *sqlite.Conn, hash string, g *sierra.ControlFlowGraph) error {
	for _, b := range g.Blocks {
		loopHeader := int64(0)
		if b.IsLoopHeader {
			loopHeader = 1
		}
		if err := sqlitex.ExecuteTransient(conn,
			`INSERT OR REPLACE INTO nodes (hash, function, block_index, start, end, is_loop_header) VALUES (?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{hash, g.FuncName, int64(b.Index), int64(b.Start), int64(b.End), loopHeader}}); err != nil {
			return err
		}
		for _, e := range b.Succs {
			if err := sqlitex.ExecuteTransient(conn,
				`INSERT INTO edges (hash, function, from_block, to_block, kind) VALUES (?, ?, ?, ?, ?)`,
				&sqlitex.ExecOptions{Args: []any{hash, g.FuncName, int64(b.Index), int64(e.Target), e.Kind.String()}}); err != nil {
				return err
			}
		}
	}
	return nil
}

// StoreCallGraph persists the inter-procedural call graph (spec.md §4.5),
// backing the viewer server's /api/callgraph endpoint without requiring
// it to rebuild the graph itself.
func StoreCallGraph(c *Cache, hash string, cg *sierra.CallGraph) error {
	endFn, err := sqlitex.ImmediateTransaction(c.conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	for _, e := range cg.Edges {
		if err = sqlitex.ExecuteTransient(c.conn,
			`INSERT INTO callgraph_edges (hash, caller, callee, call_site) VALUES (?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{hash, e.Caller, e.Callee, int64(e.CallSite)}}); err != nil {
			return err
		}
	}
	return nil
}

// StoreFindings persists one detector run's findings.
func StoreFindings(c *Cache, hash string, findings []detect.Finding) error {
	endFn, err := sqlitex.ImmediateTransaction(c.conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	for _, f := range findings {
		if err = sqlitex.ExecuteTransient(c.conn,
			`INSERT INTO findings (hash, detector, function, offset, message) VALUES (?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{hash, f.Detector, f.Function, int64(f.Offset), f.Message}}); err != nil {
			return err
		}
	}
	return nil
}

// StoreSymbolicModels persists one function's symbolic-execution models.
func StoreSymbolicModels(c *Cache, hash, function string, models []symex.Model) error {
	endFn, err := sqlitex.ImmediateTransaction(c.conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	for _, m := range models {
		params := ""
		for i, p := range m.Params {
			if i > 0 {
				params += ","
			}
			params += p.String()
		}
		ret := ""
		for i, r := range m.Return {
			if i > 0 {
				ret += ","
			}
			ret += r.String()
		}
		partial := int64(0)
		reason := ""
		if m.Partial {
			partial = 1
			if m.Reason != nil {
				reason = m.Reason.Error()
			}
		}
		if err = sqlitex.ExecuteTransient(c.conn,
			`INSERT INTO symbolic_models (hash, function, params, ret, partial, reason) VALUES (?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{hash, function, params, ret, partial, reason}}); err != nil {
			return err
		}
	}
	return nil
}

// ReadSource reads a file and is kept here (rather than inline at call
// sites) so every caller goes through one IOError-wrapping path.
func ReadSource(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", &sierraerr.IOError{Op: "read " + path, Err: err}
	}
	return string(b), nil
}
