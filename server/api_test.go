package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "modernc.org/sqlite"
)

// setupTestDB creates an in-memory SQLite DB with the internal/store
// schema and one cached program's worth of test data.
func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
	CREATE TABLE programs (hash TEXT PRIMARY KEY, source TEXT);
	CREATE TABLE functions (hash TEXT, name TEXT, entry INTEGER, signature TEXT, decompiled TEXT);
	CREATE TABLE nodes (hash TEXT, function TEXT, block_index INTEGER, start INTEGER, end INTEGER, is_loop_header INTEGER);
	CREATE TABLE edges (hash TEXT, function TEXT, from_block INTEGER, to_block INTEGER, kind TEXT);
	CREATE TABLE callgraph_edges (hash TEXT, caller TEXT, callee TEXT, call_site INTEGER);
	CREATE TABLE findings (hash TEXT, detector TEXT, function TEXT, offset INTEGER, message TEXT);
	`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}

	const hash = "abc123"
	_, _ = db.Exec(`INSERT INTO programs VALUES (?, ?)`, hash, "type felt252 = felt252;")
	_, _ = db.Exec(`INSERT INTO functions VALUES (?, 'pkg::caller', 0, '(1 params) -> (1 rets)', 'v1 = v0 + v0;\nreturn v1;\n')`, hash)
	_, _ = db.Exec(`INSERT INTO functions VALUES (?, 'pkg::callee', 2, '(1 params) -> (1 rets)', 'return v0;\n')`, hash)
	_, _ = db.Exec(`INSERT INTO nodes VALUES (?, 'pkg::caller', 0, 0, 2, 0)`, hash)
	_, _ = db.Exec(`INSERT INTO edges VALUES (?, 'pkg::caller', 0, 1, 'fallthrough')`, hash)
	_, _ = db.Exec(`INSERT INTO callgraph_edges VALUES (?, 'pkg::caller', 'pkg::callee', 0)`, hash)
	_, _ = db.Exec(`INSERT INTO findings VALUES (?, 'felt_overflow', 'pkg::caller', 0, 'unchecked felt252_add result')`, hash)

	return db
}

func TestAPI_Functions_Success(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db, "")
	req := httptest.NewRequest(http.MethodGet, "/api/functions", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/functions: want 200, got %d", rec.Code)
	}
	var fns []FunctionSummary
	if err := json.NewDecoder(rec.Body).Decode(&fns); err != nil {
		t.Fatalf("decode functions: %v", err)
	}
	if len(fns) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(fns))
	}
	if fns[0].Name != "pkg::callee" && fns[0].Name != "pkg::caller" {
		t.Errorf("unexpected function: %+v", fns[0])
	}
}

func TestAPI_CFG_Success(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db, "")
	req := httptest.NewRequest(http.MethodGet, "/api/cfg/pkg::caller", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/cfg/pkg::caller: want 200, got %d", rec.Code)
	}
	var cfg CFG
	if err := json.NewDecoder(rec.Body).Decode(&cfg); err != nil {
		t.Fatalf("decode cfg: %v", err)
	}
	if len(cfg.Nodes) != 1 {
		t.Errorf("expected 1 block, got %d", len(cfg.Nodes))
	}
	if len(cfg.Edges) != 1 {
		t.Errorf("expected 1 edge, got %d", len(cfg.Edges))
	}
}

func TestAPI_CFG_NotFound(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db, "")
	req := httptest.NewRequest(http.MethodGet, "/api/cfg/pkg::nonexistent", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /api/cfg/pkg::nonexistent: want 404, got %d", rec.Code)
	}
}

func TestAPI_CallGraph_All(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db, "")
	req := httptest.NewRequest(http.MethodGet, "/api/callgraph", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/callgraph: want 200, got %d", rec.Code)
	}
	var edges []CallGraphEdge
	if err := json.NewDecoder(rec.Body).Decode(&edges); err != nil {
		t.Fatalf("decode callgraph: %v", err)
	}
	if len(edges) != 1 || edges[0].Caller != "pkg::caller" || edges[0].Callee != "pkg::callee" {
		t.Errorf("unexpected call graph: %+v", edges)
	}
}

func TestAPI_CallGraph_FilteredByFunction(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db, "")
	req := httptest.NewRequest(http.MethodGet, "/api/callgraph?function=pkg::callee", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	var edges []CallGraphEdge
	if err := json.NewDecoder(rec.Body).Decode(&edges); err != nil {
		t.Fatalf("decode callgraph: %v", err)
	}
	if len(edges) != 1 {
		t.Errorf("expected 1 edge touching pkg::callee, got %d", len(edges))
	}
}

func TestAPI_Findings_Success(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db, "")
	req := httptest.NewRequest(http.MethodGet, "/api/findings", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/findings: want 200, got %d", rec.Code)
	}
	var findings []Finding
	if err := json.NewDecoder(rec.Body).Decode(&findings); err != nil {
		t.Fatalf("decode findings: %v", err)
	}
	if len(findings) != 1 || findings[0].Detector != "felt_overflow" {
		t.Errorf("unexpected findings: %+v", findings)
	}
}

func TestAPI_Source_Success(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db, "")
	req := httptest.NewRequest(http.MethodGet, "/api/source/pkg::caller", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/source/pkg::caller: want 200, got %d", rec.Code)
	}
	var src Source
	if err := json.NewDecoder(rec.Body).Decode(&src); err != nil {
		t.Fatalf("decode source: %v", err)
	}
	if src.Function != "pkg::caller" || src.Decompiled == "" {
		t.Errorf("unexpected source response: %+v", src)
	}
}

func TestAPI_Source_NotFound(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db, "")
	req := httptest.NewRequest(http.MethodGet, "/api/source/pkg::missing", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /api/source/pkg::missing: want 404, got %d", rec.Code)
	}
}

func TestAPI_CORS(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db, "")
	req := httptest.NewRequest(http.MethodGet, "/api/functions", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("CORS Access-Control-Allow-Origin: want *, got %q", origin)
	}
}

func TestAPI_ContentType(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db, "")
	req := httptest.NewRequest(http.MethodGet, "/api/functions", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	ct := rec.Header().Get("Content-Type")
	if ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type: want application/json; charset=utf-8, got %q", ct)
	}
}
