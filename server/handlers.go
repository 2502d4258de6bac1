package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *App) handleFunctions(w http.ResponseWriter, r *http.Request) {
	hash, err := a.db.latestHash()
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, []FunctionSummary{})
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	fns, err := a.db.Functions(hash)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, fns)
}

func (a *App) handleCFG(w http.ResponseWriter, r *http.Request) {
	function := chi.URLParam(r, "function")
	hash, err := a.db.latestHash()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	cfg, err := a.db.CFG(hash, function)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(cfg.Nodes) == 0 {
		http.Error(w, "function not found or has no cached CFG", http.StatusNotFound)
		return
	}
	writeJSON(w, cfg)
}

func (a *App) handleCallGraph(w http.ResponseWriter, r *http.Request) {
	function := r.URL.Query().Get("function")
	hash, err := a.db.latestHash()
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, []CallGraphEdge{})
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	edges, err := a.db.CallGraph(hash, function)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, edges)
}

func (a *App) handleFindings(w http.ResponseWriter, r *http.Request) {
	function := r.URL.Query().Get("function")
	hash, err := a.db.latestHash()
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, []Finding{})
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	findings, err := a.db.Findings(hash, function)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, findings)
}

func (a *App) handleSource(w http.ResponseWriter, r *http.Request) {
	function := chi.URLParam(r, "function")
	hash, err := a.db.latestHash()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	decompiled, err := a.db.Source(hash, function)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "function not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, Source{Function: function, Decompiled: decompiled})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
