package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/riskscope/riskscope/internal/utils"
	"github.com/riskscope/riskscope/pkg/query"
	"github.com/riskscope/riskscope/pkg/report"
)

func (s *Server) params(r *http.Request) (query.Params, error) {
	q := r.URL.Query()
	filter, err := query.ParseFilter(q.Get("filter"))
	if err != nil {
		return query.Params{}, err
	}
	order, err := query.ParseSort(q.Get("sort"))
	if err != nil {
		return query.Params{}, err
	}
	return query.Params{Filter: filter, Search: q.Get("search"), Sort: order, Location: s.Location}, nil
}

// refresh picks up changes made by other processes since the last request.
func (s *Server) refresh(r *http.Request) {
	s.History.Load(r.Context())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, err := s.params(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.refresh(r)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(query.Entries(s.History.Records(), p))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.refresh(r)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(query.Compute(s.History.Records()))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, err := s.params(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.refresh(r)
	records := query.View(s.History.Records(), p)

	name := report.FileName(report.HistoryPrefix, time.Now(), "csv")
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := report.WriteCSV(w, records, s.Location); err != nil {
		utils.Log.Warnf("CSV export failed: %v", err)
	}
}

func (s *Server) position(w http.ResponseWriter, r *http.Request) (int, bool) {
	pos, err := strconv.Atoi(r.PathValue("pos"))
	if err != nil || pos < 0 {
		http.Error(w, "position must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return pos, true
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.position(w, r)
	if !ok {
		return
	}
	s.refresh(r)
	result, found := s.History.Get(pos)
	if !found {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	doc := report.BuildDocument(result, s.Schema, s.Location)

	switch r.URL.Query().Get("format") {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		fmt.Fprint(w, report.Markdown(doc))
	default:
		http.Error(w, "format must be json or markdown", http.StatusBadRequest)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.position(w, r)
	if !ok {
		return
	}
	if s.Lock != nil {
		if err := s.Lock.Lock(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		defer s.Lock.Unlock()
	}
	s.refresh(r)

	if _, found := s.History.Get(pos); !found {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	if err := s.History.Remove(r.Context(), pos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
