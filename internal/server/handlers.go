package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/KaramelBytes/dashloom/internal/assets"
	"github.com/KaramelBytes/dashloom/internal/dashboard"
	"github.com/KaramelBytes/dashloom/internal/pipeline"
	"github.com/KaramelBytes/dashloom/internal/table"
)

// Query parameters on /rows that are not filters.
const (
	paramLimit  = "limit"
	paramOffset = "offset"
)

// DatasetInfo describes one loaded dataset.
type DatasetInfo struct {
	Name        string            `json:"name"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Source      string            `json:"source"`
	Rows        int               `json:"rows"`
	Columns     []table.Column    `json:"columns"`
	Filters     []pipeline.Filter `json:"filters"`
	Violations  int               `json:"violations"`
}

// RowsResponse is a page of the filtered view.
type RowsResponse struct {
	Dataset   string                   `json:"dataset"`
	Selection map[string]string        `json:"selection"`
	Total     int                      `json:"total"`
	Matched   int                      `json:"matched"`
	Offset    int                      `json:"offset"`
	Columns   []table.Column           `json:"columns"`
	Data      []map[string]table.Value `json:"data"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	p := problemFor(err, r)
	if p.Status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	render.Render(w, r, p)
}

func (s *Server) dataset(r *http.Request) (*dashboard.Dataset, error) {
	name := chi.URLParam(r, "name")
	d, ok := s.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dashboard.ErrUnknownDataset, name)
	}
	return d, nil
}

// selection reads every query parameter except the reserved ones as a filter.
func selection(r *http.Request, reserved ...string) pipeline.Selection {
	skip := map[string]bool{}
	for _, k := range reserved {
		skip[k] = true
	}
	m := map[string]string{}
	for k, vs := range r.URL.Query() {
		if skip[k] || len(vs) == 0 {
			continue
		}
		m[k] = vs[len(vs)-1]
	}
	return pipeline.NewSelection(m)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{"status": "ok", "datasets": s.names})
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	out := make([]DatasetInfo, 0, len(s.names))
	for _, n := range s.names {
		d := s.datasets[n]
		def := d.Definition()
		out = append(out, DatasetInfo{
			Name:        def.Name,
			Title:       def.Title,
			Description: def.Description,
			Source:      d.Source(),
			Rows:        d.Table().Len(),
			Columns:     d.Table().Schema().Columns(),
			Filters:     def.Filters,
			Violations:  len(d.Violations()),
		})
	}
	render.JSON(w, r, out)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	d, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	opts, err := d.Options()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"dataset": d.Definition().Name, "filters": opts})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rep, err := d.Refresh(r.Context(), selection(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, rep)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	d, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intParam(r, paramLimit, 100)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := intParam(r, paramOffset, 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit = min(limit, s.rowLimit)

	sel := selection(r, paramLimit, paramOffset)
	view, err := d.View(sel)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recs := view.Records()
	start := min(offset, len(recs))
	end := min(start+limit, len(recs))
	page, err := table.New(view.Schema(), recs[start:end])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	effective := make(map[string]string, len(d.Definition().Filters))
	for _, f := range d.Definition().Filters {
		effective[f.Name] = sel.Get(f.Name)
	}
	render.JSON(w, r, RowsResponse{
		Dataset:   d.Definition().Name,
		Selection: effective,
		Total:     d.Table().Len(),
		Matched:   view.Len(),
		Offset:    start,
		Columns:   view.Schema().Columns(),
		Data:      page.Maps(),
	})
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	a, err := assets.Lookup(s.assetsDir, name)
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			s.log.WithField("asset", name).Info("asset not available")
		}
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", a.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	_, _ = w.Write(a.Data)
}

func intParam(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", pipeline.ErrInvalidSelection, key, raw)
	}
	return n, nil
}
