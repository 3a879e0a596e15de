package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/KaramelBytes/dashloom/internal/assets"
	"github.com/KaramelBytes/dashloom/internal/dashboard"
	"github.com/KaramelBytes/dashloom/internal/pipeline"
	"github.com/KaramelBytes/dashloom/internal/table"
)

// Problem types, RFC 7807 style.
const (
	TypeInvalidFilter = "/errors/invalid-filter"
	TypeNotFound      = "/errors/not-found"
	TypeTimeout       = "/errors/timeout"
	TypeInternal      = "/errors/internal"
)

// Problem is the JSON body of every error response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Render implements render.Renderer.
func (p *Problem) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, p.Status)
	return nil
}

func problemFor(err error, r *http.Request) *Problem {
	p := &Problem{Instance: r.URL.Path, Detail: err.Error()}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		p.Type, p.Title, p.Status = TypeTimeout, "Request Timeout", http.StatusGatewayTimeout
	case errors.Is(err, pipeline.ErrInvalidSelection),
		errors.Is(err, table.ErrUnknownColumn),
		errors.Is(err, assets.ErrInvalidName):
		p.Type, p.Title, p.Status = TypeInvalidFilter, "Invalid Request", http.StatusBadRequest
	case errors.Is(err, dashboard.ErrUnknownDataset):
		p.Type, p.Title, p.Status = TypeNotFound, "Dataset Not Found", http.StatusNotFound
	case errors.Is(err, assets.ErrNotFound):
		p.Type, p.Title, p.Status = TypeNotFound, "Asset Not Found", http.StatusNotFound
	default:
		p.Type, p.Title, p.Status = TypeInternal, "Internal Error", http.StatusInternalServerError
	}
	return p
}
