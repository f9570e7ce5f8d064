package manager

import (
	"go.uber.org/zap"

	"maintenance-panel-backend/internal/metrics"
	"maintenance-panel-backend/internal/model"
	"maintenance-panel-backend/internal/store"
)

// Registry holds one manager per entity kind, in dashboard tab order.
type Registry struct {
	Clients  *Manager[model.Client]
	Machines *Manager[model.Machine]
	Reports  *Manager[model.Report]
	Paints   *Manager[model.Paint]
	Solvents *Manager[model.Solvent]

	resources []Resource
}

// NewRegistry builds the five managers over s.
func NewRegistry(s *store.Store, m *metrics.Metrics, logger *zap.Logger) (*Registry, error) {
	var (
		r   Registry
		err error
	)
	if r.Clients, err = New[model.Client](s, ClientKind, m, logger); err != nil {
		return nil, err
	}
	if r.Machines, err = New[model.Machine](s, MachineKind, m, logger); err != nil {
		return nil, err
	}
	if r.Reports, err = New[model.Report](s, ReportKind, m, logger); err != nil {
		return nil, err
	}
	if r.Paints, err = New[model.Paint](s, PaintKind, m, logger); err != nil {
		return nil, err
	}
	if r.Solvents, err = New[model.Solvent](s, SolventKind, m, logger); err != nil {
		return nil, err
	}
	r.resources = []Resource{r.Clients, r.Machines, r.Reports, r.Paints, r.Solvents}
	return &r, nil
}

// Resources lists every manager in tab order.
func (r *Registry) Resources() []Resource {
	return r.resources
}

// Resource returns the manager of a collection.
func (r *Registry) Resource(collection string) (Resource, bool) {
	for _, res := range r.resources {
		if res.Kind().Collection == collection {
			return res, true
		}
	}
	return nil, false
}
