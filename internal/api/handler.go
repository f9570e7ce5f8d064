package api

import (
	"time"

	"go.uber.org/zap"

	"maintenance-panel-backend/config"
	"maintenance-panel-backend/internal/identity"
	"maintenance-panel-backend/internal/manager"
	"maintenance-panel-backend/internal/metrics"
	"maintenance-panel-backend/internal/mw"
	"maintenance-panel-backend/internal/store"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Server      config.ServerConfig
	Store       *store.Store
	Registry    *manager.Registry
	Attachments *manager.Attachments
	Identity    identity.Provider
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// Handler holds shared dependencies for the panel and API handlers.
type Handler struct {
	server      config.ServerConfig
	store       *store.Store
	registry    *manager.Registry
	attachments *manager.Attachments
	identity    identity.Provider
	gate        *mw.AuthGate
	logger      *zap.Logger
	now         func() time.Time
}

// NewHandler creates a new handler.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		server:      d.Server,
		store:       d.Store,
		registry:    d.Registry,
		attachments: d.Attachments,
		identity:    d.Identity,
		gate:        mw.NewAuthGate(d.Identity, d.Server.CookieName, logger),
		logger:      logger,
		now:         time.Now,
	}
}
