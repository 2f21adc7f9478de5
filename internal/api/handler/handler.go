package handler

import (
	"log/slog"

	"github.com/rmpcap/screener-be/internal/api/storage"
	"github.com/rmpcap/screener-be/internal/screener"
	"github.com/rmpcap/screener-be/shared/postgresql"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	DB      *postgresql.Client
	Storage *storage.Storage
	Engine  *screener.Engine
	Parcels screener.ParcelStore
	Fixer   *screener.ManualFixer
}

// ScreenerHandler handles property and screener-run HTTP requests
type ScreenerHandler struct {
	logger  *slog.Logger
	storage *storage.Storage
	engine  *screener.Engine
	parcels screener.ParcelStore
	fixer   *screener.ManualFixer
}

// NewScreenerHandler creates a new ScreenerHandler instance
func NewScreenerHandler(deps *Dependencies) *ScreenerHandler {
	return &ScreenerHandler{
		logger:  deps.Logger,
		storage: deps.Storage,
		engine:  deps.Engine,
		parcels: deps.Parcels,
		fixer:   deps.Fixer,
	}
}
