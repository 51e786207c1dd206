package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"card-print-service/internal/config"
	"card-print-service/internal/discovery"
	"card-print-service/internal/handler"
	"card-print-service/internal/middleware"
	"card-print-service/internal/model"
	"card-print-service/internal/repository"
	"card-print-service/internal/service"
	"card-print-service/internal/tempfile"
	"card-print-service/internal/utils"
)

type downDB struct{ err error }

func (d downDB) Health(ctx context.Context) error { return d.err }

type emptyRoster struct{}

func (emptyRoster) GetTeam(ctx context.Context, id int64) (*model.TeamRecord, error) {
	return nil, repository.ErrTeamNotFound
}

func (emptyRoster) ListPlayersByTeam(ctx context.Context, id int64) ([]model.PlayerRecord, error) {
	return nil, nil
}

func newTestEngine(t *testing.T, dbErr error) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{App: config.AppConfig{Name: "card-print-service", Version: "test", Environment: "test"}}
	logger := zap.NewNop()

	svc := service.NewPrintService(emptyRoster{}, nil,
		service.PrintOptions{DefaultBackend: model.BackendThermal}, logger, utils.NewPrintLogger(logger))
	scanners := discovery.NewScannerManager(logger, time.Second)
	temp := tempfile.NewManager(t.TempDir(), logger, nil)
	bus := handler.NewEventBus(logger)

	r := NewRouter(cfg, logger,
		handler.NewHealthHandler(downDB{err: dbErr}, scanners, temp, cfg, logger),
		handler.NewPrinterHandler(svc, logger),
		handler.NewWebSocketHandler(bus, svc, nil, logger),
	)
	return r.SetupRouter()
}

func TestSetupRouter_RegistersPrintRoutes(t *testing.T) {
	engine := newTestEngine(t, nil)

	registered := map[string]bool{}
	for _, route := range engine.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"GET /api/v1/printer/status",
		"POST /api/v1/printer/print/team-cards",
		"POST /api/v1/printer/print/test",
		"GET /api/v1/printer/team/:teamId/players",
		"GET /ws/print-events",
		"GET /ws/stats",
		"GET /health",
		"GET /live",
		"GET /ready",
	} {
		assert.True(t, registered[want], want)
	}
}

func TestSetupRouter_HealthAndRequestID(t *testing.T) {
	engine := newTestEngine(t, errors.New("connection refused"))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSetupRouter_UnconfiguredBackendIsBadRequest(t *testing.T) {
	engine := newTestEngine(t, nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/printer/print/test", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
