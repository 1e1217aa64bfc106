package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://books@localhost/books")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 30*time.Second, cfg.PaymentLockTTL)
	require.Equal(t, "0 3 * * *", cfg.ReconcileCron)
	codes := cfg.AccountCodes()
	require.Equal(t, "1140", codes.Inventory)
	require.Equal(t, "5100", codes.COGS)
	require.Equal(t, "2110", codes.TradePayables)
	require.Equal(t, "4100", codes.ProductSales)
	require.Equal(t, "5210", codes.Freight)
	require.Equal(t, "5220", codes.Duties)
	require.False(t, cfg.InventoryConfig().StrictStock)
}

func TestLoadConfigRejectsHalfDefaultLocation(t *testing.T) {
	t.Setenv("DEFAULT_WAREHOUSE_ID", "3")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("DEFAULT_RACK_ID", "7")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	inv := cfg.InventoryConfig()
	require.Equal(t, int64(3), inv.DefaultWarehouseID)
	require.Equal(t, int64(7), inv.DefaultRackID)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel("warning"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRouterProbes(t *testing.T) {
	var dbErr error
	router := NewRouter(RouterParams{
		Config:   &Config{AppEnv: "development"},
		Database: pingerFunc(func(context.Context) error { return dbErr }),
		Metrics:  observability.NewMetrics(),
	})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	dbErr = errors.New("connection refused")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestNewCoreWiresServices(t *testing.T) {
	cfg := &Config{AccountCodeTradePayables: "2110", AccountCodeInventory: "1140"}
	core := NewCore(nil, nil, cfg, nil)

	require.NotNil(t, core.Ledger)
	require.NotNil(t, core.Payables)
	require.NotNil(t, core.Inventory)
	require.Equal(t, "2110", core.Ledger.Codes().TradePayables)
	require.NotNil(t, core.ReconcileJob(nil, nil))
}
