package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finamily/config"
	"finamily/database"
	"finamily/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestRouter(t *testing.T, tweak ...func(*config.Config)) http.Handler {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	t.Cleanup(func() { config.GlobalConfig = nil })
	cfg.Server.Mode = "test"
	cfg.JWT.Secret = "router-test-secret"
	for _, fn := range tweak {
		fn(cfg)
	}
	middleware.InitJWT(cfg)

	return SetupRouter(t.Context(), cfg, database.NewStore(db), nil)
}

func TestHealthIsPublic(t *testing.T) {
	r := setupTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTransactionsRequireToken(t *testing.T) {
	r := setupTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["detail"])
}

func TestTransactionsWithToken(t *testing.T) {
	r := setupTestRouter(t)
	token, err := middleware.GenerateToken("family-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := setupTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/transactions/import", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestImportIsRateLimitedPerAccount(t *testing.T) {
	r := setupTestRouter(t, func(cfg *config.Config) {
		cfg.RateLimit.ImportMaxRequests = 1
		cfg.RateLimit.ImportWindow = time.Minute
	})
	token, err := middleware.GenerateToken("family-1", time.Hour)
	require.NoError(t, err)

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/transactions/import", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusBadRequest, post(), "no file attached")
	assert.Equal(t, http.StatusTooManyRequests, post())
}
