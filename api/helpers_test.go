package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"finamily/database"
	"finamily/importer"
	"finamily/middleware"
	"finamily/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testUser = "family-1"

func setUserIDMiddleware(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetCurrentUserID(c, userID)
		c.Next()
	}
}

func setupTestStore(t *testing.T) *database.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return database.NewStore(db)
}

type apiFixture struct {
	store    *database.Store
	router   *gin.Engine
	member   models.FamilyMember
	bank     models.Bank
	expense  models.Category
	income   models.Category
	transfer models.Category
}

func newAPIFixture(t *testing.T) *apiFixture {
	return newAPIFixtureWithLimit(t, 1<<20)
}

func newAPIFixtureWithLimit(t *testing.T, maxUpload int64) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := setupTestStore(t)
	f := &apiFixture{
		store:    store,
		member:   models.FamilyMember{UserID: testUser, Name: "Ana", Active: true},
		bank:     models.Bank{UserID: testUser, Name: "Nubank", Active: true},
		expense:  models.Category{UserID: testUser, Name: "Transporte", Type: models.TransactionTypeExpense},
		income:   models.Category{UserID: testUser, Name: "Salário", Type: models.TransactionTypeIncome},
		transfer: models.Category{UserID: testUser, Name: "Transferências", Type: models.CategoryTypeSpecial},
	}
	db := store.DB()
	require.NoError(t, db.Create(&f.member).Error)
	require.NoError(t, db.Create(&f.bank).Error)
	require.NoError(t, db.Create(&f.expense).Error)
	require.NoError(t, db.Create(&f.income).Error)
	require.NoError(t, db.Create(&f.transfer).Error)

	svc := importer.NewService(store, importer.DefaultRegistry(importer.DefaultCSVOptions()), nil)
	th := NewTransactionHandler(store, svc, maxUpload)
	rh := NewRuleHandler(store)
	eh := NewExportHandler(store)

	r := gin.New()
	r.Use(setUserIDMiddleware(testUser))
	r.GET("/transactions", th.List)
	r.POST("/transactions/import", th.Import)
	r.POST("/transactions/bulk-categorize", th.BulkCategorize)
	r.POST("/transactions/apply-rules", th.ApplyRules)
	r.GET("/transactions/export", eh.Export)
	r.DELETE("/transactions/delete-all", th.DeleteAll)
	r.PUT("/transactions/:id", th.Update)
	r.DELETE("/transactions/:id", th.Delete)
	r.GET("/rules", rh.List)
	r.POST("/rules", rh.Create)
	r.POST("/rules/test", rh.Test)
	r.PUT("/rules/:id", rh.Update)
	r.DELETE("/rules/:id", rh.Delete)
	f.router = r
	return f
}

func (f *apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) doJSON(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return f.do(req)
}

func (f *apiFixture) upload(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	return f.uploadFor(t, filename, content, f.member.ID, f.bank.ID)
}

func (f *apiFixture) uploadFor(t *testing.T, filename, content, memberID, bankID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("member_id", memberID))
	require.NoError(t, mw.WriteField("bank_id", bankID))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/transactions/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return f.do(req)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
