package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"finamily/categorizer"
	"finamily/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu         sync.Mutex
	members    map[string]bool
	banks      map[string]bool
	rules      []categorizer.Rule
	categories map[string]string
	rows       []*models.Transaction
	// conflicts fingerprints that collide at insert time
	conflicts map[string]bool
	failOn    string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members:    map[string]bool{"m1": true, "m-off": false},
		banks:      map[string]bool{"b1": true},
		categories: map[string]string{},
		conflicts:  map[string]bool{},
	}
}

func (f *fakeStore) MemberActive(_ context.Context, _, id string) (bool, error) {
	return f.members[id], nil
}

func (f *fakeStore) BankActive(_ context.Context, _, id string) (bool, error) {
	return f.banks[id], nil
}

func (f *fakeStore) ActiveRules(context.Context, string) ([]categorizer.Rule, error) {
	return f.rules, nil
}

func (f *fakeStore) CategoryTypes(context.Context, string) (map[string]string, error) {
	return f.categories, nil
}

func (f *fakeStore) ImportFingerprints(_ context.Context, userID, memberID, bankID string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]struct{})
	for _, r := range f.rows {
		if r.UserID == userID && r.MemberID == memberID && r.BankID == bankID {
			out[r.ImportFingerprint] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeStore) InsertTransaction(_ context.Context, tx *models.Transaction) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && tx.Description == f.failOn {
		return false, errors.New("disk full")
	}
	if f.conflicts[tx.ImportFingerprint] {
		return false, nil
	}
	for _, r := range f.rows {
		if r.UserID == tx.UserID && r.ImportFingerprint == tx.ImportFingerprint {
			return false, nil
		}
	}
	f.rows = append(f.rows, tx)
	return true, nil
}

type recordingPublisher struct {
	events []CompletedEvent
	err    error
}

func (p *recordingPublisher) PublishImportCompleted(_ context.Context, ev CompletedEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func newService(store Store) *Service {
	return NewService(store, DefaultRegistry(DefaultCSVOptions()), nil)
}

func csvRequest(content string) Request {
	return Request{
		UserID:   "u1",
		MemberID: "m1",
		BankID:   "b1",
		Filename: "extrato.csv",
		Body:     strings.NewReader(content),
	}
}

const threeRows = "Data;Descrição;Valor\n" +
	"05/03/2024;UBER EATS PEDIDO;-45,90\n" +
	"06/03/2024;UBER TRIP;-18,00\n" +
	"07/03/2024;FARMACIA;-30,00\n"

func TestImport_BackToBackIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	first, err := svc.Import(context.Background(), csvRequest(threeRows))
	require.NoError(t, err)
	assert.Equal(t, 3, first.Imported)
	assert.Equal(t, 0, first.DuplicatesSkipped)
	assert.Equal(t, "Importadas 3 transações", first.Message)

	second, err := svc.Import(context.Background(), csvRequest(threeRows))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 3, second.DuplicatesSkipped)
	assert.Equal(t, "Importadas 0 transações (3 duplicatas ignoradas)", second.Message)
	assert.Len(t, store.rows, 3)
}

func TestImport_DuplicateWithinFile(t *testing.T) {
	store := newFakeStore()
	content := "Data;Descrição;Valor\n05/03/2024;PADARIA;-10,00\n05/03/2024;PADARIA;-10,00\n"

	sum, err := newService(store).Import(context.Background(), csvRequest(content))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Imported)
	assert.Equal(t, 1, sum.DuplicatesSkipped)
}

func TestImport_ConflictAtInsertCountsAsDuplicate(t *testing.T) {
	store := newFakeStore()
	row, err := Normalize(Draft{
		Date:        time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
		Description: "UBER TRIP",
		Amount:      mustAmount(t, "-18,00"),
	})
	require.NoError(t, err)
	store.conflicts[Fingerprint(row, "m1", "b1")] = true

	sum, err := newService(store).Import(context.Background(), csvRequest(threeRows))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Imported)
	assert.Equal(t, 1, sum.DuplicatesSkipped)
}

func TestImport_CategorizesByPriority(t *testing.T) {
	store := newFakeStore()
	store.categories = map[string]string{"delivery": "despesa", "transport": "despesa"}
	store.rules = []categorizer.Rule{
		{ID: "r1", Keyword: "uber", MatchType: categorizer.MatchContains, CategoryID: "transport", Priority: 5, IsActive: true},
		{ID: "r2", Keyword: "uber eats", MatchType: categorizer.MatchContains, CategoryID: "delivery", Priority: 10, IsActive: true},
	}

	sum, err := newService(store).Import(context.Background(), csvRequest(threeRows))
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Imported)
	assert.Equal(t, 2, sum.AutoCategorized)
	assert.Equal(t, "Importadas 3 transações (2 auto-categorizadas)", sum.Message)

	require.Len(t, store.rows, 3)
	require.NotNil(t, store.rows[0].CategoryID)
	assert.Equal(t, "delivery", *store.rows[0].CategoryID)
	require.NotNil(t, store.rows[1].CategoryID)
	assert.Equal(t, "transport", *store.rows[1].CategoryID)
	assert.Nil(t, store.rows[2].CategoryID)
}

func TestImport_IncompatibleRuleCategoryLeavesUncategorized(t *testing.T) {
	store := newFakeStore()
	store.categories = map[string]string{"salary": "receita"}
	store.rules = []categorizer.Rule{
		{ID: "r1", Keyword: "farmacia", MatchType: categorizer.MatchContains, CategoryID: "salary", IsActive: true},
	}

	sum, err := newService(store).Import(context.Background(), csvRequest(threeRows))
	require.NoError(t, err)
	assert.Equal(t, 0, sum.AutoCategorized)
	assert.Nil(t, store.rows[2].CategoryID)
}

func TestImport_InvalidRowsAreReported(t *testing.T) {
	var b strings.Builder
	b.WriteString("Data;Descrição;Valor\n")
	for i := 1; i <= 9; i++ {
		fmt.Fprintf(&b, "%02d/03/2024;COMPRA %d;-%d,00\n", i, i, i)
	}
	b.WriteString("99/99/2024;COMPRA X;-1,00\n")
	b.WriteString("10/03/2024;ZERADA;0,00\n")

	sum, err := newService(newFakeStore()).Import(context.Background(), csvRequest(b.String()))
	require.NoError(t, err)
	assert.Equal(t, 9, sum.Imported)
	assert.Equal(t, 2, sum.InvalidRows)
	require.Len(t, sum.Errors, 2)
	assert.Equal(t, 11, sum.Errors[0].Line)
	assert.Equal(t, 12, sum.Errors[1].Line)
	assert.Equal(t, "Importadas 9 transações (2 linhas inválidas)", sum.Message)
}

func TestImport_ErrorListIsCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString("Data;Descrição;Valor\n")
	for i := 0; i < 60; i++ {
		b.WriteString("xx;RUIM;-1,00\n")
	}
	sum, err := newService(newFakeStore()).Import(context.Background(), csvRequest(b.String()))
	require.NoError(t, err)
	assert.Equal(t, 60, sum.InvalidRows)
	assert.Len(t, sum.Errors, maxReportedErrors)
}

func TestImport_PersistFailureKeepsEarlierRows(t *testing.T) {
	store := newFakeStore()
	store.failOn = "UBER TRIP"

	sum, err := newService(store).Import(context.Background(), csvRequest(threeRows))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Imported)
	assert.Equal(t, 1, sum.FailedRows)
	assert.Len(t, store.rows, 2)
}

func TestImport_OFXNegativeIsExpense(t *testing.T) {
	store := newFakeStore()
	req := csvRequest(bankOFX)
	req.Filename = "extrato.ofx"

	sum, err := newService(store).Import(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Imported)
	require.Len(t, store.rows, 2)
	assert.Equal(t, models.TransactionTypeExpense, store.rows[0].Type)
	assert.Equal(t, "25.50", store.rows[0].Amount.StringFixed(2))
	assert.Equal(t, models.TransactionTypeIncome, store.rows[1].Type)
}

func TestImport_Rejections(t *testing.T) {
	svc := newService(newFakeStore())

	req := csvRequest(threeRows)
	req.Filename = "extrato.pdf"
	_, err := svc.Import(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	req = csvRequest(threeRows)
	req.MemberID = "m-off"
	_, err = svc.Import(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrUnknownReference)

	req = csvRequest(threeRows)
	req.BankID = "missing"
	_, err = svc.Import(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrUnknownReference)

	_, err = svc.Import(context.Background(), csvRequest("Foo;Bar\n1;2\n"))
	assert.ErrorIs(t, err, ErrMalformedFile)
}

func TestImport_PublishesEvent(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newService(newFakeStore()).WithPublisher(pub)

	sum, err := svc.Import(context.Background(), csvRequest(threeRows))
	require.NoError(t, err, "publish failures must not fail the import")
	assert.Equal(t, 3, sum.Imported)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, FormatCSV, ev.Format)
	assert.Equal(t, 3, ev.Imported)
}

func TestImport_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newService(newFakeStore()).Import(ctx, csvRequest(threeRows))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImport_RoundsExtraDecimals(t *testing.T) {
	store := newFakeStore()
	summary, err := newService(store).Import(context.Background(), csvRequest("Data;Descrição;Valor\n"+
		"05/03/2024;CAMBIO;-10,125\n"+
		"06/03/2024;RENDIMENTO;0,005\n"))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Imported)

	assert.Equal(t, "10.13", store.rows[0].Amount.StringFixed(2))
	assert.Equal(t, models.TransactionTypeExpense, store.rows[0].Type)
	assert.Equal(t, "0.01", store.rows[1].Amount.StringFixed(2))
	assert.Equal(t, models.TransactionTypeIncome, store.rows[1].Type)
}

func mustAmount(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := ParseAmount(raw, SeparatorAuto)
	require.NoError(t, err)
	return d
}
