package inventory

import (
	"context"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rightupnext/billing/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	items  map[int64]Item
	txns   []StockTransaction
	sales  map[int64]SalesRow
	nextID int64
}

type memoryTx struct {
	repo  *memoryRepo
	items map[int64]Item
	txns  []StockTransaction
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]Item{}, sales: map[int64]SalesRow{}}
}

func (r *memoryRepo) seed(item Item) Item {
	r.nextID++
	item.ID = r.nextID
	r.items[item.ID] = item
	return item
}

func (r *memoryRepo) WithTx(ctx context.Context, tenantDB string, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, items: maps.Clone(r.items), txns: slices.Clone(r.txns)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.items = tx.items
	r.txns = tx.txns
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, tenantDB string, id int64) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return Item{}, shared.NotFoundf("inventory item %d", id)
	}
	return item, nil
}

func (r *memoryRepo) UpdateDetails(ctx context.Context, tenantDB string, id int64, name *string, categoryID *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok || item.IsDeleted {
		return shared.NotFoundf("inventory item %d", id)
	}
	if name != nil {
		item.Name = *name
	}
	if categoryID != nil {
		item.CategoryID = categoryID
	}
	r.items[id] = item
	return nil
}

func (r *memoryRepo) SoftDelete(ctx context.Context, tenantDB string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return shared.NotFoundf("inventory item %d", id)
	}
	item.IsDeleted = true
	r.items[id] = item
	return nil
}

func (r *memoryRepo) SalesRows(ctx context.Context, tenantDB string, from, to time.Time) ([]SalesRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SalesRow
	for _, id := range slices.Sorted(maps.Keys(r.items)) {
		item := r.items[id]
		if item.IsDeleted {
			continue
		}
		row := r.sales[id]
		row.Item = item
		out = append(out, row)
	}
	return out, nil
}

func (r *memoryRepo) StockCard(ctx context.Context, tenantDB string, id int64, limit int) ([]StockTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StockTransaction
	for i := len(r.txns) - 1; i >= 0 && len(out) < limit; i-- {
		if r.txns[i].InventoryID == id {
			out = append(out, r.txns[i])
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item Item) (Item, error) {
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.items[item.ID] = item
	return item, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id int64) (Item, error) {
	item, ok := tx.items[id]
	if !ok || item.IsDeleted {
		return Item{}, shared.NotFoundf("inventory item %d", id)
	}
	return item, nil
}

func (tx *memoryTx) AppendStockTransaction(ctx context.Context, st StockTransaction) (StockTransaction, error) {
	item := tx.items[st.InventoryID]
	if st.Type == ActionReduce {
		item.StockQuantity = item.StockQuantity.Sub(st.Quantity)
	} else {
		item.StockQuantity = item.StockQuantity.Add(st.Quantity)
	}
	tx.items[st.InventoryID] = item
	st.ID = int64(len(tx.txns) + 1)
	st.BalanceAfter = item.StockQuantity
	tx.txns = append(tx.txns, st)
	return st, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s got %s", want, got.String())
}

const tenantDB = "rightupnext_test"

func TestNormalizeQuantity(t *testing.T) {
	cases := []struct {
		unit        Unit
		kilo, grams string
		want        string
	}{
		{UnitKg, "2", "500", "2.5"},
		{UnitLiter, "0", "250", "0.25"},
		{UnitGram, "1", "250", "1250"},
		{UnitMl, "0", "75.5", "75.5"},
		{UnitQuintal, "3", "999", "3"},
		{UnitTonne, "1.2345", "0", "1.235"},
		{UnitPiece, "9", "12", "12"},
		{UnitDozen, "0", "4", "4"},
		{UnitMilligram, "1", "0.3333", "0.333"},
		{UnitKg, "0", "1", "0.001"},
	}
	for _, tc := range cases {
		requireDec(t, tc.want, NormalizeQuantity(tc.unit, d(tc.kilo), d(tc.grams)))
	}
}

func TestParseUnit(t *testing.T) {
	u, err := ParseUnit("quintal")
	require.NoError(t, err)
	require.Equal(t, UnitQuintal, u)

	_, err = ParseUnit("bag")
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "kg, g, liter")
}

func TestStockDisplay(t *testing.T) {
	require.Equal(t, "2 kg 350.00 g", StockDisplay(UnitGram, d("2350")))
	require.Equal(t, "1 liter 0.00 ml", StockDisplay(UnitMl, d("1000")))
	require.Equal(t, "999 g", StockDisplay(UnitGram, d("999")))
	require.Equal(t, "4.5 kg", StockDisplay(UnitKg, d("4.5")))
	require.Equal(t, "12 piece", StockDisplay(UnitPiece, d("12")))
}

func TestCreateBooksOpeningStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	item, err := svc.Create(context.Background(), tenantDB, CreateInput{Name: " Rice ", Unit: "kg", Kilo: d("10"), Grams: d("500")})
	require.NoError(t, err)
	require.Equal(t, "Rice", item.Name)
	requireDec(t, "10.5", item.StockQuantity)
	require.Equal(t, "10.5 kg", item.StockDisplay)
	require.Len(t, repo.txns, 1)
	require.Equal(t, ActionAdd, repo.txns[0].Type)

	empty, err := svc.Create(context.Background(), tenantDB, CreateInput{Name: "Salt", Unit: "piece"})
	require.NoError(t, err)
	requireDec(t, "0", empty.StockQuantity)
	require.Len(t, repo.txns, 1)

	_, err = svc.Create(context.Background(), tenantDB, CreateInput{Name: "Oil", Unit: "barrel"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(context.Background(), tenantDB, CreateInput{Unit: "kg"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAdjustReduceBeyondStockIsRejected(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.seed(Item{Name: "Soap", Unit: UnitPiece, StockQuantity: d("5")})
	svc := NewService(repo, nil)

	_, err := svc.Adjust(context.Background(), tenantDB, AdjustInput{InventoryID: item.ID, Action: ActionReduce, Grams: d("10")})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	var stockErr *shared.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	requireDec(t, "5", stockErr.Available)
	requireDec(t, "10", stockErr.Requested)

	requireDec(t, "5", repo.items[item.ID].StockQuantity)
	require.Empty(t, repo.txns)
}

func TestApplyMovementRejectsQuantitiesFinerThanStockScale(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.seed(Item{Name: "Rice", Unit: UnitKg, StockQuantity: d("5")})
	ctx := context.Background()

	err := repo.WithTx(ctx, tenantDB, func(ctx context.Context, tx TxRepository) error {
		for _, qty := range []string{"1.0005", "0.0004"} {
			_, err := ApplyMovement(ctx, tx, Movement{InventoryID: item.ID, Action: ActionReduce, Quantity: d(qty), Unit: UnitKg})
			require.ErrorIs(t, err, shared.ErrValidation, qty)
		}
		st, err := ApplyMovement(ctx, tx, Movement{InventoryID: item.ID, Action: ActionReduce, Quantity: d("1.001"), Unit: UnitKg})
		require.NoError(t, err)
		requireDec(t, "3.999", st.BalanceAfter)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, repo.txns, 1)
	requireDec(t, "1.001", repo.txns[0].Quantity)
}

func TestAdjustAddAndReduceKeepLedgerBalanced(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.seed(Item{Name: "Sugar", Unit: UnitKg})
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, tenantDB, AdjustInput{InventoryID: item.ID, Action: ActionAdd, Kilo: d("5"), Grams: d("250")})
	require.NoError(t, err)
	res, err := svc.Adjust(ctx, tenantDB, AdjustInput{InventoryID: item.ID, Action: ActionReduce, Kilo: d("1"), Grams: d("500")})
	require.NoError(t, err)
	require.Equal(t, "stock reduced", res.Message)
	requireDec(t, "3.75", res.Transaction.BalanceAfter)
	_, err = svc.Adjust(ctx, tenantDB, AdjustInput{InventoryID: item.ID, Action: ActionAdd, Grams: d("250")})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, st := range repo.txns {
		if st.Type == ActionAdd {
			sum = sum.Add(st.Quantity)
		} else {
			sum = sum.Sub(st.Quantity)
		}
	}
	requireDec(t, "4", sum)
	requireDec(t, "4", repo.items[item.ID].StockQuantity)
	require.Equal(t, UnitKg, repo.txns[2].Unit)
	require.Len(t, repo.txns, 3)
}

func TestAdjustWithoutActionUpdatesDetailsOnly(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.seed(Item{Name: "Dal", Unit: UnitKg, StockQuantity: d("2")})
	svc := NewService(repo, nil)
	name := "Toor Dal"
	cat := int64(4)

	res, err := svc.Adjust(context.Background(), tenantDB, AdjustInput{InventoryID: item.ID, ItemName: &name, CategoryID: &cat, Kilo: d("9")})
	require.NoError(t, err)
	require.Nil(t, res.Transaction)
	require.Equal(t, "Toor Dal", repo.items[item.ID].Name)
	require.Equal(t, int64(4), *repo.items[item.ID].CategoryID)
	requireDec(t, "2", repo.items[item.ID].StockQuantity)
	require.Empty(t, repo.txns)
}

func TestAdjustValidation(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.seed(Item{Name: "Dal", Unit: UnitKg, StockQuantity: d("2")})
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, tenantDB, AdjustInput{InventoryID: item.ID, Action: "remove", Kilo: d("1")})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Adjust(ctx, tenantDB, AdjustInput{InventoryID: item.ID, Action: ActionAdd, Unit: "bag", Kilo: d("1")})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Adjust(ctx, tenantDB, AdjustInput{InventoryID: item.ID, Action: ActionAdd})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Adjust(ctx, tenantDB, AdjustInput{InventoryID: 99, Action: ActionAdd, Kilo: d("1")})
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, svc.SoftDelete(ctx, tenantDB, item.ID))
	_, err = svc.Adjust(ctx, tenantDB, AdjustInput{InventoryID: item.ID, Action: ActionAdd, Kilo: d("1")})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListWithSales(t *testing.T) {
	repo := newMemoryRepo()
	rice := repo.seed(Item{Name: "Rice", Unit: UnitKg, StockQuantity: d("40")})
	oil := repo.seed(Item{Name: "Oil", Unit: UnitLiter, StockQuantity: d("8")})
	unsold := repo.seed(Item{Name: "Salt", Unit: UnitPiece, StockQuantity: d("3")})
	gone := repo.seed(Item{Name: "Old", Unit: UnitPiece, IsDeleted: true})
	repo.sales[rice.ID] = SalesRow{SoldQty: d("5"), SoldAmount: d("300"), AvgMRP: d("70")}
	repo.sales[oil.ID] = SalesRow{SoldQty: d("12"), SoldAmount: d("1500"), AvgMRP: d("120")}
	_ = gone

	svc := NewService(repo, nil)
	svc.now = func() time.Time { return time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC) }

	report, err := svc.ListWithSales(context.Background(), tenantDB, SalesFilter{ShowAll: true})
	require.NoError(t, err)
	require.Equal(t, "2025-02-01", report.Start)
	require.Equal(t, "2025-02-28", report.End)
	require.Equal(t, 3, report.TotalItems)
	require.Equal(t, oil.ID, report.Data[0].ID)
	require.Equal(t, rice.ID, report.Data[1].ID)
	require.Equal(t, unsold.ID, report.Data[2].ID)
	// rice: 5*70 = 350 mrp vs 300 sold; oil: 12*120 = 1440 vs 1500
	requireDec(t, "350", report.Data[1].TotalMRPAmount)
	requireDec(t, "50", report.Data[1].ProfitAmount)
	requireDec(t, "60", report.Data[0].ProfitAmount)
	requireDec(t, "17", report.TotalSoldQty)
	requireDec(t, "1800", report.TotalSalesAmount)
	requireDec(t, "110", report.TotalProfit)

	report, err = svc.ListWithSales(context.Background(), tenantDB, SalesFilter{ShowAll: false})
	require.NoError(t, err)
	require.Equal(t, 2, report.TotalItems)
}

func TestHandlerAdjustRejectsOverdraw(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.seed(Item{Name: "Soap", Unit: UnitPiece, StockQuantity: d("5")})
	h := NewHandler(nil, NewService(repo, nil))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithTenant(req.Context(), shared.Tenant{DBName: tenantDB})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.MountRoutes(r)

	rr := httptest.NewRecorder()
	body := strings.NewReader(`{"action":"reduce","grams":10}`)
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/inventory/1", body))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "available 5, requested 10")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/inventory/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"stock_display":"5 piece"`)
	requireDec(t, "5", repo.items[item.ID].StockQuantity)
}
