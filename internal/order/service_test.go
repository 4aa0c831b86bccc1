package order

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/arkan-dz/backend-order/internal/aiparse"
	"github.com/arkan-dz/backend-order/internal/common"
	"github.com/arkan-dz/backend-order/internal/store"
)

// fakeStore is an in-memory Store. ExecTx snapshots the state before running
// fn and restores it on error, mirroring a database rollback.
type fakeStore struct {
	store.Querier

	nextOrderID int64
	nextItemID  int64
	clock       time.Time

	orders   map[int64]store.Order
	items    map[int64][]store.OrderItem
	products map[int64]store.Product
	counters map[string]int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:    time.Date(2024, 3, 21, 8, 0, 0, 0, time.UTC),
		orders:   map[int64]store.Order{},
		items:    map[int64][]store.OrderItem{},
		products: map[int64]store.Product{},
		counters: map[string]int32{},
	}
}

func (f *fakeStore) ExecTx(_ context.Context, fn func(q store.Querier) error) error {
	ordersBefore := make(map[int64]store.Order, len(f.orders))
	for k, v := range f.orders {
		ordersBefore[k] = v
	}
	itemsBefore := make(map[int64][]store.OrderItem, len(f.items))
	for k, v := range f.items {
		itemsBefore[k] = append([]store.OrderItem(nil), v...)
	}
	countersBefore := make(map[string]int32, len(f.counters))
	for k, v := range f.counters {
		countersBefore[k] = v
	}
	nextOrderID, nextItemID := f.nextOrderID, f.nextItemID

	if err := fn(f); err != nil {
		f.orders = ordersBefore
		f.items = itemsBefore
		f.counters = countersBefore
		f.nextOrderID, f.nextItemID = nextOrderID, nextItemID
		return err
	}
	return nil
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) ListOrdersForOwner(_ context.Context, arg store.ListOrdersForOwnerParams) ([]store.Order, error) {
	var out []store.Order
	for _, o := range f.orders {
		if o.Owner != arg.Owner {
			continue
		}
		if arg.Date != nil && !o.OrderDate.Equal(*arg.Date) {
			continue
		}
		if arg.Recipient != nil && !strings.Contains(o.Recipient, *arg.Recipient) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Time.After(out[j].CreatedAt.Time)
	})
	return out, nil
}

func (f *fakeStore) GetOrderForOwner(_ context.Context, arg store.GetOrderForOwnerParams) (store.Order, error) {
	o, ok := f.orders[arg.ID]
	if !ok || o.Owner != arg.Owner {
		return store.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeStore) InsertOrder(_ context.Context, arg store.InsertOrderParams) (store.Order, error) {
	f.nextOrderID++
	now := f.tick()
	o := store.Order{
		ID:              f.nextOrderID,
		OrderDate:       arg.OrderDate,
		Recipient:       arg.Recipient,
		Owner:           arg.Owner,
		InvoiceNumber:   arg.InvoiceNumber,
		Status:          "open",
		OriginalMessage: arg.OriginalMessage,
		CreatedAt:       pgtype.Timestamptz{Time: now, Valid: true},
		UpdatedAt:       pgtype.Timestamptz{Time: now, Valid: true},
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) UpdateOrderFields(_ context.Context, arg store.UpdateOrderFieldsParams) (int64, error) {
	o, ok := f.orders[arg.ID]
	if !ok || o.Owner != arg.Owner {
		return 0, nil
	}
	if arg.Date != nil {
		o.OrderDate = *arg.Date
	}
	if arg.Recipient != nil {
		o.Recipient = *arg.Recipient
	}
	if arg.Status != nil {
		o.Status = *arg.Status
	}
	o.UpdatedAt = pgtype.Timestamptz{Time: f.tick(), Valid: true}
	f.orders[arg.ID] = o
	return 1, nil
}

func (f *fakeStore) DeleteOrder(_ context.Context, arg store.DeleteOrderParams) (int64, error) {
	o, ok := f.orders[arg.ID]
	if !ok || o.Owner != arg.Owner {
		return 0, nil
	}
	delete(f.orders, arg.ID)
	delete(f.items, arg.ID)
	return 1, nil
}

func (f *fakeStore) NextInvoiceSeq(_ context.Context, day time.Time) (int32, error) {
	key := day.Format("20060102")
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeStore) ListOrderItems(_ context.Context, orderID int64) ([]store.OrderItem, error) {
	return append([]store.OrderItem(nil), f.items[orderID]...), nil
}

func (f *fakeStore) InsertOrderItem(_ context.Context, arg store.InsertOrderItemParams) (store.OrderItem, error) {
	f.nextItemID++
	item := store.OrderItem{
		ID:          f.nextItemID,
		OrderID:     arg.OrderID,
		ProductID:   arg.ProductID,
		ProductName: arg.ProductName,
		Quantity:    arg.Quantity,
		Description: arg.Description,
		UnitPrice:   arg.UnitPrice,
		Unit:        arg.Unit,
	}
	f.items[arg.OrderID] = append(f.items[arg.OrderID], item)
	return item, nil
}

func (f *fakeStore) ListOrderItemIDs(_ context.Context, orderID int64, ids []int64) ([]int64, error) {
	requested := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}
	var out []int64
	for _, item := range f.items[orderID] {
		if _, ok := requested[item.ID]; ok {
			out = append(out, item.ID)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteOrderItems(_ context.Context, orderID int64, ids []int64) (int64, error) {
	doomed := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}
	var kept []store.OrderItem
	var deleted int64
	for _, item := range f.items[orderID] {
		if _, ok := doomed[item.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, item)
	}
	f.items[orderID] = kept
	return deleted, nil
}

func (f *fakeStore) DeleteAllOrderItems(_ context.Context, orderID int64) error {
	delete(f.items, orderID)
	return nil
}

func (f *fakeStore) GetProductByID(_ context.Context, id int64) (store.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return store.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

type fakeParser struct {
	draft aiparse.Draft
	err   error
}

func (p fakeParser) Parse(context.Context, string) (aiparse.Draft, error) {
	return p.draft, p.err
}

var (
	ownerA = mustOwner("aaaaaaaa-0000-0000-0000-000000000001")
	ownerB = mustOwner("bbbbbbbb-0000-0000-0000-000000000002")
)

func mustOwner(value string) pgtype.UUID {
	id, err := store.ParseUUID(value)
	if err != nil {
		panic(err)
	}
	return id
}

func validCreateInput() CreateInput {
	return CreateInput{
		Date:      "2024-03-21",
		Recipient: "Acme",
		Items: []ItemInput{
			{ProductName: "Widget", Quantity: 2},
		},
	}
}

func requireCode(t *testing.T, err error, code string) *common.AppError {
	t.Helper()
	appErr, ok := common.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
	return appErr
}

func TestCreateAssignsSequentialInvoiceNumbers(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, ownerA, validCreateInput())
	require.NoError(t, err)
	require.Equal(t, "INV20240321-001", first.InvoiceNumber)
	require.Len(t, first.Items, 1)
	require.Equal(t, 2.0, first.Items[0].Quantity)
	require.Equal(t, "open", first.Status)

	second, err := svc.Create(ctx, ownerA, validCreateInput())
	require.NoError(t, err)
	require.Equal(t, "INV20240321-002", second.InvoiceNumber)

	otherDay := validCreateInput()
	otherDay.Date = "2024-03-22"
	third, err := svc.Create(ctx, ownerA, otherDay)
	require.NoError(t, err)
	require.Equal(t, "INV20240322-001", third.InvoiceNumber)
}

func TestCreateItemCountMatchesInput(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	in := validCreateInput()
	in.Items = []ItemInput{
		{ProductName: "Widget", Quantity: 2},
		{ProductName: "Gadget", Quantity: 1.5, Unit: "kg"},
		{ProductName: "Sprocket", Quantity: 7},
	}

	view, err := svc.Create(context.Background(), ownerA, in)
	require.NoError(t, err)
	require.Len(t, view.Items, len(in.Items))
	for i, item := range view.Items {
		require.Equal(t, in.Items[i].Quantity, item.Quantity)
		require.Positive(t, item.Quantity)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	ctx := context.Background()

	t.Run("missing items named", func(t *testing.T) {
		in := validCreateInput()
		in.Items = nil
		_, err := svc.Create(ctx, ownerA, in)
		appErr := requireCode(t, err, common.CodeInvalidRequest)
		require.Contains(t, appErr.Message, "items")
	})

	t.Run("all problems reported together", func(t *testing.T) {
		_, err := svc.Create(ctx, ownerA, CreateInput{
			Items: []ItemInput{{ProductName: "", Quantity: 0}},
		})
		appErr := requireCode(t, err, common.CodeInvalidRequest)
		require.Contains(t, appErr.Message, "date")
		require.Contains(t, appErr.Message, "recipient")
		require.Contains(t, appErr.Message, "items[0].product_name")
		require.Contains(t, appErr.Message, "items[0].quantity")
	})

	t.Run("bad date format", func(t *testing.T) {
		in := validCreateInput()
		in.Date = "21-03-2024"
		_, err := svc.Create(ctx, ownerA, in)
		requireCode(t, err, common.CodeInvalidRequest)
	})
}

func TestCreateCopiesCatalogProductFields(t *testing.T) {
	st := newFakeStore()
	price := 12500.0
	st.products[7] = store.Product{
		ID:          7,
		CategoryID:  1,
		Name:        "Beras Premium",
		Description: store.Text("Beras pulen 5kg"),
		Price:       &price,
		Unit:        store.Text("karung"),
	}
	svc := NewService(st, nil)

	productID := int64(7)
	in := validCreateInput()
	in.Items = []ItemInput{{ProductID: &productID, ProductName: "ignored", Quantity: 3}}

	view, err := svc.Create(context.Background(), ownerA, in)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	item := view.Items[0]
	require.Equal(t, "Beras Premium", item.ProductName)
	require.Equal(t, "Beras pulen 5kg", item.Description)
	require.NotNil(t, item.UnitPrice)
	require.Equal(t, price, *item.UnitPrice)
	require.Equal(t, "karung", item.Unit)
}

func TestCreateUnknownProductRollsBack(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, nil)

	productID := int64(404)
	in := validCreateInput()
	in.Items = []ItemInput{
		{ProductName: "Widget", Quantity: 2},
		{ProductID: &productID, Quantity: 1},
	}

	_, err := svc.Create(context.Background(), ownerA, in)
	requireCode(t, err, common.CodeNotFound)

	orders, err := svc.List(context.Background(), ownerA, Filters{})
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestGetCollapsesForeignAndAbsent(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, ownerA, validCreateInput())
	require.NoError(t, err)

	_, foreignErr := svc.Get(ctx, ownerB, created.ID)
	_, absentErr := svc.Get(ctx, ownerA, 99999)

	foreignApp := requireCode(t, foreignErr, common.CodeNotFound)
	absentApp := requireCode(t, absentErr, common.CodeNotFound)
	require.Equal(t, absentApp.Message, foreignApp.Message)
}

func TestListFilters(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	ctx := context.Background()

	in := validCreateInput()
	_, err := svc.Create(ctx, ownerA, in)
	require.NoError(t, err)

	in2 := validCreateInput()
	in2.Date = "2024-03-22"
	in2.Recipient = "Borneo Traders"
	_, err = svc.Create(ctx, ownerA, in2)
	require.NoError(t, err)

	all, err := svc.List(ctx, ownerA, Filters{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first.
	require.Equal(t, "Borneo Traders", all[0].Recipient)
	require.Nil(t, all[0].Items)

	byDate, err := svc.List(ctx, ownerA, Filters{Date: "2024-03-22"})
	require.NoError(t, err)
	require.Len(t, byDate, 1)

	byRecipient, err := svc.List(ctx, ownerA, Filters{Recipient: "Acme"})
	require.NoError(t, err)
	require.Len(t, byRecipient, 1)

	_, err = svc.List(ctx, ownerA, Filters{Date: "yesterday"})
	requireCode(t, err, common.CodeInvalidRequest)
}

func TestUpdate(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, ownerA, validCreateInput())
	require.NoError(t, err)

	t.Run("empty payload rejected", func(t *testing.T) {
		_, err := svc.Update(ctx, ownerA, created.ID, UpdateInput{})
		requireCode(t, err, common.CodeInvalidRequest)
	})

	t.Run("status only leaves other fields", func(t *testing.T) {
		status := "shipped"
		updated, err := svc.Update(ctx, ownerA, created.ID, UpdateInput{Status: &status})
		require.NoError(t, err)
		require.Equal(t, "shipped", updated.Status)
		require.Equal(t, created.OrderDate, updated.OrderDate)
		require.Equal(t, created.Recipient, updated.Recipient)
		require.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	})

	t.Run("items full replace", func(t *testing.T) {
		items := []ItemInput{
			{ProductName: "Bolt", Quantity: 10},
			{ProductName: "Nut", Quantity: 10},
		}
		updated, err := svc.Update(ctx, ownerA, created.ID, UpdateInput{Items: &items})
		require.NoError(t, err)
		require.Len(t, updated.Items, 2)
		require.Equal(t, "Bolt", updated.Items[0].ProductName)
	})

	t.Run("foreign order is NotFound", func(t *testing.T) {
		status := "shipped"
		_, err := svc.Update(ctx, ownerB, created.ID, UpdateInput{Status: &status})
		requireCode(t, err, common.CodeNotFound)
	})
}

func TestDeleteThenGetNotFound(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, ownerA, validCreateInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, ownerA, created.ID))

	_, err = svc.Get(ctx, ownerA, created.ID)
	requireCode(t, err, common.CodeNotFound)

	err = svc.Delete(ctx, ownerA, created.ID)
	requireCode(t, err, common.CodeNotFound)
}

func TestDeleteItems(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	ctx := context.Background()

	in := validCreateInput()
	in.Items = []ItemInput{
		{ProductName: "Widget", Quantity: 2},
		{ProductName: "Gadget", Quantity: 3},
	}
	created, err := svc.Create(ctx, ownerA, in)
	require.NoError(t, err)
	require.Len(t, created.Items, 2)

	t.Run("empty list rejected", func(t *testing.T) {
		_, err := svc.DeleteItems(ctx, ownerA, created.ID, nil)
		requireCode(t, err, common.CodeInvalidRequest)
	})

	t.Run("foreign id rejects whole call, nothing deleted", func(t *testing.T) {
		_, err := svc.DeleteItems(ctx, ownerA, created.ID, []int64{created.Items[0].ID, 9999})
		appErr := requireCode(t, err, common.CodeInvalidItems)
		require.Contains(t, appErr.Message, "9999")

		after, err := svc.Get(ctx, ownerA, created.ID)
		require.NoError(t, err)
		require.Len(t, after.Items, 2)
	})

	t.Run("valid ids deleted", func(t *testing.T) {
		deleted, err := svc.DeleteItems(ctx, ownerA, created.ID, []int64{created.Items[0].ID})
		require.NoError(t, err)
		require.Equal(t, []int64{created.Items[0].ID}, deleted)

		after, err := svc.Get(ctx, ownerA, created.ID)
		require.NoError(t, err)
		require.Len(t, after.Items, 1)
		require.Equal(t, "Gadget", after.Items[0].ProductName)
	})

	t.Run("unknown order is NotFound", func(t *testing.T) {
		_, err := svc.DeleteItems(ctx, ownerA, 99999, []int64{1})
		requireCode(t, err, common.CodeNotFound)
	})
}

func TestCreateFromText(t *testing.T) {
	ctx := context.Background()

	t.Run("draft flows through create", func(t *testing.T) {
		svc := NewService(newFakeStore(), fakeParser{draft: aiparse.Draft{
			Recipient: "Toko Jaya",
			Items:     []aiparse.DraftItem{{ProductName: "Beras", Quantity: 5, Unit: "kg"}},
		}})
		today := time.Date(2024, 3, 21, 10, 0, 0, 0, time.UTC)
		svc.WithNow(func() time.Time { return today })

		view, err := svc.CreateFromText(ctx, ownerA, "kirim 5 kg beras ke Toko Jaya", "")
		require.NoError(t, err)
		require.Equal(t, "Toko Jaya", view.Recipient)
		require.Equal(t, "2024-03-21", view.OrderDate)
		require.Equal(t, "INV20240321-001", view.InvoiceNumber)
		require.Equal(t, "kirim 5 kg beras ke Toko Jaya", view.OriginalMessage)
		require.Len(t, view.Items, 1)
		require.Equal(t, "kg", view.Items[0].Unit)
	})

	t.Run("unknown recipient uses fallback", func(t *testing.T) {
		svc := NewService(newFakeStore(), fakeParser{draft: aiparse.Draft{
			Recipient: "unknown",
			Items:     []aiparse.DraftItem{{ProductName: "Gula", Quantity: 2}},
		}})
		view, err := svc.CreateFromText(ctx, ownerA, "dua gula", "Warung Ibu")
		require.NoError(t, err)
		require.Equal(t, "Warung Ibu", view.Recipient)
	})

	t.Run("parser failure maps to AI_PARSER_ERROR", func(t *testing.T) {
		svc := NewService(newFakeStore(), fakeParser{err: errors.New("model exploded")})
		_, err := svc.CreateFromText(ctx, ownerA, "whatever", "")
		appErr := requireCode(t, err, common.CodeAIParser)
		require.Equal(t, 500, appErr.HTTPStatus)
	})

	t.Run("no parser configured", func(t *testing.T) {
		svc := NewService(newFakeStore(), nil)
		_, err := svc.CreateFromText(ctx, ownerA, "whatever", "")
		requireCode(t, err, common.CodeAIParser)
	})
}

func TestFormatInvoiceNumber(t *testing.T) {
	day := time.Date(2024, 3, 21, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "INV20240321-001", FormatInvoiceNumber(day, 1))
	require.Equal(t, "INV20240321-042", FormatInvoiceNumber(day, 42))
	require.Equal(t, "INV20240321-1000", FormatInvoiceNumber(day, 1000))
}
