package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/riyad899/Jtech-sub000/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStorage struct {
	m       sync.RWMutex
	data    []byte
	loadErr error
	saveErr error
	saves   int
}

func (m *mockStorage) Load(context.Context) ([]byte, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return nil, storage.ErrNotFound
	}
	return m.data, nil
}

func (m *mockStorage) Save(_ context.Context, data []byte) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = data
	return nil
}

func (m *mockStorage) getData() []byte {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.data
}

func (m *mockStorage) getSaves() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.saves
}

func item(id string, price int64) Item {
	return Item{
		ProductID: id,
		UnitPrice: decimal.NewFromInt(price),
		Display:   Display{Name: "product " + id},
	}
}

func assertSameLines(t *testing.T, want, got []Line) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ProductID, got[i].ProductID)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.Equal(t, want[i].Display, got[i].Display)
		assert.True(t, want[i].UnitPrice.Equal(got[i].UnitPrice), "price of %s: want %s, got %s",
			want[i].ProductID, want[i].UnitPrice, got[i].UnitPrice)
	}
}

func TestAddItem_MergesQuantities(t *testing.T) {
	sut := New()

	require.NoError(t, sut.AddItem(item("A", 100), 2))
	require.NoError(t, sut.AddItem(item("B", 50), 1))
	require.NoError(t, sut.AddItem(item("A", 100), 3))

	lines := sut.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "A", lines[0].ProductID)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, "B", lines[1].ProductID)
	assert.Equal(t, 1, lines[1].Quantity)

	totals := sut.Totals()
	assert.Equal(t, 6, totals.ItemCount)
	assert.True(t, decimal.NewFromInt(550).Equal(totals.Subtotal), "subtotal %s", totals.Subtotal)
}

func TestAddItem_MergeForAnyQuantities(t *testing.T) {
	for q1 := 1; q1 <= 4; q1++ {
		for q2 := 1; q2 <= 4; q2++ {
			sut := New()
			require.NoError(t, sut.AddItem(item("P", 10), q1))
			require.NoError(t, sut.AddItem(item("P", 10), q2))

			lines := sut.Lines()
			require.Len(t, lines, 1)
			assert.Equal(t, q1+q2, lines[0].Quantity)
		}
	}
}

func TestAddItem_KeepsFirstPriceSnapshot(t *testing.T) {
	sut := New()

	require.NoError(t, sut.AddItem(item("A", 100), 1))
	require.NoError(t, sut.AddItem(item("A", 120), 1))

	lines := sut.Lines()
	require.Len(t, lines, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(lines[0].UnitPrice))
	assert.True(t, decimal.NewFromInt(200).Equal(sut.Totals().Subtotal))
}

func TestAddItem_RejectsInvalidInput(t *testing.T) {
	sut := New()
	require.NoError(t, sut.AddItem(item("A", 100), 1))
	before := sut.Version()

	err := sut.AddItem(Item{UnitPrice: decimal.NewFromInt(1)}, 1)
	assert.ErrorIs(t, err, ErrInvalidProduct)

	err = sut.AddItem(item("B", -5), 1)
	assert.ErrorIs(t, err, ErrInvalidProduct)

	err = sut.AddItem(item("A", 100), 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	err = sut.AddItem(item("A", 100), -3)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	assert.Equal(t, before, sut.Version())
	lines := sut.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestRemoveItem(t *testing.T) {
	sut := New()
	require.NoError(t, sut.AddItem(item("A", 100), 7))
	require.NoError(t, sut.AddItem(item("B", 10), 1))

	sut.RemoveItem("A")

	assert.False(t, sut.IsInCart("A"))
	assert.True(t, sut.IsInCart("B"))
	assert.Equal(t, 1, sut.Totals().ItemCount)
}

func TestRemoveItem_AbsentIsNoop(t *testing.T) {
	sut := New()
	calls := 0
	sut.Subscribe(func(Change) { calls++ })

	assert.NotPanics(t, func() { sut.RemoveItem("Z") })
	assert.Equal(t, uint64(0), sut.Version())
	assert.Equal(t, 0, calls)
}

func TestUpdateQuantity(t *testing.T) {
	sut := New()
	require.NoError(t, sut.AddItem(item("A", 100), 1))

	require.NoError(t, sut.UpdateQuantity("A", 4))

	assert.Equal(t, 4, sut.Lines()[0].Quantity)
	assert.True(t, decimal.NewFromInt(400).Equal(sut.Totals().Subtotal))
}

func TestUpdateQuantity_ZeroOrNegativeRemoves(t *testing.T) {
	sut := New()
	require.NoError(t, sut.AddItem(item("A", 100), 3))
	require.NoError(t, sut.AddItem(item("B", 100), 3))

	require.NoError(t, sut.UpdateQuantity("A", 0))
	require.NoError(t, sut.UpdateQuantity("B", -1))

	assert.False(t, sut.IsInCart("A"))
	assert.False(t, sut.IsInCart("B"))
	assert.Empty(t, sut.Lines())
}

func TestUpdateQuantity_UnknownProduct(t *testing.T) {
	sut := New()

	err := sut.UpdateQuantity("Z", 2)
	assert.ErrorIs(t, err, ErrLineNotFound)
	assert.Empty(t, sut.Lines())
}

func TestClear(t *testing.T) {
	sut := New()
	require.NoError(t, sut.AddItem(item("A", 100), 2))
	require.NoError(t, sut.AddItem(item("B", 3), 9))

	sut.Clear()

	totals := sut.Totals()
	assert.Equal(t, 0, totals.ItemCount)
	assert.True(t, totals.Subtotal.IsZero())
	assert.Empty(t, sut.Lines())
	assert.False(t, sut.IsInCart("A"))
}

func TestTotals_MatchLinesAfterMixedOperations(t *testing.T) {
	sut := New()
	require.NoError(t, sut.AddItem(Item{ProductID: "A", UnitPrice: decimal.RequireFromString("19.99")}, 3))
	require.NoError(t, sut.AddItem(Item{ProductID: "B", UnitPrice: decimal.RequireFromString("0.10")}, 10))
	require.NoError(t, sut.AddItem(item("C", 5), 1))
	require.NoError(t, sut.UpdateQuantity("B", 7))
	sut.RemoveItem("C")
	require.NoError(t, sut.AddItem(Item{ProductID: "A", UnitPrice: decimal.RequireFromString("19.99")}, 1))

	want := decimal.Zero
	count := 0
	for _, l := range sut.Lines() {
		want = want.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		count += l.Quantity
	}

	totals := sut.Totals()
	assert.Equal(t, count, totals.ItemCount)
	assert.Equal(t, 11, totals.ItemCount)
	assert.True(t, want.Equal(totals.Subtotal))
	assert.Equal(t, "80.66", totals.Subtotal.StringFixed(2))
}

func TestLines_ReturnsCopy(t *testing.T) {
	sut := New()
	require.NoError(t, sut.AddItem(item("A", 100), 1))

	lines := sut.Lines()
	lines[0].Quantity = 42

	assert.Equal(t, 1, sut.Lines()[0].Quantity)
}

func TestConcurrentAdds_AreNotLost(t *testing.T) {
	sut := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sut.AddItem(item("A", 1), 1))
		}()
	}
	wg.Wait()

	lines := sut.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 50, lines[0].Quantity)
	assert.Equal(t, uint64(50), sut.Version())
}

func TestSubscribe(t *testing.T) {
	sut := New()

	var changes []Change
	unsubscribe := sut.Subscribe(func(c Change) { changes = append(changes, c) })

	require.NoError(t, sut.AddItem(item("A", 100), 2))
	require.NoError(t, sut.UpdateQuantity("A", 3))
	sut.Clear()

	require.Len(t, changes, 3)
	assert.Equal(t, OpAdd, changes[0].Op)
	assert.Equal(t, "A", changes[0].ProductID)
	assert.Equal(t, 2, changes[0].Totals.ItemCount)
	assert.Equal(t, OpUpdate, changes[1].Op)
	assert.Equal(t, 3, changes[1].Totals.ItemCount)
	assert.Equal(t, OpClear, changes[2].Op)
	assert.Empty(t, changes[2].Lines)
	assert.Equal(t, uint64(3), changes[2].Version)

	unsubscribe()
	require.NoError(t, sut.AddItem(item("B", 1), 1))
	assert.Len(t, changes, 3)
}

func TestSubscriber_CanReadStore(t *testing.T) {
	sut := New()
	var seen bool
	sut.Subscribe(func(Change) { seen = sut.IsInCart("A") })

	require.NoError(t, sut.AddItem(item("A", 1), 1))

	assert.True(t, seen)
}

func TestOpen_RehydratesSavedCart(t *testing.T) {
	st := &mockStorage{}
	first := Open(context.Background(), st)
	require.NoError(t, first.AddItem(item("A", 100), 2))
	require.NoError(t, first.AddItem(Item{ProductID: "B", UnitPrice: decimal.RequireFromString("12.50"), Display: Display{Name: "Bee", ImageURL: "b.png", Category: "bugs"}}, 1))
	first.Close()
	require.True(t, first.Persistent())

	second := Open(context.Background(), st)
	defer second.Close()

	assertSameLines(t, first.Lines(), second.Lines())
	assert.Equal(t, 3, second.Totals().ItemCount)
	assert.Equal(t, "212.5", second.Totals().Subtotal.String())
}

func TestOpen_WritesEveryMutation(t *testing.T) {
	st := &mockStorage{}
	sut := Open(context.Background(), st)
	defer sut.Close()

	require.NoError(t, sut.AddItem(item("A", 100), 1))

	require.Eventually(t, func() bool {
		return st.getData() != nil
	}, time.Second, 10*time.Millisecond, "cart was not saved")

	sut.Clear()

	require.Eventually(t, func() bool {
		lines, err := Decode(st.getData())
		return err == nil && len(lines) == 0
	}, time.Second, 10*time.Millisecond, "cleared cart was not saved")
}

func TestClose_FlushesLatestSnapshot(t *testing.T) {
	st := &mockStorage{}
	sut := Open(context.Background(), st)

	for i := 0; i < 20; i++ {
		require.NoError(t, sut.AddItem(item("A", 1), 1))
	}
	sut.Close()

	lines, err := Decode(st.getData())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 20, lines[0].Quantity)
	assert.LessOrEqual(t, st.getSaves(), 20)
}

func TestOpen_LoadFailureFallsBackToMemory(t *testing.T) {
	st := &mockStorage{loadErr: errors.New("storage disabled")}

	sut := Open(context.Background(), st)
	defer sut.Close()

	assert.Empty(t, sut.Lines())
	assert.False(t, sut.Persistent())
	require.NoError(t, sut.AddItem(item("A", 1), 1))
	assert.True(t, sut.IsInCart("A"))
	assert.Equal(t, 0, st.getSaves())
}

func TestOpen_CorruptDataStartsEmpty(t *testing.T) {
	st := &mockStorage{data: []byte("{not json")}

	sut := Open(context.Background(), st)
	defer sut.Close()

	assert.Empty(t, sut.Lines())
	assert.True(t, sut.Persistent())
}

func TestSaveFailure_DegradesToMemory(t *testing.T) {
	st := &mockStorage{saveErr: errors.New("quota exceeded")}
	sut := Open(context.Background(), st)
	defer sut.Close()

	require.NoError(t, sut.AddItem(item("A", 1), 1))

	require.Eventually(t, func() bool {
		return !sut.Persistent()
	}, time.Second, 10*time.Millisecond, "store should stop persisting")

	require.NoError(t, sut.AddItem(item("A", 1), 2))
	assert.Equal(t, 3, sut.Lines()[0].Quantity)
	assert.Equal(t, 1, st.getSaves())
}

func TestOpen_NilStorage(t *testing.T) {
	sut := Open(context.Background(), nil)
	defer sut.Close()

	require.NoError(t, sut.AddItem(item("A", 1), 1))
	assert.False(t, sut.Persistent())
}

func TestAddItem_MergeOverflowRejected(t *testing.T) {
	sut := New()
	require.NoError(t, sut.AddItem(item("A", 1), MaxLineQuantity))
	before := sut.Version()

	err := sut.AddItem(item("A", 1), 1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, before, sut.Version())
	assert.Equal(t, MaxLineQuantity, sut.Lines()[0].Quantity)

	err = sut.UpdateQuantity("A", MaxLineQuantity+1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, MaxLineQuantity, sut.Lines()[0].Quantity)
}

func TestRemoveLines_KeepsUnitsAddedLater(t *testing.T) {
	sut := New()
	require.NoError(t, sut.AddItem(item("A", 100), 2))
	require.NoError(t, sut.AddItem(item("B", 50), 1))
	taken := sut.Lines()

	// added between reading the lines and removing them
	require.NoError(t, sut.AddItem(item("A", 100), 3))
	require.NoError(t, sut.AddItem(item("C", 10), 1))

	var changes []Change
	sut.Subscribe(func(c Change) { changes = append(changes, c) })

	sut.RemoveLines(taken)

	lines := sut.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "A", lines[0].ProductID)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, "C", lines[1].ProductID)
	assert.False(t, sut.IsInCart("B"))

	require.Len(t, changes, 1)
	assert.Equal(t, OpCheckout, changes[0].Op)
	assert.Equal(t, 4, changes[0].Totals.ItemCount)
}

func TestRemoveLines_AbsentIsNoop(t *testing.T) {
	sut := New()
	require.NoError(t, sut.AddItem(item("A", 1), 1))
	sut.RemoveItem("A")
	before := sut.Version()

	sut.RemoveLines([]Line{{ProductID: "A", Quantity: 1}})
	assert.Equal(t, before, sut.Version())
}
