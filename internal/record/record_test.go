package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_NullVersusAbsent(t *testing.T) {
	r := New()
	r.SetNull(MarketCap)
	r.SetFloat(TrailingPE, 20)

	assert.True(t, r.Has(MarketCap))
	assert.False(t, r.NonNull(MarketCap))
	assert.True(t, r.NonNull(TrailingPE))
	assert.False(t, r.Has(ForwardPE))

	_, ok := r.Float(MarketCap)
	assert.False(t, ok)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 1, r.CountNonNull())
	assert.True(t, r.HasData())
}

func TestRecord_SetTextEmptyIsNull(t *testing.T) {
	r := New()
	r.SetText(Currency, "")
	assert.True(t, r.Has(Currency))
	assert.False(t, r.NonNull(Currency))

	r.SetText(Currency, "USD")
	got, ok := r.Text(Currency)
	require.True(t, ok)
	assert.Equal(t, "USD", got)
}

func TestRecord_TagLastWins(t *testing.T) {
	r := New()
	r.SetTag(DebtToEquity, "first")
	r.SetTag(DebtToEquity, "second")

	tag, ok := r.Tag(DebtToEquity)
	require.True(t, ok)
	assert.Equal(t, "second", tag)

	r.SetTag(DebtToEquity, "")
	_, ok = r.Tag(DebtToEquity)
	assert.False(t, ok)
}

func TestRecord_FieldsSorted(t *testing.T) {
	r := New()
	r.SetFloat(TrailingPE, 1)
	r.SetFloat(BookValue, 2)
	r.SetFloat(MarketCap, 3)

	assert.Equal(t, []Field{BookValue, MarketCap, TrailingPE}, r.Fields())
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	r := New()
	r.SetFloat(TrailingPE, 10)
	r.SetTag(TrailingPE, "calculated")

	c := r.Clone()
	c.SetFloat(TrailingPE, 99)
	c.SetTag(TrailingPE, "other")

	v, _ := r.Float(TrailingPE)
	assert.Equal(t, 10.0, v)
	tag, _ := r.Tag(TrailingPE)
	assert.Equal(t, "calculated", tag)
}

func TestRecord_DeleteRemovesTag(t *testing.T) {
	r := New()
	r.SetFloat(TrailingPE, 10)
	r.SetTag(TrailingPE, "x")
	r.Delete(TrailingPE)

	assert.False(t, r.Has(TrailingPE))
	_, ok := r.Tag(TrailingPE)
	assert.False(t, ok)
}

func TestValue_JSON(t *testing.T) {
	r := New()
	r.SetFloat(TrailingPE, 12.5)
	r.SetText(Symbol, "AAPL")
	r.SetNull(MarketCap)

	b, err := json.Marshal(r.Map())
	require.NoError(t, err)
	assert.JSONEq(t, `{"trailingPE":12.5,"symbol":"AAPL","marketCap":null}`, string(b))
}

func TestNilRecordIsEmpty(t *testing.T) {
	var r *Record
	assert.True(t, r.Empty())
	assert.False(t, r.HasData())
}
