package validator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCardNumber(t *testing.T) {
	t.Parallel()

	v := CardNumber{}
	cases := []struct {
		in   any
		want any
		ok   bool
	}{
		{"4971858637664481", "4971858637664481", true},
		{"4971 8586 3766 4481", "4971858637664481", true},
		{"4971-8586-3766-4481", "4971858637664481", true},
		{int64(4971858637664481), "4971858637664481", true},
		{float64(4971858637664481), "4971858637664481", true},
		{json.Number("4971858637664481"), "4971858637664481", true},
		{"497185863766448", "497185863766448", false},
		{"49718586376644AB", "49718586376644AB", false},
		{"", "", false},
		{nil, nil, false},
	}
	for _, tc := range cases {
		got, ok := v.Check(tc.in)
		require.Equal(t, tc.ok, ok, "%v", tc.in)
		require.Equal(t, tc.want, got, "%v", tc.in)
	}
}

func TestCardNumber_ConfigurableLengths(t *testing.T) {
	t.Parallel()

	v := CardNumber{Lengths: []int{15, 16}}
	_, ok := v.Check("378282246310005")
	require.True(t, ok)
	_, ok = v.Check("4222222222222")
	require.False(t, ok)
}

func TestStoreName(t *testing.T) {
	t.Parallel()

	got, ok := StoreName{}.Check("  Bristol  ")
	require.True(t, ok)
	require.Equal(t, "Bristol", got)

	for _, in := range []any{"", "   ", 42.5} {
		_, ok := StoreName{}.Check(in)
		require.False(t, ok, "%v", in)
	}

	got, ok = StoreName{}.Check(nil)
	require.True(t, ok)
	require.Nil(t, got)
}

func TestPrice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want string
		ok   bool
	}{
		{"£39.99", "39.99", true},
		{"1,299.00", "1299", true},
		{float64(10), "10", true},
		{json.Number("0"), "0", true},
		{-5, "", false},
		{"-0.01", "", false},
		{"abc", "", false},
		{nil, "", false},
	}
	for _, tc := range cases {
		got, ok := Price{}.Check(tc.in)
		require.Equal(t, tc.ok, ok, "%v", tc.in)
		if tc.ok {
			require.True(t, got.(decimal.Decimal).Equal(decimal.RequireFromString(tc.want)), "%v", tc.in)
		}
	}
}

func TestDate(t *testing.T) {
	t.Parallel()

	d := Date{}
	want := time.Date(1968, 10, 16, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"1968-10-16", "1968/10/16", "1968 October 16", "October 1968 16", "1968 Oct 16"} {
		got, ok := d.Check(in)
		require.True(t, ok, in)
		require.True(t, want.Equal(got.(time.Time)), in)
	}

	for _, in := range []any{"16th of Oct", "", nil, 42.5} {
		_, ok := d.Check(in)
		require.False(t, ok, "%v", in)
	}

	restricted := Date{Layouts: []string{"02/01/2006"}}
	_, ok := restricted.Parse("1968-10-16")
	require.False(t, ok)
	got, ok := restricted.Parse("16/10/1968")
	require.True(t, ok)
	require.True(t, want.Equal(got))
}

func TestSet_Lookup(t *testing.T) {
	t.Parallel()

	s := Set{Card: CardNumber{Lengths: []int{13}}}
	for _, name := range []string{"card_number", "store_name", "price", "date"} {
		v, err := s.Lookup(name)
		require.NoError(t, err)
		require.Equal(t, name, v.Name())
	}
	_, err := s.Lookup("iban")
	require.Error(t, err)
}
