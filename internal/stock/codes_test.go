package stock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatZencodeMonthCodes(t *testing.T) {
	cases := map[time.Month]string{time.January: "1", time.September: "9", time.October: "A", time.November: "B", time.December: "C"}
	for month, code := range cases {
		day := time.Date(2031, month, 7, 0, 0, 0, 0, time.UTC)
		require.Equal(t, "31"+code+"07ABSJ12", FormatZencode(day, "AB", CategoryPhone, 12))
	}
}

func TestPlaceholderSerial(t *testing.T) {
	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "TMP2601020007", PlaceholderSerial(deferredSerialPrefix, day, 7))
	require.Equal(t, "SN26010212345", PlaceholderSerial(autoSerialPrefix, day, 12345))
}

func TestNormalizeSerial(t *testing.T) {
	got, err := NormalizeSerial("  ＡＢＣ－１２３\t")
	require.NoError(t, err)
	require.Equal(t, "ABC-123", got)

	for _, bad := range []string{"", "   ", "AB C", "A\x00B", string(make([]byte, 65)), "AB\xffCD", "AB\uFFFDCD"} {
		_, err := NormalizeSerial(bad)
		require.ErrorIs(t, err, ErrInvalidSerial, "%q", bad)
	}

	code, err := NormalizeZencode("26a16lwzj3")
	require.NoError(t, err)
	require.Equal(t, "26A16LWZJ3", code)
	_, err = NormalizeZencode(" ")
	require.ErrorIs(t, err, ErrInvalidZencode)
	_, err = NormalizeZencode("26A\xc3")
	require.ErrorIs(t, err, ErrInvalidZencode)
}

func TestComposeName(t *testing.T) {
	require.Equal(t, "i7 32G 1T RTX4060 white", ComposeName(ProductSpec{CPU: "i7", RAM: "32G", Disk: "1T", GPU: "RTX4060", Note: "white"}))
	require.Equal(t, "i5 8G 256G 核显主机", ComposeName(ProductSpec{CPU: "i5", RAM: "8G", Disk: "256G"}))
	require.Equal(t, "i5 8G mini 核显主机", ComposeName(ProductSpec{CPU: "i5", RAM: "8G", GPU: "核显主机", Note: "mini"}))
	require.Equal(t, "16G", ComposeName(ProductSpec{RAM: "16G"}))
}

func TestItemTransitions(t *testing.T) {
	require.True(t, ItemPending.CanTransition(ItemInStock))
	require.True(t, ItemInStock.CanTransition(ItemRented))
	require.True(t, ItemRented.CanTransition(ItemBad))
	require.False(t, ItemPending.CanTransition(ItemSold))
	require.False(t, ItemSold.CanTransition(ItemInStock))
	require.False(t, ItemBad.CanTransition(ItemInStock))
	require.True(t, ItemSold.Terminal())
	require.False(t, ItemRented.Terminal())

	it := Item{Status: ItemSold}
	require.Error(t, it.transition(ItemRented))
	require.Equal(t, ItemSold, it.Status)
}

func TestDeriveProductStatus(t *testing.T) {
	cases := []struct {
		counts map[ItemStatus]int
		want   ProductStatus
	}{
		{map[ItemStatus]int{}, ProductInStock},
		{map[ItemStatus]int{ItemPending: 1, ItemSold: 3}, ProductInStock},
		{map[ItemStatus]int{ItemRented: 1, ItemSold: 1}, ProductRented},
		{map[ItemStatus]int{ItemSold: 2}, ProductSold},
		{map[ItemStatus]int{ItemSold: 2, ItemBad: 1}, ProductRepair},
		{map[ItemStatus]int{ItemBad: 1}, ProductRepair},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, DeriveProductStatus(tc.counts), "%v", tc.counts)
	}
}
