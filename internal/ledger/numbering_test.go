package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextNumber(t *testing.T) {
	march := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

	require.Equal(t, "BILL-2025030001", NextNumber(PrefixBill, march, ""))
	require.Equal(t, "BILL-2025030008", NextNumber(PrefixBill, march, "BILL-2025030007"))
	require.Equal(t, "PAY-2025030001", NextNumber(PrefixPayment, march, "PAY-2025020044"))
	require.Equal(t, "JE-20250310000", NextNumber(PrefixJournal, march, "JE-2025039999"))
	require.Equal(t, "JE-2025030001", NextNumber(PrefixJournal, march, "JE-202503garbage"))
}

func TestResolveEntryType(t *testing.T) {
	cases := []struct {
		nature   Nature
		increase bool
		want     EntryType
	}{
		{NatureAsset, true, EntryTypeDebit},
		{NatureAsset, false, EntryTypeCredit},
		{NatureExpense, true, EntryTypeDebit},
		{NatureExpense, false, EntryTypeCredit},
		{NatureLiability, true, EntryTypeCredit},
		{NatureLiability, false, EntryTypeDebit},
		{NatureEquity, true, EntryTypeCredit},
		{NatureEquity, false, EntryTypeDebit},
		{NatureRevenue, true, EntryTypeCredit},
		{NatureRevenue, false, EntryTypeDebit},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ResolveEntryType(tc.nature, tc.increase), "%s increase=%v", tc.nature, tc.increase)
	}
}

func TestIncreaseDecreaseLines(t *testing.T) {
	payable := Account{ID: 3, Nature: NatureLiability}
	line := Increase(payable, 150, "bill")
	require.Equal(t, PostingLine{AccountID: 3, Description: "bill", Credit: 150}, line)

	line = Decrease(payable, 150, "payment")
	require.Equal(t, PostingLine{AccountID: 3, Description: "payment", Debit: 150}, line)
}
