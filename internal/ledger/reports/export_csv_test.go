package reports

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caravel-erp/caravel/internal/ledger"
)

func TestFormatMinor(t *testing.T) {
	require.Equal(t, "0.00", formatMinor(0))
	require.Equal(t, "0.05", formatMinor(5))
	require.Equal(t, "170.00", formatMinor(17000))
	require.Equal(t, "12,345.67", formatMinor(1234567))
	require.Equal(t, "-1,500.25", formatMinor(-150025))
}

func TestWriteTrialBalanceCSV(t *testing.T) {
	report := BuildTrialBalance(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), []AccountBalanceRow{
		{AccountID: 1, Code: "1000", Name: "Cash on Hand", Type: ledger.AccountTypeAsset, Debit: 1234567},
		{AccountID: 2, Code: "3000", Name: "Opening Balance Equity", Type: ledger.AccountTypeEquity, Credit: 1234567},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteTrialBalanceCSV(&buf, report))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\r\n")
	require.Len(t, lines, 4)
	require.Equal(t, "Code,Account,Debit,Credit", lines[0])
	require.Equal(t, `1000,Cash on Hand,"12,345.67",0.00`, lines[1])
	require.Equal(t, `,Total,"12,345.67","12,345.67"`, lines[3])
}

func TestWriteCashBookCSV(t *testing.T) {
	book := BuildCashBook(
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		10000,
		[]CashMovementRow{
			{EntryID: 7, EntryDate: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), Description: "Receipt from Acme", AccountCode: "1000", Debit: 4000},
		},
	)

	var buf bytes.Buffer
	require.NoError(t, WriteCashBookCSV(&buf, book))

	out := buf.String()
	require.Contains(t, out, "Opening balance,,,100.00")
	require.Contains(t, out, "2025-02-03,1000,Receipt from Acme,40.00,0.00,140.00")
	require.Contains(t, out, "Closing balance,40.00,0.00,140.00")
}
