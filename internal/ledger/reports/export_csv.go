package reports

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/caravel-erp/caravel/internal/ledger"
)

const csvBufferSize = 32 * 1024

var csvPrinter = message.NewPrinter(language.English)

// formatMinor renders a minor-unit amount as a grouped decimal string for the
// export, e.g. 1234567 -> "12,345.67". Presentation only; the engine never
// parses these back.
func formatMinor(v ledger.Amount) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return csvPrinter.Sprintf("%s%v.%02d", sign, v/100, v%100)
}

type csvWriter struct {
	buf *bufio.Writer
	csv *csv.Writer
}

func newCSVWriter(w io.Writer) *csvWriter {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvWriter{buf: buf, csv: writer}
}

func (w *csvWriter) writeRow(row []string) error {
	return w.csv.Write(row)
}

func (w *csvWriter) flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	return w.buf.Flush()
}

// WriteTrialBalanceCSV streams the trial balance as CSV.
func WriteTrialBalanceCSV(w io.Writer, report TrialBalance) error {
	out := newCSVWriter(w)
	if err := out.writeRow([]string{"Code", "Account", "Debit", "Credit"}); err != nil {
		return err
	}
	for _, row := range report.Rows {
		record := []string{row.Code, row.Name, formatMinor(row.Debit), formatMinor(row.Credit)}
		if err := out.writeRow(record); err != nil {
			return err
		}
	}
	if err := out.writeRow([]string{"", "Total", formatMinor(report.TotalDebit), formatMinor(report.TotalCredit)}); err != nil {
		return err
	}
	return out.flush()
}

// WriteCashBookCSV streams the cash book as CSV.
func WriteCashBookCSV(w io.Writer, book CashBook) error {
	out := newCSVWriter(w)
	if err := out.writeRow([]string{"Date", "Account", "Description", "Cash In", "Cash Out", "Balance"}); err != nil {
		return err
	}
	opening := []string{"", "", "Opening balance", "", "", formatMinor(book.OpeningBalance)}
	if err := out.writeRow(opening); err != nil {
		return err
	}
	for _, line := range book.Lines {
		record := []string{
			line.Date.Format("2006-01-02"),
			line.AccountCode,
			line.Description,
			formatMinor(line.CashIn),
			formatMinor(line.CashOut),
			formatMinor(line.RunningBalance),
		}
		if err := out.writeRow(record); err != nil {
			return err
		}
	}
	closing := []string{"", "", "Closing balance",
		formatMinor(book.TotalCashIn), formatMinor(book.TotalCashOut), formatMinor(book.ClosingBalance)}
	if err := out.writeRow(closing); err != nil {
		return err
	}
	return out.flush()
}

// CSVFilename builds the attachment name for a report download.
func CSVFilename(report string, suffix string) string {
	return fmt.Sprintf("%s-%s.csv", report, suffix)
}
