package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"bankledger/internal/ledger"
	"bankledger/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
)

const statementEntries = 500

// StatementService renders an account's journal as a PDF.
type StatementService struct {
	engine *ledger.Engine
	log    zerolog.Logger
	now    func() time.Time
}

func NewStatementService(engine *ledger.Engine, log zerolog.Logger) *StatementService {
	return &StatementService{
		engine: engine,
		log:    log.With().Str("component", "statement").Logger(),
		now:    time.Now,
	}
}

func (s *StatementService) Write(ctx context.Context, w io.Writer, customerID, accountNumber int64) error {
	accounts, err := s.engine.Accounts(ctx, customerID)
	if err != nil {
		return err
	}
	var acct *model.Account
	for i := range accounts {
		if accounts[i].AccountNumber == accountNumber {
			acct = &accounts[i]
			break
		}
	}
	if acct == nil {
		return ledger.ErrAccountNotFound
	}

	entries, err := s.engine.Journal(ctx, customerID, accountNumber, statementEntries)
	if err != nil {
		return err
	}

	pdf := renderStatement(customerID, acct, entries, s.now())
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render statement: %w", err)
	}
	s.log.Debug().Int64("customer_id", customerID).Int64("account", accountNumber).Int("entries", len(entries)).Msg("statement rendered")
	return nil
}

var statementColumns = []struct {
	title string
	width float64
	align string
}{
	{"Date", 42, "L"},
	{"Type", 32, "L"},
	{"Reference", 52, "L"},
	{"Amount", 32, "R"},
	{"Balance", 32, "R"},
}

func renderStatement(customerID int64, acct *model.Account, entries []*model.JournalEntry, generated time.Time) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Statement %d", acct.AccountNumber), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Account Statement", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Customer ID: %d", customerID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Account: %d (%s)", acct.AccountNumber, acct.AccountType), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Routing code: "+acct.RoutingCode, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Current balance: %d", acct.Balance), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Generated: "+generated.Format(time.RFC1123), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range statementColumns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	if len(entries) == 0 {
		pdf.CellFormat(0, 7, "No transactions", "1", 1, "C", false, 0, "")
		return pdf
	}
	for _, e := range entries {
		row := []string{
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.Type,
			e.Reference,
			strconv.FormatInt(e.Amount, 10),
			strconv.FormatInt(e.BalanceAfter, 10),
		}
		for i, c := range statementColumns {
			pdf.CellFormat(c.width, 6, row[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf
}
