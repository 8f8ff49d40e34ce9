package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Parser reads OFX/QFX statement files into the local transaction model.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// SGML-style exports sometimes drop the closing bracket on a bare tag.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess fixes common formatting quirks in bank-exported OFX files
// before handing them to the strict parser.
func (p *Parser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	content = tagFixRegex.ReplaceAllString(content, "$1>")
	return content
}

// ParseFile parses an OFX/QFX file and returns the transactions stamped
// with the owning user. Amount signs are flipped from the OFX convention
// (negative debits) to ours (positive means money out).
func (p *Parser) ParseFile(_ context.Context, userID string, reader io.Reader) ([]model.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			if stmt.BankTranList == nil {
				continue
			}
			accountID := string(stmt.BankAcctFrom.AcctID)
			for _, ofxTx := range stmt.BankTranList.Transactions {
				transactions = append(transactions, p.convert(ofxTx, userID, accountID))
			}
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			if stmt.BankTranList == nil {
				continue
			}
			accountID := string(stmt.CCAcctFrom.AcctID)
			for _, ofxTx := range stmt.BankTranList.Transactions {
				transactions = append(transactions, p.convert(ofxTx, userID, accountID))
			}
		}
	}

	slog.Info("Parsed OFX file",
		"user_id", userID,
		"total_transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return transactions, nil
}

// GetAccounts extracts the unique account IDs present in the OFX file.
func (p *Parser) GetAccounts(_ context.Context, reader io.Reader) ([]string, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			if stmt.BankAcctFrom.AcctID != "" {
				seen[string(stmt.BankAcctFrom.AcctID)] = true
			}
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			if stmt.CCAcctFrom.AcctID != "" {
				seen[string(stmt.CCAcctFrom.AcctID)] = true
			}
		}
	}

	accounts := make([]string, 0, len(seen))
	for acct := range seen {
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// typeCategories maps OFX transaction types that imply a category. OFX
// carries no category data otherwise.
var typeCategories = map[string]string{
	"INT": "Interest",
	"FEE": "Bank Fees",
	"ATM": "Cash & ATM",
}

// convert maps one OFX transaction to the local model.
func (p *Parser) convert(ofxTx ofxgo.Transaction, userID, accountID string) model.Transaction {
	amount, _ := ofxTx.TrnAmt.Float64()

	posted := ofxTx.DtPosted.Time
	var timestamp *time.Time
	if posted.Hour() != 0 || posted.Minute() != 0 || posted.Second() != 0 {
		at := posted
		timestamp = &at
	}

	tx := model.Transaction{
		ID:           string(ofxTx.FiTID),
		UserID:       userID,
		Date:         posted,
		Timestamp:    timestamp,
		Name:         string(ofxTx.Name),
		MerchantName: p.extractMerchantName(ofxTx),
		Amount:       -amount,
		AccountID:    accountID,
		Type:         fmt.Sprintf("%v", ofxTx.TrnType),
	}
	if ofxTx.CheckNum != "" {
		tx.CheckNumber = string(ofxTx.CheckNum)
	}
	tx.Category = typeCategories[tx.Type]
	tx.Hash = tx.GenerateHash()
	return tx
}

// merchantPrefixes are processor boilerplate stripped from descriptions.
var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// extractMerchantName pulls the cleanest counterparty name available from
// an OFX transaction.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Drop a leading MM/DD transaction date.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

var genericDescriptions = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// isGenericDescription reports whether a transaction name carries no
// merchant information, in which case the memo is worth a look.
func isGenericDescription(name string) bool {
	return genericDescriptions[strings.ToUpper(name)]
}
