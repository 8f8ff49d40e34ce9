// Package plaid syncs transactions from the Plaid API into the local model.
package plaid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/plaid/plaid-go/v20/plaid"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// Config holds Plaid API configuration.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	AccessToken string
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("plaid client ID is required")
	}
	if c.Secret == "" {
		return fmt.Errorf("plaid secret is required")
	}
	if c.AccessToken == "" {
		return fmt.Errorf("plaid access token is required")
	}
	return validateEnvironment(c.Environment)
}

func validateEnvironment(env string) error {
	switch env {
	case "sandbox", "production":
		return nil
	case "":
		return fmt.Errorf("plaid environment is required")
	default:
		return fmt.Errorf("invalid Plaid environment %q: must be sandbox or production", env)
	}
}

// Client fetches transactions and accounts through the Plaid API.
type Client struct {
	client      *plaid.APIClient
	logger      *slog.Logger
	retryOpts   *service.RetryOptions
	accessToken string
	environment string
}

// NewClient creates a new Plaid client with the given configuration. The
// access token may be empty when the client is only used for the Link
// flow.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("plaid client ID is required")
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("plaid secret is required")
	}
	if err := validateEnvironment(cfg.Environment); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	return &Client{
		client:      plaid.NewAPIClient(configuration),
		accessToken: cfg.AccessToken,
		environment: cfg.Environment,
		logger:      slog.Default().With("component", "plaid"),
		retryOpts: &service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// GetTransactions fetches every transaction in the date range, following
// Plaid's pagination, and stamps the results with the owning user.
func (c *Client) GetTransactions(ctx context.Context, userID string, startDate, endDate time.Time) ([]model.Transaction, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if startDate.After(endDate) {
		return nil, fmt.Errorf("start date must be before end date")
	}

	c.logger.Info("Fetching transactions from Plaid",
		"user_id", userID,
		"start_date", startDate.Format("2006-01-02"),
		"end_date", endDate.Format("2006-01-02"))

	const pageSize = int32(500) // Plaid's max page size

	var all []plaid.Transaction
	offset := int32(0)
	for {
		var page []plaid.Transaction

		retryErr := common.WithRetry(ctx, func() error {
			request := plaid.NewTransactionsGetRequest(
				c.accessToken,
				startDate.Format("2006-01-02"),
				endDate.Format("2006-01-02"),
			)
			request.SetOptions(plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			})

			resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				return c.triageError(err, "failed to fetch transactions")
			}

			page = resp.GetTransactions()
			c.logger.Debug("Fetched transaction batch",
				"count", len(page),
				"offset", offset,
				"total", resp.GetTotalTransactions())
			return nil
		}, *c.retryOpts)
		if retryErr != nil {
			return nil, retryErr
		}

		all = append(all, page...)
		if len(page) < int(pageSize) {
			break
		}
		offset += pageSize
	}

	c.logger.Info("Fetched all transactions", "user_id", userID, "count", len(all))

	transactions := make([]model.Transaction, 0, len(all))
	for _, pt := range all {
		transactions = append(transactions, c.mapTransaction(userID, pt))
	}
	return transactions, nil
}

// GetAccounts fetches the account IDs linked to the access token.
func (c *Client) GetAccounts(ctx context.Context) ([]string, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	var accounts []plaid.AccountBase
	retryErr := common.WithRetry(ctx, func() error {
		request := plaid.NewAccountsGetRequest(c.accessToken)
		resp, _, err := c.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
		if err != nil {
			return c.triageError(err, "failed to fetch accounts")
		}
		accounts = resp.GetAccounts()
		return nil
	}, *c.retryOpts)
	if retryErr != nil {
		return nil, retryErr
	}

	c.logger.Info("Fetched accounts", "count", len(accounts))

	accountIDs := make([]string, 0, len(accounts))
	for _, account := range accounts {
		accountIDs = append(accountIDs, account.GetAccountId())
	}
	return accountIDs, nil
}

// CreateLinkToken creates a Link token so the user can connect an
// institution.
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user ID is required")
	}

	request := plaid.NewLinkTokenCreateRequest(
		"LedgerLens",
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		plaid.LinkTokenCreateRequestUser{ClientUserId: userID},
	)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
	// OAuth banks require a redirect URI in production; it must match the
	// Plaid dashboard configuration.
	if c.environment == "production" {
		request.SetRedirectUri("https://localhost:8080/")
	}

	resp, _, err := c.client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", c.triageError(err, "failed to create link token")
	}
	return resp.GetLinkToken(), nil
}

// ExchangePublicToken exchanges a public token from Link for an access
// token and item ID.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, _, err := c.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return "", "", c.triageError(err, "failed to exchange public token")
	}
	return resp.GetAccessToken(), resp.GetItemId(), nil
}

// triageError classifies a Plaid API failure for the retry wrapper: rate
// limits back off at the maximum delay, other API errors fail fast, and
// transport errors stay retryable.
func (c *Client) triageError(err error, msg string) error {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if plaidErr.ErrorCode == "RATE_LIMIT_EXCEEDED" {
		c.logger.Warn("Plaid rate limit hit, will retry", "error", plaidErr.ErrorMessage)
		return fmt.Errorf("plaid API: %w", common.ErrRateLimit)
	}
	return &common.RetryableError{
		Err:       fmt.Errorf("plaid API error: %s - %s", plaidErr.ErrorCode, plaidErr.ErrorMessage),
		Retryable: false,
	}
}

// mapTransaction converts a Plaid transaction to the local model. Plaid's
// sign convention matches ours: positive amounts are money out.
func (c *Client) mapTransaction(userID string, pt plaid.Transaction) model.Transaction {
	date, err := time.Parse("2006-01-02", pt.GetDate())
	if err != nil {
		c.logger.Error("Failed to parse transaction date", "date", pt.GetDate(), "error", err)
		date = time.Now()
	}

	var timestamp *time.Time
	if dt, ok := pt.GetDatetimeOk(); ok && dt != nil {
		posted := *dt
		timestamp = &posted
	}

	merchantName := pt.GetMerchantName()
	if merchantName == "" {
		merchantName = pt.GetName()
	}
	merchantName = cleanMerchantName(merchantName)

	category := ""
	if categories := pt.GetCategory(); len(categories) > 0 {
		category = categories[0]
	}

	transactionType := ""
	switch pt.GetPaymentChannel() {
	case "online":
		transactionType = "ONLINE"
	case "in store", "in_store":
		transactionType = "POS"
	case "":
	default:
		transactionType = "OTHER"
	}

	checkNumber := ""
	if pt.HasCheckNumber() {
		if num := pt.GetCheckNumber(); num != "" {
			checkNumber = num
			if transactionType == "" {
				transactionType = "CHECK"
			}
		}
	}

	tx := model.Transaction{
		Date:         date,
		Timestamp:    timestamp,
		ID:           pt.GetTransactionId(),
		UserID:       userID,
		AccountID:    pt.GetAccountId(),
		Name:         pt.GetName(),
		MerchantName: merchantName,
		Category:     category,
		Type:         transactionType,
		CheckNumber:  checkNumber,
		Amount:       pt.GetAmount(),
		Pending:      pt.GetPending(),
	}
	tx.Hash = tx.GenerateHash()
	return tx
}

var corporateSuffixes = []string{
	" Llc",
	" Inc",
	" Corp",
	" Corporation",
	" Company",
	" Co",
	" Ltd",
	" Limited",
}

// cleanMerchantName normalizes a merchant name: title case, trailing
// transaction IDs dropped, corporate suffixes stripped.
func cleanMerchantName(name string) string {
	words := strings.Fields(strings.ToLower(name))
	for i, word := range words {
		words[i] = titleCase(word)
	}

	if len(words) > 1 {
		last := words[len(words)-1]
		if len(last) > 5 && isAllDigits(last) {
			words = words[:len(words)-1]
		}
	}
	name = strings.Join(words, " ")

	for changed := true; changed; {
		changed = false
		for _, suffix := range corporateSuffixes {
			if strings.HasSuffix(name, suffix) {
				name = strings.TrimSuffix(name, suffix)
				changed = true
			}
		}
	}
	return strings.TrimSpace(name)
}

func titleCase(word string) string {
	runes := []rune(word)
	for i, r := range runes {
		if i == 0 || !unicode.IsLetter(runes[i-1]) {
			runes[i] = unicode.ToUpper(r)
		}
	}
	return string(runes)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Ensure Client implements TransactionFetcher.
var _ TransactionFetcher = (*Client)(nil)
