// Package simplefin fetches transactions through the SimpleFIN bridge
// protocol. A one-time setup token is claimed for a permanent access
// URL, and the /accounts endpoint serves accounts with their
// transactions in a single response.
package simplefin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Config holds the settings for a SimpleFIN connection.
type Config struct {
	// Token is the one-time setup token from the SimpleFIN bridge. Only
	// needed until the access URL has been claimed and saved.
	Token string
	// StateFile overrides where the claimed access URL is persisted.
	StateFile string
}

// Client fetches accounts and transactions from a SimpleFIN bridge.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	accessURL  string
}

type accountSet struct {
	Accounts []account `json:"accounts"`
}

type account struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Currency     string        `json:"currency"`
	Balance      string        `json:"balance"`
	Transactions []transaction `json:"transactions"`
}

type transaction struct {
	ID          string `json:"id"`
	Posted      int64  `json:"posted"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Payee       string `json:"payee"`
	Pending     bool   `json:"pending"`
}

// NewClient claims the setup token if no access URL has been saved yet
// and returns a ready client.
func NewClient(ctx context.Context, config Config) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	stateFile := config.StateFile
	if stateFile == "" {
		var err error
		stateFile, err = defaultStateFile()
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	if config.Token == "" {
		state, err := loadAuthState(stateFile)
		if err != nil || state.AccessURL == "" {
			return nil, fmt.Errorf("no SimpleFIN setup token configured and no saved access URL found")
		}
		return &Client{
			httpClient: httpClient,
			logger:     slog.Default().With("component", "simplefin"),
			accessURL:  state.AccessURL,
		}, nil
	}

	state, err := loadOrClaim(ctx, httpClient, stateFile, config.Token)
	if err != nil {
		return nil, err
	}

	return &Client{
		httpClient: httpClient,
		logger:     slog.Default().With("component", "simplefin"),
		accessURL:  state.AccessURL,
	}, nil
}

// GetTransactions fetches every transaction posted in the date range and
// stamps the results with the owning user.
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

	c.logger.Info("Fetching transactions from SimpleFIN",
		"user_id", userID,
		"start_date", startDate.Format("2006-01-02"),
		"end_date", endDate.Format("2006-01-02"))

	query := url.Values{}
	query.Set("start-date", strconv.FormatInt(startDate.Unix(), 10))
	// SimpleFIN treats end-date as exclusive.
	query.Set("end-date", strconv.FormatInt(endDate.AddDate(0, 0, 1).Unix(), 10))

	set, err := c.fetchAccounts(ctx, query)
	if err != nil {
		return nil, err
	}

	var transactions []model.Transaction
	for _, acct := range set.Accounts {
		for _, tx := range acct.Transactions {
			posted := time.Unix(tx.Posted, 0)
			if posted.Before(startDate) || posted.After(endDate.AddDate(0, 0, 1)) {
				continue
			}

			mapped, mapErr := c.mapTransaction(userID, acct.ID, tx)
			if mapErr != nil {
				return nil, fmt.Errorf("account %s: %w", acct.ID, mapErr)
			}
			transactions = append(transactions, mapped)
		}
	}

	c.logger.Info("Fetched all transactions", "user_id", userID, "count", len(transactions))
	return transactions, nil
}

// GetAccounts fetches the account IDs available through the bridge.
func (c *Client) GetAccounts(ctx context.Context) ([]string, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	set, err := c.fetchAccounts(ctx, url.Values{"balances-only": {"1"}})
	if err != nil {
		return nil, err
	}

	accountIDs := make([]string, 0, len(set.Accounts))
	for _, acct := range set.Accounts {
		accountIDs = append(accountIDs, acct.ID)
	}

	c.logger.Info("Fetched accounts", "count", len(accountIDs))
	return accountIDs, nil
}

func (c *Client) fetchAccounts(ctx context.Context, query url.Values) (*accountSet, error) {
	u, err := url.Parse(c.accessURL + "/accounts")
	if err != nil {
		return nil, fmt.Errorf("invalid access URL: %w", err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("SimpleFIN returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var set accountSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &set, nil
}

// mapTransaction converts a SimpleFIN transaction to the local model.
// SimpleFIN amounts are decimal dollars with debits negative, the
// opposite of the signed-outflow convention used here.
func (c *Client) mapTransaction(userID, accountID string, tx transaction) (model.Transaction, error) {
	amount, err := strconv.ParseFloat(tx.Amount, 64)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to parse amount %q: %w", tx.Amount, err)
	}

	posted := time.Unix(tx.Posted, 0)
	var timestamp *time.Time
	if posted.Hour() != 0 || posted.Minute() != 0 || posted.Second() != 0 {
		at := posted
		timestamp = &at
	}

	merchant := strings.TrimSpace(tx.Payee)
	if merchant == "" {
		merchant = strings.TrimSpace(tx.Description)
	}

	mapped := model.Transaction{
		Date:         posted,
		Timestamp:    timestamp,
		ID:           accountID + ":" + tx.ID,
		UserID:       userID,
		AccountID:    accountID,
		Name:         tx.Description,
		MerchantName: merchant,
		Amount:       -amount,
		Pending:      tx.Pending,
	}
	mapped.Hash = mapped.GenerateHash()
	return mapped, nil
}
