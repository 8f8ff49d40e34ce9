package simplefin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBridge starts a fake SimpleFIN bridge with a claim endpoint and an
// accounts endpoint serving the given payload.
func newBridge(t *testing.T, payload accountSet) (*httptest.Server, string, *atomic.Int32) {
	t.Helper()

	var claims atomic.Int32
	mux := http.NewServeMux()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/claim", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		claims.Add(1)
		fmt.Fprint(w, server.URL+"/access")
	})
	mux.HandleFunc("/access/accounts", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	})

	token := base64.URLEncoding.EncodeToString([]byte(server.URL + "/claim"))
	return server, token, &claims
}

func stateFilePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "simplefin.json")
}

func TestNewClientClaimsTokenOnce(t *testing.T) {
	server, token, claims := newBridge(t, accountSet{})
	stateFile := stateFilePath(t)

	client, err := NewClient(context.Background(), Config{Token: token, StateFile: stateFile})
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/access", client.accessURL)
	assert.Equal(t, int32(1), claims.Load())

	// The saved access URL is reused, with or without the token.
	again, err := NewClient(context.Background(), Config{Token: token, StateFile: stateFile})
	require.NoError(t, err)
	assert.Equal(t, client.accessURL, again.accessURL)

	tokenless, err := NewClient(context.Background(), Config{StateFile: stateFile})
	require.NoError(t, err)
	assert.Equal(t, client.accessURL, tokenless.accessURL)

	assert.Equal(t, int32(1), claims.Load())
}

func TestNewClientWithoutTokenOrState(t *testing.T) {
	_, err := NewClient(context.Background(), Config{StateFile: stateFilePath(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no SimpleFIN setup token")
}

func TestNewClientClaimRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "token already claimed", http.StatusForbidden)
	}))
	defer server.Close()

	token := base64.URLEncoding.EncodeToString([]byte(server.URL))
	_, err := NewClient(context.Background(), Config{Token: token, StateFile: stateFilePath(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim rejected: 403")
}

func TestNewClientBadToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%not-base64%%%"},
		{name: "not a URL", token: base64.URLEncoding.EncodeToString([]byte("just some text"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(context.Background(), Config{Token: tt.token, StateFile: stateFilePath(t)})
			require.Error(t, err)
		})
	}
}

func TestGetTransactions(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.Local)

	payload := accountSet{Accounts: []account{{
		ID:   "acct-1",
		Name: "Checking",
		Transactions: []transaction{
			{
				ID:          "tx-1",
				Posted:      time.Date(2024, 6, 3, 9, 30, 0, 0, time.Local).Unix(),
				Amount:      "-12.50",
				Description: "NETFLIX.COM 866-579-7172",
				Payee:       "Netflix",
			},
			{
				ID:          "tx-2",
				Posted:      time.Date(2024, 6, 15, 0, 0, 0, 0, time.Local).Unix(),
				Amount:      "2000.00",
				Description: "PAYROLL DEPOSIT",
			},
			{
				ID:          "tx-3",
				Posted:      time.Date(2024, 6, 20, 14, 0, 0, 0, time.Local).Unix(),
				Amount:      "-45.00",
				Description: "PENDING HOLD",
				Pending:     true,
			},
			{
				ID:          "tx-old",
				Posted:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local).Unix(),
				Amount:      "-9.99",
				Description: "OUT OF RANGE",
			},
		},
	}}}

	_, token, _ := newBridge(t, payload)
	client, err := NewClient(context.Background(), Config{Token: token, StateFile: stateFilePath(t)})
	require.NoError(t, err)

	transactions, err := client.GetTransactions(context.Background(), "user-1", start, end)
	require.NoError(t, err)
	require.Len(t, transactions, 3)

	netflix := transactions[0]
	assert.Equal(t, "acct-1:tx-1", netflix.ID)
	assert.Equal(t, "user-1", netflix.UserID)
	assert.Equal(t, "acct-1", netflix.AccountID)
	assert.Equal(t, "Netflix", netflix.MerchantName)
	assert.Equal(t, "NETFLIX.COM 866-579-7172", netflix.Name)
	assert.InDelta(t, 12.50, netflix.Amount, 0.001)
	require.NotNil(t, netflix.Timestamp)
	assert.Equal(t, 9, netflix.Timestamp.Hour())
	assert.NotEmpty(t, netflix.Hash)
	assert.False(t, netflix.Pending)

	payroll := transactions[1]
	assert.InDelta(t, -2000.00, payroll.Amount, 0.001)
	assert.Equal(t, "PAYROLL DEPOSIT", payroll.MerchantName)
	assert.Nil(t, payroll.Timestamp)

	hold := transactions[2]
	assert.True(t, hold.Pending)
}

func TestGetTransactionsBadAmount(t *testing.T) {
	payload := accountSet{Accounts: []account{{
		ID: "acct-1",
		Transactions: []transaction{{
			ID:     "tx-1",
			Posted: time.Now().Unix(),
			Amount: "12,50",
		}},
	}}}

	_, token, _ := newBridge(t, payload)
	client, err := NewClient(context.Background(), Config{Token: token, StateFile: stateFilePath(t)})
	require.NoError(t, err)

	_, err = client.GetTransactions(context.Background(), "user-1", time.Now().AddDate(0, 0, -1), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse amount")
}

func TestGetTransactionsValidation(t *testing.T) {
	_, token, _ := newBridge(t, accountSet{})
	client, err := NewClient(context.Background(), Config{Token: token, StateFile: stateFilePath(t)})
	require.NoError(t, err)

	_, err = client.GetTransactions(context.Background(), "", time.Now().AddDate(0, 0, -1), time.Now())
	assert.ErrorContains(t, err, "user ID is required")

	_, err = client.GetTransactions(context.Background(), "user-1", time.Now(), time.Now().AddDate(0, 0, -1))
	assert.ErrorContains(t, err, "start date must be before end date")
}

func TestGetAccounts(t *testing.T) {
	payload := accountSet{Accounts: []account{
		{ID: "acct-1", Name: "Checking"},
		{ID: "acct-2", Name: "Savings"},
	}}

	_, token, _ := newBridge(t, payload)
	client, err := NewClient(context.Background(), Config{Token: token, StateFile: stateFilePath(t)})
	require.NoError(t, err)

	accounts, err := client.GetAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acct-1", "acct-2"}, accounts)
}

func TestGetTransactionsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bridge unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	stateFile := stateFilePath(t)
	state := &authState{AccessURL: server.URL, ClaimedAt: time.Now()}
	require.NoError(t, saveAuthState(stateFile, state))

	client, err := NewClient(context.Background(), Config{StateFile: stateFile})
	require.NoError(t, err)

	_, err = client.GetTransactions(context.Background(), "user-1", time.Now().AddDate(0, 0, -1), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SimpleFIN returned 502")
}

func TestSaveAuthStatePermissions(t *testing.T) {
	stateFile := stateFilePath(t)
	require.NoError(t, saveAuthState(stateFile, &authState{AccessURL: "https://bridge/access"}))

	info, err := os.Stat(stateFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
