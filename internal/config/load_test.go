package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_HappyPath(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	tempConfigsSubDir := filepath.Join(tempDir, "configs")
	err = os.Mkdir(tempConfigsSubDir, 0755)
	require.NoError(t, err)

	testAppName := "TestApp"
	testPort := 9090
	testLogLevel := "debug"
	testKafkaBrokers := "kafka1:9092,kafka2:9092"
	testSegregated := "eur-pool:prov-eur-1:EUR,usd-pool:prov-usd-1:usd"

	envContent := fmt.Sprintf(
		"APP_NAME=%s\nSERVER_PORT=%d\nLOG_LEVEL=%s\nKAFKA_BROKERS=%s\nSEGREGATED_ACCOUNTS=%s\nWEBHOOK_SECRET=s3cr3t\n",
		testAppName, testPort, testLogLevel, testKafkaBrokers, testSegregated,
	)
	envFilePath := filepath.Join(tempConfigsSubDir, "test_happy.env")
	err = os.WriteFile(envFilePath, []byte(envContent), 0644)
	require.NoError(t, err)

	originalWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(originalWD)
	}()

	err = os.Chdir(tempDir)
	require.NoError(t, err)

	cfg, err := LoadConfig("test_happy")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, testAppName, cfg.Application.Name)
	assert.Equal(t, testPort, cfg.Server.Port)
	assert.Equal(t, testLogLevel, cfg.Logging.Level)
	assert.Equal(t, testKafkaBrokers, cfg.Kafka.Brokers)
	assert.Equal(t, "s3cr3t", cfg.Webhook.Secret)

	assert.Equal(t, "development", cfg.Application.Env)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "viban_payment_events", cfg.Kafka.PaymentEventTopic)
	assert.Equal(t, "reconciliation_alerts", cfg.Kafka.AlertTopic)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, 10, cfg.WorkerPool.Size)
	assert.Equal(t, 5*time.Minute, cfg.Polling.Interval)
	assert.Equal(t, 15*time.Minute, cfg.Polling.LookBack)
	assert.Equal(t, time.Duration(0), cfg.Polling.ProximityWindow)
	assert.Equal(t, time.Hour, cfg.BalanceValidation.Interval)
	assert.Equal(t, "0.01", cfg.BalanceValidation.Tolerance.String())
	assert.Equal(t, "0.01", cfg.Matching.Tolerance.String())

	require.Len(t, cfg.SegregatedAccounts, 2)
	assert.Equal(t, SegregatedAccount{ID: "eur-pool", ProviderAccountID: "prov-eur-1", Currency: "EUR"}, cfg.SegregatedAccounts[0])
	assert.Equal(t, "USD", cfg.SegregatedAccounts[1].Currency)

	found, ok := cfg.FindSegregatedAccount("prov-usd-1")
	assert.True(t, ok)
	assert.Equal(t, "usd-pool", found.ID)

	cfgWithName, err := LoadConfigWithName("configs/test_happy") // Viper will look for configs/test_happy.env
	require.NoError(t, err)
	require.NotNil(t, cfgWithName)
	assert.Equal(t, testAppName, cfgWithName.Application.Name)

	cfgWithNameAndType, err := LoadConfigWithNameAndType("configs/test_happy", "env")
	require.NoError(t, err)
	require.NotNil(t, cfgWithNameAndType)
	assert.Equal(t, testAppName, cfgWithNameAndType.Application.Name)
}

func TestConfig_Validate_HappyPath(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := fromViper(v)
	require.NoError(t, err)

	err = cfg.validate()
	assert.NoError(t, err, "Default config should be valid")
}

func TestConfig_Validate_PollingLookBack(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("POLLING_INTERVAL", 10*time.Minute)
	v.Set("POLLING_LOOKBACK", 15*time.Minute)

	cfg, err := fromViper(v)
	require.NoError(t, err)

	err = cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLLING_LOOKBACK must be at least twice POLLING_INTERVAL")
}

func TestConfig_Validate_AccumulatesErrors(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SERVER_PORT", 0)
	v.Set("PROVIDER_BASE_URL", "")
	v.Set("SEGREGATED_ACCOUNTS", "pool-a:prov-1:EUR,pool-a:prov-2:EUR")

	cfg, err := fromViper(v)
	require.NoError(t, err)

	err = cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT must be greater than 0")
	assert.Contains(t, err.Error(), "PROVIDER_BASE_URL is required")
	assert.Contains(t, err.Error(), `SEGREGATED_ACCOUNTS lists "pool-a" more than once`)
}

func TestFromViper_Tolerances(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("MATCH_TOLERANCE", "0.05")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "0.05", cfg.Matching.Tolerance.String())

	v.Set("BALANCE_VALIDATION_TOLERANCE", "-1")
	cfg, err = fromViper(v)
	require.NoError(t, err)
	err = cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BALANCE_VALIDATION_TOLERANCE cannot be negative")

	v.Set("MATCH_TOLERANCE", "one cent")
	_, err = fromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MATCH_TOLERANCE")
}

func TestParseSegregatedAccounts(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  []SegregatedAccount
		expectErr string
	}{
		{"Empty", "  ", nil, ""},
		{
			"TrimsAndUppercases",
			" pool-1 : prov-1 : eur , pool-2:prov-2:GBP,",
			[]SegregatedAccount{
				{ID: "pool-1", ProviderAccountID: "prov-1", Currency: "EUR"},
				{ID: "pool-2", ProviderAccountID: "prov-2", Currency: "GBP"},
			},
			"",
		},
		{"MissingPart", "pool-1:prov-1", nil, "must have the form"},
		{"EmptyID", ":prov-1:EUR", nil, "has an empty id"},
		{"BadCurrency", "pool-1:prov-1:EURO", nil, "3-letter currency code"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			accounts, err := ParseSegregatedAccounts(tc.raw)
			if tc.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, accounts)
		})
	}
}
