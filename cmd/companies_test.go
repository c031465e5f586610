package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenkay/filing-pipeline/internal/model"
)

func TestParseSeed(t *testing.T) {
	companies, err := parseSeed([]byte(`companies:
  - ticker: " nvda "
    cik: "1045810"
    name: NVIDIA
    sector: Semiconductors
  - ticker: tsla
    enabled: false
`))
	require.NoError(t, err)
	require.Len(t, companies, 2)

	assert.Equal(t, model.Company{Ticker: "NVDA", CIK: "1045810", Name: "NVIDIA", Sector: "Semiconductors", Enabled: true}, companies[0])
	assert.Equal(t, "TSLA", companies[1].Name, "name falls back to the ticker")
	assert.False(t, companies[1].Enabled)
}

func TestParseSeed_Errors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":       "companies: [",
		"missing ticker": "companies:\n  - name: Nobody\n",
		"duplicate":      "companies:\n  - ticker: AAPL\n  - ticker: aapl\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseSeed([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestNewSubscriber(t *testing.T) {
	sub, err := newSubscriber(" Ann <ANN@example.com> ", " Ann ", "PAID", true)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", sub.Email)
	assert.Equal(t, "Ann", sub.FirstName)
	assert.Equal(t, model.TierPaid, sub.Tier)
	assert.True(t, sub.Enabled)

	_, err = newSubscriber("not-an-email", "", "free", true)
	assert.Error(t, err)

	_, err = newSubscriber("a@example.com", "", "all", true)
	assert.ErrorContains(t, err, "free or paid")
}
