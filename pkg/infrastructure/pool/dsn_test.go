package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDSN(t *testing.T) {
	tests := []struct {
		dsn   string
		token string
		want  string
	}{
		{"motherduck://mydb", "tok", "md:mydb?motherduck_token=tok"},
		{"md:mydb", "tok", "md:mydb?motherduck_token=tok"},
		{"motherduck://", "tok", "md:?motherduck_token=tok"},
		{"md:mydb?motherduck_token=mine", "tok", "md:mydb?motherduck_token=mine"},
		{"md:mydb?saas_mode=true", "tok", "md:mydb?motherduck_token=tok&saas_mode=true"},
		{"motherduck://mydb", "", "md:mydb"},
		{"analytics.duckdb", "tok", "analytics.duckdb"},
		{":memory:", "tok", ":memory:"},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDSN(tt.dsn, tt.token))
		})
	}
}

func TestIsMotherDuckDSN(t *testing.T) {
	assert.True(t, IsMotherDuckDSN("md:analytics"))
	assert.True(t, IsMotherDuckDSN("motherduck://analytics"))
	assert.False(t, IsMotherDuckDSN("duckdb://localhost/db"))
	assert.False(t, IsMotherDuckDSN(":memory:"))
}
