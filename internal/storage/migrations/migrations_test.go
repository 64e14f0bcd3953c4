package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	pg, err := Load("postgres")
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Equal(t, "001_trade_records", pg[0].Version)
	assert.Contains(t, pg[0].SQL, "trade_records_append_only")

	for i := 1; i < len(pg); i++ {
		assert.Less(t, pg[i-1].Version, pg[i].Version)
	}

	_, err = Load("sqlite")
	assert.Error(t, err)
}

func TestClickhouseMigrationsSplitCleanly(t *testing.T) {
	ch, err := Load("clickhouse")
	require.NoError(t, err)
	require.Len(t, ch, 1)

	require.NoError(t, validateNoSemicolonInStrings(ch[0].SQL))
	stmts := splitStatements(ch[0].SQL)
	require.Len(t, stmts, 1)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS trade_records"))
}

func TestSplitStatements(t *testing.T) {
	input := "-- comment\nCREATE TABLE a (x UInt8);\n\nCREATE TABLE b (y UInt8);\n"
	assert.Equal(t, []string{"CREATE TABLE a (x UInt8)", "CREATE TABLE b (y UInt8)"}, splitStatements(input))
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings("SELECT 'it''s fine'"))
	assert.Error(t, validateNoSemicolonInStrings("SELECT 'a;b'"))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/copytrader")
	require.NoError(t, err)
	assert.Equal(t, "copytrader", db)

	_, err = databaseFromDSN("clickhouse://default@localhost:9000")
	assert.Error(t, err)
}
