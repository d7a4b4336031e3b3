package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reports", "run.xlsx")
	run, trades, equity := records(t, RunMeta{Strategy: "sma"}, sampleResult())
	require.NoError(t, WriteXLSX(path, run, trades, equity))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{summarySheet, tradesSheet, equitySheet}, fx.GetSheetList())

	v, err := fx.GetCellValue(summarySheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Run ID", v)
	v, err = fx.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, run.RunID, v)

	rows, err := fx.GetRows(tradesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Side", rows[0][1])
	assert.Equal(t, "SHORT", rows[2][1])
	assert.Equal(t, "STOP", rows[2][10])

	rows, err = fx.GetRows(equitySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 6)
}

func TestWriteXLSXInfiniteProfitFactor(t *testing.T) {
	t.Parallel()

	res := sampleResult()
	res.Trades = res.Trades[:1]
	run, trades, equity := records(t, RunMeta{}, res)

	path := filepath.Join(t.TempDir(), "run.xlsx")
	require.NoError(t, WriteXLSX(path, run, trades, equity))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	v, err := fx.GetCellValue(summarySheet, "B18")
	require.NoError(t, err)
	assert.Equal(t, "inf", v)
}
