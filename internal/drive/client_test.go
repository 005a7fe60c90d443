package drive

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yontaro/kakeibo/internal/common"
	"github.com/yontaro/kakeibo/internal/model"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// shiftJIS re-encodes UTF-8 test fixtures the way the bank exports them.
func shiftJIS(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := transform.NewWriter(&buf, japanese.ShiftJIS.NewEncoder())
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecodeCSV(t *testing.T) {
	content := strings.Join([]string{
		"計算対象,日付,内容,金額,保有金融機関,大項目,中項目,メモ,振替,ID",
		"1,2021/01/10,昼食 ラーメン,-1200,三井住友銀行,食費,昼ごはん,,0,txn-1",
	}, "\n")

	rows, err := DecodeCSV("X_2021-01-05_2021-01-31.csv", bytes.NewReader(shiftJIS(t, content)))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "計算対象", rows[0][0])
	assert.Len(t, rows[1], model.FixedColumnCount)
	assert.Equal(t, "昼食 ラーメン", rows[1][model.ColContent])
	assert.Equal(t, "-1200", rows[1][model.ColAmount])
	assert.Equal(t, "txn-1", rows[1][model.ColID])
}

func TestDecodeCSVRejectsShortRow(t *testing.T) {
	content := strings.Join([]string{
		"1,2021/01/10,lunch,-1200,Bank A,Food,Lunch,,0,txn-1",
		"1,2021/01/11,missing fields,-800",
	}, "\n")

	_, err := DecodeCSV("X_2021-01-05_2021-01-31.csv", bytes.NewReader(shiftJIS(t, content)))
	require.Error(t, err)
	assert.True(t, common.IsFormatError(err))

	var formatErr *common.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "X_2021-01-05_2021-01-31.csv", formatErr.File)
	assert.Equal(t, 2, formatErr.Row)
}

func TestDecodeCSVEmpty(t *testing.T) {
	rows, err := DecodeCSV("empty.csv", bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDecodeCSVQuotedFields(t *testing.T) {
	content := `1,2021/01/10,"item, with comma",-1200,Bank A,Food,Lunch,,0,txn-1`

	rows, err := DecodeCSV("X_2021-01-05_2021-01-31.csv", bytes.NewReader(shiftJIS(t, content)))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "item, with comma", rows[0][model.ColContent])
}
