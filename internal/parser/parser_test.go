package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"investsql/internal/models"
)

func TestCleanPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"#ERROR!", ""},
		{" #ERROR! ", ""},
		{"+91 98765 43210", "919876543210"},
		{"(044) 2345-6789", "04423456789"},
		{"9876543210", "9876543210"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanPhone(tt.in), "CleanPhone(%q)", tt.in)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"₹8,00,000", "800000"},
		{"₹ 1,50,000.50", "150000.5"},
		{"25000", "25000"},
		{"", "0"},
		{"  ", "0"},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "ParseAmount(%q) = %s", tt.in, got)
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	got, err := ParseAmount("TBD")
	require.Error(t, err)
	assert.True(t, got.IsZero())
	assert.Contains(t, err.Error(), "TBD")
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.July, 11, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"11 July 2024",
		"11 july 2024",
		"11 Jul 2024",
		"11-07-2024",
		"11/07/2024",
		"2024-07-11",
		"  11 July 2024 ",
	} {
		got, ok, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, ok, in)
		assert.True(t, want.Equal(got), "ParseDate(%q) = %v", in, got)
	}

	got, ok, err := ParseDate("1 July 2024")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, got.Day())
}

func TestParseDate_BlankAndInvalid(t *testing.T) {
	_, ok, err := ParseDate("")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ParseDate("sometime in July")
	assert.Error(t, err)
	assert.False(t, ok)

	_, _, err = ParseDate("31/02/2024")
	assert.Error(t, err)
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, time.July, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-07-11 00:00:00+00", FormatTimestamp(ts))
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ',', SniffDelimiter([]byte("a,b,c\n1,2,3\n")))
	assert.Equal(t, ';', SniffDelimiter([]byte("a;b;c\n1;2;3\n")))
	assert.Equal(t, '\t', SniffDelimiter([]byte("a\tb\tc\n1\t2\t3\n")))
	assert.Equal(t, '|', SniffDelimiter([]byte("a|b\n1|2\n")))
	assert.Equal(t, ',', SniffDelimiter([]byte("single\n")))
	// Separators inside quotes do not count
	assert.Equal(t, ';', SniffDelimiter([]byte("Name;Amount\nA;\"1,00,000\"\nB;\"2,00,000\"\n")))
}

const sampleCSV = "Name,Email,Phone Number,Amount,Date,Receipt No\n" +
	"Ravi Kumar,ravi@example.com,+91 98765 43210,\"₹8,00,000\",11 July 2024,R-1\n" +
	",,,,,\n" +
	"Meena O'Brien,meena@example.com,#ERROR!,\"₹2,00,000\",12/07/2024,R-2\n"

func TestReceiptReader_Read(t *testing.T) {
	rr := NewReceiptReader(nil)
	receipts, err := rr.Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, receipts, 2)

	assert.Equal(t, 1, receipts[0].Row)
	assert.Equal(t, "Ravi Kumar", receipts[0].Name)
	assert.Equal(t, "₹8,00,000", receipts[0].Amount)
	assert.Equal(t, "R-1", receipts[0].Extra["Receipt No"])

	// Blank row 2 is skipped but keeps its row number
	assert.Equal(t, 3, receipts[1].Row)
	assert.Equal(t, "Meena O'Brien", receipts[1].Name)
	assert.Equal(t, "#ERROR!", receipts[1].Phone)
}

func TestReceiptReader_BOMAndCaseInsensitiveHeaders(t *testing.T) {
	data := "\xEF\xBB\xBFname;EMAIL;phone number;amount;date\nAsha;asha@example.com;12345;5000;2024-07-11\n"
	receipts, err := NewReceiptReader(nil).Read(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "Asha", receipts[0].Name)
	assert.Equal(t, "asha@example.com", receipts[0].Email)
	assert.Equal(t, "5000", receipts[0].Amount)
}

func TestReceiptReader_RaggedRows(t *testing.T) {
	data := "Name,Email,Amount\nShort,short@example.com\n"
	receipts, err := NewReceiptReader(nil).Read(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "", receipts[0].Amount)
}

func TestReceiptReader_Empty(t *testing.T) {
	receipts, err := NewReceiptReader(nil).Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, receipts)
}

func TestReceiptReader_ReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipts.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))

	receipts, err := NewReceiptReader(nil).ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, receipts, 2)

	_, err = NewReceiptReader(nil).ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNormalize(t *testing.T) {
	receipts := []models.Receipt{
		{Row: 1, Name: " Ravi ", Email: " ravi@example.com ", Phone: "+91 98765", Amount: "₹8,00,000", Date: "11 July 2024"},
		{Row: 2, Name: "Ravi", Email: "ravi@example.com", Amount: "₹2,00,000", Date: "someday"},
		{Row: 3, Name: "Nobody", Amount: "n/a"},
	}

	batch, warnings := Normalize(receipts)
	require.Len(t, batch.Investments, 3)
	assert.Equal(t, 3, batch.Len())
	assert.Equal(t, 1, batch.UniqueInvestors)
	assert.True(t, decimal.NewFromInt(1000000).Equal(batch.Total), "total = %s", batch.Total)

	first := batch.Investments[0]
	assert.Equal(t, "Ravi", first.Name)
	assert.Equal(t, "ravi@example.com", first.Email)
	assert.Equal(t, "9198765", first.Phone)
	require.NotNil(t, first.ReceivedAt)
	assert.Equal(t, "2024-07-11 00:00:00+00", FormatTimestamp(*first.ReceivedAt))

	assert.Nil(t, batch.Investments[1].ReceivedAt)
	assert.True(t, batch.Investments[2].Amount.IsZero())

	require.Len(t, warnings, 2)
	assert.Equal(t, 2, warnings[0].Row)
	assert.Equal(t, models.ColumnDate, warnings[0].Field)
	assert.Equal(t, 3, warnings[1].Row)
	assert.Equal(t, models.ColumnAmount, warnings[1].Field)
}
