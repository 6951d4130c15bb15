package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/casualty.report/internal/fsutil"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffaccident_index, time ,speed_limit\nA1,14:30,30\nA2,,20\n"

	tbl, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"accident_index", "time", "speed_limit"}, tbl.Columns())
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, "", tbl.Get(1, "time"))
}

func TestReadCSV_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"ragged_row", "a,b\n1,2,3\n"},
		{"duplicate_header", "a,a\n1,2\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.input))
			assert.Error(t, err)
		})
	}
}

func TestCSV_RoundTrip(t *testing.T) {
	tbl := MustNew("vehicle_type", "time_period")
	require.NoError(t, tbl.Append([]string{"Van / Goods 3.5 tonnes mgw or under", "12:00 - 16:00"}))
	require.NoError(t, tbl.Append([]string{"Car, taxi", "0:00 - 4:00"}))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(tbl.Columns(), got.Columns()); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	for i := 0; i < tbl.Len(); i++ {
		assert.Equal(t, tbl.Row(i), got.Row(i))
	}
}

func TestXLSX_RoundTrip(t *testing.T) {
	tbl := MustNew("accident_index", "lsoa_of_casualty", "season")
	require.NoError(t, tbl.Append([]string{"2022010001", "E01000001", "spring"}))
	require.NoError(t, tbl.Append([]string{"2022010002", "E01000002", ""}))

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, tbl))

	got, err := ReadXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns(), got.Columns())
	require.Equal(t, 2, got.Len())
	assert.Equal(t, tbl.Row(0), got.Row(0))
	assert.Equal(t, []string{"2022010002", "E01000002", ""}, got.Row(1), "trailing empty cell is padded")
}

func TestLoadSave_ByExtension(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	tbl := MustNew("season")
	require.NoError(t, tbl.Append([]string{"winter"}))

	for _, path := range []string{"/out/train.csv", "/out/train.xlsx"} {
		t.Run(path, func(t *testing.T) {
			require.NoError(t, Save(mfs, path, tbl))
			got, err := Load(mfs, path)
			require.NoError(t, err)
			assert.Equal(t, "winter", got.Get(0, "season"))
		})
	}

	data, err := mfs.ReadFile("/out/train.csv")
	require.NoError(t, err)
	assert.Equal(t, "season\nwinter\n", string(data))

	_, err = Load(mfs, "/out/missing.csv")
	assert.Error(t, err)
}
