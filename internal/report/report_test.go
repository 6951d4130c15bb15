package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/casualty.report/internal/fsutil"
	"github.com/banshee-data/casualty.report/internal/impute"
	"github.com/banshee-data/casualty.report/internal/monitoring"
	"github.com/banshee-data/casualty.report/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func TestWriteHTML(t *testing.T) {
	model := &impute.Model{
		Categorical: map[string]impute.Distribution{
			"road_surface_conditions": {"Dry": 0.7, "Wet or damp": 0.3},
			"special_conditions":      {},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, model, map[string]int{"age_of_casualty": 12, "sex_of_casualty": 3}))

	html := buf.String()
	assert.Contains(t, html, "Missing values before imputation")
	assert.Contains(t, html, "15 cells across 2 columns")
	assert.Contains(t, html, "road_surface_conditions")
	assert.Contains(t, html, "Wet or damp")
	assert.NotContains(t, html, "special_conditions", "empty distributions get no chart")
}

func TestWriteHTML_NilModel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, nil, map[string]int{}))
	assert.Contains(t, buf.String(), "0 cells across 0 columns")
}

func TestSummarize(t *testing.T) {
	tbl := testutil.FromRows(t, []string{"age_of_driver", "age", "note"},
		[]string{"20", "30", "x"},
		[]string{"30", "Missing", "y"},
		[]string{"40", "n/a", "z"},
	)
	got := Summarize(tbl, []string{"age_of_driver", "age", "note", "absent"})
	require.Len(t, got, 2)

	assert.Equal(t, "age_of_driver", got[0].Column)
	assert.Equal(t, 3, got[0].N)
	assert.InDelta(t, 30, got[0].Mean, 1e-12)
	assert.InDelta(t, 10, got[0].StdDev, 1e-12)
	assert.Equal(t, 20.0, got[0].Min)
	assert.Equal(t, 40.0, got[0].Max)

	assert.Equal(t, Summary{Column: "age", N: 1, Mean: 30, Min: 30, Max: 30}, got[1])
}

func TestWriteSummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummaryCSV(&buf, []Summary{{Column: "T2M", N: 2, Mean: 11.5, StdDev: 0.5, Min: 11, Max: 12}}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "column,n,mean,std_dev,min,max", lines[0])
	assert.Equal(t, "T2M,2,11.5000,0.5000,11.0000,12.0000", lines[1])
}

func TestSaveHistograms(t *testing.T) {
	tbl := testutil.FromRows(t, []string{"engine_capacity_cc", "PRECTOTCORR", "road_type"},
		[]string{"1600", "0.5", "Roundabout"},
		[]string{"2000", "0", "Slip road"},
		[]string{"12000", "2.25", "Roundabout"},
	)
	fsys := fsutil.NewMemoryFileSystem()
	paths, err := SaveHistograms(fsys, "report", tbl, []string{"engine_capacity_cc", "PRECTOTCORR", "road_type"})
	require.NoError(t, err)
	assert.Len(t, paths, 2, "non-numeric columns are skipped")

	for _, p := range paths {
		data, err := fsys.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), p)
	}
	assert.True(t, fsys.Exists("report/hist_engine_capacity_cc.png"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "age_band_of_casualty", sanitize("age_band_of_casualty"))
	assert.Equal(t, "a_b_c", sanitize("a/b c"))
}
