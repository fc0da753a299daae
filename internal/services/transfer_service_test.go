package services

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/plotfit/plotfit/internal/compression"
	"github.com/plotfit/plotfit/internal/events"
	"github.com/plotfit/plotfit/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExportFormat(t *testing.T) {
	for input, want := range map[string]ExportFormat{"": FormatCSV, "CSV": FormatCSV, " json ": FormatJSON} {
		got, err := ParseExportFormat(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseExportFormat("xml")
	assertServiceError(t, err, CodeInvalidFormat, http.StatusBadRequest, "")
}

func TestParseCompression(t *testing.T) {
	algo, err := ParseCompression("zstd")
	require.NoError(t, err)
	assert.Equal(t, compression.Zstd, algo)

	_, err = ParseCompression("brotli")
	assertServiceError(t, err, CodeInvalidFormat, http.StatusBadRequest, "Unsupported compression")
}

func TestTransferService_ExportCSV(t *testing.T) {
	f := newFixture(t)
	f.mustDataset(t, "my data", 1, 5, 2.5, -8)

	export, err := f.transfer.Export(context.Background(), "my data", FormatCSV, compression.None)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", export.ContentType)
	assert.Empty(t, export.ContentEncoding)
	assert.Equal(t, "my_data.csv", export.Filename)
	assert.Equal(t, 2, export.Points)

	lines := strings.Split(strings.TrimSpace(string(export.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,x,y", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",1,5"))
	assert.True(t, strings.HasSuffix(lines[2], ",2.5,-8"))
}

func TestTransferService_ExportJSONCompressed(t *testing.T) {
	f := newFixture(t)
	f.mustDataset(t, "d", 1, 5, 2, 8)

	export, err := f.transfer.Export(context.Background(), "d", FormatJSON, compression.Zstd)
	require.NoError(t, err)
	assert.Equal(t, "zstd", export.ContentEncoding)
	assert.Equal(t, "d.json.zst", export.Filename)

	c, err := compression.GetCompressor(compression.Zstd)
	require.NoError(t, err)
	raw, err := c.Decompress(export.Data)
	require.NoError(t, err)

	var points []store.Point
	require.NoError(t, json.Unmarshal(raw, &points))
	require.Len(t, points, 2)
	assert.Equal(t, 8.0, points[1].Y)
}

func TestTransferService_ExportEmptyJSON(t *testing.T) {
	f := newFixture(t)
	f.mustDataset(t, "empty")

	export, err := f.transfer.Export(context.Background(), "empty", FormatJSON, compression.None)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(export.Data))

	_, err = f.transfer.Export(context.Background(), "nope", FormatCSV, compression.None)
	assertServiceError(t, err, CodeDatasetNotFound, http.StatusNotFound, "Dataset not found")
}

func TestTransferService_RoundTrip(t *testing.T) {
	for _, algo := range []compression.Algorithm{compression.None, compression.Snappy, compression.LZ4, compression.Zstd} {
		t.Run(algo.String(), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.mustDataset(t, "src", 1, 5, 2, 8, 3.25, 1e-9)
			f.mustDataset(t, "dst")

			export, err := f.transfer.Export(ctx, "src", FormatCSV, algo)
			require.NoError(t, err)

			n, err := f.transfer.Import(ctx, "dst", export.Data, algo)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			src, err := f.datasets.Points(ctx, "src")
			require.NoError(t, err)
			dst, err := f.datasets.Points(ctx, "dst")
			require.NoError(t, err)
			assert.Equal(t, store.Samples(src), store.Samples(dst))
		})
	}
}

func TestTransferService_ImportPublishesEvent(t *testing.T) {
	f := newFixture(t)
	f.mustDataset(t, "d")

	n, err := f.transfer.Import(context.Background(), "d", []byte("1,2\n3,4\n"), compression.None)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	e := lastEvent(t, f)
	assert.Equal(t, events.PointsImported, e.Type)
	assert.Equal(t, 2, e.Count)
}

func TestTransferService_ImportErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustDataset(t, "d")

	_, err := f.transfer.Import(ctx, "nope", []byte("1,2"), compression.None)
	assertServiceError(t, err, CodeDatasetNotFound, http.StatusNotFound, "")

	_, err = f.transfer.Import(ctx, "d", []byte(""), compression.None)
	assertServiceError(t, err, CodeImportFailed, http.StatusBadRequest, "No points found in import data")

	_, err = f.transfer.Import(ctx, "d", []byte("not snappy"), compression.Snappy)
	assertServiceError(t, err, CodeImportFailed, http.StatusBadRequest, "Failed to decompress import data")

	_, err = f.transfer.Import(ctx, "d", []byte("1,2\n3,oops\n"), compression.None)
	assertServiceError(t, err, CodeInvalidFormat, http.StatusBadRequest, "x and y must be valid numbers")

	points, err := f.datasets.Points(ctx, "d")
	require.NoError(t, err)
	assert.Empty(t, points, "a rejected import must not write any rows")
}

func TestTransferService_ImportBatches(t *testing.T) {
	f := newFixture(t)
	f.mustDataset(t, "d")

	var b strings.Builder
	b.WriteString("x,y\n")
	for i := 0; i < 2500; i++ {
		b.WriteString("1,2\n")
	}

	n, err := f.transfer.Import(context.Background(), "d", []byte(b.String()), compression.None)
	require.NoError(t, err)
	assert.Equal(t, 2500, n)
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"headerless", "1,2\n3,4\n", 2},
		{"header", "x,y\n1,2\n", 1},
		{"reordered header", "y,id,x\n2,7,1\n", 1},
		{"comments and blank lines", "# exported\n\n1,2\n\n", 1},
		{"spaces", " 1, 2\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples, err := ParseCSV(strings.NewReader(tt.input), 100)
			require.NoError(t, err)
			assert.Len(t, samples, tt.want)
		})
	}

	samples, err := ParseCSV(strings.NewReader("y,id,x\n2,7,1\n"), 100)
	require.NoError(t, err)
	assert.Equal(t, 1.0, samples[0].X)
	assert.Equal(t, 2.0, samples[0].Y)
}

func TestParseCSV_Rejects(t *testing.T) {
	tests := map[string]string{
		"header without y": "x,z\n1,2\n",
		"short row":        "1\n",
		"nan":              "1,NaN\n",
		"infinity":         "inf,1\n",
		"unterminated":     "\"1,2\n",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(input), 100)
			assert.Error(t, err)
		})
	}

	_, err := ParseCSV(strings.NewReader("1,1\n2,2\n3,3\n"), 2)
	assertServiceError(t, err, CodeTooManySamples, http.StatusRequestEntityTooLarge, "Import has too many rows")
}
