package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/plotfit/plotfit/internal/analytics"
	"github.com/plotfit/plotfit/internal/cache"
	"github.com/plotfit/plotfit/internal/compression"
	"github.com/plotfit/plotfit/internal/events"
	"github.com/plotfit/plotfit/internal/logging"
	"github.com/plotfit/plotfit/internal/store"
	"github.com/plotfit/plotfit/internal/utils"
)

// ExportFormat selects the export encoding
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseExportFormat resolves an export format; empty means CSV
func ParseExportFormat(name string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", NewServiceErrorWithDetails(CodeInvalidFormat, "Unsupported export format",
			map[string]interface{}{"format": name, "supported": []string{string(FormatCSV), string(FormatJSON)}})
	}
}

// ParseCompression resolves a compression name from a request
func ParseCompression(name string) (compression.Algorithm, error) {
	algo, err := compression.ParseAlgorithm(name)
	if err != nil {
		return compression.None, NewServiceErrorWithDetails(CodeInvalidFormat, "Unsupported compression",
			map[string]interface{}{"compression": name, "supported": compression.Names()})
	}
	return algo, nil
}

// Export is an encoded dataset ready to be sent
type Export struct {
	Data            []byte
	ContentType     string
	ContentEncoding string // empty when uncompressed
	Filename        string
	Points          int
}

// TransferService exports and imports dataset points
type TransferService struct {
	logger   *logging.Logger
	store    store.Store
	notifier changeNotifier
}

// NewTransferService creates a new TransferService. bus and resultCache may be nil.
func NewTransferService(
	logger *logging.Logger,
	st store.Store,
	bus *events.Bus,
	resultCache *cache.ResultCache,
) *TransferService {
	return &TransferService{
		logger:   logger,
		store:    st,
		notifier: changeNotifier{logger: logger, bus: bus, cache: resultCache},
	}
}

func (s *TransferService) log(ctx context.Context) *logging.Logger {
	return logging.FromContext(ctx, s.logger)
}

// Export encodes a dataset's points as CSV (id,x,y) or a JSON array
func (s *TransferService) Export(ctx context.Context, name string, format ExportFormat, algo compression.Algorithm) (*Export, error) {
	name = lookupName(name)
	points, err := s.store.ListPoints(ctx, name)
	if err != nil {
		return nil, storeError(s.log(ctx), "list_points", err)
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case FormatJSON:
		data, err = encodeJSON(points)
		contentType = "application/json"
	default:
		data, err = encodeCSV(points)
		contentType = "text/csv"
		format = FormatCSV
	}
	if err != nil {
		s.log(ctx).ForDataset(name).Error("Failed to encode export", "format", string(format), "error", err)
		return nil, internalError("Failed to encode dataset")
	}

	compressor, err := compression.GetCompressor(algo)
	if err != nil {
		return nil, NewServiceError(CodeInvalidFormat, err.Error())
	}
	encoded, err := compressor.Compress(data)
	if err != nil {
		s.log(ctx).ForDataset(name).Error("Failed to compress export", "compression", algo.String(), "error", err)
		return nil, internalError("Failed to compress dataset")
	}

	s.log(ctx).Debug("Exported dataset",
		"dataset", name,
		"format", string(format),
		"compression", algo.String(),
		"points", len(points),
		"raw_bytes", len(data),
		"bytes", len(encoded))

	return &Export{
		Data:            encoded,
		ContentType:     contentType,
		ContentEncoding: algo.ContentEncoding(),
		Filename:        exportFilename(name, format, algo),
		Points:          len(points),
	}, nil
}

// Import parses CSV rows of x,y (an optional header may name the columns)
// and appends them to the dataset. Rows are written in batches; on a store
// failure the rows of earlier batches remain.
func (s *TransferService) Import(ctx context.Context, name string, body []byte, algo compression.Algorithm) (int, error) {
	name = lookupName(name)
	exists, err := s.store.DatasetExists(ctx, name)
	if err != nil {
		return 0, storeError(s.log(ctx), "dataset_exists", err)
	}
	if !exists {
		return 0, NewServiceError(CodeDatasetNotFound, "Dataset not found")
	}

	compressor, err := compression.GetCompressor(algo)
	if err != nil {
		return 0, NewServiceError(CodeInvalidFormat, err.Error())
	}
	raw, err := compressor.Decompress(body)
	if err != nil {
		return 0, NewServiceErrorWithDetails(CodeImportFailed, "Failed to decompress import data",
			map[string]interface{}{"compression": algo.String(), "error": err.Error()})
	}

	samples, err := ParseCSV(bytes.NewReader(raw), utils.MaxImportRows)
	if err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		return 0, NewServiceError(CodeImportFailed, "No points found in import data")
	}

	imported := 0
	for start := 0; start < len(samples); start += utils.DefaultBatchSize {
		if err := ctx.Err(); err != nil {
			return imported, storeError(s.log(ctx), "import", err)
		}
		end := min(start+utils.DefaultBatchSize, len(samples))
		n, err := s.store.AddPoints(ctx, name, samples[start:end])
		imported += n
		if err != nil {
			s.log(ctx).ForDataset(name).Error("Import interrupted", "imported", imported, "error", err)
			return imported, storeError(s.log(ctx), "add_points", err)
		}
	}

	s.log(ctx).ForDataset(name).Info("Imported points", "points", imported, "compression", algo.String())
	s.notifier.notify(ctx, events.Event{Type: events.PointsImported, Dataset: name, Count: imported})
	return imported, nil
}

// ParseCSV reads x,y samples from r. A first row that is not numeric is
// taken as a header and must name x and y columns; without one the first two
// columns are x and y. At most maxRows data rows are accepted.
func ParseCSV(r io.Reader, maxRows int) ([]analytics.Sample, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	xCol, yCol := 0, 1
	var samples []analytics.Sample
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, NewServiceErrorWithDetails(CodeInvalidFormat, "Malformed CSV",
				map[string]interface{}{"row": row, "error": err.Error()})
		}

		if row == 1 && !isNumericRow(record) {
			xCol, yCol = headerColumns(record)
			if xCol < 0 || yCol < 0 {
				return nil, NewServiceErrorWithDetails(CodeInvalidFormat, "CSV header must name x and y columns",
					map[string]interface{}{"header": record})
			}
			continue
		}

		if len(samples) >= maxRows {
			return nil, NewServiceErrorWithDetails(CodeTooManySamples, "Import has too many rows",
				map[string]interface{}{"max_rows": maxRows})
		}
		if xCol >= len(record) || yCol >= len(record) {
			return nil, NewServiceErrorWithDetails(CodeInvalidFormat, "Request must include x and y values",
				map[string]interface{}{"row": row})
		}
		x, errX := utils.ParseFiniteFloat(record[xCol])
		y, errY := utils.ParseFiniteFloat(record[yCol])
		if errX != nil || errY != nil {
			return nil, NewServiceErrorWithDetails(CodeInvalidFormat, "x and y must be valid numbers",
				map[string]interface{}{"row": row})
		}
		samples = append(samples, analytics.Sample{X: x, Y: y})
	}
	return samples, nil
}

func isNumericRow(record []string) bool {
	for _, field := range record {
		if _, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err != nil {
			return false
		}
	}
	return len(record) > 0
}

func headerColumns(header []string) (xCol, yCol int) {
	xCol, yCol = -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "x":
			xCol = i
		case "y":
			yCol = i
		}
	}
	return xCol, yCol
}

func encodeCSV(points []store.Point) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "x", "y"}); err != nil {
		return nil, err
	}
	for _, p := range points {
		row := []string{strconv.FormatInt(p.ID, 10), utils.FormatFloat(p.X), utils.FormatFloat(p.Y)}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func encodeJSON(points []store.Point) ([]byte, error) {
	if points == nil {
		points = []store.Point{}
	}
	return json.Marshal(points)
}

func exportFilename(name string, format ExportFormat, algo compression.Algorithm) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '\\' || r < 0x20:
			return '_'
		case r == ' ':
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf("%s.%s%s", safe, format, algo.Extension())
}
