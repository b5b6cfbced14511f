package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/habitatlab/sdmgo/geo"
	"github.com/habitatlab/sdmgo/pipeline"
	"github.com/habitatlab/sdmgo/pkg/errors"
)

// DefaultBatchSize is the per-file row cap of the prediction writer,
// matching the row limit of downstream vector formats.
const DefaultBatchSize = 1_000_000

// suitabilityThreshold converts continuous predictions into the per-surface
// suitability flags written alongside them.
const suitabilityThreshold = 0.5

// Envelope flag values written to the extrapolation column.
const (
	envelopeWithin       = 1
	envelopeExtrapolated = 2
)

// WritePredictions writes the aggregated surfaces over the prediction grid
// as CSV batches of at most batchSize rows, named <base>_0001.csv onward
// under dir. It returns the written file paths in order.
func WritePredictions(dir, base string, batchSize int, grid *geo.Grid, kind pipeline.OutcomeKind, agg *pipeline.AggregateResult) ([]string, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	n := len(agg.Mean)
	if len(grid.Lon) != n {
		return nil, errors.NewDimensionError("WritePredictions", n, len(grid.Lon), 0)
	}

	prefix := kind.String()
	header := []string{
		"lon", "lat",
		prefix + "_mean", prefix + "_min", prefix + "_max",
		"suitable_mean", "suitable_min", "suitable_max",
		"uncertainty", "extrapolation",
	}

	var paths []string
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%04d.csv", base, len(paths)+1))
		if err := writeBatch(path, header, grid, agg, start, end); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeBatch(path string, header []string, grid *geo.Grid, agg *pipeline.AggregateResult, start, end int) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "WritePredictions")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "WritePredictions")
	}

	rec := make([]string, len(header))
	for i := start; i < end; i++ {
		envelope := envelopeWithin
		if agg.Extrapolated[i] {
			envelope = envelopeExtrapolated
		}
		rec[0] = formatFloat(grid.Lon[i])
		rec[1] = formatFloat(grid.Lat[i])
		rec[2] = formatFloat(agg.Mean[i])
		rec[3] = formatFloat(agg.Min[i])
		rec[4] = formatFloat(agg.Max[i])
		rec[5] = suitabilityFlag(agg.Mean[i])
		rec[6] = suitabilityFlag(agg.Min[i])
		rec[7] = suitabilityFlag(agg.Max[i])
		rec[8] = formatFloat(agg.Uncertainty[i])
		rec[9] = strconv.Itoa(envelope)
		if err := w.Write(rec); err != nil {
			return errors.Wrap(err, "WritePredictions")
		}
	}

	w.Flush()
	return errors.Wrap(w.Error(), "WritePredictions")
}

// WriteMetricsTable writes one CSV row per iteration plus a final averaged
// row, with columns ordered by keys.
func WriteMetricsTable(path string, keys []string, results []*pipeline.IterationResult, agg *pipeline.AggregateResult) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "WriteMetricsTable")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"iteration"}, keys...)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "WriteMetricsTable")
	}

	for _, res := range results {
		rec := []string{strconv.Itoa(res.Iteration)}
		for _, k := range keys {
			rec = append(rec, formatFloat(res.Metrics[k]))
		}
		if err := w.Write(rec); err != nil {
			return errors.Wrap(err, "WriteMetricsTable")
		}
	}

	rec := []string{"mean"}
	for _, k := range keys {
		rec = append(rec, formatFloat(agg.Metrics[k]))
	}
	if err := w.Write(rec); err != nil {
		return errors.Wrap(err, "WriteMetricsTable")
	}

	w.Flush()
	return errors.Wrap(w.Error(), "WriteMetricsTable")
}

func suitabilityFlag(v float64) string {
	if v >= suitabilityThreshold {
		return "1"
	}
	return "0"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
