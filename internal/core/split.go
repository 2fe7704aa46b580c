package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/colsplit/internal/logging"
)

// EmptyGroupKey is the group key for rows whose split value is null.
const EmptyGroupKey = "(empty)"

// RowGroup is one partition of a dataset: the rows sharing Key, or a
// batch-capped slice of them.
type RowGroup struct {
	Key  string
	Rows []Row
}

// GroupKeyOf returns the partition key for v.
func GroupKeyOf(v Value) string {
	if v.IsNull() {
		return EmptyGroupKey
	}
	return v.String()
}

// Split partitions the dataset rows by the value of column. Groups keep the
// order in which their key first appears and rows keep their input order.
// A batchSize above zero caps each group; oversized groups become
// consecutive "<key>_batch_<n>" slices.
func Split(ctx context.Context, ds *Dataset, column string, batchSize int) ([]RowGroup, error) {
	idx, err := ds.RequireColumn(column)
	if err != nil {
		return nil, err
	}
	if batchSize < 0 {
		return nil, &SplitError{Kind: KindSchema, Message: fmt.Sprintf("batch size must be positive, got %d", batchSize)}
	}

	order := make([]string, 0)
	groups := make(map[string][]Row)
	for _, row := range ds.Rows {
		key := GroupKeyOf(row[idx])
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	out := make([]RowGroup, 0, len(order))
	for _, key := range order {
		rows := groups[key]
		if batchSize == 0 || len(rows) <= batchSize {
			out = append(out, RowGroup{Key: key, Rows: rows})
			continue
		}
		for n, start := 1, 0; start < len(rows); n, start = n+1, start+batchSize {
			end := min(start+batchSize, len(rows))
			out = append(out, RowGroup{
				Key:  fmt.Sprintf("%s_batch_%d", key, n),
				Rows: rows[start:end],
			})
		}
	}

	logging.FromContext(ctx).Info("rows split",
		"column", column,
		"distinct_values", len(order),
		"groups", len(out),
		"batch_size", batchSize,
	)
	return out, nil
}
