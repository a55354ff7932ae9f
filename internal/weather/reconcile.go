package weather

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Reconcile makes sure table has a column for every field of r, adding the
// missing ones with a kind inferred from the value. Additions are attempted
// independently; a failed addition is logged and does not stop the others.
// The returned error is non-nil only when the current schema cannot be read.
func Reconcile(ctx context.Context, tables Tables, table string, r Reading) ([]string, error) {
	log := loggerFrom(ctx)

	existing, err := tables.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		known[strings.ToLower(c)] = struct{}{}
	}

	var (
		added  []string
		failed *multierror.Error
	)
	for _, field := range r.SortedFields() {
		if _, ok := known[strings.ToLower(field)]; ok {
			continue
		}
		kind := InferKind(r.Fields[field])
		if err := tables.AddColumn(ctx, table, field, kind); err != nil {
			log.Error("failed to add column", "table", table, "column", field, "kind", kind.String(), "err", err)
			failed = multierror.Append(failed, fmt.Errorf("column %s: %w", field, err))
			continue
		}
		known[strings.ToLower(field)] = struct{}{}
		added = append(added, field)
		log.Info("added column", "table", table, "column", field, "kind", kind.String())
	}

	if failed != nil {
		log.Warn("schema reconciliation incomplete", "table", table, "failed", len(failed.Errors), "err", failed.ErrorOrNil())
	}
	return added, nil
}
