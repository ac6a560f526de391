package core

import (
	"context"
	"fmt"
)

// Merger applies the values of a record onto an entity.
type Merger struct {
	updater EntityUpdater
	strict  bool
}

// NewMerger returns a merger. With strict set, column names are decoded into
// attribute, locale and scope; otherwise a column name is the attribute code.
func NewMerger(updater EntityUpdater, strict bool) *Merger {
	return &Merger{updater: updater, strict: strict}
}

// Merge writes every non-empty value of rec onto e in header order, so a
// repeated column ends with the value it had last. The identifier column is
// never written. The first updater error is returned.
func (m *Merger) Merge(ctx context.Context, e *Entity, rec Record, identifierCode string) error {
	targets := []*Entity{e}

	for _, f := range rec.Fields {
		if f.Value == "" {
			continue
		}

		spec := ColumnSpec{Code: f.Column}
		if m.strict {
			var err error
			spec, err = DecodeColumn(f.Column)
			if err != nil {
				return err
			}
		}
		if spec.Code == identifierCode {
			continue
		}

		if err := m.updater.SetValue(ctx, targets, spec.Code, f.Value, spec.Locale, spec.Scope); err != nil {
			return fmt.Errorf("set %s: %w", f.Column, err)
		}
	}
	return nil
}
