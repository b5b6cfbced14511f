package dataset

import (
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/habitatlab/sdmgo/pkg/errors"
)

// Kind is the scalar type a schema declares for one feature column.
type Kind int

const (
	// KindNumeric marks a column whose cells parse as float64.
	KindNumeric Kind = iota
	// KindCategorical marks a column coded as the index of its level in the
	// training data's sorted level set.
	KindCategorical
)

func (k Kind) String() string {
	if k == KindCategorical {
		return "categorical"
	}
	return "numeric"
}

// Field is one feature column: its name, declared kind, and (for
// categorical columns) the levels observed in the training data.
type Field struct {
	Name   string
	Kind   Kind
	Levels []string // sorted, categorical only
}

// Schema is the ordered feature-column contract shared by the training,
// background, and prediction tables. It is derived once from the training
// table and is immutable afterwards.
type Schema struct {
	Fields  []Field
	Outcome string
}

// BuildSchema derives the feature schema from a training table: every column
// except the outcome column, typed numeric when all non-empty cells parse as
// float64 and categorical otherwise.
func BuildSchema(training *Table, outcomeColumn string) (*Schema, error) {
	if training.NumRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "BuildSchema")
	}
	if !training.HasColumn(outcomeColumn) {
		return nil, errors.NewSchemaViolationError(training.Name, outcomeColumn, "outcome column missing")
	}

	s := &Schema{Outcome: outcomeColumn}
	for _, name := range training.Columns {
		if name == outcomeColumn {
			continue
		}
		cells, _ := training.Column(name)
		if isNumericColumn(cells) {
			s.Fields = append(s.Fields, Field{Name: name, Kind: KindNumeric})
			continue
		}
		s.Fields = append(s.Fields, Field{Name: name, Kind: KindCategorical, Levels: uniqueLevels(cells)})
	}
	if len(s.Fields) == 0 {
		return nil, errors.NewSchemaViolationError(training.Name, "", "no feature columns besides the outcome")
	}
	return s, nil
}

// NumFeatures returns the number of feature columns the schema declares.
func (s *Schema) NumFeatures() int { return len(s.Fields) }

// FeatureNames returns the schema's feature names in declaration order.
func (s *Schema) FeatureNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// SelectAndCoerce extracts the schema's feature columns from a table into a
// dense matrix, coercing each cell to the declared kind. A missing column, a
// numeric cell that does not parse, or a categorical level unseen during
// training is a schema violation.
func (s *Schema) SelectAndCoerce(t *Table) (*mat.Dense, error) {
	n := t.NumRows()
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "SelectAndCoerce: "+t.Name)
	}

	x := mat.NewDense(n, len(s.Fields), nil)
	for j, f := range s.Fields {
		cells, ok := t.Column(f.Name)
		if !ok {
			return nil, errors.NewSchemaViolationError(t.Name, f.Name, "column missing")
		}
		switch f.Kind {
		case KindNumeric:
			for i, cell := range cells {
				v, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, errors.NewSchemaViolationError(t.Name, f.Name, "cell "+strconv.Itoa(i)+" is not numeric: "+cell)
				}
				x.Set(i, j, v)
			}
		case KindCategorical:
			for i, cell := range cells {
				code := sort.SearchStrings(f.Levels, cell)
				if code == len(f.Levels) || f.Levels[code] != cell {
					return nil, errors.NewSchemaViolationError(t.Name, f.Name, "unknown level "+strconv.Quote(cell))
				}
				x.Set(i, j, float64(code))
			}
		}
	}
	return x, nil
}

// OutcomeVector extracts the outcome column as float64 labels.
func (s *Schema) OutcomeVector(t *Table) ([]float64, error) {
	cells, ok := t.Column(s.Outcome)
	if !ok {
		return nil, errors.NewSchemaViolationError(t.Name, s.Outcome, "outcome column missing")
	}
	y := make([]float64, len(cells))
	for i, cell := range cells {
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, errors.NewSchemaViolationError(t.Name, s.Outcome, "outcome cell "+strconv.Itoa(i)+" is not numeric: "+cell)
		}
		y[i] = v
	}
	return y, nil
}

func isNumericColumn(cells []string) bool {
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return false
		}
	}
	return true
}

func uniqueLevels(cells []string) []string {
	seen := make(map[string]struct{}, len(cells))
	for _, cell := range cells {
		seen[cell] = struct{}{}
	}
	levels := make([]string, 0, len(seen))
	for l := range seen {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	return levels
}
