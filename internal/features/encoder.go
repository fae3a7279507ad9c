// Package features turns the loaded sensor table into the numeric design
// matrix used by the classifier: the voltage reading followed by one 0/1
// indicator per adulterant type, and integer codes for the quality label.
package features

import (
	"errors"
	"fmt"
	"sort"

	"honey-grader/internal/dataset"
)

// ErrUnknownCategory is returned when a value was not seen during fitting.
var ErrUnknownCategory = errors.New("unknown category")

// LabelEncoder maps category strings to integer codes. Codes are the rank of
// each class in ascending string order, so Classes[code] is the class name.
type LabelEncoder struct {
	Classes []string
}

// ClassCode is one entry of the label mapping.
type ClassCode struct {
	Class string
	Code  int
}

// Fit records the distinct values in ascending order.
func (e *LabelEncoder) Fit(values []string) *LabelEncoder {
	e.Classes = distinctSorted(values)
	return e
}

// Code returns the integer code of a class.
func (e *LabelEncoder) Code(class string) (int, error) {
	i := sort.SearchStrings(e.Classes, class)
	if i == len(e.Classes) || e.Classes[i] != class {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, class)
	}
	return i, nil
}

// Transform encodes values. Any value outside Classes is an error.
func (e *LabelEncoder) Transform(values []string) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		code, err := e.Code(v)
		if err != nil {
			return nil, err
		}
		out[i] = code
	}
	return out, nil
}

// InverseTransform maps codes back to class names.
func (e *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	out := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(e.Classes) {
			return nil, fmt.Errorf("label code %d out of range [0, %d)", c, len(e.Classes))
		}
		out[i] = e.Classes[c]
	}
	return out, nil
}

// Mapping lists every class with its code, in code order.
func (e *LabelEncoder) Mapping() []ClassCode {
	out := make([]ClassCode, len(e.Classes))
	for i, c := range e.Classes {
		out[i] = ClassCode{Class: c, Code: i}
	}
	return out
}

// OneHotEncoder expands one categorical column into indicator columns named
// "<Column>_<category>", one per distinct value in ascending order.
type OneHotEncoder struct {
	Column     string
	Categories []string
}

// Fit records the distinct categories of the column.
func (e *OneHotEncoder) Fit(values []string) *OneHotEncoder {
	e.Categories = distinctSorted(values)
	return e
}

// FeatureNames returns the indicator column names in encoding order.
func (e *OneHotEncoder) FeatureNames() []string {
	out := make([]string, len(e.Categories))
	for i, c := range e.Categories {
		out[i] = e.Column + "_" + c
	}
	return out
}

// Encode returns the indicator vector of one value.
func (e *OneHotEncoder) Encode(value string) ([]float64, error) {
	i := sort.SearchStrings(e.Categories, value)
	if i == len(e.Categories) || e.Categories[i] != value {
		return nil, fmt.Errorf("%w: %s=%q", ErrUnknownCategory, e.Column, value)
	}
	vec := make([]float64, len(e.Categories))
	vec[i] = 1
	return vec, nil
}

func distinctSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Schema names the table columns the encoder reads.
type Schema struct {
	Voltage    string
	Adulterant string
	Quality    string
}

// Encoded is the numeric form of a table.
type Encoded struct {
	FeatureNames []string
	X            [][]float64
	Y            []int
	Labels       *LabelEncoder
	Categories   *OneHotEncoder
}

// Encode fits both encoders on the table and builds the design matrix. Each
// row is [voltage, indicator...].
func Encode(t *dataset.Table, schema Schema) (*Encoded, error) {
	if err := t.Require(schema.Voltage, schema.Adulterant, schema.Quality); err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, fmt.Errorf("encode: table has no rows")
	}

	voltage, err := t.Floats(schema.Voltage)
	if err != nil {
		return nil, err
	}
	adulterant, err := t.Strings(schema.Adulterant)
	if err != nil {
		return nil, err
	}
	quality, err := t.Strings(schema.Quality)
	if err != nil {
		return nil, err
	}

	onehot := (&OneHotEncoder{Column: schema.Adulterant}).Fit(adulterant)
	labels := (&LabelEncoder{}).Fit(quality)

	y, err := labels.Transform(quality)
	if err != nil {
		return nil, err
	}

	X := make([][]float64, t.Len())
	for i := range X {
		X[i], err = Row(onehot, voltage[i], adulterant[i])
		if err != nil {
			return nil, err
		}
	}

	return &Encoded{
		FeatureNames: append([]string{schema.Voltage}, onehot.FeatureNames()...),
		X:            X,
		Y:            y,
		Labels:       labels,
		Categories:   onehot,
	}, nil
}

// Row builds one feature vector from raw values using a fitted encoder.
func Row(onehot *OneHotEncoder, voltage float64, adulterant string) ([]float64, error) {
	ind, err := onehot.Encode(adulterant)
	if err != nil {
		return nil, err
	}
	return append([]float64{voltage}, ind...), nil
}
