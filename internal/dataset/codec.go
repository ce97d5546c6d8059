package dataset

import (
	"encoding/csv"
	"errors"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// WriteCSV encodes records as CSV with a header derived from their csv tags. An empty
// slice still produces the header row.
func WriteCSV[T any](w io.Writer, rows []T) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	var err error
	if len(rows) == 0 {
		var zero T
		err = enc.EncodeHeader(zero)
	} else {
		err = enc.Encode(rows)
	}
	if err != nil {
		return eris.Wrap(err, "dataset: encode csv")
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "dataset: flush csv")
	}
	return nil
}

// ReadCSV decodes CSV records into T by header name. Unknown columns are ignored and
// missing columns keep their zero value.
func ReadCSV[T any](r io.Reader) ([]T, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read csv header")
	}

	var out []T
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, eris.Wrap(err, "dataset: decode csv")
	}
	return out, nil
}

// Header returns the CSV column names of T.
func Header[T any]() []string {
	var zero T
	h, err := csvutil.Header(zero, "csv")
	if err != nil {
		return nil
	}
	return h
}

// WriteRecords writes raw CSV records.
func WriteRecords(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return eris.Wrap(err, "dataset: write records")
	}
	return nil
}
