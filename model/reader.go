package model

import (
	"encoding/json"
	"io/ioutil"

	"github.com/pkg/errors"
)

// Reader implementors instantiate model data from a byte stream.
type Reader interface {
	ReadModelData(data []byte) (*ModelData, error)
}

// JSONReader reads the JSON dataset format produced by the data
// preparation pipeline. Field names match the ModelData struct.
type JSONReader struct{}

// ReadModelData parses and validates a complete dataset.
func (JSONReader) ReadModelData(data []byte) (*ModelData, error) {
	var m ModelData
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "Could not PARSE model data")
	}
	if err := m.Check(); err != nil {
		return nil, errors.Wrap(err, "Parsed model data is not valid")
	}
	return &m, nil
}

// NewModelDataFromFile initializes model data from the specified source.
func NewModelDataFromFile(r Reader, filename string) (*ModelData, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ model data from %s", filename)
	}
	return r.ReadModelData(data)
}

// delayTableFile is the on-disk form of the precomputed lookup tables.
type delayTableFile struct {
	Density [][][]float64
	Tail    [][][]float64
}

// NewDelayTableFromFile loads prebuilt gamma lookup tables.
func NewDelayTableFromFile(filename string) (*DelayTable, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ delay tables from %s", filename)
	}

	var f delayTableFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE delay tables from %s", filename)
	}

	return NewDelayTable(f.Density, f.Tail)
}
