package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONReaderRoundTrip(t *testing.T) {
	assert := assert.New(t)

	want := testModelData()
	raw, err := json.Marshal(want)
	assert.NoError(err)

	got, err := JSONReader{}.ReadModelData(raw)
	assert.NoError(err)
	assert.Equal(want, got)
}

func TestJSONReaderRejectsGarbage(t *testing.T) {
	assert := assert.New(t)

	_, err := JSONReader{}.ReadModelData([]byte("not json at all"))
	assert.Error(err)
}

func TestJSONReaderValidates(t *testing.T) {
	assert := assert.New(t)

	bad := testModelData()
	bad.D = 99 // block sizes no longer sum to the dimension
	raw, err := json.Marshal(bad)
	assert.NoError(err)

	_, err = JSONReader{}.ReadModelData(raw)
	assert.Error(err)
}

func TestModelDataCheck(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(testModelData().Check())

	m := testModelData()
	m.TransType[0] = 9
	assert.Error(m.Check())

	m = testModelData()
	m.NodeX = []float64{1.0} // still one knot, fine
	assert.NoError(m.Check())

	m = testModelData()
	m.PAINumer = []int{1} // wrong age count
	assert.Error(m.Check())
}
