package marker

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdbinspect/config"
)

func blockWithMarker(size int, m byte) []byte {
	b := make([]byte, size)
	b[size-1] = m
	return b
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, TypeDocument, TypeOf(0xdd))
	assert.Equal(t, TypeIndex, TypeOf(0xff))
	assert.Equal(t, TypeHeader, TypeOf(0xee))
	assert.Equal(t, TypeSuperblock, TypeOf(0xcc))

	for _, m := range []byte{0x00, 0x01, 0xcd, 0xde, 0xfe} {
		assert.Equal(t, TypeUnknown, TypeOf(m), "marker %#x", m)
	}
}

func TestNamesAndLabels(t *testing.T) {
	assert.Equal(t, "Document", TypeDocument.Name())
	assert.Equal(t, "Not FDB", TypeUnknown.Name())
	assert.Equal(t, "BNODE", TypeIndex.Label())
	assert.Equal(t, "DBHEADER", TypeHeader.String())
	assert.Equal(t, "NOT_FDB", BlockType(42).Label())
}

func TestClassifyMarkerByte(t *testing.T) {
	res, err := Classify(blockWithMarker(4096, Doc), config.MarkerByte)
	require.NoError(t, err)

	assert.Equal(t, TypeDocument, res.Type)
	assert.Equal(t, byte(Doc), res.Marker)
	assert.Nil(t, res.Meta)
}

func TestClassifyIsDeterministic(t *testing.T) {
	block := blockWithMarker(4096, SB)
	block[0] = 0xdd

	first, err := Classify(block, config.MarkerByte)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		res, err := Classify(block, config.MarkerByte)
		require.NoError(t, err)
		assert.Equal(t, first, res)
	}
}

func TestClassifyDocBlockMeta(t *testing.T) {
	block := blockWithMarker(4096, Doc)
	trailer := block[len(block)-DocBlockSize:]
	binary.BigEndian.PutUint64(trailer[0:8], 1234)
	binary.BigEndian.PutUint16(trailer[8:10], 0xbeef)

	res, err := Classify(block, config.MarkerMetadata)
	require.NoError(t, err)

	require.NotNil(t, res.Meta)
	assert.Equal(t, TypeDocument, res.Type)
	assert.Equal(t, uint64(1234), res.Meta.NextBID)
	assert.Equal(t, uint16(0xbeef), res.Meta.Hash)
	assert.Equal(t, byte(Doc), res.Meta.Marker)
}

func TestClassifyTooSmall(t *testing.T) {
	_, err := Classify(make([]byte, 8), config.MarkerMetadata)
	assert.ErrorIs(t, err, ErrBlockTooSmall)

	_, err = Classify(nil, config.MarkerByte)
	assert.ErrorIs(t, err, ErrBlockTooSmall)
}
