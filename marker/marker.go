// Package marker classifies ForestDB blocks by their trailing marker.
package marker

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"fdbinspect/config"
)

const (
	BNode    = 0xff
	DBHeader = 0xee
	Doc      = 0xdd
	SB       = 0xcc

	Size         = 1
	DocBlockSize = 16 // sizeof(struct docblk_meta)
)

var ErrBlockTooSmall = errors.New("block smaller than trailer")

type BlockType int

const (
	TypeDocument BlockType = iota
	TypeIndex
	TypeHeader
	TypeSuperblock
	TypeUnknown

	NumTypes
)

var (
	names  = [NumTypes]string{"Document", "Index", "Header", "Superblock", "Not FDB"}
	labels = [NumTypes]string{"DOC", "BNODE", "DBHEADER", "SB", "NOT_FDB"}
)

// Name is the report name of the type.
func (t BlockType) Name() string {
	if t < 0 || t >= NumTypes {
		return names[TypeUnknown]
	}
	return names[t]
}

// Label is the tag appended to annotated trace lines.
func (t BlockType) Label() string {
	if t < 0 || t >= NumTypes {
		return labels[TypeUnknown]
	}
	return labels[t]
}

func (t BlockType) String() string {
	return t.Label()
}

func TypeOf(marker byte) BlockType {
	switch marker {
	case Doc:
		return TypeDocument
	case BNode:
		return TypeIndex
	case DBHeader:
		return TypeHeader
	case SB:
		return TypeSuperblock
	default:
		return TypeUnknown
	}
}

// DocBlockMeta is the trailer written at the end of document blocks.
//
//	[ next bid: 8 ][ sb bmp revnum hash: 2 ][ reserved: 5 ][ marker: 1 ]
type DocBlockMeta struct {
	NextBID uint64
	Hash    uint16
	Marker  byte
}

func DecodeDocBlockMeta(block []byte) (DocBlockMeta, error) {
	if len(block) < DocBlockSize {
		return DocBlockMeta{}, errors.Wrapf(ErrBlockTooSmall, "%d bytes", len(block))
	}

	buf := block[len(block)-DocBlockSize:]

	return DocBlockMeta{
		NextBID: binary.BigEndian.Uint64(buf[0:8]),
		Hash:    binary.BigEndian.Uint16(buf[8:10]),
		Marker:  buf[DocBlockSize-1],
	}, nil
}

// Result is what Classify extracted from one block. Meta is only set in
// metadata marker mode.
type Result struct {
	Type   BlockType
	Marker byte
	Meta   *DocBlockMeta
}

// Classify reads the trailer of block according to mode.
func Classify(block []byte, mode config.MarkerMode) (Result, error) {
	if mode == config.MarkerMetadata {
		meta, err := DecodeDocBlockMeta(block)
		if err != nil {
			return Result{}, err
		}

		return Result{Type: TypeOf(meta.Marker), Marker: meta.Marker, Meta: &meta}, nil
	}

	if len(block) < Size {
		return Result{}, errors.Wrapf(ErrBlockTooSmall, "%d bytes", len(block))
	}

	m := block[len(block)-Size]

	return Result{Type: TypeOf(m), Marker: m}, nil
}
