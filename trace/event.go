package trace

import (
	"math"
	"strconv"

	"fdbinspect/config"
)

// Field positions of the default blkparse output:
//
//	8,16  1  42  0.000012  2211  D  WS  16 + 16 [fdb]
const (
	fieldOperation = 5
	fieldAction    = 6
	fieldSector    = 7
	fieldSectors   = 9
	fieldProcess   = 10

	minEventTokens = 11
	maxSelfTokens  = 13

	// largest sector count whose byte value fits in an int64
	maxSectors = math.MaxInt64 / config.SectorSize
)

type Disposition int

const (
	PassThrough Disposition = iota
	Actionable
	Suppressed
)

func (d Disposition) String() string {
	switch d {
	case Actionable:
		return "actionable"
	case Suppressed:
		return "suppressed"
	default:
		return "passthrough"
	}
}

// Event is one parsed trace line. Offset, Length and Flush are only
// meaningful when Disposition is Actionable.
type Event struct {
	Disposition Disposition
	Line        string
	Tokens      []string

	Offset int64
	Length int64
	Flush  bool
}

// Fields returns a copy of the tokens safe to rewrite.
func (e *Event) Fields() []string {
	return append([]string(nil), e.Tokens...)
}

type Classifier struct {
	self      string
	blockSize int64
}

// NewClassifier returns a classifier that suppresses I/O issued by the
// process named self and passes through ranges shorter than blockSize.
func NewClassifier(self string, blockSize int64) *Classifier {
	return &Classifier{self: self, blockSize: blockSize}
}

func (c *Classifier) Classify(line string) Event {
	tokens := Tokenize(line, MaxTokens)
	ev := Event{Disposition: PassThrough, Line: line, Tokens: tokens}

	if c.isSelf(tokens) {
		ev.Disposition = Suppressed
		return ev
	}

	if len(tokens) < minEventTokens || !isBlockEvent(tokens[fieldOperation], tokens[fieldAction]) {
		return ev
	}

	sector, err := strconv.ParseInt(tokens[fieldSector], 10, 64)
	if err != nil || sector < 0 || sector > maxSectors {
		return ev
	}

	sectors, err := strconv.ParseInt(tokens[fieldSectors], 10, 64)
	if err != nil || sectors < 0 || sectors > maxSectors {
		return ev
	}

	offset, length := sector*config.SectorSize, sectors*config.SectorSize
	if length < c.blockSize || offset > math.MaxInt64-length {
		return ev
	}

	ev.Disposition = Actionable
	ev.Offset = offset
	ev.Length = length
	ev.Flush = tokens[fieldAction][0] == 'F'

	return ev
}

func (c *Classifier) isSelf(tokens []string) bool {
	if len(c.self) == 0 || len(tokens) < minEventTokens || len(tokens) > maxSelfTokens {
		return false
	}

	proc := tokens[fieldProcess]
	if len(proc) < 1+len(c.self) {
		return false
	}

	// skip the leading '[' of the process column
	return proc[1:1+len(c.self)] == c.self
}

// isBlockEvent matches data writes/reads issued to the driver and flushes.
func isBlockEvent(op, action string) bool {
	switch op[0] {
	case 'D':
		return action[0] == 'W' || action[0] == 'R'
	case 'I':
		return action[0] == 'F'
	}

	return false
}
