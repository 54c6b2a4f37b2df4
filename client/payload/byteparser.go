package payload

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// ErrShortBuffer is returned whenever a read runs past the end of the
// underlying buffer. Every caller in this package wraps it; the
// ingestion loop's per-transaction dispatch swallows the result.
var ErrShortBuffer = errors.New("payload: short buffer")

// ByteParser reads big-endian fixed-width fields off a byte slice,
// tracking position, consuming calldata left-to-right.
type ByteParser struct {
	data []byte
	pos  int
}

func NewByteParser(data []byte) *ByteParser {
	return &ByteParser{data: data}
}

func (p *ByteParser) Remaining() int {
	return len(p.data) - p.pos
}

func (p *ByteParser) take(n int) ([]byte, error) {
	if p.Remaining() < n {
		return nil, ErrShortBuffer
	}
	b := p.data[p.pos : p.pos+n]
	p.pos += n
	return b, nil
}

func (p *ByteParser) Uint8() (uint8, error) {
	b, err := p.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (p *ByteParser) Uint16() (uint16, error) {
	b, err := p.take(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (p *ByteParser) Uint32() (uint32, error) {
	b, err := p.take(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// Uint256 reads a 32-byte big-endian unsigned integer.
func (p *ByteParser) Uint256() (*big.Int, error) {
	b, err := p.take(32)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// Int32 reads a 4-byte big-endian signed integer (two's complement).
func (p *ByteParser) Int32() (int32, error) {
	u, err := p.Uint32()
	if err != nil {
		return 0, err
	}
	return int32(u), nil
}

func (p *ByteParser) Bytes(n int) ([]byte, error) {
	return p.take(n)
}

func (p *ByteParser) Address() (common.Address, error) {
	b, err := p.take(20)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b), nil
}

// Drain returns every remaining byte and advances to the end.
func (p *ByteParser) Drain() []byte {
	b := p.data[p.pos:]
	p.pos = len(p.data)
	return b
}
