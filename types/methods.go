package types

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrTokenWidth    = errors.New("token width must be 2 or 4 bytes")
	ErrTokenOverflow = errors.New("token id does not fit the token width")
	ErrPartialToken  = errors.New("binary token data ends mid-token")
)

// ByteWidth returns the byte width that holds every id: TokenSize unless an id
// exceeds MaxToken16 or wide is set.
func (tokens Tokens) ByteWidth(wide bool) int {
	if wide || tokens.NeedsUint32() {
		return TokenSize32
	}
	return TokenSize
}

// NeedsUint32 reports whether any token id is too large for 16-bit output.
func (tokens Tokens) NeedsUint32() bool {
	for _, t := range tokens {
		if t > MaxToken16 {
			return true
		}
	}
	return false
}

// PackBinary writes tokens as little-endian integers of width bytes.
func (tokens Tokens) PackBinary(width int) ([]byte, error) {
	if width != TokenSize && width != TokenSize32 {
		return nil, fmt.Errorf("%w: %d", ErrTokenWidth, width)
	}
	out := make([]byte, len(tokens)*width)
	for i, t := range tokens {
		at := out[i*width:]
		if width == TokenSize32 {
			binary.LittleEndian.PutUint32(at, uint32(t))
			continue
		}
		if t > MaxToken16 {
			return nil, fmt.Errorf("%w: id %d at %d", ErrTokenOverflow,
				t, i)
		}
		binary.LittleEndian.PutUint16(at, uint16(t))
	}
	return out, nil
}

// UnpackTokens reads ids written by PackBinary at the same width.
func UnpackTokens(data []byte, width int) (Tokens, error) {
	if width != TokenSize && width != TokenSize32 {
		return nil, fmt.Errorf("%w: %d", ErrTokenWidth, width)
	}
	if len(data)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes at width %d", ErrPartialToken,
			len(data), width)
	}
	tokens := make(Tokens, len(data)/width)
	for i := range tokens {
		at := data[i*width:]
		if width == TokenSize32 {
			tokens[i] = Token(binary.LittleEndian.Uint32(at))
		} else {
			tokens[i] = Token(binary.LittleEndian.Uint16(at))
		}
	}
	return tokens, nil
}

// Rows returns the number of batch elements.
func (batch *Batch) Rows() int {
	return len(batch.InputIds)
}

// Width returns the length of the longest row.
func (batch *Batch) Width() int {
	width := 0
	for _, row := range batch.InputIds {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// PadToLongest extends every row to the longest row with padToken, and
// marks the padded positions with a zero in the attention mask.
func (batch *Batch) PadToLongest(padToken Token) {
	width := batch.Width()
	for rowIdx := range batch.InputIds {
		for len(batch.InputIds[rowIdx]) < width {
			batch.InputIds[rowIdx] = append(batch.InputIds[rowIdx], padToken)
			batch.AttentionMask[rowIdx] = append(
				batch.AttentionMask[rowIdx], 0)
		}
	}
}

// Flatten returns the unpadded ids of every row, concatenated in row order.
func (batch *Batch) Flatten() Tokens {
	flat := make(Tokens, 0, batch.Rows()*batch.Width())
	for rowIdx, row := range batch.InputIds {
		mask := batch.AttentionMask[rowIdx]
		for idx, token := range row {
			if idx < len(mask) && mask[idx] == 0 {
				continue
			}
			flat = append(flat, token)
		}
	}
	return flat
}

// Append adds a row whose ids are all attended.
func (batch *Batch) Append(row Tokens) {
	mask := make(Mask, len(row))
	for idx := range mask {
		mask[idx] = 1
	}
	batch.InputIds = append(batch.InputIds, row)
	batch.AttentionMask = append(batch.AttentionMask, mask)
}
