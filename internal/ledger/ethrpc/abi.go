package ethrpc

import (
	"fmt"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// Minimal ABI codec for the fixed CrashMetadataStorage contract surface:
//
//	storeMetadata(string,string,string,string[])
//	getMetadata(uint256) returns (string,string,uint256,string,string[])
//	getTotalMetadataCount() returns (uint256)
//
// The contract interface is frozen, so the codec covers exactly these
// shapes and nothing else.

const wordSize = 32

func selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

func padRight(data []byte) []byte {
	rem := len(data) % wordSize
	if rem == 0 {
		return data
	}
	return append(data, make([]byte, wordSize-rem)...)
}

func uintWord(v *big.Int) []byte {
	word := make([]byte, wordSize)
	v.FillBytes(word)
	return word
}

func encodeStringTail(s string) []byte {
	out := uintWord(big.NewInt(int64(len(s))))
	return append(out, padRight([]byte(s))...)
}

func encodeStringArrayTail(values []string) []byte {
	out := uintWord(big.NewInt(int64(len(values))))

	// Element offsets are relative to the start of the array data area,
	// which begins after the length word.
	offsets := make([]byte, 0, len(values)*wordSize)
	tails := make([]byte, 0)
	cursor := len(values) * wordSize
	for _, v := range values {
		offsets = append(offsets, uintWord(big.NewInt(int64(cursor)))...)
		tail := encodeStringTail(v)
		tails = append(tails, tail...)
		cursor += len(tail)
	}
	out = append(out, offsets...)
	return append(out, tails...)
}

// encodeStoreMetadata builds calldata for storeMetadata(string,string,string,string[]).
func encodeStoreMetadata(dataID, vin, location string, cids []string) []byte {
	tails := [][]byte{
		encodeStringTail(dataID),
		encodeStringTail(vin),
		encodeStringTail(location),
		encodeStringArrayTail(cids),
	}

	head := make([]byte, 0, 4*wordSize)
	cursor := 4 * wordSize
	for _, tail := range tails {
		head = append(head, uintWord(big.NewInt(int64(cursor)))...)
		cursor += len(tail)
	}

	out := selector("storeMetadata(string,string,string,string[])")
	out = append(out, head...)
	for _, tail := range tails {
		out = append(out, tail...)
	}
	return out
}

// encodeGetMetadata builds calldata for getMetadata(uint256).
func encodeGetMetadata(index *big.Int) []byte {
	out := selector("getMetadata(uint256)")
	return append(out, uintWord(index)...)
}

// encodeGetTotalMetadataCount builds calldata for getTotalMetadataCount().
func encodeGetTotalMetadataCount() []byte {
	return selector("getTotalMetadataCount()")
}

type abiReader struct {
	data []byte
}

func (r abiReader) word(offset int) ([]byte, error) {
	if offset < 0 || offset+wordSize > len(r.data) {
		return nil, fmt.Errorf("abi: word at %d out of bounds (%d bytes)", offset, len(r.data))
	}
	return r.data[offset : offset+wordSize], nil
}

func (r abiReader) uintAt(offset int) (*big.Int, error) {
	word, err := r.word(offset)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(word), nil
}

// intAt reads a word expected to hold an in-range offset or length.
func (r abiReader) intAt(offset int) (int, error) {
	v, err := r.uintAt(offset)
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() || v.Int64() < 0 || v.Int64() > int64(len(r.data)) {
		return 0, fmt.Errorf("abi: implausible offset/length %s at %d", v, offset)
	}
	return int(v.Int64()), nil
}

func (r abiReader) stringAt(offset int) (string, error) {
	length, err := r.intAt(offset)
	if err != nil {
		return "", err
	}
	start := offset + wordSize
	if start+length > len(r.data) {
		return "", fmt.Errorf("abi: string at %d overruns buffer", offset)
	}
	return string(r.data[start : start+length]), nil
}

func (r abiReader) stringArrayAt(offset int) ([]string, error) {
	count, err := r.intAt(offset)
	if err != nil {
		return nil, err
	}
	base := offset + wordSize
	values := make([]string, 0, count)
	for i := 0; i < count; i++ {
		elemOffset, err := r.intAt(base + i*wordSize)
		if err != nil {
			return nil, err
		}
		value, err := r.stringAt(base + elemOffset)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// decodeUint256 decodes a single uint256 return value.
func decodeUint256(data []byte) (*big.Int, error) {
	r := abiReader{data}
	return r.uintAt(0)
}

// decodeMetadataTuple decodes (string,string,uint256,string,string[]) as
// returned by getMetadata.
func decodeMetadataTuple(data []byte) (dataID, vin string, timestamp *big.Int, location string, cids []string, err error) {
	r := abiReader{data}

	dataIDOffset, err := r.intAt(0)
	if err != nil {
		return
	}
	vinOffset, err := r.intAt(wordSize)
	if err != nil {
		return
	}
	timestamp, err = r.uintAt(2 * wordSize)
	if err != nil {
		return
	}
	locationOffset, err := r.intAt(3 * wordSize)
	if err != nil {
		return
	}
	cidsOffset, err := r.intAt(4 * wordSize)
	if err != nil {
		return
	}

	if dataID, err = r.stringAt(dataIDOffset); err != nil {
		return
	}
	if vin, err = r.stringAt(vinOffset); err != nil {
		return
	}
	if location, err = r.stringAt(locationOffset); err != nil {
		return
	}
	cids, err = r.stringArrayAt(cidsOffset)
	return
}
