package mobfile

import (
	"encoding/binary"
	"hash/fnv"
	"io"
	"math"
)

// BloomFilter is a probabilistic data structure tracking which row keys
// a MOB/reference file carries, so a caller can skip opening a file that
// cannot possibly contain a key it's looking for.
type BloomFilter struct {
	bits      []bool
	size      uint64
	hashCount uint64
}

// NewBloomFilter creates a new bloom filter sized for expectedElements
// members at the given false positive rate.
func NewBloomFilter(expectedElements int, falsePositiveRate float64) *BloomFilter {
	if expectedElements <= 0 {
		expectedElements = 1
	}

	// m = -(n * ln(p)) / (ln(2)^2)
	size := uint64(-float64(expectedElements) * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2))
	if size == 0 {
		size = 1
	}

	// k = (m/n) * ln(2)
	hashCount := uint64(float64(size) / float64(expectedElements) * math.Ln2)
	if hashCount == 0 {
		hashCount = 1
	}

	return &BloomFilter{
		bits:      make([]bool, size),
		size:      size,
		hashCount: hashCount,
	}
}

// Add inserts a row key into the bloom filter.
func (bf *BloomFilter) Add(key []byte) {
	for _, hash := range bf.getHashes(key) {
		bf.bits[hash%bf.size] = true
	}
}

// MayContain checks if a row key might be present.
func (bf *BloomFilter) MayContain(key []byte) bool {
	for _, hash := range bf.getHashes(key) {
		if !bf.bits[hash%bf.size] {
			return false
		}
	}
	return true
}

// getHashes generates k hash values for a key via double hashing:
// h(i) = h1(x) + i*h2(x).
func (bf *BloomFilter) getHashes(key []byte) []uint64 {
	hashes := make([]uint64, bf.hashCount)

	h := fnv.New64()
	h.Write(key)
	hash1 := h.Sum64()

	h.Reset()
	h.Write(key)
	h.Write([]byte("salt"))
	hash2 := h.Sum64()

	for i := uint64(0); i < bf.hashCount; i++ {
		hashes[i] = hash1 + i*hash2
	}

	return hashes
}

// WriteTo serializes the bloom filter to w, packing bits into bytes.
func (bf *BloomFilter) WriteTo(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, bf.size); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, bf.hashCount); err != nil {
		return err
	}

	byteCount := (bf.size + 7) / 8
	bytes := make([]byte, byteCount)
	for i := uint64(0); i < bf.size; i++ {
		if bf.bits[i] {
			bytes[i/8] |= 1 << (i % 8)
		}
	}

	_, err := w.Write(bytes)
	return err
}

// ReadBloomFilter deserializes a bloom filter from r.
func ReadBloomFilter(r io.Reader) (*BloomFilter, error) {
	bf := &BloomFilter{}

	if err := binary.Read(r, binary.LittleEndian, &bf.size); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &bf.hashCount); err != nil {
		return nil, err
	}

	byteCount := (bf.size + 7) / 8
	bytes := make([]byte, byteCount)
	if _, err := io.ReadFull(r, bytes); err != nil {
		return nil, err
	}

	bf.bits = make([]bool, bf.size)
	for i := uint64(0); i < bf.size; i++ {
		bf.bits[i] = (bytes[i/8] & (1 << (i % 8))) != 0
	}

	return bf, nil
}
