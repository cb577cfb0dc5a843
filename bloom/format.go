package bloom

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"

	kserrors "github.com/mtarnawa/keysweep/errors"
)

const (
	// magic identifies skip-filter files.
	magic = uint32(0xBF10F17E)

	// version is the current format version.
	version = uint16(1)

	// headerSize is the exact size of the serialized header (34 bytes).
	headerSize = 34
)

// On-disk layout, little-endian, packed:
//
//	Offset  Size      Field
//	0       4         Magic      0xBF10F17E
//	4       2         Version    1
//	6       8         m (bit count)
//	14      4         k (hash count)
//	18      8         n_est
//	26      8         p_target (IEEE 754 double)
//	34      ceil(m/8) packed bits, LSB-first within each byte
//
// Readers reject anything after the bit payload. The LSB-first packing is a
// compatibility requirement of the legacy layout; do not switch to MSB-first.

// WriteFile serializes the filter to path, truncating any existing file.
// Returns an error on an invalid filter or an I/O failure; the caller treats
// a failed save as non-fatal.
func (f *Filter) WriteFile(path string) error {
	if !f.Valid() {
		return kserrors.ErrInvalidParams
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create filter file: %w", err)
	}
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], magic)
	binary.LittleEndian.PutUint16(hdr[4:6], version)
	binary.LittleEndian.PutUint64(hdr[6:14], f.mBits)
	binary.LittleEndian.PutUint32(hdr[14:18], f.hashes)
	binary.LittleEndian.PutUint64(hdr[18:26], f.nEst)
	binary.LittleEndian.PutUint64(hdr[26:34], math.Float64bits(f.pRate))
	if _, err := out.Write(hdr[:]); err != nil {
		out.Close()
		return fmt.Errorf("write filter header: %w", err)
	}
	if _, err := out.Write(f.bits); err != nil {
		out.Close()
		return fmt.Errorf("write filter bits: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close filter file: %w", err)
	}
	return nil
}

// Load reads a filter from path. The file is memory-mapped read-only and the
// bit payload copied out, so multi-gigabyte filters parse without a second
// transient buffer. Any validation or I/O failure yields a nil filter and an
// error; the caller degrades to a fresh filter.
func Load(path string) (*Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open filter file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat filter file: %w", err)
	}
	if stat.Size() < headerSize {
		return nil, kserrors.ErrTruncatedFile
	}

	mm, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap filter file: %w", err)
	}
	defer mm.Unmap()

	return LoadBytes(mm)
}

// LoadBytes parses a filter from an in-memory serialized image. The bit
// payload is copied; data may be released afterwards.
func LoadBytes(data []byte) (*Filter, error) {
	if len(data) < headerSize {
		return nil, kserrors.ErrTruncatedFile
	}
	if binary.LittleEndian.Uint32(data[0:4]) != magic {
		return nil, kserrors.ErrInvalidMagic
	}
	if binary.LittleEndian.Uint16(data[4:6]) != version {
		return nil, kserrors.ErrInvalidVersion
	}
	mBits := binary.LittleEndian.Uint64(data[6:14])
	hashes := binary.LittleEndian.Uint32(data[14:18])
	nEst := binary.LittleEndian.Uint64(data[18:26])
	pRate := math.Float64frombits(binary.LittleEndian.Uint64(data[26:34]))

	if mBits < minBits || hashes < 1 || hashes > maxHashes {
		return nil, kserrors.ErrInvalidParams
	}
	if mBits > MaxBits {
		return nil, kserrors.ErrFilterTooLarge
	}

	payloadLen := (mBits + 7) / 8
	have := uint64(len(data) - headerSize)
	if have < payloadLen {
		return nil, kserrors.ErrTruncatedFile
	}
	if have > payloadLen {
		return nil, kserrors.ErrTrailingData
	}

	bits := make([]byte, payloadLen)
	copy(bits, data[headerSize:])
	return &Filter{
		mBits:  mBits,
		hashes: hashes,
		nEst:   nEst,
		pRate:  pRate,
		bits:   bits,
		valid:  true,
	}, nil
}
