package memory

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/joingo/index"
)

// Compression selects the snapshot body codec.
type Compression uint8

const (
	// CompressionNone stores the body uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 favors decode speed over ratio.
	CompressionLZ4 Compression = 1
	// CompressionZSTD favors ratio; the default.
	CompressionZSTD Compression = 2
)

const (
	snapshotMagic   uint32 = 0x4a475331 // "JGS1"
	snapshotVersion uint16 = 1

	// magic + version + compression + crc32 of the uncompressed body
	snapshotHeaderSize = 4 + 2 + 1 + 4
)

var (
	// ErrInvalidMagic is returned when the stream is not a snapshot.
	ErrInvalidMagic = errors.New("memory: invalid snapshot magic")
	// ErrInvalidVersion is returned for snapshots of an unsupported version.
	ErrInvalidVersion = errors.New("memory: unsupported snapshot version")
	// ErrChecksum is returned when the body does not match its checksum.
	ErrChecksum = errors.New("memory: snapshot checksum mismatch")
	// ErrCorrupt is returned when the body cannot be parsed.
	ErrCorrupt = errors.New("memory: corrupt snapshot")
)

// SnapshotOptions configure snapshot serialization.
type SnapshotOptions struct {
	Compression Compression
}

// WithCompression selects the snapshot body codec.
func WithCompression(c Compression) func(o *SnapshotOptions) {
	return func(o *SnapshotOptions) {
		o.Compression = c
	}
}

const (
	fieldFlagMultivalued = 1 << 0
	fieldFlagPoint       = 1 << 1
	fieldFlagTerms       = 1 << 2
	fieldFlagValues      = 1 << 3
)

// WriteSnapshot serializes a point-in-time image of the index, deletions
// included, suitable for ReadSnapshot.
func (ix *Index) WriteSnapshot(w io.Writer, optFns ...func(o *SnapshotOptions)) error {
	opts := SnapshotOptions{Compression: CompressionZSTD}
	for _, fn := range optFns {
		fn(&opts)
	}

	ix.mu.RLock()
	deleted := ix.deleted.Clone()
	ix.mu.RUnlock()

	var body bytes.Buffer
	putUvarint(&body, uint64(ix.segSize))
	putUvarint(&body, uint64(ix.maxDoc))

	delBytes, err := deleted.ToBytes()
	if err != nil {
		return fmt.Errorf("serialize live mask: %w", err)
	}
	putBytes(&body, delBytes)

	putUvarint(&body, uint64(len(ix.order)))
	for _, name := range ix.order {
		f := ix.fields[name]

		putBytes(&body, []byte(name))

		var flags byte
		if f.info.Multivalued {
			flags |= fieldFlagMultivalued
		}
		if f.info.Point {
			flags |= fieldFlagPoint
		}
		if f.terms != nil {
			flags |= fieldFlagTerms
		}
		if f.values != nil {
			flags |= fieldFlagValues
		}
		body.WriteByte(flags)

		dict := f.values
		if dict == nil {
			dict = f.terms
		}
		putUvarint(&body, uint64(len(dict)))
		for _, v := range dict {
			putBytes(&body, v)
		}

		if f.terms != nil {
			for _, pl := range f.postings {
				putUvarint(&body, uint64(pl.docFreq))
				prev := uint32(0)
				it := newPostings(pl)
				for it.Next() {
					id := uint32(it.DocID())
					putUvarint(&body, uint64(id-prev))
					prev = id
				}
			}
		}

		if f.values != nil {
			for _, ords := range f.docOrds {
				putUvarint(&body, uint64(len(ords)))
				prev := int64(0)
				for _, ord := range ords {
					putUvarint(&body, uint64(ord-prev))
					prev = ord
				}
			}
		}
	}

	sum := crc32.ChecksumIEEE(body.Bytes())

	encoded, err := compressBody(body.Bytes(), opts.Compression)
	if err != nil {
		return err
	}

	var header [snapshotHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:], snapshotMagic)
	binary.LittleEndian.PutUint16(header[4:], snapshotVersion)
	header[6] = byte(opts.Compression)
	binary.LittleEndian.PutUint32(header[7:], sum)

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(encoded); err != nil {
		return err
	}

	return nil
}

// ReadSnapshot deserializes an index image written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Index, error) {
	var header [snapshotHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	if magic := binary.LittleEndian.Uint32(header[0:]); magic != snapshotMagic {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, magic)
	}
	if version := binary.LittleEndian.Uint16(header[4:]); version != snapshotVersion {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVersion, version)
	}
	compression := Compression(header[6])
	sum := binary.LittleEndian.Uint32(header[7:])

	encoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	body, err := decompressBody(encoded, compression)
	if err != nil {
		return nil, err
	}

	if crc32.ChecksumIEEE(body) != sum {
		return nil, ErrChecksum
	}

	return parseSnapshot(bytes.NewReader(body))
}

func parseSnapshot(r *bytes.Reader) (*Index, error) {
	segSize, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	maxDoc, err := readUvarint(r)
	if err != nil {
		return nil, err
	}

	delBytes, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	deleted := roaring.New()
	if len(delBytes) > 0 {
		if _, err := deleted.ReadFrom(bytes.NewReader(delBytes)); err != nil {
			return nil, fmt.Errorf("%w: live mask: %v", ErrCorrupt, err)
		}
	}

	numFields, err := readUvarint(r)
	if err != nil {
		return nil, err
	}

	ix := &Index{
		fields:  make(map[string]*field, numFields),
		maxDoc:  int(maxDoc),
		segSize: int(segSize),
		deleted: deleted,
	}

	for range numFields {
		name, err := readBytes(r)
		if err != nil {
			return nil, err
		}

		flags, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: field flags: %v", ErrCorrupt, err)
		}

		hasTerms := flags&fieldFlagTerms != 0
		hasValues := flags&fieldFlagValues != 0

		dictLen, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		dict := make([][]byte, dictLen)
		for i := range dict {
			if dict[i], err = readBytes(r); err != nil {
				return nil, err
			}
		}

		f := &field{
			info: index.FieldInfo{
				Name:          string(name),
				HasValueIndex: hasValues,
				Multivalued:   flags&fieldFlagMultivalued != 0,
				Point:         flags&fieldFlagPoint != 0,
			},
		}

		if hasTerms {
			f.terms = dict
			f.postings = make([]postingList, dictLen)
			for i := range f.postings {
				df, err := readUvarint(r)
				if err != nil {
					return nil, err
				}
				docs := make([]uint32, df)
				prev := uint64(0)
				for j := range docs {
					delta, err := readUvarint(r)
					if err != nil {
						return nil, err
					}
					prev += delta
					if prev >= maxDoc {
						return nil, fmt.Errorf("%w: posting doc %d beyond maxDoc %d", ErrCorrupt, prev, maxDoc)
					}
					docs[j] = uint32(prev)
				}
				f.postings[i] = buildPostingList(docs, int(segSize))
			}
		}

		if hasValues {
			f.values = dict
			f.docOrds = make([][]int64, maxDoc)
			for d := range f.docOrds {
				n, err := readUvarint(r)
				if err != nil {
					return nil, err
				}
				if n == 0 {
					continue
				}
				ords := make([]int64, n)
				prev := uint64(0)
				for j := range ords {
					delta, err := readUvarint(r)
					if err != nil {
						return nil, err
					}
					prev += delta
					if prev >= dictLen {
						return nil, fmt.Errorf("%w: ordinal %d beyond value count %d", ErrCorrupt, prev, dictLen)
					}
					ords[j] = int64(prev)
				}
				f.docOrds[d] = ords
			}
		}

		ix.fields[string(name)] = f
		ix.order = append(ix.order, string(name))
		ix.schema.Fields = append(ix.schema.Fields, FieldConfig{
			Name:        string(name),
			Multivalued: f.info.Multivalued,
			Point:       f.info.Point,
			NoValues:    !hasValues,
		})
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.Len())
	}

	return ix, nil
}

func compressBody(body []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return body, nil

	case CompressionLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(body, nil), nil

	default:
		return nil, fmt.Errorf("memory: unknown compression %d", c)
	}
}

func decompressBody(encoded []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return encoded, nil

	case CompressionLZ4:
		body, err := io.ReadAll(lz4.NewReader(bytes.NewReader(encoded)))
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		return body, nil

	case CompressionZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		body, err := dec.DecodeAll(encoded, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		return body, nil

	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, c)
	}
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func putBytes(buf *bytes.Buffer, b []byte) {
	putUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return v, nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: byte field of %d exceeds remaining %d", ErrCorrupt, n, r.Len())
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return b, nil
}
