package czi

import (
	"fmt"
	"io"

	"github.com/mrjoshuak/go-czi/compression"
	"github.com/mrjoshuak/go-czi/internal/byteio"
)

// Segment identifiers.
const (
	SegmentFile       = "ZISRAWFILE"
	SegmentDirectory  = "ZISRAWDIRECTORY"
	SegmentSubBlock   = "ZISRAWSUBBLOCK"
	SegmentMetadata   = "ZISRAWMETADATA"
	SegmentAttachDir  = "ZISRAWATTDIR"
	SegmentAttachment = "ZISRAWATTACH"
	SegmentDeleted    = "DELETED"
)

const (
	segmentAlign      = 32
	segmentHeaderSize = 32
	segmentIDSize     = 16

	fileHeaderDataSize   = 512
	directoryHeaderSize  = 128
	subBlockMinHeader    = 256
	subBlockFixedSize    = 16
	entryFixedSize       = 32
	dimensionEntrySize   = 20
	metadataHeaderSize   = 256
	maxDimensionsPerItem = 64

	// Bounds applied before allocating from sizes read off disk.
	maxDirectorySize = 1 << 30
	maxMetadataSize  = 256 << 20
	maxPayloadSize   = 1 << 31
	maxTileBytes     = 1 << 30
)

// SegmentHeader is the 32-byte prefix of every segment.
type SegmentHeader struct {
	ID            string
	AllocatedSize int64
	UsedSize      int64
}

// FileHeader is the ZISRAWFILE segment at offset 0.
type FileHeader struct {
	Major, Minor                int32
	PrimaryFileGUID             [16]byte
	FileGUID                    [16]byte
	FilePart                    int32
	DirectoryPosition           int64
	MetadataPosition            int64
	UpdatePending               bool
	AttachmentDirectoryPosition int64
}

func readAt(r io.ReaderAt, off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if m, err := r.ReadAt(buf, off); err != nil && m < n {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

func parseSegmentHeader(br *byteio.Reader) (SegmentHeader, error) {
	var h SegmentHeader
	var err error
	if h.ID, err = br.ReadFixedString(segmentIDSize); err != nil {
		return h, err
	}
	if h.AllocatedSize, err = br.ReadInt64(); err != nil {
		return h, err
	}
	if h.UsedSize, err = br.ReadInt64(); err != nil {
		return h, err
	}
	if h.AllocatedSize < 0 || h.UsedSize < 0 {
		return h, ErrInvalidSegmentSize
	}
	return h, nil
}

// ReadSegmentHeader reads the segment header at off.
func ReadSegmentHeader(r io.ReaderAt, off int64) (SegmentHeader, error) {
	buf, err := readAt(r, off, segmentHeaderSize)
	if err != nil {
		return SegmentHeader{}, err
	}
	return parseSegmentHeader(byteio.NewReader(buf))
}

// ReadFileHeader reads and validates the file header segment.
func ReadFileHeader(r io.ReaderAt) (*FileHeader, error) {
	buf, err := readAt(r, 0, segmentHeaderSize+fileHeaderDataSize)
	if err != nil {
		return nil, &FormatError{Segment: SegmentFile, Err: err}
	}
	br := byteio.NewReader(buf)
	seg, err := parseSegmentHeader(br)
	if err != nil {
		return nil, &FormatError{Segment: SegmentFile, Err: err}
	}
	if seg.ID != SegmentFile {
		return nil, ErrInvalidMagic
	}

	// The buffer holds the whole header, so the field reads cannot fail.
	h := &FileHeader{}
	h.Major, _ = br.ReadInt32()
	h.Minor, _ = br.ReadInt32()
	_ = br.Skip(8)
	_ = readGUID(br, &h.PrimaryFileGUID)
	_ = readGUID(br, &h.FileGUID)
	h.FilePart, _ = br.ReadInt32()
	h.DirectoryPosition, _ = br.ReadInt64()
	h.MetadataPosition, _ = br.ReadInt64()
	pending, _ := br.ReadInt32()
	h.UpdatePending = pending != 0
	h.AttachmentDirectoryPosition, _ = br.ReadInt64()
	return h, nil
}

func readGUID(br *byteio.Reader, dst *[16]byte) error {
	b, err := br.ReadBytes(16)
	if err != nil {
		return err
	}
	copy(dst[:], b)
	return nil
}

// ReadDirectory reads the sub-block directory segment at pos. size is the
// length of the part holding it.
func ReadDirectory(r io.ReaderAt, size, pos int64) ([]Record, error) {
	if pos <= 0 || pos+segmentHeaderSize > size {
		return nil, &FormatError{Segment: SegmentDirectory, Offset: pos, Err: ErrInvalidSegmentSize}
	}
	seg, err := ReadSegmentHeader(r, pos)
	if err != nil {
		return nil, &FormatError{Segment: SegmentDirectory, Offset: pos, Err: err}
	}
	if seg.ID != SegmentDirectory {
		return nil, &FormatError{Segment: SegmentDirectory, Offset: pos,
			Err: fmt.Errorf("%w: %q", ErrInvalidSegment, seg.ID)}
	}
	n := seg.UsedSize
	if n == 0 {
		n = seg.AllocatedSize
	}
	if avail := size - pos - segmentHeaderSize; n > avail {
		n = avail
	}
	if n < directoryHeaderSize || n > maxDirectorySize {
		return nil, &FormatError{Segment: SegmentDirectory, Offset: pos, Err: ErrInvalidSegmentSize}
	}
	buf, err := readAt(r, pos+segmentHeaderSize, int(n))
	if err != nil {
		return nil, &FormatError{Segment: SegmentDirectory, Offset: pos, Err: err}
	}
	records, err := parseDirectory(byteio.NewReader(buf))
	if err != nil {
		return nil, &FormatError{Segment: SegmentDirectory, Offset: pos, Err: err}
	}
	return records, nil
}

func parseDirectory(br *byteio.Reader) ([]Record, error) {
	count, err := br.ReadInt32()
	if err != nil {
		return nil, err
	}
	if count < 0 || int(count) > br.Len()/entryFixedSize {
		return nil, fmt.Errorf("%w: %d entries", ErrInvalidSegmentSize, count)
	}
	if err := br.Skip(directoryHeaderSize - 4); err != nil {
		return nil, err
	}
	records := make([]Record, 0, count)
	for i := 0; i < int(count); i++ {
		rec, err := parseEntry(br)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseEntry decodes one DV directory entry.
func parseEntry(br *byteio.Reader) (Record, error) {
	var rec Record
	schema, err := br.ReadBytes(2)
	if err != nil {
		return rec, err
	}
	if string(schema) != "DV" {
		return rec, fmt.Errorf("%w: %q", ErrUnsupportedSchema, schema)
	}
	pt, err := br.ReadInt32()
	if err != nil {
		return rec, err
	}
	rec.PixelType = PixelType(pt)
	if rec.FilePosition, err = br.ReadInt64(); err != nil {
		return rec, err
	}
	if rec.FilePart, err = br.ReadInt32(); err != nil {
		return rec, err
	}
	tag, err := br.ReadInt32()
	if err != nil {
		return rec, err
	}
	rec.Compression = compression.Tag(tag)
	pyramid, err := br.ReadByte()
	if err != nil {
		return rec, err
	}
	rec.PyramidType = PyramidType(pyramid)
	if err := br.Skip(5); err != nil {
		return rec, err
	}
	dims, err := br.ReadInt32()
	if err != nil {
		return rec, err
	}
	if dims < 0 || dims > maxDimensionsPerItem {
		return rec, fmt.Errorf("%w: %d dimensions", ErrInvalidSegmentSize, dims)
	}
	rec.Dimensions = make([]DimensionEntry, dims)
	for j := range rec.Dimensions {
		d := &rec.Dimensions[j]
		if d.Dimension, err = br.ReadFixedString(4); err != nil {
			return rec, err
		}
		if d.Start, err = br.ReadInt32(); err != nil {
			return rec, err
		}
		if d.Size, err = br.ReadInt32(); err != nil {
			return rec, err
		}
		if d.StartCoordinate, err = br.ReadFloat32(); err != nil {
			return rec, err
		}
		if d.StoredSize, err = br.ReadInt32(); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// subBlockHeaderSize returns the padded size of a sub-block header carrying
// dims dimension entries.
func subBlockHeaderSize(dims int) int {
	n := subBlockFixedSize + entryFixedSize + dimensionEntrySize*dims
	if n < subBlockMinHeader {
		n = subBlockMinHeader
	}
	return n
}

// payloadSpan locates the pixel data of the sub-block segment at off.
func payloadSpan(r io.ReaderAt, off int64, dims int) (start, size int64, err error) {
	buf, err := readAt(r, off, segmentHeaderSize+subBlockFixedSize)
	if err != nil {
		return 0, 0, err
	}
	br := byteio.NewReader(buf)
	seg, err := parseSegmentHeader(br)
	if err != nil {
		return 0, 0, err
	}
	if seg.ID != SegmentSubBlock {
		return 0, 0, fmt.Errorf("%w: found %q at %d", ErrInvalidSubBlock, seg.ID, off)
	}
	metaSize, _ := br.ReadInt32()
	attachSize, _ := br.ReadInt32()
	dataSize, _ := br.ReadInt64()
	if metaSize < 0 || attachSize < 0 || dataSize < 0 || dataSize > maxPayloadSize {
		return 0, 0, fmt.Errorf("%w: sizes %d/%d/%d", ErrInvalidSubBlock, metaSize, attachSize, dataSize)
	}
	start = off + segmentHeaderSize + int64(subBlockHeaderSize(dims)) + int64(metaSize)
	return start, dataSize, nil
}

// ReadMetadataXML returns the XML document of the metadata segment at pos.
func ReadMetadataXML(r io.ReaderAt, pos int64) (string, error) {
	buf, err := readAt(r, pos, segmentHeaderSize+8)
	if err != nil {
		return "", &FormatError{Segment: SegmentMetadata, Offset: pos, Err: err}
	}
	br := byteio.NewReader(buf)
	seg, err := parseSegmentHeader(br)
	if err != nil {
		return "", &FormatError{Segment: SegmentMetadata, Offset: pos, Err: err}
	}
	if seg.ID != SegmentMetadata {
		return "", &FormatError{Segment: SegmentMetadata, Offset: pos,
			Err: fmt.Errorf("%w: %q", ErrInvalidSegment, seg.ID)}
	}
	xmlSize, _ := br.ReadInt32()
	if xmlSize < 0 || xmlSize > maxMetadataSize {
		return "", &FormatError{Segment: SegmentMetadata, Offset: pos, Err: ErrInvalidSegmentSize}
	}
	xml, err := readAt(r, pos+segmentHeaderSize+metadataHeaderSize, int(xmlSize))
	if err != nil {
		return "", &FormatError{Segment: SegmentMetadata, Offset: pos, Err: err}
	}
	return string(xml), nil
}
