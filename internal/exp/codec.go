package exp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// File signature and entry layout. Entries are little-endian to stay
// byte-compatible with .exp files written by SugaR-family engines:
//
//	key u64 | move u32 | value i32 | depth i32 | pad u32
//
// The trailing pad word mirrors the struct padding those engines persist;
// it is written as zero and ignored on read.
const (
	Signature     = "SugaR"
	SignatureSize = len(Signature)
	EntrySize     = 24
)

// MinDepth is the minimum search depth an entry needs to be worth
// persisting. Entries below it are dropped by every save path.
const MinDepth = 4

var (
	// ErrEmpty is returned when an experience file contains no data at all.
	ErrEmpty = errors.New("experience file is empty")
	// ErrCorrupt is returned when the file size does not divide into whole entries.
	ErrCorrupt = errors.New("experience file is corrupt")
	// ErrSignature is returned when the file signature does not match.
	ErrSignature = errors.New("experience file signature mismatch")
	// ErrAborted is returned when a load is cancelled by its owning store.
	ErrAborted = errors.New("experience load aborted")
)

// EncodeEntry encodes e into buf, which must be at least EntrySize bytes.
func EncodeEntry(buf []byte, e *Entry) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.Key))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(e.Move))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(e.Value))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(e.Depth))
	binary.LittleEndian.PutUint32(buf[20:24], 0)
}

// DecodeEntry decodes EntrySize bytes into e. The chain link is left untouched.
func DecodeEntry(buf []byte, e *Entry) {
	e.Key = Key(binary.LittleEndian.Uint64(buf[0:8]))
	e.Move = Move(binary.LittleEndian.Uint32(buf[8:12]))
	e.Value = int32(binary.LittleEndian.Uint32(buf[12:16]))
	e.Depth = int32(binary.LittleEndian.Uint32(buf[16:20]))
}

// WriteSignature writes the file signature. Callers only do this when the
// target file is empty.
func WriteSignature(w io.Writer) error {
	if _, err := w.Write([]byte(Signature)); err != nil {
		return fmt.Errorf("write signature: %w", err)
	}
	return nil
}

// ReadSignature reads and verifies the file signature.
func ReadSignature(r io.Reader) error {
	var sig [SignatureSize]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return fmt.Errorf("read signature: %w", err)
	}
	if !bytes.Equal(sig[:], []byte(Signature)) {
		return ErrSignature
	}
	return nil
}

// entryCount validates a file size and returns the number of entries it holds.
func entryCount(size int64) (int64, error) {
	if size == 0 {
		return 0, ErrEmpty
	}
	data := size - int64(SignatureSize)
	if data < 0 || data%EntrySize != 0 {
		return 0, fmt.Errorf("%w: size %d", ErrCorrupt, size)
	}
	return data / EntrySize, nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Unquote strips one level of surrounding single or double quotes, so
// command arguments may carry filenames with spaces.
func Unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
