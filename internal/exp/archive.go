package exp

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ArchiveExt is the suffix added to compressed experience files.
const ArchiveExt = ".zst"

// ArchiveFile compresses an experience file to path + ".zst" and returns
// the archive path. The source must carry a valid signature; arbitrary
// files are refused. The source file is left in place.
func ArchiveFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open experience file: %w", err)
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("stat experience file: %w", err)
	}
	if _, err := entryCount(fi.Size()); err != nil {
		return "", err
	}
	if err := ReadSignature(in); err != nil {
		return "", err
	}
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek experience file: %w", err)
	}

	outPath := path + ArchiveExt
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}

	// Archives are written once and kept around, so spend the time on the
	// best compression level.
	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		out.Close()
		os.Remove(outPath)
		return "", err
	}

	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("compress experience file: %w", err)
	}
	if err := enc.Close(); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("finish archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("close archive: %w", err)
	}
	return outPath, nil
}

// ExtractFile decompresses a ".zst" archive produced by ArchiveFile back
// into the experience file next to it and returns that path. It refuses to
// overwrite an existing file and verifies the result is a well-formed
// experience file.
func ExtractFile(path string) (string, error) {
	if !strings.HasSuffix(path, ArchiveExt) {
		return "", fmt.Errorf("not an experience archive: %s", path)
	}
	outPath := strings.TrimSuffix(path, ArchiveExt)
	if FileExists(outPath) {
		return "", fmt.Errorf("refusing to overwrite existing file: %s", outPath)
	}

	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return "", err
	}
	defer dec.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create experience file: %w", err)
	}

	if _, err := io.Copy(out, dec); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("decompress archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("close experience file: %w", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return "", err
	}
	if _, err := entryCount(fi.Size()); err != nil {
		os.Remove(outPath)
		return "", err
	}
	if err := ReadSignature(f); err != nil {
		os.Remove(outPath)
		return "", err
	}
	return outPath, nil
}
