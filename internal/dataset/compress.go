package dataset

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"
)

// ZstdExt is appended to file names written with zstd compression.
const ZstdExt = ".zst"

// Open opens a dataset file, transparently decompressing .zst files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	if !strings.HasSuffix(path, ZstdExt) {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, eris.Wrapf(err, "dataset: zstd reader %s", path)
	}
	return &zstdReadCloser{dec: dec, f: f}, nil
}

// Create creates a dataset file, compressing with zstd when path ends in .zst.
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: create %s", path)
	}
	if !strings.HasSuffix(path, ZstdExt) {
		return f, nil
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return nil, eris.Wrapf(err, "dataset: zstd writer %s", path)
	}
	return &zstdWriteCloser{enc: enc, f: f}, nil
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.f.Close()
}

type zstdWriteCloser struct {
	enc *zstd.Encoder
	f   *os.File
}

func (z *zstdWriteCloser) Write(p []byte) (int, error) { return z.enc.Write(p) }

func (z *zstdWriteCloser) Close() error {
	if err := z.enc.Close(); err != nil {
		_ = z.f.Close()
		return eris.Wrap(err, "dataset: flush zstd")
	}
	return z.f.Close()
}
