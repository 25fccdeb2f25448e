// Package precompress maintains the encoded sidecar files (.gz, .br, .zst,
// .deflate) served in place of their originals.
//
// compress:
//   - encode every file in the tree, keeping the original
//   - skip sidecars newer than their original
//   - remove a sidecar that is not smaller than its original
//
// cleanup:
//   - remove sidecars, optionally only stale ones
package precompress

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/andybalholm/brotli"
	"github.com/buildkite/shellwords"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/wtnb75/dirserve"
)

// Encoder writes one kind of sidecar. When Cmd is set the external command
// is run with the absolute path of the original appended and must leave
// <original><Ext> next to it; otherwise the file is encoded in-process.
type Encoder struct {
	Name   string
	Ext    string
	Cmd    []string
	encode func(dst io.Writer, src io.Reader) error
}

// DefaultEncoders returns the in-process encoders at their highest
// compression level.
func DefaultEncoders() []*Encoder {
	return []*Encoder{
		{Name: "gzip", Ext: ".gz", encode: encodeGzip},
		{Name: "brotli", Ext: ".br", encode: encodeBrotli},
		{Name: "zstd", Ext: ".zst", encode: encodeZstd},
		{Name: "deflate", Ext: ".deflate", encode: encodeDeflate},
	}
}

// SetCommand replaces the in-process encoder by a shell-style command line.
func (e *Encoder) SetCommand(cmdline string) error {
	cmd, err := shellwords.Split(cmdline)
	if err != nil {
		return fmt.Errorf("%s command %q: %w", e.Name, cmdline, err)
	}
	if len(cmd) == 0 {
		return fmt.Errorf("%s command is empty", e.Name)
	}
	e.Cmd = cmd
	return nil
}

func encodeGzip(dst io.Writer, src io.Reader) error {
	w, err := gzip.NewWriterLevel(dst, gzip.BestCompression)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func encodeDeflate(dst io.Writer, src io.Reader) error {
	w, err := flate.NewWriter(dst, flate.BestCompression)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func encodeBrotli(dst io.Writer, src io.Reader) error {
	w := brotli.NewWriterLevel(dst, brotli.BestCompression)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func encodeZstd(dst io.Writer, src io.Reader) error {
	w, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

type Options struct {
	MinSize int64
	MaxSize int64
	DryRun  bool
	// OldOnly limits cleanup to sidecars older than their original.
	OldOnly bool
}

func DefaultOptions() Options {
	return Options{MinSize: 128, MaxSize: 10 * 1024 * 1024}
}

// walk calls fn for every regular, non-sidecar file under dir.
func walk(ctx context.Context, dir string, fn func(path string, info fs.FileInfo) error) error {
	root := os.DirFS(dir)
	err := fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() || dirserve.SidecarExt(filepath.Ext(d.Name())) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			slog.Error("stat failed", "path", path, "error", err)
			return err
		}
		return fn(path, info)
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir, err)
	}
	return nil
}

// Compress writes missing or stale sidecars for every file under dir.
func Compress(ctx context.Context, dir string, encoders []*Encoder, opts Options) error {
	return walk(ctx, dir, func(path string, info fs.FileInfo) error {
		if info.Size() < opts.MinSize {
			slog.Debug("skip compressing, too small", "path", path, "size", info.Size(), "min_size", opts.MinSize)
			return nil
		}
		if opts.MaxSize > 0 && info.Size() > opts.MaxSize {
			slog.Info("skip compressing, too large", "path", path, "size", info.Size(), "max_size", opts.MaxSize)
			return nil
		}
		abspath := filepath.Join(dir, filepath.FromSlash(path))
		for _, e := range encoders {
			if err := e.compressFile(abspath, info, opts.DryRun); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Encoder) compressFile(abspath string, orig fs.FileInfo, dry bool) error {
	outfn := abspath + e.Ext
	if st, err := os.Stat(outfn); err == nil && st.ModTime().After(orig.ModTime()) {
		slog.Debug("skip compressing, up-to-date", "path", abspath, "compressed", outfn)
		return nil
	}
	if dry {
		slog.Info("dry-run: would compress file", "path", abspath, "encoder", e.Name, "cmd", e.Cmd)
		return nil
	}
	if err := e.run(abspath, outfn); err != nil {
		slog.Error("compress failed", "path", abspath, "encoder", e.Name, "error", err)
		return fmt.Errorf("%s %s: %w", e.Name, abspath, err)
	}
	st, err := os.Stat(outfn)
	if err != nil {
		slog.Error("stat compressed file failed", "path", outfn, "error", err)
		return err
	}
	if st.Size() >= orig.Size() {
		slog.Info("compressed file is not smaller than original, removing", "path", abspath, "compressed", outfn, "original_size", orig.Size(), "compressed_size", st.Size())
		if err := os.Remove(outfn); err != nil {
			slog.Error("remove compressed file failed", "path", outfn, "error", err)
			return err
		}
		return nil
	}
	slog.Info("compressed file created", "path", abspath, "compressed", outfn, "original_size", orig.Size(), "compressed_size", st.Size())
	return nil
}

func (e *Encoder) run(abspath, outfn string) error {
	if len(e.Cmd) != 0 {
		args := append(append([]string{}, e.Cmd[1:]...), abspath)
		out, err := exec.Command(e.Cmd[0], args...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("%v: %w: %s", e.Cmd, err, out)
		}
		return nil
	}
	src, err := os.Open(abspath)
	if err != nil {
		return err
	}
	defer src.Close()
	tmp, err := os.CreateTemp(filepath.Dir(outfn), ".precompress-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := e.encode(tmp, src); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), outfn)
}

// Cleanup removes sidecars under dir. With opts.OldOnly, sidecars newer than
// their original are kept.
func Cleanup(ctx context.Context, dir string, encoders []*Encoder, opts Options) error {
	return walk(ctx, dir, func(path string, info fs.FileInfo) error {
		abspath := filepath.Join(dir, filepath.FromSlash(path))
		for _, e := range encoders {
			outfn := abspath + e.Ext
			st, err := os.Stat(outfn)
			if err != nil {
				continue
			}
			if opts.OldOnly && st.ModTime().After(info.ModTime()) {
				slog.Debug("skip cleanup, up-to-date", "path", abspath, "compressed", outfn)
				continue
			}
			if opts.DryRun {
				slog.Info("dry-run: would cleanup file", "path", abspath, "compressed", outfn)
				continue
			}
			if err := os.Remove(outfn); err != nil {
				slog.Error("remove compressed file failed", "path", outfn, "error", err)
				return err
			}
			slog.Info("removed compressed file", "path", abspath, "compressed", outfn)
		}
		return nil
	})
}
