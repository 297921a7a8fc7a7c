// Package bundle packs build outputs into compressed tarballs.
package bundle

import (
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

// Format is a supported archive format
type Format string

const (
	TarXz     Format = ".tar.xz"
	TarBrotli Format = ".tar.br"
)

// FormatFor derives the archive format from a file name.
func FormatFor(filename string) (Format, error) {
	switch {
	case strings.HasSuffix(filename, string(TarXz)):
		return TarXz, nil
	case strings.HasSuffix(filename, string(TarBrotli)):
		return TarBrotli, nil
	default:
		return "", eris.Errorf("Archive format of %s not supported (use .tar.xz or .tar.br)", filename)
	}
}

func compressor(format Format, w io.Writer) (io.WriteCloser, error) {
	switch format {
	case TarXz:
		return xz.NewWriter(w)
	case TarBrotli:
		return brotli.NewWriterLevel(w, brotli.BestCompression), nil
	default:
		return nil, eris.Errorf("unknown format %s", format)
	}
}

func decompressor(format Format, r io.Reader) (io.Reader, error) {
	switch format {
	case TarXz:
		return xz.NewReader(r)
	case TarBrotli:
		return brotli.NewReader(r), nil
	default:
		return nil, eris.Errorf("unknown format %s", format)
	}
}

// Pack recursively writes the contents of srcDir into the archive dst and returns the
// number of files it contains. Paths inside the archive are relative to srcDir.
func Pack(dst, srcDir string) (int, error) {
	format, err := FormatFor(dst)
	if err != nil {
		return 0, err
	}

	f, err := os.Create(dst)
	if err != nil {
		return 0, eris.Wrapf(err, "Failed to create %s", dst)
	}
	defer f.Close()

	cw, err := compressor(format, f)
	if err != nil {
		return 0, err
	}

	archive := tar.NewWriter(cw)
	count := 0
	buf := make([]byte, 32*1024)

	err = filepath.WalkDir(srcDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return eris.Wrapf(err, "Failed to stat %s", path)
		}

		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return eris.Wrapf(err, "Failed to read link %s", path)
			}
		}

		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return eris.Wrapf(err, "Failed to build header for %s", path)
		}
		header.Name = filepath.ToSlash(relPath)
		if info.IsDir() {
			header.Name += "/"
		}

		err = archive.WriteHeader(header)
		if err != nil {
			return eris.Wrapf(err, "Failed to write header for %s", path)
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		hdl, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "Failed to open %s", path)
		}
		defer hdl.Close()

		_, err = io.CopyBuffer(archive, hdl, buf)
		if err != nil {
			return eris.Wrapf(err, "Failed to pack %s", path)
		}

		count++
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err = archive.Close(); err != nil {
		return 0, eris.Wrap(err, "Failed to finish tar stream")
	}
	if err = cw.Close(); err != nil {
		return 0, eris.Wrap(err, "Failed to finish compression")
	}
	if err = f.Close(); err != nil {
		return 0, eris.Wrapf(err, "Failed to close %s", dst)
	}

	return count, nil
}

// Extract unpacks an archive created by Pack into dstDir.
func Extract(src, dstDir string) error {
	format, err := FormatFor(src)
	if err != nil {
		return err
	}

	f, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "Failed to open %s", src)
	}
	defer f.Close()

	reader, err := decompressor(format, f)
	if err != nil {
		return eris.Wrapf(err, "Failed to read %s", src)
	}

	archive := tar.NewReader(reader)
	for {
		item, err := archive.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}

			return eris.Wrap(err, "Failed to read archive entry")
		}

		dest := filepath.Join(dstDir, filepath.FromSlash(item.Name))
		if !strings.HasPrefix(dest, filepath.Clean(dstDir)+string(filepath.Separator)) {
			return eris.Errorf("Archive entry %s points outside of the destination", item.Name)
		}

		switch item.Typeflag {
		case tar.TypeDir:
			err = os.MkdirAll(dest, 0770)
		case tar.TypeSymlink:
			err = os.Symlink(item.Linkname, dest)
		case tar.TypeReg:
			err = extractFile(archive, dest, item.FileInfo().Mode())
		default:
			continue
		}

		if err != nil {
			return eris.Wrapf(err, "Failed to extract %s", item.Name)
		}
	}
}

func extractFile(r io.Reader, dest string, mode fs.FileMode) error {
	err := os.MkdirAll(filepath.Dir(dest), 0770)
	if err != nil {
		return err
	}

	hdl, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}

	_, err = io.Copy(hdl, r)
	if err != nil {
		hdl.Close()
		return err
	}

	return hdl.Close()
}
