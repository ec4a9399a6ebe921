// Package extract unpacks downloaded dataset archives.
package extract

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Method is an extraction method.
type Method string

// Supported methods.
const (
	// MethodTar reads plain or gzip-compressed tar archives.
	MethodTar Method = "tar"

	// MethodTarBz2 reads bzip2-compressed tar archives.
	MethodTarBz2 Method = "tar.bz2"

	// MethodZip reads zip archives.
	MethodZip Method = "zip"
)

var (
	// ErrUnsupported indicates no method handles the file extension.
	ErrUnsupported = errors.New("extract: unsupported archive type")

	// ErrUnsafePath indicates an archive entry would land outside the
	// target directory.
	ErrUnsafePath = errors.New("extract: entry escapes target directory")
)

var methods = map[string]Method{
	"tar": MethodTar,
	"gz":  MethodTar,
	"tgz": MethodTar,
	"bz2": MethodTarBz2,
	"zip": MethodZip,
}

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

var gzipMagic = []byte{0x1f, 0x8b}

// MethodFor returns the method for a file extension, with or without the
// leading dot. Matching is case-insensitive.
//
// Possible errors: [ErrUnsupported].
func MethodFor(ext string) (Method, error) {
	key := strings.ToLower(strings.TrimPrefix(ext, "."))

	method, ok := methods[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}

	return method, nil
}

// File extracts the archive at path into dir, creating dir if needed. The
// method is chosen by the last extension of path, so "x.tar.gz" is read as
// a gzip-compressed tar. The archive is deleted afterwards when removeSource
// is set.
//
// Possible errors: [ErrUnsupported], [ErrUnsafePath], I/O and format errors.
func File(path, dir string, removeSource bool) error {
	method, err := MethodFor(filepath.Ext(path))
	if err != nil {
		return err
	}

	err = os.MkdirAll(dir, dirPerm)
	if err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	switch method {
	case MethodZip:
		err = extractZip(path, dir)
	case MethodTar, MethodTarBz2:
		err = extractTarFile(path, dir, method)
	}

	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}

	if removeSource {
		err = os.Remove(path)
		if err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}

	return nil
}

func extractTarFile(path, dir string, method Method) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	br := bufio.NewReader(f)

	var src io.Reader = br

	switch method {
	case MethodTarBz2:
		src = bzip2.NewReader(br)
	case MethodTar:
		magic, _ := br.Peek(len(gzipMagic))
		if bytes.Equal(magic, gzipMagic) {
			gz, gzErr := gzip.NewReader(br)
			if gzErr != nil {
				return gzErr
			}

			defer gz.Close()

			src = gz
		}
	}

	return extractTar(tar.NewReader(src), dir)
}

func extractTar(tr *tar.Reader, dir string) error {
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			err = os.MkdirAll(target, dirPerm)
		case tar.TypeReg:
			err = writeFile(target, tr, hdr.FileInfo().Mode().Perm())
		case tar.TypeSymlink:
			err = symlink(dir, target, hdr.Linkname)
		default:
			// Devices, fifos and hard links are not part of dataset archives.
			continue
		}

		if err != nil {
			return err
		}
	}
}

func extractZip(path, dir string) (err error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, zr.Close())
	}()

	for _, zf := range zr.File {
		target, err := safeJoin(dir, zf.Name)
		if err != nil {
			return err
		}

		if zf.FileInfo().IsDir() {
			err = os.MkdirAll(target, dirPerm)
			if err != nil {
				return err
			}

			continue
		}

		err = extractZipEntry(zf, target)
		if err != nil {
			return err
		}
	}

	return nil
}

func extractZipEntry(zf *zip.File, target string) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}

	writeErr := writeFile(target, rc, zf.Mode().Perm())

	return errors.Join(writeErr, rc.Close())
}

func writeFile(target string, src io.Reader, perm os.FileMode) (err error) {
	err = os.MkdirAll(filepath.Dir(target), dirPerm)
	if err != nil {
		return err
	}

	if perm == 0 {
		perm = filePerm
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	_, err = io.Copy(f, src)

	return err
}

func symlink(dir, target, linkname string) error {
	resolved := linkname
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(target), linkname)
	}

	if !within(dir, resolved) {
		return fmt.Errorf("%w: link %s -> %s", ErrUnsafePath, target, linkname)
	}

	err := os.MkdirAll(filepath.Dir(target), dirPerm)
	if err != nil {
		return err
	}

	return os.Symlink(linkname, target)
}

// safeJoin joins an archive entry name onto dir, rejecting names that leave
// dir.
func safeJoin(dir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	target := filepath.Join(dir, name)
	if !within(dir, target) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	return target, nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
