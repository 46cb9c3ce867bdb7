package archive

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Archiver compresses finished dump files into their final form. The zero
// value is ready to use.
type Archiver struct{}

// Compress writes src into a new archive at dst. format is "zip" or "tar";
// anything else is an error. The source file is left in place; callers
// decide whether to delete it.
func (Archiver) Compress(format, src, dst string) error {
	switch format {
	case "zip":
		return zipFile(src, dst)
	case "tar":
		return tarFile(src, dst)
	default:
		return fmt.Errorf("unsupported archive format %q", format)
	}
}

func zipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	w, err := zw.Create(filepath.Base(src))
	if err != nil {
		zw.Close()
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

func tarFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	tw := tar.NewWriter(out)
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		tw.Close()
		return err
	}
	hdr.Name = filepath.Base(src)
	if err := tw.WriteHeader(hdr); err != nil {
		tw.Close()
		return err
	}
	if _, err := io.Copy(tw, in); err != nil {
		tw.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return out.Close()
}
