// Package archive packs task outputs into a single downloadable zip.
package archive

import (
	"archive/zip"
	"compress/flate"
	"io"
	"os"
	"path/filepath"

	"farmhand/internal/pkg/errors"
)

// Zip packs inputs into a compressed archive at outPath. Each input is
// stored under its base filename, flattening any directory structure.
//
// An empty input set is the distinct NO_INPUTS failure so the caller
// can tell "nothing was rendered" apart from a broken archive
// subsystem; no file is created in that case. Any IO failure while
// creating or populating the archive is an ARCHIVE_WRITE error
// preserving the underlying cause.
func Zip(inputs []string, outPath string) error {
	if len(inputs) == 0 {
		return errors.NoInputs("no input files to archive").
			WithField("archive", outPath)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return errors.ArchiveWrite(err, "failed to create archive file").
			WithField("archive", outPath)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})

	for _, input := range inputs {
		if err := addEntry(zw, input); err != nil {
			zw.Close()
			return errors.ArchiveWrite(err, "failed to add archive entry").
				WithField("archive", outPath).
				WithField("input", input)
		}
	}

	if err := zw.Close(); err != nil {
		return errors.ArchiveWrite(err, "failed to finalize archive").
			WithField("archive", outPath)
	}
	if err := out.Close(); err != nil {
		return errors.ArchiveWrite(err, "failed to flush archive file").
			WithField("archive", outPath)
	}
	return nil
}

func addEntry(zw *zip.Writer, input string) error {
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(filepath.Base(input))
	if err != nil {
		return err
	}

	_, err = io.Copy(w, f)
	return err
}
