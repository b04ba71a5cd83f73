package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/kacper-wojtaszczyk/eventalbum/internal/ingestion"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/model"
)

// localFile describes a file on disk. The content type is sniffed from the
// leading bytes, so a renamed text file is still rejected as a non-image.
func localFile(fsys afero.Fs, name string) (ingestion.LocalFile, error) {
	base := filepath.Base(name)
	info, err := fsys.Stat(name)
	if err != nil {
		return ingestion.LocalFile{}, &model.ValidationError{Filename: base, Reason: "cannot be read"}
	}
	if info.IsDir() {
		return ingestion.LocalFile{}, &model.ValidationError{Filename: base, Reason: "is a directory"}
	}

	f, err := fsys.Open(name)
	if err != nil {
		return ingestion.LocalFile{}, &model.ValidationError{Filename: base, Reason: "cannot be read"}
	}
	mtype, err := mimetype.DetectReader(f)
	f.Close()
	if err != nil {
		return ingestion.LocalFile{}, fmt.Errorf("detect content type of %s: %w", name, err)
	}

	return ingestion.LocalFile{
		Name:        base,
		ContentType: mtype.String(),
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return fsys.Open(name)
		},
	}, nil
}

func localFiles(fsys afero.Fs, names []string) ([]ingestion.LocalFile, error) {
	files := make([]ingestion.LocalFile, 0, len(names))
	for _, name := range names {
		// the upload guard drops selfies unread, so they need not exist
		if base := filepath.Base(name); ingestion.IsSelfieName(base) {
			files = append(files, ingestion.LocalFile{Name: base})
			continue
		}
		f, err := localFile(fsys, name)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
