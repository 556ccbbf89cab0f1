package types

import (
	"io"
	"os"
	"path/filepath"
)

type File struct {
	Content io.ReadCloser
	Stat    FileStat
}

type FileStat struct {
	Size        int64
	Name        string
	Mode        os.FileMode
	ContentType string
}

func (f File) GetContentType() string {
	if f.Stat.ContentType == "" {
		return "application/octet-stream"
	}
	return f.Stat.ContentType
}

// OpenFile opens a local file for reading; the caller closes Content
func OpenFile(path string) (*File, error) {
	fi, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	stat, err := fi.Stat()
	if err != nil {
		_ = fi.Close()
		return nil, err
	}

	return &File{
		Content: fi,
		Stat: FileStat{
			Size:        stat.Size(),
			Name:        filepath.Base(path),
			Mode:        stat.Mode(),
			ContentType: "application/sql",
		},
	}, nil
}
