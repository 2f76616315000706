package storage

import "io"

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Storage is read/write access to a directory of named assets (story
// texts, audio narrations, archived captures).
type Storage interface {
	SaveFile(r io.Reader, info FileInfo) (string, error)
	OpenFile(path string) (io.ReadSeekCloser, error)
	ReadFile(path string) ([]byte, error)
	Exists(path string) bool
	DeleteFile(path string) error
}
