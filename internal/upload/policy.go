// Package upload validates image uploads, re-encodes them to compressed
// JPEG and keeps the accepted files in an ordered pending set whose preview
// resources are released exactly once.
package upload

import (
	"io"
	"mime/multipart"
)

const (
	DefaultMaxBytes int64 = 10 << 20
	DefaultQuality        = 85
	// DefaultMaxPixels bounds decoded dimensions; compressed size says
	// little about the memory a decode needs.
	DefaultMaxPixels int64 = 40_000_000
	// MaxCompletionFiles bounds the completion form's attachments.
	MaxCompletionFiles = 3
)

type Policy struct {
	MaxBytes  int64
	MaxPixels int64
	Quality   int
}

func DefaultPolicy() Policy {
	return Policy{MaxBytes: DefaultMaxBytes, MaxPixels: DefaultMaxPixels, Quality: DefaultQuality}
}

func (p Policy) normalized() Policy {
	if p.MaxBytes <= 0 {
		p.MaxBytes = DefaultMaxBytes
	}
	if p.MaxPixels <= 0 {
		p.MaxPixels = DefaultMaxPixels
	}
	if p.Quality <= 0 || p.Quality > 100 {
		p.Quality = DefaultQuality
	}
	return p
}

// File is a handle to an incoming file; Open may be called once per processing pass.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

func FromMultipart(header *multipart.FileHeader) File {
	return File{
		Name: header.Filename,
		Size: header.Size,
		Open: func() (io.ReadCloser, error) { return header.Open() },
	}
}

type Reason string

const (
	ReasonType       Reason = "unsupported_type"
	ReasonSize       Reason = "too_large"
	ReasonConversion Reason = "conversion_failed"
	ReasonRead       Reason = "unreadable"
)

// Rejection explains why a single file was left out of the accepted set.
type Rejection struct {
	Name    string `json:"name"`
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}
