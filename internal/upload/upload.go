// Package upload accepts optional trip photos: it turns the client's file
// name into a safe, unique storage name and hands the bytes to a FileStore.
//
// No type, size or content checks are made; any payload is stored as-is.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"

	"github.com/rs/xid"
)

const defaultContentType = "application/octet-stream"

// Uploader stores optional uploaded images.
type Uploader struct {
	store  FileStore
	logger *slog.Logger
	newID  func() string
}

func NewUploader(store FileStore, logger *slog.Logger) *Uploader {
	return &Uploader{
		store:  store,
		logger: logger,
		newID:  func() string { return xid.New().String() },
	}
}

// Save stores fh and returns the name it was stored under. It returns
// (nil, nil) without any I/O when no file was supplied or the file has an
// empty name.
func (u *Uploader) Save(ctx context.Context, fh *multipart.FileHeader) (*string, error) {
	if fh == nil || fh.Filename == "" {
		return nil, nil
	}

	name := u.StorageName(fh.Filename)

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("upload: opening %q: %w", fh.Filename, err)
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	if err := u.store.Put(ctx, name, f, fh.Size, contentType); err != nil {
		return nil, err
	}

	u.logger.Info("image stored",
		slog.String("client_name", fh.Filename),
		slog.String("name", name),
		slog.Int64("bytes", fh.Size),
	)
	return &name, nil
}

// Discard removes a previously saved image. It is best effort: failures are
// logged, not returned.
func (u *Uploader) Discard(ctx context.Context, name string) {
	if err := u.store.Delete(ctx, name); err != nil {
		u.logger.Error("discarding image failed",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return
	}
	u.logger.Info("image discarded", slog.String("name", name))
}

// StorageName prefixes the sanitized client name with a fresh xid, so two
// uploads called "photo.jpg" never overwrite each other.
func (u *Uploader) StorageName(clientName string) string {
	id := u.newID()
	if safe := SecureFilename(clientName); safe != "" {
		return id + "_" + safe
	}
	return id
}
