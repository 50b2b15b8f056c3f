package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"nexacrm/api/internal/store"
	"nexacrm/api/internal/util"
)

const (
	MaxUploadFiles    = 10
	MaxUploadFileSize = 50 << 20
)

var allowedExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".zip": true, ".txt": true, ".csv": true,
}

// Upload is one file of a multipart upload.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

func allowedExtension(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

func (s *Service) ListFiles(ctx context.Context, userID, leadID, search string) ([]store.File, error) {
	return s.store.ListFiles(ctx, store.FileFilter{
		UserID: userID,
		LeadID: strings.TrimSpace(leadID),
		Search: strings.TrimSpace(search),
	})
}

// UploadFiles validates every file before storing any of them, then writes
// each blob under a random name and records its metadata row.
func (s *Service) UploadFiles(ctx context.Context, userID string, leadID *string, uploads []Upload) ([]store.File, error) {
	if len(uploads) == 0 {
		return nil, validationError("No files uploaded")
	}
	if len(uploads) > MaxUploadFiles {
		return nil, validationError(fmt.Sprintf("At most %d files per upload", MaxUploadFiles))
	}
	for _, upload := range uploads {
		if !allowedExtension(upload.Name) {
			return nil, validationError(fmt.Sprintf("Unsupported file type: %s", upload.Name))
		}
		if upload.Size > MaxUploadFileSize {
			return nil, validationError(fmt.Sprintf("File too large: %s (max 50 MB)", upload.Name))
		}
	}
	leadID = blankToNil(leadID)
	if err := s.checkLeadLink(ctx, userID, leadID); err != nil {
		return nil, err
	}

	saved := make([]store.File, 0, len(uploads))
	for _, upload := range uploads {
		file, err := s.storeUpload(ctx, userID, leadID, upload)
		if err != nil {
			return saved, err
		}
		saved = append(saved, file)
	}
	return saved, nil
}

func (s *Service) storeUpload(ctx context.Context, userID string, leadID *string, upload Upload) (store.File, error) {
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	storedName := util.StoredFileName(upload.Name)

	body, err := upload.Open()
	if err != nil {
		return store.File{}, fmt.Errorf("open upload %s: %w", upload.Name, err)
	}
	defer body.Close()
	if err := s.blobs.Put(ctx, storedName, body, upload.Size, contentType); err != nil {
		return store.File{}, fmt.Errorf("store upload %s: %w", upload.Name, err)
	}

	file, err := s.store.InsertFile(ctx, store.File{
		ID:           util.NewID(),
		UserID:       userID,
		LeadID:       leadID,
		OriginalName: filepath.Base(upload.Name),
		StoredName:   storedName,
		MimeType:     contentType,
		Size:         upload.Size,
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, storedName); delErr != nil {
			s.log.Warn().Err(delErr).Str("stored_name", storedName).Msg("orphaned upload not removed")
		}
		return store.File{}, err
	}
	return file, nil
}

func (s *Service) RelinkFile(ctx context.Context, userID, fileID string, leadID *string) (store.File, error) {
	leadID = blankToNil(leadID)
	if err := s.checkLeadLink(ctx, userID, leadID); err != nil {
		return store.File{}, err
	}
	file, err := s.store.SetFileLead(ctx, userID, fileID, leadID)
	if isNotFound(err) {
		return store.File{}, notFoundError("File not found")
	}
	return file, err
}

// DeleteFile removes the row and its blob. A blob that is already gone does
// not block the delete.
func (s *Service) DeleteFile(ctx context.Context, userID, fileID string) error {
	file, err := s.store.GetFile(ctx, userID, fileID)
	if isNotFound(err) {
		return notFoundError("File not found")
	}
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, file.StoredName); err != nil {
		s.log.Warn().Err(err).Str("file_id", fileID).Msg("blob delete failed")
	}
	err = s.store.DeleteFile(ctx, userID, fileID)
	if isNotFound(err) {
		return notFoundError("File not found")
	}
	return err
}

// OpenFile returns the metadata and content of an owned file. The caller
// closes the reader.
func (s *Service) OpenFile(ctx context.Context, userID, fileID string) (store.File, io.ReadCloser, error) {
	file, err := s.store.GetFile(ctx, userID, fileID)
	if isNotFound(err) {
		return store.File{}, nil, notFoundError("File not found")
	}
	if err != nil {
		return store.File{}, nil, err
	}
	body, err := s.blobs.Open(ctx, file.StoredName)
	if err != nil {
		return store.File{}, nil, err
	}
	return file, body, nil
}
