package util

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

func NewID() string {
	return uuid.NewString()
}

// StoredFileName returns a random file name that keeps the lower-cased
// extension of the original upload.
func StoredFileName(original string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(original))
}

func IsID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}
