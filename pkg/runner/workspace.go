package runner

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// extractZip extracts ZIP data into destDir. GitHub zipballs wrap the
// tree in a single "owner-repo-sha/" directory; when that is the case
// the returned Dir points inside it so callers land at the source root.
func extractZip(zipData []byte, destDir string) (*model.CheckoutResult, error) {
	if err := os.MkdirAll(destDir, 0700); err != nil {
		return nil, goerr.Wrap(err, "failed to create extraction directory", goerr.V("dir", destDir))
	}

	zipReader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create zip reader")
	}

	var extractedFiles []string
	var totalSize int64

	for _, file := range zipReader.File {
		if err := extractFile(file, destDir); err != nil {
			return nil, goerr.Wrap(err, "failed to extract file", goerr.V("file", file.Name))
		}

		extractedFiles = append(extractedFiles, file.Name)
		totalSize += int64(file.UncompressedSize64)
	}

	return &model.CheckoutResult{
		Dir:   sourceRoot(destDir, zipReader.File),
		Files: extractedFiles,
		Size:  totalSize,
	}, nil
}

// extractFile extracts a single file from ZIP to the destination directory
func extractFile(file *zip.File, destDir string) error {
	// Security check: prevent path traversal attacks
	destPath := filepath.Join(destDir, file.Name)
	if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return goerr.New("invalid file path detected",
			goerr.V("file", file.Name), goerr.V("dest", destPath))
	}

	rc, err := file.Open()
	if err != nil {
		return goerr.Wrap(err, "failed to open file in zip")
	}
	defer rc.Close()

	if file.FileInfo().IsDir() {
		return os.MkdirAll(destPath, file.FileInfo().Mode())
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return goerr.Wrap(err, "failed to create parent directories", goerr.V("dir", filepath.Dir(destPath)))
	}

	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, file.FileInfo().Mode())
	if err != nil {
		return goerr.Wrap(err, "failed to create destination file", goerr.V("path", destPath))
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, rc); err != nil {
		return goerr.Wrap(err, "failed to copy file content", goerr.V("path", destPath))
	}

	return nil
}

// sourceRoot returns destDir, or the single top-level directory inside
// it when every zip entry shares one
func sourceRoot(destDir string, files []*zip.File) string {
	top := ""
	for _, f := range files {
		name := f.Name
		idx := strings.IndexByte(name, '/')
		if idx < 0 {
			return destDir
		}
		if top == "" {
			top = name[:idx]
			continue
		}
		if name[:idx] != top {
			return destDir
		}
	}
	if top == "" {
		return destDir
	}
	return filepath.Join(destDir, top)
}
