// Package output writes the collected server records as JSON.
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/twinfo/internal/config"
)

// Stdout is the file name that redirects output to standard output.
const Stdout = "-"

// Encode marshals doc as JSON. Indent is the number of spaces per level, 0 gives compact output.
func Encode(doc any, indent int) ([]byte, error) {
	var (
		data []byte
		err  error
	)

	if indent > 0 {
		data, err = json.MarshalIndent(doc, "", strings.Repeat(" ", indent))
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}

// Save encodes doc and writes it to the configured file, or to stdout when the file is "-".
// It reports whether anything was written.
func Save(doc any, options config.Output, stdout io.Writer) (bool, error) {
	data, err := Encode(doc, options.Indent)
	if err != nil {
		return false, fmt.Errorf("failed to encode servers info: %w", err)
	}

	if options.File == Stdout {
		if _, err := stdout.Write(data); err != nil {
			return false, err
		}
		return true, nil
	}

	return WriteFile(Path(options), data)
}

// Path joins the output directory and file name.
func Path(options config.Output) string {
	return filepath.Join(options.Path, options.File)
}

// WriteFile replaces path with data using a uniquely named temporary file and rename, creating parent
// directories as needed. The file is left untouched when its content already matches data.
func WriteFile(path string, data []byte) (bool, error) {
	if unchanged(path, data) {
		log.Debug().Str("path", path).Msg("Servers info unchanged, skipping write")
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}

	out, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return false, err
	}
	tmpPath := out.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := io.Copy(out, bytes.NewReader(data)); err != nil {
		_ = out.Close()
		return false, err
	}

	if err := out.Chmod(0o644); err != nil {
		_ = out.Close()
		return false, err
	}

	if err := out.Close(); err != nil {
		return false, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return false, err
	}

	return true, nil
}

func unchanged(path string, data []byte) bool {
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Debug().Err(err).Str("path", path).Msg("Cannot read previous servers info")
		}
		return false
	}
	defer func() { _ = f.Close() }()

	digest := xxhash.New()
	n, err := io.Copy(digest, f)
	if err != nil || n != int64(len(data)) {
		return false
	}

	return digest.Sum64() == xxhash.Sum64(data)
}
