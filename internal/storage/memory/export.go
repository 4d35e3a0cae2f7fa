package memory

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	v1 "github.com/livepid/tracker/internal/storage/memory/export/v1"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var fileNameReplacer = strings.NewReplacer(" ", "_", ":", "_", "/", "_", `\`, "_")

// exportJSON writes the session data to a JSON file, gzipped when configured.
// Callers hold b.mu.
func (b *Backend) exportJSON() error {
	export := v1.Build(&v1.SessionData{
		Session:       b.session,
		EndTime:       time.Now(),
		FinalStatus:   b.status,
		Resolutions:   b.resolutions.GetAndEmpty(),
		StatusChanges: b.statusChanges.GetAndEmpty(),
	})

	name := fileNameReplacer.Replace(b.session.Name)
	if name == "" {
		name = "session"
	}
	timestamp := b.session.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", name, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func writeJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return encode(f, data)
}

func writeGzipJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := encode(gzWriter, data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

func encode(w io.Writer, data v1.Export) error {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}
