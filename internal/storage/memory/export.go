package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/OCAP2/animscope/pkg/core"
)

// RecordingVersion is bumped whenever the export layout changes.
const RecordingVersion = 1

// Recording is the root JSON structure of an exported session
type Recording struct {
	Version     int                    `json:"version"`
	Session     core.Session           `json:"session"`
	Groups      []core.GroupRecord     `json:"groups"`
	Screenshots []core.ScreenshotBatch `json:"screenshots"`
	Resets      []core.ResetRecord     `json:"resets"`
}

// exportJSON writes the session data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	rec := b.buildRecording()

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, ExportFileName(rec.Session, b.cfg.CompressOutput))
	if err := WriteRecording(outputPath, rec, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildRecording() Recording {
	rec := Recording{
		Version:     RecordingVersion,
		Groups:      make([]core.GroupRecord, len(b.groups)),
		Screenshots: make([]core.ScreenshotBatch, len(b.screenshots)),
		Resets:      make([]core.ResetRecord, len(b.resets)),
	}
	if b.session != nil {
		rec.Session = *b.session
	}
	copy(rec.Groups, b.groups)
	copy(rec.Screenshots, b.screenshots)
	copy(rec.Resets, b.resets)
	return rec
}

// ExportFileName builds "<host>_<start>_<id>.json[.gz]" for a session.
func ExportFileName(s core.Session, compress bool) string {
	host := "session"
	if u, err := url.Parse(s.TargetURL); err == nil && u.Host != "" {
		host = strings.NewReplacer(":", "_", ".", "-").Replace(u.Host)
	}
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}

	name := fmt.Sprintf("%s_%s_%s.json", host, s.StartedAt.Format("20060102_150405"), id)
	if compress {
		name += ".gz"
	}
	return name
}

// WriteRecording encodes rec to path.
func WriteRecording(path string, rec Recording, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	if compress {
		gzWriter := gzip.NewWriter(f)
		defer gzWriter.Close()
		w = gzWriter
	}

	if err := json.NewEncoder(w).Encode(rec); err != nil {
		return fmt.Errorf("failed to encode recording: %w", err)
	}
	return nil
}

// ReadRecording decodes a file written by WriteRecording. Files ending in
// .gz are decompressed.
func ReadRecording(path string) (Recording, error) {
	var rec Recording

	f, err := os.Open(path)
	if err != nil {
		return rec, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return rec, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return rec, fmt.Errorf("failed to decode recording: %w", err)
	}
	return rec, nil
}
