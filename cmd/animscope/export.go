package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OCAP2/animscope/internal/config"
	"github.com/OCAP2/animscope/internal/database"
	"github.com/OCAP2/animscope/internal/model"
	"github.com/OCAP2/animscope/internal/model/convert"
	"github.com/OCAP2/animscope/internal/storage/memory"

	"gorm.io/gorm"
)

// runExport rebuilds the JSON recording of a session stored in a sqlite dump
// or in postgres.
//
//	animscope export [-config dir] [-out dir] [-gzip] <file.db|postgres> [session-id]
func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	configDir := fs.String("config", ".", "directory containing "+config.FileName)
	outDir := fs.String("out", ".", "output directory")
	compress := fs.Bool("gzip", false, "gzip the output")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: animscope export [-config dir] [-out dir] [-gzip] <file.db|postgres> [session-id]")
		return 2
	}

	if err := config.Load(*configDir); err != nil && fs.Arg(0) == "postgres" {
		fmt.Fprintf(os.Stderr, "Failed to load config, using defaults: %v\n", err)
	}

	log := zerologger("export")
	m := database.NewManager(log)
	var err error
	if fs.Arg(0) == "postgres" {
		err = m.ConnectPostgres(config.GetDBConfig())
	} else {
		err = m.ConnectSQLite(fs.Arg(0), "")
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database")
		return 1
	}
	defer m.Close()

	rec, err := loadRecording(m.DB, fs.Arg(1))
	if err != nil {
		log.Error().Err(err).Msg("Failed to load recording")
		return 1
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Error().Err(err).Msg("Failed to create output directory")
		return 1
	}
	path := filepath.Join(*outDir, memory.ExportFileName(rec.Session, *compress))
	if err := memory.WriteRecording(path, rec, *compress); err != nil {
		log.Error().Err(err).Msg("Failed to write recording")
		return 1
	}
	log.Info().
		Str("path", path).
		Int("groups", len(rec.Groups)).
		Int("screenshots", len(rec.Screenshots)).
		Msg("Exported recording")
	return 0
}

// loadRecording reads one session back into the export layout. An empty
// sessionID selects the most recent session.
func loadRecording(db *gorm.DB, sessionID string) (memory.Recording, error) {
	rec := memory.Recording{Version: memory.RecordingVersion}

	var s model.Session
	q := db.Model(&model.Session{})
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	} else {
		q = q.Order("started_at DESC")
	}
	if err := q.First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rec, fmt.Errorf("session %q not found", sessionID)
		}
		return rec, fmt.Errorf("error getting session: %w", err)
	}
	rec.Session = convert.SessionToCore(s)

	var groups []model.AnimationGroup
	err := db.Preload("Animations", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).
		Where("session_id = ?", s.SessionID).
		Order("id ASC").
		Find(&groups).Error
	if err != nil {
		return rec, fmt.Errorf("error getting groups: %w", err)
	}
	for _, g := range groups {
		rec.Groups = append(rec.Groups, convert.GroupToCore(g))
	}

	var shots []model.Screenshot
	err = db.Where("session_id = ?", s.SessionID).Order("id ASC").Find(&shots).Error
	if err != nil {
		return rec, fmt.Errorf("error getting screenshots: %w", err)
	}
	for _, batch := range splitBatches(shots) {
		rec.Screenshots = append(rec.Screenshots, convert.ScreenshotsToCore(batch))
	}

	var resets []model.PageReset
	err = db.Where("session_id = ?", s.SessionID).Order("id ASC").Find(&resets).Error
	if err != nil {
		return rec, fmt.Errorf("error getting resets: %w", err)
	}
	for _, r := range resets {
		rec.Resets = append(rec.Resets, convert.ResetToCore(r))
	}

	return rec, nil
}

// splitBatches cuts insertion-ordered frame rows back into the batches they
// were written as. A batch restarts its sequence at zero.
func splitBatches(rows []model.Screenshot) [][]model.Screenshot {
	var out [][]model.Screenshot
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i == len(rows) || rows[i].Seq == 0 || rows[i].GroupID != rows[start].GroupID {
			if i > start {
				out = append(out, rows[start:i])
			}
			start = i
		}
	}
	return out
}
