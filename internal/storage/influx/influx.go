// Package influxstorage writes group timing as InfluxDB points, one per
// group notification plus one per member animation. When the server is
// unreachable points are written as gzipped line protocol to a backup file.
package influxstorage

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/OCAP2/animscope/internal/config"
	"github.com/OCAP2/animscope/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Measurement names.
const (
	MeasurementSession     = "session"
	MeasurementGroup       = "animation_group"
	MeasurementAnimation   = "animation"
	MeasurementScreenshots = "screenshots"
	MeasurementReset       = "page_reset"
)

const (
	pingTimeout     = 5 * time.Second
	retentionPeriod = 60 * 60 * 24 * 90 // 90 days
)

// Backend implements storage.Backend on InfluxDB.
type Backend struct {
	cfg        config.InfluxConfig
	backupPath string
	log        zerolog.Logger

	client influxdb2.Client
	writer influxdb2_api.WriteAPI
	valid  bool

	mu         sync.Mutex
	backupFile *os.File
	backup     *gzip.Writer
}

// New creates a new InfluxDB backend. Nothing is dialed until Init.
func New(cfg config.InfluxConfig, backupPath string, log zerolog.Logger) *Backend {
	return &Backend{cfg: cfg, backupPath: backupPath, log: log}
}

// ServerURL builds the client URL from the config.
func ServerURL(cfg config.InfluxConfig) string {
	return fmt.Sprintf("%s://%s:%s", cfg.Protocol, cfg.Host, cfg.Port)
}

// Init connects to InfluxDB, falling back to the backup file.
func (b *Backend) Init() error {
	b.client = influxdb2.NewClientWithOptions(
		ServerURL(b.cfg),
		b.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	// validate client connection health
	running, err := b.client.Ping(ctx)
	if err != nil || !running {
		b.log.Warn().Err(err).Str("backupPath", b.backupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		return b.openBackup()
	}

	if err := b.setupOrganizationAndBucket(); err != nil {
		return err
	}

	b.writer = b.client.WriteAPI(b.cfg.Org, b.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			b.log.Error().Err(writeErr).Str("bucket", b.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(b.writer.Errors())

	b.valid = true
	b.log.Info().Str("url", ServerURL(b.cfg)).Msg("InfluxDB client initialized")
	return nil
}

func (b *Backend) openBackup() error {
	if b.backupPath == "" {
		return fmt.Errorf("influxDB unreachable and no backup path configured")
	}
	file, err := os.OpenFile(b.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	b.backupFile = file
	b.backup = gzip.NewWriter(file)
	return nil
}

func (b *Backend) setupOrganizationAndBucket() error {
	ctx := context.Background()

	// ensure org exists
	org, err := b.client.OrganizationsAPI().FindOrganizationByName(ctx, b.cfg.Org)
	if err != nil {
		b.log.Info().Str("org", b.cfg.Org).Msg("Organization not found, creating")
		org, err = b.client.OrganizationsAPI().CreateOrganizationWithName(ctx, b.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %s: %w", b.cfg.Org, err)
		}
	}

	if _, err = b.client.BucketsAPI().FindBucketByName(ctx, b.cfg.Bucket); err != nil {
		b.log.Info().Str("bucket", b.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = b.client.BucketsAPI().CreateBucketWithName(ctx, org, b.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionPeriod,
		})
		if err != nil {
			return fmt.Errorf("error creating bucket %s: %w", b.cfg.Bucket, err)
		}
	}
	return nil
}

// Close flushes pending points and closes the client or backup file.
func (b *Backend) Close() error {
	if b.writer != nil {
		b.writer.Flush()
	}
	if b.client != nil {
		b.client.Close()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.backup == nil {
		return nil
	}
	if err := b.backup.Close(); err != nil {
		return err
	}
	b.backup = nil
	return b.backupFile.Close()
}

func (b *Backend) StartSession(s *core.Session) error {
	return b.writePoints(sessionPoint(s, "start", s.StartedAt))
}

func (b *Backend) EndSession(s *core.Session) error {
	at := time.Now()
	if s.EndedAt != nil {
		at = *s.EndedAt
	}
	if err := b.writePoints(sessionPoint(s, "end", at)); err != nil {
		return err
	}
	if b.writer != nil {
		b.writer.Flush()
	}
	return nil
}

func (b *Backend) RecordGroup(g *core.GroupRecord) error {
	return b.writePoints(groupPoints(g)...)
}

func (b *Backend) RecordScreenshots(batch *core.ScreenshotBatch) error {
	return b.writePoints(screenshotPoint(batch))
}

func (b *Backend) RecordReset(r *core.ResetRecord) error {
	return b.writePoints(resetPoint(r))
}

// writePoints sends points to InfluxDB or the backup file.
func (b *Backend) writePoints(points ...*influxdb2_write.Point) error {
	if b.valid {
		for _, p := range points {
			b.writer.WritePoint(p)
		}
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.backup == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	for _, p := range points {
		line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
		if _, err := b.backup.Write([]byte(line)); err != nil {
			return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
		}
	}
	return nil
}

func sessionPoint(s *core.Session, event string, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementSession,
		map[string]string{"session_id": s.ID, "event": event},
		map[string]interface{}{"target_url": s.TargetURL},
		at,
	)
}

func groupPoints(g *core.GroupRecord) []*influxdb2_write.Point {
	infinite := 0
	for _, a := range g.Animations {
		if a.Infinite {
			infinite++
		}
	}

	points := make([]*influxdb2_write.Point, 0, len(g.Animations)+1)
	points = append(points, influxdb2_write.NewPoint(
		MeasurementGroup,
		map[string]string{
			"session_id": g.SessionID,
			"group_id":   g.GroupID,
			"merged":     strconv.FormatBool(g.Merged),
		},
		map[string]interface{}{
			"start_time":      g.StartTime,
			"finite_duration": g.FiniteDuration,
			"animations":      len(g.Animations),
			"infinite":        infinite,
			"paused":          g.Paused,
		},
		g.RecordedAt,
	))

	for _, a := range g.Animations {
		points = append(points, influxdb2_write.NewPoint(
			MeasurementAnimation,
			map[string]string{
				"session_id":   g.SessionID,
				"group_id":     g.GroupID,
				"animation_id": a.ID,
				"type":         a.Type,
			},
			map[string]interface{}{
				"name":            a.Name,
				"delay":           a.Delay,
				"end_delay":       a.EndDelay,
				"duration":        a.Duration,
				"iterations":      a.Iterations,
				"finite_duration": a.FiniteDuration,
				"playback_rate":   a.PlaybackRate,
			},
			g.RecordedAt,
		))
	}
	return points
}

func screenshotPoint(batch *core.ScreenshotBatch) *influxdb2_write.Point {
	size := 0
	for _, f := range batch.Frames {
		size += len(f)
	}
	return influxdb2_write.NewPoint(
		MeasurementScreenshots,
		map[string]string{"session_id": batch.SessionID, "group_id": batch.GroupID},
		map[string]interface{}{"frames": len(batch.Frames), "bytes": size},
		batch.CapturedAt,
	)
}

func resetPoint(r *core.ResetRecord) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementReset,
		map[string]string{"session_id": r.SessionID, "reason": r.Reason},
		map[string]interface{}{"count": 1},
		r.At,
	)
}
