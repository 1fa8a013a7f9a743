package storage_test

import (
	"testing"

	"github.com/OCAP2/animscope/internal/storage"
	gormstorage "github.com/OCAP2/animscope/internal/storage/gorm"
	influxstorage "github.com/OCAP2/animscope/internal/storage/influx"
	"github.com/OCAP2/animscope/internal/storage/memory"
	mqttstorage "github.com/OCAP2/animscope/internal/storage/mqtt"
	pgstorage "github.com/OCAP2/animscope/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/animscope/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/animscope/internal/storage/websocket"
	"github.com/stretchr/testify/assert"
)

func TestBackendsImplementInterface(t *testing.T) {
	backends := map[string]storage.Backend{
		"memory":    (*memory.Backend)(nil),
		"gorm":      (*gormstorage.Backend)(nil),
		"postgres":  (*pgstorage.Backend)(nil),
		"sqlite":    (*sqlitestorage.Backend)(nil),
		"websocket": (*wsstorage.Backend)(nil),
		"influx":    (*influxstorage.Backend)(nil),
		"mqtt":      (*mqttstorage.Backend)(nil),
	}
	assert.Len(t, backends, 7)
}

func TestExporters(t *testing.T) {
	var b storage.Backend = (*memory.Backend)(nil)
	_, ok := b.(storage.Exporter)
	assert.True(t, ok, "memory backend exports a file")

	b = (*wsstorage.Backend)(nil)
	_, ok = b.(storage.Exporter)
	assert.False(t, ok)
}
