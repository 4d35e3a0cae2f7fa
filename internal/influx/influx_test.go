package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livepid/tracker/pkg/core"
)

func setUnreachable(t *testing.T) {
	t.Helper()
	viper.Set("influx.enabled", true)
	viper.Set("influx.protocol", "http")
	viper.Set("influx.host", "127.0.0.1")
	viper.Set("influx.port", "1")
	t.Cleanup(viper.Reset)
}

func readBackup(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	return string(data)
}

func TestConnect_Disabled(t *testing.T) {
	viper.Set("influx.enabled", false)
	t.Cleanup(viper.Reset)

	m := NewManager(zerolog.Nop(), "")
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
}

func TestServerURL(t *testing.T) {
	setUnreachable(t)
	assert.Equal(t, "http://127.0.0.1:1", ServerURL())
}

func TestConnect_FallsBackToBackup(t *testing.T) {
	setUnreachable(t)
	path := filepath.Join(t.TempDir(), "influx.lp.gz")

	m := NewManager(zerolog.Nop(), path)
	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.IsValid)

	at := time.Unix(1704067200, 0)
	require.NoError(t, m.WriteResolution(core.Resolution{
		Time: at, VictimName: "Zezima", Bucket: core.BucketMelee,
		Distance: 1, RawDelay: 1, Delay: 1, ExpectedDelay: 1, Outcome: core.OutcomeOnPid,
	}))
	require.NoError(t, m.WritePoint(BucketPerformance, StatusPoint(core.StatusOnPid, 50, true, false, at)))
	require.NoError(t, m.Close())

	content := readBackup(t, path)
	assert.Contains(t, content, "pid_resolution,bucket=MELEE,outcome=ON_PID,victim=Zezima delay=1i,distance=1i,expected=1i,raw_delay=1i 1704067200000000000\n")
	assert.Contains(t, content, "pid_status,status=ON_PID pending_attack=true,pending_hitsplat=false,tick=50i,value=1i 1704067200000000000\n")
}

func TestConnect_BackupPathRequired(t *testing.T) {
	setUnreachable(t)

	m := NewManager(zerolog.Nop(), "")
	assert.Error(t, m.Connect(context.Background()))
}

func TestWritePoint_NotInitialized(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	err := m.WritePoint(BucketResolutions, influxdb2_write.NewPointWithMeasurement("x"))
	assert.Error(t, err)
	assert.NoError(t, m.Close())
}

func TestResolutionPoint(t *testing.T) {
	p := ResolutionPoint(core.Resolution{
		VictimName: "Lynx Titan", Bucket: core.BucketMagic, Outcome: core.OutcomeOffPid, Delay: 3,
	})

	assert.Equal(t, MeasurementResolution, p.Name())
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"bucket": "MAGIC", "outcome": "OFF_PID", "victim": "Lynx Titan"}, tags)
}
