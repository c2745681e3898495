package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/onkyod/internal/infrastructure/config"
)

func lineProtocol(p *write.Point) string {
	return write.PointToLineProtocol(p, time.Second)
}

func TestStatusPoint(t *testing.T) {
	at := time.Unix(1700000000, 0)

	tests := []struct {
		name    string
		value   string
		want    []string
		without string
	}{
		{
			name:  "numeric",
			value: "40",
			want:  []string{"receiver_status,key=volume,receiver=living ", `raw="40"`, "value=40", "ok=true", " 1700000000"},
		},
		{
			name:  "decibels",
			value: "-32.5",
			want:  []string{`raw="-32.5"`, "value=-32.5"},
		},
		{
			name:    "text",
			value:   "DVD",
			want:    []string{`raw="DVD"`},
			without: "value=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := lineProtocol(statusPoint("living", "volume", tt.value, true, at))
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("line %q missing %q", line, w)
				}
			}
			if tt.without != "" && strings.Contains(line, tt.without) {
				t.Errorf("line %q should not contain %q", line, tt.without)
			}
		})
	}
}

func TestCountersPoint(t *testing.T) {
	line := lineProtocol(countersPoint("den", Counters{Sent: 5, Received: 4, Discarded: 1}, time.Unix(10, 0)))

	for _, w := range []string{"receiver_counters,receiver=den ", "sent=5u", "received=4u", "discarded=1u", "write_errors=0u"} {
		if !strings.Contains(line, w) {
			t.Errorf("line %q missing %q", line, w)
		}
	}
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.InfluxDBConfig
		wantBatch   uint
		wantFlushMS uint
	}{
		{"configured", config.InfluxDBConfig{BatchSize: 500, FlushInterval: 2}, 500, 2000},
		{"defaults", config.InfluxDBConfig{}, defaultBatchSize, defaultFlushInterval * 1000},
		{"negative", config.InfluxDBConfig{BatchSize: -1, FlushInterval: -5}, defaultBatchSize, defaultFlushInterval * 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := clientOptions(tt.cfg)
			if got := opts.BatchSize(); got != tt.wantBatch {
				t.Errorf("BatchSize() = %d, want %d", got, tt.wantBatch)
			}
			if got := opts.FlushInterval(); got != tt.wantFlushMS {
				t.Errorf("FlushInterval() = %d, want %d", got, tt.wantFlushMS)
			}
			if got := opts.Precision(); got != time.Millisecond {
				t.Errorf("Precision() = %v, want 1ms", got)
			}
			if got := opts.WriteOptions().DefaultTags()["service"]; got != serviceTag {
				t.Errorf("service tag = %q, want %q", got, serviceTag)
			}
		})
	}
}
