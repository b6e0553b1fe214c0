package ingest_test

import (
	"testing"

	"github.com/sensornet/registry/internal/ingest"
	"github.com/stretchr/testify/assert"
)

func TestSensorIDFromTopic(t *testing.T) {
	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"sensors/s1/reading", "s1", true},
		{"building-a/sensors/s1/reading", "s1", true},
		{"sensors//reading", "", false},
		{"sensors/s1/status", "", false},
		{"reading", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		id, ok := ingest.SensorIDFromTopic(tt.topic)
		assert.Equal(t, tt.wantOK, ok, "topic %q", tt.topic)
		assert.Equal(t, tt.wantID, id, "topic %q", tt.topic)
	}
}
