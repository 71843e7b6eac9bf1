package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"

	"secgate/internal/domain"
)

// recordingLogger captura as chamadas de log para inspeção
type recordingLogger struct {
	mutex sync.Mutex
	warns []map[string]interface{}
	infos []map[string]interface{}
}

func (l *recordingLogger) Debug(msg string, fields map[string]interface{}) {}

func (l *recordingLogger) Info(msg string, fields map[string]interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.infos = append(l.infos, fields)
}

func (l *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.warns = append(l.warns, fields)
}

func (l *recordingLogger) Error(msg string, err error, fields map[string]interface{}) {}

func (l *recordingLogger) WithContext(ctx context.Context) domain.Logger { return l }

func (l *recordingLogger) WithFields(fields map[string]interface{}) domain.Logger { return l }

func TestLoggerSink_Record(t *testing.T) {
	tests := []struct {
		name       string
		severity   domain.Severity
		expectWarn bool
	}{
		{name: "Should log low severity as info", severity: domain.SeverityLow},
		{name: "Should log medium severity as info", severity: domain.SeverityMedium},
		{name: "Should log high severity as warning", severity: domain.SeverityHigh, expectWarn: true},
		{name: "Should log critical severity as warning", severity: domain.SeverityCritical, expectWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			log := &recordingLogger{}
			sink := NewLoggerSink(log)

			// Act
			sink.Record(context.Background(), &domain.AuditEvent{
				Action:      "rate_limit.exceeded",
				Description: "quota exhausted",
				Severity:    tt.severity,
				Category:    CategoryRateLimit,
			})

			// Assert
			if tt.expectWarn {
				assert.Len(t, log.warns, 1)
				assert.Empty(t, log.infos)
			} else {
				assert.Len(t, log.infos, 1)
				assert.Empty(t, log.warns)
			}
		})
	}
}

func TestLoggerSink_Record_FlattensEvent(t *testing.T) {
	// Arrange
	log := &recordingLogger{}
	sink := NewLoggerSink(log)

	event := &domain.AuditEvent{
		ActorID:       "user-1",
		Action:        "authorization.denied",
		Description:   "missing permission",
		SourceAddress: "10.0.0.1",
		Severity:      domain.SeverityMedium,
		Category:      CategoryAuthz,
		Properties: map[string]interface{}{
			"required_spec": "reports.view",
		},
	}

	// Act
	sink.Record(context.Background(), event)

	// Assert
	assert.Len(t, log.infos, 1)
	fields := log.infos[0]
	assert.Equal(t, "authorization.denied", fields["action"])
	assert.Equal(t, "user-1", fields["actor_id"])
	assert.Equal(t, "10.0.0.1", fields["source_address"])
	assert.Equal(t, "reports.view", fields["prop_required_spec"])

	// O instante de gravação é carimbado pelo sink
	assert.False(t, event.RecordedAt.IsZero())
}

func TestLoggerSink_Record_NilEvent(t *testing.T) {
	log := &recordingLogger{}
	sink := NewLoggerSink(log)

	sink.Record(context.Background(), nil)

	assert.Empty(t, log.infos)
	assert.Empty(t, log.warns)
}

func TestLoggerSink_Record_PreservesExistingTimestamp(t *testing.T) {
	log := &recordingLogger{}
	sink := NewLoggerSink(log)

	recordedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := &domain.AuditEvent{
		Action:     "blacklist.blocked",
		Severity:   domain.SeverityHigh,
		Category:   CategoryBlacklist,
		RecordedAt: recordedAt,
	}

	sink.Record(context.Background(), event)

	assert.Equal(t, recordedAt, event.RecordedAt)
}

func TestRedisSink_Record_FallsBackOnWriteError(t *testing.T) {
	// Arrange: Redis inalcançável força o caminho de fallback
	client := redis.NewClient(&redis.Options{Addr: "localhost:1", DialTimeout: 100 * time.Millisecond})
	defer client.Close()

	log := &recordingLogger{}
	fallback := NewLoggerSink(log)
	sink := NewRedisSink(client, fallback, log)

	// Act
	sink.Record(context.Background(), &domain.AuditEvent{
		Action:   "abuse.auto_blacklist",
		Severity: domain.SeverityHigh,
		Category: CategoryAbuse,
	})

	// Assert: o evento chega ao canal de fallback, sem erro propagado
	assert.Len(t, log.warns, 1)
}
