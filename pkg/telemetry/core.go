package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/soundprediction/azurellm/pkg/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys lifted out of the attributes into their own columns.
const (
	FieldUserID        = "user_id"
	FieldSessionID     = "session_id"
	FieldRequestSource = "request_source"
)

// LogRecord represents a single log entry for Parquet storage
type LogRecord struct {
	ID            string    `parquet:"id"`
	Timestamp     time.Time `parquet:"timestamp"`
	Level         string    `parquet:"level"`
	Logger        string    `parquet:"logger"`
	Message       string    `parquet:"message"`
	UserID        string    `parquet:"user_id"`
	SessionID     string    `parquet:"session_id"`
	RequestSource string    `parquet:"request_source"`
	SourceFile    string    `parquet:"source_file"`
	LineNumber    int       `parquet:"line_number"`
	Attributes    string    `parquet:"attributes"` // JSON string
}

// sink is the buffer shared by a ParquetCore and every core derived from it
// with With.
type sink struct {
	outputDir string
	mu        sync.Mutex
	buffer    []LogRecord
	batchSize int
}

// ParquetCore is a zapcore.Core that keeps error entries and above in Parquet
// files under a directory. Tee it behind the console core with
// logger.New.
type ParquetCore struct {
	zapcore.LevelEnabler
	sink   *sink
	fields []zapcore.Field
}

// NewParquetCore creates the output directory and returns a core recording
// entries at zap.ErrorLevel and above.
func NewParquetCore(outputDir string) (*ParquetCore, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	return &ParquetCore{
		LevelEnabler: zapcore.ErrorLevel,
		sink: &sink{
			outputDir: outputDir,
			batchSize: 100,
			buffer:    make([]LogRecord, 0, 100),
		},
	}, nil
}

// With implements zapcore.Core
func (c *ParquetCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &ParquetCore{LevelEnabler: c.LevelEnabler, sink: c.sink, fields: merged}
}

// Check implements zapcore.Core
func (c *ParquetCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write implements zapcore.Core
func (c *ParquetCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	record := LogRecord{
		ID:            uuid.New().String(),
		Timestamp:     ent.Time.UTC(),
		Level:         ent.Level.CapitalString(),
		Logger:        ent.LoggerName,
		Message:       ent.Message,
		UserID:        takeString(enc.Fields, FieldUserID),
		SessionID:     takeString(enc.Fields, FieldSessionID),
		RequestSource: takeString(enc.Fields, FieldRequestSource),
	}
	if ent.Caller.Defined {
		record.SourceFile = ent.Caller.File
		record.LineNumber = ent.Caller.Line
	}
	if len(enc.Fields) > 0 {
		attrs, err := json.Marshal(enc.Fields)
		if err != nil {
			attrs = []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
		}
		record.Attributes = string(attrs)
	}

	s := c.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, record)
	if len(s.buffer) >= s.batchSize {
		return s.flush()
	}
	return nil
}

// Sync implements zapcore.Core and writes any buffered records.
func (c *ParquetCore) Sync() error {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	return c.sink.flush()
}

// flush writes the current buffer to a new Parquet file
// Caller must hold the lock
func (s *sink) flush() error {
	if len(s.buffer) == 0 {
		return nil
	}

	now := time.Now()
	filename := fmt.Sprintf("execution_errors_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	path := filepath.Join(s.outputDir, filename)

	if err := parquet.WriteFile(path, s.buffer); err != nil {
		// Reporting through zap here would re-enter this core.
		fmt.Fprintf(os.Stderr, "Failed to write telemetry parquet file: %v\n", err)
		return err
	}

	s.buffer = s.buffer[:0]
	return nil
}

func takeString(fields map[string]interface{}, key string) string {
	v, ok := fields[key].(string)
	if ok {
		delete(fields, key)
	}
	return v
}

// ContextFields returns the request identity stored in ctx as zap fields, so
// that records written by ParquetCore carry it in their own columns.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if v, ok := ctx.Value(types.ContextKeyUserID).(string); ok && v != "" {
		fields = append(fields, zap.String(FieldUserID, v))
	}
	if v, ok := ctx.Value(types.ContextKeySessionID).(string); ok && v != "" {
		fields = append(fields, zap.String(FieldSessionID, v))
	}
	if v, ok := ctx.Value(types.ContextKeyRequestSource).(string); ok && v != "" {
		fields = append(fields, zap.String(FieldRequestSource, v))
	}
	return fields
}
