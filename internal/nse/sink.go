package nse

// Adapted from internal/scan/manager.go's direct db.Table(...)/.Exec(...)
// usage: the same raw-gorm style, applied to script output instead of
// host/vulnerability rows (§4.10 "Result Sink", C10).

import (
	"encoding/json"
	"log"
	"time"

	"github.com/SiriusScan/go-api/sirius/queue"
	"gorm.io/gorm"
)

// scriptResultRow is the Postgres shape a completed script's output is
// inserted into. Mirrors the teacher's ad-hoc db.Table(...) calls rather
// than a gorm model with an AutoMigrate-managed struct tag set, since
// script_results isn't one of the SDK's own managed tables.
type scriptResultRow struct {
	Host      string    `gorm:"column:host"`
	Port      int       `gorm:"column:port"`
	ScriptID  string    `gorm:"column:script_id"`
	Output    string    `gorm:"column:output"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// ScriptResultEvent is published to the message queue so other services
// can react to completed script output without polling Postgres.
type ScriptResultEvent struct {
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	ScriptID string `json:"script_id"`
}

// PostgresSink is the default ResultSink: it inserts each result as a new row into
// Postgres via gorm and publishes a completion event onto the queue.
// Construction failures here are the caller's problem; delivery failures
// are logged and never abort the scan (§7).
type PostgresSink struct {
	db *gorm.DB
}

// NewPostgresSink wraps an already-connected *gorm.DB.
func NewPostgresSink(db *gorm.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// RecordHostResult implements ResultSink.
func (s *PostgresSink) RecordHostResult(host Host, scriptID, text string) {
	s.record(host.IP, 0, scriptID, text)
}

// RecordPortResult implements ResultSink.
func (s *PostgresSink) RecordPortResult(host Host, port Port, scriptID, text string) {
	s.record(host.IP, port.ID, scriptID, text)
}

func (s *PostgresSink) record(ip string, port int, scriptID, text string) {
	if s.db == nil {
		log.Printf("warning: result sink has no database connection, dropping %s/%s output", ip, scriptID)
		return
	}

	row := scriptResultRow{Host: ip, Port: port, ScriptID: scriptID, Output: text, CreatedAt: time.Now()}
	if result := s.db.Table("script_results").Create(&row); result.Error != nil {
		log.Printf("warning: failed to store script result for %s/%s: %v", ip, scriptID, result.Error)
	}

	event := ScriptResultEvent{Host: ip, Port: port, ScriptID: scriptID}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("warning: failed to marshal script result event: %v", err)
		return
	}
	if err := queue.Send("nse-results", string(data)); err != nil {
		log.Printf("warning: failed to publish script result event: %v", err)
	}
}

var _ ResultSink = (*PostgresSink)(nil)
