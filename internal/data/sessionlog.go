package data

import (
	"fmt"
	"sync"
	"time"

	"eeg-monitor/internal/models"
)

// Session log backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// SessionLog unbounded, append-only list of session records, emptied only by Clear
type SessionLog interface {
	Append(record models.SessionRecord) error
	All() ([]models.SessionRecord, error)
	Since(cutoff time.Time) ([]models.SessionRecord, error)
	Len() int
	Clear() error
	Close() error
}

// NewSessionLog opens the log for the named backend
func NewSessionLog(backend string) (SessionLog, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryLog(), nil
	case BackendSQLite:
		l, err := NewSQLiteLog()
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown session backend: %s", backend)
	}
}

// MemoryLog slice-backed SessionLog
type MemoryLog struct {
	records []models.SessionRecord
	mutex   sync.RWMutex
}

// NewMemoryLog creates an empty log
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{records: make([]models.SessionRecord, 0)}
}

// Append adds a record at the end
func (l *MemoryLog) Append(record models.SessionRecord) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.records = append(l.records, record)
	return nil
}

// All returns every record, oldest first
func (l *MemoryLog) All() ([]models.SessionRecord, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	records := make([]models.SessionRecord, len(l.records))
	copy(records, l.records)
	return records, nil
}

// Since returns the records created at or after cutoff
func (l *MemoryLog) Since(cutoff time.Time) ([]models.SessionRecord, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	var filtered []models.SessionRecord
	for _, record := range l.records {
		if !record.CreatedAt.Before(cutoff) {
			filtered = append(filtered, record)
		}
	}
	return filtered, nil
}

// Len returns the number of records
func (l *MemoryLog) Len() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return len(l.records)
}

// Clear removes every record
func (l *MemoryLog) Clear() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.records = make([]models.SessionRecord, 0)
	return nil
}

// Close is a no-op
func (l *MemoryLog) Close() error {
	return nil
}
