// Package store persists monitor output under a single state directory:
// one JSON artifact per findings/exception/dispatch record, an append-only
// performance log, and a SQLite index of monitor events for querying.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/patrolhq/patrol/internal/types"
)

// Subdirectories created under the state dir.
const (
	findingsDir   = "findings"
	exceptionsDir = "exceptions"
	dispatchesDir = "dispatches"
	agentLogsDir  = "agent-logs"

	perfLogName = "performance.log"
)

// Store owns the state directory layout. Records are append-oriented:
// one file per event, never rewritten.
type Store struct {
	root string
}

// New creates a store rooted at dir, bootstrapping the directory tree.
func New(dir string) (*Store, error) {
	for _, sub := range []string{findingsDir, exceptionsDir, dispatchesDir, agentLogsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("creating state directory %s: %w", sub, err)
		}
	}
	return &Store{root: dir}, nil
}

// Root returns the state directory path.
func (s *Store) Root() string {
	return s.root
}

// AgentLogPath returns the log file path for a dispatched agent.
func (s *Store) AgentLogPath(dispatchID string) string {
	return filepath.Join(s.root, agentLogsDir, fmt.Sprintf("agent-%s.log", dispatchID))
}

// artifactName builds a timestamp-ordered, collision-resistant file name.
// The unix timestamp prefix preserves temporal ordering; the uuid suffix
// guarantees two records in the same second never overwrite each other.
func artifactName(kind string, ts time.Time) string {
	return fmt.Sprintf("%s-%d-%s.json", kind, ts.Unix(), uuid.New().String()[:8])
}

func (s *Store) writeArtifact(dir, name string, record interface{}) (string, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing record: %w", err)
	}

	path := filepath.Join(s.root, dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing record: %w", err)
	}
	return path, nil
}

// SaveFindings persists a findings record and returns its artifact path.
func (s *Store) SaveFindings(rec *types.FindingsRecord) (string, error) {
	return s.writeArtifact(findingsDir, artifactName("findings", rec.Timestamp), rec)
}

// SaveException persists an exception record and returns its artifact path.
func (s *Store) SaveException(rec *types.ExceptionRecord) (string, error) {
	return s.writeArtifact(exceptionsDir, artifactName("exception", rec.Timestamp), rec)
}

// SaveDispatch persists a dispatch record and returns its artifact path.
func (s *Store) SaveDispatch(rec *types.DispatchRecord) (string, error) {
	return s.writeArtifact(dispatchesDir, artifactName("dispatch", rec.Timestamp), rec)
}

// AppendPerformanceSample appends one sample line to the performance log
// and returns the cumulative sample count after the append.
func (s *Store) AppendPerformanceSample(sample *types.PerformanceSample) (int, error) {
	line, err := json.Marshal(sample)
	if err != nil {
		return 0, fmt.Errorf("serializing sample: %w", err)
	}

	path := filepath.Join(s.root, perfLogName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("opening performance log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return 0, fmt.Errorf("appending sample: %w", err)
	}

	return s.countPerformanceSamples()
}

func (s *Store) countPerformanceSamples() (int, error) {
	f, err := os.Open(filepath.Join(s.root, perfLogName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("opening performance log: %w", err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scanning performance log: %w", err)
	}
	return count, nil
}

// TailPerformanceSamples returns the most recent n samples, oldest first.
func (s *Store) TailPerformanceSamples(n int) ([]types.PerformanceSample, error) {
	f, err := os.Open(filepath.Join(s.root, perfLogName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening performance log: %w", err)
	}
	defer f.Close()

	var samples []types.PerformanceSample
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var sample types.PerformanceSample
		if err := json.Unmarshal(line, &sample); err != nil {
			// Tolerate a torn trailing line from a crashed writer
			continue
		}
		samples = append(samples, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning performance log: %w", err)
	}

	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	return samples, nil
}

// PerformanceLogPath returns the path of the append-only sample log.
func (s *Store) PerformanceLogPath() string {
	return filepath.Join(s.root, perfLogName)
}
