package portfolio

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"tipbot-go/internal/signal"
)

// Journal appends execution outcomes to a JSON-lines file. Write errors do not
// interrupt trading; the first one is kept and reported by Err.
type Journal struct {
	path string

	mu      sync.Mutex
	file    *os.File
	enc     *json.Encoder
	written int
	err     error
}

// OpenJournal creates the parent directory and opens path for appending.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{path: path, file: file, enc: json.NewEncoder(file)}, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string { return j.path }

// Record appends one outcome. Records after Close are dropped.
func (j *Journal) Record(o signal.Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return
	}
	if err := j.enc.Encode(o); err != nil {
		if j.err == nil {
			j.err = err
		}
		return
	}
	j.written++
}

// Written is the number of outcomes appended since open.
func (j *Journal) Written() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.written
}

// Err returns the first write error, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Close syncs and closes the file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := errors.Join(j.file.Sync(), j.file.Close())
	j.file = nil
	return err
}

// ReadJournal returns the last limit outcomes of the journal at path, oldest first.
// A limit of zero or less returns every outcome. Malformed lines are skipped and counted.
func ReadJournal(path string, limit int) ([]signal.Outcome, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var (
		out     []signal.Outcome
		skipped int
	)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var o signal.Outcome
		if err := json.Unmarshal(scanner.Bytes(), &o); err != nil {
			skipped++
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) > limit {
			out = out[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return out, skipped, fmt.Errorf("read journal: %w", err)
	}
	return out, skipped, nil
}

// Summary aggregates a slice of outcomes.
type Summary struct {
	Trades     int
	Successful int
	Failed     int
	PnL        decimal.Decimal
	ByPair     map[string]int
}

// Summarize folds outcomes into a Summary.
func Summarize(outcomes []signal.Outcome) Summary {
	s := Summary{ByPair: make(map[string]int)}
	for _, o := range outcomes {
		s.Trades++
		s.ByPair[o.Pair]++
		if o.Success {
			s.Successful++
			s.PnL = s.PnL.Add(o.PnL)
		} else {
			s.Failed++
		}
	}
	return s
}
