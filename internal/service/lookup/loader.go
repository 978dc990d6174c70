// Package lookup loads the emotion lookup table from its CSV file.
package lookup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/emotion-voice/backend/internal/model/emotion"
)

// Column names required in the table header.
const (
	ColumnEmotion = "Emotion"
	ColumnAction  = "Suggested Action"
	ColumnInsight = "Psychological Insight"
)

// ErrDataLoad is returned for any failure to produce the lookup table. The
// service cannot start without it.
var ErrDataLoad = errors.New("emotion table load failed")

// Option configures Load and Parse.
type Option func(*options)

type options struct {
	logger zerolog.Logger
}

// WithLogger routes loader warnings (duplicate labels) to logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Load reads the CSV table at path.
func Load(path string, opts ...Option) (*emotion.MemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataLoad, err)
	}
	defer f.Close()

	return Parse(f, opts...)
}

// Parse reads a CSV table from r. The header must name the three required
// columns, in any order; other columns are ignored.
func Parse(r io.Reader, opts ...Option) (*emotion.MemoryStore, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: file is empty", ErrDataLoad)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrDataLoad, err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var (
		entries []emotion.Entry
		seen    = make(map[string]struct{})
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDataLoad, err)
		}

		entry := emotion.Entry{
			Emotion:              record[idx[ColumnEmotion]],
			SuggestedAction:      record[idx[ColumnAction]],
			PsychologicalInsight: record[idx[ColumnInsight]],
		}
		if strings.TrimSpace(entry.Emotion) == "" {
			return nil, fmt.Errorf("%w: line %d: empty %s", ErrDataLoad, line, ColumnEmotion)
		}
		if _, dup := seen[entry.Emotion]; dup {
			o.logger.Warn().Str("emotion", entry.Emotion).Int("line", line).Msg("duplicate emotion label ignored")
			continue
		}
		seen[entry.Emotion] = struct{}{}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no emotion rows", ErrDataLoad)
	}

	return emotion.NewMemoryStore(entries), nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, exists := idx[name]; !exists {
			idx[name] = i
		}
	}

	var missing []string
	for _, required := range []string{ColumnEmotion, ColumnAction, ColumnInsight} {
		if _, ok := idx[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrDataLoad, strings.Join(missing, ", "))
	}
	return idx, nil
}
