package quiz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/errors"
)

const DefaultQuizTime = 600

type Config struct {
	// File is the quiz document path. A .yaml or .yml extension selects YAML,
	// anything else JSON.
	File string
	// DefaultTime is the quiz time in seconds used when the file is missing or broken.
	DefaultTime int
}

// Store keeps the quiz document in memory and rewrites the whole file on every
// mutation. Concurrent writers from other processes are last-write-wins.
type Store struct {
	file  string
	codec codec

	mu   sync.RWMutex
	data domain.QuizData
}

// Snapshot is a copy of the quiz document plus a fingerprint of its questions.
type Snapshot struct {
	Questions   []domain.Question
	QuizTime    int
	Fingerprint string
}

// Open loads the quiz document. A missing or malformed file is replaced by an
// empty default document; it never fails for that reason.
func Open(ctx context.Context, c Config) *Store {
	if c.DefaultTime <= 0 {
		c.DefaultTime = DefaultQuizTime
	}

	s := &Store{
		file:  c.File,
		codec: codecFor(c.File),
		data:  domain.QuizData{Questions: []domain.Question{}, QuizTime: c.DefaultTime},
	}

	b, err := os.ReadFile(c.File)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.WarnContext(ctx, "quiz: read file failed, using empty quiz", "file", c.File, "error", err)
		}
		return s
	}

	var d domain.QuizData
	if err := s.codec.unmarshal(b, &d); err != nil {
		slog.WarnContext(ctx, "quiz: malformed file, using empty quiz", "file", c.File, "error", err)
		return s
	}

	if d.Questions == nil {
		d.Questions = []domain.Question{}
	}
	if d.QuizTime <= 0 {
		d.QuizTime = c.DefaultTime
	}
	s.data = d

	return s
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Questions:   cloneQuestions(s.data.Questions),
		QuizTime:    s.data.QuizTime,
		Fingerprint: fingerprint(s.data.Questions),
	}
}

func (s *Store) AddQuestion(ctx context.Context, q domain.Question) (Snapshot, error) {
	q, err := NormalizeQuestion(q)
	if err != nil {
		return Snapshot{}, err
	}

	q.Options = slices.Clone(q.Options)

	return s.update(ctx, func(d *domain.QuizData) error {
		d.Questions = append(d.Questions, q)
		return nil
	})
}

func (s *Store) DeleteQuestion(ctx context.Context, index int) (Snapshot, error) {
	return s.update(ctx, func(d *domain.QuizData) error {
		if index < 0 || index >= len(d.Questions) {
			return errors.NotFound("question not found: index=%d", index)
		}
		d.Questions = slices.Delete(d.Questions, index, index+1)
		return nil
	})
}

func (s *Store) SetQuizTime(ctx context.Context, seconds int) (Snapshot, error) {
	if seconds < 1 {
		return Snapshot{}, errors.InvalidArgument("quiz time must be at least 1 second")
	}

	return s.update(ctx, func(d *domain.QuizData) error {
		d.QuizTime = seconds
		return nil
	})
}

func (s *Store) update(ctx context.Context, f func(d *domain.QuizData) error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := domain.QuizData{
		Questions: cloneQuestions(s.data.Questions),
		QuizTime:  s.data.QuizTime,
	}
	if err := f(&d); err != nil {
		return Snapshot{}, err
	}

	if err := s.write(d); err != nil {
		slog.ErrorContext(ctx, "quiz: write file failed", "file", s.file, "error", err)
		return Snapshot{}, errors.Internal(fmt.Errorf("write quiz file: %w", err))
	}
	s.data = d

	return Snapshot{
		Questions:   cloneQuestions(d.Questions),
		QuizTime:    d.QuizTime,
		Fingerprint: fingerprint(d.Questions),
	}, nil
}

// cloneQuestions copies the options too, so snapshots never share memory with
// the store.
func cloneQuestions(qs []domain.Question) []domain.Question {
	if qs == nil {
		return nil
	}

	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		q.Options = slices.Clone(q.Options)
		out[i] = q
	}
	return out
}

// write replaces the file atomically so a crash never leaves half a document.
func (s *Store) write(d domain.QuizData) error {
	b, err := s.codec.marshal(d)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	dir := filepath.Dir(s.file)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.file)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), s.file)
}

func fingerprint(qs []domain.Question) string {
	b, _ := json.Marshal(qs)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

type codec struct {
	marshal   func(v any) ([]byte, error)
	unmarshal func(b []byte, v any) error
}

func codecFor(file string) codec {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		return codec{marshal: yaml.Marshal, unmarshal: yaml.Unmarshal}
	default:
		return codec{
			marshal: func(v any) ([]byte, error) {
				return json.MarshalIndent(v, "", "  ")
			},
			unmarshal: json.Unmarshal,
		}
	}
}
