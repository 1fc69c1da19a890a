// Package upload accepts a large file as independently-uploaded chunks and
// deterministically reconstructs it once every chunk has arrived.
package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/podclip/internal/store"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

var (
	ErrSessionNotFound = errors.New("upload: session not found")
	ErrSessionState    = errors.New("upload: session not in expected state")
	ErrBadRequest      = errors.New("upload: invalid request")
)

// IncompleteError reports the chunk indices still missing at completion time.
type IncompleteError struct {
	Missing      []int // at most the first 10
	MissingCount int
	Total        int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("upload: %d of %d chunks missing, first missing: %v",
		e.MissingCount, e.Total, e.Missing)
}

// Session tracks chunk receipt for one logical upload. Chunk i of session s
// lives at <dir>/<s>/chunk_<i>, so re-delivery of the same index is a no-op.
type Session struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	FileSize    int64     `json:"file_size"`
	ChunkSize   int64     `json:"chunk_size"`
	TotalChunks int       `json:"total_chunks"`
	Received    []int     `json:"received_chunks"`
	Status      Status    `json:"status"`
	FinalPath   string    `json:"final_path,omitempty"`
	FinalSize   int64     `json:"final_size,omitempty"`
	FileHash    string    `json:"file_hash,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// Progress returns receipt progress in percent.
func (s *Session) Progress() float64 {
	if s.TotalChunks == 0 {
		return 0
	}
	return float64(len(s.Received)) / float64(s.TotalChunks) * 100
}

func (s *Session) has(index int) bool {
	for _, i := range s.Received {
		if i == index {
			return true
		}
	}
	return false
}

// Manager owns the chunk directory tree and the session records.
type Manager struct {
	dir              string
	finalDir         string
	defaultChunkSize int64
	locks            *store.KeyLocks
	log              *slog.Logger
}

func NewManager(dir string, defaultChunkSize int64, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	finalDir := filepath.Join(dir, "uploads")
	for _, d := range []string{dir, finalDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &Manager{
		dir:              dir,
		finalDir:         finalDir,
		defaultChunkSize: defaultChunkSize,
		locks:            store.NewKeyLocks(),
		log:              log,
	}, nil
}

// CreateSession initiates a chunked upload. chunkSize <= 0 selects the
// manager default. totalChunks = ceil(fileSize/chunkSize).
func (m *Manager) CreateSession(filename string, fileSize, chunkSize int64) (*Session, error) {
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrBadRequest)
	}
	if fileSize <= 0 {
		return nil, fmt.Errorf("%w: fileSize is required", ErrBadRequest)
	}
	if chunkSize <= 0 {
		chunkSize = m.defaultChunkSize
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:          uuid.NewString(),
		Filename:    filename,
		FileSize:    fileSize,
		ChunkSize:   chunkSize,
		TotalChunks: int((fileSize + chunkSize - 1) / chunkSize),
		Received:    []int{},
		Status:      StatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := os.MkdirAll(m.chunkDir(sess.ID), 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	if err := m.save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ReceiveChunk stores one chunk payload. Re-delivery of an already-received
// index succeeds without touching anything.
func (m *Manager) ReceiveChunk(sessionID string, index int, r io.Reader) (*Session, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	sess, err := m.load(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != StatusInProgress {
		return nil, fmt.Errorf("%w: session is %s", ErrSessionState, sess.Status)
	}
	if index < 0 || index >= sess.TotalChunks {
		return nil, fmt.Errorf("%w: chunk index %d out of range [0,%d)", ErrBadRequest, index, sess.TotalChunks)
	}
	if sess.has(index) {
		return sess, nil
	}

	path := m.chunkPath(sessionID, index)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create chunk file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write chunk %d: %w", index, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close chunk %d: %w", index, err)
	}

	sess.Received = append(sess.Received, index)
	sort.Ints(sess.Received)
	sess.UpdatedAt = time.Now().UTC()
	if err := m.save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Status returns the current session record.
func (m *Manager) Status(sessionID string) (*Session, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()
	return m.load(sessionID)
}

// Complete validates the received-index set and kicks off reassembly in the
// background. Calling it again while processing or after completion is a
// no-op returning the current state.
func (m *Manager) Complete(sessionID string) (*Session, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	sess, err := m.load(sessionID)
	if err != nil {
		return nil, err
	}
	switch sess.Status {
	case StatusCompleted, StatusProcessing:
		return sess, nil
	case StatusError:
		return nil, fmt.Errorf("%w: session failed: %s", ErrSessionState, sess.Error)
	}

	if missing, count := m.missingChunks(sess); count > 0 {
		return nil, &IncompleteError{Missing: missing, MissingCount: count, Total: sess.TotalChunks}
	}

	sess.Status = StatusProcessing
	sess.UpdatedAt = time.Now().UTC()
	if err := m.save(sess); err != nil {
		return nil, err
	}

	go m.reassemble(sessionID)
	return sess, nil
}

// Abort drops the session record and any chunks already on disk.
func (m *Manager) Abort(sessionID string) error {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	if _, err := m.load(sessionID); err != nil {
		return err
	}
	if err := os.RemoveAll(m.chunkDir(sessionID)); err != nil {
		return fmt.Errorf("remove chunk dir: %w", err)
	}
	return os.Remove(m.sessionPath(sessionID))
}

// reassemble streams chunks in index order into the final artifact, deleting
// each chunk as soon as it has been written so peak disk usage stays bounded
// to session size plus one chunk.
func (m *Manager) reassemble(sessionID string) {
	fail := func(err error) {
		m.log.Error("reassembly failed", "session", sessionID, "err", err)
		m.mutate(sessionID, func(s *Session) {
			s.Status = StatusError
			s.Error = err.Error()
		})
	}

	sess, err := m.Status(sessionID)
	if err != nil {
		fail(err)
		return
	}

	finalPath := filepath.Join(m.finalDir, sess.ID+"_"+filepath.Base(sess.Filename))
	out, err := os.Create(finalPath)
	if err != nil {
		fail(fmt.Errorf("create final artifact: %w", err))
		return
	}
	hash := sha256.New()
	w := io.MultiWriter(out, hash)

	for i := 0; i < sess.TotalChunks; i++ {
		chunk := m.chunkPath(sessionID, i)
		in, err := os.Open(chunk)
		if err != nil {
			out.Close()
			fail(fmt.Errorf("open chunk %d: %w", i, err))
			return
		}
		if _, err := io.Copy(w, in); err != nil {
			in.Close()
			out.Close()
			fail(fmt.Errorf("append chunk %d: %w", i, err))
			return
		}
		in.Close()
		os.Remove(chunk)
	}
	if err := out.Close(); err != nil {
		fail(fmt.Errorf("finalise artifact: %w", err))
		return
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		fail(fmt.Errorf("stat final artifact: %w", err))
		return
	}
	os.Remove(m.chunkDir(sessionID)) // now empty

	m.mutate(sessionID, func(s *Session) {
		s.Status = StatusCompleted
		s.FinalPath = finalPath
		s.FinalSize = info.Size()
		s.FileHash = hex.EncodeToString(hash.Sum(nil))
		s.CompletedAt = time.Now().UTC()
	})
	m.log.Info("upload reassembled", "session", sessionID, "bytes", info.Size())
}

func (m *Manager) mutate(sessionID string, fn func(*Session)) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()
	sess, err := m.load(sessionID)
	if err != nil {
		m.log.Error("load session for mutation", "session", sessionID, "err", err)
		return
	}
	fn(sess)
	sess.UpdatedAt = time.Now().UTC()
	if err := m.save(sess); err != nil {
		m.log.Error("save session", "session", sessionID, "err", err)
	}
}

func (m *Manager) missingChunks(sess *Session) ([]int, int) {
	got := make(map[int]bool, len(sess.Received))
	for _, i := range sess.Received {
		got[i] = true
	}
	var missing []int
	count := 0
	for i := 0; i < sess.TotalChunks; i++ {
		if got[i] {
			continue
		}
		count++
		if len(missing) < 10 {
			missing = append(missing, i)
		}
	}
	return missing, count
}

func (m *Manager) chunkDir(id string) string  { return filepath.Join(m.dir, id) }
func (m *Manager) sessionPath(id string) string {
	return filepath.Join(m.dir, "session_"+id+".json")
}

func (m *Manager) chunkPath(id string, index int) string {
	return filepath.Join(m.chunkDir(id), fmt.Sprintf("chunk_%05d", index))
}

func (m *Manager) load(id string) (*Session, error) {
	b, err := os.ReadFile(m.sessionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (m *Manager) save(sess *Session) error {
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	tmp := m.sessionPath(sess.ID) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write session temp file: %w", err)
	}
	return os.Rename(tmp, m.sessionPath(sess.ID))
}
