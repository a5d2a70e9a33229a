package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Snapshot 持久化数据块：ID 计数器、全部单位与房间物体
type Snapshot struct {
	NextID  UnitID          `json:"nextID"`
	Units   map[UnitID]Unit `json:"units"`
	Objects []RoomObject    `json:"objects,omitempty"`
}

// EmptySnapshot 无存档时的初始状态
func EmptySnapshot() Snapshot {
	return Snapshot{NextID: 1, Units: make(map[UnitID]Unit)}
}

// Store 快照的读写介质
type Store interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// FileStore 以单个 JSON 文件保存快照
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load 读取快照；文件不存在不算错误，返回空状态
func (s *FileStore) Load() (Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return EmptySnapshot(), nil
	}
	if err != nil {
		return EmptySnapshot(), fmt.Errorf("read snapshot %s: %w", s.Path, err)
	}
	snap := EmptySnapshot()
	if err := json.Unmarshal(data, &snap); err != nil {
		return EmptySnapshot(), fmt.Errorf("decode snapshot %s: %w", s.Path, err)
	}
	if snap.Units == nil {
		snap.Units = make(map[UnitID]Unit)
	}
	return snap, nil
}

// Save 先写临时文件再原子替换，避免写到一半的存档
func (s *FileStore) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
