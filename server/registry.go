package server

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrUnknownUnit 注册表中不存在该单位
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrIDSpaceExhausted 计数器已超过 MaxUnitID
	ErrIDSpaceExhausted = errors.New("unit id space exhausted")
)

// Registry 单位注册表：ID → 最近一次已知状态。
// 身份只增不删，离线仅标记 Online=false。
// 写入由 World 串行驱动；读锁供存档与管理接口并发读取一致快照。
type Registry struct {
	mu      sync.RWMutex
	nextID  UnitID
	units   map[UnitID]*Unit
	version uint64 // 每次变更递增，存档据此跳过未变化的状态
}

// NewRegistry 创建空注册表（nextID 从 1 开始）
func NewRegistry() *Registry {
	return &Registry{
		nextID: 1,
		units:  make(map[UnitID]*Unit),
	}
}

// NextID 分配新的单位 ID 并推进计数器；ID 空间用尽时返回 ErrIDSpaceExhausted
func (r *Registry) NextID() (UnitID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nextID <= 0 || r.nextID > MaxUnitID {
		return 0, ErrIDSpaceExhausted
	}
	id := r.nextID
	r.nextID++
	r.version++
	return id, nil
}

// Get 读取单位状态副本
func (r *Registry) Get(id UnitID) (Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[id]
	if !ok {
		return Unit{}, false
	}
	return *u, true
}

// UpsertOnConnect 已知单位标记在线并返回原状态；未知单位在出生点创建。
// 客户端声明的 ID 若不小于计数器，则把计数器推进到其之后，避免之后分配冲突。
func (r *Registry) UpsertOnConnect(id UnitID) (unit Unit, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version++
	if u, ok := r.units[id]; ok {
		u.Online = true
		return *u, false
	}
	u := &Unit{ID: id, X: SpawnPoint.X, Y: SpawnPoint.Y, Angle: 0, Online: true}
	r.units[id] = u
	// 超出上限的 ID 不推进计数器，避免 id+1 溢出
	if id >= r.nextID && id <= MaxUnitID {
		r.nextID = id + 1
	}
	return *u, true
}

// ApplyMove 无条件覆盖位置与朝向；不变量由调用方（移动校验）保证
func (r *Registry) ApplyMove(id UnitID, x, y, angle float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[id]
	if !ok {
		return ErrUnknownUnit
	}
	u.X, u.Y, u.Angle = x, y, angle
	r.version++
	return nil
}

// MarkOffline 标记单位离线
func (r *Registry) MarkOffline(id UnitID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[id]
	if !ok {
		return ErrUnknownUnit
	}
	u.Online = false
	r.version++
	return nil
}

// OnlineExcept 返回除 id 之外的在线单位，按 ID 升序（碰撞解析的确定性顺序）
func (r *Registry) OnlineExcept(id UnitID) []Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Unit, 0, len(r.units))
	for uid, u := range r.units {
		if uid != id && u.Online {
			out = append(out, *u)
		}
	}
	sortUnits(out)
	return out
}

// Online 返回全部在线单位，按 ID 升序
func (r *Registry) Online() []Unit {
	return r.OnlineExcept(0)
}

// Units 返回全部单位，按 ID 升序
func (r *Registry) Units() []Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Unit, 0, len(r.units))
	for _, u := range r.units {
		out = append(out, *u)
	}
	sortUnits(out)
	return out
}

// Version 当前变更序号
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Snapshot 返回可序列化的完整状态副本及其版本号
func (r *Registry) Snapshot() (Snapshot, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := Snapshot{
		NextID: r.nextID,
		Units:  make(map[UnitID]Unit, len(r.units)),
	}
	for id, u := range r.units {
		snap.Units[id] = *u
	}
	return snap, r.version
}

// Restore 以快照替换全部状态。进程重启后没有存活连接，所有单位置为离线。
func (r *Registry) Restore(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units = make(map[UnitID]*Unit, len(snap.Units))
	next := snap.NextID
	if next < 1 {
		next = 1
	}
	for id, u := range snap.Units {
		if id <= 0 {
			continue
		}
		u.ID = id
		u.Online = false
		cp := u
		r.units[id] = &cp
		if id >= next && id <= MaxUnitID {
			next = id + 1
		}
	}
	r.nextID = next
	r.version = 0
}

func sortUnits(units []Unit) {
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
}
