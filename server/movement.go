package server

import (
	"fmt"
	"math"
)

// MoveRequest 客户端提交的位移及其本地预测结果（仅用于比对，不作为权威）
type MoveRequest struct {
	DeltaX      float64
	DeltaY      float64
	ClientX     float64
	ClientY     float64
	ClientAngle *float64
}

// MoveResult 一次权威移动的结果
type MoveResult struct {
	Unit      Unit // 写回后的权威状态
	Previous  Point
	Moved     bool // 实际位置发生变化，需要通知其他客户端
	Corrected bool // 与客户端预测不一致，需要校正移动者
}

// Validator 移动校验：应用位移、解析碰撞、边界裁剪、推导朝向
type Validator struct {
	registry *Registry
}

func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Apply 对单位 id 执行一次权威移动并写回注册表。
// 其他在线单位按 ID 升序依次做推出，多重重叠时结果由该顺序决定。
func (v *Validator) Apply(id UnitID, req MoveRequest) (MoveResult, error) {
	u, ok := v.registry.Get(id)
	if !ok {
		return MoveResult{}, fmt.Errorf("apply move for unit %d: %w", id, ErrUnknownUnit)
	}
	prev := u.Position()
	p := Point{X: prev.X + req.DeltaX, Y: prev.Y + req.DeltaY}

	others := v.registry.OnlineExcept(id)
	for _, other := range others {
		if Intersects(p, other.Position()) {
			p = MoveOut(p, other.Position())
		}
	}
	p = ClampToRoom(p)
	// 推出后再裁剪可能重新压到墙边的单位上，此时本次移动不生效
	if overlapsAny(p, others) {
		p = prev
	}

	moved := p != prev
	angle := u.Angle
	if moved {
		angle = math.Atan2(p.Y-prev.Y, p.X-prev.X)
	}

	if err := v.registry.ApplyMove(id, p.X, p.Y, angle); err != nil {
		return MoveResult{}, fmt.Errorf("apply move for unit %d: %w", id, err)
	}
	u.X, u.Y, u.Angle = p.X, p.Y, angle

	corrected := p.X != req.ClientX || p.Y != req.ClientY ||
		req.ClientAngle == nil || *req.ClientAngle != angle

	return MoveResult{Unit: u, Previous: prev, Moved: moved, Corrected: corrected}, nil
}

// Settle 单位上线时调用：若其位置与其他在线单位重叠，先按 Apply 的规则推出并裁剪，
// 仍重叠则取房间内第一个空位（行优先扫描）。房间已满时保持原位。朝向不变。
func (v *Validator) Settle(id UnitID) (Unit, error) {
	u, ok := v.registry.Get(id)
	if !ok {
		return Unit{}, fmt.Errorf("settle unit %d: %w", id, ErrUnknownUnit)
	}
	others := v.registry.OnlineExcept(id)
	if !overlapsAny(u.Position(), others) {
		return u, nil
	}

	p := u.Position()
	for _, other := range others {
		if Intersects(p, other.Position()) {
			p = MoveOut(p, other.Position())
		}
	}
	p = ClampToRoom(p)
	if overlapsAny(p, others) {
		free, found := freeSpot(others)
		if !found {
			return u, nil
		}
		p = free
	}

	if err := v.registry.ApplyMove(id, p.X, p.Y, u.Angle); err != nil {
		return Unit{}, fmt.Errorf("settle unit %d: %w", id, err)
	}
	u.X, u.Y = p.X, p.Y
	return u, nil
}

// freeSpot 以直径为步长扫描房间内的合法圆心
func freeSpot(others []Unit) (Point, bool) {
	const lo = Radius + WallThickness
	for y := lo; y <= RoomHeight-lo; y += 2 * Radius {
		for x := lo; x <= RoomWidth-lo; x += 2 * Radius {
			p := Point{X: x, Y: y}
			if !overlapsAny(p, others) {
				return p, true
			}
		}
	}
	return Point{}, false
}

// 推出结果与障碍的距离受浮点舍入影响可能略小于 2*Radius
const overlapTolerance = 1e-9

func overlapsAny(p Point, units []Unit) bool {
	for _, u := range units {
		if Distance(p, u.Position()) < 2*Radius-overlapTolerance {
			return true
		}
	}
	return false
}
