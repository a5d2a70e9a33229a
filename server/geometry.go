package server

import "math"

// 房间常量：客户端与服务端必须逐位一致
const (
	RoomWidth     = 300.0
	RoomHeight    = 200.0
	WallThickness = 1.0
	Radius        = 10.0
)

// Point 平面坐标（单位圆心）
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance 欧氏距离
func Distance(a, b Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Intersects 两个半径为 Radius 的圆是否重叠
func Intersects(a, b Point) bool {
	return Distance(a, b) < 2*Radius
}

// MoveOut 沿 obstacle→mover 方向把 mover 推到距离 obstacle 恰好 2*Radius 的位置。
// 两点重合时 atan2(0,0)=0，固定向 +x 方向推出。
func MoveOut(mover, obstacle Point) Point {
	angle := math.Atan2(mover.Y-obstacle.Y, mover.X-obstacle.X)
	return Point{
		X: obstacle.X + 2*Radius*math.Cos(angle),
		Y: obstacle.Y + 2*Radius*math.Sin(angle),
	}
}

// Clamp 将 v 限制在 [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(lo, v), hi)
}

// ClampToRoom 越界裁剪：圆心距离墙体至少 Radius+WallThickness
func ClampToRoom(p Point) Point {
	return Point{
		X: Clamp(p.X, Radius+WallThickness, RoomWidth-Radius-WallThickness),
		Y: Clamp(p.Y, Radius+WallThickness, RoomHeight-Radius-WallThickness),
	}
}
