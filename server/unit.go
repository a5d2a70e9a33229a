package server

// UnitID 单位唯一标识（正整数，跨重连稳定，永不复用）
type UnitID int64

// MaxUnitID 可分配或声明的最大 ID：浏览器客户端以 double 解析 ID，超过 2^53-1 会丢精度
const MaxUnitID UnitID = 1<<53 - 1

// 新单位的出生点。服务端分配与客户端声明的未知 ID 统一使用该默认值。
var SpawnPoint = Point{X: Radius + WallThickness, Y: Radius + WallThickness}

// Unit 玩家控制的圆形单位（服务端权威状态）
type Unit struct {
	ID     UnitID  `json:"ID"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Angle  float64 `json:"angle"`
	Online bool    `json:"online"`
}

// Position 返回圆心坐标
func (u Unit) Position() Point {
	return Point{X: u.X, Y: u.Y}
}
