package server

import (
	"encoding/json"
	"fmt"
)

// 消息类型（区分大小写，与浏览器客户端一致）
const (
	TypeRequestID    = "requestID"
	TypeID           = "ID"
	TypeMove         = "move"
	TypePosition     = "position"
	TypeDisconnected = "disconnected"
	TypeObjects      = "objects"
)

// ClientMessage 入站消息（WebSocket 文本帧）
// 示例：{"type":"move","deltaX":1,"deltaY":0,"clientX":51,"clientY":50,"clientAngle":0}
type ClientMessage struct {
	Type        string   `json:"type"`
	ID          UnitID   `json:"ID,omitempty"`
	DeltaX      float64  `json:"deltaX,omitempty"`
	DeltaY      float64  `json:"deltaY,omitempty"`
	ClientX     float64  `json:"clientX,omitempty"`
	ClientY     float64  `json:"clientY,omitempty"`
	ClientAngle *float64 `json:"clientAngle,omitempty"`
}

// DecodeClientMessage 解析入站帧；无法解析视为畸形消息
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("decode client message: %w", err)
	}
	return msg, nil
}

// IDMessage 下发分配或确认的 ID
type IDMessage struct {
	Type string `json:"type"`
	ID   UnitID `json:"ID"`
}

// PositionMessage 发给移动者本人的位置校正
type PositionMessage struct {
	Type  string  `json:"type"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

// UnitPositionMessage 广播给其他客户端的单位位置（无 type 字段）
type UnitPositionMessage struct {
	ID    UnitID  `json:"ID"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

// DisconnectedMessage 单位下线通知
type DisconnectedMessage struct {
	Type string `json:"type"`
	ID   UnitID `json:"ID"`
}

// ObjectsMessage 房间物体列表
type ObjectsMessage struct {
	Type    string       `json:"type"`
	Objects []RoomObject `json:"objects"`
}

func encodeID(id UnitID) ([]byte, error) {
	return json.Marshal(IDMessage{Type: TypeID, ID: id})
}

func encodePosition(u Unit) ([]byte, error) {
	return json.Marshal(PositionMessage{Type: TypePosition, X: u.X, Y: u.Y, Angle: u.Angle})
}

func encodeUnitPosition(u Unit) ([]byte, error) {
	return json.Marshal(UnitPositionMessage{ID: u.ID, X: u.X, Y: u.Y, Angle: u.Angle})
}

func encodeDisconnected(id UnitID) ([]byte, error) {
	return json.Marshal(DisconnectedMessage{Type: TypeDisconnected, ID: id})
}

func encodeObjects(objects []RoomObject) ([]byte, error) {
	if objects == nil {
		objects = []RoomObject{}
	}
	return json.Marshal(ObjectsMessage{Type: TypeObjects, Objects: objects})
}
