package server

import (
	"encoding/json"
	"fmt"
	"os"
)

// Item 物体库存条目
type Item struct {
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

// RoomObject 房间内的静态物体（如箱子）：轴对齐矩形，X/Y 为中心点
type RoomObject struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Items  []Item  `json:"items"`
}

// DefaultObjects 未配置物体时使用的默认箱子
func DefaultObjects() []RoomObject {
	return []RoomObject{
		{X: 150, Y: 100, Width: 20, Height: 12, Items: []Item{{Name: "Wood", Amount: 3}, {Name: "Stone", Amount: 1}}},
	}
}

// ObjectRegistry 进程生命周期内只读的物体列表，编码结果在创建时缓存
type ObjectRegistry struct {
	objects []RoomObject
	payload []byte
}

// NewObjectRegistry 复制物体列表并预编码 objects 消息
func NewObjectRegistry(objects []RoomObject) (*ObjectRegistry, error) {
	cp := make([]RoomObject, len(objects))
	for i, o := range objects {
		o.Items = append([]Item(nil), o.Items...)
		if o.Items == nil {
			o.Items = []Item{}
		}
		cp[i] = o
	}
	payload, err := encodeObjects(cp)
	if err != nil {
		return nil, err
	}
	return &ObjectRegistry{objects: cp, payload: payload}, nil
}

// Objects 返回物体列表副本
func (r *ObjectRegistry) Objects() []RoomObject {
	out := make([]RoomObject, len(r.objects))
	copy(out, r.objects)
	return out
}

// Payload 已编码的 objects 消息，每个新连接原样发送
func (r *ObjectRegistry) Payload() []byte {
	return r.payload
}

// LoadObjectsFile 从 JSON 文件读取物体列表（数组）
func LoadObjectsFile(path string) ([]RoomObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read objects %s: %w", path, err)
	}
	var objects []RoomObject
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("decode objects %s: %w", path, err)
	}
	return objects, nil
}
