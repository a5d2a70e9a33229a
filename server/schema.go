package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/invopop/jsonschema"
)

// ProtocolSchema 由消息结构反射生成的协议 JSON Schema，便于客户端校验。
// 每个分支的 type 字段固定为对应的取值；客户端 ID 与服务端 ID 形状相同，根用 anyOf。
func ProtocolSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	reflectAs := func(title string, v any, types ...string) *jsonschema.Schema {
		s := reflector.Reflect(v)
		s.Version = ""
		s.Title = title
		if len(types) > 0 {
			pinType(s, types...)
		}
		return s
	}

	client := reflectAs(TypeRequestID+" / "+TypeID+" / "+TypeMove, &ClientMessage{}, TypeRequestID, TypeID, TypeMove)
	if id, ok := client.Properties.Get("ID"); ok {
		id.Minimum = json.Number("1")
		id.Maximum = json.Number(strconv.FormatInt(int64(MaxUnitID), 10))
	}
	clientSchema := &jsonschema.Schema{
		Title: "Client to server",
		OneOf: []*jsonschema.Schema{client},
	}
	serverSchema := &jsonschema.Schema{
		Title: "Server to client",
		OneOf: []*jsonschema.Schema{
			reflectAs(TypeID, &IDMessage{}, TypeID),
			reflectAs(TypePosition, &PositionMessage{}, TypePosition),
			// 无 type 字段：靠必填的 ID/x/y/angle 与其他分支区分
			reflectAs("unit position", &UnitPositionMessage{}),
			reflectAs(TypeDisconnected, &DisconnectedMessage{}, TypeDisconnected),
			reflectAs(TypeObjects, &ObjectsMessage{}, TypeObjects),
		},
	}
	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "roomsync protocol",
		Description: "JSON text frames exchanged over /ws",
		AnyOf:       []*jsonschema.Schema{clientSchema, serverSchema},
	}
}

// pinType 把 type 属性限制为给定取值
func pinType(s *jsonschema.Schema, types ...string) {
	prop, ok := s.Properties.Get("type")
	if !ok {
		return
	}
	prop.Enum = make([]any, 0, len(types))
	for _, t := range types {
		prop.Enum = append(prop.Enum, t)
	}
}

// HandleSchema GET /schema
func HandleSchema(rw http.ResponseWriter, r *http.Request) {
	data, err := json.MarshalIndent(ProtocolSchema(), "", "  ")
	if err != nil {
		http.Error(rw, fmt.Sprintf("marshal schema: %v", err), http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/schema+json")
	_, _ = rw.Write(data)
}
