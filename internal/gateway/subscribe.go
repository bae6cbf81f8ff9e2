package gateway

import (
	"encoding/json"
	"log/slog"
)

// Client message types.
const (
	TypeSubscribe   = "SUBSCRIBE"
	TypeUnsubscribe = "UNSUBSCRIBE"
)

// SubscribeMsg narrows the evaluations a client receives. Instruments add
// to the current set; an empty set means every instrument.
//
//	{"type":"SUBSCRIBE","req_id":"1","instruments":["EURUSD"],"decisions_only":true}
type SubscribeMsg struct {
	Type          string   `json:"type"`
	ReqID         string   `json:"req_id,omitempty"`
	Instruments   []string `json:"instruments"`
	DecisionsOnly bool     `json:"decisions_only,omitempty"`
}

// UnsubscribeMsg removes instruments from the client's set.
type UnsubscribeMsg struct {
	Type        string   `json:"type"`
	ReqID       string   `json:"req_id,omitempty"`
	Instruments []string `json:"instruments"`
}

// Ack confirms a subscription change with the resulting set.
type Ack struct {
	Type        string   `json:"type"`
	ReqID       string   `json:"req_id,omitempty"`
	Instruments []string `json:"instruments"`
}

// Pong answers a {"ping":N} keepalive.
type Pong struct {
	Type     string `json:"type"`
	Ping     int64  `json:"ping"`
	ServerTS int64  `json:"server_ts"`
}

// ErrorResponse reports a bad client message.
type ErrorResponse struct {
	Type  string `json:"type"`
	ReqID string `json:"req_id,omitempty"`
	Error string `json:"error"`
}

// SendJSON queues v for the client, dropping it if the buffer is full.
func SendJSON(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("[gateway] json marshal error", "error", err)
		return
	}
	c.enqueue(data)
}

// SendError queues an ERROR frame.
func SendError(c *Client, reqID, errMsg string) {
	SendJSON(c, ErrorResponse{
		Type:  "ERROR",
		ReqID: reqID,
		Error: errMsg,
	})
}
