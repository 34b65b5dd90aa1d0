package proto

import (
	"encoding/json"
	"fmt"
)

// MsgType is the closed discriminator set for envelope payloads.
type MsgType string

const (
	HubConnectInd     MsgType = "hub_connect_ind"
	APRegisterReq     MsgType = "ap_register_req"
	APRegisterRsp     MsgType = "ap_register_rsp"
	RTRegisterReq     MsgType = "rt_register_req"
	RTRegisterRsp     MsgType = "rt_register_rsp"
	StartHeartbeatReq MsgType = "start_heartbeat_req"
	HeartbeatStatsReq MsgType = "heartbeat_stats_req"
	HeartbeatStatsRsp MsgType = "heartbeat_stats_rsp"
)

// Envelope is the tagged-union wire message: every frame carries the
// address of the node it targets or originates from, a msg_type
// discriminator, and a type-specific payload.
type Envelope struct {
	Address Address         `json:"address"`
	MsgType MsgType         `json:"msg_type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HubConnectIndBody is sent exactly once by a worker when its downlink
// subscription is active and ready.
type HubConnectIndBody struct{}

// APRegisterReqBody requests that a worker register an AP against the NMS.
type APRegisterReqBody struct {
	AUID             string `json:"auid"`
	HubAUID          string `json:"hub_auid"`
	HeartbeatSeconds int    `json:"heartbeat_seconds"`
	AzimuthDeg       int    `json:"azimuth_deg"`
}

// APRegisterRspBody reports the outcome of an AP registration attempt.
type APRegisterRspBody struct {
	Success      bool   `json:"success"`
	RegisteredAt string `json:"registered_at"`
}

// RTRegisterReqBody requests that a worker register an RT against the NMS.
type RTRegisterReqBody struct {
	AUID             string `json:"auid"`
	APAUID           string `json:"ap_auid"`
	HeartbeatSeconds int    `json:"heartbeat_seconds"`
}

// RTRegisterRspBody reports the outcome of an RT registration attempt.
type RTRegisterRspBody struct {
	Success      bool   `json:"success"`
	RegisteredAt string `json:"registered_at"`
}

// StartHeartbeatReqBody asks the worker to start heartbeating the node at
// Envelope.Address (any granularity: hub, AP, or RT).
type StartHeartbeatReqBody struct{}

// HeartbeatStatsReqBody requests a stats snapshot, optionally resetting the
// counters after reading them.
type HeartbeatStatsReqBody struct {
	Reset bool `json:"reset"`
}

// HeartbeatStatsRspBody is the counter snapshot for the addressed node and
// its descendants.
type HeartbeatStatsRspBody struct {
	Success int64 `json:"success"`
	Failure int64 `json:"failure"`
}

// Encode marshals payload and sets it on the envelope.
func Encode(addr Address, msgType MsgType, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("proto: encode %s payload: %w", msgType, err)
	}
	return Envelope{Address: addr, MsgType: msgType, Payload: raw}, nil
}

// DecodePayload unmarshals an envelope's payload into out, validating that
// the envelope's discriminator matches want. Unknown discriminators are
// rejected by the caller before DecodePayload is reached (see Decode).
func DecodePayload(e Envelope, want MsgType, out any) error {
	if e.MsgType != want {
		return fmt.Errorf("proto: expected msg_type %s, got %s", want, e.MsgType)
	}
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, out)
}

// knownMsgTypes is the closed discriminator set; Decode rejects anything
// outside it rather than silently coercing an unknown variant.
var knownMsgTypes = map[MsgType]bool{
	HubConnectInd:     true,
	APRegisterReq:     true,
	APRegisterRsp:     true,
	RTRegisterReq:     true,
	RTRegisterRsp:     true,
	StartHeartbeatReq: true,
	HeartbeatStatsReq: true,
	HeartbeatStatsRsp: true,
}

// Decode parses a JSON envelope and validates its discriminator against
// the closed set of known message types. It does not interpret Payload;
// callers use DecodePayload once they know which variant they have.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("proto: decode envelope: %w", err)
	}
	if !knownMsgTypes[e.MsgType] {
		return Envelope{}, fmt.Errorf("proto: unknown msg_type %q", e.MsgType)
	}
	return e, nil
}

// Marshal encodes the envelope back to JSON bytes.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
