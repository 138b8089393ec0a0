// Package v1 defines the deeplink session protocol v1 contract.
//
// It is shared between the server and clients (see tools/scripts/ws-smoke.go)
// so the wire format has a single source of truth.
package v1

import (
	"encoding/json"
	"errors"
	"strings"
)

// Liveness frames. They are exchanged verbatim and bypass JSON decoding.
const (
	PingFrame = "ping"
	PongFrame = "pong"
)

// Method names (wire-stable).
const (
	// MethodGetNonce returns the last accepted login nonce for a user.
	MethodGetNonce = "getNonce"
	// MethodRegisterDevice allocates a device id and stores the device record.
	MethodRegisterDevice = "registerDevice"
	// MethodLogin runs the signed nonce handshake and returns an access token.
	MethodLogin = "login"
)

// Code is the numeric status carried by every response.
//
// 0 is success. 1xxx are client errors (fix the request). 2xxx are server
// errors (retry later).
type Code int32

const (
	CodeOK Code = 0

	CodeBadRequest    Code = 1001
	CodeUnknownMethod Code = 1002
	CodeNonceReplay   Code = 1003
	CodeBadSignature  Code = 1004
	CodeDeviceUnknown Code = 1005
	CodeRateLimited   Code = 1006

	CodeInternal            Code = 2001
	CodeAllocationExhausted Code = 2002
)

// Retryable reports whether a client may retry the same request unchanged.
func (c Code) Retryable() bool { return c >= 2000 || c == CodeRateLimited }

// Request is the client -> server envelope.
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Token  string          `json:"token"`
	Params json.RawMessage `json:"params"`
}

// Response is the server -> client envelope. ID and Method echo the request.
type Response struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Code   Code            `json:"code"`
	Result json.RawMessage `json:"result"`
}

// DecodeRequest parses a text frame into a Request. When the frame is JSON but
// carries no method, the partially decoded Request is returned with the error.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, err
	}
	if strings.TrimSpace(req.Method) == "" {
		return req, errors.New("missing field: method")
	}
	return req, nil
}

// EncodeResponse marshals a response with the given result payload.
func EncodeResponse(id uint64, method string, code Code, result any) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Response{ID: id, Method: method, Code: code, Result: raw})
}

// GetNonceParams is the payload of getNonce.
type GetNonceParams struct {
	UserID string `json:"user_id"`
}

// GetNonceResult carries the nonce as a decimal string.
type GetNonceResult struct {
	Nonce string `json:"nonce"`
}

// RegisterDeviceParams is the payload of registerDevice.
type RegisterDeviceParams struct {
	DeviceName string `json:"device_name"`
	MAC        string `json:"mac"`
}

// RegisterDeviceResult returns the allocated 9-digit device id.
type RegisterDeviceResult struct {
	DeviceID string `json:"device_id"`
}

// LoginParams is the payload of login. Signature is hex, optionally 0x-prefixed,
// over the ASCII decimal form of Nonce.
type LoginParams struct {
	UserID    string `json:"user_id"`
	DeviceID  string `json:"device_id"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

// LoginResult returns the signed access token.
type LoginResult struct {
	Token string `json:"token"`
}

// ErrorResult is the result body of any response with a non-zero code.
type ErrorResult struct {
	Message string `json:"message"`
}
