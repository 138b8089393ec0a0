package realtime

//go:generate mockgen -source=dispatcher.go -destination=../mocks/realtime_deps.go -package=mocks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"deeplink/cmd/internal/auth/session"
	"deeplink/cmd/internal/device"
	"deeplink/cmd/security/token"
	v1 "deeplink/shared/contracts/session/v1"
)

var errBadParams = errors.New("bad params")

// Authenticator is the login side of the dispatcher (session.Service).
type Authenticator interface {
	CurrentNonce(ctx context.Context, userID string) (uint64, error)
	Login(ctx context.Context, in session.LoginInput) (session.Issued, error)
	ValidateToken(ctx context.Context, token string, now time.Time) (session.Claims, error)
}

// DeviceRegistrar allocates and stores devices (device.Allocator).
type DeviceRegistrar interface {
	Register(ctx context.Context, in device.RegisterInput) (device.Record, error)
}

// Observer receives session and request events. Implementations must be safe
// for concurrent use.
type Observer interface {
	SessionOpened()
	SessionClosed(received int)
	FrameDiscarded()
	Request(method string, code v1.Code)
}

type nopObserver struct{}

func (nopObserver) SessionOpened() {}
func (nopObserver) SessionClosed(int) {}
func (nopObserver) FrameDiscarded() {}
func (nopObserver) Request(string, v1.Code) {}

// SessionContext is the per-connection state handed to every dispatch.
type SessionContext struct {
	ConnID string
	Remote string
}

// Dispatcher turns one inbound text frame into one outbound frame.
type Dispatcher struct {
	auth    Authenticator
	devices DeviceRegistrar
	log     *slog.Logger
	obs     Observer
	now     func() time.Time
}

// NewDispatcher wires command handlers. obs may be nil.
func NewDispatcher(auth Authenticator, devices DeviceRegistrar, log *slog.Logger, obs Observer) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Dispatcher{
		auth:    auth,
		devices: devices,
		log:     log,
		obs:     obs,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// command is the closed set of request variants.
type command interface {
	method() string
}

type getNonceCmd struct{ v1.GetNonceParams }

type registerDeviceCmd struct{ v1.RegisterDeviceParams }

type loginCmd struct{ v1.LoginParams }

type unknownCmd struct{ name string }

func (getNonceCmd) method() string { return v1.MethodGetNonce }
func (registerDeviceCmd) method() string { return v1.MethodRegisterDevice }
func (loginCmd) method() string { return v1.MethodLogin }
func (c unknownCmd) method() string { return c.name }

func decodeCommand(req v1.Request) (command, error) {
	switch req.Method {
	case v1.MethodGetNonce:
		var c getNonceCmd
		if err := decodeParams(req.Params, &c.GetNonceParams); err != nil {
			return nil, err
		}
		return c, nil
	case v1.MethodRegisterDevice:
		var c registerDeviceCmd
		if err := decodeParams(req.Params, &c.RegisterDeviceParams); err != nil {
			return nil, err
		}
		return c, nil
	case v1.MethodLogin:
		var c loginCmd
		if err := decodeParams(req.Params, &c.LoginParams); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return unknownCmd{name: req.Method}, nil
	}
}

func decodeParams(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%w: missing params", errBadParams)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadParams, err)
	}
	return nil
}

// Dispatch handles one text frame and returns the reply frame.
// ok is false only when no reply could be encoded.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte, sc SessionContext) (reply []byte, ok bool) {
	if string(bytes.TrimSpace(raw)) == v1.PingFrame {
		return []byte(v1.PongFrame), true
	}

	log := d.log.With("conn_id", sc.ConnID)

	req, err := v1.DecodeRequest(raw)
	if err != nil {
		log.Info("ws.request.bad_frame", "err", err, "bytes", len(raw))
		d.obs.Request("", v1.CodeBadRequest)
		// req keeps the id of a frame that parsed but lacks a method; a frame
		// that is not JSON at all is answered with id 0.
		return d.errorReply(log, req.ID, "", v1.CodeBadRequest, "malformed request: "+err.Error())
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error("ws.dispatch.panic", "method", req.Method, "id", req.ID, "panic", fmt.Sprint(p))
			d.obs.Request(req.Method, v1.CodeInternal)
			reply, ok = d.errorReply(log, req.ID, req.Method, v1.CodeInternal, "internal error")
		}
	}()

	log = log.With("id", req.ID, "method", req.Method)
	if req.Token != "" {
		log = d.attachIdentity(ctx, log, req.Token)
	}

	cmd, err := decodeCommand(req)
	if err != nil {
		log.Info("ws.request.bad_params", "err", err)
		d.obs.Request(req.Method, v1.CodeBadRequest)
		return d.errorReply(log, req.ID, req.Method, v1.CodeBadRequest, err.Error())
	}

	var result any
	switch c := cmd.(type) {
	case getNonceCmd:
		result, err = d.getNonce(ctx, c)
	case registerDeviceCmd:
		result, err = d.registerDevice(ctx, log, c)
	case loginCmd:
		result, err = d.login(ctx, log, c)
	case unknownCmd:
		log.Info("ws.request.unknown_method")
		d.obs.Request("unknown", v1.CodeUnknownMethod)
		return d.errorReply(log, req.ID, req.Method, v1.CodeUnknownMethod, "unknown method: "+c.name)
	}

	if err != nil {
		code := codeFor(err)
		if code.Retryable() {
			log.Error("ws.request.fail", "code", code, "err", err)
		} else {
			log.Info("ws.request.rejected", "code", code, "err", err)
		}
		d.obs.Request(req.Method, code)
		return d.errorReply(log, req.ID, req.Method, code, publicMessage(code, err))
	}

	d.obs.Request(req.Method, v1.CodeOK)
	out, err := v1.EncodeResponse(req.ID, req.Method, v1.CodeOK, result)
	if err != nil {
		log.Error("ws.response.encode.fail", "err", err)
		return d.errorReply(log, req.ID, req.Method, v1.CodeInternal, "internal error")
	}
	return out, true
}

func (d *Dispatcher) getNonce(ctx context.Context, c getNonceCmd) (v1.GetNonceResult, error) {
	n, err := d.auth.CurrentNonce(ctx, c.UserID)
	if err != nil {
		return v1.GetNonceResult{}, err
	}
	return v1.GetNonceResult{Nonce: strconv.FormatUint(n, 10)}, nil
}

func (d *Dispatcher) registerDevice(ctx context.Context, log *slog.Logger, c registerDeviceCmd) (v1.RegisterDeviceResult, error) {
	rec, err := d.devices.Register(ctx, device.RegisterInput{
		DeviceName: c.DeviceName,
		MAC:        c.MAC,
		Now:        d.now(),
	})
	if err != nil {
		return v1.RegisterDeviceResult{}, err
	}
	log.Info("device.register.ok", "device_id", rec.DeviceID, "device_name", rec.DeviceName)
	return v1.RegisterDeviceResult{DeviceID: rec.DeviceID}, nil
}

func (d *Dispatcher) login(ctx context.Context, log *slog.Logger, c loginCmd) (v1.LoginResult, error) {
	issued, err := d.auth.Login(ctx, session.LoginInput{
		UserID:    c.UserID,
		DeviceID:  c.DeviceID,
		Nonce:     c.Nonce,
		Signature: c.Signature,
		Now:       d.now(),
	})
	if err != nil {
		return v1.LoginResult{}, err
	}
	log.Info("auth.login.ok",
		"user_id", issued.UserID,
		"device_id", issued.DeviceID,
		"nonce", issued.Nonce,
		"token_fp", token.Fingerprint(issued.Token),
		"expires_at", issued.ExpiresAt,
	)
	return v1.LoginResult{Token: issued.Token}, nil
}

// attachIdentity tags the request log with the token's identity. Tokens are
// not required by any method; an invalid one is only logged.
func (d *Dispatcher) attachIdentity(ctx context.Context, log *slog.Logger, tok string) *slog.Logger {
	claims, err := d.auth.ValidateToken(ctx, tok, d.now())
	if err != nil {
		log.Info("ws.token.invalid", "token_fp", token.Fingerprint(tok), "err", err)
		return log
	}
	return log.With("user_id", claims.UserID, "device_id", claims.DeviceID)
}

func (d *Dispatcher) errorReply(log *slog.Logger, id uint64, method string, code v1.Code, msg string) ([]byte, bool) {
	out, err := v1.EncodeResponse(id, method, code, v1.ErrorResult{Message: msg})
	if err != nil {
		log.Error("ws.response.encode.fail", "err", err)
		return nil, false
	}
	return out, true
}

func codeFor(err error) v1.Code {
	switch {
	case errors.Is(err, errBadParams),
		errors.Is(err, session.ErrInvalidInput),
		errors.Is(err, device.ErrInvalidInput):
		return v1.CodeBadRequest
	case errors.Is(err, session.ErrNonceReplay):
		return v1.CodeNonceReplay
	case errors.Is(err, session.ErrInvalidSignature):
		return v1.CodeBadSignature
	case errors.Is(err, session.ErrDeviceNotRegistered):
		return v1.CodeDeviceUnknown
	case errors.Is(err, device.ErrAllocationExhausted):
		return v1.CodeAllocationExhausted
	default:
		return v1.CodeInternal
	}
}

// publicMessage keeps backend details out of server error responses.
func publicMessage(code v1.Code, err error) string {
	switch code {
	case v1.CodeInternal:
		return "internal error, retry later"
	case v1.CodeAllocationExhausted:
		return "device id allocation exhausted, retry later"
	default:
		return err.Error()
	}
}
