package session_test

import (
	"context"
	"encoding/hex"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"deeplink/cmd/identity"
	"deeplink/cmd/internal/auth/session"
	"deeplink/cmd/security/sr25519"
	"deeplink/cmd/internal/mocks"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	svc    *session.Service
	nonces *session.InMemoryNonceStore
	tokens session.TokenManager
	kp     *sr25519.Keypair
	user   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	cfg := session.DefaultConfig()
	cfg.JWTSecret = testSecret

	tokens, err := session.NewTokenManager(cfg)
	require.NoError(t, err)

	kp, err := sr25519.GenerateKeypair(cfg.SigningContext)
	require.NoError(t, err)

	nonces := session.NewInMemoryNonceStore()
	svc := session.NewService(cfg, nonces, sr25519.NewVerifier(cfg.SigningContext), nil, tokens)

	return fixture{
		svc:    svc,
		nonces: nonces,
		tokens: tokens,
		kp:     kp,
		user:   kp.Address(identity.GenericPrefix),
	}
}

func (f fixture) signed(t *testing.T, nonce uint64) string {
	t.Helper()
	sig, err := f.kp.SignHex([]byte(strconv.FormatUint(nonce, 10)))
	require.NoError(t, err)
	return sig
}

func (f fixture) login(t *testing.T, nonce uint64) (session.Issued, error) {
	t.Helper()
	return f.svc.Login(context.Background(), session.LoginInput{
		UserID:    f.user,
		DeviceID:  "482913375",
		Nonce:     nonce,
		Signature: f.signed(t, nonce),
	})
}

func (f fixture) stored(t *testing.T) uint64 {
	t.Helper()
	n, err := f.svc.CurrentNonce(context.Background(), f.user)
	require.NoError(t, err)
	return n
}

func TestLogin_Handshake(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.Equal(t, uint64(0), f.stored(t), "fresh user starts at 0")

	issued, err := f.login(t, 1)
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	require.Equal(t, f.user, issued.UserID)
	require.Equal(t, "482913375", issued.DeviceID)
	require.Equal(t, uint64(1), f.stored(t))

	claims, err := f.svc.ValidateToken(ctx, issued.Token, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, f.user, claims.UserID)
	require.Equal(t, "482913375", claims.DeviceID)

	// Replay of an accepted nonce.
	_, err = f.login(t, 1)
	require.ErrorIs(t, err, session.ErrNonceReplay)
	var re session.NonceReplayError
	require.ErrorAs(t, err, &re)
	require.Equal(t, uint64(1), re.Presented)
	require.Equal(t, uint64(1), re.Stored)
	require.False(t, re.Raced)
	require.Equal(t, uint64(1), f.stored(t))

	// Fresh nonce, signature over a different one.
	_, err = f.svc.Login(ctx, session.LoginInput{
		UserID: f.user, DeviceID: "482913375", Nonce: 2, Signature: f.signed(t, 3),
	})
	require.ErrorIs(t, err, session.ErrInvalidSignature)
	require.Equal(t, uint64(1), f.stored(t))

	// Gaps are allowed.
	_, err = f.login(t, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(5), f.stored(t))

	_, err = f.login(t, 4)
	require.ErrorIs(t, err, session.ErrNonceReplay)
}

func TestLogin_ZeroNonceIsReplay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.login(t, 0)
	require.ErrorIs(t, err, session.ErrNonceReplay)
}

func TestLogin_RejectsBadInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sig := f.signed(t, 1)

	cases := []struct {
		name string
		in   session.LoginInput
		want error
	}{
		{name: "empty user", in: session.LoginInput{DeviceID: "482913375", Nonce: 1, Signature: sig}, want: session.ErrInvalidInput},
		{name: "empty device", in: session.LoginInput{UserID: f.user, Nonce: 1, Signature: sig}, want: session.ErrInvalidInput},
		{name: "not an address", in: session.LoginInput{UserID: "alice", DeviceID: "482913375", Nonce: 1, Signature: sig}, want: session.ErrInvalidSignature},
		{name: "signature not hex", in: session.LoginInput{UserID: f.user, DeviceID: "482913375", Nonce: 1, Signature: "0xnothex"}, want: session.ErrInvalidSignature},
		{name: "signature too short", in: session.LoginInput{UserID: f.user, DeviceID: "482913375", Nonce: 1, Signature: "0xabcd"}, want: session.ErrInvalidSignature},
		{name: "other signer", in: session.LoginInput{UserID: "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", DeviceID: "482913375", Nonce: 1, Signature: sig}, want: session.ErrInvalidSignature},
	}

	for _, tc := range cases {
		_, err := f.svc.Login(ctx, tc.in)
		require.ErrorIs(t, err, tc.want, tc.name)
	}
	require.Equal(t, uint64(0), f.stored(t), "rejected logins must not move the nonce")
}

func TestLogin_ConcurrentSameNonceSingleWinner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sig := f.signed(t, 7)

	const n = 32
	var (
		wg        sync.WaitGroup
		successes int
		mu        sync.Mutex
		others    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Login(context.Background(), session.LoginInput{
				UserID: f.user, DeviceID: "482913375", Nonce: 7, Signature: sig,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			others = append(others, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	for _, err := range others {
		require.ErrorIs(t, err, session.ErrNonceReplay)
	}
	require.Equal(t, uint64(7), f.stored(t))
}

func TestLogin_StoreFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	user := "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

	t.Run("get", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		nonces := mocks.NewMockNonceStore(ctrl)
		nonces.EXPECT().Get(gomock.Any(), user).Return(uint64(0), boom).Times(2)

		svc := session.NewService(session.DefaultConfig(), nonces,
			mocks.NewMockSignatureVerifier(ctrl), nil, mocks.NewMockTokenManager(ctrl))

		_, err := svc.Login(context.Background(), session.LoginInput{
			UserID: user, DeviceID: "482913375", Nonce: 1, Signature: "0x00",
		})
		require.ErrorIs(t, err, session.ErrStore)
		require.ErrorIs(t, err, boom)

		_, err = svc.CurrentNonce(context.Background(), user)
		require.Error(t, err)
	})

	t.Run("set", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		nonces := mocks.NewMockNonceStore(ctrl)
		verifier := mocks.NewMockSignatureVerifier(ctrl)
		tokens := mocks.NewMockTokenManager(ctrl)

		gomock.InOrder(
			nonces.EXPECT().Get(gomock.Any(), user).Return(uint64(3), nil),
			verifier.EXPECT().Verify(user, []byte("4"), gomock.Any()).Return(true, nil),
			nonces.EXPECT().SetIfGreater(gomock.Any(), user, uint64(4)).Return(false, boom),
		)

		svc := session.NewService(session.DefaultConfig(), nonces, verifier, nil, tokens)
		_, err := svc.Login(context.Background(), session.LoginInput{
			UserID: user, DeviceID: "482913375", Nonce: 4, Signature: validLookingSig(),
		})
		require.ErrorIs(t, err, session.ErrStore)

		var se session.StoreError
		require.ErrorAs(t, err, &se)
		require.Equal(t, "session.Login", se.Op)
	})
}

func TestLogin_LostRaceIssuesNoToken(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	nonces := mocks.NewMockNonceStore(ctrl)
	verifier := mocks.NewMockSignatureVerifier(ctrl)
	tokens := mocks.NewMockTokenManager(ctrl) // no Issue expected
	user := "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

	nonces.EXPECT().Get(gomock.Any(), user).Return(uint64(1), nil)
	verifier.EXPECT().Verify(user, []byte("2"), gomock.Any()).Return(true, nil)
	nonces.EXPECT().SetIfGreater(gomock.Any(), user, uint64(2)).Return(false, nil)

	svc := session.NewService(session.DefaultConfig(), nonces, verifier, nil, tokens)
	_, err := svc.Login(context.Background(), session.LoginInput{
		UserID: user, DeviceID: "482913375", Nonce: 2, Signature: validLookingSig(),
	})
	require.ErrorIs(t, err, session.ErrNonceReplay)

	var re session.NonceReplayError
	require.ErrorAs(t, err, &re)
	require.True(t, re.Raced)
}

func TestLogin_NoncePersistedBeforeIssue(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	nonces := mocks.NewMockNonceStore(ctrl)
	verifier := mocks.NewMockSignatureVerifier(ctrl)
	tokens := mocks.NewMockTokenManager(ctrl)
	user := "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	gomock.InOrder(
		nonces.EXPECT().Get(gomock.Any(), user).Return(uint64(0), nil),
		verifier.EXPECT().Verify(user, []byte("9"), gomock.Any()).Return(true, nil),
		nonces.EXPECT().SetIfGreater(gomock.Any(), user, uint64(9)).Return(true, nil),
		tokens.EXPECT().Issue(user, "100000000", now).Return("", time.Time{}, errors.New("signer offline")),
	)

	svc := session.NewService(session.DefaultConfig(), nonces, verifier, nil, tokens)
	_, err := svc.Login(context.Background(), session.LoginInput{
		UserID: user, DeviceID: "100000000", Nonce: 9, Signature: validLookingSig(), Now: now,
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, session.ErrNonceReplay)
}

func TestLogin_StrictDeviceCheck(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	devices := mocks.NewMockDeviceLookup(ctrl)

	cfg := session.DefaultConfig()
	cfg.JWTSecret = testSecret
	cfg.RequireRegisteredDevice = true

	tokens, err := session.NewTokenManager(cfg)
	require.NoError(t, err)
	kp, err := sr25519.GenerateKeypair(cfg.SigningContext)
	require.NoError(t, err)
	user := kp.Address(identity.GenericPrefix)
	nonces := session.NewInMemoryNonceStore()

	svc := session.NewService(cfg, nonces, sr25519.NewVerifier(cfg.SigningContext), devices, tokens)

	sign := func(n uint64) string {
		s, err := kp.SignHex([]byte(strconv.FormatUint(n, 10)))
		require.NoError(t, err)
		return s
	}

	devices.EXPECT().Exists(gomock.Any(), "999999999").Return(false, nil)
	_, err = svc.Login(context.Background(), session.LoginInput{
		UserID: user, DeviceID: "999999999", Nonce: 1, Signature: sign(1),
	})
	require.ErrorIs(t, err, session.ErrDeviceNotRegistered)
	n, err := nonces.Get(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)

	devices.EXPECT().Exists(gomock.Any(), "482913375").Return(true, nil).Times(2)
	issued, err := svc.Login(context.Background(), session.LoginInput{
		UserID: user, DeviceID: "482913375", Nonce: 1, Signature: sign(1),
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), issued.Token, time.Now().UTC())
	require.NoError(t, err)
}

func TestValidateToken_Rejects(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ValidateToken(ctx, "", time.Now())
	require.ErrorIs(t, err, session.ErrInvalidToken)

	_, err = f.svc.ValidateToken(ctx, "not.a.token", time.Now())
	require.ErrorIs(t, err, session.ErrInvalidToken)

	issued, err := f.login(t, 1)
	require.NoError(t, err)
	_, err = f.svc.ValidateToken(ctx, issued.Token, issued.ExpiresAt.Add(time.Hour))
	require.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestCurrentNonce_RejectsEmptyUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.CurrentNonce(context.Background(), "   ")
	require.ErrorIs(t, err, session.ErrInvalidInput)
}

// validLookingSig is well-formed hex of the right length; mocks decide validity.
func validLookingSig() string {
	return "0x" + hex.EncodeToString(make([]byte, sr25519.SignatureLen))
}
