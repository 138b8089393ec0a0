package sr25519

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"deeplink/cmd/identity"
)

func mustKeypair(t *testing.T) *Keypair {
	t.Helper()

	kp, err := GenerateKeypair(DefaultContext)
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return kp
}

func TestVerify_ValidSignature(t *testing.T) {
	t.Parallel()

	kp := mustKeypair(t)
	addr := kp.Address(identity.GenericPrefix)
	msg := []byte(strconv.FormatUint(1, 10))

	sig, err := kp.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	ok, err := NewVerifier("").Verify(addr, msg, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid signature")
	}
}

func TestVerify_Mismatch(t *testing.T) {
	t.Parallel()

	alice := mustKeypair(t)
	bob := mustKeypair(t)
	v := NewVerifier(DefaultContext)

	sig, err := alice.Sign([]byte("7"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	cases := []struct {
		name string
		addr string
		msg  string
	}{
		{name: "other message", addr: alice.Address(identity.GenericPrefix), msg: "8"},
		{name: "other signer", addr: bob.Address(identity.GenericPrefix), msg: "7"},
	}

	for _, tc := range cases {
		ok, err := v.Verify(tc.addr, []byte(tc.msg), sig)
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", tc.name, err)
		}
		if ok {
			t.Fatalf("%s: expected verification failure", tc.name)
		}
	}
}

func TestVerify_ContextBound(t *testing.T) {
	t.Parallel()

	kp, err := GenerateKeypair("other-context")
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	msg := []byte("42")
	sig, err := kp.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	ok, err := NewVerifier(DefaultContext).Verify(kp.Address(identity.GenericPrefix), msg, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("signature must not verify under a different context")
	}
}

func TestVerify_MalformedInputs(t *testing.T) {
	t.Parallel()

	kp := mustKeypair(t)
	addr := kp.Address(identity.GenericPrefix)
	v := NewVerifier(DefaultContext)

	if _, err := v.Verify("not-an-address", []byte("1"), make([]byte, SignatureLen)); !errors.Is(err, ErrMalformedKey) {
		t.Fatalf("bad address: err=%v want ErrMalformedKey", err)
	}
	if _, err := v.Verify(addr, []byte("1"), make([]byte, 10)); !errors.Is(err, ErrMalformedSignature) {
		t.Fatalf("short signature: err=%v want ErrMalformedSignature", err)
	}
	// Zero bytes lack the schnorrkel marker bit and fail to decode.
	if _, err := v.Verify(addr, []byte("1"), make([]byte, SignatureLen)); !errors.Is(err, ErrMalformedSignature) {
		t.Fatalf("unmarked signature: err=%v want ErrMalformedSignature", err)
	}
}

func TestDecodeSignatureHex(t *testing.T) {
	t.Parallel()

	kp := mustKeypair(t)
	h, err := kp.SignHex([]byte("3"))
	if err != nil {
		t.Fatalf("SignHex: %v", err)
	}
	if !strings.HasPrefix(h, "0x") {
		t.Fatalf("SignHex=%q want 0x prefix", h)
	}

	withPrefix, err := DecodeSignatureHex(h)
	if err != nil {
		t.Fatalf("DecodeSignatureHex(0x): %v", err)
	}
	bare, err := DecodeSignatureHex(strings.TrimPrefix(h, "0x"))
	if err != nil {
		t.Fatalf("DecodeSignatureHex(bare): %v", err)
	}
	if string(withPrefix) != string(bare) || len(bare) != SignatureLen {
		t.Fatalf("decoded signatures differ or wrong length")
	}

	for _, in := range []string{"", "0x", "0xzz", strings.Repeat("ab", SignatureLen-1), strings.Repeat("g", SignatureLen*2)} {
		if _, err := DecodeSignatureHex(in); !errors.Is(err, ErrMalformedSignature) {
			t.Fatalf("DecodeSignatureHex(%q): err=%v want ErrMalformedSignature", in, err)
		}
	}
}

// Signature produced by a Substrate (sp_core) sr25519 signer over "1".
const (
	substrateAddress = "5Ebm13cUeSEFyAfC3oSwZaVuXKodbd79W8FHbXaPiG458hfJ"
	substrateSigHex  = "c46eee1875fd3a2ac7f4877080e17ecea2ab66f51bdaa1581acf92ca65323f5f415314242d5513c070ef7fbd78593c0a9116fdeb6288ff28d67a503f7e23bf84"
)

func TestVerify_SubstrateVector(t *testing.T) {
	t.Parallel()

	v := NewVerifier(DefaultContext)

	for _, in := range []string{substrateSigHex, "0x" + substrateSigHex} {
		sig, err := DecodeSignatureHex(in)
		if err != nil {
			t.Fatalf("DecodeSignatureHex(%q): %v", in, err)
		}

		ok, err := v.Verify(substrateAddress, []byte("1"), sig)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if !ok {
			t.Fatalf("substrate-signed vector must verify")
		}

		ok, err = v.Verify(substrateAddress, []byte("2"), sig)
		if err != nil {
			t.Fatalf("Verify other nonce: %v", err)
		}
		if ok {
			t.Fatalf("vector must not verify for another nonce")
		}
	}
}
