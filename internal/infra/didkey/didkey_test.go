package didkey

import (
	"bytes"
	"crypto/ed25519"
	"math/rand"
	"strings"
	"testing"
)

func TestGenerateKeyPair_RoundTrip(t *testing.T) {
	svc := NewService()
	for i := 0; i < 32; i++ {
		kp, err := svc.GenerateKeyPair()
		if err != nil {
			t.Fatalf("GenerateKeyPair: %v", err)
		}
		if !strings.HasPrefix(kp.DID, "did:key:z") {
			t.Fatalf("unexpected did form: %s", kp.DID)
		}
		pub, ok := svc.DIDToPublicKey(kp.DID)
		if !ok {
			t.Fatalf("DIDToPublicKey failed for %s", kp.DID)
		}
		if !bytes.Equal(pub, kp.PublicKey) {
			t.Fatalf("recovered key mismatch for %s", kp.DID)
		}
		if svc.PublicKeyToDID(pub) != kp.DID {
			t.Fatalf("did encoding not deterministic for %s", kp.DID)
		}
	}
}

func TestKeyPairFromSeed_Deterministic(t *testing.T) {
	svc := NewService()
	seed := bytes.Repeat([]byte{0x42}, ed25519.SeedSize)
	a, err := svc.KeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("KeyPairFromSeed: %v", err)
	}
	b, err := svc.KeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("KeyPairFromSeed: %v", err)
	}
	if a.DID != b.DID {
		t.Fatalf("same seed produced different DIDs: %s vs %s", a.DID, b.DID)
	}
	if _, err := svc.KeyPairFromSeed(seed[:16]); err == nil {
		t.Fatal("expected error for short seed")
	}
}

func TestDIDToPublicKey_Malformed(t *testing.T) {
	svc := NewService()
	cases := []string{
		"",
		"did:key:",
		"did:web:example.com",
		"did:key:zzz0OIl", // invalid base58 alphabet
		"did:key:z6",      // too short
		"did:key:z" + Base58Encode(bytes.Repeat([]byte{1}, 34)), // wrong multicodec
	}
	for _, did := range cases {
		if _, ok := svc.DIDToPublicKey(did); ok {
			t.Fatalf("expected failure for %q", did)
		}
	}
}

func TestSignVerify_Soundness(t *testing.T) {
	svc := NewService()
	kp, err := svc.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 16; i++ {
		msg := make([]byte, 1+rng.Intn(256))
		rng.Read(msg)
		sig := svc.Sign(kp.PrivateKey, msg)
		if !svc.Verify(kp.PublicKey, msg, sig) {
			t.Fatal("valid signature rejected")
		}

		// single-bit mutations must break verification
		flip := func(b []byte) []byte {
			out := append([]byte(nil), b...)
			bit := rng.Intn(len(out) * 8)
			out[bit/8] ^= 1 << (bit % 8)
			return out
		}
		if svc.Verify(kp.PublicKey, flip(msg), sig) {
			t.Fatal("mutated message verified")
		}
		if svc.Verify(kp.PublicKey, msg, flip(sig)) {
			t.Fatal("mutated signature verified")
		}
		if svc.Verify(ed25519.PublicKey(flip(kp.PublicKey)), msg, sig) {
			t.Fatal("mutated public key verified")
		}
	}
}

func TestVerify_BadLengths(t *testing.T) {
	svc := NewService()
	kp, _ := svc.GenerateKeyPair()
	msg := []byte("hello")
	sig := svc.Sign(kp.PrivateKey, msg)
	if svc.Verify(kp.PublicKey[:16], msg, sig) {
		t.Fatal("short public key accepted")
	}
	if svc.Verify(kp.PublicKey, msg, sig[:32]) {
		t.Fatal("short signature accepted")
	}
}

func TestBase58_RoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{0},
		{0, 0, 0},
		{0, 0, 1, 2, 3},
		{0xff},
		bytes.Repeat([]byte{0xff}, 32),
	}
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 64; i++ {
		b := make([]byte, rng.Intn(64))
		rng.Read(b)
		cases = append(cases, b)
	}
	for _, in := range cases {
		enc := Base58Encode(in)
		out, err := Base58Decode(enc)
		if err != nil {
			t.Fatalf("decode %q: %v", enc, err)
		}
		if !bytes.Equal(out, in) && !(len(out) == 0 && len(in) == 0) {
			t.Fatalf("round trip mismatch: in=%x out=%x enc=%q", in, out, enc)
		}
	}
}

func TestBase58_LeadingZeroes(t *testing.T) {
	enc := Base58Encode([]byte{0, 0, 0xab})
	if !strings.HasPrefix(enc, "11") {
		t.Fatalf("leading zero bytes must encode as '1' characters, got %q", enc)
	}
	out, err := Base58Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(out, []byte{0, 0, 0xab}) {
		t.Fatalf("leading zeroes lost: %x", out)
	}
}

func TestBase58_Invalid(t *testing.T) {
	if _, err := Base58Decode("0OIl"); err == nil {
		t.Fatal("expected error for invalid alphabet characters")
	}
}
