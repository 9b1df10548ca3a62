package tx

import (
	"bytes"
	"testing"

	"github.com/stratus-chain/stratus-cli/pkg/crypto"
	"github.com/stratus-chain/stratus-cli/pkg/types"
)

func testChainID() [types.ValueSize]byte {
	var id [types.ValueSize]byte
	id[types.ValueSize-1] = 1
	return id
}

func testTransaction(t *testing.T) *Transaction {
	t.Helper()
	addr, err := types.ParseAddress("0x1122334455667788990011223344556677889900")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	tx, err := NewBuilder(0, testChainID()).
		To(addr).
		Nonce("12345678901234567890").
		Quota(1073741824).
		ValidUntil(100).
		Data([]byte{0xde, 0xad, 0xbe, 0xef}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tx
}

func TestCanonicalBytesDeterministic(t *testing.T) {
	tx := testTransaction(t)

	a, err := tx.CanonicalBytes()
	if err != nil {
		t.Fatalf("CanonicalBytes: %v", err)
	}
	b, err := tx.CanonicalBytes()
	if err != nil {
		t.Fatalf("CanonicalBytes: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("same transaction encoded to different bytes")
	}
}

func TestCanonicalBytesFieldSensitivity(t *testing.T) {
	base := testTransaction(t)
	baseBytes, err := base.CanonicalBytes()
	if err != nil {
		t.Fatalf("CanonicalBytes: %v", err)
	}

	mutations := map[string]func(*Transaction){
		"version":     func(tx *Transaction) { tx.Version = 7 },
		"nonce":       func(tx *Transaction) { tx.Nonce = "999" },
		"quota":       func(tx *Transaction) { tx.Quota++ },
		"valid_until": func(tx *Transaction) { tx.ValidUntilBlock++ },
		"data":        func(tx *Transaction) { tx.Data = []byte{0x00} },
		"value":       func(tx *Transaction) { tx.Value[0] = 0xff },
		"chain_id":    func(tx *Transaction) { tx.ChainID[0] = 0xff },
		"to":          func(tx *Transaction) { tx.To = nil },
	}
	for name, mutate := range mutations {
		cp := *base
		cp.Data = append([]byte(nil), base.Data...)
		cp.To = append([]byte(nil), base.To...)
		mutate(&cp)

		got, err := cp.CanonicalBytes()
		if err != nil {
			t.Fatalf("%s: CanonicalBytes: %v", name, err)
		}
		if bytes.Equal(got, baseBytes) {
			t.Errorf("%s: mutated transaction encoded to identical bytes", name)
		}
	}
}

func TestCanonicalBytesRejectsBadFields(t *testing.T) {
	cases := map[string]Transaction{
		"short to":    {Nonce: "1", To: []byte{0x01, 0x02}},
		"empty nonce": {Nonce: ""},
		"long nonce":  {Nonce: string(make([]byte, MaxNonceLen+1))},
	}
	for name, tx := range cases {
		if _, err := tx.CanonicalBytes(); err == nil {
			t.Errorf("%s: expected EncodingError, got nil", name)
		} else if _, ok := err.(*EncodingError); !ok {
			t.Errorf("%s: expected *EncodingError, got %T", name, err)
		}
	}
}

func TestContractCreationHasNoDestination(t *testing.T) {
	tx, err := NewBuilder(0, testChainID()).
		Nonce("1").
		Quota(1).
		ValidUntil(1).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tx.To) != 0 {
		t.Errorf("contract creation draft has destination %x", tx.To)
	}
	if _, err := tx.CanonicalBytes(); err != nil {
		t.Errorf("CanonicalBytes: %v", err)
	}
}

func TestParsePosition(t *testing.T) {
	for _, in := range []string{"abc", "", "+x", "18446744073709551616"} {
		if _, err := ParsePosition(in); err == nil {
			t.Errorf("ParsePosition(%q): expected error", in)
		}
	}

	cases := []struct {
		in         string
		relative   bool
		current    uint64
		want       uint64
		resolveErr bool
	}{
		{in: "100", current: 0, want: 100},
		{in: "+95", relative: true, current: 10, want: 105},
		{in: "-5", relative: true, current: 10, want: 5},
		{in: "-11", relative: true, current: 10, resolveErr: true},
	}
	for _, tc := range cases {
		pos, err := ParsePosition(tc.in)
		if err != nil {
			t.Errorf("ParsePosition(%q): %v", tc.in, err)
			continue
		}
		if pos.Relative() != tc.relative {
			t.Errorf("ParsePosition(%q).Relative() = %v, want %v", tc.in, pos.Relative(), tc.relative)
		}
		got, err := pos.Resolve(tc.current)
		if tc.resolveErr {
			if err == nil {
				t.Errorf("Resolve(%q, %d): expected error", tc.in, tc.current)
			}
			continue
		}
		if err != nil {
			t.Errorf("Resolve(%q, %d): %v", tc.in, tc.current, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Resolve(%q, %d) = %d, want %d", tc.in, tc.current, got, tc.want)
		}
	}
}

func TestNewNonceUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		n, err := NewNonce()
		if err != nil {
			t.Fatalf("NewNonce: %v", err)
		}
		if n == "" || len(n) > MaxNonceLen {
			t.Fatalf("NewNonce returned %q", n)
		}
		if seen[n] {
			t.Fatalf("NewNonce repeated %q", n)
		}
		seen[n] = true
	}
}

// schemeSigner adapts a raw keypair to the Signer interface for tests.
type schemeSigner struct {
	scheme crypto.Scheme
	pub    []byte
	sk     []byte
	addr   types.Address
}

func newSchemeSigner(t *testing.T, ct crypto.Type) *schemeSigner {
	t.Helper()
	scheme := crypto.SchemeFor(ct)
	pub, sk, err := scheme.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	addr, err := scheme.DeriveAddress(pub)
	if err != nil {
		t.Fatalf("DeriveAddress: %v", err)
	}
	return &schemeSigner{scheme: scheme, pub: pub, sk: sk, addr: addr}
}

func (s *schemeSigner) Address() types.Address     { return s.addr }
func (s *schemeSigner) PublicKey() []byte          { return s.pub }
func (s *schemeSigner) Type() crypto.Type          { return s.scheme.Type() }
func (s *schemeSigner) Hash(msg []byte) types.Hash { return s.scheme.Hash(msg) }
func (s *schemeSigner) Sign(msg []byte) ([]byte, error) {
	return s.scheme.Sign(s.sk, s.pub, msg)
}

func TestSignAndVerifyBothSchemes(t *testing.T) {
	for _, ct := range []crypto.Type{crypto.Sm, crypto.Eth} {
		t.Run(ct.String(), func(t *testing.T) {
			signer := newSchemeSigner(t, ct)
			tx := testTransaction(t)

			signed, err := Sign(tx, signer)
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}
			if signed.Sender != signer.addr {
				t.Errorf("sender = %s, want %s", signed.Sender.Hex(), signer.addr.Hex())
			}
			if len(signed.Signature) != signer.scheme.SignatureSize() {
				t.Errorf("signature length = %d, want %d",
					len(signed.Signature), signer.scheme.SignatureSize())
			}

			canonical, err := tx.CanonicalBytes()
			if err != nil {
				t.Fatalf("CanonicalBytes: %v", err)
			}
			wantHash := signer.scheme.Hash(canonical)
			if signed.Hash != wantHash {
				t.Errorf("hash = %s, want %s", signed.Hash.Hex(), wantHash.Hex())
			}
			if !signer.scheme.Verify(signer.pub, signed.Signature, signed.Hash[:]) {
				t.Error("signature does not verify against the tx hash")
			}

			// Any flipped canonical byte must break verification.
			flipped := append([]byte(nil), canonical...)
			flipped[len(flipped)/2] ^= 0x01
			flippedHash := signer.scheme.Hash(flipped)
			if signer.scheme.Verify(signer.pub, signed.Signature, flippedHash[:]) {
				t.Error("signature verified against a mutated transaction")
			}

			encoded, err := signed.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			wantLen := len(canonical) + types.AddressSize + len(signed.Signature)
			if len(encoded) != wantLen {
				t.Errorf("encoded length = %d, want %d", len(encoded), wantLen)
			}
			if !bytes.HasPrefix(encoded, canonical) {
				t.Error("encoded bytes do not start with the canonical transaction")
			}
		})
	}
}

func TestBuilderRandomNonce(t *testing.T) {
	tx, err := NewBuilder(0, testChainID()).
		RandomNonce().
		Quota(1).
		ValidUntil(1).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tx.Nonce == "" {
		t.Error("RandomNonce left nonce empty")
	}
}
