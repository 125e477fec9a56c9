// Package jws produces and checks the JWS-shaped envelope attached to
// evidence bundles. The default signer is an HSM stub: the envelope shape is
// real, the signature is a keyless digest, and hsm_stub.enabled=false tells
// every downstream consumer that the signature is simulated. That flag is
// legal-liability-relevant and must never be dropped.
package jws

import (
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/tarifflane/corpuslane/pkg/canonhash"
)

var (
	ErrMalformedEnvelope  = errors.New("malformed jws envelope")
	ErrSignatureMismatch  = errors.New("signature mismatch")
	ErrPayloadMismatch    = errors.New("payload does not reproduce signed bytes")
	ErrUnsupportedAlg     = errors.New("unsupported algorithm")
)

type HSMStub struct {
	Enabled bool `json:"enabled"`
}

type Envelope struct {
	Protected string  `json:"protected"`
	Payload   string  `json:"payload"`
	Signature string  `json:"signature"`
	HSMStub   HSMStub `json:"hsm_stub"`
}

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid,omitempty"`
}

// Signer wraps a canonical payload into an envelope. A production deployment
// replaces StubSigner with an HSM-backed implementation behind this interface.
type Signer interface {
	Sign(payload []byte) (Envelope, error)
}

// StubSigner simulates signing: the signature is the SHA256 of the JWS
// signing input, so verification is possible but carries no key material.
type StubSigner struct {
	KeyID string
}

const stubAlg = "S256-STUB"

func (s StubSigner) Sign(payload []byte) (Envelope, error) {
	hdr, err := json.Marshal(header{Alg: stubAlg, Typ: "JWT", Kid: s.KeyID})
	if err != nil {
		return Envelope{}, err
	}
	protected := base64.RawURLEncoding.EncodeToString(hdr)
	body := base64.RawURLEncoding.EncodeToString(payload)
	return Envelope{
		Protected: protected,
		Payload:   body,
		Signature: stubSignature(protected, body),
		HSMStub:   HSMStub{Enabled: false},
	}, nil
}

func stubSignature(protected, payload string) string {
	digest := canonhash.SumBytes([]byte(protected + "." + payload))
	return base64.RawURLEncoding.EncodeToString([]byte(digest))
}

// Verify checks that env's payload decodes, that it equals expectedPayload
// when given, and that the signature matches for the stub algorithm.
func Verify(env Envelope, expectedPayload []byte) error {
	if env.Protected == "" || env.Payload == "" || env.Signature == "" {
		return ErrMalformedEnvelope
	}
	hdrBytes, err := base64.RawURLEncoding.DecodeString(env.Protected)
	if err != nil {
		return ErrMalformedEnvelope
	}
	var hdr header
	if err := json.Unmarshal(hdrBytes, &hdr); err != nil {
		return ErrMalformedEnvelope
	}
	payload, err := base64.RawURLEncoding.DecodeString(env.Payload)
	if err != nil {
		return ErrMalformedEnvelope
	}
	if expectedPayload != nil && string(payload) != string(expectedPayload) {
		return ErrPayloadMismatch
	}
	if env.HSMStub.Enabled || hdr.Alg != stubAlg {
		// Real HSM envelopes need the production verifier and its key set.
		return ErrUnsupportedAlg
	}
	want := stubSignature(env.Protected, env.Payload)
	if !hmac.Equal([]byte(want), []byte(env.Signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

// DecodePayload returns the raw signed payload bytes.
func DecodePayload(env Envelope) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(env.Payload)
	if err != nil {
		return nil, ErrMalformedEnvelope
	}
	return b, nil
}
