// Package seals produces and verifies signed commitments to a store head.
//
// A seal is a COSE Sign1 message over a CBOR encoded StoreState. Publishing a
// seal commits the signer to a specific chain head at a specific occupancy;
// because every node identity commits to its whole lineage, any later
// rewriting of history is evident against the sealed head.
package seals

import (
	"crypto/ecdsa"
	"crypto/rand"

	dtcbor "github.com/datatrails/go-datatrails-common/cbor"
	dtcose "github.com/datatrails/go-datatrails-common/cose"
	"github.com/veraison/go-cose"

	"github.com/Tankobot/pyble/story"
)

// StoreStateVersionCurrent is written into every new seal. Decoders accept
// lower versions, the field gates future changes to the state layout.
const StoreStateVersionCurrent = int(1)

// StoreState defines the details included in a signed commitment to a store
// head.
type StoreState struct {
	Version int `cbor:"0,keyasint,omitempty"`
	// Stored is the occupancy of the store at sealing time. All subsequent
	// states of an append only store contain everything this one did, so the
	// pair (Stored, Head) remains checkable against any later state.
	Stored uint64 `cbor:"1,keyasint"`
	Head   []byte `cbor:"2,keyasint"`
	// Timestamp is the unix time (milliseconds) read at the time the head
	// was signed. Including it allows the same head to be re-signed.
	Timestamp int64 `cbor:"3,keyasint"`
}

// HeadSid returns the sealed head as a node identity.
func (s StoreState) HeadSid() (story.Sid, bool) {
	if len(s.Head) != story.DigestBytes {
		return story.Sid{}, false
	}
	var sid story.Sid
	copy(sid[:], s.Head)
	return sid, true
}

// Sealer produces a signature over a store state. The signature commits to a
// head, and should only be created and published after checking the new head
// extends the previously sealed one (Retrace from the new head must pass
// through the old).
type Sealer struct {
	issuer    string
	cborCodec dtcbor.CBORCodec
}

func NewSealer(issuer string, cborCodec dtcbor.CBORCodec) Sealer {
	return Sealer{
		issuer:    issuer,
		cborCodec: cborCodec,
	}
}

// Sign1 signs the provided state. The head digest is detached from the
// published payload on purpose: verifiers are forced to recover the head from
// the store itself rather than trusting the message.
func (rs Sealer) Sign1(coseSigner cose.Signer, keyIdentifier string, publicKey *ecdsa.PublicKey, subject string, state StoreState, external []byte) ([]byte, error) {
	payload, err := rs.cborCodec.MarshalCBOR(state)
	if err != nil {
		return nil, err
	}

	coseHeaders := cose.Headers{
		Protected: cose.ProtectedHeader{
			dtcose.HeaderLabelCWTClaims: dtcose.NewCNFClaim(
				rs.issuer, subject, keyIdentifier, coseSigner.Algorithm(), *publicKey),
		},
	}

	msg := cose.Sign1Message{
		Headers: coseHeaders,
		Payload: payload,
	}
	if err = msg.Sign(rand.Reader, external, coseSigner); err != nil {
		return nil, err
	}

	state.Head = nil
	payload, err = rs.cborCodec.MarshalCBOR(state)
	if err != nil {
		return nil, err
	}
	msg.Payload = payload

	return msg.MarshalCBOR()
}

// NewSealerCodec returns the deterministic CBOR codec seals are encoded
// with.
func NewSealerCodec() (dtcbor.CBORCodec, error) {
	codec, err := dtcbor.NewCBORCodec(
		dtcbor.NewDeterministicEncOpts(),
		dtcbor.NewDeterministicDecOpts(), // unsigned int decodes to uint64
	)
	if err != nil {
		return dtcbor.CBORCodec{}, err
	}
	return codec, nil
}

func newSealDecOptions() []dtcose.SignOption {
	return []dtcose.SignOption{dtcose.WithDecOptions(dtcbor.NewDeterministicDecOpts())}
}
