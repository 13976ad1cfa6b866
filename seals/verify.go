package seals

import (
	"crypto"

	"github.com/datatrails/go-datatrails-common/cbor"
	dtcose "github.com/datatrails/go-datatrails-common/cose"
	"github.com/veraison/go-cose"
)

type publicKeyProvider interface {
	PublicKey() (crypto.PublicKey, cose.Algorithm, error)
}

// DecodeSeal decodes the StoreState values from the signed message. See
// VerifySeal for a description of how to verify a seal.
func DecodeSeal(
	codec cbor.CBORCodec, msg []byte,
) (*dtcose.CoseSign1Message, StoreState, error) {
	signed, err := dtcose.NewCoseSign1MessageFromCBOR(msg, newSealDecOptions()...)
	if err != nil {
		return nil, StoreState{}, err
	}

	var unverifiedState StoreState
	if err = codec.UnmarshalInto(signed.Payload, &unverifiedState); err != nil {
		return nil, StoreState{}, err
	}
	return signed, unverifiedState, nil
}

// VerifySeal applies the provided state to the signed message and verifies
// the result.
//
// The head digest is removed from the payload before a seal is published, so
// a seal can only be verified by recovering the head from the store. The
// three steps are:
//  1. Use DecodeSeal to obtain the StoreState from the signed message. This
//     state will not verify, the head was detached after signing.
//  2. Read the store slot named by StoreState.Stored - 1 and take its
//     verified identity as the head.
//  3. Set the recovered head on the StoreState and call this function to
//     complete the verification.
func VerifySeal(
	codec cbor.CBORCodec, keyProvider publicKeyProvider, signed *dtcose.CoseSign1Message, unverifiedState StoreState, external []byte) error {

	payload, err := codec.MarshalCBOR(unverifiedState)
	if err != nil {
		return err
	}
	signed.Payload = payload
	return signed.VerifyWithProvider(keyProvider, external)
}
