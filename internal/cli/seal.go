package cli

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/veraison/go-cose"

	"github.com/Tankobot/pyble/blockstore"
	"github.com/Tankobot/pyble/seals"
	"github.com/Tankobot/pyble/story"
)

// NewSealCommand signs a commitment to the store's current head.
func NewSealCommand(opts *RootOptions) *cobra.Command {
	var keyPath, outPath, issuer string

	cmd := &cobra.Command{
		Use:   "seal",
		Short: "sign a commitment to the current store head",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadECKey(keyPath)
			if err != nil {
				return err
			}
			alg, err := coseAlgorithm(key.Curve)
			if err != nil {
				return err
			}

			s, err := blockstore.Open(opts.log, opts.StorePath)
			if err != nil {
				return err
			}
			defer s.Close()

			if s.Stored() == 0 {
				return fmt.Errorf("%s: nothing to seal, store is empty", opts.StorePath)
			}
			reg := story.NewRegistry()
			head, err := s.Identify(reg, s.Stored()-1)
			if err != nil {
				return err
			}
			headSid := head.SID()

			codec, err := seals.NewSealerCodec()
			if err != nil {
				return err
			}
			signer, err := cose.NewSigner(alg, key)
			if err != nil {
				return err
			}

			state := seals.StoreState{
				Version:   seals.StoreStateVersionCurrent,
				Stored:    s.Stored(),
				Head:      headSid[:],
				Timestamp: time.Now().UnixMilli(),
			}
			msg, err := seals.NewSealer(issuer, codec).Sign1(
				signer, keyPath, &key.PublicKey, opts.StorePath, state, nil)
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = opts.StorePath + ".seal"
			}
			if err := os.WriteFile(outPath, msg, 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sealed %d records at head %s to %s\n", state.Stored, headSid, outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyPath, "key", "k", "", "path to a PEM encoded EC private key")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "seal output path (default: store path + .seal)")
	cmd.Flags().StringVar(&issuer, "issuer", "pyble", "issuer recorded in the seal's CWT claims")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func loadECKey(path string) (*ecdsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

func coseAlgorithm(curve elliptic.Curve) (cose.Algorithm, error) {
	switch curve {
	case elliptic.P256():
		return cose.AlgorithmES256, nil
	case elliptic.P384():
		return cose.AlgorithmES384, nil
	case elliptic.P521():
		return cose.AlgorithmES512, nil
	}
	return 0, fmt.Errorf("unsupported curve %s", curve.Params().Name)
}
