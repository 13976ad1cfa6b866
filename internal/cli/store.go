package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tankobot/pyble/blockstore"
	"github.com/Tankobot/pyble/story"
)

// NewInitCommand creates a new block store file with the requested geometry.
func NewInitCommand(opts *RootOptions) *cobra.Command {
	var size, limit uint64

	cmd := &cobra.Command{
		Use:   "init",
		Short: "create an empty block store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := blockstore.Open(
				opts.log, opts.StorePath,
				blockstore.WithCreateSize(size),
				blockstore.WithCreateLimit(limit),
			)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "created %s: size %d, limit %d\n", opts.StorePath, s.Size(), s.Limit())
			return nil
		},
	}

	cmd.Flags().Uint64Var(&size, "size", blockstore.DefaultSize, "initial slot count")
	cmd.Flags().Uint64Var(&limit, "limit", blockstore.DefaultLimit, "maximum slot count")
	return cmd
}

// NewAppendCommand appends a node record for the given story text.
func NewAppendCommand(opts *RootOptions) *cobra.Command {
	var parentHex string

	cmd := &cobra.Command{
		Use:   "append STORY",
		Short: "append a node with the given story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := blockstore.Open(opts.log, opts.StorePath)
			if err != nil {
				return err
			}
			defer s.Close()

			parent := story.RootParent()
			if parentHex != "" {
				sid, err := parseSid(parentHex)
				if err != nil {
					return err
				}
				parent = story.UnresolvedParent(sid)
			}

			reg := story.NewRegistry()
			n, err := reg.New(args[0], parent)
			if err != nil {
				return err
			}
			i, err := s.Append(n)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "slot %d: %s\n", i, n.SID())
			return nil
		},
	}

	cmd.Flags().StringVarP(&parentHex, "parent", "p", "", "parent sid in hex (omit for a root node)")
	return cmd
}

// NewOptimizeCommand compacts colliding copies out of the store.
func NewOptimizeCommand(opts *RootOptions) *cobra.Command {
	var collide int

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "drop duplicate node records from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := blockstore.Open(opts.log, opts.StorePath)
			if err != nil {
				return err
			}
			defer s.Close()

			before := s.Stored()
			if err := s.Optimize(collide); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d -> %d\n", before, s.Stored())
			return nil
		},
	}

	cmd.Flags().IntVar(&collide, "collide", 2, "copy count at which an identity is considered colliding")
	return cmd
}

// NewResizeCommand changes the slot capacity of the store.
func NewResizeCommand(opts *RootOptions) *cobra.Command {
	var progressive bool

	cmd := &cobra.Command{
		Use:   "resize SIZE",
		Short: "grow or shrink the store to SIZE slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var size uint64
			if _, err := fmt.Sscanf(args[0], "%d", &size); err != nil {
				return fmt.Errorf("invalid size %q: %w", args[0], err)
			}

			s, err := blockstore.Open(opts.log, opts.StorePath)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Resize(size, progressive); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "size %d\n", s.Size())
			return nil
		},
	}

	cmd.Flags().BoolVar(&progressive, "progressive", false, "extend the file in chunks rather than all at once")
	return cmd
}

func parseSid(s string) (story.Sid, error) {
	var sid story.Sid
	b, err := hex.DecodeString(s)
	if err != nil {
		return sid, fmt.Errorf("invalid sid %q: %w", s, err)
	}
	if len(b) != story.DigestBytes {
		return sid, fmt.Errorf("invalid sid %q: want %d bytes, got %d", s, story.DigestBytes, len(b))
	}
	copy(sid[:], b)
	return sid, nil
}
