package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tankobot/pyble/blockstore"
	"github.com/Tankobot/pyble/story"
)

// NewTraceCommand prints the lineage of a stored node, leaf first.
func NewTraceCommand(opts *RootOptions) *cobra.Command {
	var slot int64
	var stopHex string

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "print the parent lineage of a stored node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := blockstore.Open(opts.log, opts.StorePath)
			if err != nil {
				return err
			}
			defer s.Close()

			if s.Stored() == 0 {
				return fmt.Errorf("%s: store is empty", opts.StorePath)
			}
			if slot < 0 {
				slot = int64(s.Stored()) - 1
			}

			// Load every record first so cross slot parent links resolve.
			reg := story.NewRegistry()
			nodes, err := loadAll(s, reg)
			if err != nil {
				return err
			}
			if uint64(slot) >= uint64(len(nodes)) || nodes[slot] == nil {
				return fmt.Errorf("slot %d holds no decodable node", slot)
			}

			var stop story.Sid
			if stopHex != "" {
				if stop, err = parseSid(stopHex); err != nil {
					return err
				}
			}

			for _, n := range nodes[slot].Retrace(stop) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", n.SID(), n.Story())
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&slot, "slot", -1, "slot to trace from (default: last stored)")
	cmd.Flags().StringVar(&stopHex, "stop", "", "sid to stop before, in hex")
	return cmd
}

// NewVerifyCommand re-derives the identity of every stored record.
func NewVerifyCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "check every stored record against its embedded identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := blockstore.Open(opts.log, opts.StorePath)
			if err != nil {
				return err
			}
			defer s.Close()

			reg := story.NewRegistry()
			var ok, empty, corrupt uint64
			for i := uint64(0); i < s.Stored(); i++ {
				_, err := s.Identify(reg, i)
				switch {
				case err == nil:
					ok++
				case errors.Is(err, blockstore.ErrBlockEmpty):
					empty++
				case errors.Is(err, blockstore.ErrBlockCorrupt):
					corrupt++
					fmt.Fprintf(cmd.OutOrStdout(), "slot %d: %v\n", i, err)
				default:
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok %d, empty %d, corrupt %d\n", ok, empty, corrupt)
			if corrupt > 0 {
				return fmt.Errorf("%d corrupt records", corrupt)
			}
			return nil
		},
	}
	return cmd
}

// loadAll interns every decodable record in slot order. Slots that are empty
// or corrupt yield a nil entry rather than an error, verify is the command
// that reports on those.
func loadAll(s *blockstore.Store, reg *story.Registry) ([]*story.Node, error) {
	nodes := make([]*story.Node, s.Stored())
	for i := uint64(0); i < s.Stored(); i++ {
		data, err := s.ReadBlock(i)
		if err != nil {
			return nil, err
		}
		n, err := story.UnmarshalNode(reg, data)
		if err != nil {
			continue
		}
		nodes[i] = n
	}
	return nodes, nil
}
