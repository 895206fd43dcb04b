package commands

import (
	"bufio"
	"fmt"

	"github.com/backkem/ssession/pkg/session"
	"github.com/spf13/cobra"
)

func connectCmd() *cobra.Command {
	var (
		flags sessionFlags
		rekey bool
	)
	cmd := &cobra.Command{
		Use:   "connect [message...]",
		Short: "Handshake with a listening peer and send messages",
		Long: "Handshake with a listening peer, send each argument (or each line of\n" +
			"standard input when there are none), and print the echoed reply.",
		RunE: func(cmd *cobra.Command, args []string) error {
			carrier, err := flags.dial()
			if err != nil {
				return err
			}
			defer carrier.Close()

			s, err := flags.newSession(carrier)
			if err != nil {
				return err
			}
			defer s.Destroy()

			if err := s.Connect(); err != nil {
				return err
			}
			if err := s.Negotiate(); err != nil {
				return fmt.Errorf("handshake: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "established with %q\n", s.PeerIdentity())

			if rekey {
				if err := s.Rekey(); err != nil {
					return err
				}
				if err := s.Negotiate(); err != nil {
					if s.State() != session.StateEstablished || s.AbortRekey() != nil {
						return fmt.Errorf("rekey: %w", err)
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "rekey abandoned, keeping current keys: %v\n", err)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "rekeyed")
				}
			}

			roundTrip := func(text string) error {
				if err := s.Send([]byte(text)); err != nil {
					return err
				}
				reply, err := s.Receive()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", s.PeerIdentity(), reply)
				return nil
			}

			if len(args) > 0 {
				for _, text := range args {
					if err := roundTrip(text); err != nil {
						return err
					}
				}
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if err := roundTrip(scanner.Text()); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
	flags.register(cmd, "127.0.0.1:4440")
	cmd.Flags().BoolVar(&rekey, "rekey", false, "rekey once before sending")
	return cmd
}
