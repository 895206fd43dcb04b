package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backkem/ssession/pkg/session"
)

func listenCmd() *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Accept one peer, answer its handshake, and echo its messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			carrier, err := flags.listen()
			if err != nil {
				return err
			}
			defer carrier.Close()

			s, err := flags.newSession(carrier)
			if err != nil {
				return err
			}
			defer s.Destroy()

			if err := s.Negotiate(); err != nil {
				return fmt.Errorf("handshake: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "established with %q\n", s.PeerIdentity())

			for {
				data, err := s.Receive()
				switch {
				case err == nil:
				case session.StatusOf(err) == session.StatusTransportError:
					fmt.Fprintf(cmd.OutOrStdout(), "connection ended: %v\n", err)
					return nil
				case s.State() == session.StateEstablished:
					// Rejected message; the session is still usable.
					fmt.Fprintf(cmd.ErrOrStderr(), "dropped message: %v\n", err)
					continue
				default:
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", s.PeerIdentity(), data)
				if err := s.Send(data); err != nil {
					return err
				}
			}
		},
	}
	flags.register(cmd, ":4440")
	return cmd
}
