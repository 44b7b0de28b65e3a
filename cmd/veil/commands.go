// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/veil"
	"github.com/luxfi/veil/pipeline"
	"github.com/luxfi/veil/vms/evm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	avatarFlag       = "avatar"
	avatarFileFlag   = "avatar-file"
	linksFlag        = "links"
	descriptionFlag  = "description"
	reinitOracleFlag = "reinit-oracle"

	watchRetryTimeout = 30 * time.Second
)

func init() {
	profileCmd.AddCommand(profileGetCmd)
	profileCmd.AddCommand(profileCreateCmd)
	profileCreateCmd.Flags().String(avatarFlag, "", "Avatar URL or data URI")
	profileCreateCmd.Flags().String(avatarFileFlag, "", "Image file to inline as the avatar (max 2MB)")
	profileCreateCmd.Flags().String(linksFlag, "", `Social links as JSON, e.g. {"x":"https://x.com/me"}`)
	profileCreateCmd.Flags().String(descriptionFlag, "", "Profile description (max 1000 characters)")
	profileCreateCmd.MarkFlagsMutuallyExclusive(avatarFlag, avatarFileFlag)

	messageCmd.AddCommand(messageSendCmd)
	messageSendCmd.Flags().Bool(reinitOracleFlag, false, "Re-initialize the relayer SDK once if it is unavailable")

	messagesCmd.AddCommand(messagesSentCmd)
	messagesCmd.AddCommand(messagesReceivedCmd)
	messagesCmd.AddCommand(messagesWithCmd)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List every existing profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		profiles, err := a.projection.ListProfiles(cmd.Context())
		if err != nil {
			return err
		}
		return writeProfiles(cmd.OutOrStdout(), profiles)
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Read or publish a profile",
}

var profileGetCmd = &cobra.Command{
	Use:   "get <address>",
	Short: "Show the profile of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		profile, ok, err := a.projection.GetProfile(cmd.Context(), owner)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "No profile for %s\n", owner)
			return nil
		}
		return writeProfile(cmd.OutOrStdout(), profile)
	},
}

var profileCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create or update the profile of the active account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fields := pipeline.ProfileFields{}
		fields.Avatar, _ = cmd.Flags().GetString(avatarFlag)
		fields.SocialLinks, _ = cmd.Flags().GetString(linksFlag)
		fields.Description, _ = cmd.Flags().GetString(descriptionFlag)
		if path, _ := cmd.Flags().GetString(avatarFileFlag); path != "" {
			avatar, err := pipeline.AvatarFromFile(path)
			if err != nil {
				return err
			}
			fields.Avatar = avatar
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		a.serveMetrics(cmd.Context())

		o, _, err := a.orchestrator(cmd.Context(), false)
		if err != nil {
			return err
		}
		result, err := o.SubmitProfile(cmd.Context(), fields)
		if err != nil {
			return describe(err)
		}
		return writeResult(cmd.OutOrStdout(), result)
	},
}

var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Send encrypted messages",
}

var messageSendCmd = &cobra.Command{
	Use:   "send <to> <text>",
	Short: "Encrypt text for a recipient and record it on the ledger",
	Long: `Encrypt text for a recipient and record it on the ledger.

Only the first 4 bytes of the UTF-8 encoding of the first 32 characters are
encrypted; texts sharing that prefix produce the same payload.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		a.serveMetrics(cmd.Context())

		o, runtime, err := a.orchestrator(cmd.Context(), true)
		if err != nil {
			return err
		}
		reinit, _ := cmd.Flags().GetBool(reinitOracleFlag)
		result, err := retryOracle(reinit, runtime, func() (*pipeline.Result, error) {
			return o.SubmitMessage(cmd.Context(), o.Sender(), to, args[1])
		})
		if err != nil {
			return describe(err)
		}
		return writeResult(cmd.OutOrStdout(), result)
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "List message records",
}

var messagesSentCmd = &cobra.Command{
	Use:   "sent <address>",
	Short: "List messages sent by an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		msgs, err := a.projection.Sent(cmd.Context(), owner)
		if err != nil {
			return err
		}
		return writeMessages(cmd.OutOrStdout(), msgs)
	},
}

var messagesReceivedCmd = &cobra.Command{
	Use:   "received <address>",
	Short: "List messages received by an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		msgs, err := a.projection.Received(cmd.Context(), owner)
		if err != nil {
			return err
		}
		return writeMessages(cmd.OutOrStdout(), msgs)
	},
}

var messagesWithCmd = &cobra.Command{
	Use:   "with <address> <peer>",
	Short: "List the messages an account exchanged with a peer, oldest first",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		peer, err := parseAddress(args[1])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		box, err := a.projection.Mailbox(cmd.Context(), owner)
		if err != nil {
			return err
		}
		return writeMessages(cmd.OutOrStdout(), box.With(peer))
	},
}

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Check that the signing session is on the required network, switching if needed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.ValidateWriter(); err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		_, guard, err := a.session(cmd.Context())
		if err != nil {
			return err
		}
		network := cfg.Network()
		if !guard.CheckNetwork(cmd.Context()) {
			fmt.Fprintf(cmd.OutOrStdout(), "Not connected to %s (chain %d)\n", network.Name, network.ChainID)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s (chain %d)\n", network.Name, network.ChainID)
		return nil
	},
}

var encodeCmd = &cobra.Command{
	Use:   "encode <text>",
	Short: "Show the numeric payload a message text encodes to",
	Args:  cobra.ExactArgs(1),
	// needs no configuration
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return writePayload(cmd.OutOrStdout(), veil.Encode(args[0]))
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-read the profile listing on every new head",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.ValidateWatcher(); err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		a.serveMetrics(ctx)

		ws, err := evm.Dial(ctx, cfg.WSURL)
		if err != nil {
			return err
		}
		defer ws.Close()

		sub := evm.NewSubscriber(logger, ws)
		if err := sub.Subscribe(ctx, watchRetryTimeout); err != nil {
			return err
		}
		defer sub.Cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-sub.Err():
				logger.Warn("Subscription dropped, resubscribing", zap.Error(err))
				if err := sub.Subscribe(ctx, watchRetryTimeout); err != nil {
					return err
				}
			case head := <-sub.Headers():
				if err := a.board.Refresh(ctx); err != nil {
					logger.Warn(
						"Failed to refresh profiles",
						zap.Stringer("block", head.Number),
						zap.Error(err),
					)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "block %s: %d profiles\n", head.Number, len(a.board.Profiles()))
			}
		}
	},
}

type oracleRuntime interface {
	Ready() bool
	Reset()
}

// retryOracle runs submit and, when reinit is set and the relayer SDK failed
// to initialize, resets the remembered failure and runs it once more.
func retryOracle[T any](reinit bool, runtime oracleRuntime, submit func() (T, error)) (T, error) {
	result, err := submit()
	if !reinit || !errors.Is(err, veil.ErrOracleUnavailable) || runtime.Ready() {
		return result, err
	}
	logger.Info(
		"Re-initializing relayer SDK",
		zap.Error(err),
	)
	runtime.Reset()
	return submit()
}

// describe renders a pipeline failure with its most specific reason.
func describe(err error) error {
	kind := veil.KindOf(err)
	if kind == veil.KindUnknown {
		return err
	}
	if kind.Retryable() {
		return fmt.Errorf("%s: %s (you can retry)", kind, veil.Reason(err))
	}
	return fmt.Errorf("%s: %s", kind, veil.Reason(err))
}
