package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"marquee/internal/services/twilio"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification utilities",
	}

	notifyCmd.AddCommand(newNotifyTestCommand(ctx))
	return notifyCmd
}

func newNotifyTestCommand(ctx *commandContext) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test SMS using the configured Twilio credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			recipient := strings.TrimSpace(to)
			if recipient == "" {
				return fmt.Errorf("--to is required")
			}
			if strings.TrimSpace(cfg.Twilio.AccountSID) == "" {
				return fmt.Errorf("twilio credentials are not configured")
			}

			sender := twilio.NewSender(cfg)
			if err := sender.SendSMS(cmd.Context(), recipient, "Marquee test notification. You're all set!"); err != nil {
				return fmt.Errorf("send test sms: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test SMS sent to %s\n", recipient)
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipient phone number in E.164 format")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
