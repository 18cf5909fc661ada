package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cedarguard/internal/entity"
	"cedarguard/internal/session"
)

var checkCmd = &cobra.Command{
	Use:   "check <principal> <action> <resource>",
	Short: `Run a single authorization check, e.g. check 'User::"alice"' 'Action::"view"' 'Photo::"vacation.jpg"'`,
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		principal, err := entity.ParseUID(args[0])
		if err != nil {
			return fmt.Errorf("parsing principal: %w", err)
		}
		action, err := entity.ParseUID(args[1])
		if err != nil {
			return fmt.Errorf("parsing action: %w", err)
		}
		resource, err := entity.ParseUID(args[2])
		if err != nil {
			return fmt.Errorf("parsing resource: %w", err)
		}

		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		sess := rt.sess(principal)
		resp, err := sess.Run(context.Background(), session.Check(action, resource))
		if err != nil {
			return err
		}

		fmt.Printf("%s\n", resp.Decision)
		for _, result := range resp.Results {
			fmt.Printf("  %s on %s: %s (reasons=%v errors=%v)\n",
				result.Action, result.Resource, result.Decision, result.Reasons, result.Errors)
		}
		if !resp.Allowed() {
			cmd.SilenceUsage = true
			return fmt.Errorf("denied")
		}
		return nil
	},
}
