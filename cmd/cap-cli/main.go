package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/campaign-autopilot/cap/internal/evaluate"
	"github.com/campaign-autopilot/cap/internal/models"
	"github.com/campaign-autopilot/cap/internal/rules"
	"github.com/campaign-autopilot/cap/internal/schedule"
)

var (
	serverURL string
	rootCmd   = &cobra.Command{
		Use:   "cap-cli",
		Short: "Campaign Autopilot Command Line Interface",
		Long:  `CLI tool for validating and dry-running campaign automation rules`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "autopilot worker URL")

	dryrunCmd.Flags().String("snapshot", "", "metrics snapshot YAML file")
	dryrunCmd.Flags().String("at", "", "evaluate schedules at this RFC3339 time instead of now")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(dryrunCmd)
	rootCmd.AddCommand(budgetCmd)
	rootCmd.AddCommand(healthCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate <rules.yaml>",
	Short: "Validate a rules file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := rules.LoadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d rule(s) valid\n", args[0], len(loaded))
		return nil
	},
}

var dryrunCmd = &cobra.Command{
	Use:   "dryrun <rules.yaml>",
	Short: "Evaluate rules against a metrics snapshot file without executing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshotPath, _ := cmd.Flags().GetString("snapshot")
		atFlag, _ := cmd.Flags().GetString("at")

		now := time.Now()
		if atFlag != "" {
			parsed, err := time.Parse(time.RFC3339, atFlag)
			if err != nil {
				return fmt.Errorf("invalid --at time: %w", err)
			}
			now = parsed
		}

		loaded, err := rules.LoadFile(args[0])
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		scheduler := schedule.NewScheduler(0, logger)
		evaluator := evaluate.NewEvaluator(logger)

		var snapshots map[string]models.Snapshot
		if snapshotPath != "" {
			snapshots, err = rules.LoadSnapshots(snapshotPath)
			if err != nil {
				return err
			}
		}

		for i := range loaded {
			rule := &loaded[i]
			due := scheduler.IsDue(rule, now)
			suffix := ""
			if rule.NotifyOnly() {
				suffix = " [notify-only]"
			}
			fmt.Printf("rule %s (%s): due=%v%s\n", rule.ID, rule.Name, due, suffix)

			if snapshots == nil {
				continue
			}
			for _, assignment := range rule.CampaignAssignments {
				for _, campaignID := range assignment.CampaignIDs {
					snap, ok := snapshots[campaignID]
					if !ok {
						fmt.Printf("  campaign %s: no snapshot\n", campaignID)
						continue
					}
					matched := evaluator.Evaluate(rule.ConditionGroups, snap)
					fmt.Printf("  campaign %s: conditions met=%v\n", campaignID, matched)
				}
			}
		}
		return nil
	},
}

var budgetCmd = &cobra.Command{
	Use:   "budget <current> <amount>",
	Short: "Preview budget math for an add_budget action",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid current budget: %w", err)
		}
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}

		raw := current + amount*100_000
		rounded := int64(math.Round(raw/500_000)) * 500_000
		fmt.Printf("current=%.0f amount=%.2f -> raw=%.0f rounded=%d\n", current, amount, raw, rounded)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check worker health",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(serverURL + "/healthz")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		fmt.Println(string(body))
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
