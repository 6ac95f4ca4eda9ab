package main

import (
	"alcyxob/equipment-app/internal/api"
	"alcyxob/equipment-app/internal/app"
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/seed"
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Load lessons, people and equipment from a YAML fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := seed.LoadFile(ctx, args[0], seed.Repositories{
				People:    a.Repos.People,
				Lessons:   a.Repos.Lessons,
				Equipment: a.Repos.Equipment,
			}, a.Ledger)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d lessons, %d people, %d equipment items\n", len(res.Lessons), len(res.People), len(res.Equipment))
			for name, id := range res.Equipment {
				fmt.Printf("  %s  %s\n", id.Hex(), name)
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List equipment with its current state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			items, err := a.Equipment.ListEquipment(ctx)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("No equipment.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATE\tDETAIL")
			for i := range items {
				eq := &items[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", eq.ID.Hex(), eq.Name, stateLabel(eq.CurrentState()), stateDetail(eq.CurrentState()))
			}
			return w.Flush()
		})
	},
}

func stateLabel(s domain.OperationalState) string {
	switch s.Kind() {
	case domain.StateLockedOut:
		return color.New(color.FgRed).Sprint("LOCKED OUT")
	case domain.StateOnLoan:
		return color.New(color.FgYellow).Sprint("ON LOAN")
	default:
		return color.New(color.FgGreen).Sprint("AVAILABLE")
	}
}

func stateDetail(s domain.OperationalState) string {
	switch st := s.(type) {
	case domain.LockedOut:
		return fmt.Sprintf("by %s on %s", st.Lock.CompletedBy, st.Lock.Date.Format("2006-01-02"))
	case domain.OnLoan:
		detail := fmt.Sprintf("to %s, due %s", st.Loan.LentTo, st.Loan.DueBackDate.Format("2006-01-02"))
		if time.Now().After(st.Loan.DueBackDate) {
			detail += color.New(color.FgHiRed).Sprint(" (overdue)")
		}
		return detail
	}
	return ""
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <equipment-id> <borrower name>",
	Short: "Run the loan competency check without lending",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := primitive.ObjectIDFromHex(args[0])
		if err != nil {
			return fmt.Errorf("invalid equipment id %q", args[0])
		}
		borrower := strings.Join(args[1:], " ")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Oracle.Evaluate(ctx, id, borrower)
			if err != nil {
				return err
			}
			if result.IsClear() {
				color.New(color.FgGreen).Printf("%s is clear to borrow\n", borrower)
				return nil
			}
			color.New(color.FgYellow).Printf("%s: %s\n", result.Status, result.Message())
			return nil
		})
	},
}

var resetProgressCmd = &cobra.Command{
	Use:   "reset-progress <person-id> <lesson>...",
	Short: "Reset one person's progress in the named lessons",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := primitive.ObjectIDFromHex(args[0])
		if err != nil {
			return fmt.Errorf("invalid person id %q", args[0])
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			progress, err := a.Progress.ResetProgress(ctx, id, args[1:])
			if err != nil {
				return err
			}
			for _, lesson := range args[1:] {
				fmt.Printf("%s: %d%%\n", lesson, progress[lesson].Progress)
			}
			return nil
		})
	},
}

var ensureIndexesCmd = &cobra.Command{
	Use:   "ensure-indexes",
	Short: "Create MongoDB indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			ctx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			if err := a.EnsureIndexes(ctx); err != nil {
				return err
			}
			fmt.Println("Indexes are in place.")
			return nil
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <operator name>",
	Short: "Issue an operator token for the API",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		token, err := api.IssueOperatorToken(cfg.JWT.Secret, strings.Join(args, " "), ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
}
