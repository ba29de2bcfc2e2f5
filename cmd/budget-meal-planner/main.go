package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budget-meal-planner/internal/app"
	"budget-meal-planner/internal/config"
	"budget-meal-planner/internal/logging"

	"github.com/goccy/go-json"
)

const dateLayout = "2006-01-02"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "ingest" {
		if err := cfg.RequireGhost(); err != nil {
			logger.Fatal().Err(err).Msg("ingestion needs a Ghost source")
		}
	}

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}

	err = run(ctx, rt, cmd, args)
	if cerr := rt.Close(); cerr != nil {
		logger.Warn().Err(cerr).Msg("failed to release resources")
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", cmd).Msg("command failed")
	}
}

func run(ctx context.Context, rt *app.Runtime, cmd string, args []string) error {
	a := rt.App
	switch cmd {
	case "ingest":
		report, err := a.Ingest(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Fetched %d posts: %d saved, %d unchanged, %d failed.\n", report.Fetched, report.Saved, report.Skipped, report.Failed)

	case "refresh":
		m, err := a.Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Model version %d fitted on %d users and %d recipes.\n", m.Version(), m.Users(), m.Recipes())

	case "plan":
		fs := flag.NewFlagSet("plan", flag.ExitOnError)
		user := fs.String("user", "default_user", "User id to plan for")
		week := fs.String("week", "", "Week start (YYYY-MM-DD), defaults to next Monday")
		asJSON := fs.Bool("json", false, "Print the plan as JSON")
		_ = fs.Parse(args)

		var weekStart time.Time
		if *week != "" {
			var err error
			if weekStart, err = time.Parse(dateLayout, *week); err != nil {
				return fmt.Errorf("invalid -week: %w", err)
			}
		}
		out, err := a.PlanWeek(ctx, *user, weekStart)
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(out)
		}
		fmt.Print(app.FormatPlan(out.Plan, out.Result))
		if out.Published != nil {
			fmt.Printf("Published as draft post %q.\n", out.Published.Title)
		}

	case "history":
		fs := flag.NewFlagSet("history", flag.ExitOnError)
		user := fs.String("user", "default_user", "User id")
		limit := fs.Int("n", 5, "Number of plans")
		_ = fs.Parse(args)

		plans, err := a.RecentPlans(ctx, *user, *limit)
		if err != nil {
			return err
		}
		for _, sp := range plans {
			status := "over budget"
			if sp.Summary.WithinBudget {
				status = "within budget"
			}
			fmt.Printf("%s  %s  %8.2f / %8.2f  %s\n", sp.Plan.WeekStart.Format(dateLayout), sp.Plan.ID, sp.Summary.FinalCost, sp.Summary.Budget, status)
		}

	case "recommend":
		fs := flag.NewFlagSet("recommend", flag.ExitOnError)
		user := fs.String("user", "default_user", "User id to recommend for")
		n := fs.Int("n", 0, "Number of recommendations, defaults to engine.top_n")
		_ = fs.Parse(args)

		recs, err := a.Recommend(ctx, *user, *n)
		if err != nil {
			return err
		}
		for i, r := range recs {
			fmt.Printf("%2d. %-30s %-9s %6.2f  score %.3f\n", i+1, r.Name, r.MealType, r.CostPerServing, r.Score)
		}

	case "similar":
		fs := flag.NewFlagSet("similar", flag.ExitOnError)
		id := fs.String("id", "", "Recipe id")
		k := fs.Int("k", 5, "Number of neighbours")
		_ = fs.Parse(args)

		neighbors, err := a.Similar(*id, *k)
		if err != nil {
			return err
		}
		for _, nb := range neighbors {
			fmt.Printf("%-30s %.3f\n", nb.RecipeID, nb.Score)
		}

	case "cost":
		fs := flag.NewFlagSet("cost", flag.ExitOnError)
		name := fs.String("name", "", "Ingredient name")
		category := fs.String("category", "", "Ingredient category")
		qty := fs.Float64("qty", 1, "Quantity")
		date := fs.String("date", "", "Date (YYYY-MM-DD), defaults to today")
		_ = fs.Parse(args)

		when := time.Now()
		if *date != "" {
			var err error
			if when, err = time.Parse(dateLayout, *date); err != nil {
				return fmt.Errorf("invalid -date: %w", err)
			}
		}
		price, err := a.PredictCost(*name, *category, *qty, when)
		if err != nil {
			return err
		}
		fmt.Printf("%.2f\n", price)

	case "metrics-cleanup":
		fs := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := fs.Int("days", 30, "Keep records for the last N days")
		_ = fs.Parse(args)

		affected, err := rt.Usage.Cleanup(ctx, *days)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)

	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printUsage() {
	fmt.Println("Usage: budget-meal-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest             Fetch recipe posts from Ghost and store them")
	fmt.Println("  refresh            Rebuild the similarity index and refit the collaborative model")
	fmt.Println("  plan               Plan a week: -user <id> [-week YYYY-MM-DD] [-json]")
	fmt.Println("  history            List recent plans: -user <id> [-n N]")
	fmt.Println("  recommend          Rank recipes for a user: -user <id> [-n N]")
	fmt.Println("  similar            Recipes like a given one: -id <recipe_id> [-k N]")
	fmt.Println("  cost               Project an ingredient cost: -name -category -qty [-date]")
	fmt.Println("  metrics-cleanup    Remove old LLM usage records: [-days N]")
}
