// Command admin runs operator tasks against the evaluation database:
// migrations, rubric seeding, semester grade reports and rubric text checks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/Haole1945/drl-platform-sub001/internal/config"
	"github.com/Haole1945/drl-platform-sub001/internal/db"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
	"github.com/Haole1945/drl-platform-sub001/internal/migrations"
)

const usage = `usage: admin <command> [flags]

commands:
  migrate                       apply database migrations
  seed -file seed.yaml          create a rubric and its evaluation periods
  report -semester 2024-2025-HK1  print the grade report of a semester
  parse -file criterion.txt [-max 20]  preview the sub-criteria of a description`

var errHelp = errors.New("help provided")

func main() {
	if err := run(context.Background(), os.Args); err != nil {
		if err != errHelp {
			color.Red("error: %v", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(usage)
}

func run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		printUsage()
		return errHelp
	}
	cmd, rest := args[1], args[2:]
	switch cmd {
	case "migrate":
		return runMigrate()
	case "seed":
		return runSeed(ctx, rest)
	case "report":
		return runReport(ctx, rest)
	case "parse":
		return runParse(rest)
	default:
		printUsage()
		return errHelp
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	return cfg, nil
}

func runMigrate() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	files, err := migrations.Files()
	if err != nil {
		return err
	}
	if err := migrations.Run(cfg.DatabaseURL); err != nil {
		return err
	}
	color.Green("Migrations applied (%d files embedded)", len(files))
	return nil
}

func runSeed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	file := fs.String("file", "seed.yaml", "YAML file with a rubric and its periods")
	_ = fs.Parse(args)

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()
	seed, err := readSeed(f)
	if err != nil {
		return err
	}
	for _, w := range capWarnings(seed.Rubric) {
		color.Yellow("warning: %s", w)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dbase := db.MustOpen(cfg.DatabaseURL)
	defer dbase.Close()

	rubrics := &db.Rubrics{DB: dbase}
	if err := rubrics.Create(ctx, &seed.Rubric); err != nil {
		return err
	}
	color.Green("Created rubric %d %q with %d criteria", seed.Rubric.ID, seed.Rubric.Name, len(seed.Rubric.Criteria))

	periods := &db.Periods{DB: dbase}
	for i := range seed.Periods {
		p := &seed.Periods[i]
		p.RubricID = &seed.Rubric.ID
		if err := periods.Upsert(ctx, p); err != nil {
			return err
		}
		color.Green("Saved period %s", p.Semester)
	}
	return nil
}

func runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	semester := fs.String("semester", "", "semester to report, e.g. 2024-2025-HK1")
	_ = fs.Parse(args)
	if *semester == "" {
		fs.Usage()
		return errHelp
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dbase := db.MustOpen(cfg.DatabaseURL)
	defer dbase.Close()

	svc := evaluation.NewService(evaluation.Deps{Repo: &db.Evaluations{DB: dbase}})
	totals, err := svc.Totals(ctx, *semester)
	if err != nil {
		return err
	}
	renderReport(os.Stdout, *semester, totals)
	return nil
}

func runParse(args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	file := fs.String("file", "", "file holding a criterion description")
	maxPoints := fs.Float64("max", 0, "criterion cap to check the sub-criteria against")
	_ = fs.Parse(args)
	if *file == "" {
		fs.Usage()
		return errHelp
	}
	b, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	renderSubCriteria(os.Stdout, string(b), *maxPoints)
	return nil
}
