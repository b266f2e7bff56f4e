package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"susu_keeper/internal/app"
	"susu_keeper/internal/domain/duty"
	"susu_keeper/internal/infra/automation"
	"susu_keeper/internal/infra/chain"
	"susu_keeper/internal/infra/config"
	idb "susu_keeper/internal/infra/database"
	"susu_keeper/internal/infra/logger"
)

func main() {
	var (
		list    = flag.Bool("list", false, "list active duties on the automation network and exit")
		cancel  = flag.String("cancel", "", "cancel the duty with this ID and exit")
		balance = flag.Bool("balance", false, "print the automation balance and exit")
		deposit = flag.String("deposit", "", "deposit this amount into the automation balance and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("bootstrap_cli")

	if cfg.AutomationAPIURL == "" {
		mainLogger.Fatal("AUTOMATION_API_URL is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	network, err := automation.NewClient(cfg.AutomationAPIURL, cfg.AutomationAPIKey, cfg.AutomationTimeout)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create automation client")
	}

	var mirror duty.Repository = idb.NewMemoryDutyRepository()
	if cfg.DatabaseURL != "" {
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to database")
		}
		defer db.Close()
		if err := idb.EnsurePostgresSchema(ctx, db); err != nil {
			mainLogger.WithError(err).Fatal("Could not prepare database schema")
		}
		mirror = idb.NewPostgresDutyRepository(db)
	}
	registry := app.NewTaskRegistry(network, mirror, cfg.ProductName, cfg.AutomationTimeout, logger.Component("task_registry"))

	switch {
	case *list:
		tasks, err := registry.ActiveDuties(ctx)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not list duties")
		}
		for _, t := range tasks {
			fmt.Printf("%s\t%s\t%s\n", t.ID, t.ExecAddress, t.Name)
		}
		return
	case *cancel != "":
		if err := registry.CancelDuty(ctx, *cancel); err != nil {
			mainLogger.WithError(err).WithField("duty_id", *cancel).Fatal("Could not cancel duty")
		}
		fmt.Printf("cancelled %s\n", *cancel)
		return
	case *balance:
		b, err := registry.Balance(ctx)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not read balance")
		}
		fmt.Println(b.String())
		return
	case *deposit != "":
		amount, err := decimal.NewFromString(*deposit)
		if err != nil {
			mainLogger.WithError(err).Fatal("Invalid deposit amount")
		}
		if err := registry.Deposit(ctx, amount); err != nil {
			mainLogger.WithError(err).Fatal("Could not deposit funds")
		}
		fmt.Printf("deposited %s\n", amount.String())
		return
	}

	groups, err := config.LoadGroups(cfg.GroupsFile)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not load groups")
	}

	if cfg.ExecutorPrivateKey == "" {
		mainLogger.Warn("EXECUTOR_PRIVATE_KEY is not set, groups without an automation executor will fail")
	}
	chainClient, err := chain.Dial(ctx, cfg.RPCURL, cfg.ExecutorPrivateKey, cfg.ChainID, logger.Component("chain"))
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to chain RPC")
	}
	defer chainClient.Close()

	service := app.NewBootstrapService(chainClient, registry, cfg.AutomationExecutor, cfg.BootstrapConcurrency, cfg.ChainReadTimeout, logger.Component("bootstrap"))
	report := service.Run(ctx, groups)

	printReport(report)
	if report.Count(app.StatusFailed) > 0 {
		os.Exit(2)
	}
}

func printReport(report app.Report) {
	fmt.Printf("run %s: %d groups in %s\n", report.RunID, len(report.Groups), report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	for _, o := range report.Groups {
		line := fmt.Sprintf("  %-13s %s %s", o.Status, o.Group.Address.Hex(), o.Group.DisplayName())
		if o.DutyID != "" {
			line += " duty=" + o.DutyID
		}
		if o.ExecutorTx != (common.Hash{}) {
			line += " executor_tx=" + o.ExecutorTx.Hex()
		}
		if o.Err != nil {
			line += " error=" + o.Err.Error()
		}
		fmt.Println(line)
	}
	if report.Balance != nil {
		fmt.Printf("automation balance: %s\n", report.Balance.String())
	}
	logger.Get().WithFields(logrus.Fields{
		"run_id":  report.RunID.String(),
		"created": report.Count(app.StatusCreated),
		"failed":  report.Count(app.StatusFailed),
	}).Debug("Report printed")
}
