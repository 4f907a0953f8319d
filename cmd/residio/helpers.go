package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"google.golang.org/api/option"

	"github.com/residio-ng/residio/internal/bankparse"
	"github.com/residio-ng/residio/internal/billing"
	"github.com/residio-ng/residio/internal/config"
	"github.com/residio-ng/residio/internal/gmail"
	"github.com/residio-ng/residio/internal/notify"
	"github.com/residio-ng/residio/internal/pipeline"
	"github.com/residio-ng/residio/internal/service"
	"github.com/residio-ng/residio/internal/statement"
	"github.com/residio-ng/residio/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/residio/residio.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// pipelineNeeds declares which external collaborators a command uses, so
// commands that never fetch or convert do not require mailbox or billing
// credentials.
type pipelineNeeds struct {
	mailbox bool
	billing bool
}

// buildPipeline wires the pipeline from configuration.
func buildPipeline(ctx context.Context, needs pipelineNeeds) (*pipeline.Pipeline, func(), error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = store.Close() }

	var mailbox *gmail.Client
	if needs.mailbox {
		gmailCfg, err := config.LoadGmailConfig()
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		tokenSource, err := gmail.TokenSource(ctx, gmailCfg.OAuth)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("gmail authentication failed (run 'residio auth'): %w", err)
		}
		mailbox, err = gmail.NewClient(ctx, gmail.Config{Senders: gmailCfg.Senders}, option.WithTokenSource(tokenSource))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	var payments *billing.Client
	if needs.billing {
		payments, err = billing.NewClient(billing.Config{
			BaseURL: viper.GetString("billing.base_url"),
			APIKey:  viper.GetString("billing.api_key"),
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	alerts := bankparse.NewParser(bankparse.Config{
		SenderDomains:   viper.GetStringSlice("banks.sender_domains"),
		SubjectKeywords: viper.GetStringSlice("banks.subject_keywords"),
	})
	statements := statement.NewParser(config.NewPasswordStore())

	cfg := pipeline.DefaultConfig()
	if v := viper.GetFloat64("matching.min_score"); v > 0 {
		cfg.Matching.MinScore = v
	}
	if v := viper.GetFloat64("matching.medium_score"); v > 0 {
		cfg.Matching.MediumScore = v
	}
	if v := viper.GetInt("notifications.review_threshold"); v > 0 {
		cfg.ReviewAlertThreshold = v
	}

	p := pipeline.New(
		store,
		mailboxOrNil(mailbox),
		alerts,
		statements,
		paymentsOrNil(payments),
		expensesOrNil(payments),
		notify.NewWebhookNotifier(viper.GetString("notifications.webhook_url")),
		config.NewRoleAuthorizer(),
		cfg,
	)
	return p, cleanup, nil
}

// mailboxOrNil avoids storing a typed nil in the pipeline's interface field.
func mailboxOrNil(c *gmail.Client) service.Mailbox {
	if c == nil {
		return nil
	}
	return c
}

func paymentsOrNil(c *billing.Client) service.PaymentCreator {
	if c == nil {
		return nil
	}
	return c
}

func expensesOrNil(c *billing.Client) service.ExpenseCreator {
	if c == nil {
		return nil
	}
	return c
}

// currentActor resolves who is running the command, for authorization and
// audit records.
func currentActor() string {
	if actor := viper.GetString("actor"); actor != "" {
		return actor
	}
	return os.Getenv("USER")
}
