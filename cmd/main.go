package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"portfolio-chat/handler"
	"portfolio-chat/internal/domain"
	"portfolio-chat/internal/integrations/agentapi"
	"portfolio-chat/internal/integrations/paramstore"
	"portfolio-chat/internal/observe"
	"portfolio-chat/internal/repository"
	"portfolio-chat/internal/usecase"
)

// errReported marks a failure whose user-facing notice was already printed.
var errReported = errors.New("reported")

func main() {
	os.Exit(run(newRootCmd(), os.Stderr))
}

func run(root *cobra.Command, stderr io.Writer) int {
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "portfolio-chat",
		Short:         "Chat with the portfolio assistant or send a contact message",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load before reading configuration (default .env)")
	root.AddCommand(newChatCmd(&envFile), newContactCmd(&envFile))
	return root
}

func newChatCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := buildApp(ctx, loadConfig(*envFile))
			if err != nil {
				return err
			}

			opts := []usecase.SessionOption{
				usecase.WithLogger(a.logger),
				usecase.WithDiscardStale(a.cfg.DiscardStale),
			}
			if !a.cfg.NetworkAsQuota {
				opts = append(opts, usecase.WithNetworkFailureMessage(usecase.NetworkFailureReply))
			}
			session, err := usecase.NewSession(a.agent, opts...)
			if err != nil {
				return err
			}
			contact, err := usecase.NewContactService(a.agent, a.logger)
			if err != nil {
				return err
			}
			prefill, err := usecase.NewPrefillService(a.prefill, a.cfg.ClientID)
			if err != nil {
				return err
			}

			repl, err := handler.NewREPL(session, contact, prefill, cmd.InOrStdin(), cmd.OutOrStdout(), a.logger)
			if err != nil {
				return err
			}
			if err := repl.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

func newContactCmd(envFile *string) *cobra.Command {
	var req domain.ContactRequest
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Send a message through the contact form",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), loadConfig(*envFile))
			if err != nil {
				return err
			}
			contact, err := usecase.NewContactService(a.agent, a.logger)
			if err != nil {
				return err
			}
			err = contact.Send(cmd.Context(), req)
			fmt.Fprintln(cmd.OutOrStdout(), usecase.ContactNotice(err))
			if err != nil {
				return fmt.Errorf("%w: %w", errReported, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Subject, "subject", "", "message subject")
	cmd.Flags().StringVar(&req.Email, "email", "", "your email address")
	cmd.Flags().StringVar(&req.Message, "message", "", "message body")
	return cmd
}

type app struct {
	cfg     appConfig
	logger  *slog.Logger
	agent   *agentapi.Client
	prefill usecase.PrefillStore
}

func buildApp(ctx context.Context, cfg appConfig) (*app, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	apiKey := cfg.APIKey
	var prefill usecase.PrefillStore = repository.NewMemoryStore()

	// ---- AWS (only when SSM or DynamoDB is configured) ----
	if cfg.needsAWS() {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("failed to load AWS config", "err", err)
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		if cfg.APIKeyParam != "" {
			ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				return nil, err
			}
			apiKey, err = ps.APIKey(ctx, cfg.APIKeyParam)
			if err != nil {
				logger.Error("failed to resolve API key", "param", cfg.APIKeyParam, "err", err)
				return nil, err
			}
		}
		if cfg.PrefillTable != "" {
			store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.PrefillTable)
			if err != nil {
				return nil, err
			}
			prefill = store
		}
	}

	agent, err := agentapi.NewClient(cfg.AgentURL,
		agentapi.WithAPIKey(apiKey),
		agentapi.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		agentapi.WithObserver(observe.NewSlogObserver(logger)),
		agentapi.WithContactSubjectField(cfg.ContactSubjectField),
	)
	if err != nil {
		logger.Error("failed to create agent client", "err", err)
		return nil, err
	}
	if cfg.AgentURL == "" {
		logger.Warn("AGENT_API_URL is not set; requests will use relative paths")
	}

	return &app{cfg: cfg, logger: logger, agent: agent, prefill: prefill}, nil
}
