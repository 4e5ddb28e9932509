package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/leave-intake/internal/config"
	"github.com/kirillkom/leave-intake/internal/core/ports"
	"github.com/kirillkom/leave-intake/internal/infrastructure/licenseapi"
	"github.com/kirillkom/leave-intake/internal/infrastructure/resilience"
	"github.com/kirillkom/leave-intake/internal/observability/logging"
)

// Services are the two remote calls one intake cycle needs.
type Services struct {
	Extractor ports.ExtractionService
	Persister ports.PersistenceService
}

// Target is the API a command run talks to.
type Target struct {
	APIURL     string
	Timeout    time.Duration
	Resilience resilience.Config
}

// ServiceFactory builds the services for one command run.
type ServiceFactory func(target Target, logger *slog.Logger) Services

type rootOptions struct {
	apiURL   string
	timeout  time.Duration
	logLevel string
}

func NewRootCommand(cfg config.Config, factory ServiceFactory) *cobra.Command {
	if factory == nil {
		factory = RemoteServices
	}
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "intake",
		Short: "Operator client for the medical-leave intake API",
		Long: `intake drives one upload -> review -> confirm cycle against the leave
intake API: the certificate is extracted by the server, the draft is printed
with its annotations, edits are applied and the result is stored.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", cfg.IntakeAPIURL, "base URL of the intake API")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", config.Seconds(cfg.IntakeAPITimeoutSeconds), "timeout per API call")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", cfg.LogLevel, "log level for stderr output")

	build := func(stderr io.Writer) (Services, *slog.Logger) {
		target := Target{
			APIURL:     opts.apiURL,
			Timeout:    opts.timeout,
			Resilience: cfg.Resilience(),
		}
		logger := logging.NewJSONLoggerTo(stderr, "intake", opts.logLevel)
		return factory(target, logger), logger
	}

	root.AddCommand(newSubmitCommand(build))
	return root
}

// RemoteServices talks to the intake API over HTTP.
func RemoteServices(target Target, logger *slog.Logger) Services {
	client := licenseapi.New(target.APIURL, licenseapi.Options{
		Timeout:            target.Timeout,
		ResilienceExecutor: resilience.NewExecutorWithLogger(target.Resilience, logger),
	})
	return Services{Extractor: client, Persister: client}
}

func writeLine(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
