package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/jmapc/internal/cache"
	"github.com/roach88/jmapc/internal/client"
	"github.com/roach88/jmapc/internal/config"
	"github.com/roach88/jmapc/internal/dispatch"
	"github.com/roach88/jmapc/internal/tasks"
	"github.com/roach88/jmapc/internal/transport"
)

// ResultView is the printable form of one invocation result.
type ResultView struct {
	ClientID   string `json:"client_id"`
	Method     string `json:"method"`
	Response   any    `json:"response,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorType  string `json:"error_type,omitempty"`
	CacheError string `json:"cache_error,omitempty"`
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <batch-file>",
		Short: "Build a batch file and submit it",
		Long: `Build a batch file and submit it to the server configured by the
JMAPC_* environment variables, then print one result per invocation.

Exit status is 1 when any invocation failed and 2 when the batch could
not be built or submitted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(rootOpts, args[0], cmd)
		},
	}
}

func runSend(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	sess, err := openSession(cmd.Context(), opts, formatter, cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	req, err := loadAndBuild(formatter, opts.registry(), path, sess.accountID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sess.cfg.RequestTimeout)
	defer cancel()

	results, err := sess.client.Do(ctx, req)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeTransport, err.Error(), nil)
	}

	views := make([]ResultView, len(results))
	failed := 0
	for i, res := range results {
		views[i] = viewResult(res)
		if res.Err != nil {
			failed++
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(views); err != nil {
			return err
		}
	} else {
		printResults(formatter, views)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d of %d invocation(s) failed", ErrCodeMethod, failed, len(results)))
	}
	return nil
}

func viewResult(res dispatch.Result) ResultView {
	v := ResultView{ClientID: res.ClientID, Method: res.Name, Response: res.Response}
	if res.Err != nil {
		v.Error = res.Err.Error()
		if me, ok := res.MethodError(); ok {
			v.ErrorType = me.Type
		}
	}
	if res.CacheErr != nil {
		v.CacheError = res.CacheErr.Error()
	}
	return v
}

func printResults(f *OutputFormatter, views []ResultView) {
	for _, v := range views {
		switch {
		case v.Error != "":
			fmt.Fprintf(f.Writer, "✗ %s %s: %s\n", v.ClientID, v.Method, v.Error)
		default:
			fmt.Fprintf(f.Writer, "✓ %s %s\n", v.ClientID, v.Method)
			if data, err := json.MarshalIndent(v.Response, "    ", "  "); err == nil {
				fmt.Fprintf(f.Writer, "    %s\n", data)
			}
		}
		if v.CacheError != "" {
			fmt.Fprintf(f.Writer, "  cache: %s\n", v.CacheError)
		}
	}
}

// session is a configured client plus what must be released after use.
type session struct {
	cfg       *config.Config
	client    *client.Client
	accountID string
	closers   []func() error
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// openSession reads the environment and connects the configured transport
// and cache.
func openSession(ctx context.Context, opts *RootOptions, f *OutputFormatter, cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, f.fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, f.fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	logger := newLogger(opts, cmd, cfg.Level())
	s := &session{cfg: cfg, accountID: cfg.AccountID}

	t, err := s.connect(ctx, logger)
	if err != nil {
		s.close()
		return nil, f.fail(ExitCommandError, ErrCodeTransport, err.Error(), nil)
	}

	clientOpts := []client.Option{client.WithRegistry(opts.registry()), client.WithLogger(logger)}
	if cfg.CachePath != "" {
		store, err := cache.OpenSQLite(cfg.CachePath)
		if err != nil {
			s.close()
			return nil, f.fail(ExitCommandError, ErrCodeCache, err.Error(), nil)
		}
		s.closers = append(s.closers, store.Close)
		clientOpts = append(clientOpts, client.WithCache(store))
		f.VerboseLog("Caching to %s", cfg.CachePath)
	}

	s.client = client.New(t, clientOpts...)
	return s, nil
}

func (s *session) connect(ctx context.Context, logger *slog.Logger) (transport.Transport, error) {
	auth := s.cfg.Authenticator()

	if s.cfg.Transport == config.TransportNATS {
		nc, err := transport.ConnectNATS(s.cfg.NATSURL, "jmapc", logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { nc.Close(); return nil })
		return transport.NewNATS(nc, s.cfg.NATSSubject, auth,
			transport.WithNATSLogger(logger),
			transport.WithNATSTimeout(s.cfg.RequestTimeout),
		), nil
	}

	apiURL := s.cfg.APIURL
	if apiURL == "" || (s.accountID == "" && s.cfg.SessionURL != "") {
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
		sess, err := transport.FetchSession(fetchCtx, nil, s.cfg.SessionURL, auth)
		if err != nil {
			return nil, err
		}
		if apiURL == "" {
			apiURL = sess.APIURL
		}
		if s.accountID == "" {
			s.accountID, _ = sess.PrimaryAccount(tasks.Capability)
		}
		logger.Debug("session fetched", "api_url", apiURL, "account_id", s.accountID)
	}
	return transport.NewHTTP(apiURL, auth, transport.WithHTTPLogger(logger)), nil
}
