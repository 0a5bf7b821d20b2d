package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/rs/zerolog"

	"github.com/go-authgate/portal-session/apiclient"
	"github.com/go-authgate/portal-session/session"
	"github.com/go-authgate/portal-session/tui"
)

// ErrMissingCredentials is returned when a login is needed but no
// email/password was configured.
var ErrMissingCredentials = errors.New("login credentials not set")

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	initConfig()

	command, args := "run", flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	os.Exit(runMain(cfg, command, args, isTTY()))
}

// runMain runs one command and returns the process exit code. Deferred
// cleanup such as closing the log file happens before main exits.
func runMain(c *Config, command string, args []string, interactive bool) int {
	logger, closer, err := newLogger(c.Log, interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if closer != nil {
		defer closer.Close()
	}

	if interactive {
		// Run TUI program on stderr so stdout pipes are not corrupted
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
		// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		d := tui.NewProgramDisplayer(p)
		d.Banner(c.App)
		runErr := execute(c, logger, d, os.Stdout, command, args)
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
		if runErr != nil {
			return 1
		}
		return 0
	}

	d := tui.NewPlainDisplayer(os.Stderr)
	d.Banner(c.App)
	if err := execute(c, logger, d, os.Stdout, command, args); err != nil {
		return 1
	}
	return 0
}

func execute(
	c *Config,
	logger zerolog.Logger,
	d tui.Displayer,
	out io.Writer,
	command string,
	args []string,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newPortal(c, logger, d, out)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer a.sess.Dispose()

	switch command {
	case "run":
		err = a.run(ctx)
	case "login":
		err = a.loginCommand(ctx)
	case "whoami":
		err = a.whoami(ctx)
	case "get":
		if len(args) == 0 {
			err = errors.New("usage: portal get <path>")
			break
		}
		err = a.get(ctx, args[0])
	case "logout":
		err = a.logout(ctx)
	default:
		err = fmt.Errorf("unknown command %q (expected run, login, whoami, get or logout)", command)
	}

	if err != nil {
		d.Fatal(err)
	}
	return err
}

// portal wires one portal's session, client and output together.
type portal struct {
	cfg    *Config
	log    zerolog.Logger
	store  *session.FileStore
	sess   *session.Manager
	client *apiclient.Client
	auth   *apiclient.Auth
	d      tui.Displayer
	out    io.Writer

	mu        sync.Mutex
	lastSaved string
}

func newPortal(c *Config, logger zerolog.Logger, d tui.Displayer, out io.Writer) (*portal, error) {
	store := session.NewFileStore(c.TokenFile, c.App)
	sess := session.NewManager(store, session.WithLogger(logger))

	var doer apiclient.Doer = apiclient.NewTransport()
	if c.Retry.Enabled {
		var err error
		doer, err = apiclient.NewRetryDoer(apiclient.NewTransport())
		if err != nil {
			return nil, err
		}
	}

	client, err := apiclient.New(
		c.apiConfig(),
		sess,
		apiclient.WithDoer(doer),
		apiclient.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	a := &portal{
		cfg:    c,
		log:    logger,
		store:  store,
		sess:   sess,
		client: client,
		auth:   apiclient.NewAuth(client),
		d:      d,
		out:    out,
	}
	client.UseResponse(a.announceReplay)
	return a, nil
}

// restore loads the persisted session and starts reporting token writes.
func (a *portal) restore() session.Session {
	s := a.sess.Init()
	a.lastSaved = s.AccessToken
	a.sess.Subscribe(a.announceSave)
	return s
}

func (a *portal) announceSave(s session.Session) {
	a.mu.Lock()
	changed := s.IsAuthenticated && s.AccessToken != a.lastSaved
	if changed || !s.IsAuthenticated {
		a.lastSaved = s.AccessToken
	}
	a.mu.Unlock()

	if changed {
		a.d.SessionSaved(a.store.Path())
	}
}

// announceReplay reports calls that went through a silent refresh.
func (a *portal) announceReplay(
	_ context.Context,
	call *apiclient.Call,
	resp *apiclient.Response,
	err error,
) (*apiclient.Response, error) {
	if call.Retried() && err == nil {
		a.d.AccessTokenRejected()
		a.d.TokenRefreshedRetrying()
	}
	return resp, err
}

func (a *portal) run(ctx context.Context) error {
	s := a.restore()
	if s.IsAuthenticated {
		a.d.SessionRestored(summarize(s))

		if s.Expired(time.Now()) {
			a.d.TokenExpired()
			if s.Refreshable() {
				// A failed refresh clears the session and falls through to login
				_ = a.refresh(ctx)
			} else {
				a.sess.Clear()
			}
		}
	} else {
		a.d.SessionMissing()
	}

	if !a.sess.Snapshot().IsAuthenticated {
		if err := a.login(ctx); err != nil {
			return err
		}
	} else if p := a.sess.Snapshot().Principal; p == nil || !p.Confirmed() {
		a.confirmProfile(ctx)
	}

	// Demonstrate automatic refresh on 401
	if err := a.callResource(ctx, a.cfg.ResourcePath); err != nil {
		if apiclient.IsKind(err, apiclient.KindSessionExpired) {
			a.d.ReAuthRequired()
			if err := a.login(ctx); err != nil {
				return err
			}

			if err := a.callResource(ctx, a.cfg.ResourcePath); err != nil {
				return err
			}
		} else {
			a.d.APICallFailed(err)
		}
	}

	a.d.Done(summarize(a.sess.Snapshot()))
	return nil
}

func (a *portal) refresh(ctx context.Context) error {
	a.d.Refreshing()
	if err := a.client.Refresh(ctx); err != nil {
		a.d.RefreshFailed(err)
		return err
	}
	a.d.RefreshOK()
	return nil
}

// login opens a new session and confirms the principal. A failed profile
// fetch leaves the provisional principal in place.
func (a *portal) login(ctx context.Context) error {
	if a.cfg.Email == "" || a.cfg.Password == "" {
		return fmt.Errorf(
			"%w: provide them via -email/-password flags, PORTAL_EMAIL/PORTAL_PASSWORD env or a .env file",
			ErrMissingCredentials,
		)
	}

	a.d.LoggingIn(a.cfg.Email)
	if _, err := a.auth.Login(ctx, apiclient.Credentials{
		Email:    a.cfg.Email,
		Password: a.cfg.Password,
	}); err != nil {
		return err
	}
	a.d.LoginOK(summarize(a.sess.Snapshot()))

	a.confirmProfile(ctx)
	return nil
}

func (a *portal) confirmProfile(ctx context.Context) {
	if _, err := a.auth.FetchProfile(ctx); err != nil {
		a.d.ProfileFailed(err)
		return
	}
	a.d.ProfileConfirmed(summarize(a.sess.Snapshot()))
}

func (a *portal) callResource(ctx context.Context, path string) error {
	a.d.CallingAPI(path)
	resp, err := a.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	a.d.APICallOK(path, preview(resp.Body, 200))
	return nil
}

func (a *portal) loginCommand(ctx context.Context) error {
	a.restore()
	if err := a.login(ctx); err != nil {
		return err
	}
	a.d.Done(summarize(a.sess.Snapshot()))
	return nil
}

// whoami prints the confirmed principal as JSON on out.
func (a *portal) whoami(ctx context.Context) error {
	s := a.restore()
	if !s.IsAuthenticated {
		return session.ErrNoSession
	}

	p, err := a.auth.FetchProfile(ctx)
	if err != nil {
		return err
	}
	a.d.ProfileConfirmed(summarize(a.sess.Snapshot()))

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// get calls path with the stored session and copies the body to out.
func (a *portal) get(ctx context.Context, path string) error {
	a.restore()

	a.d.CallingAPI(path)
	resp, err := a.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	a.d.APICallOK(path, "")

	var pretty bytes.Buffer
	if json.Indent(&pretty, resp.Body, "", "  ") == nil {
		pretty.WriteByte('\n')
		_, err = pretty.WriteTo(a.out)
		return err
	}
	_, err = a.out.Write(resp.Body)
	return err
}

func (a *portal) logout(ctx context.Context) error {
	a.restore()
	a.d.LoggedOut(a.auth.Logout(ctx))
	return nil
}

// summarize renders s for display.
func summarize(s session.Session) tui.Summary {
	sum := tui.Summary{TokenPreview: preview([]byte(s.AccessToken), 50)}
	if !s.Expiry.IsZero() {
		sum.ExpiresIn = max(time.Until(s.Expiry).Round(time.Second), 0)
	}
	if p := s.Principal; p != nil {
		sum.ID = p.ID
		sum.Name = p.Name
		sum.Email = p.Email
		sum.Status = string(p.Status)
		sum.Role = p.Role
		sum.Confirmed = p.Confirmed()
	}
	return sum
}

func preview(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
