package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mezon/cmd/internal/transport"
)

const usage = `usage: mezonctl <command> [flags]

commands:
  run           restore the remembered session and keep it connected
  login-token   authenticate with an opaque token
  login-email   authenticate with email and password
  login-otp     authenticate with an emailed one-time code
  login-qr      authenticate by approving a QR code on another device
  logout        end the session
  status        print the resolved gateway and stored session
`

// Run is the CLI entrypoint used by cmd/mezonctl.
// It returns an error instead of calling os.Exit to keep defers effective.
func Run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = a.Close(closeCtx)
	}()

	cmd, rest := args[0], args[1:]
	if cmd == "run" {
		return a.Run(ctx)
	}
	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.command(ctx, cmd, rest, os.Stdin, os.Stdout)
}

func (a *App) command(ctx context.Context, cmd string, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	remember := fs.Bool("remember", true, "store the session for later runs")

	tr := a.tr
	switch cmd {
	case "login-token":
		token := fs.String("token", os.Getenv("MEZON_TOKEN"), "opaque bearer token")
		if err := fs.Parse(args); err != nil {
			return err
		}
		sess, err := tr.AuthenticateToken(ctx, *token, *remember)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "logged in as %s\n", sess.UserID)

	case "login-email":
		email := fs.String("email", "", "account email")
		if err := fs.Parse(args); err != nil {
			return err
		}
		password, err := readLine(in, out, "password: ")
		if err != nil {
			return err
		}
		sess, err := tr.AuthenticateEmail(ctx, *email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "logged in as %s\n", sess.UserID)

	case "login-otp":
		email := fs.String("email", "", "account email")
		if err := fs.Parse(args); err != nil {
			return err
		}
		login := tr.NewLogin()
		if err := login.RequestOTP(ctx, *email); err != nil {
			return err
		}
		code, err := readLine(in, out, "code: ")
		if err != nil {
			return err
		}
		sess, err := login.ConfirmOTP(ctx, code)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "logged in as %s\n", sess.UserID)

	case "login-qr":
		png := fs.String("png", "", "write the QR code image to this file")
		timeout := fs.Duration("timeout", time.Minute, "how long to wait for approval")
		if err := fs.Parse(args); err != nil {
			return err
		}
		q, err := tr.CreateQRChallenge(ctx)
		if err != nil {
			return err
		}
		if *png != "" {
			img, err := q.PNG(256)
			if err != nil {
				return err
			}
			if err := os.WriteFile(*png, img, 0o600); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "scan login id %s\n", q.LoginID)
		sess, err := tr.AwaitQRLogin(ctx, q, *remember, transport.PollOptions{Timeout: *timeout})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "logged in as %s\n", sess.UserID)

	case "logout":
		wipe := fs.Bool("wipe", false, "also forget the persisted gateway endpoint")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if sess, err := tr.Credentials().Restore(ctx); err == nil {
			tr.Credentials().Set(ctx, sess)
		}
		tr.Logout(ctx, *wipe)
		fmt.Fprintln(out, "logged out")

	case "status":
		if err := fs.Parse(args); err != nil {
			return err
		}
		ep := tr.Primary().BasePath()
		fmt.Fprintf(out, "gateway %s\n", ep.BaseURL())
		if def := tr.Resolver().Defaults().Endpoint(); def != ep {
			fmt.Fprintf(out, "default %s\n", def.BaseURL())
		}
		sess, err := tr.Credentials().Restore(ctx)
		if err != nil {
			fmt.Fprintln(out, "no remembered session")
			return nil
		}
		fmt.Fprintf(out, "session user=%s expires=%s\n", sess.UserID, sess.ExpiresAt.Format(time.RFC3339))

	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	return nil
}

func readLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("empty input")
	}
	return line, nil
}
