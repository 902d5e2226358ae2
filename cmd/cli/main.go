// Command mh is a CLI client for the makerhub API.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/and161185/makerhub/internal/client/api"
	"github.com/and161185/makerhub/internal/client/tokenstore"
	"github.com/and161185/makerhub/internal/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// errUsage makes main exit with code 2.
var errUsage = errors.New("usage")

const usageText = `mh CLI
Usage:
  mh [-api URL] [-config-dir DIR] [-timeout D] [-v] <cmd> [args]

Commands:
  version
  health
  register -u <username> -e <email> [-p <password>] [-name <full name>]
  login    -u <username> [-p <password>]            (prompts when -p is omitted)
  logout
  status                                            (local session state)
  whoami
  list     <kind> [-page N] [-size N] [-status S] [-search Q] [-featured true|false]
  show     <kind> (-id <uuid> | -slug <slug>)
  create   <kind> -file <json|->
  update   <kind> -id <uuid> -file <json|->         (body must carry base_ver)
  rm       <kind> -id <uuid> [-ver N]
  upload   <image|avatar|file> <path>
  raw      <GET|POST|PUT|PATCH|DELETE> <path> [-file <json|->]
  signup   <event-id> -name <name> -e <email> [-phone P] [-org O] [-level L]

Admin:
  users list [-role R] [-search Q] [-page N] [-size N]
  users show|rm <uuid>
  users role <uuid> <user|admin>
  users activate|deactivate <uuid>
  registrations list [-event <uuid>] [-status S] [-search Q] [-page N] [-size N]
  registrations status <uuid> <confirmed|cancelled|attended>
  registrations rm <uuid>
`

func main() {
	ctx := context.Background()
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	default:
		fail(os.Stderr, err)
		os.Exit(1)
	}
}

// fail prints err in a user-facing form.
func fail(w io.Writer, err error) {
	switch {
	case api.IsAuthFailure(err):
		fmt.Fprintln(w, "error: session expired or not logged in, run `mh login`")
	case api.IsStatus(err, http.StatusForbidden):
		fmt.Fprintln(w, "error: not enough permissions")
	default:
		fmt.Fprintln(w, "error:", err)
	}
}

// cli holds the per-invocation dependencies.
type cli struct {
	cfg    *config.Client
	store  *tokenstore.Store
	client *api.Client
	log    *zap.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("mh", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "API base URL")
	fs.StringVar(&cfg.ConfigDir, "config-dir", cfg.ConfigDir, "directory holding the token file")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	verbose := fs.Bool("v", false, "verbose logging to stderr")
	fs.Usage = func() { fmt.Fprint(stderr, usageText) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}
	if fs.NArg() < 1 {
		return errUsage
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	if cmd == "version" {
		fmt.Fprintf(stdout, "mh %s (%s)\n", version, buildDate)
		return nil
	}

	c, err := newCLI(cfg, *verbose, stdin, stdout, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = c.log.Sync() }()

	switch cmd {
	case "health":
		return c.health(ctx)
	case "register":
		return c.register(ctx, rest)
	case "login":
		return c.login(ctx, rest)
	case "logout":
		return c.logout(ctx)
	case "status":
		return c.status()
	case "whoami":
		return c.whoami(ctx)
	case "list":
		return c.list(ctx, rest)
	case "show":
		return c.show(ctx, rest)
	case "create":
		return c.create(ctx, rest)
	case "update":
		return c.update(ctx, rest)
	case "rm":
		return c.remove(ctx, rest)
	case "upload":
		return c.upload(ctx, rest)
	case "raw":
		return c.raw(ctx, rest)
	case "signup":
		return c.signup(ctx, rest)
	case "users":
		return c.users(ctx, rest)
	case "registrations":
		return c.registrations(ctx, rest)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		return errUsage
	}
}

func newCLI(cfg *config.Client, verbose bool, stdin io.Reader, stdout, stderr io.Writer) (*cli, error) {
	log := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			log = l
		}
	}

	dir := cfg.ConfigDir
	if dir == "" {
		dir = tokenstore.DefaultDir()
	}
	path := filepath.Join(dir, tokenstore.FileName)
	var backend tokenstore.Backend = tokenstore.NewFileBackend(path)
	if cfg.Passphrase != "" {
		backend = tokenstore.NewSealedFileBackend(path, cfg.Passphrase)
	}
	store, err := tokenstore.New(backend, tokenstore.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}

	client, err := api.New(api.Config{
		BaseURL: cfg.APIURL,
		Logger:  log,
		Timeout: cfg.Timeout,
	}, store)
	if err != nil {
		return nil, err
	}
	return &cli{cfg: cfg, store: store, client: client, log: log, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

// ---- commands ----

func (c *cli) health(ctx context.Context) error {
	out, err := c.client.Health(ctx)
	if err != nil {
		return err
	}
	return printJSON(c.stdout, out)
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	u := fs.String("u", "", "username")
	e := fs.String("e", "", "email")
	p := fs.String("p", "", "password")
	name := fs.String("name", "", "full name")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *u == "" || *e == "" {
		fmt.Fprintln(c.stderr, "need -u and -e")
		return errUsage
	}
	if *p == "" {
		pw, err := c.readPassword()
		if err != nil {
			return err
		}
		*p = pw
	}
	resp, err := c.client.Register(ctx, api.RegisterRequest{Username: *u, Email: *e, Password: *p, FullName: *name})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, resp.Message)
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *u == "" {
		fmt.Fprintln(c.stderr, "need -u")
		return errUsage
	}
	if *p == "" {
		pw, err := c.readPassword()
		if err != nil {
			return err
		}
		*p = pw
	}
	pair, err := c.client.Login(ctx, *u, *p)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "logged in as %s%s\n", *u, expiryNote(pair.AccessToken))
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	if err := c.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "logged out")
	return nil
}

func (c *cli) status() error {
	pair, ok := c.store.Pair()
	if !ok {
		fmt.Fprintln(c.stdout, "not logged in")
		return nil
	}
	fmt.Fprintf(c.stdout, "logged in%s\n", expiryNote(pair.AccessToken))
	return nil
}

func (c *cli) whoami(ctx context.Context) error {
	u, err := c.client.Me(ctx)
	if err != nil {
		return err
	}
	return printJSON(c.stdout, u)
}

func (c *cli) list(ctx context.Context, args []string) error {
	kind, args, err := positional(args, "kind")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	var p api.ListParams
	fs.IntVar(&p.Page, "page", 0, "page number")
	fs.IntVar(&p.Size, "size", 0, "page size")
	fs.StringVar(&p.Status, "status", "", "status filter (admins only)")
	fs.StringVar(&p.Search, "search", "", "title search")
	featured := fs.String("featured", "", "true|false")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *featured != "" {
		b, err := strconv.ParseBool(*featured)
		if err != nil {
			return fmt.Errorf("bad -featured: %w", err)
		}
		p.Featured = &b
	}
	page, err := c.client.Entries(kind).List(ctx, p)
	if err != nil {
		return err
	}
	return printJSON(c.stdout, page)
}

func (c *cli) show(ctx context.Context, args []string) error {
	kind, args, err := positional(args, "kind")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	id := fs.String("id", "", "entry id")
	slug := fs.String("slug", "", "entry slug")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	res := c.client.Entries(kind)
	switch {
	case *id != "":
		e, err := res.Get(ctx, *id)
		if err != nil {
			return err
		}
		return printJSON(c.stdout, e)
	case *slug != "":
		e, err := res.GetBySlug(ctx, *slug)
		if err != nil {
			return err
		}
		return printJSON(c.stdout, e)
	default:
		fmt.Fprintln(c.stderr, "need -id or -slug")
		return errUsage
	}
}

func (c *cli) create(ctx context.Context, args []string) error {
	kind, args, err := positional(args, "kind")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	file := fs.String("file", "", "JSON body ('-'=stdin)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	body, err := c.jsonBody(*file)
	if err != nil {
		return err
	}
	e, err := c.client.Entries(kind).Create(ctx, body)
	if err != nil {
		return err
	}
	return printJSON(c.stdout, e)
}

func (c *cli) update(ctx context.Context, args []string) error {
	kind, args, err := positional(args, "kind")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	id := fs.String("id", "", "entry id")
	file := fs.String("file", "", "JSON body ('-'=stdin)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *id == "" {
		fmt.Fprintln(c.stderr, "need -id")
		return errUsage
	}
	body, err := c.jsonBody(*file)
	if err != nil {
		return err
	}
	e, err := c.client.Entries(kind).Update(ctx, *id, body)
	if err != nil {
		return err
	}
	return printJSON(c.stdout, e)
}

func (c *cli) remove(ctx context.Context, args []string) error {
	kind, args, err := positional(args, "kind")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	id := fs.String("id", "", "entry id")
	ver := fs.Int64("ver", 0, "expected version (0 skips the check)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *id == "" {
		fmt.Fprintln(c.stderr, "need -id")
		return errUsage
	}
	endpoint := "/" + url.PathEscape(kind) + "/" + url.PathEscape(*id)
	if *ver > 0 {
		endpoint += "?ver=" + strconv.FormatInt(*ver, 10)
	}
	var out map[string]any
	if err := c.client.Delete(ctx, endpoint, &out); err != nil {
		return err
	}
	return printJSON(c.stdout, out)
}

func (c *cli) upload(ctx context.Context, args []string) error {
	if len(args) != 2 {
		fmt.Fprintln(c.stderr, "need <category> <path>")
		return errUsage
	}
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()
	up, err := c.client.UploadTo(ctx, args[0], filepath.Base(args[1]), f)
	if err != nil {
		return err
	}
	return printJSON(c.stdout, up)
}

func (c *cli) raw(ctx context.Context, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(c.stderr, "need <method> <path>")
		return errUsage
	}
	method, endpoint := strings.ToUpper(args[0]), args[1]
	fs := flag.NewFlagSet("raw", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	file := fs.String("file", "", "JSON body ('-'=stdin)")
	if err := fs.Parse(args[2:]); err != nil {
		return errUsage
	}
	var in any
	if *file != "" {
		body, err := c.jsonBody(*file)
		if err != nil {
			return err
		}
		in = body
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	var out json.RawMessage
	if err := c.client.Do(ctx, method, endpoint, in, &out); err != nil {
		return err
	}
	if len(out) == 0 {
		return nil
	}
	return printJSON(c.stdout, out)
}

// ---- utils ----

func positional(args []string, name string) (string, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", nil, fmt.Errorf("%w: missing <%s>", errUsage, name)
	}
	return args[0], args[1:], nil
}

func (c *cli) jsonBody(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: need -file", errUsage)
	}
	b, err := readAll(path, c.stdin)
	if err != nil {
		return nil, err
	}
	if !json.Valid(b) {
		return nil, errors.New("body is not valid JSON")
	}
	return json.RawMessage(b), nil
}

// readPassword prompts without echo on a terminal, otherwise reads one line.
func (c *cli) readPassword() (string, error) {
	fmt.Fprint(c.stderr, "password: ")
	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(c.stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readAll(p string, stdin io.Reader) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// tokenExpiry reads exp from a JWT without verifying it; display only.
func tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func expiryNote(token string) string {
	exp, ok := tokenExpiry(token)
	if !ok {
		return ""
	}
	if time.Now().After(exp) {
		return fmt.Sprintf(" (access token expired %s, will refresh on next call)", exp.Local().Format(time.RFC3339))
	}
	return fmt.Sprintf(" (access token valid until %s)", exp.Local().Format(time.RFC3339))
}
