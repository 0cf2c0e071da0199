package root

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"finquest/internal/api"
	"finquest/internal/auth"
	"finquest/internal/config"
	"finquest/internal/credstore"
	"finquest/internal/engine"
	"finquest/internal/logging"
	"finquest/internal/notify"
	"finquest/internal/storage"
	"finquest/internal/ui"
)

const themeKey = "fq_theme"

// app is everything a command needs, wired once per invocation.
type app struct {
	cfg        config.Config
	db         *sql.DB
	history    *storage.ActionLogRepo
	store      *credstore.Store
	resolution api.Resolution
	client     *api.Client
	session    *auth.Session
	engine     *engine.Service
	queue      *notify.Queue
}

func openApp(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load(config.ResolveConfigPath(flagConfig))
	if err != nil {
		return nil, nil, err
	}

	logFile := cfg.LogFile
	if logFile == "" {
		if dir, err := storage.DataDir(); err == nil {
			logFile = filepath.Join(dir, "fq.log")
		}
	}
	logCloser, err := logging.Setup(logging.Options{
		Level:      cfg.LogLevel,
		File:       logFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Verbose:    flagVerbose,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("set up logging: %w", err)
	}

	path, err := storage.ResolveDBPath(cfg.StoragePath)
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, err
	}
	db, err := storage.Open(ctx, path)
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, err
	}

	store := credstore.New(storage.NewKVRepo(db))
	if name, ok := store.GetPlain(ctx, themeKey); ok {
		if err := ui.Apply(name); err != nil {
			log.WithError(err).Warn("cli: stored theme ignored")
		}
	}

	httpClient := &http.Client{Timeout: cfg.APITimeout}
	res := api.ResolveBaseURL(ctx, httpClient, cfg.APIBaseURLs, cfg.FallbackAPIURLs())
	client := api.NewClient(res.BaseURL, httpClient)
	session := auth.NewSession(client, store)
	client.SetHeaderSource(session)

	levels, err := engine.LoadLevelTable(cfg.LevelsFile)
	if err != nil {
		_ = db.Close()
		_ = logCloser.Close()
		return nil, nil, err
	}
	features, err := engine.LoadFeatureTable(cfg.FeaturesFile)
	if err != nil {
		_ = db.Close()
		_ = logCloser.Close()
		return nil, nil, err
	}

	history := storage.NewActionLogRepo(db)
	queue := notify.NewQueue(cfg.DismissAfter)
	eng := engine.NewService(client, engine.Options{
		Levels:          levels,
		Features:        features,
		Notifier:        queue,
		History:         history,
		RefreshInterval: cfg.RefreshInterval,
	})

	a := &app{
		cfg:        cfg,
		db:         db,
		history:    history,
		store:      store,
		resolution: res,
		client:     client,
		session:    session,
		engine:     eng,
		queue:      queue,
	}
	cleanup := func() {
		eng.Wait()
		_ = db.Close()
		_ = logCloser.Close()
	}
	return a, cleanup, nil
}

// watchAuth makes the engine follow the session: load when signed in, clear
// when signed out. Call it before Initialize or Login.
func (a *app) watchAuth(ctx context.Context) {
	a.session.Subscribe(func(s auth.Snapshot) {
		switch s.State {
		case auth.StateAuthenticated:
			a.engine.HandleAuthChange(ctx, true)
		case auth.StateUnauthenticated:
			a.engine.HandleAuthChange(ctx, false)
		}
	})
}

// requireLogin restores the stored session and fails when nobody is signed in.
func (a *app) requireLogin(ctx context.Context) (auth.Snapshot, error) {
	if err := a.session.Initialize(ctx); err != nil {
		return auth.Snapshot{}, err
	}
	snap := a.session.Snapshot()
	if !snap.Authenticated() {
		return snap, fmt.Errorf("%w: run `fq login` first", auth.ErrNotAuthenticated)
	}
	return snap, nil
}

// printNotifications echoes every notification the engine raises to w.
func (a *app) printNotifications(w io.Writer) {
	a.queue.OnChange(func(n notify.Notification, phase notify.Phase) {
		if phase != notify.PhaseVisible {
			return
		}
		switch n.Kind {
		case notify.KindLevelUp:
			fmt.Fprintf(w, "%s %s\n", ui.BadgeLevelUp, n.Message)
		case notify.KindXPGained:
			fmt.Fprintf(w, "%s %s %s\n", ui.IconBolt, ui.Good.Render(n.Title), ui.Muted.Render(n.Message))
		case notify.KindAchievementUnlocked:
			fmt.Fprintf(w, "%s %s %s\n", ui.IconTrophy, ui.Gold.Render(n.Title), n.Message)
		default:
			fmt.Fprintf(w, "%s %s\n", ui.IconInfo, n.Message)
		}
	})
}

func userLabel(u credstore.CachedUser) string {
	for _, f := range []string{"username", "first_name", "email"} {
		if v := u.String(f); v != "" {
			return v
		}
	}
	if id := u.ID(); id != "" {
		return "user " + id
	}
	return "you"
}

// readSecret returns flagValue, or prompts on the command's input.
func readSecret(cmd *cobra.Command, flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt+": ")
	line, err := lineReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var lineReaders = map[io.Reader]*bufio.Reader{}

// lineReader keeps one buffered reader per input so successive prompts do
// not lose buffered lines.
func lineReader(r io.Reader) *bufio.Reader {
	if br, ok := lineReaders[r]; ok {
		return br
	}
	br := bufio.NewReader(r)
	lineReaders[r] = br
	return br
}

func printValidation(w io.Writer, err error) error {
	var verr *auth.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	for field, msg := range verr.Fields {
		fmt.Fprintf(w, "%s %s %s\n", ui.IconWarn, ui.Key.Render(field), msg)
	}
	return errors.New("please fix the fields above")
}
