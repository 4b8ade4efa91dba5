package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/hems/examhall/internal/auth"
	"github.com/hems/examhall/internal/exam"
	"github.com/hems/examhall/internal/handler"
	appI18n "github.com/hems/examhall/internal/i18n"
	"github.com/hems/examhall/internal/llm"
	"github.com/hems/examhall/internal/llm/prompts"
	"github.com/hems/examhall/internal/model"
	"github.com/hems/examhall/internal/monitor"
	"github.com/hems/examhall/internal/scheduler"
	"github.com/hems/examhall/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examhall",
		Short: "Password-gated multiple-choice exams with live monitoring",
	}
	root.PersistentFlags().String("env-file", ".env", "Environment file loaded before reading configuration")

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), importCmd(), tokenCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examhall --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "examhall.db", "SQLite database path or PostgreSQL DSN")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSlice("exams", nil, "Exam definition JSON files imported at startup (repeatable)")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set EXAMHALL_ADMIN_PASSWORD)")
	f.String("jwt-secret", "", "Secret for API bearer tokens (disabled when empty)")
	f.Duration("jwt-ttl", 12*time.Hour, "Lifetime of API bearer tokens")
	f.StringSlice("cors-origins", nil, "Origins allowed to call the JSON API")
	f.Duration("deadline-grace", 2*time.Minute, "Answers accepted this long past the exam duration")
	f.Duration("password-ttl", 24*time.Hour, "Validity of generated exam passwords")
	f.Int("password-length", 8, "Length of generated exam passwords")
	f.Duration("login-window", time.Hour, "Monitor: logins within this window count as present")
	f.Duration("heartbeat-window", time.Minute, "Monitor: heartbeats within this window count as present")
	f.Int("feed-size", 10, "Monitor: number of live feed entries")
	f.String("grading-schedule", "@every 1m", "Cron spec for retrying ungraded submissions")
	f.String("session-schedule", "@hourly", "Cron spec for purging expired login sessions")
	f.Duration("job-timeout", 30*time.Second, "Timeout of a single scheduled job run")
	f.String("llm-url", "", "OpenAI-compatible API base URL for study tips (disabled when empty)")
	f.String("llm-key", "", "API key for LLM")
	f.String("llm-model", "", "LLM model name")
	f.String("tips-variant", string(prompts.VariantConcise), "Study tips prompt variant (concise, detailed)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exam results as JSON",
		RunE:  runExport,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.Int64("exam-id", 0, "Exam to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("exam-id")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import exam definitions from JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	addStoreFlags(cmd)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a user",
		RunE:  runToken,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.String("username", "", "User to issue the token for (required)")
	f.String("jwt-secret", "", "Secret for API bearer tokens (required)")
	f.Duration("jwt-ttl", 12*time.Hour, "Lifetime of the token")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd loads the env file, then binds a command's flags and
// environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("error reading env file", "path", envFile, "error", err)
		}
	}

	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMHALL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examhall")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examhall")
	v.AddConfigPath("/etc/examhall")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(ctx context.Context, v *viper.Viper) (*store.Store, error) {
	driver := store.Driver(strings.ToLower(v.GetString("db-driver")))
	db, err := store.New(ctx, driver, v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	admin, err := seedAdmin(ctx, db, v.GetString("admin-password"))
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	cfg := model.AppConfig{
		SecureCookies:   v.GetBool("secure-cookies"),
		DeadlineGrace:   v.GetDuration("deadline-grace"),
		PasswordTTL:     v.GetDuration("password-ttl"),
		PasswordLength:  v.GetInt("password-length"),
		HashCost:        bcrypt.DefaultCost,
		LoginWindow:     v.GetDuration("login-window"),
		HeartbeatWindow: v.GetDuration("heartbeat-window"),
		FeedSize:        v.GetInt("feed-size"),
		CORSOrigins:     v.GetStringSlice("cors-origins"),
	}

	var opts []exam.Option
	if url, modelName := v.GetString("llm-url"), v.GetString("llm-model"); url != "" && modelName != "" {
		variant := strings.ToLower(strings.TrimSpace(v.GetString("tips-variant")))
		if !prompts.IsValidVariant(variant) {
			slog.Warn("invalid tips-variant, using concise", "variant", variant)
			variant = string(prompts.VariantConcise)
		}
		if err := prompts.Load(); err != nil {
			return fmt.Errorf("load prompts: %w", err)
		}
		opts = append(opts, exam.WithAdvisor(llm.New(url, v.GetString("llm-key"), modelName,
			llm.WithVariant(prompts.Variant(variant)))))
		slog.Info("study tips enabled", "url", url, "model", modelName, "variant", variant)
	}
	svc := exam.NewService(db, exam.Config{
		DeadlineGrace:  cfg.DeadlineGrace,
		PasswordTTL:    cfg.PasswordTTL,
		PasswordLength: cfg.PasswordLength,
		HashCost:       cfg.HashCost,
	}, opts...)

	if err := importExams(ctx, db, svc, *admin, v.GetStringSlice("exams")); err != nil {
		return fmt.Errorf("import exams: %w", err)
	}

	mon := monitor.New(db)
	mon.LoginWindow = cfg.LoginWindow
	mon.HeartbeatWindow = cfg.HeartbeatWindow
	mon.FeedSize = cfg.FeedSize

	var tokens *auth.Issuer
	if secret := v.GetString("jwt-secret"); secret != "" {
		tokens, err = auth.NewIssuer(secret, v.GetDuration("jwt-ttl"))
		if err != nil {
			return fmt.Errorf("create token issuer: %w", err)
		}
	}

	sched := scheduler.New(slog.Default(), v.GetDuration("job-timeout"))
	if err := sched.Add(v.GetString("grading-schedule"), "grade-pending", scheduler.GradePending(svc)); err != nil {
		return fmt.Errorf("schedule grading: %w", err)
	}
	if err := sched.Add(v.GetString("session-schedule"), "purge-sessions", scheduler.PurgeSessions(db)); err != nil {
		return fmt.Errorf("schedule session purge: %w", err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(appI18n.Middleware)
	handler.New(db, svc, mon, tokens, cfg).Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"db_driver", v.GetString("db-driver"),
		"lang", lang,
		"api_tokens", tokens != nil,
		"deadline_grace", cfg.DeadlineGrace,
		"grading_schedule", v.GetString("grading-schedule"),
	)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	actor, err := firstAdmin(ctx, db)
	if err != nil {
		return err
	}
	svc := exam.NewService(db, exam.Config{})
	export, err := svc.Export(ctx, *actor, v.GetInt64("exam-id"))
	if err != nil {
		return fmt.Errorf("export exam: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	actor, err := firstAdmin(ctx, db)
	if err != nil {
		return err
	}
	return importExams(ctx, db, exam.NewService(db, exam.Config{}), *actor, args)
}

func runToken(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	issuer, err := auth.NewIssuer(v.GetString("jwt-secret"), v.GetDuration("jwt-ttl"))
	if err != nil {
		return fmt.Errorf("create token issuer: %w", err)
	}
	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := db.GetUserByUsername(ctx, v.GetString("username"))
	if err != nil {
		return fmt.Errorf("find user %q: %w", v.GetString("username"), err)
	}
	if !user.Active {
		return fmt.Errorf("user %q is inactive", user.Username)
	}
	token, err := issuer.Issue(*user)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}

// importExams imports exam definition files. A file whose content was
// imported before is skipped; a changed file is skipped with a warning so
// running exams are never altered.
func importExams(ctx context.Context, db *store.Store, svc *exam.Service, actor model.User, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.ImportedFileHash(ctx, path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("exam file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("exam file changed since last import, skipping to avoid altering existing exams",
				"path", path)
			continue
		}

		var def model.ExamImport
		if err := json.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		id, err := svc.ImportExam(ctx, actor, def)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		if err := db.SetImportedFileHash(ctx, path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported exam", "path", path, "exam_id", id, "questions", len(def.Questions))
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// firstAdmin returns the active admin account CLI commands act as.
func firstAdmin(ctx context.Context, db *store.Store) (*model.User, error) {
	users, err := db.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Role == model.UserRoleAdmin && users[i].Active {
			return &users[i], nil
		}
	}
	return nil, errors.New("no active admin account: run serve with --admin-password first")
}

func seedAdmin(ctx context.Context, db *store.Store, password string) (*model.User, error) {
	count, err := db.UserCount(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return firstAdmin(ctx, db)
	}

	if password == "" {
		return nil, fmt.Errorf("admin password is required: set --admin-password flag or EXAMHALL_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}

	u := model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	}
	u.ID, err = db.CreateUser(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return &u, nil
}
