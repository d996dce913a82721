package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"collab-go/internal/app"
	"collab-go/internal/collab"
	"collab-go/internal/config"
	"collab-go/internal/database"
	"collab-go/internal/encryption"
	"collab-go/internal/model"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig loads the config file named by the application defaults.
func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a CollabApp. The caller must defer app.Close().
// command identifies the CLI command being run (e.g. "serve", "versions").
func newApp(ctx context.Context, command string) (*app.CollabApp, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewCollabApp(ctx, cfg, command)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// openDatabase opens the configured database without checking its schema,
// for the commands that manage the schema itself.
func openDatabase() (*database.SQLiteDatabase, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

var rootCmd = &cobra.Command{
	Use:          "collab",
	Short:        "Real-time collaborative content server",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		return app.LoadEnv(defaults["env_file"], ".env")
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		nodeID := uuid.New().String()
		cfg := config.NewConfig(nodeID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Node ID:  %s\n", nodeID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Set %s (at least 16 bytes) in the environment or %s before serving.\n",
			app.EnvJWTSecret, defaults["env_file"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Node ID:     %s\n", cfg.NodeID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Listen:      %s\n", cfg.Server.Addr)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Archive:     %s\n", cfg.Archive.Type)
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		fmt.Printf("Dispatch:    %s\n", cfg.Dispatch.Type)
		fmt.Printf("Lock wait:   %s\n", cfg.Collab.LockTimeout())
		fmt.Printf("Presence:    %s\n", cfg.Collab.PresenceWindow())
		fmt.Printf("Member role: %s\n", cfg.Collab.DefaultRole)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the content database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			return err
		}
		st, err := db.MigrationStatus()
		if err != nil {
			return err
		}
		fmt.Printf("Database %s at schema version %d\n", db.Path(), st.Current)
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		st, err := db.MigrationStatus()
		if err != nil {
			return err
		}
		state := "up to date"
		switch {
		case st.Dirty:
			state = "dirty"
		case !st.UpToDate():
			state = "needs migration"
		}
		fmt.Printf("Database: %s\n", db.Path())
		fmt.Printf("Schema:   %d of %d (%s)\n", st.Current, st.Latest, state)
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a consistent copy of the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.BackupTo(args[0]); err != nil {
			return err
		}
		fmt.Printf("Database copied to %s\n", args[0])
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage archive encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the archive key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if cfg.Encryption.Type != "age" {
			return fmt.Errorf("encryption type is %q; set [encryption] type = \"age\" first", cfg.Encryption.Type)
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		if enc.IsConfigured() {
			return fmt.Errorf("keys already exist at %s", cfg.Encryption.PublicKeyPath)
		}

		passphrase, err := promptNewPassphrase()
		if err != nil {
			return err
		}
		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s (passphrase protected)\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collaboration server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.ArchiveLocked() {
			passphrase, err := archivePassphrase()
			if err != nil {
				a.Fail()
				return err
			}
			if passphrase != "" {
				if err := a.UnlockArchive(passphrase); err != nil {
					a.Fail()
					return err
				}
			}
		}

		if err := a.Serve(ctx); err != nil {
			a.Fail()
			return err
		}
		return nil
	},
}

// token command
var tokenCmd = &cobra.Command{
	Use:   "token USER_ID",
	Short: "Mint a bearer token for development",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		avatar, _ := cmd.Flags().GetString("avatar")

		a, err := newApp(cmd.Context(), "token")
		if err != nil {
			return err
		}
		defer a.Close()

		user := &model.User{ID: args[0], DisplayName: name, AvatarURL: avatar}
		if user.DisplayName == "" {
			user.DisplayName = user.ID
		}
		token, err := a.IssueToken(cmd.Context(), user)
		if err != nil {
			a.Fail()
			return err
		}
		fmt.Println(token)
		return nil
	},
}

// space command
var spaceCmd = &cobra.Command{
	Use:   "space",
	Short: "Manage spaces",
}

var spaceCreateCmd = &cobra.Command{
	Use:   "create TITLE",
	Short: "Create a space with its initial content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		kind, _ := cmd.Flags().GetString("kind")
		channel, _ := cmd.Flags().GetString("channel")
		description, _ := cmd.Flags().GetString("description")

		a, err := newApp(cmd.Context(), "space create")
		if err != nil {
			return err
		}
		defer a.Close()

		space, content, err := a.CreateSpace(cmd.Context(), user, collab.SpaceInput{
			ChannelID:   channel,
			Title:       args[0],
			Description: description,
			Kind:        model.SpaceKind(kind),
		})
		if err != nil {
			a.Fail()
			return fmt.Errorf("creating space: %w", err)
		}

		fmt.Printf("Space:   %s (%s)\n", space.ID, space.Kind)
		fmt.Printf("Content: %s (%s, version %d)\n", content.ID, content.ContentType, content.Version)
		return nil
	},
}

// versions command
var versionsCmd = &cobra.Command{
	Use:   "versions SPACE_ID CONTENT_ID",
	Short: "List saved versions of a content object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		a, err := newApp(cmd.Context(), "versions")
		if err != nil {
			return err
		}
		defer a.Close()

		ref := model.Ref{SpaceID: args[0], ContentID: args[1]}
		versions, err := a.ListVersions(cmd.Context(), ref, user)
		if err != nil {
			a.Fail()
			return err
		}
		if len(versions) == 0 {
			fmt.Println("No saved versions.")
			return nil
		}
		for _, v := range versions {
			fmt.Printf("%s  v%-5d  %s  %8d  %s  %s\n",
				v.ID,
				v.VersionNumber,
				v.CreatedAt.Format("2006-01-02 15:04:05"),
				v.Size,
				v.Checksum[:12],
				v.Label,
			)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbBackupCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// space subcommands
	spaceCmd.AddCommand(spaceCreateCmd)
	spaceCreateCmd.Flags().StringP("user", "u", "", "Creator user id")
	spaceCreateCmd.Flags().StringP("kind", "k", string(model.KindDocument), "Space kind: document, whiteboard, code, or video")
	spaceCreateCmd.Flags().String("channel", "", "Parent channel id")
	spaceCreateCmd.Flags().String("description", "", "Space description")
	spaceCreateCmd.MarkFlagRequired("user")

	// token flags
	tokenCmd.Flags().String("name", "", "Display name claim")
	tokenCmd.Flags().String("avatar", "", "Avatar URL claim")

	// versions flags
	versionsCmd.Flags().StringP("user", "u", "", "Acting user id")
	versionsCmd.MarkFlagRequired("user")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(spaceCmd)
	rootCmd.AddCommand(versionsCmd)
}
