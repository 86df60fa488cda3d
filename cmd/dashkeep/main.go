package main

import (
	"fmt"
	"os"
	"time"

	"dashkeep/internal/app"
	"dashkeep/internal/config"
	"dashkeep/internal/encryption"
	"dashkeep/internal/model"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "BackupDashboard").
// The resolved org is returned alongside so commands don't re-read config.
func newApp(cmd *cobra.Command, operation string) (*app.App, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}

	org, _ := cmd.Flags().GetString("org")
	if org == "" {
		org = cfg.DefaultOrg
	}
	if org == "" {
		return nil, "", fmt.Errorf("no org specified: pass --org or set default_org in config")
	}

	a, err := app.NewApp(cmd.Context(), cfg, operation)
	if err != nil {
		return nil, "", fmt.Errorf("initializing app: %w", err)
	}

	return a, org, nil
}

var rootCmd = &cobra.Command{
	Use:   "dashkeep",
	Short: "Dashboard backup and restore tool",
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

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		// Generate the age key pair used to encrypt credential secrets.
		enc := encryption.NewAgeEncryptor(cfg.Encryption)
		if err := enc.Setup(); err != nil {
			return fmt.Errorf("failed to generate encryption keys: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Encryption keys written under %s\n", cfg.Encryption.PublicKeyPath)
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
		fmt.Printf("Default Org:  %s\n", cfg.DefaultOrg)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("API Endpoint: %s\n", cfg.API.Endpoint)
		fmt.Printf("Database:     %s\n", cfg.Database.Type)
		fmt.Printf("Blob Store:   %s\n", cfg.Blob.Type)
		return nil
	},
}

// credential command
var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage API credentials",
}

var credentialAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Store and validate a new API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print("API key: ")
		keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading API key: %w", err)
		}

		a, org, err := newApp(cmd, "CreateCredential")
		if err != nil {
			return err
		}
		defer a.Close()

		cred, err := a.AddCredential(cmd.Context(), org, args[0], string(keyBytes))
		if err != nil {
			return fmt.Errorf("adding credential: %w", err)
		}

		fmt.Printf("Credential %s added (%d account(s) accessible)\n", cred.ID, len(cred.Accounts))
		return nil
	},
}

var credentialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, org, err := newApp(cmd, "ListCredentials")
		if err != nil {
			return err
		}
		defer a.Close()

		creds, err := a.ListCredentials(cmd.Context(), org)
		if err != nil {
			return err
		}

		if len(creds) == 0 {
			fmt.Println("No credentials stored.")
			return nil
		}

		for _, c := range creds {
			lastRun := "never"
			if c.LastBackupAt != nil {
				lastRun = c.LastBackupAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s  %-20s  %-8s  accounts:%d  dashboards:%d  last-backup:%s\n",
				c.ID, c.Name, c.Status, len(c.Accounts), c.DashboardCount, lastRun)
		}
		return nil
	},
}

var credentialValidateCmd = &cobra.Command{
	Use:   "validate CREDENTIAL_ID",
	Short: "Re-check a stored API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, org, err := newApp(cmd, "RevalidateCredential")
		if err != nil {
			return err
		}
		defer a.Close()

		cred, err := a.RevalidateCredential(cmd.Context(), org, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Credential %s is %s (%d account(s) accessible)\n", cred.ID, cred.Status, len(cred.Accounts))
		return nil
	},
}

var credentialRemoveCmd = &cobra.Command{
	Use:   "remove CREDENTIAL_ID",
	Short: "Delete a credential and its stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, org, err := newApp(cmd, "DeleteCredential")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RemoveCredential(cmd.Context(), org, args[0]); err != nil {
			return err
		}

		fmt.Printf("Credential %s removed\n", args[0])
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup DASHBOARD_GUID",
	Short: "Back up one dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		credentialID, _ := cmd.Flags().GetString("credential")

		a, org, err := newApp(cmd, "BackupDashboard")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Backup(cmd.Context(), org, credentialID, args[0])
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Backed up %q (%d bytes) as snapshot %s\n",
			result.DashboardName, result.SizeBytes, result.SnapshotID)
		return nil
	},
}

var backupAllCmd = &cobra.Command{
	Use:   "backup-all",
	Short: "Back up every reachable dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		credentialID, _ := cmd.Flags().GetString("credential")
		accountID, _ := cmd.Flags().GetString("account")

		a, org, err := newApp(cmd, "BackupAllDashboards")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.BackupAll(cmd.Context(), org, credentialID, accountID)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		for _, r := range results {
			fmt.Printf("%s  %-40s  %d bytes\n", r.SnapshotID, r.DashboardName, r.SizeBytes)
		}
		fmt.Printf("Backed up %d dashboard(s)\n", len(results))
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		dashboardGUID, _ := cmd.Flags().GetString("dashboard")
		search, _ := cmd.Flags().GetString("search")
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")

		a, org, err := newApp(cmd, "ListBackups")
		if err != nil {
			return err
		}
		defer a.Close()

		var result *model.SnapshotPage
		if dashboardGUID != "" {
			p, err := a.ListDashboardBackups(cmd.Context(), org, dashboardGUID, page, limit)
			if err != nil {
				return err
			}
			result = p
		} else {
			p, err := a.ListOrgBackups(cmd.Context(), org, page, limit, search)
			if err != nil {
				return err
			}
			result = p
		}

		if len(result.Data) == 0 {
			fmt.Println("No backups found.")
			return nil
		}

		for _, s := range result.Data {
			fmt.Printf("%s  %s  %-40s  %s  %d bytes\n",
				s.ID,
				s.BackupTimestamp.Format("2006-01-02 15:04:05"),
				s.DashboardName,
				s.DashboardGUID,
				s.SizeBytes,
			)
		}
		fmt.Printf("\nPage %d of %d (about %d backup(s)", result.Pagination.Page, result.Pagination.TotalPages, result.Pagination.Total)
		if result.Pagination.HasNext {
			fmt.Print(", more available")
		}
		fmt.Println(")")
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show SNAPSHOT_ID",
	Short: "View snapshot metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, org, err := newApp(cmd, "GetSnapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.GetSnapshot(cmd.Context(), org, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Snapshot:   %s\n", s.ID)
		fmt.Printf("Dashboard:  %s (%s)\n", s.DashboardName, s.DashboardGUID)
		fmt.Printf("Account:    %s (%s)\n", s.AccountName, s.AccountID)
		fmt.Printf("Owner:      %s\n", s.OwnerEmail)
		fmt.Printf("Captured:   %s\n", s.BackupTimestamp.Format("2006-01-02 15:04:05"))
		fmt.Printf("Modified:   %s\n", s.DashboardUpdatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Size:       %d bytes\n", s.SizeBytes)
		fmt.Printf("Checksum:   %s\n", s.Checksum)
		fmt.Printf("Location:   %s\n", s.ContentLocation)
		return nil
	},
}

// content command
var contentCmd = &cobra.Command{
	Use:   "content SNAPSHOT_ID",
	Short: "Print a snapshot's raw JSON payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, org, err := newApp(cmd, "GetBackupContent")
		if err != nil {
			return err
		}
		defer a.Close()

		payload, err := a.GetBackupContent(cmd.Context(), org, args[0])
		if err != nil {
			return err
		}

		os.Stdout.Write(payload)
		fmt.Println()
		return nil
	},
}

// latest command
var latestCmd = &cobra.Command{
	Use:   "latest DASHBOARD_GUID",
	Short: "Show a dashboard's most recent backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, org, err := newApp(cmd, "GetLatestBackup")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.GetLatestBackup(cmd.Context(), org, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s  %s  %s  %d bytes\n",
			s.ID, s.BackupTimestamp.Format("2006-01-02 15:04:05"), s.DashboardName, s.SizeBytes)
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show storage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, org, err := newApp(cmd, "GetStorageStats")
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.GetStorageStats(cmd.Context(), org)
		if err != nil {
			return err
		}

		fmt.Printf("Backups:    %d\n", stats.TotalBackups)
		fmt.Printf("Total size: %d bytes\n", stats.TotalSizeBytes)
		if stats.OldestBackup != nil {
			fmt.Printf("Oldest:     %s\n", stats.OldestBackup.Format("2006-01-02 15:04:05"))
		}
		if stats.NewestBackup != nil {
			fmt.Printf("Newest:     %s\n", stats.NewestBackup.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore SNAPSHOT_ID",
	Short: "Restore a snapshot as a new dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		credentialID, _ := cmd.Flags().GetString("credential")
		targetAccount, _ := cmd.Flags().GetString("account")
		newName, _ := cmd.Flags().GetString("name")

		a, org, err := newApp(cmd, "RestoreDashboard")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Restore(cmd.Context(), org, args[0], credentialID, targetAccount, newName)
		if err != nil {
			return err
		}

		if !result.Success {
			fmt.Printf("Restore failed: %s\n", result.Message)
			return nil
		}
		fmt.Printf("Restored as new dashboard %s\n", result.NewDashboardGUID)
		return nil
	},
}

var restoreInPlaceCmd = &cobra.Command{
	Use:   "restore-in-place SNAPSHOT_ID",
	Short: "Overwrite the original dashboard with a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		credentialID, _ := cmd.Flags().GetString("credential")

		a, org, err := newApp(cmd, "RestoreInPlace")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.RestoreInPlace(cmd.Context(), org, args[0], credentialID)
		if err != nil {
			return err
		}

		if !result.Success {
			fmt.Printf("Restore failed: %s\n", result.Message)
			return nil
		}
		fmt.Printf("Restored dashboard %s in place\n", result.RestoredDashboard)
		return nil
	},
}

// compare command
var compareCmd = &cobra.Command{
	Use:   "compare SNAPSHOT_ID",
	Short: "Diff a snapshot against the live dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		credentialID, _ := cmd.Flags().GetString("credential")

		a, org, err := newApp(cmd, "CompareWithCurrent")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Compare(cmd.Context(), org, args[0], credentialID)
		if err != nil {
			return err
		}

		if !result.HasChanges {
			fmt.Println("No changes: the live dashboard matches the snapshot.")
			return nil
		}
		fmt.Println("Changed fields:")
		for _, f := range result.ChangedFields {
			fmt.Printf("  - %s\n", f)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, org, err := newApp(cmd, "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.History(cmd.Context(), org, limit)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, e := range entries {
			duration := ""
			if e.FinishedAt != nil {
				d := e.FinishedAt.Sub(e.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("%s  %-22s  %s  %-8s  %s\n",
				e.ID,
				e.Operation,
				e.StartedAt.Format("2006-01-02 15:04:05"),
				e.Status,
				duration,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("org", "", "Organization ID (defaults to default_org from config)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// credential subcommands
	credentialCmd.AddCommand(credentialAddCmd)
	credentialCmd.AddCommand(credentialListCmd)
	credentialCmd.AddCommand(credentialValidateCmd)
	credentialCmd.AddCommand(credentialRemoveCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(credentialCmd)
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().StringP("credential", "c", "", "Credential ID to authenticate with")
	rootCmd.AddCommand(backupAllCmd)
	backupAllCmd.Flags().StringP("credential", "c", "", "Credential ID to authenticate with")
	backupAllCmd.Flags().StringP("account", "a", "", "Only back up this account")
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringP("dashboard", "d", "", "Only list backups of this dashboard GUID")
	listCmd.Flags().StringP("search", "s", "", "Filter by dashboard name or GUID substring")
	listCmd.Flags().Int("page", 1, "Page number")
	listCmd.Flags().Int("limit", 20, "Page size")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(contentCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringP("credential", "c", "", "Credential ID to authenticate with")
	restoreCmd.Flags().StringP("account", "a", "", "Target account (defaults to the snapshot's account)")
	restoreCmd.Flags().String("name", "", "Name for the restored dashboard")
	rootCmd.AddCommand(restoreInPlaceCmd)
	restoreInPlaceCmd.Flags().StringP("credential", "c", "", "Credential ID to authenticate with")
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().StringP("credential", "c", "", "Credential ID to authenticate with")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
