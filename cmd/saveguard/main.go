package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"saveguard/internal/bootstrap"
	"saveguard/internal/detector"
	"saveguard/internal/library"
	"saveguard/internal/service"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newOps resolves the data root and wires a service.Operations, the single
// thing every subcommand below needs.
func newOps() (*service.Operations, error) {
	dataRoot, err := bootstrap.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolving data root: %w", err)
	}
	return service.New(dataRoot)
}

// confirmDestructive asks for a y/n confirmation when stdin is an
// interactive terminal; non-interactive runs (scripts, CI) proceed without
// prompting.
func confirmDestructive(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

var rootCmd = &cobra.Command{
	Use:   "saveguard",
	Short: "Game save backup and restore",
}

var gameCmd = &cobra.Command{
	Use:   "game",
	Short: "Manage registered games",
}

var gameAddCmd = &cobra.Command{
	Use:   "add NAME EXE_PATH INSTALL_PATH",
	Short: "Register a new game",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := newOps()
		if err != nil {
			return err
		}
		game, err := ops.AddGame(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Registered %q (id=%s)\n", game.Name, game.ID)
		return nil
	},
}

var gameListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered games",
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := newOps()
		if err != nil {
			return err
		}
		games, err := ops.ListGames()
		if err != nil {
			return err
		}
		for _, g := range games {
			last := "never"
			if g.LastBackupAt != nil {
				last = g.LastBackupAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s\t%-8s\t%-30s\tlast backup: %s\tissues: %d\n", g.ID, g.Status, g.Name, last, g.IssueCount)
		}
		return nil
	},
}

var gameShowCmd = &cobra.Command{
	Use:   "show GAME_ID",
	Short: "Show a game's locations and snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := newOps()
		if err != nil {
			return err
		}
		detail, err := ops.GetGameDetail(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s) — %s\n", detail.Game.Name, detail.Game.ID, detail.Game.Status)
		fmt.Println("Locations:")
		for _, loc := range detail.Locations {
			fmt.Printf("  [%s] %s (%s, enabled=%v, exists=%v)\n", loc.ID, loc.Path, loc.Type, loc.Enabled, loc.Exists)
		}
		fmt.Println("Snapshots:")
		for _, s := range detail.Snapshots {
			fmt.Printf("  [%s] %s\t%s\t%s\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Reason, humanize.Bytes(uint64(s.SizeBytes)))
		}
		return nil
	},
}

var gameRemoveCmd = &cobra.Command{
	Use:   "remove GAME_ID",
	Short: "Remove a game and its backups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmDestructive(fmt.Sprintf("Remove game %s and all of its backups?", args[0])) {
			fmt.Println("Aborted.")
			return nil
		}
		ops, err := newOps()
		if err != nil {
			return err
		}
		return ops.RemoveGame(args[0])
	},
}

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Manage save locations",
}

var locationAddCmd = &cobra.Command{
	Use:   "add GAME_ID PATH TYPE",
	Short: "Track a save path for a game (TYPE is file or folder)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := newOps()
		if err != nil {
			return err
		}
		loc, err := ops.AddSaveLocation(args[0], args[1], library.LocationType(args[2]), false)
		if err != nil {
			return err
		}
		fmt.Printf("Tracking %s (id=%s)\n", loc.Path, loc.ID)
		return nil
	},
}

var locationToggleCmd = &cobra.Command{
	Use:   "toggle LOCATION_ID true|false",
	Short: "Enable or disable a tracked location",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("parsing enabled flag: %w", err)
		}
		ops, err := newOps()
		if err != nil {
			return err
		}
		return ops.ToggleSaveLocation(args[0], enabled)
	},
}

var locationRemoveCmd = &cobra.Command{
	Use:   "remove LOCATION_ID",
	Short: "Stop tracking a save location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := newOps()
		if err != nil {
			return err
		}
		return ops.RemoveSaveLocation(args[0])
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect GAME_ID",
	Short: "Detect candidate save locations from the title catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := newOps()
		if err != nil {
			return err
		}
		result, err := ops.DetectCatalogSavePaths(context.Background(), args[0], func(p detector.Progress) {
			fmt.Printf("\r[%3d%%] %s", p.Percent, p.Message)
		})
		fmt.Println()
		if err != nil {
			return err
		}
		fmt.Printf("Status: %s (matched %q, score=%.2f)\n", result.Status, result.MatchedTitle, result.MatchScore)
		for _, c := range result.Candidates {
			fmt.Printf("  %.2f  %s\n", c.Score, c.Path)
		}
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup GAME_ID",
	Short: "Create a manual backup of a game's save locations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := newOps()
		if err != nil {
			return err
		}
		snap, err := ops.Backup(args[0], library.ReasonManual)
		if err != nil {
			return err
		}
		if snap == nil {
			fmt.Println("Backup skipped (no enabled locations or no files found).")
			return nil
		}
		fmt.Printf("Created snapshot %s (%s)\n", snap.ID, humanize.Bytes(uint64(snap.SizeBytes)))
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore SNAPSHOT_ID",
	Short: "Restore a snapshot's files back onto disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmDestructive(fmt.Sprintf("Restore snapshot %s? This overwrites current save files.", args[0])) {
			fmt.Println("Aborted.")
			return nil
		}
		ops, err := newOps()
		if err != nil {
			return err
		}
		return ops.Restore(args[0])
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify SNAPSHOT_ID",
	Short: "Verify a snapshot's files against their recorded checksums",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := newOps()
		if err != nil {
			return err
		}
		result, err := ops.Verify(args[0])
		if err != nil {
			return err
		}
		if result.OK {
			fmt.Println("OK")
			return nil
		}
		for _, issue := range result.Issues {
			fmt.Printf("  %s: %s\n", issue.RelativePath, issue.Reason)
		}
		return fmt.Errorf("%d issue(s) found", len(result.Issues))
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete SNAPSHOT_ID",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmDestructive(fmt.Sprintf("Delete snapshot %s permanently?", args[0])) {
			fmt.Println("Aborted.")
			return nil
		}
		ops, err := newOps()
		if err != nil {
			return err
		}
		return ops.Delete(args[0])
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Rebuild the library from the storage root's on-disk layout",
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := newOps()
		if err != nil {
			return err
		}
		result, err := ops.Scan()
		if err != nil {
			return err
		}
		fmt.Printf("Added %d snapshot(s), removed %d (with %d file rows). Skipped %d unknown game folder(s), %d invalid snapshot(s).\n",
			result.Added, result.Removed, result.RemovedFiles, result.SkippedUnknownGames, result.SkippedInvalid)
		return nil
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "View or change settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := newOps()
		if err != nil {
			return err
		}
		s, err := ops.GetSettings()
		if err != nil {
			return err
		}
		fmt.Printf("backupFrequencyMinutes: %d\n", s.BackupFrequencyMinutes)
		fmt.Printf("retentionCount:         %d\n", s.RetentionCount)
		fmt.Printf("storageRoot:            %s\n", s.StorageRoot)
		fmt.Printf("dataRoot:               %s\n", s.DataRoot)
		fmt.Printf("compressionEnabled:     %v\n", s.CompressionEnabled)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := newOps()
		if err != nil {
			return err
		}
		current, err := ops.GetSettings()
		if err != nil {
			return err
		}

		freq, _ := cmd.Flags().GetInt("backup-frequency-minutes")
		retention, _ := cmd.Flags().GetInt("retention-count")
		storageRoot, _ := cmd.Flags().GetString("storage-root")
		compression, _ := cmd.Flags().GetBool("compression")

		req := library.UpdateSettingsRequest{
			BackupFrequencyMinutes: current.BackupFrequencyMinutes,
			RetentionCount:         current.RetentionCount,
			StorageRoot:            storageRoot,
			CompressionEnabled:     compression,
		}
		if freq > 0 {
			req.BackupFrequencyMinutes = freq
		}
		if retention > 0 {
			req.RetentionCount = retention
		}
		return ops.UpdateSettings(req)
	},
}

func init() {
	gameCmd.AddCommand(gameAddCmd, gameListCmd, gameShowCmd, gameRemoveCmd)
	locationCmd.AddCommand(locationAddCmd, locationToggleCmd, locationRemoveCmd)
	settingsSetCmd.Flags().Int("backup-frequency-minutes", 0, "minutes between automatic backups")
	settingsSetCmd.Flags().Int("retention-count", 0, "number of snapshots to keep per game")
	settingsSetCmd.Flags().String("storage-root", "", "directory snapshots are stored under")
	settingsSetCmd.Flags().Bool("compression", false, "reserved, currently inactive")
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)

	rootCmd.AddCommand(gameCmd, locationCmd, detectCmd, backupCmd, restoreCmd, verifyCmd, deleteCmd, scanCmd, settingsCmd)
}
