package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/SteamServerUI/AutoSaveManager/autosave"
	"github.com/SteamServerUI/AutoSaveManager/backupmgr"
	"github.com/SteamServerUI/AutoSaveManager/config"
	"github.com/SteamServerUI/AutoSaveManager/global"
	"github.com/SteamServerUI/AutoSaveManager/host"
	"github.com/SteamServerUI/PluginLib"
	cli "github.com/jawher/mow.cli"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
)

const (
	saveDirPollInterval = 2500 * time.Millisecond
	saveDirWaitTimeout  = 90 * time.Minute
)

// paths holds the locations every command needs
type paths struct {
	configFile *string
	saveDir    *string
	backupRoot *string
	saveName   *string
}

func main() {
	app := cli.App("autosave", "Periodically back up and save a running game")

	app.Version("v version", "AutoSaveManager 1.0.0")

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	app.Command("run", "Watch the game and autosave on schedule", cmdRun)
	app.Command("backup", "Create a backup of the save directory now", cmdBackup)
	app.Command("list", "List existing backups, newest first", cmdList)
	app.Command("init-config", "Create the config file with defaults and print it", cmdInitConfig)

	app.Run(os.Args)
}

func getPaths(cmd *cli.Cmd) paths {
	return paths{
		configFile: cmd.String(cli.StringOpt{
			Name:   "c config",
			Value:  "~/.autosave/" + global.ConfigFileName,
			Desc:   "Path to the INI config file (created with defaults when missing)",
			EnvVar: "AUTOSAVE_CONFIG",
		}),
		saveDir: cmd.String(cli.StringOpt{
			Name:   "s save-dir",
			Value:  "./saves/" + global.DefaultSaveName,
			Desc:   "Directory holding the live save",
			EnvVar: "AUTOSAVE_SAVE_DIR",
		}),
		backupRoot: cmd.String(cli.StringOpt{
			Name:   "b backup-root",
			Value:  "./saves/Backups",
			Desc:   "Directory where timestamped backups are kept",
			EnvVar: "AUTOSAVE_BACKUP_ROOT",
		}),
		saveName: cmd.String(cli.StringOpt{
			Name:   "n save-name",
			Value:  global.DefaultSaveName,
			Desc:   "Save name used as the backup directory prefix",
			EnvVar: "AUTOSAVE_SAVE_NAME",
		}),
	}
}

func expand(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		log.WithFields(log.Fields{"path": path, "err": err}).Warnln("Unable to expand path, using it as is")
		return path
	}
	return expanded
}

func setupLogging(debug, plugin bool) *log.Entry {
	if debug {
		log.SetLevel(log.DebugLevel)
	}
	if plugin {
		PluginLib.InitConfig(global.PluginName, global.DefaultLogLevel)
		log.AddHook(&host.PluginLogHook{MinLevel: log.GetLevel()})
	}

	global.Identifier = backupmgr.NewIdentifier()
	return log.WithField("instance", global.Identifier)
}

// loadConfig opens the config store and validates it. A ConfigError disables autosave for the
// lifetime of the process and is reported to the player once.
func loadConfig(p paths, notifier host.Notifier) (*config.INIStore, config.Settings, error) {
	store, err := config.OpenINI(expand(*p.configFile))
	if err != nil {
		notifier.Notify(fmt.Sprintf("Config initialization failed: %v", err))
		return nil, config.Settings{}, err
	}

	settings, err := config.Load(store)
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			notifier.Notify(fmt.Sprintf("%s Is Invalid, Disabling AutoSave!", cfgErr.Key))
		}
		return nil, config.Settings{}, err
	}
	return store, settings, nil
}

func newManager(p paths, settings config.Settings, entry *log.Entry) *backupmgr.BackupManager {
	cfg := backupmgr.NewBackupConfig(*p.saveName, expand(*p.saveDir), expand(*p.backupRoot), settings.MaxBackups)
	cfg.Identifier = global.Identifier
	return backupmgr.NewBackupManager(cfg, backupmgr.WithLogger(entry))
}

func cmdRun(cmd *cli.Cmd) {
	cmd.Spec = "[OPTIONS]"

	p := getPaths(cmd)
	modeOpt := cmd.StringOpt("m mode", "creature", "Game mode the host is in (cell, creature, tribe, civ, space, editor)")
	tickOpt := cmd.StringOpt("tick", "1s", "How often the scheduler is updated")
	quietOpt := cmd.StringOpt("quiet", "5s", "Writes to the save directory closer together than this count as one save")
	plugin := cmd.BoolOpt("plugin", false, "Run as a SteamServerUI plugin: forward logs and trigger saves through the host")
	saveRoute := cmd.StringOpt("save-route", host.DefaultSaveRoute, "Host API route used to trigger a save in plugin mode")
	saveCommand := cmd.StringOpt("save-command", host.DefaultSaveCommand, "Command sent to the host to trigger a save in plugin mode")
	debug := cmd.BoolOpt("debug", false, "Enables the debug logs output")

	cmd.Action = func() {
		entry := setupLogging(*debug, *plugin)

		var notifier host.Notifier = host.LogNotifier(entry)
		if *plugin {
			notifier = host.PluginNotifier()
		}
		notifier = host.NewOnceNotifier(notifier)

		store, settings, err := loadConfig(p, notifier)
		if err != nil {
			entry.WithField("err", err).Errorln("AutoSave disabled")
			return
		}

		mode, err := autosave.ParseMode(*modeOpt)
		if err != nil {
			entry.Errorln(err)
			cli.Exit(1)
		}
		tick, err := time.ParseDuration(*tickOpt)
		if err != nil || tick <= 0 {
			entry.Warnf("Tick option %q is not a valid duration, using 1s", *tickOpt)
			tick = time.Second
		}
		quiet, err := time.ParseDuration(*quietOpt)
		if err != nil {
			entry.Warnf("Quiet option %q is not a valid duration, using the default", *quietOpt)
			quiet = 0
		}

		manager := newManager(p, settings, entry)

		var nativeSave func() error
		if *plugin {
			nativeSave = host.PluginSave(*saveRoute, *saveCommand)
		}
		game := host.NewLocal(nativeSave, entry)

		scheduler, err := autosave.New(autosave.Options{
			Config: store,
			Host:   game,
			Backup: func() error {
				_, err := manager.RotateAndBackup()
				return err
			},
			Interval: settings.Interval,
			Logger:   entry,
		})
		if err != nil {
			entry.WithField("err", err).Errorln("Unable to create scheduler")
			cli.Exit(1)
		}
		game.Subscribe(scheduler)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// handle the SIGINT signal
		waiting := make(chan os.Signal, 1)
		signal.Notify(waiting, os.Interrupt)
		go func() {
			<-waiting
			cancel()
		}()

		saveDir := manager.Config().SourceDir
		entry.WithField("dir", saveDir).Infoln("Waiting for save folder initialization...")
		if err := host.WaitForDir(ctx, saveDir, saveDirPollInterval, saveDirWaitTimeout, entry); err != nil {
			entry.WithField("err", err).Errorln("Save folder never appeared")
			return
		}

		watcher, err := host.NewSaveWatcher(saveDir, quiet, game.ReportSave, entry)
		if err != nil {
			entry.WithField("err", err).Errorln("Unable to watch the save folder, manual saves will not reset the timer")
		} else {
			watcher.Start(ctx)
			defer watcher.Close()
		}

		game.SetMode(mode)
		entry.WithFields(log.Fields{
			"mode":     mode,
			"interval": settings.Interval,
			"max":      settings.MaxBackups,
		}).Infoln("AutoSave started")

		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				entry.Infoln("Stopped.")
				return
			case <-ticker.C:
				if res := scheduler.Update(); res != autosave.TickNotDue && res != autosave.TickIdle {
					entry.WithField("result", res).Debugln("Tick")
				}
			}
		}
	}
}

func cmdBackup(cmd *cli.Cmd) {
	p := getPaths(cmd)
	debug := cmd.BoolOpt("debug", false, "Enables the debug logs output")

	cmd.Action = func() {
		entry := setupLogging(*debug, false)

		_, settings, err := loadConfig(p, host.LogNotifier(entry))
		if err != nil {
			cli.Exit(1)
		}

		backup, err := newManager(p, settings, entry).RotateAndBackup()
		if err != nil {
			entry.WithField("err", err).Errorln("Backup failed")
			cli.Exit(1)
		}
		fmt.Println(backup.Path)
	}
}

func cmdList(cmd *cli.Cmd) {
	p := getPaths(cmd)
	limit := cmd.IntOpt("l limit", 0, "Number of recent backups to show (0 for all)")

	cmd.Action = func() {
		entry := setupLogging(false, false)

		// listing works without a valid config, the limit only matters for rotation
		manager := newManager(p, config.Settings{}, entry)
		backups, err := manager.ListBackups(*limit)
		if err != nil {
			entry.Errorln(err)
			cli.Exit(1)
		}

		if len(backups) == 0 {
			fmt.Println("No backup found.")
			return
		}
		for _, b := range backups {
			fmt.Printf("%s  %s\n", b.ModTime.Format("2006-01-02 15:04:05"), b.Path)
		}
	}
}

func cmdInitConfig(cmd *cli.Cmd) {
	p := getPaths(cmd)

	cmd.Action = func() {
		path := expand(*p.configFile)
		store, err := config.OpenINI(path)
		if err != nil {
			log.Errorln(err)
			cli.Exit(1)
		}

		fmt.Printf("%s [%s]\n", store.Path(), global.ConfigSection)
		for _, d := range config.Defaults {
			fmt.Printf("  %s = %s\n", d.Key, store.GetString(d.Key, d.Value))
		}
	}
}
