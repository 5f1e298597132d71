package cmd

import (
	"context"
	"fmt"
	u "net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/mrpack-downloader/internal/config"
	"github.com/tanq16/mrpack-downloader/internal/fetcher"
	"github.com/tanq16/mrpack-downloader/internal/output"
	"github.com/tanq16/mrpack-downloader/internal/scheduler"
	"github.com/tanq16/mrpack-downloader/internal/utils"
)

var configFile string

var MrpackVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "mrpack-downloader",
	Short:   "Downloads all mods from a .mrpack Modrinth modpack",
	Version: MrpackVersion,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}
		if cmd.Flags().Changed("header") {
			// viper splits array values on commas
			cfg.Headers, _ = cmd.Flags().GetStringArray("header")
		}
		os.Exit(download(cfg))
	},
}

func download(cfg *config.Config) int {
	display := !cfg.Debug && output.IsTerminal()
	if display {
		logFile, err := os.OpenFile(utils.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			output.PrintError(fmt.Sprintf("Error opening log file: %v", err))
			return 1
		}
		defer logFile.Close()
		utils.InitLogger(false, logFile)
	} else {
		utils.InitLogger(cfg.Debug, os.Stderr)
	}

	pack, files, err := scheduler.LoadManifest(cfg.MrpackPath, cfg.Side)
	if err != nil {
		log.Error().Str("op", "cmd/root").Err(err).Msg("Could not load manifest")
		output.PrintError(err.Error())
		return 1
	}

	outDir := filepath.Join(cfg.OutPath, utils.OutputDirName)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		output.PrintError(fmt.Sprintf("Error creating output directory: %v", err))
		return 1
	}
	f := fetcher.New(outDir, fetcher.Options{
		HTTPConfig: httpConfig(cfg),
		S3Profile:  cfg.S3Profile,
	})
	opts := scheduler.Options{Workers: cfg.Workers, Fetcher: f}

	if !display {
		return finish(cfg, pack, scheduler.Run(context.Background(), files, opts))
	}
	output.PrintHeader(fmt.Sprintf("%s %s", pack.Name, pack.VersionID))
	mgr := output.NewManager(len(files), os.Stdout)
	opts.Observer = mgr
	mgr.StartDisplay()
	result := scheduler.Run(context.Background(), files, opts)
	mgr.StopDisplay()
	return finish(cfg, pack, result)
}

func httpConfig(cfg *config.Config) utils.HTTPClientConfig {
	userAgent := cfg.UserAgent
	if userAgent == "randomize" {
		userAgent = utils.GetRandomUserAgent()
	}
	proxyURL, proxyUsername, proxyPassword := cfg.Proxy, cfg.ProxyUsername, cfg.ProxyPassword
	// Check if proxy URL contains auth
	parsedProxy, err := u.Parse(proxyURL)
	if err == nil && parsedProxy.User != nil && proxyUsername == "" {
		proxyUsername = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			proxyPassword = password
		}
		parsedProxy.User = nil
		proxyURL = parsedProxy.String()
	}
	return utils.HTTPClientConfig{
		Timeout:       cfg.Timeout,
		KATimeout:     cfg.KeepAliveTimeout,
		ProxyURL:      proxyURL,
		ProxyUsername: proxyUsername,
		ProxyPassword: proxyPassword,
		UserAgent:     userAgent,
		Headers:       utils.ParseHeaderArgs(cfg.Headers),
		Token:         cfg.Token,
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (flags and MRPACK_* env override it)")
	rootCmd.PersistentFlags().StringP("mrpack_path", "p", "", "The path to the .mrpack modpack file")
	rootCmd.PersistentFlags().String("side", "", "Only keep files supported on this side (client or server)")

	rootCmd.Flags().StringP("out_path", "o", "./", "The path where the out_mrpack directory gets created")
	rootCmd.Flags().IntP("workers", "w", 0, "Number of files to download in parallel (0 uses all CPUs)")
	rootCmd.Flags().DurationP("timeout", "t", 3*time.Minute, "Per-mirror request timeout (eg. 30s, 5m)")
	rootCmd.Flags().DurationP("keep_alive_timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m)")
	rootCmd.Flags().StringP("user_agent", "a", utils.ToolUserAgent, "User agent (\"randomize\" picks a browser agent)")
	rootCmd.Flags().String("proxy", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	rootCmd.Flags().String("proxy_username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.Flags().String("proxy_password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.Flags().StringArrayP("header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	rootCmd.Flags().String("token", "", "Bearer token sent to every mirror")
	rootCmd.Flags().String("s3_profile", "", "AWS profile used for s3:// mirrors")
	rootCmd.Flags().String("report", "", "Write a YAML report of the run to this file")
	rootCmd.Flags().Bool("debug", false, "Enable debug logging (disables the live display)")

	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newCleanCmd())
}
