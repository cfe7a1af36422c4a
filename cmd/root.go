/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"respcore/internal/logger"
	"respcore/internal/server"
)

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "respcore",
	Short: "A single-threaded, event-driven RESP server",
	Long: `A single-threaded, event-driven RESP-protocol server built in Go,
driven by one epoll event loop rather than a goroutine per connection.`,
	Run: func(cmd *cobra.Command, args []string) {
		logLevel := logger.LogLevel(getStringFlag(cmd, "log-level", "info"))
		logger.Init(logLevel)

		srv := server.New(server.Config{
			Addr:           net.JoinHostPort("", strconv.Itoa(getIntFlag(cmd, "port", 6399))),
			Backlog:        getIntFlag(cmd, "backlog", 0),
			MaxClients:     getIntFlag(cmd, "max-clients", 0),
			TCPKeepAlive:   getIntFlag(cmd, "tcp-keepalive", 0),
			MaxBulkLen:     getIntFlag(cmd, "max-bulk-len", 0),
			MaxQueryBufLen: getIntFlag(cmd, "max-querybuf-len", 0),
		})

		if err := srv.Start(); err != nil {
			logger.Errorf("failed to start server: %v", err)
			os.Exit(1)
		}
		logger.Infof("server started on %s", srv.Addr())

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("shutting down server...")
		if err := srv.Close(); err != nil {
			logger.Errorf("error closing server: %v", err)
		}
	},
}

// Execute adds child commands to root and sets flags appropriately. Called
// by main.main(). Only needs to happen once to rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error, fatal)")
	rootCmd.Flags().Int("port", 6399, "Server port")
	rootCmd.Flags().Int("backlog", 511, "TCP accept queue depth")
	rootCmd.Flags().Int("max-clients", 10000, "Maximum concurrent client connections")
	rootCmd.Flags().Int("tcp-keepalive", 300, "TCP keepalive probe interval in seconds (0 uses the default, negative disables)")
	rootCmd.Flags().Int("max-bulk-len", 512*1024*1024, "Maximum size of a single bulk argument in bytes")
	rootCmd.Flags().Int("max-querybuf-len", 1024*1024*1024, "Maximum unparsed input buffer size per client in bytes")
}

func getStringFlag(cmd *cobra.Command, name, defaultValue string) string {
	if value, err := cmd.Flags().GetString(name); err == nil && value != "" {
		return value
	}
	return defaultValue
}

func getBoolFlag(cmd *cobra.Command, name string) bool {
	if value, err := cmd.Flags().GetBool(name); err == nil {
		return value
	}
	return false
}

func getIntFlag(cmd *cobra.Command, name string, defaultValue int) int {
	if value, err := cmd.Flags().GetInt(name); err == nil {
		return value
	}
	return defaultValue
}

func getDurationFlag(cmd *cobra.Command, name string, defaultValue time.Duration) time.Duration {
	if value, err := cmd.Flags().GetDuration(name); err == nil {
		return value
	}
	return defaultValue
}
