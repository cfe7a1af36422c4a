package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"respcore/internal/repl"
)

// cliCmd represents the interactive client subcommand.
var cliCmd = &cobra.Command{
	Use:   "cli",
	Short: "Interactive respcore command-line client",
	Long: `Interactive respcore command-line client, similar in spirit to redis-cli.

Connect to a respcore server and execute commands interactively or in batch mode.

Examples:
  respcore cli
  respcore cli --host 127.0.0.1 --port 6399
  respcore cli --eval "TEST"
  respcore cli --file commands.txt`,
	Run: func(cmd *cobra.Command, args []string) {
		repl.Run(&repl.Config{
			Host:    getStringFlag(cmd, "host", "127.0.0.1"),
			Port:    getIntFlag(cmd, "port", 6399),
			Timeout: getDurationFlag(cmd, "timeout", 5*time.Second),
			Raw:     getBoolFlag(cmd, "raw"),
			Eval:    getStringFlag(cmd, "eval", ""),
			File:    getStringFlag(cmd, "file", ""),
			Pipe:    getBoolFlag(cmd, "pipe"),
		}, args)
	},
}

func init() {
	rootCmd.AddCommand(cliCmd)

	cliCmd.Flags().String("host", "127.0.0.1", "respcore server host")
	cliCmd.Flags().IntP("port", "p", 6399, "respcore server port")
	cliCmd.Flags().Duration("timeout", 5*time.Second, "Connection timeout")

	cliCmd.Flags().Bool("raw", false, "Use raw formatting for replies")
	cliCmd.Flags().String("eval", "", "Send the specified command")
	cliCmd.Flags().String("file", "", "Execute commands from file")
	cliCmd.Flags().Bool("pipe", false, "Pipe mode: read commands from stdin")
}
