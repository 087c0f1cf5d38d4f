// Command chatnode runs one participant of a decentralized group-chat
// overlay: no broker, no registry, one elected coordinator at a time.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/distribuidos-chat/chatnode/internal/config"
	"github.com/distribuidos-chat/chatnode/internal/logging"
	"github.com/distribuidos-chat/chatnode/internal/node"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
		nickname   string
	)

	root := &cobra.Command{
		Use:   "chatnode",
		Short: "Join or bootstrap a decentralized group-chat overlay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logging.SetLevel(logrus.DebugLevel)
			}
			return run(configPath, nickname)
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML overlay config file")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.Flags().StringVarP(&nickname, "nickname", "n", "", "nickname to use (prompted if omitted)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the chatnode version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	return root
}

func run(configPath, nickname string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	term := newStdioTerminal()
	if nickname == "" {
		nickname = term.ReadNickname()
	}

	n, err := node.New(cfg, nickname, term)
	if err != nil {
		// Lifecycle error: fatal.
		logging.System().Fatalf("failed to start node: %v", err)
	}
	n.Start()

	for !n.IsJoined() {
		time.Sleep(time.Second)
	}

	fmt.Println("\n--- Chat iniciado. Digite suas mensagens e pressione Enter. Digite 'exit' para sair. ---")

	for {
		line, ok := term.ReadLine()
		if !ok {
			n.Leave()
			return nil
		}
		if strings.EqualFold(line, "exit") {
			n.Leave()
			return nil
		}
		n.SendChat(line)
	}
}
