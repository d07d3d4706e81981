package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/driftpad/driftpad/internal/client"
	"github.com/driftpad/driftpad/internal/config"
	"github.com/driftpad/driftpad/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "driftpad-edit",
		Short: "Terminal client for a Driftpad room",
		Long: `Joins a room on a Driftpad server and edits it from the terminal.
Each input line is appended to the document; ":title <text>" renames it and
":quit" exits. Remote edits from other participants print as they arrive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEditor(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyClientDefaults(viper.GetViper())
	cmd.PersistentFlags().String("server-url", viper.GetString("server.url"), "Driftpad server base URL")
	cmd.PersistentFlags().String("room", "", "Room identifier to join")
	cmd.PersistentFlags().String("log-level", viper.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("broadcast-ms", viper.GetInt("debounce.broadcast_ms"), "Broadcast debounce window in milliseconds")
	cmd.PersistentFlags().Int("save-ms", viper.GetInt("debounce.save_ms"), "Durable save debounce window in milliseconds")

	bindFlag(cmd, "server.url", "server-url")
	bindFlag(cmd, "room.id", "room")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "debounce.broadcast_ms", "broadcast-ms")
	bindFlag(cmd, "debounce.save_ms", "save-ms")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func runEditor(ctx context.Context) error {
	clientConfig, err := config.LoadClient(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(clientConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := client.NewStoreClient(clientConfig.ServerURL, logger)
	record, err := store.FetchRoom(signalCtx, clientConfig.RoomID)
	if err != nil {
		return fmt.Errorf("load room: %w", err)
	}

	var emitter *client.Emitter
	handlers := client.RelayHandlers{
		OnRoomData: func(content, title string) {
			emitter.ApplyRemoteContent(content)
			emitter.ApplyRemoteTitle(title)
			fmt.Printf("-- live state: %q (%d bytes)\n", title, len(content))
		},
		OnContentChanged: func(content string) {
			emitter.ApplyRemoteContent(content)
			fmt.Printf("-- peer edit (%d bytes)\n%s\n", len(content), content)
		},
		OnTitleChanged: func(title string) {
			emitter.ApplyRemoteTitle(title)
			fmt.Printf("-- peer renamed document: %q\n", title)
		},
	}

	relayClient, err := client.DialRelay(signalCtx, clientConfig.ServerURL, handlers, logger)
	if err != nil {
		return fmt.Errorf("connect relay: %w", err)
	}
	defer relayClient.Close() //nolint:errcheck

	emitter, err = client.NewEmitter(client.EmitterConfig{
		RoomID:         clientConfig.RoomID,
		Relay:          relayClient,
		Store:          store,
		BroadcastDelay: clientConfig.BroadcastDelay,
		SaveDelay:      clientConfig.SaveDelay,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer emitter.Close()

	// The durable copy is authoritative at load; live broadcasts correct it.
	emitter.ApplyRemoteTitle(record.Title)
	emitter.ApplyRemoteContent(record.Content)

	if err := relayClient.Join(clientConfig.RoomID); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	defer func() {
		emitter.Flush()
		_ = relayClient.Leave(clientConfig.RoomID)
	}()

	fmt.Printf("joined %q: title %q, %d bytes\n", clientConfig.RoomID, record.Title, len(record.Content))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-signalCtx.Done():
			return nil
		case <-relayClient.Done():
			logger.Warn("relay connection lost")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch {
			case line == ":quit":
				return nil
			case strings.HasPrefix(line, ":title "):
				emitter.SetTitle(strings.TrimPrefix(line, ":title "))
			default:
				emitter.SetContent(appendLine(emitter.Content(), line))
			}
		}
	}
}

func appendLine(content, line string) string {
	if content == "" {
		return line
	}
	return content + "\n" + line
}
