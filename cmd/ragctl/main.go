// Package main implements ragctl, a command-line client for the RAG HTTP API.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github/itish2003/ragqa/models"
)

var (
	// serverURL is the base URL of the RAG server
	serverURL string
	sessionID string
	version   = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "CLI for the RAG document QA server",
	Long: `ragctl talks to a running RAG server: ask questions, upload documents,
index web pages and inspect what is stored.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "RAG server URL")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "conversation session id (server default when empty)")
	rootCmd.AddCommand(askCmd, newSessionCmd, clearAllCmd, healthCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the indexed documents",
	Long: `Ask a question and print the answer as it streams in.

Examples:
  ragctl ask "What is this document about?"
  ragctl --session demo ask "Who is Jane Smith?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var newSessionCmd = &cobra.Command{
	Use:   "new-session",
	Short: "Reset the conversation for --session, or start a fresh one",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var resp models.SessionResponse
		if err := newClient().doJSON(cmd.Context(), http.MethodPost, "/api/v1/new-session", models.SessionRequest{SessionID: sessionID}, &resp); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.SessionID)
		return nil
	},
}

var clearAllCmd = &cobra.Command{
	Use:   "clear-all",
	Short: "Delete every document, web source and session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var resp models.MessageResponse
		if err := newClient().doJSON(cmd.Context(), http.MethodDelete, "/api/v1/clear-all", nil, &resp); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var resp models.HealthResponse
		if err := newClient().doJSON(cmd.Context(), http.MethodGet, "/health", nil, &resp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Status: %s (version %s)\nVector store: %s\nDocument chunks: %d\nWeb chunks: %d\n",
			resp.Status, resp.Version, resp.VectorStore, resp.Documents, resp.WebChunks)
		return nil
	},
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	body, err := newClient().ask(cmd.Context(), sessionID, question)
	if err != nil {
		return err
	}
	defer body.Close()

	out := cmd.OutOrStdout()
	if _, err := io.Copy(flushWriter{out}, body); err != nil {
		return fmt.Errorf("reading answer: %w", err)
	}
	fmt.Fprintln(out)
	return nil
}

// flushWriter syncs stdout after every chunk so the answer appears as it streams.
type flushWriter struct{ w io.Writer }

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if s, ok := f.w.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	return n, err
}
