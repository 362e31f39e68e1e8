package main

import (
	"fmt"
	"net/http"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github/itish2003/ragqa/models"
)

func init() {
	rootCmd.AddCommand(uploadCmd, filesCmd, deleteCmd, webCmd)
	webCmd.AddCommand(webAddCmd, webListCmd, webDeleteCmd)
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload and index documents (.pdf, .txt, .md, .csv)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().upload(cmd.Context(), args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, resp.Message)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tSTATUS\tCHUNKS\tERROR")
		for _, r := range resp.Results {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Filename, r.Status, r.Chunks, r.Error)
		}
		return w.Flush()
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List uploaded documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var resp models.FilesResponse
		if err := newClient().doJSON(cmd.Context(), http.MethodGet, "/api/v1/files", nil, &resp); err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tCHUNKS\tUPLOADED")
		for _, f := range resp.Files {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", f.Name, f.Size, f.Chunks, f.UploadedAt.Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(w, "\nTotal chunks: %d\n", resp.TotalChunks)
		return w.Flush()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <filename>",
	Short: "Delete an uploaded document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp models.MessageResponse
		path := "/api/v1/files/" + url.PathEscape(args[0])
		if err := newClient().doJSON(cmd.Context(), http.MethodDelete, path, nil, &resp); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	},
}

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Manage indexed web pages",
}

var webAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Fetch and index a web page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp models.IngestURLResponse
		if err := newClient().doJSON(cmd.Context(), http.MethodPost, "/api/v1/web", models.IngestURLRequest{URL: args[0]}, &resp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d chunks)\n", resp.Message, resp.URL, resp.Chunks)
		return nil
	},
}

var webListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed web pages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var resp models.WebSourcesResponse
		if err := newClient().doJSON(cmd.Context(), http.MethodGet, "/api/v1/web", nil, &resp); err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "URL\tCHUNKS\tINDEXED")
		for _, s := range resp.Sources {
			fmt.Fprintf(w, "%s\t%d\t%s\n", s.Source, s.Chunks, s.UploadedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var webDeleteCmd = &cobra.Command{
	Use:   "delete <url>",
	Short: "Remove a web page's chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp models.MessageResponse
		if err := newClient().doJSON(cmd.Context(), http.MethodDelete, "/api/v1/web", models.DeleteWebRequest{URL: args[0]}, &resp); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	},
}
