package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-sync-store/internal/client"
	"github.com/MKhiriev/go-sync-store/models"
)

// UploadOptions holds flags for the upload command.
type UploadOptions struct {
	*RootOptions
	Public      bool
	MimeType    string
	ResumeToken string
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UploadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file to the backend file store",
		Long: `Upload a file to the backend file store.

An interrupted upload prints its resume token; pass it back with --resume
to continue from the bytes the backend already has.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStores(cmd, func(ctx context.Context, stores client.Stores) error {
				return runUpload(ctx, cmd, opts, stores, args[0])
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Public, "public", false, "make the file publicly readable")
	cmd.Flags().StringVar(&opts.MimeType, "mime-type", "", "content type (default: by extension)")
	cmd.Flags().StringVar(&opts.ResumeToken, "resume", "", "resume token of an interrupted upload")

	return cmd
}

func runUpload(ctx context.Context, cmd *cobra.Command, opts *UploadOptions, stores client.Stores, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "open file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return WrapExitError(ExitCommandError, "stat file", err)
	}

	meta := models.FileMetadata{
		FileName:    filepath.Base(path),
		MimeType:    opts.MimeType,
		Size:        info.Size(),
		Public:      opts.Public,
		ResumeToken: opts.ResumeToken,
	}
	if meta.MimeType == "" {
		meta.MimeType = mime.TypeByExtension(filepath.Ext(path))
	}

	uploaded, err := stores.Files().Upload(ctx, meta, f, nil)
	if err != nil {
		if uploaded.ResumeToken != "" {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "upload interrupted at %d bytes, resume with --resume %s\n", uploaded.Offset, uploaded.ResumeToken)
		}
		return WrapExitError(ExitFailure, "upload "+path, err)
	}

	return opts.output(cmd).Print(fmt.Sprintf("uploaded %s as %s (%d bytes)", meta.FileName, uploaded.ID, uploaded.Size), uploaded, nil)
}

// DownloadOptions holds flags for the download command.
type DownloadOptions struct {
	*RootOptions
	Resume bool
}

// NewDownloadCommand creates the download command.
func NewDownloadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DownloadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "download <file-id> <path>",
		Short: "Download a file from the backend file store",
		Long: `Download a file from the backend file store.

With --resume an existing partial file at <path> is continued instead of
being overwritten.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStores(cmd, func(ctx context.Context, stores client.Stores) error {
				return runDownload(ctx, cmd, opts, stores, args[0], args[1])
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Resume, "resume", false, "continue a partial download")

	return cmd
}

func runDownload(ctx context.Context, cmd *cobra.Command, opts *DownloadOptions, stores client.Stores, id, path string) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if opts.Resume {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return WrapExitError(ExitCommandError, "open file", err)
	}
	defer f.Close()

	meta := models.FileMetadata{ID: id}
	if opts.Resume {
		info, err := f.Stat()
		if err != nil {
			return WrapExitError(ExitCommandError, "stat file", err)
		}
		meta.Offset = info.Size()
	}

	downloaded, err := stores.Files().Download(ctx, meta, f, nil)
	if err != nil {
		return WrapExitError(ExitFailure, "download "+id, err)
	}

	return opts.output(cmd).Print(fmt.Sprintf("downloaded %s to %s (%d bytes)", id, path, downloaded.Offset), downloaded, nil)
}
