package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/utils"
	"github.com/MKhiriev/go-sync-store/models"
)

// statusResumeIncomplete is returned by the upload session while the
// upload has not received every byte.
const statusResumeIncomplete = http.StatusPermanentRedirect

type httpFileTransfer struct {
	client *utils.HTTPClient
	appKey string

	logger *logger.Logger
}

// NewHTTPFileTransfer constructs a resumable [FileTransfer] against the blob
// endpoints of the backend configured in cfg.
func NewHTTPFileTransfer(cfg config.Adapter, logger *logger.Logger) (FileTransfer, error) {
	baseURL, err := normalizeBaseURL(cfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter http address: %w", err)
	}

	client := utils.NewHTTPClient(baseURL, cfg.RequestTimeout).
		WithBearer(strings.TrimSpace(cfg.AuthToken))
	client.OnAfterResponse(requestLogger(logger))

	return &httpFileTransfer{client: client, appKey: cfg.AppKey, logger: logger}, nil
}

func (f *httpFileTransfer) blobPath() string {
	return "/blob/" + url.PathEscape(f.appKey)
}

// Upload implements [FileTransfer]. Without a ResumeToken it creates the
// file record with POST /blob/{appKey} and streams r to the returned upload
// URL. With a ResumeToken it asks the upload session how many bytes it holds,
// skips them in r and sends the rest. r must therefore yield the file from
// its first byte in both cases.
func (f *httpFileTransfer) Upload(ctx context.Context, meta models.FileMetadata, r io.Reader, progress models.Progress) (models.FileMetadata, error) {
	log := logger.FromContext(ctx)

	if meta.ResumeToken == "" {
		created, err := f.createBlob(ctx, meta)
		if err != nil {
			return meta, err
		}
		meta = mergeFileMetadata(meta, created)
		meta.ResumeToken = created.UploadURL
		meta.Offset = 0
	} else {
		offset, complete, err := f.uploadedBytes(ctx, meta.ResumeToken, meta.Size)
		if err != nil {
			return meta, err
		}
		meta.Offset = offset
		if complete {
			report(progress, meta.Size, meta.Size)
			return finishUpload(meta), nil
		}
	}

	if err := skipBytes(r, meta.Offset); err != nil {
		return meta, fmt.Errorf("skip uploaded bytes: %w", err)
	}

	body := &progressReader{r: r, done: meta.Offset, total: totalSize(meta.Size), progress: progress}
	req := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType(meta.MimeType)).
		SetBody(body)
	if meta.Size > 0 {
		req.SetHeader("Content-Range", fmt.Sprintf("bytes %d-%d/%d", meta.Offset, meta.Size-1, meta.Size))
	}

	resp, err := req.Put(meta.ResumeToken)
	if err != nil {
		log.Err(err).
			Str("func", "httpFileTransfer.Upload").
			Str("file_id", meta.ID).
			Int64("offset", meta.Offset).
			Msg("upload interrupted")
		return meta, mapTransportError("upload request", err)
	}

	if resp.StatusCode() == statusResumeIncomplete {
		meta.Offset = parseRangeEnd(resp.Header().Get("Range"))
		return meta, fmt.Errorf("%w: %d of %d bytes stored", ErrTransferIncomplete, meta.Offset, meta.Size)
	}
	if err = mapHTTPError(resp); err != nil {
		return meta, err
	}

	return finishUpload(meta), nil
}

func (f *httpFileTransfer) createBlob(ctx context.Context, meta models.FileMetadata) (models.FileMetadata, error) {
	var created models.FileMetadata

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(meta).
		SetResult(&created).
		Post(f.blobPath())
	if err != nil {
		return models.FileMetadata{}, mapTransportError("create file request", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.FileMetadata{}, err
	}
	if created.UploadURL == "" {
		return models.FileMetadata{}, fmt.Errorf("create file: server returned no upload url")
	}

	return created, nil
}

// uploadedBytes queries the upload session with an empty PUT carrying
// "Content-Range: bytes */size".
func (f *httpFileTransfer) uploadedBytes(ctx context.Context, session string, size int64) (int64, bool, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Range", fmt.Sprintf("bytes */%d", size)).
		Put(session)
	if err != nil {
		return 0, false, mapTransportError("upload status request", err)
	}

	switch resp.StatusCode() {
	case statusResumeIncomplete:
		return parseRangeEnd(resp.Header().Get("Range")), false, nil
	case http.StatusOK, http.StatusCreated:
		return size, true, nil
	}
	return 0, false, mapHTTPError(resp)
}

// Download implements [FileTransfer]. The download URL is looked up with
// GET /blob/{appKey}/{id} when meta does not carry one. A positive Offset
// continues an interrupted download: the bytes already in w are not
// requested again.
func (f *httpFileTransfer) Download(ctx context.Context, meta models.FileMetadata, w io.Writer, progress models.Progress) (models.FileMetadata, error) {
	if meta.DownloadURL == "" {
		fetched, err := f.blobMetadata(ctx, meta.ID)
		if err != nil {
			return meta, err
		}
		meta = mergeFileMetadata(meta, fetched)
	}

	req := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	if meta.Offset > 0 {
		req.SetHeader("Range", fmt.Sprintf("bytes=%d-", meta.Offset))
	}

	resp, err := req.Get(meta.DownloadURL)
	if err != nil {
		return meta, mapTransportError("download request", err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	switch resp.StatusCode() {
	case http.StatusPartialContent:
	case http.StatusOK:
		// range ignored: the body starts at byte zero
		if err = skipBytes(raw, meta.Offset); err != nil {
			return meta, mapTransportError("download body", err)
		}
	default:
		body, _ := io.ReadAll(raw)
		return meta, mapStatusError(resp.StatusCode(), body)
	}

	written, err := io.Copy(w, &progressReader{r: raw, done: meta.Offset, total: totalSize(meta.Size), progress: progress})
	meta.Offset += written
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "httpFileTransfer.Download").
			Str("file_id", meta.ID).
			Int64("offset", meta.Offset).
			Msg("download interrupted")
		return meta, mapTransportError("download body", err)
	}

	return meta, nil
}

func (f *httpFileTransfer) blobMetadata(ctx context.Context, id string) (models.FileMetadata, error) {
	if id == "" {
		return models.FileMetadata{}, fmt.Errorf("download file: empty id")
	}

	resp, err := f.client.R().
		SetContext(ctx).
		Get(f.blobPath() + "/" + url.PathEscape(id))
	if err != nil {
		return models.FileMetadata{}, mapTransportError("file metadata request", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.FileMetadata{}, err
	}

	var fetched models.FileMetadata
	if err = json.Unmarshal(resp.Body(), &fetched); err != nil {
		return models.FileMetadata{}, fmt.Errorf("decode file metadata: %w", err)
	}
	if fetched.DownloadURL == "" {
		return models.FileMetadata{}, fmt.Errorf("download file: server returned no download url")
	}
	return fetched, nil
}

// mergeFileMetadata overlays the non-empty server fields onto local.
func mergeFileMetadata(local, server models.FileMetadata) models.FileMetadata {
	if server.ID != "" {
		local.ID = server.ID
	}
	if server.FileName != "" {
		local.FileName = server.FileName
	}
	if server.MimeType != "" {
		local.MimeType = server.MimeType
	}
	if server.Size > 0 {
		local.Size = server.Size
	}
	if server.DownloadURL != "" {
		local.DownloadURL = server.DownloadURL
	}
	if server.ExpiresAt != nil {
		local.ExpiresAt = server.ExpiresAt
	}
	if server.UploadURL != "" {
		local.UploadURL = server.UploadURL
	}
	local.Public = local.Public || server.Public
	return local
}

func finishUpload(meta models.FileMetadata) models.FileMetadata {
	meta.ResumeToken = ""
	meta.UploadURL = ""
	meta.Offset = meta.Size
	return meta
}

// parseRangeEnd turns a "bytes=0-N" header into the stored byte count N+1.
func parseRangeEnd(header string) int64 {
	_, span, ok := strings.Cut(header, "=")
	if !ok {
		return 0
	}
	_, last, ok := strings.Cut(span, "-")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(last), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n + 1
}

func skipBytes(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if seeker, ok := r.(io.Seeker); ok {
		_, err := seeker.Seek(n, io.SeekCurrent)
		return err
	}
	copied, err := io.CopyN(io.Discard, r, n)
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("source ended after %d of %d bytes", copied, n)
	}
	return err
}

func contentType(mime string) string {
	if mime == "" {
		return "application/octet-stream"
	}
	return mime
}

func totalSize(size int64) int64 {
	if size <= 0 {
		return -1
	}
	return size
}

func report(progress models.Progress, done, total int64) {
	if progress != nil {
		progress(done, total)
	}
}

// progressReader reports the running byte count after every read.
type progressReader struct {
	r        io.Reader
	done     int64
	total    int64
	progress models.Progress
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		report(p.progress, p.done, p.total)
	}
	return n, err
}
