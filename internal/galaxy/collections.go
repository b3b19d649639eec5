package galaxy

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/galaxykit-go/internal/artifact"
)

// Default repositories of the collection pipeline.
const (
	StagingRepo   = "staging"
	PublishedRepo = "published"
)

// UploadOptions controls the multipart body of UploadArtifact.
type UploadOptions struct {
	// Path overrides the upload endpoint. Empty means the namespace's
	// inbound endpoint.
	Path string
	// SHA256 is sent as the sha256 field. Empty computes it; "-" omits it.
	SHA256     string
	NoFilename bool
	NoFile     bool
}

// UploadArtifact posts a collection archive and returns the import task.
func (c *Client) UploadArtifact(
	ctx context.Context, namespace, filename string, data []byte, opts UploadOptions,
) (TaskHandle, error) {
	body, contentType, err := uploadBody(filename, data, opts)
	if err != nil {
		return TaskHandle{}, err
	}

	path := opts.Path
	if path == "" {
		path = fmt.Sprintf("content/inbound-%s/v3/artifacts/collections/", url.PathEscape(namespace))
	}

	resp, err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
		Header: http.Header{"Content-Type": {contentType}},
	})
	if err != nil {
		return TaskHandle{}, err
	}

	return HandleFromResponse(resp)
}

func uploadBody(filename string, data []byte, opts UploadOptions) ([]byte, string, error) {
	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary("--------------------------" + strings.ReplaceAll(uuid.NewString(), "-", "")); err != nil {
		return nil, "", fmt.Errorf("galaxy: multipart boundary: %w", err)
	}

	switch opts.SHA256 {
	case "-":
	case "":
		sum := sha256.Sum256(data)
		if err := w.WriteField("sha256", hex.EncodeToString(sum[:])); err != nil {
			return nil, "", fmt.Errorf("galaxy: writing sha256 field: %w", err)
		}
	default:
		if err := w.WriteField("sha256", opts.SHA256); err != nil {
			return nil, "", fmt.Errorf("galaxy: writing sha256 field: %w", err)
		}
	}

	if !opts.NoFile {
		disposition := `file; name="file"`
		if !opts.NoFilename {
			disposition += fmt.Sprintf("; filename=%q", filename)
		}

		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {disposition},
			"Content-Type":        {"application/octet-stream"},
		})
		if err != nil {
			return nil, "", fmt.Errorf("galaxy: creating file part: %w", err)
		}

		if _, err := part.Write(data); err != nil {
			return nil, "", fmt.Errorf("galaxy: writing file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("galaxy: closing multipart body: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

// UploadTestCollection builds a throwaway collection in dir, uploads it and
// waits for the import. The task failing is an error.
func (c *Client) UploadTestCollection(
	ctx context.Context, dir string, spec artifact.Spec,
) (*artifact.Artifact, *TaskResult, error) {
	a, err := artifact.Build(dir, spec)
	if err != nil {
		return nil, nil, err
	}

	data, err := a.Open()
	if err != nil {
		return nil, nil, err
	}

	c.logger.Info("uploading test collection",
		slog.String("namespace", a.Namespace),
		slog.String("name", a.Name),
		slog.String("version", a.Version),
	)

	h, err := c.UploadArtifact(ctx, a.Namespace, a.Filename(), data, UploadOptions{SHA256: a.SHA256})
	if err != nil {
		return nil, nil, err
	}

	result, err := c.WaitForTask(ctx, h, WaitOptions{RaiseOnError: true})
	if err != nil {
		return nil, nil, err
	}

	return a, result, nil
}

func collectionIndex(repo, namespace, name string) string {
	return fmt.Sprintf("v3/plugin/ansible/content/%s/collections/index/%s/%s/",
		url.PathEscape(repo), url.PathEscape(namespace), url.PathEscape(name))
}

func collectionVersion(repo, namespace, name, version string) string {
	return collectionIndex(repo, namespace, name) + "versions/" + url.PathEscape(version) + "/"
}

// MoveCollection moves a collection version between repositories, waits
// for the copy and remove tasks, then for the version to appear in dst.
func (c *Client) MoveCollection(ctx context.Context, namespace, name, version, src, dst string) error {
	path := fmt.Sprintf("v3/collections/%s/%s/versions/%s/move/%s/%s/",
		url.PathEscape(namespace), url.PathEscape(name), url.PathEscape(version),
		url.PathEscape(src), url.PathEscape(dst))

	var jobs struct {
		CopyTaskID   string `json:"copy_task_id"`
		RemoveTaskID string `json:"remove_task_id"`
	}

	if err := c.Post(ctx, path, []byte("{}"), &jobs); err != nil {
		return err
	}

	if jobs.CopyTaskID == "" || jobs.RemoveTaskID == "" {
		return fmt.Errorf("galaxy: move response lacks task ids: %w", ErrResponseFormat)
	}

	handles := []TaskHandle{{ID: jobs.CopyTaskID, Version: TasksPulp}}
	if jobs.RemoveTaskID != jobs.CopyTaskID {
		handles = append(handles, TaskHandle{ID: jobs.RemoveTaskID, Version: TasksPulp})
	}

	if _, err := c.WaitForTasks(ctx, WaitOptions{RaiseOnError: true}, handles...); err != nil {
		return err
	}

	_, err := c.WaitForURL(ctx, collectionVersion(dst, namespace, name, version), 0)

	return err
}

// DeleteCollection deletes one version, or every version when version is
// empty, from repo and waits for the deletion task.
func (c *Client) DeleteCollection(ctx context.Context, namespace, name, version, repo string) error {
	if repo == "" {
		repo = PublishedRepo
	}

	path := collectionIndex(repo, namespace, name)
	if version != "" {
		path = collectionVersion(repo, namespace, name, version)
	}

	resp, err := c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
	if err != nil {
		return err
	}

	h, err := HandleFromResponse(resp)
	if err != nil {
		return err
	}

	_, err = c.WaitForTask(ctx, h, WaitOptions{RaiseOnError: true})

	return err
}

// DeprecateCollection marks every version of a collection deprecated.
func (c *Client) DeprecateCollection(ctx context.Context, namespace, name, repo string) error {
	if repo == "" {
		repo = PublishedRepo
	}

	data, err := encodeBody(map[string]bool{"deprecated": true})
	if err != nil {
		return err
	}

	resp, err := c.Do(ctx, &Request{Method: http.MethodPatch, Path: collectionIndex(repo, namespace, name), Body: data})
	if err != nil {
		return err
	}

	h, err := HandleFromResponse(resp)
	if err != nil {
		return err
	}

	_, err = c.WaitForTask(ctx, h, WaitOptions{RaiseOnError: true})

	return err
}

// CollectionInfo returns the version document from repo.
func (c *Client) CollectionInfo(ctx context.Context, repo, namespace, name, version string) (Record, error) {
	var out Record
	if err := c.Get(ctx, collectionVersion(repo, namespace, name, version), &out); err != nil {
		return nil, err
	}

	return out, nil
}

// ListCollections returns the collections of repo.
func (c *Client) ListCollections(ctx context.Context, repo string) ([]Record, error) {
	if repo == "" {
		repo = PublishedRepo
	}

	var page Page[Record]

	path := fmt.Sprintf("v3/plugin/ansible/content/%s/collections/index/", url.PathEscape(repo))
	if err := c.Get(ctx, path, &page); err != nil {
		return nil, err
	}

	return page.Data, nil
}

// DefaultSigningService is the signing service galaxy_ng installs.
const DefaultSigningService = "ansible-default"

// SignCollection signs a collection version in repo with the default
// signing service and waits for the task.
func (c *Client) SignCollection(ctx context.Context, repo, namespace, name, version string) (*TaskResult, error) {
	body := map[string]string{
		"signing_service":  DefaultSigningService,
		"distro_base_path": repo,
		"namespace":        namespace,
		"collection":       name,
		"version":          version,
	}

	data, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: "_ui/v1/collection_signing/", Body: data})
	if err != nil {
		return nil, err
	}

	h, err := HandleFromResponse(resp)
	if err != nil {
		return nil, err
	}

	return c.WaitForTask(ctx, h, WaitOptions{RaiseOnError: true})
}

// searchPath is relative to the host's galaxy root, not the automation hub
// API root.
const searchPath = "pulp_ansible/galaxy/default/api/v3/plugin/ansible/search/collection-versions/"

// SearchCollections runs a cross-repository collection version search.
// Multi-valued parameters repeat the key.
func (c *Client) SearchCollections(ctx context.Context, params url.Values) (*Page[Record], error) {
	root := c.baseURL.Path
	if i := strings.Index(root, "api/automation-hub/"); i >= 0 {
		root = root[:i]
	}

	path := strings.TrimRight(root, "/") + "/" + searchPath
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var page Page[Record]
	if err := c.Get(ctx, path, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// WaitForCollection polls until the version is visible in repo.
func (c *Client) WaitForCollection(
	ctx context.Context, repo, namespace, name, version string, timeout time.Duration,
) error {
	_, err := c.WaitForURL(ctx, collectionVersion(repo, namespace, name, version), timeout)
	return err
}
