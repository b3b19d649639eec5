// Package artifact builds minimal Ansible collection tarballs for upload
// tests. The archives carry a valid MANIFEST.json and FILES.json so the
// server's importer accepts them.
package artifact

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// DefaultVersion is used when Spec.Version is empty.
const DefaultVersion = "1.0.0"

var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Spec describes the collection to build. An empty Name is replaced with a
// random col_<hex> name.
type Spec struct {
	Namespace    string
	Name         string
	Version      string
	Description  string
	Tags         []string
	Dependencies map[string]string
}

// Artifact is a built collection archive on disk.
type Artifact struct {
	Namespace string
	Name      string
	Version   string
	Path      string
	SHA256    string
}

// Filename returns the base name of the archive.
func (a *Artifact) Filename() string {
	return filepath.Base(a.Path)
}

// Open returns the archive contents.
func (a *Artifact) Open() ([]byte, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("artifact: reading %s: %w", a.Path, err)
	}

	return data, nil
}

// RandomName returns a collection name unlikely to collide.
func RandomName() string {
	return "col_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Build writes {ns}-{name}-{version}.tar.gz into dir.
func Build(dir string, spec Spec) (*Artifact, error) {
	if spec.Name == "" {
		spec.Name = RandomName()
	}

	if spec.Version == "" {
		spec.Version = DefaultVersion
	}

	if err := validate(spec); err != nil {
		return nil, err
	}

	data, err := archive(spec)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s-%s.tar.gz", spec.Namespace, spec.Name, spec.Version))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("artifact: writing %s: %w", path, err)
	}

	sum := sha256.Sum256(data)

	return &Artifact{
		Namespace: spec.Namespace,
		Name:      spec.Name,
		Version:   spec.Version,
		Path:      path,
		SHA256:    hex.EncodeToString(sum[:]),
	}, nil
}

func validate(spec Spec) error {
	var errs []error

	if !nameRe.MatchString(spec.Namespace) {
		errs = append(errs, fmt.Errorf("artifact: invalid namespace %q", spec.Namespace))
	}

	if !nameRe.MatchString(spec.Name) {
		errs = append(errs, fmt.Errorf("artifact: invalid collection name %q", spec.Name))
	}

	return errors.Join(errs...)
}

type fileEntry struct {
	Name         string  `json:"name"`
	FType        string  `json:"ftype"`
	ChksumType   *string `json:"chksum_type"`
	ChksumSHA256 *string `json:"chksum_sha256"`
	Format       int     `json:"format"`
}

type filesDoc struct {
	Files  []fileEntry `json:"files"`
	Format int         `json:"format"`
}

type collectionInfo struct {
	Namespace     string            `json:"namespace"`
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	Authors       []string          `json:"authors"`
	Readme        string            `json:"readme"`
	Tags          []string          `json:"tags"`
	Description   string            `json:"description"`
	License       []string          `json:"license"`
	LicenseFile   *string           `json:"license_file"`
	Dependencies  map[string]string `json:"dependencies"`
	Repository    string            `json:"repository"`
	Documentation string            `json:"documentation"`
	Homepage      string            `json:"homepage"`
	Issues        string            `json:"issues"`
}

type manifestDoc struct {
	CollectionInfo   collectionInfo `json:"collection_info"`
	FileManifestFile fileEntry      `json:"file_manifest_file"`
	Format           int            `json:"format"`
}

func archive(spec Spec) ([]byte, error) {
	readme := fmt.Sprintf("# %s.%s\n\nGenerated test collection.\n", spec.Namespace, spec.Name)

	contents := []struct {
		name string
		data []byte
	}{
		{"README.md", []byte(readme)},
		{"plugins/README.md", []byte("# Plugins\n")},
	}

	files := filesDoc{Format: 1, Files: []fileEntry{dirEntry(".")}}
	files.Files = append(files.Files, dirEntry("plugins"))

	for _, f := range contents {
		files.Files = append(files.Files, sumEntry(f.name, f.data))
	}

	filesJSON, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("artifact: encoding FILES.json: %w", err)
	}

	tags := spec.Tags
	if tags == nil {
		tags = []string{}
	}

	deps := spec.Dependencies
	if deps == nil {
		deps = map[string]string{}
	}

	manifest := manifestDoc{
		CollectionInfo: collectionInfo{
			Namespace:    spec.Namespace,
			Name:         spec.Name,
			Version:      spec.Version,
			Authors:      []string{"galaxykit"},
			Readme:       "README.md",
			Tags:         tags,
			Description:  spec.Description,
			License:      []string{"GPL-3.0-or-later"},
			Dependencies: deps,
			Repository:   "https://github.com/tonimelisma/galaxykit-go",
		},
		FileManifestFile: sumEntry("FILES.json", filesJSON),
		Format:           1,
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("artifact: encoding MANIFEST.json: %w", err)
	}

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	mtime := time.Now().UTC().Truncate(time.Second)

	if err := writeDir(tw, "plugins", mtime); err != nil {
		return nil, err
	}

	entries := append([]struct {
		name string
		data []byte
	}{
		{"MANIFEST.json", manifestJSON},
		{"FILES.json", filesJSON},
	}, contents...)

	for _, e := range entries {
		if err := writeFile(tw, e.name, e.data, mtime); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("artifact: closing tar: %w", err)
	}

	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("artifact: closing gzip: %w", err)
	}

	return buf.Bytes(), nil
}

func dirEntry(name string) fileEntry {
	return fileEntry{Name: name, FType: "dir", Format: 1}
}

func sumEntry(name string, data []byte) fileEntry {
	sum := sha256.Sum256(data)
	hexSum := hex.EncodeToString(sum[:])
	kind := "sha256"

	return fileEntry{Name: name, FType: "file", ChksumType: &kind, ChksumSHA256: &hexSum, Format: 1}
}

func writeDir(tw *tar.Writer, name string, mtime time.Time) error {
	hdr := &tar.Header{
		Name:     name + "/",
		Mode:     0o755,
		Typeflag: tar.TypeDir,
		ModTime:  mtime,
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("artifact: writing %s: %w", name, err)
	}

	return nil
}

func writeFile(tw *tar.Writer, name string, data []byte, mtime time.Time) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		Typeflag: tar.TypeReg,
		ModTime:  mtime,
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("artifact: writing %s header: %w", name, err)
	}

	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("artifact: writing %s: %w", name, err)
	}

	return nil
}
