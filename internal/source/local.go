package source

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/manifest"
)

// loadLocal implements the "Local" branch of §4.1 Loading: use the path
// directly, extracting tarballs into a temp dir first.
func loadLocal(rs ResolvedSource) (*LoadedPackage, error) {
	const op errors.Op = "source.loadLocal"

	root := rs.LocalPath
	if rs.IsFile && isTarball(root) {
		dir, err := os.MkdirTemp("", "opkg-local-*")
		if err != nil {
			return nil, errors.E(op, errors.IO, err)
		}
		if err := extractTarball(root, dir); err != nil {
			return nil, errors.E(op, errors.IO, err)
		}
		root = dir
	} else if rs.IsFile {
		return nil, errors.E(op, errors.Validation, fmt.Errorf("local file source must be a tarball: %s", root))
	}

	m, err := readManifestOrDefault(root)
	if err != nil {
		return nil, errors.E(op, err)
	}

	return &LoadedPackage{
		PackageName: m.Name,
		Version:     m.Version,
		ContentRoot: root,
		Manifest:    m,
		Marketplace: m.Marketplace,
		Source:      rs,
	}, nil
}

func isTarball(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") || strings.HasSuffix(lower, ".tar")
}

func extractTarball(tarballPath, dest string) error {
	f, err := os.Open(tarballPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(tarballPath), "gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target := filepath.Join(dest, filepath.Clean(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) && target != filepath.Clean(dest) {
			return fmt.Errorf("tarball entry escapes destination: %s", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

// readManifestOrDefault reads opkg.yaml from root, or returns a minimal
// manifest derived from the directory name if none exists (a local
// path source is not required to carry a manifest).
func readManifestOrDefault(root string) (*manifest.Manifest, error) {
	manifestPath := filepath.Join(root, manifest.FileName)
	data, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		return &manifest.Manifest{Name: filepath.Base(root)}, nil
	}
	if err != nil {
		return nil, errors.E(errors.IO, err)
	}
	return manifest.Parse(data)
}
