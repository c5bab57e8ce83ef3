package source

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/gcrane"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/opkgdev/opkg/internal/errors"
)

// RegistryLoader pulls a named package from an OCI-compatible registry,
// the way kpt's internal/util/fetch.OciPullAndExtract/pullAndCopy do,
// adapted to opkg's name[@version] registry coordinates and its
// cache-first-unless-remote-primary rule (§4.1).
type RegistryLoader struct {
	// CacheRoot is the directory under which pulled images are kept:
	// <CacheRoot>/registry/<name>/<version>/ (§6).
	CacheRoot string

	// BaseURL, when set, is prefixed onto bare registry names to form the
	// OCI image reference (e.g. "registry.example.com/opkg-packages").
	BaseURL string

	// APIKey, when set, is sent as a bearer token instead of consulting
	// the local Docker/gcrane keychain (§6 "--api-key", private registries).
	APIKey string
}

// Load resolves rs against the registry, consulting the local cache
// first unless mode is ModeRemotePrimary.
func (r *RegistryLoader) Load(ctx context.Context, rs ResolvedSource, mode Mode) (*LoadedPackage, error) {
	const op errors.Op = "source.RegistryLoader.Load"

	version := rs.RegistryVersion
	if version == "" {
		version = "latest"
	}
	cacheDir := filepath.Join(r.CacheRoot, "registry", rs.RegistryName, version)

	if mode == ModeCacheFirst {
		if _, err := os.Stat(cacheDir); err == nil {
			return r.fromDir(rs, version, cacheDir)
		}
	}

	imageName := rs.RegistryName
	if r.BaseURL != "" {
		imageName = r.BaseURL + "/" + rs.RegistryName
	}
	if version != "" {
		imageName = fmt.Sprintf("%s:%s", imageName, version)
	}

	digest, err := r.pullAndExtract(ctx, imageName, cacheDir)
	if err != nil {
		return nil, errors.E(op, errors.Network, err)
	}

	lp, err := r.fromDir(rs, version, cacheDir)
	if err != nil {
		return nil, err
	}
	if digest != "" {
		lp.Version = digest
	}
	return lp, nil
}

func (r *RegistryLoader) fromDir(rs ResolvedSource, version, dir string) (*LoadedPackage, error) {
	const op errors.Op = "source.RegistryLoader.fromDir"
	m, err := readManifestOrDefault(dir)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if m.Name == "" {
		m.Name = rs.RegistryName
	}
	return &LoadedPackage{
		PackageName: m.Name,
		Version:     version,
		ContentRoot: dir,
		Manifest:    m,
		Marketplace: m.Marketplace,
		Source:      rs,
		CacheDir:    dir,
	}, nil
}

// pullAndExtract pulls imageName and untars its merged layers into dest,
// writing to a sibling temp dir first and renaming into place.
func (r *RegistryLoader) pullAndExtract(ctx context.Context, imageName, dest string) (string, error) {
	ref, err := name.ParseReference(imageName)
	if err != nil {
		return "", fmt.Errorf("parsing reference %q: %w", imageName, err)
	}

	authOpt := remote.WithAuthFromKeychain(gcrane.Keychain)
	if r.APIKey != "" {
		authOpt = remote.WithAuth(&authn.Bearer{Token: r.APIKey})
	}
	image, err := remote.Image(ref, remote.WithContext(ctx), authOpt)
	if err != nil {
		return "", fmt.Errorf("pulling image %s: %w", imageName, err)
	}

	tmp := dest + ".tmp"
	_ = os.RemoveAll(tmp)
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return "", err
	}

	rc := mutate.Extract(image)
	defer rc.Close()

	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = os.RemoveAll(tmp)
			return "", err
		}
		target := filepath.Join(tmp, hdr.Name)
		switch {
		case hdr.FileInfo().IsDir():
			if err := os.MkdirAll(target, hdr.FileInfo().Mode()); err != nil {
				return "", err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return "", err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return "", err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return "", err
			}
			f.Close()
		}
	}

	digestHash, err := image.Digest()
	if err != nil {
		return "", fmt.Errorf("computing image digest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	_ = os.RemoveAll(dest)
	if err := os.Rename(tmp, dest); err != nil {
		return "", err
	}
	return "sha256:" + digestHash.Hex, nil
}
