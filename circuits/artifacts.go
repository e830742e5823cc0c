package circuits

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/types"
)

// CheckHashes determines if the hashes of the artifacts are checked when they
// are loaded or downloaded. Set SHIELDED_CHECK_HASHES to false or 0 to
// disable it.
var CheckHashes = true

// BaseDir is the content addressed artifact cache. Defaults to the
// SHIELDED_ARTIFACTS_DIR env var or a directory in the user cache.
var BaseDir string

// ErrArtifactNotFound is returned when an artifact is not in the cache.
var ErrArtifactNotFound = errors.New("artifact not found")

func init() {
	if checkHashes := os.Getenv("SHIELDED_CHECK_HASHES"); checkHashes != "" {
		if strings.ToLower(checkHashes) == "false" || checkHashes == "0" {
			CheckHashes = false
		}
	}
	if dir := os.Getenv("SHIELDED_ARTIFACTS_DIR"); dir != "" {
		BaseDir = dir
	} else {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			log.Warnf("unable to access user home directory, using temporary directory: %v", err)
			BaseDir = filepath.Join(os.TempDir(), "shielded-artifacts")
		} else {
			BaseDir = filepath.Join(home, ".cache", "shielded-artifacts")
		}
	}
}

// Artifact is a content addressed blob (a serialized constraint system or
// key). It is found in the local cache by its sha256 hash, and optionally
// downloaded from RemoteURL.
type Artifact struct {
	RemoteURL string
	Hash      types.HexBytes
	Content   types.HexBytes
}

// Load loads the artifact content from the local cache, downloading it first
// if it is not there and a remote URL is known.
func (a *Artifact) Load(ctx context.Context) error {
	if len(a.Content) != 0 {
		return nil
	}
	if len(a.Hash) == 0 {
		return fmt.Errorf("artifact hash not provided")
	}
	content, err := load(a.Hash)
	if errors.Is(err, ErrArtifactNotFound) && a.RemoteURL != "" {
		if err := downloadAndStore(ctx, a.Hash, a.RemoteURL); err != nil {
			return err
		}
		content, err = load(a.Hash)
	}
	if err != nil {
		return err
	}
	a.Content = content
	return nil
}

// Store writes the content to the local cache and returns the artifact
// pointing to it.
func Store(content []byte) (*Artifact, error) {
	if err := os.MkdirAll(BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts dir: %w", err)
	}
	sum := sha256.Sum256(content)
	path := filepath.Join(BaseDir, hex.EncodeToString(sum[:]))
	if err := os.WriteFile(path+".partial", content, 0o644); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(path+".partial", path); err != nil {
		return nil, fmt.Errorf("rename artifact: %w", err)
	}
	log.Debugw("artifact stored", "hash", hex.EncodeToString(sum[:]), "size", len(content))
	return &Artifact{Hash: sum[:], Content: content}, nil
}

// KeyArtifacts references the stored proving and verifying keys of a
// circuit.
type KeyArtifacts struct {
	ProvingKey   types.HexBytes `json:"provingKey" cbor:"0,keyasint"`
	VerifyingKey types.HexBytes `json:"verifyingKey" cbor:"1,keyasint"`
}

// StoreKeys stores the encoded keys in the artifact cache.
func StoreKeys(pk *ProvingKey, vk *VerifyingKey) (*KeyArtifacts, error) {
	pkData, err := types.EncodeCBOR(pk)
	if err != nil {
		return nil, err
	}
	vkData, err := types.EncodeCBOR(vk)
	if err != nil {
		return nil, err
	}
	pkArt, err := Store(pkData)
	if err != nil {
		return nil, err
	}
	vkArt, err := Store(vkData)
	if err != nil {
		return nil, err
	}
	return &KeyArtifacts{ProvingKey: pkArt.Hash, VerifyingKey: vkArt.Hash}, nil
}

// LoadKeys loads the keys referenced by ka from the artifact cache.
func LoadKeys(ctx context.Context, ka *KeyArtifacts) (*ProvingKey, *VerifyingKey, error) {
	pkArt := &Artifact{Hash: ka.ProvingKey}
	if err := pkArt.Load(ctx); err != nil {
		return nil, nil, fmt.Errorf("proving key: %w", err)
	}
	vkArt := &Artifact{Hash: ka.VerifyingKey}
	if err := vkArt.Load(ctx); err != nil {
		return nil, nil, fmt.Errorf("verifying key: %w", err)
	}
	pk, vk := &ProvingKey{}, &VerifyingKey{}
	if err := types.DecodeCBOR(pkArt.Content, pk); err != nil {
		return nil, nil, fmt.Errorf("decode proving key: %w", err)
	}
	if err := types.DecodeCBOR(vkArt.Content, vk); err != nil {
		return nil, nil, fmt.Errorf("decode verifying key: %w", err)
	}
	return pk, vk, nil
}

func load(hash []byte) ([]byte, error) {
	path := filepath.Join(BaseDir, hex.EncodeToString(hash))
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %x", ErrArtifactNotFound, hash)
		}
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	if CheckHashes {
		fileHash := sha256.Sum256(content)
		if !bytes.Equal(fileHash[:], hash) {
			return nil, fmt.Errorf("hash mismatch for file %s: expected %x, got %x", path, hash, fileHash)
		}
	}
	return content, nil
}

// progressReader wraps an io.Reader and keeps track of the total bytes read.
type progressReader struct {
	reader io.Reader
	total  atomic.Int64
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.total.Add(int64(n))
	return n, err
}

// downloadAndStore downloads a file and stores it in the local cache,
// resuming a previous partial download if there is one.
func downloadAndStore(ctx context.Context, expectedHash []byte, fileURL string) error {
	if _, err := url.Parse(fileURL); err != nil {
		return fmt.Errorf("error parsing the file URL provided: %w", err)
	}
	if err := os.MkdirAll(BaseDir, 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}
	path := filepath.Join(BaseDir, hex.EncodeToString(expectedHash))
	partialPath := path + ".partial"

	var startByte int64
	if info, err := os.Stat(partialPath); err == nil {
		startByte = info.Size()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("error creating the file request: %w", err)
	}
	if startByte > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", startByte))
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("error performing the request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("error downloading file %s: http status: %d", fileURL, res.StatusCode)
	}

	hasher := sha256.New()
	fileMode := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if startByte > 0 && res.StatusCode == http.StatusPartialContent {
		fileMode = os.O_APPEND | os.O_WRONLY
		existing, err := os.ReadFile(partialPath)
		if err != nil {
			return fmt.Errorf("error reading partial download: %w", err)
		}
		hasher.Write(existing)
	}
	fd, err := os.OpenFile(partialPath, fileMode, 0o644)
	if err != nil {
		return fmt.Errorf("error opening artifact file: %w", err)
	}
	defer fd.Close()

	pr := &progressReader{reader: res.Body}
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.MultiWriter(fd, hasher), pr)
		done <- err
	}()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for copying := true; copying; {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("error copying data to file: %w", err)
			}
			copying = false
		case <-ticker.C:
			log.Debugw("downloading artifact", "url", fileURL,
				"downloaded", fmt.Sprintf("%.2fMiB", float64(pr.total.Load())/(1024*1024)))
		}
	}
	if CheckHashes {
		if computed := hasher.Sum(nil); !bytes.Equal(computed, expectedHash) {
			_ = os.Remove(partialPath)
			return fmt.Errorf("hash mismatch: expected %x, got %x", expectedHash, computed)
		}
	}
	if err := os.Rename(partialPath, path); err != nil {
		return fmt.Errorf("error renaming file: %w", err)
	}
	return nil
}
