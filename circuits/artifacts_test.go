package circuits

import (
	"bytes"
	"context"
	"crypto/sha256"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

var (
	remotePath    = "logic.key"
	remoteContent = []byte("remote key content")
)

func testKeyServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, remotePath, time.Now(), bytes.NewReader(remoteContent))
	}))
}

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "shielded-artifacts-test")
	if err != nil {
		panic(err)
	}
	BaseDir = dir
	code := m.Run()
	if err := os.RemoveAll(BaseDir); err != nil {
		panic(err)
	}
	os.Exit(code)
}

func TestLoadRemoteArtifact(t *testing.T) {
	c := qt.New(t)
	server := testKeyServer()
	defer server.Close()

	expectedHash := sha256.Sum256(remoteContent)
	remoteURL, err := url.JoinPath(server.URL, remotePath)
	c.Assert(err, qt.IsNil)
	artifact := &Artifact{RemoteURL: remoteURL, Hash: expectedHash[:]}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// not cached yet, downloaded
	c.Assert(artifact.Load(ctx), qt.IsNil)
	c.Assert([]byte(artifact.Content), qt.DeepEquals, remoteContent)
	// cached now
	cached := &Artifact{Hash: expectedHash[:]}
	c.Assert(cached.Load(ctx), qt.IsNil)
	c.Assert([]byte(cached.Content), qt.DeepEquals, remoteContent)
	// wrong hash
	wrong := &Artifact{RemoteURL: remoteURL, Hash: []byte("wrong hash")}
	c.Assert(wrong.Load(ctx), qt.IsNotNil)
	// unknown and no remote
	missing := &Artifact{Hash: bytes.Repeat([]byte{1}, 32)}
	c.Assert(missing.Load(ctx), qt.ErrorIs, ErrArtifactNotFound)
}

func TestStoreAndLoadKeys(t *testing.T) {
	c := qt.New(t)
	pk := &ProvingKey{Backend: BackendNative, Circuit: "test", Data: []byte("pk")}
	vk := &VerifyingKey{Backend: BackendNative, Circuit: "test", Data: []byte("vk")}
	ka, err := StoreKeys(pk, vk)
	c.Assert(err, qt.IsNil)

	pk2, vk2, err := LoadKeys(context.Background(), ka)
	c.Assert(err, qt.IsNil)
	c.Assert(pk2, qt.DeepEquals, pk)
	c.Assert(vk2.Equal(vk), qt.IsTrue)
	c.Assert(vk2.Compress(), qt.Equals, vk.Compress())

	other := &VerifyingKey{Backend: BackendNative, Circuit: "other", Data: []byte("vk")}
	c.Assert(other.Compress() == vk.Compress(), qt.IsFalse)
}
