package verifier

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/artifex/model"
	"github.com/viant/artifex/service/event"
	"golang.org/x/crypto/blake2b"
)

var artifact = []byte("def handler(event):\n    return event\n")

func hexOf(sum []byte) string {
	return hex.EncodeToString(sum)
}

func uploadArtifact(t *testing.T, fs afs.Service, data []byte) string {
	t.Helper()
	URL := fmt.Sprintf("mem://localhost/artifacts/%v/handler.py", time.Now().UnixNano())
	require.NoError(t, fs.Upload(context.Background(), URL, file.DefaultFileOsMode, bytes.NewReader(data)))
	return URL
}

func pemOf(t *testing.T, key crypto.PublicKey) []byte {
	der, err := x509.MarshalPKIXPublicKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func TestService_VerifyChecksum(t *testing.T) {
	fs := afs.New()
	URL := uploadArtifact(t, fs, artifact)
	sha := sha256.Sum256(artifact)
	md := md5.Sum(artifact)
	sha5 := sha512.Sum512(artifact)
	b2 := blake2b.Sum256(artifact)

	var testCases = []struct {
		description     string
		config          Config
		request         *Request
		expectStatus    Status
		expectReason    model.Reason
		expectAlgorithm []string
	}{
		{
			description:     "sha256 match",
			request:         &Request{TaskID: "t1", ArtifactURL: URL, Checksums: map[string]string{"SHA256": hexOf(sha[:])}},
			expectStatus:    StatusVerified,
			expectAlgorithm: []string{SHA256},
		},
		{
			description:     "multiple algorithms, mixed case names and values",
			request:         &Request{TaskID: "t1", ArtifactURL: URL, Checksums: map[string]string{"md5": hexOf(md[:]), "sha-512": hexOf(sha5[:]), "blake2b_256": bytesToUpperHex(b2[:])}},
			expectStatus:    StatusVerified,
			expectAlgorithm: []string{BLAKE2B256, MD5, SHA512},
		},
		{
			description:  "mismatch",
			request:      &Request{TaskID: "t1", ArtifactURL: URL, Checksums: map[string]string{"SHA256": hexOf(md[:])}},
			expectStatus: StatusFailed,
			expectReason: model.ReasonChecksumMismatch,
		},
		{
			description:  "one of many mismatched",
			request:      &Request{TaskID: "t1", ArtifactURL: URL, Checksums: map[string]string{"SHA256": hexOf(sha[:]), "MD5": "00"}},
			expectStatus: StatusFailed,
			expectReason: model.ReasonChecksumMismatch,
		},
		{
			description:  "unsupported algorithm",
			request:      &Request{TaskID: "t1", ArtifactURL: URL, Checksums: map[string]string{"CRC32": "abcd"}},
			expectStatus: StatusFailed,
			expectReason: model.ReasonAlgorithmUnsupported,
		},
		{
			description:  "no checksum",
			request:      &Request{TaskID: "t1", ArtifactURL: URL},
			expectStatus: StatusVerified,
		},
		{
			description:  "no checksum required",
			config:       Config{RequireChecksum: true},
			request:      &Request{TaskID: "t1", ArtifactURL: URL},
			expectStatus: StatusFailed,
			expectReason: model.ReasonChecksumMissing,
		},
		{
			description:  "absent nullable",
			request:      &Request{TaskID: "t1", Nullable: true, Absent: true, Checksums: map[string]string{"SHA256": "00"}},
			expectStatus: StatusVerified,
		},
		{
			description:  "absent required",
			request:      &Request{TaskID: "t1", Absent: true},
			expectStatus: StatusFailed,
			expectReason: model.ReasonArtifactMissing,
		},
		{
			description:  "unreadable",
			request:      &Request{TaskID: "t1", ArtifactURL: "mem://localhost/artifacts/missing.bin", Checksums: map[string]string{"SHA256": hexOf(sha[:])}},
			expectStatus: StatusFailed,
			expectReason: model.ReasonArtifactUnreadable,
		},
	}

	for _, testCase := range testCases {
		srv := New(WithFS(fs), WithConfig(testCase.config))
		record := srv.Verify(context.Background(), testCase.request)
		status, reason, _ := record.State()
		assert.Equal(t, testCase.expectStatus, status, testCase.description)
		assert.Equal(t, testCase.expectReason, reason, testCase.description)
		assert.NotNil(t, record.CompletedAt, testCase.description)
		if testCase.expectAlgorithm != nil {
			assert.Equal(t, testCase.expectAlgorithm, record.Algorithms, testCase.description)
		}
	}
}

func bytesToUpperHex(data []byte) string {
	return fmt.Sprintf("%X", data)
}

func TestService_VerifySignature(t *testing.T) {
	fs := afs.New()
	URL := uploadArtifact(t, fs, artifact)
	digest := sha256.Sum256(artifact)

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rsaSignature, err := rsa.SignPKCS1v15(rand.Reader, rsaKey, crypto.SHA256, digest[:])
	require.NoError(t, err)
	edPublic, edPrivate, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	edSignature := ed25519.Sign(edPrivate, digest[:])

	tampered := append([]byte{}, rsaSignature...)
	tampered[0] ^= 0xff

	var testCases = []struct {
		description  string
		keys         KeySource
		request      *Request
		expectStatus Status
		expectReason model.Reason
		expectValid  *bool
	}{
		{
			description:  "rsa valid",
			keys:         NewStaticKeys(pemOf(t, &rsaKey.PublicKey)),
			request:      &Request{TaskID: "t1", ArtifactURL: URL, Checksums: map[string]string{"SHA256": hexOf(digest[:])}, Signature: base64.StdEncoding.EncodeToString(rsaSignature), SignatureAlgorithm: RSASHA256},
			expectStatus: StatusVerified,
			expectValid:  boolPtr(true),
		},
		{
			description:  "rsa implicit algorithm without checksum",
			keys:         NewStaticKeys(pemOf(t, &rsaKey.PublicKey)),
			request:      &Request{TaskID: "t1", ArtifactURL: URL, Signature: base64.StdEncoding.EncodeToString(rsaSignature)},
			expectStatus: StatusVerified,
			expectValid:  boolPtr(true),
		},
		{
			description:  "rsa tampered",
			keys:         NewStaticKeys(pemOf(t, &rsaKey.PublicKey)),
			request:      &Request{TaskID: "t1", ArtifactURL: URL, Signature: base64.StdEncoding.EncodeToString(tampered), SignatureAlgorithm: "rsa-sha256"},
			expectStatus: StatusFailed,
			expectReason: model.ReasonSignatureInvalid,
			expectValid:  boolPtr(false),
		},
		{
			description:  "ed25519 valid",
			keys:         NewKey(edPublic),
			request:      &Request{TaskID: "t1", ArtifactURL: URL, Signature: base64.StdEncoding.EncodeToString(edSignature), SignatureAlgorithm: "Ed25519"},
			expectStatus: StatusVerified,
			expectValid:  boolPtr(true),
		},
		{
			description:  "key type mismatch",
			keys:         NewKey(edPublic),
			request:      &Request{TaskID: "t1", ArtifactURL: URL, Signature: base64.StdEncoding.EncodeToString(rsaSignature), SignatureAlgorithm: RSASHA256},
			expectStatus: StatusFailed,
			expectReason: model.ReasonSignatureInvalid,
		},
		{
			description:  "no key",
			request:      &Request{TaskID: "t1", ArtifactURL: URL, Signature: base64.StdEncoding.EncodeToString(edSignature), SignatureAlgorithm: ED25519},
			expectStatus: StatusFailed,
			expectReason: model.ReasonSignatureInvalid,
		},
		{
			description:  "bad encoding",
			keys:         NewKey(edPublic),
			request:      &Request{TaskID: "t1", ArtifactURL: URL, Signature: "***", SignatureAlgorithm: ED25519},
			expectStatus: StatusFailed,
			expectReason: model.ReasonSignatureInvalid,
		},
		{
			description:  "unsupported algorithm",
			keys:         NewKey(edPublic),
			request:      &Request{TaskID: "t1", ArtifactURL: URL, Signature: "c2ln", SignatureAlgorithm: "DSA"},
			expectStatus: StatusFailed,
			expectReason: model.ReasonAlgorithmUnsupported,
		},
		{
			description:  "checksum failure reported before signature",
			keys:         NewKey(edPublic),
			request:      &Request{TaskID: "t1", ArtifactURL: URL, Checksums: map[string]string{"SHA1": "00"}, Signature: base64.StdEncoding.EncodeToString(edSignature), SignatureAlgorithm: ED25519},
			expectStatus: StatusFailed,
			expectReason: model.ReasonChecksumMismatch,
		},
	}

	for _, testCase := range testCases {
		srv := New(WithFS(fs), WithKeySource(testCase.keys))
		record := srv.Verify(context.Background(), testCase.request)
		status, reason, _ := record.State()
		assert.Equal(t, testCase.expectStatus, status, testCase.description)
		assert.Equal(t, testCase.expectReason, reason, testCase.description)
		if testCase.expectValid != nil {
			require.NotNil(t, record.SignatureValid, testCase.description)
			assert.Equal(t, *testCase.expectValid, *record.SignatureValid, testCase.description)
		}
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func TestService_VerifyDeterministic(t *testing.T) {
	fs := afs.New()
	URL := uploadArtifact(t, fs, artifact)
	srv := New(WithFS(fs))
	request := &Request{TaskID: "t1", ArtifactURL: URL, Checksums: map[string]string{"SHA256": "deadbeef"}}
	for i := 0; i < 5; i++ {
		record := srv.Verify(context.Background(), request)
		status, reason, _ := record.State()
		assert.Equal(t, StatusFailed, status)
		assert.Equal(t, model.ReasonChecksumMismatch, reason)
	}
}

func TestRecord_CompleteOnce(t *testing.T) {
	record := NewRecord(&Request{TaskID: "t1", ResourceKey: "r1"})
	assert.Equal(t, StatusPending, record.Status)
	assert.Equal(t, "r1", record.ArtifactID)
	assert.True(t, record.fail(model.ReasonChecksumMismatch, "mismatch"))
	assert.False(t, record.verify())
	status, reason, _ := record.State()
	assert.Equal(t, StatusFailed, status)
	assert.Equal(t, model.ReasonChecksumMismatch, reason)
	assert.False(t, record.Verified())
}

func TestService_Pipeline(t *testing.T) {
	fs := afs.New()
	URL := uploadArtifact(t, fs, artifact)
	sha := sha256.Sum256(artifact)

	events, err := event.New("memory")
	require.NoError(t, err)
	publisher, err := event.PublisherOf[Outcome](events)
	require.NoError(t, err)

	var mux sync.Mutex
	var observed []string
	srv := New(WithFS(fs), WithPublisher(publisher), WithObservers(func(r *Record) {
		mux.Lock()
		observed = append(observed, r.TaskID)
		mux.Unlock()
	}))
	require.NoError(t, srv.Start(context.Background()))
	assert.Error(t, srv.Start(context.Background()))

	require.NoError(t, srv.Submit(context.Background(), &Request{TaskID: "ok", ArtifactURL: URL, Checksums: map[string]string{"SHA256": hexOf(sha[:])}}))
	outcomeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	evt, err := publisher.Consume(outcomeCtx)
	require.NoError(t, err)
	assert.Equal(t, "ok", evt.Data.TaskID)
	assert.Equal(t, StatusVerified, evt.Data.Status)
	assert.Equal(t, "ok", evt.Context.TaskID)

	require.NoError(t, srv.Submit(context.Background(), &Request{TaskID: "bad", ArtifactURL: URL, Checksums: map[string]string{"SHA256": "00"}}))
	evt, err = publisher.Consume(outcomeCtx)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, evt.Data.Status)
	assert.Equal(t, model.ReasonChecksumMismatch, evt.Data.Reason)

	srv.Shutdown()
	record, err := srv.Records().Load(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, record.Status)
	assert.ElementsMatch(t, []string{"ok", "bad"}, observed)
}
