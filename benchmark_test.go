package e2ee

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/absfs/memfs"
)

// Benchmark the chunk engines
func BenchmarkEngine_Seal(b *testing.B) {
	sizes := []int{
		1024,        // 1 KB
		5000,        // default chunk
		64 * 1024,   // 64 KB
		1024 * 1024, // 1 MB
	}

	for _, suite := range []CipherSuite{CipherAES256GCM, CipherChaCha20Poly1305, CipherAES256CFB} {
		for _, size := range sizes {
			b.Run(suite.String()+"/"+formatSize(size), func(b *testing.B) {
				benchmarkSeal(b, suite, size)
			})
		}
	}
}

func benchmarkSeal(b *testing.B, suite CipherSuite, size int) {
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		b.Fatalf("failed to generate test data: %v", err)
	}

	key := make([]byte, keySize(suite, true))
	rand.Read(key)

	engine, err := NewCipherEngine(suite, key)
	if err != nil {
		b.Fatalf("failed to create engine: %v", err)
	}
	nonce, err := GenerateNonce(suite)
	if err != nil {
		b.Fatalf("failed to generate nonce: %v", err)
	}
	aad := []byte("JED01000022050123456789abcdef0123456789abcdef")

	b.SetBytes(int64(size))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := engine.Seal(nonce, data, aad); err != nil {
			b.Fatalf("encryption failed: %v", err)
		}
	}
}

// Benchmark the key derivation of each method. Password derivation runs
// once per master key load; content derivation runs once per chunk.
func BenchmarkKeyDerivation(b *testing.B) {
	salt := make([]byte, SaltSize)
	rand.Read(salt)
	material := make([]byte, MaterialHexLen)

	for _, m := range Methods() {
		params, _ := LookupMethod(m)

		b.Run(m.String()+"/password", func(b *testing.B) {
			provider := NewSecretKeyProvider([]byte("test-password"), params.PasswordKDF)
			for i := 0; i < b.N; i++ {
				if _, err := provider.DeriveKey(salt, 32); err != nil {
					b.Fatalf("key derivation failed: %v", err)
				}
			}
		})

		b.Run(m.String()+"/content", func(b *testing.B) {
			provider := NewSecretKeyProvider(material, params.ContentKDF)
			for i := 0; i < b.N; i++ {
				if _, err := provider.DeriveKey(salt, 32); err != nil {
					b.Fatalf("key derivation failed: %v", err)
				}
			}
		})
	}
}

func newBenchService(b *testing.B, method Method) *Service {
	b.Helper()
	fsys, err := memfs.NewFS()
	if err != nil {
		b.Fatalf("failed to create filesystem: %v", err)
	}
	svc, err := New(&Config{FS: fsys, DefaultMethod: method})
	if err != nil {
		b.Fatalf("failed to create service: %v", err)
	}
	b.Cleanup(func() { svc.Close() })

	record, err := svc.GenerateMasterKey("bench-password", WithKeyMethod(MethodLegacyV1))
	if err != nil {
		b.Fatalf("failed to generate master key: %v", err)
	}
	if err := svc.LoadMasterKey(record, "bench-password", true); err != nil {
		b.Fatalf("failed to load master key: %v", err)
	}
	return svc
}

// Benchmark a note-sized string round trip
func BenchmarkString_RoundTrip(b *testing.B) {
	for _, size := range []int{100, 5000, 50000} {
		for _, m := range []Method{MethodCurrent, MethodCurrentChaCha, MethodLegacyV1Safe} {
			b.Run(m.String()+"/"+formatSize(size), func(b *testing.B) {
				svc := newBenchService(b, m)
				plain := strings.Repeat("a", size)

				b.SetBytes(int64(size))
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					ct, err := svc.EncryptString(plain)
					if err != nil {
						b.Fatalf("encryption failed: %v", err)
					}
					if _, err := svc.DecryptString(ct); err != nil {
						b.Fatalf("decryption failed: %v", err)
					}
				}
			})
		}
	}
}

// Benchmark stream encryption against different chunk sizes
func BenchmarkStream_ChunkSizes(b *testing.B) {
	const size = 1024 * 1024
	data := make([]byte, size)
	rand.Read(data)

	for _, chunk := range []int{1024, DefaultChunkSize, 64 * 1024} {
		b.Run(formatSize(chunk), func(b *testing.B) {
			svc := newBenchService(b, MethodCurrent)
			svc.config.ChunkSize = chunk
			ctx := context.Background()

			b.SetBytes(size)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := svc.EncryptStream(ctx, bytes.NewReader(data), io.Discard); err != nil {
					b.Fatalf("encryption failed: %v", err)
				}
			}
		})
	}
}

// Benchmark full file encrypt/decrypt cycle
func BenchmarkFile_RoundTrip(b *testing.B) {
	for _, size := range []int{64 * 1024, 1024 * 1024} {
		b.Run(formatSize(size), func(b *testing.B) {
			svc := newBenchService(b, MethodCurrent)
			ctx := context.Background()
			fsys := svc.config.FS

			data := make([]byte, size)
			rand.Read(data)
			f, err := fsys.OpenFile("/bench.bin", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
			if err != nil {
				b.Fatalf("failed to create file: %v", err)
			}
			f.Write(data)
			f.Close()

			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := svc.EncryptFile(ctx, "/bench.bin", "/bench.jed"); err != nil {
					b.Fatalf("encryption failed: %v", err)
				}
				if err := svc.DecryptFile(ctx, "/bench.jed", "/bench.out"); err != nil {
					b.Fatalf("decryption failed: %v", err)
				}
			}
		})
	}
}

// Benchmark bulk master key upgrades with different worker counts
func BenchmarkUpgradeAll_Workers(b *testing.B) {
	for _, workers := range []int{1, 2, 4} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			svc := newBenchService(b, MethodCurrent)
			svc.config.Parallel = ParallelConfig{MaxWorkers: workers}

			records := make([]MasterKeyRecord, 8)
			for i := range records {
				r, err := svc.GenerateMasterKey("bench-password", WithKeyMethod(MethodLegacyV2))
				if err != nil {
					b.Fatalf("failed to generate master key: %v", err)
				}
				records[i] = r
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, err := svc.UpgradeAll(context.Background(), records, "bench-password", UpgradeOptions{Method: MethodLegacyV1Safe})
				if err != nil {
					b.Fatalf("upgrade failed: %v", err)
				}
			}
		})
	}
}

func formatSize(size int) string {
	if size < 1024 {
		return fmt.Sprintf("%dB", size)
	}
	if size < 1024*1024 {
		return fmt.Sprintf("%dKB", size/1024)
	}
	return fmt.Sprintf("%dMB", size/(1024*1024))
}
