package e2ee

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"time"
)

// EncryptStream reads r to the end and writes the header and chunk stream
// to w. Chunks are cut on raw bytes regardless of method, so only one
// chunk of plaintext is held in memory at a time. It returns the number of
// plaintext bytes consumed.
func (s *Service) EncryptStream(ctx context.Context, r io.Reader, w io.Writer, opts ...EncryptOption) (n int64, err error) {
	start := time.Now()
	method := s.config.DefaultMethod
	defer func() { s.metrics.record(ctx, opEncryptStream, method, start, err) }()

	n, method, err = s.encryptStream(ctx, r, w, opts)
	return n, err
}

func (s *Service) encryptStream(ctx context.Context, r io.Reader, w io.Writer, opts []EncryptOption) (int64, Method, error) {
	t, masterKeyID, err := s.resolveTarget(opts)
	if err != nil {
		return 0, 0, NewEncryptionError("encrypt", masterKeyID, err)
	}
	defer t.material.Destroy()

	if _, err := io.WriteString(w, t.header); err != nil {
		return 0, t.params.ID, NewIOError("write", "", err)
	}
	n, err := t.cipher.EncryptReader(ctx, r, w, s.config.ChunkSize)
	if err != nil {
		return n, t.params.ID, NewEncryptionError("encrypt", masterKeyID, err)
	}
	return n, t.params.ID, nil
}

// DecryptStream reads a header and chunk stream from r and writes the
// plaintext to w. Each chunk is written only after it authenticates, but a
// failure in a later chunk leaves earlier plaintext in w. Use DecryptFile
// or buffer w when partial output must not be observed.
func (s *Service) DecryptStream(ctx context.Context, r io.Reader, w io.Writer) (n int64, err error) {
	start := time.Now()
	var method Method
	defer func() { s.metrics.record(ctx, opDecryptStream, method, start, err) }()

	n, method, err = s.decryptStream(ctx, r, w)
	return n, err
}

func (s *Service) decryptStream(ctx context.Context, r io.Reader, w io.Writer) (int64, Method, error) {
	br := bufio.NewReader(r)

	// Keep the header bytes as read; they are bound into every chunk.
	var raw bytes.Buffer
	var h Header
	if _, err := h.ReadFrom(io.TeeReader(br, &raw)); err != nil {
		return 0, 0, NewEncryptionError("decrypt", "", err)
	}

	cc, material, err := s.decryptTarget(h, raw.String())
	if err != nil {
		return 0, h.Method, NewEncryptionError("decrypt", h.MasterKeyID, err)
	}
	defer material.Destroy()

	n, err := cc.DecryptReader(ctx, br, w)
	if err != nil {
		return n, h.Method, NewEncryptionError("decrypt", h.MasterKeyID, err)
	}
	return n, h.Method, nil
}
