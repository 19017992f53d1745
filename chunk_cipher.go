package e2ee

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/awnumar/memguard"
)

// ChunkCipher encrypts and decrypts the chunk stream of one payload. Every
// chunk gets its own salt, key and nonce. The header, the chunk index and
// whether the chunk is the last one are bound into each chunk, so chunks
// cannot be reordered, dropped, or moved between payloads.
type ChunkCipher struct {
	params   MethodParams
	material []byte
	header   string
}

// NewChunkCipher creates a chunk cipher for one payload. material is
// referenced, not copied, and must stay valid while the cipher is in use.
func NewChunkCipher(params MethodParams, material []byte, header string) (*ChunkCipher, error) {
	if err := ValidateKey(material, MaterialHexLen); err != nil {
		return nil, err
	}
	return &ChunkCipher{
		params:   params,
		material: material,
		header:   header,
	}, nil
}

func (c *ChunkCipher) aad(index uint32, final bool) []byte {
	aad := make([]byte, 0, len(c.header)+5)
	aad = append(aad, c.header...)
	aad = binary.BigEndian.AppendUint32(aad, index)
	if final {
		return append(aad, 1)
	}
	return append(aad, 0)
}

func (c *ChunkCipher) engine(salt []byte) (CipherEngine, error) {
	key, err := NewSecretKeyProvider(c.material, c.params.ContentKDF).DeriveKey(salt, keySize(c.params.Cipher, true))
	if err != nil {
		return nil, fmt.Errorf("failed to derive chunk key: %w", err)
	}
	defer memguard.WipeBytes(key)
	return NewCipherEngine(c.params.Cipher, key)
}

// SealChunk encrypts one chunk and returns salt | nonce | sealed data
func (c *ChunkCipher) SealChunk(index uint32, final bool, plaintext []byte) ([]byte, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	engine, err := c.engine(salt)
	if err != nil {
		return nil, err
	}
	nonce, err := GenerateNonce(c.params.Cipher)
	if err != nil {
		return nil, err
	}
	sealed, err := engine.Seal(nonce, plaintext, c.aad(index, final))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt chunk %d: %w", index, err)
	}

	blob := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	return append(blob, sealed...), nil
}

// OpenChunk reverses SealChunk. Every failure is a *CorruptionError
// wrapping ErrDecryptionFailed.
func (c *ChunkCipher) OpenChunk(index uint32, final bool, blob []byte) ([]byte, error) {
	ns := nonceSize(c.params.Cipher)
	if len(blob) < SaltSize+ns {
		return nil, NewCorruptionError(int(index), "chunk too short")
	}
	salt, nonce, sealed := blob[:SaltSize], blob[SaltSize:SaltSize+ns], blob[SaltSize+ns:]

	engine, err := c.engine(salt)
	if err != nil {
		return nil, err
	}
	if len(sealed) < engine.Overhead() {
		return nil, NewCorruptionError(int(index), "chunk too short")
	}
	plaintext, err := engine.Open(nonce, sealed, c.aad(index, final))
	if err != nil {
		return nil, NewCorruptionError(int(index), "authentication failed")
	}
	return plaintext, nil
}

// EncryptChunks seals the pre-split chunks in order and writes them to w.
// An empty chunk list produces a single empty final chunk.
func (c *ChunkCipher) EncryptChunks(chunks [][]byte, w io.Writer) error {
	if len(chunks) == 0 {
		chunks = [][]byte{nil}
	}
	if uint64(len(chunks)) > math.MaxUint32 {
		return fmt.Errorf("too many chunks: %d", len(chunks))
	}

	cw := &chunkRecordWriter{w: w}
	for i, chunk := range chunks {
		blob, err := c.SealChunk(uint32(i), i == len(chunks)-1, chunk)
		if err != nil {
			return err
		}
		if _, err := cw.WriteRecord(blob); err != nil {
			return fmt.Errorf("failed to write chunk %d: %w", i, err)
		}
	}
	return nil
}

// EncryptReader reads r in chunkSize pieces and writes sealed chunks to w
// until r is exhausted. ctx is checked between chunks.
func (c *ChunkCipher) EncryptReader(ctx context.Context, r io.Reader, w io.Writer, chunkSize int) (int64, error) {
	if err := ValidateChunkSize(chunkSize); err != nil {
		return 0, err
	}
	br := bufio.NewReaderSize(r, chunkSize)
	cw := &chunkRecordWriter{w: w}
	buf := make([]byte, chunkSize)
	defer memguard.WipeBytes(buf)

	var total int64
	for index := uint32(0); ; index++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := io.ReadFull(br, buf)
		final := false
		switch {
		case err == nil:
			if _, perr := br.Peek(1); perr != nil {
				if !errors.Is(perr, io.EOF) {
					return total, perr
				}
				final = true
			}
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			final = true
		default:
			return total, err
		}

		blob, err := c.SealChunk(index, final, buf[:n])
		if err != nil {
			return total, err
		}
		if _, err := cw.WriteRecord(blob); err != nil {
			return total, fmt.Errorf("failed to write chunk %d: %w", index, err)
		}
		total += int64(n)

		if final {
			return total, nil
		}
		if err := ValidateChunkIndex(index+1, math.MaxUint32-1, "encrypt"); err != nil {
			return total, err
		}
	}
}

// DecryptReader reads sealed chunks from r in order and writes the
// plaintext of each to w once it has been authenticated. Plaintext already
// written stays written when a later chunk fails; callers that must not
// expose partial output buffer it.
func (c *ChunkCipher) DecryptReader(ctx context.Context, r io.Reader, w io.Writer) (int64, error) {
	cr := newChunkRecordReader(r)

	var total int64
	for index := uint32(0); ; index++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		blob, last, err := cr.ReadRecord(int(index))
		if errors.Is(err, io.EOF) {
			return total, NewCorruptionError(int(index), "missing chunk")
		}
		if err != nil {
			return total, err
		}

		plaintext, err := c.OpenChunk(index, last, blob)
		if err != nil {
			return total, err
		}
		n, err := w.Write(plaintext)
		total += int64(n)
		memguard.WipeBytes(plaintext)
		if err != nil {
			return total, err
		}

		if last {
			return total, nil
		}
		if err := ValidateChunkIndex(index+1, math.MaxUint32-1, "decrypt"); err != nil {
			return total, NewCorruptionError(int(index), "too many chunks")
		}
	}
}
